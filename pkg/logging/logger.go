// Package logging builds the engine's zap logger and provides helpers for
// keeping secrets and oversized payloads out of log output.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New constructs the application logger for the given environment.
// Local environments get the human-readable development encoder at debug
// level; everything else gets the JSON production encoder at info level.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
