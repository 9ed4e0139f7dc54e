package services

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/config"
	"github.com/veracity-data/veracity-engine/pkg/repositories"
)

// RetentionService handles cleanup of historical quality profiles so the
// profiles table does not grow without bound. Only profile history is
// pruned; datasets, issues, and rules are kept until explicitly deleted.
type RetentionService interface {
	// RunOnce prunes profile history for all datasets down to the
	// configured count. Returns total number of profiles deleted.
	RunOnce(ctx context.Context) (int64, error)

	// Start begins pruning on the configured cron schedule. It also prunes
	// once immediately so a restart never postpones cleanup.
	Start() error

	// Stop halts the scheduler. Safe to call when never started.
	Stop()
}

type retentionService struct {
	profiles repositories.ProfileRepository
	cron     *cron.Cron
	schedule string
	keep     int
	started  bool
	logger   *zap.Logger
}

func NewRetentionService(profiles repositories.ProfileRepository, cfg config.RetentionConfig, logger *zap.Logger) RetentionService {
	return &retentionService{
		profiles: profiles,
		cron:     cron.New(),
		schedule: cfg.Schedule,
		keep:     cfg.KeepProfiles,
		logger:   logger.Named("retention_service"),
	}
}

var _ RetentionService = (*retentionService)(nil)

func (s *retentionService) RunOnce(ctx context.Context) (int64, error) {
	deleted, err := s.profiles.PruneKeepNewest(ctx, s.keep)
	if err != nil {
		s.logger.Error("Failed to prune quality profiles",
			zap.Int("keep_profiles", s.keep),
			zap.Error(err))
		return 0, fmt.Errorf("failed to prune quality profiles: %w", err)
	}

	if deleted > 0 {
		s.logger.Info("Retention cleanup completed",
			zap.Int("keep_profiles", s.keep),
			zap.Int64("profiles_deleted", deleted))
	}

	return deleted, nil
}

// Start registers the pruning job and starts the scheduler.
func (s *retentionService) Start() error {
	if s.started {
		return fmt.Errorf("retention scheduler already started")
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.logger.Error("Scheduled retention cleanup failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention cleanup: %w", err)
	}

	s.cron.Start()
	s.started = true
	s.logger.Info("Retention scheduler started",
		zap.String("schedule", s.schedule),
		zap.Int("keep_profiles", s.keep))

	// Run immediately on startup, then at each scheduled time
	go func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.logger.Error("Startup retention cleanup failed", zap.Error(err))
		}
	}()

	return nil
}

// Stop halts the scheduler without waiting for a running job.
func (s *retentionService) Stop() {
	if !s.started {
		return
	}
	s.cron.Stop()
	s.started = false
	s.logger.Info("Retention scheduler stopped")
}
