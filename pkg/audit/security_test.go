package audit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/veracity-data/veracity-engine/pkg/ingest"
)

func TestNewSecurityAuditor(t *testing.T) {
	logger := zap.NewNop()
	auditor := NewSecurityAuditor(logger)

	require.NotNil(t, auditor)
	require.NotNil(t, auditor.logger)
}

func TestLogInjectionFindings(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	auditor := NewSecurityAuditor(logger)

	findings := []ingest.Finding{
		{Line: 2, Cell: 1, Value: "=SUM(A1:A10)", Kind: ingest.FindingFormula},
		{Line: 3, Cell: 2, Value: "'; DROP TABLE users--", Kind: ingest.FindingSQLi, Fingerprint: "s&1c"},
	}

	auditor.LogInjectionFindings("payload.csv", "203.0.113.7", findings)

	entries := recorded.All()
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "Dangerous content in uploaded file", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "payload.csv", fields["filename"])
	assert.Equal(t, int64(2), fields["finding_count"])
	assert.Equal(t, "203.0.113.7", fields["client_ip"])
	assert.Equal(t, "critical", fields["severity"])

	// The embedded JSON event must round-trip for SIEM ingestion.
	eventJSON, ok := fields["event_json"].(string)
	require.True(t, ok)

	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(eventJSON), &event))
	assert.Equal(t, EventInjectionFinding, event.EventType)
	assert.Equal(t, "payload.csv", event.Filename)
	assert.Equal(t, "203.0.113.7", event.ClientIP)
	assert.Equal(t, "critical", event.Severity)
	assert.False(t, event.Timestamp.IsZero())

	details, ok := event.Details.([]any)
	require.True(t, ok)
	require.Len(t, details, 2)

	first, ok := details[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), first["line"])
	assert.Equal(t, "=SUM(A1:A10)", first["value"])
	assert.Equal(t, "formula", first["kind"])

	second, ok := details[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sqli", second["kind"])
	assert.Equal(t, "s&1c", second["fingerprint"])
}

func TestLogInjectionFindings_NoFindings(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	auditor := NewSecurityAuditor(logger)

	auditor.LogInjectionFindings("empty.csv", "", nil)

	entries := recorded.All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, int64(0), fields["finding_count"])
	assert.Equal(t, "", fields["client_ip"])
}

func TestLogUploadRejected(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	auditor := NewSecurityAuditor(logger)

	auditor.LogUploadRejected("report.xlsx", "extension", "File 'report.xlsx' is not a CSV file", "198.51.100.4")

	entries := recorded.All()
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "Upload rejected", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "report.xlsx", fields["filename"])
	assert.Equal(t, "extension", fields["step"])
	assert.Equal(t, "File 'report.xlsx' is not a CSV file", fields["reason"])
	assert.Equal(t, "198.51.100.4", fields["client_ip"])
	assert.Equal(t, "warning", fields["severity"])

	eventJSON, ok := fields["event_json"].(string)
	require.True(t, ok)

	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(eventJSON), &event))
	assert.Equal(t, EventUploadRejected, event.EventType)
	assert.Equal(t, "warning", event.Severity)

	details, ok := event.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "extension", details["step"])
	assert.Equal(t, "File 'report.xlsx' is not a CSV file", details["reason"])
}

func TestLogFileScreened(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	auditor := NewSecurityAuditor(logger)

	auditor.LogFileScreened("clean.csv", true, 0, "192.0.2.10")

	entries := recorded.All()
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.Equal(t, "File screened", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "clean.csv", fields["filename"])
	assert.Equal(t, true, fields["safe"])
	assert.Equal(t, int64(0), fields["finding_count"])
	assert.Equal(t, "192.0.2.10", fields["client_ip"])
	assert.Equal(t, "info", fields["severity"])

	eventJSON, ok := fields["event_json"].(string)
	require.True(t, ok)

	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(eventJSON), &event))
	assert.Equal(t, EventFileScreened, event.EventType)
	assert.Equal(t, "info", event.Severity)

	details, ok := event.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, details["safe"])
	assert.Equal(t, float64(0), details["finding_count"])
}

func TestLogFileScreened_UnsafeFile(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	auditor := NewSecurityAuditor(logger)

	auditor.LogFileScreened("suspect.csv", false, 3, "")

	entries := recorded.All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, false, fields["safe"])
	assert.Equal(t, int64(3), fields["finding_count"])
}

func TestAuditorUsesNamedLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	auditor := NewSecurityAuditor(logger)

	auditor.LogFileScreened("named.csv", true, 0, "")

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "security_audit", entries[0].LoggerName)
}
