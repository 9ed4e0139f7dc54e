// Package audit provides security audit logging for SIEM consumption.
// Events are written as structured JSON so security tooling can ingest them
// without scraping log text.
package audit

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/veracity-data/veracity-engine/pkg/ingest"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventInjectionFinding is logged when upload screening flags cell
	// content as a formula, script, XSS, or SQL injection payload.
	EventInjectionFinding SecurityEventType = "csv_injection_attempt"
	// EventUploadRejected is logged when an upload fails the extension,
	// size, or structure checks.
	EventUploadRejected SecurityEventType = "upload_rejected"
	// EventFileScreened is logged for standalone screening runs (optional, can be high volume).
	EventFileScreened SecurityEventType = "file_screened"
)

// SecurityEvent is the JSON payload embedded in each audit entry. It carries
// the full context a SIEM needs to correlate an event without access to the
// surrounding log line.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	Filename  string            `json:"filename"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// SecurityAuditor writes security events through a dedicated logger
// namespace ("security_audit") so they can be routed separately from
// application logs.
type SecurityAuditor struct {
	logger *zap.Logger
}

func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// emit writes one audit entry: the full event serialized under event_json
// for SIEM pipelines, plus flat fields for log search.
func (a *SecurityAuditor) emit(level zapcore.Level, msg string, event SecurityEvent, extra ...zap.Field) {
	// Marshaling these known shapes doesn't fail; if it ever did, the
	// flat fields still carry the essentials.
	eventJSON, _ := json.Marshal(event)

	fields := []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("filename", event.Filename),
	}
	fields = append(fields, extra...)
	fields = append(fields,
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	)

	a.logger.Log(level, msg, fields...)
}

// LogInjectionFindings records cells flagged by content screening, at ERROR
// level with "critical" severity for immediate alerting. Client IP comes
// from the HTTP request (typically r.RemoteAddr).
func (a *SecurityAuditor) LogInjectionFindings(filename, clientIP string, findings []ingest.Finding) {
	a.emit(zapcore.ErrorLevel, "Dangerous content in uploaded file", SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventInjectionFinding,
		Filename:  filename,
		ClientIP:  clientIP,
		Details:   findings,
		Severity:  "critical",
	}, zap.Int("finding_count", len(findings)))
}

// LogUploadRejected records an upload that failed the extension, size, or
// structure checks. WARN level: these are usually user errors, not attacks.
func (a *SecurityAuditor) LogUploadRejected(filename, step, reason, clientIP string) {
	a.emit(zapcore.WarnLevel, "Upload rejected", SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventUploadRejected,
		Filename:  filename,
		ClientIP:  clientIP,
		Details:   map[string]string{"step": step, "reason": reason},
		Severity:  "warning",
	}, zap.String("step", step), zap.String("reason", reason))
}

// LogFileScreened records a standalone screening run for the audit trail.
// INFO level; can be high volume if the screening endpoint is hit often.
func (a *SecurityAuditor) LogFileScreened(filename string, safe bool, findingCount int, clientIP string) {
	a.emit(zapcore.InfoLevel, "File screened", SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventFileScreened,
		Filename:  filename,
		ClientIP:  clientIP,
		Details:   map[string]any{"safe": safe, "finding_count": findingCount},
		Severity:  "info",
	}, zap.Bool("safe", safe), zap.Int("finding_count", findingCount))
}
