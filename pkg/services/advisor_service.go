package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/apperrors"
	"github.com/veracity-data/veracity-engine/pkg/llm"
	"github.com/veracity-data/veracity-engine/pkg/metrics"
	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/prompts"
	"github.com/veracity-data/veracity-engine/pkg/repositories"
	"github.com/veracity-data/veracity-engine/pkg/retry"
	"github.com/veracity-data/veracity-engine/pkg/stats"
	"github.com/veracity-data/veracity-engine/pkg/tabular"
)

// Advisory operation names used for metrics labels.
const (
	OpAnalyzeQuality = "analyze_quality"
	OpSuggestRules   = "suggest_rules"
	OpExplainIssue   = "explain_issue"
)

// maxSampleValues caps how many example cells the rule suggestion prompt
// carries per column.
const maxSampleValues = 10

// AdvisorService defines the interface for AI-backed advisory operations.
// All operations fail with apperrors.ErrAIUnavailable when no API key is
// configured; the engine itself never depends on advisory availability.
type AdvisorService interface {
	// AnalyzeQuality asks the advisor for a structured verdict on the
	// dataset's latest stored profile and issues.
	AnalyzeQuality(ctx context.Context, datasetID uuid.UUID) (*models.QualityAnalysis, error)

	// SuggestRules asks the advisor for validation rules for one column,
	// based on the column's current values.
	SuggestRules(ctx context.Context, datasetID uuid.UUID, columnName string) (*models.RuleSuggestions, error)

	// ExplainIssue asks the advisor for a plain-language explanation of a
	// quality issue, with one suggested fix.
	ExplainIssue(ctx context.Context, issueType, columnName, description string) (string, error)

	// ExplainStoredIssue explains a finding from the dataset's last
	// profiling run, addressed by its stored ID.
	ExplainStoredIssue(ctx context.Context, datasetID, issueID uuid.UUID) (string, error)
}

// advisorService implements AdvisorService.
type advisorService struct {
	chat     llm.ChatClient
	breaker  *llm.CircuitBreaker
	datasets repositories.DatasetRepository
	profiles repositories.ProfileRepository
	issues   repositories.IssueRepository
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewAdvisorService creates a new advisor service. chat may be nil when the
// advisor is not configured; every operation then fails fast with
// apperrors.ErrAIUnavailable.
func NewAdvisorService(
	chat llm.ChatClient,
	datasets repositories.DatasetRepository,
	profiles repositories.ProfileRepository,
	issues repositories.IssueRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) AdvisorService {
	return &advisorService{
		chat:     chat,
		breaker:  llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig()),
		datasets: datasets,
		profiles: profiles,
		issues:   issues,
		metrics:  m,
		logger:   logger.Named("advisor_service"),
	}
}

// AnalyzeQuality builds the analysis prompt from the latest stored profile
// and asks for a strict-JSON verdict.
func (s *advisorService) AnalyzeQuality(ctx context.Context, datasetID uuid.UUID) (*models.QualityAnalysis, error) {
	if _, err := s.datasets.Get(ctx, datasetID); err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetLatest(ctx, datasetID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNoProfile
		}
		return nil, err
	}

	issueList, err := s.issues.ListByDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	prompt := prompts.BuildQualityAnalysisPrompt(reportContext(profile), issueContexts(issueList))
	response, err := s.generate(ctx, OpAnalyzeQuality, prompt, prompts.BuildQualityAnalysisSystemMessage(), 0.3, 1024)
	if err != nil {
		return nil, err
	}

	analysis, err := llm.ParseJSONResponse[models.QualityAnalysis](response)
	if err != nil {
		s.metrics.RecordAdvisoryRequest(OpAnalyzeQuality, "error")
		s.logger.Error("Failed to parse quality analysis response",
			zap.String("dataset_id", datasetID.String()),
			zap.String("response_preview", truncate(response, 200)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to parse advisor response: %w", err)
	}

	return &analysis, nil
}

// SuggestRules asks the advisor for validation rules for one column.
func (s *advisorService) SuggestRules(ctx context.Context, datasetID uuid.UUID, columnName string) (*models.RuleSuggestions, error) {
	dataset, err := s.datasets.Get(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	table, err := loadStoredTable(dataset)
	if err != nil {
		return nil, err
	}

	col, ok := table.Column(columnName)
	if !ok {
		return nil, fmt.Errorf("column %q: %w", columnName, apperrors.ErrNotFound)
	}

	prompt := prompts.BuildRuleSuggestionPrompt(columnContext(col))
	response, err := s.generate(ctx, OpSuggestRules, prompt, prompts.BuildRuleSuggestionSystemMessage(), 0.2, 512)
	if err != nil {
		return nil, err
	}

	suggestions, err := llm.ParseJSONResponse[models.RuleSuggestions](response)
	if err != nil {
		s.metrics.RecordAdvisoryRequest(OpSuggestRules, "error")
		s.logger.Error("Failed to parse rule suggestion response",
			zap.String("dataset_id", datasetID.String()),
			zap.String("column", columnName),
			zap.String("response_preview", truncate(response, 200)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to parse advisor response: %w", err)
	}

	return &suggestions, nil
}

// ExplainIssue asks for a short plain-language explanation. The answer is
// free text, not JSON, and uses no system message.
func (s *advisorService) ExplainIssue(ctx context.Context, issueType, columnName, description string) (string, error) {
	prompt := prompts.BuildIssueExplanationPrompt(prompts.IssueContext{
		Type:        issueType,
		Column:      columnName,
		Description: description,
	})

	response, err := s.generate(ctx, OpExplainIssue, prompt, "", 0.4, 200)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(response), nil
}

// ExplainStoredIssue looks up a finding from the dataset's last profiling
// run and explains it.
func (s *advisorService) ExplainStoredIssue(ctx context.Context, datasetID, issueID uuid.UUID) (string, error) {
	if _, err := s.datasets.Get(ctx, datasetID); err != nil {
		return "", err
	}

	issueList, err := s.issues.ListByDataset(ctx, datasetID)
	if err != nil {
		return "", err
	}

	for _, issue := range issueList {
		if issue.ID == issueID {
			return s.ExplainIssue(ctx, issue.IssueType, issue.ColumnName, issue.Description)
		}
	}

	return "", fmt.Errorf("issue %s: %w", issueID, apperrors.ErrNotFound)
}

// generate runs one advisory call through the circuit breaker with retries
// on transient failures.
func (s *advisorService) generate(ctx context.Context, operation, prompt, systemMessage string, temperature float64, maxTokens int) (string, error) {
	if s.chat == nil {
		return "", apperrors.ErrAIUnavailable
	}

	allowed, err := s.breaker.Allow()
	if !allowed {
		s.logger.Error("Circuit breaker prevented AI advisory call",
			zap.String("operation", operation),
			zap.String("circuit_state", s.breaker.State().String()),
			zap.Int("consecutive_failures", s.breaker.ConsecutiveFailures()),
			zap.Error(err))
		s.metrics.RecordAdvisoryRequest(operation, "error")
		return "", err
	}

	var response string
	err = retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		var callErr error
		response, callErr = s.chat.GenerateResponse(ctx, prompt, systemMessage, temperature, maxTokens)
		if callErr != nil && llm.IsRetryable(callErr) {
			s.logger.Warn("AI advisory call failed, retrying",
				zap.String("operation", operation),
				zap.Error(callErr))
		}
		return callErr
	})
	if err != nil {
		s.breaker.RecordFailure()
		s.metrics.RecordAdvisoryRequest(operation, "error")
		s.logger.Error("AI advisory call failed",
			zap.String("operation", operation),
			zap.String("model", s.chat.GetModel()),
			zap.String("circuit_state", s.breaker.State().String()),
			zap.Error(err))
		return "", fmt.Errorf("AI advisory call failed: %w", err)
	}

	s.breaker.RecordSuccess()
	s.metrics.RecordAdvisoryRequest(operation, "ok")
	return response, nil
}

// reportContext flattens a stored profile into the prompt context.
func reportContext(profile *models.QualityProfile) prompts.QualityReportContext {
	rc := prompts.QualityReportContext{
		QualityScore: profile.QualityScore,
	}

	p := profile.Metrics.Profile
	if p == nil {
		return rc
	}

	rc.TotalRows = p.TotalRows
	rc.TotalColumns = p.TotalColumns
	rc.Columns = p.Columns
	rc.Duplicates = p.Duplicates
	rc.DuplicatesPercentage = p.DuplicatesPercentage
	rc.MissingPercentage = p.MissingPercentage

	if len(p.NumericStats) > 0 {
		rc.NumericStats = make(map[string]prompts.NumericStatsContext, len(p.NumericStats))
		for name, ns := range p.NumericStats {
			rc.NumericStats[name] = prompts.NumericStatsContext{
				Min:    ns.Min,
				Max:    ns.Max,
				Mean:   ns.Mean,
				Median: ns.Median,
				Std:    ns.Std,
			}
		}
	}

	return rc
}

func issueContexts(issues []*models.QualityIssue) []prompts.IssueContext {
	contexts := make([]prompts.IssueContext, 0, len(issues))
	for _, issue := range issues {
		contexts = append(contexts, prompts.IssueContext{
			Type:         issue.IssueType,
			Severity:     issue.Severity,
			Column:       issue.ColumnName,
			Description:  issue.Description,
			AffectedRows: issue.AffectedRows,
		})
	}
	return contexts
}

// columnContext describes a column for the rule suggestion prompt: its
// kind, the first few non-missing values, and numeric stats when they
// apply.
func columnContext(col *tabular.Column) prompts.ColumnRuleContext {
	cc := prompts.ColumnRuleContext{
		Name: col.Name,
		Kind: string(col.Kind),
	}

	for _, cell := range col.Cells {
		if cell.Missing {
			continue
		}
		cc.SampleValues = append(cc.SampleValues, cell.String())
		if len(cc.SampleValues) == maxSampleValues {
			break
		}
	}

	if col.Kind == tabular.KindNumeric {
		if values := col.Values(); len(values) > 0 {
			cc.Stats = &prompts.NumericStatsContext{
				Min:    roundPtr(stats.Min(values)),
				Max:    roundPtr(stats.Max(values)),
				Mean:   roundPtr(stats.Mean(values)),
				Median: roundPtr(stats.Median(values)),
				Std:    roundPtr(stats.StandardDeviation(values)),
			}
		}
	}

	return cc
}

func roundPtr(v float64) *float64 {
	r := stats.Round(v, 2)
	return &r
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Ensure advisorService implements AdvisorService at compile time.
var _ AdvisorService = (*advisorService)(nil)
