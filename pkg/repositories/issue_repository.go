package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veracity-data/veracity-engine/pkg/models"
)

// IssueRepository defines the interface for quality issue data access.
type IssueRepository interface {
	// ReplaceForDataset atomically swaps the dataset's issue list for the
	// findings of a new profiling run. Issues have no identity across runs.
	ReplaceForDataset(ctx context.Context, datasetID uuid.UUID, issues []*models.QualityIssue) error

	ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.QualityIssue, error)
}

// issueRepository implements IssueRepository using PostgreSQL.
type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository creates a new quality issue repository.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

// ReplaceForDataset deletes previous issues and inserts the new set in one
// transaction, so readers never observe a half-replaced list.
func (r *issueRepository) ReplaceForDataset(ctx context.Context, datasetID uuid.UUID, issues []*models.QualityIssue) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `DELETE FROM quality_issues WHERE dataset_id = $1`, datasetID); err != nil {
		return fmt.Errorf("failed to clear previous issues: %w", err)
	}

	query := `
		INSERT INTO quality_issues (id, dataset_id, issue_type, severity, column_name, description, affected_rows, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	now := time.Now().UTC()
	for _, issue := range issues {
		if issue.ID == uuid.Nil {
			issue.ID = uuid.New()
		}
		issue.DatasetID = datasetID
		issue.CreatedAt = now

		_, err := tx.Exec(ctx, query,
			issue.ID,
			issue.DatasetID,
			issue.IssueType,
			issue.Severity,
			nullableString(issue.ColumnName),
			issue.Description,
			issue.AffectedRows,
			issue.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert issue: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit issue replacement: %w", err)
	}

	return nil
}

// ListByDataset returns a dataset's issues ordered by severity then type,
// so high-severity findings surface first.
func (r *issueRepository) ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.QualityIssue, error) {
	query := `
		SELECT id, dataset_id, issue_type, severity, column_name, description, affected_rows, created_at
		FROM quality_issues
		WHERE dataset_id = $1
		ORDER BY CASE severity WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, issue_type`

	rows, err := r.pool.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	var issues []*models.QualityIssue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, issue)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issues: %w", err)
	}

	return issues, nil
}

func scanIssue(row pgx.Row) (*models.QualityIssue, error) {
	var issue models.QualityIssue
	var columnName *string

	err := row.Scan(
		&issue.ID,
		&issue.DatasetID,
		&issue.IssueType,
		&issue.Severity,
		&columnName,
		&issue.Description,
		&issue.AffectedRows,
		&issue.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if columnName != nil {
		issue.ColumnName = *columnName
	}

	return &issue, nil
}

// nullableString maps "" to SQL NULL for dataset-level issues that have no
// column.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Ensure issueRepository implements IssueRepository at compile time.
var _ IssueRepository = (*issueRepository)(nil)
