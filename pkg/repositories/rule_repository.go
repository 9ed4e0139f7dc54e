package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veracity-data/veracity-engine/pkg/apperrors"
	"github.com/veracity-data/veracity-engine/pkg/models"
)

// RuleRepository defines the interface for validation rule data access.
type RuleRepository interface {
	Create(ctx context.Context, rule *models.ValidationRule) error
	Get(ctx context.Context, id uuid.UUID) (*models.ValidationRule, error)
	ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.ValidationRule, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ruleRepository implements RuleRepository using PostgreSQL.
type ruleRepository struct {
	pool *pgxpool.Pool
}

// NewRuleRepository creates a new validation rule repository.
func NewRuleRepository(pool *pgxpool.Pool) RuleRepository {
	return &ruleRepository{pool: pool}
}

// Create inserts a new validation rule. Parameters are stored as JSONB.
func (r *ruleRepository) Create(ctx context.Context, rule *models.ValidationRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	rule.CreatedAt = time.Now().UTC()
	if rule.Parameters == nil {
		rule.Parameters = map[string]any{}
	}

	params, err := json.Marshal(rule.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal rule parameters: %w", err)
	}

	query := `
		INSERT INTO validation_rules (id, dataset_id, column_name, rule_type, parameters, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.pool.Exec(ctx, query,
		rule.ID,
		rule.DatasetID,
		rule.ColumnName,
		rule.RuleType,
		params,
		rule.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create validation rule: %w", err)
	}

	return nil
}

// Get retrieves a validation rule by ID.
func (r *ruleRepository) Get(ctx context.Context, id uuid.UUID) (*models.ValidationRule, error) {
	query := `
		SELECT id, dataset_id, column_name, rule_type, parameters, created_at
		FROM validation_rules
		WHERE id = $1`

	rule, err := scanRule(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get validation rule: %w", err)
	}

	return rule, nil
}

// ListByDataset returns a dataset's rules in creation order.
func (r *ruleRepository) ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.ValidationRule, error) {
	query := `
		SELECT id, dataset_id, column_name, rule_type, parameters, created_at
		FROM validation_rules
		WHERE dataset_id = $1
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list validation rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.ValidationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan validation rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating validation rules: %w", err)
	}

	return rules, nil
}

// Delete removes a validation rule by ID.
func (r *ruleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM validation_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete validation rule: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanRule(row pgx.Row) (*models.ValidationRule, error) {
	var rule models.ValidationRule
	var params []byte

	err := row.Scan(
		&rule.ID,
		&rule.DatasetID,
		&rule.ColumnName,
		&rule.RuleType,
		&params,
		&rule.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(params, &rule.Parameters); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule parameters: %w", err)
	}

	return &rule, nil
}

// Ensure ruleRepository implements RuleRepository at compile time.
var _ RuleRepository = (*ruleRepository)(nil)
