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

// ProfileRepository defines the interface for quality profile data access.
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.QualityProfile) error

	// GetLatest returns the most recent profile for a dataset.
	GetLatest(ctx context.Context, datasetID uuid.UUID) (*models.QualityProfile, error)

	ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.QualityProfile, error)

	// PruneKeepNewest deletes all but the newest keep profiles per dataset
	// and returns the number of rows removed. Used by the retention job.
	PruneKeepNewest(ctx context.Context, keep int) (int64, error)
}

// profileRepository implements ProfileRepository using PostgreSQL.
type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new quality profile repository.
func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{pool: pool}
}

// Create inserts a new profile row. Metrics are stored as JSONB so reads
// return the full report without re-profiling the file.
func (r *profileRepository) Create(ctx context.Context, profile *models.QualityProfile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	profile.CreatedAt = time.Now().UTC()

	metrics, err := json.Marshal(profile.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal profile metrics: %w", err)
	}

	query := `
		INSERT INTO quality_profiles (id, dataset_id, quality_score, metrics, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = r.pool.Exec(ctx, query,
		profile.ID,
		profile.DatasetID,
		profile.QualityScore,
		metrics,
		profile.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create quality profile: %w", err)
	}

	return nil
}

// GetLatest retrieves the newest profile for a dataset.
func (r *profileRepository) GetLatest(ctx context.Context, datasetID uuid.UUID) (*models.QualityProfile, error) {
	query := `
		SELECT id, dataset_id, quality_score, metrics, created_at
		FROM quality_profiles
		WHERE dataset_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, datasetID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest profile: %w", err)
	}

	return profile, nil
}

// ListByDataset returns all profiles for a dataset, newest first.
func (r *profileRepository) ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.QualityProfile, error) {
	query := `
		SELECT id, dataset_id, quality_score, metrics, created_at
		FROM quality_profiles
		WHERE dataset_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.QualityProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}

// PruneKeepNewest removes old profiles, keeping the newest keep per dataset.
func (r *profileRepository) PruneKeepNewest(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be at least 1, got %d", keep)
	}

	query := `
		DELETE FROM quality_profiles
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY dataset_id ORDER BY created_at DESC) AS rank
				FROM quality_profiles
			) ranked
			WHERE rank > $1
		)`

	result, err := r.pool.Exec(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune profiles: %w", err)
	}

	return result.RowsAffected(), nil
}

func scanProfile(row pgx.Row) (*models.QualityProfile, error) {
	var p models.QualityProfile
	var metrics []byte

	err := row.Scan(
		&p.ID,
		&p.DatasetID,
		&p.QualityScore,
		&metrics,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(metrics, &p.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile metrics: %w", err)
	}

	return &p, nil
}

// Ensure profileRepository implements ProfileRepository at compile time.
var _ ProfileRepository = (*profileRepository)(nil)
