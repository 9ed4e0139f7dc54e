// Package repositories provides PostgreSQL data access for datasets,
// quality profiles, quality issues, and validation rules.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veracity-data/veracity-engine/pkg/apperrors"
	"github.com/veracity-data/veracity-engine/pkg/models"
)

// DatasetRepository defines the interface for dataset data access.
type DatasetRepository interface {
	Create(ctx context.Context, dataset *models.Dataset) error
	Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	List(ctx context.Context) ([]*models.Dataset, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// ListVersions returns every dataset in the version chain rooted at
	// rootID (the root itself included), ordered by version.
	ListVersions(ctx context.Context, rootID uuid.UUID) ([]*models.Dataset, error)

	// NextVersion returns the version number a new upload into the chain
	// rooted at rootID should get (max existing version + 1).
	NextVersion(ctx context.Context, rootID uuid.UUID) (int, error)

	// ListChildren returns the datasets whose parent is id, ordered by
	// version. Used to refuse deleting a root that still has versions.
	ListChildren(ctx context.Context, id uuid.UUID) ([]*models.Dataset, error)
}

// datasetRepository implements DatasetRepository using PostgreSQL.
type datasetRepository struct {
	pool *pgxpool.Pool
}

// NewDatasetRepository creates a new dataset repository.
func NewDatasetRepository(pool *pgxpool.Pool) DatasetRepository {
	return &datasetRepository{pool: pool}
}

const datasetColumns = `id, name, version, parent_id, stored_path, file_hash, size_bytes, total_rows, total_columns, created_at`

// Create inserts a new dataset row.
func (r *datasetRepository) Create(ctx context.Context, dataset *models.Dataset) error {
	if dataset.ID == uuid.Nil {
		dataset.ID = uuid.New()
	}
	if dataset.Version == 0 {
		dataset.Version = 1
	}
	dataset.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO datasets (id, name, version, parent_id, stored_path, file_hash, size_bytes, total_rows, total_columns, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		dataset.ID,
		dataset.Name,
		dataset.Version,
		dataset.ParentID,
		dataset.StoredPath,
		dataset.FileHash,
		dataset.SizeBytes,
		dataset.TotalRows,
		dataset.TotalColumns,
		dataset.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}

	return nil
}

// Get retrieves a dataset by ID.
func (r *datasetRepository) Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE id = $1`

	dataset, err := scanDataset(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	return dataset, nil
}

// List returns all datasets, newest first.
func (r *datasetRepository) List(ctx context.Context) ([]*models.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	return collectDatasets(rows)
}

// Delete removes a dataset by ID. Profiles, issues, and rules are removed
// via CASCADE; child versions are protected by the parent_id RESTRICT
// constraint, so callers must check ListChildren first.
func (r *datasetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM datasets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// ListVersions returns the whole version chain rooted at rootID.
func (r *datasetRepository) ListVersions(ctx context.Context, rootID uuid.UUID) ([]*models.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE id = $1 OR parent_id = $1 ORDER BY version`

	rows, err := r.pool.Query(ctx, query, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dataset versions: %w", err)
	}
	defer rows.Close()

	return collectDatasets(rows)
}

// NextVersion computes max(version)+1 over the chain rooted at rootID.
// An empty chain yields 2: version 1 is the root being uploaded onto.
func (r *datasetRepository) NextVersion(ctx context.Context, rootID uuid.UUID) (int, error) {
	query := `SELECT COALESCE(MAX(version), 1) + 1 FROM datasets WHERE id = $1 OR parent_id = $1`

	var next int
	if err := r.pool.QueryRow(ctx, query, rootID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to compute next version: %w", err)
	}

	return next, nil
}

// ListChildren returns direct dependents of the given dataset.
func (r *datasetRepository) ListChildren(ctx context.Context, id uuid.UUID) ([]*models.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE parent_id = $1 ORDER BY version`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list dataset children: %w", err)
	}
	defer rows.Close()

	return collectDatasets(rows)
}

func scanDataset(row pgx.Row) (*models.Dataset, error) {
	var d models.Dataset
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Version,
		&d.ParentID,
		&d.StoredPath,
		&d.FileHash,
		&d.SizeBytes,
		&d.TotalRows,
		&d.TotalColumns,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func collectDatasets(rows pgx.Rows) ([]*models.Dataset, error) {
	var datasets []*models.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		datasets = append(datasets, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating datasets: %w", err)
	}

	return datasets, nil
}

// Ensure datasetRepository implements DatasetRepository at compile time.
var _ DatasetRepository = (*datasetRepository)(nil)
