package models

import (
	"time"

	"github.com/google/uuid"
)

// Dataset represents one uploaded CSV file. Stored in datasets table.
//
// Versions form a flat chain: every non-root version's ParentID points at the
// chain root, not at the previous version, so listing a chain is a single
// equality query.
type Dataset struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Version      int        `json:"version"`
	ParentID     *uuid.UUID `json:"parent_id,omitempty"` // chain root; nil for roots
	StoredPath   string     `json:"-"`                   // server-side file location
	FileHash     string     `json:"file_hash"`           // sha256 of the raw upload
	SizeBytes    int64      `json:"size_bytes"`
	TotalRows    int        `json:"total_rows"`
	TotalColumns int        `json:"total_columns"`
	CreatedAt    time.Time  `json:"created_at"`
}

// RootID returns the id of the version chain this dataset belongs to.
func (d *Dataset) RootID() uuid.UUID {
	if d.ParentID != nil {
		return *d.ParentID
	}
	return d.ID
}
