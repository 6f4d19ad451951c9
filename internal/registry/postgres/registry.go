package postgres

import (
	"context"
	"database/sql"
	"errors"

	storagepg "energy-subsidy/internal/storage/postgres"
)

// Registry allocates installation identifiers from a database sequence so
// ids stay unique across processes.
type Registry struct {
	db *sql.DB
}

// NewRegistry constructs a postgres-backed registry.
func NewRegistry(db *sql.DB) *Registry {
	if db == nil {
		return nil
	}
	return &Registry{db: db}
}

// NextInstallationID allocates the next identifier.
func (r *Registry) NextInstallationID(ctx context.Context) (uint64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("registry: nil db")
	}
	var id uint64
	row := storagepg.From(ctx, r.db).QueryRowContext(ctx, `SELECT nextval('installation_ids')`)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
