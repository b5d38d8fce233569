package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/state"
)

// DefaultTable is the table PostgresRepository uses unless told otherwise.
const DefaultTable = "state_sessions"

// DBTX is the subset of *sql.DB used by PostgresRepository.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresRepository stores snapshots as JSONB rows, one per session id.
type PostgresRepository struct {
	db    DBTX
	table string
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository uses db and table (DefaultTable when empty). Call
// EnsureSchema once before first use.
func NewPostgresRepository(db DBTX, table string) *PostgresRepository {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresRepository{db: db, table: pq.QuoteIdentifier(table)}
}

// OpenPostgresRepository connects with the lib/pq driver, verifies the
// connection and creates the table if needed. The returned *sql.DB must be
// closed by the caller.
func OpenPostgresRepository(ctx context.Context, dbURL string) (*PostgresRepository, *sql.DB, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, nil, jherrors.NewConfigError("error opening db", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	repo := NewPostgresRepository(db, DefaultTable)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, db, nil
}

// EnsureSchema creates the sessions table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	snapshot JSONB NOT NULL,
	snapshot_at TIMESTAMPTZ NOT NULL,
	saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, r.table))
	if err != nil {
		return fmt.Errorf("failed to create session table: %w", describe(err))
	}
	return nil
}

// Save upserts the snapshot.
func (r *PostgresRepository) Save(ctx context.Context, id string, snap *state.Snapshot) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	data, err := marshal(snap)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, snapshot, snapshot_at, saved_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET snapshot = EXCLUDED.snapshot, snapshot_at = EXCLUDED.snapshot_at, saved_at = now()`, r.table),
		id, string(data), snap.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save session '%s': %w", id, describe(err))
	}
	return nil
}

// Load reads a snapshot.
func (r *PostgresRepository) Load(ctx context.Context, id string) (*state.Snapshot, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	var data []byte
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT snapshot FROM %s WHERE id = $1`, r.table), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jherrors.NewSnapshotNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session '%s': %w", id, describe(err))
	}
	return unmarshal(data)
}

// List returns the stored sessions, most recently saved first.
func (r *PostgresRepository) List(ctx context.Context) ([]Info, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, saved_at, octet_length(snapshot::text) FROM %s ORDER BY saved_at DESC, id`, r.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", describe(err))
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.ID, &info.SavedAt, &info.Size); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		info.SavedAt = info.SavedAt.UTC()
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", describe(err))
	}
	return infos, nil
}

// Delete removes a snapshot.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table), id)
	if err != nil {
		return fmt.Errorf("failed to delete session '%s': %w", id, describe(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session '%s': %w", id, err)
	}
	if n == 0 {
		return jherrors.NewSnapshotNotFoundError(id)
	}
	return nil
}

// describe adds the SQLSTATE code and its condition name to driver errors.
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%w (code %s %s)", err, pqErr.Code, pqErr.Code.Name())
	}
	return err
}
