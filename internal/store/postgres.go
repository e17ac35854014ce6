package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/curvelabs/launchpad/internal/workflow"
)

// Postgres is the PostgreSQL-backed WorkflowStore.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres opens a connection and verifies it.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgresFromDB wraps an existing handle, mainly for tests.
func NewPostgresFromDB(db *sql.DB) *Postgres {
	return &Postgres{db: sqlx.NewDb(db, "postgres")}
}

// Migrate applies pending schema migrations from migrationsPath.
func (p *Postgres) Migrate(migrationsPath string) error {
	driver, err := postgres.WithInstance(p.db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (p *Postgres) Close() error { return p.db.Close() }

type workflowRow struct {
	ID        string `db:"id"`
	Owner     string `db:"owner"`
	Name      string `db:"name"`
	Snapshot  []byte `db:"snapshot"`
	UpdatedAt string `db:"updated_at"`
}

// SaveWorkflow upserts a snapshot keyed by workflow ID.
func (p *Postgres) SaveWorkflow(ctx context.Context, snap workflow.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO workflows (id, owner, name, snapshot, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at
	`, snap.ID, snap.Owner, snap.Name, payload, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}
	return nil
}

// GetWorkflow returns a snapshot by ID.
func (p *Postgres) GetWorkflow(ctx context.Context, id string) (workflow.Snapshot, error) {
	var payload []byte
	err := p.db.GetContext(ctx, &payload, `SELECT snapshot FROM workflows WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return workflow.Snapshot{}, fmt.Errorf("get workflow: %w", err)
	}

	var snap workflow.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return workflow.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// ListWorkflows returns snapshots for an owner, newest first.
func (p *Postgres) ListWorkflows(ctx context.Context, owner string) ([]workflow.Snapshot, error) {
	rows, err := p.db.QueryxContext(ctx, `
		SELECT snapshot FROM workflows WHERE owner = $1 ORDER BY updated_at DESC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var out []workflow.Snapshot
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var snap workflow.Snapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

var _ WorkflowStore = (*Postgres)(nil)
