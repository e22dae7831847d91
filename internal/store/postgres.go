package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/custodian-sh/custodian/internal/models"
	"github.com/custodian-sh/custodian/pkg/ownership"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(config Config) (*PostgresStore, error) {
	dsn := config.DSN
	if dsn == "" {
		return nil, fmt.Errorf("PostgreSQL DSN is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(25) // Default
	}

	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(5) // Default
	}

	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute) // Default
	}

	if config.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	} else {
		db.SetConnMaxIdleTime(1 * time.Minute) // Default
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates tables if they don't exist
func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS resources (
		name TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		state JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_resources_kind ON resources(kind);

	CREATE TABLE IF NOT EXISTS transitions (
		id TEXT PRIMARY KEY,
		resource TEXT NOT NULL,
		action TEXT NOT NULL,
		from_kind TEXT NOT NULL,
		to_kind TEXT NOT NULL,
		sender TEXT NOT NULL,
		owner TEXT NOT NULL DEFAULT '',
		proposed TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transitions_resource ON transitions(resource, occurred_at);
	CREATE INDEX IF NOT EXISTS idx_transitions_occurred_at ON transitions(occurred_at);

	CREATE TABLE IF NOT EXISTS principals (
		id TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		key_hash TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetOwnership returns the ownership state for a resource. Unknown names
// yield the zero (uninitialized) state.
func (s *PostgresStore) GetOwnership(ctx context.Context, resource string) (ownership.State, error) {
	var stateJSON []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM resources WHERE name = $1`, resource).Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return ownership.State{}, nil
	}
	if err != nil {
		return ownership.State{}, fmt.Errorf("get ownership state: %w", err)
	}

	var state ownership.State
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return ownership.State{}, fmt.Errorf("parse ownership state: %w", err)
	}
	return state, nil
}

// InitializeOwnership applies an init event inside a transaction.
func (s *PostgresStore) InitializeOwnership(ctx context.Context, resource, sender string, init ownership.Init) (ownership.State, error) {
	return s.applyEvent(ctx, resource, sender, string(init.Action), func(current ownership.State) (ownership.State, error) {
		return ownership.Initialize(current, init)
	})
}

// UpdateOwnership applies an update event inside a transaction.
func (s *PostgresStore) UpdateOwnership(ctx context.Context, resource, sender string, update ownership.Update) (ownership.State, error) {
	return s.applyEvent(ctx, resource, sender, string(update.Action), func(current ownership.State) (ownership.State, error) {
		return ownership.Transition(current, sender, update)
	})
}

// applyEvent runs load -> dispatch -> persist -> audit atomically, locking
// the resource row against concurrent writers. FSM errors from the dispatch
// callback are returned unwrapped.
func (s *PostgresStore) applyEvent(ctx context.Context, resource, sender, action string, dispatch func(ownership.State) (ownership.State, error)) (ownership.State, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ownership.State{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		current   ownership.State
		stateJSON []byte
	)
	err = tx.QueryRowContext(ctx, `SELECT state FROM resources WHERE name = $1 FOR UPDATE`, resource).Scan(&stateJSON)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return ownership.State{}, fmt.Errorf("get ownership state: %w", err)
	default:
		if err := json.Unmarshal(stateJSON, &current); err != nil {
			return ownership.State{}, fmt.Errorf("parse ownership state: %w", err)
		}
	}

	next, err := dispatch(current)
	if err != nil {
		return ownership.State{}, err
	}

	nextJSON, err := json.Marshal(next)
	if err != nil {
		return ownership.State{}, fmt.Errorf("marshal ownership state: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO resources (name, kind, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (name) DO UPDATE SET kind = $2, state = $3, updated_at = $4
	`, resource, string(next.Kind), nextJSON, now)
	if err != nil {
		return ownership.State{}, fmt.Errorf("save ownership state: %w", err)
	}

	rec := newTransitionRecord(resource, sender, action, current, next)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transitions (id, resource, action, from_kind, to_kind, sender, owner, proposed, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.Resource, rec.Action, string(rec.FromKind), string(rec.ToKind), rec.Sender, rec.Owner, rec.Proposed, rec.OccurredAt)
	if err != nil {
		return ownership.State{}, fmt.Errorf("append transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ownership.State{}, fmt.Errorf("commit transaction: %w", err)
	}

	log.Printf("[ownership] %s: %s -> %s (%s by %s)", resource, rec.FromKind, rec.ToKind, action, sender)
	return next, nil
}

// ListResources returns all known resources, sorted by name
func (s *PostgresStore) ListResources(ctx context.Context) ([]*models.Resource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, state, created_at, updated_at
		FROM resources
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	resources := []*models.Resource{}
	for rows.Next() {
		var (
			res       models.Resource
			stateJSON []byte
		)
		if err := rows.Scan(&res.Name, &stateJSON, &res.CreatedAt, &res.UpdatedAt); err != nil {
			log.Printf("Warning: failed to scan resource row: %v", err)
			continue
		}
		if err := json.Unmarshal(stateJSON, &res.State); err != nil {
			log.Printf("Warning: failed to parse state for %s: %v", res.Name, err)
			continue
		}
		resources = append(resources, &res)
	}
	return resources, rows.Err()
}

// CountResourcesByKind aggregates resources by their state kind
func (s *PostgresStore) CountResourcesByKind(ctx context.Context) (map[ownership.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM resources GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count resources: %w", err)
	}
	defer rows.Close()

	counts := make(map[ownership.Kind]int)
	for rows.Next() {
		var (
			kind  string
			count int
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scan resource count: %w", err)
		}
		counts[ownership.Kind(kind)] = count
	}
	return counts, rows.Err()
}

// ListTransitions returns the audit trail for a resource, newest first
func (s *PostgresStore) ListTransitions(ctx context.Context, resource string, limit int) ([]models.TransitionRecord, error) {
	query := `
		SELECT id, resource, action, from_kind, to_kind, sender, owner, proposed, occurred_at
		FROM transitions
		WHERE resource = $1
		ORDER BY occurred_at DESC, id DESC
	`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+` LIMIT $2`, resource, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query, resource)
	}
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	return scanTransitions(rows)
}

// PruneTransitions drops audit records older than the cutoff
func (s *PostgresStore) PruneTransitions(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM transitions WHERE occurred_at < $1`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune transitions: %w", err)
	}
	return result.RowsAffected()
}

// Principal operations

// CreatePrincipal stores a new principal
func (s *PostgresStore) CreatePrincipal(ctx context.Context, principal *models.Principal) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO principals (id, role, key_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, principal.ID, string(principal.Role), principal.KeyHash, principal.CreatedAt)
	if err != nil {
		return fmt.Errorf("create principal: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPrincipalExists
	}
	return nil
}

// GetPrincipal retrieves a principal by ID
func (s *PostgresStore) GetPrincipal(ctx context.Context, id string) (*models.Principal, error) {
	var principal models.Principal
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, role, key_hash, created_at FROM principals WHERE id = $1
	`, id).Scan(&principal.ID, &role, &principal.KeyHash, &principal.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get principal: %w", err)
	}
	principal.Role = models.Role(role)
	return &principal, nil
}

// ListPrincipals returns all principals, sorted by ID
func (s *PostgresStore) ListPrincipals(ctx context.Context) ([]*models.Principal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, key_hash, created_at FROM principals ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query principals: %w", err)
	}
	defer rows.Close()

	principals := []*models.Principal{}
	for rows.Next() {
		var (
			principal models.Principal
			role      string
		)
		if err := rows.Scan(&principal.ID, &role, &principal.KeyHash, &principal.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan principal: %w", err)
		}
		principal.Role = models.Role(role)
		principals = append(principals, &principal)
	}
	return principals, rows.Err()
}

// DeletePrincipal removes a principal
func (s *PostgresStore) DeletePrincipal(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM principals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete principal: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

// HealthCheck verifies the database connection
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
