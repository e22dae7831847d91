package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/custodian-sh/custodian/internal/models"
	"github.com/custodian-sh/custodian/pkg/ownership"
)

// Store defines the interface for registry persistence.
// Memory, SQLite, PostgreSQL and Redis implement this interface.
type Store interface {
	// Ownership operations. GetOwnership returns the zero (uninitialized)
	// state for names that were never written. InitializeOwnership and
	// UpdateOwnership apply the event transactionally, persist the resulting
	// state and append an audit record; FSM errors pass through unwrapped so
	// callers can match them with errors.Is.
	GetOwnership(ctx context.Context, resource string) (ownership.State, error)
	InitializeOwnership(ctx context.Context, resource, sender string, init ownership.Init) (ownership.State, error)
	UpdateOwnership(ctx context.Context, resource, sender string, update ownership.Update) (ownership.State, error)
	ListResources(ctx context.Context) ([]*models.Resource, error)
	CountResourcesByKind(ctx context.Context) (map[ownership.Kind]int, error)

	// Audit operations
	ListTransitions(ctx context.Context, resource string, limit int) ([]models.TransitionRecord, error)
	PruneTransitions(ctx context.Context, olderThan time.Time) (int64, error)

	// Principal operations
	CreatePrincipal(ctx context.Context, principal *models.Principal) error
	GetPrincipal(ctx context.Context, id string) (*models.Principal, error)
	ListPrincipals(ctx context.Context) ([]*models.Principal, error)
	DeletePrincipal(ctx context.Context, id string) error

	// Lifecycle
	HealthCheck(ctx context.Context) error
	Close() error
}

// Config holds store configuration
type Config struct {
	Type string // "memory", "sqlite", "postgres" or "redis"
	DSN  string // Connection string (postgres, redis)

	// PostgreSQL specific
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// SQLite specific
	Path string
}

// NewStore creates a store based on configuration
func NewStore(config Config) (Store, error) {
	switch config.Type {
	case "postgres", "postgresql":
		return NewPostgresStore(config)
	case "redis":
		return NewRedisStore(config)
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "":
		path := config.Path
		if path == "" {
			path = config.DSN
		}
		if path == "" {
			path = "custodian.db"
		}
		return NewSQLiteStore(path)
	default:
		return nil, ErrUnsupportedStore
	}
}

var (
	ErrUnsupportedStore = NewError("unsupported store type")
)

// NewError creates a new error with message
func NewError(message string) error {
	return &storeError{message: message}
}

type storeError struct {
	message string
}

func (e *storeError) Error() string {
	return e.message
}

// newTransitionRecord builds the audit entry for a state change. Owner and
// Proposed carry the post-transition values; a missing from state is recorded
// as uninitialized.
func newTransitionRecord(resource, sender, action string, from, to ownership.State) models.TransitionRecord {
	fromKind := from.Kind
	if fromKind == "" {
		fromKind = ownership.KindUninitialized
	}
	rec := models.TransitionRecord{
		ID:         uuid.New().String(),
		Resource:   resource,
		Action:     action,
		FromKind:   fromKind,
		ToKind:     to.Kind,
		Sender:     sender,
		OccurredAt: time.Now().UTC(),
	}
	if owner, ok := to.Current(); ok {
		rec.Owner = owner
	}
	if proposed, ok := to.ProposedOwner(); ok {
		rec.Proposed = proposed
	}
	return rec
}
