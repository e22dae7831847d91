package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodian-sh/custodian/internal/models"
	"github.com/custodian-sh/custodian/pkg/ownership"
)

const (
	redisResourcePrefix = "custodian:resource:"
	redisAuditPrefix    = "custodian:audit:"
	redisResourcesKey   = "custodian:resources"
	redisPrincipalsKey  = "custodian:principals"

	// Retries for optimistic (WATCH) transactions that lose a race.
	redisTxRetries = 5
)

// RedisStore implements Store using Redis. Ownership records are JSON values,
// audit trails are lists with the newest record at the head, and writes go
// through WATCH transactions for optimistic concurrency.
type RedisStore struct {
	client *redis.Client
}

// resourceRecord is the stored shape of one ownership record.
type resourceRecord struct {
	State     ownership.State `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// principalRecord is the stored shape of a principal. models.Principal hides
// the key hash from JSON, so storage needs its own encoding.
type principalRecord struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	KeyHash   string    `json:"key_hash"`
	CreatedAt time.Time `json:"created_at"`
}

func toPrincipalRecord(p *models.Principal) principalRecord {
	return principalRecord{
		ID:        p.ID,
		Role:      string(p.Role),
		KeyHash:   p.KeyHash,
		CreatedAt: p.CreatedAt,
	}
}

func (r principalRecord) principal() *models.Principal {
	return &models.Principal{
		ID:        r.ID,
		Role:      models.Role(r.Role),
		KeyHash:   r.KeyHash,
		CreatedAt: r.CreatedAt,
	}
}

// NewRedisStore creates a new Redis store. The DSN is either a plain
// host:port address or a redis:// URL.
func NewRedisStore(config Config) (*RedisStore, error) {
	dsn := config.DSN
	if dsn == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	var opts *redis.Options
	if strings.Contains(dsn, "://") {
		var err error
		opts, err = redis.ParseURL(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
	} else {
		opts = &redis.Options{Addr: dsn}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func resourceKey(name string) string { return redisResourcePrefix + name }
func auditKey(name string) string    { return redisAuditPrefix + name }

// GetOwnership returns the ownership state for a resource. Unknown names
// yield the zero (uninitialized) state.
func (s *RedisStore) GetOwnership(ctx context.Context, resource string) (ownership.State, error) {
	raw, err := s.client.Get(ctx, resourceKey(resource)).Result()
	if errors.Is(err, redis.Nil) {
		return ownership.State{}, nil
	}
	if err != nil {
		return ownership.State{}, fmt.Errorf("get ownership state: %w", err)
	}

	var record resourceRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return ownership.State{}, fmt.Errorf("parse ownership state: %w", err)
	}
	return record.State, nil
}

// InitializeOwnership applies an init event inside a WATCH transaction.
func (s *RedisStore) InitializeOwnership(ctx context.Context, resource, sender string, init ownership.Init) (ownership.State, error) {
	return s.applyEvent(ctx, resource, sender, string(init.Action), func(current ownership.State) (ownership.State, error) {
		return ownership.Initialize(current, init)
	})
}

// UpdateOwnership applies an update event inside a WATCH transaction.
func (s *RedisStore) UpdateOwnership(ctx context.Context, resource, sender string, update ownership.Update) (ownership.State, error) {
	return s.applyEvent(ctx, resource, sender, string(update.Action), func(current ownership.State) (ownership.State, error) {
		return ownership.Transition(current, sender, update)
	})
}

// applyEvent runs load -> dispatch -> persist -> audit under WATCH, retrying
// when a concurrent writer invalidates the transaction. FSM errors from the
// dispatch callback are returned unwrapped.
func (s *RedisStore) applyEvent(ctx context.Context, resource, sender, action string, dispatch func(ownership.State) (ownership.State, error)) (ownership.State, error) {
	key := resourceKey(resource)
	var next ownership.State

	txn := func(tx *redis.Tx) error {
		var record resourceRecord
		raw, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("get ownership state: %w", err)
		default:
			if err := json.Unmarshal([]byte(raw), &record); err != nil {
				return fmt.Errorf("parse ownership state: %w", err)
			}
		}

		var dispatchErr error
		next, dispatchErr = dispatch(record.State)
		if dispatchErr != nil {
			return dispatchErr
		}

		now := time.Now().UTC()
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		rec := newTransitionRecord(resource, sender, action, record.State, next)
		record.State = next
		record.UpdatedAt = now

		recordJSON, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal ownership state: %w", err)
		}
		auditJSON, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal transition: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, recordJSON, 0)
			pipe.LPush(ctx, auditKey(resource), auditJSON)
			pipe.SAdd(ctx, redisResourcesKey, resource)
			return nil
		})
		if err != nil {
			return err
		}

		log.Printf("[ownership] %s: %s -> %s (%s by %s)", resource, rec.FromKind, rec.ToKind, action, sender)
		return nil
	}

	for i := 0; i < redisTxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // Lost the race against another writer
		}
		return ownership.State{}, err
	}
	return ownership.State{}, fmt.Errorf("update ownership for %s: transaction retries exhausted", resource)
}

// ListResources returns all known resources, sorted by name
func (s *RedisStore) ListResources(ctx context.Context) ([]*models.Resource, error) {
	names, err := s.client.SMembers(ctx, redisResourcesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	sort.Strings(names)

	resources := make([]*models.Resource, 0, len(names))
	for _, name := range names {
		raw, err := s.client.Get(ctx, resourceKey(name)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get resource %s: %w", name, err)
		}

		var record resourceRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			log.Printf("Warning: failed to parse state for %s: %v", name, err)
			continue
		}
		resources = append(resources, &models.Resource{
			Name:      name,
			State:     record.State,
			CreatedAt: record.CreatedAt,
			UpdatedAt: record.UpdatedAt,
		})
	}
	return resources, nil
}

// CountResourcesByKind aggregates resources by their state kind
func (s *RedisStore) CountResourcesByKind(ctx context.Context) (map[ownership.Kind]int, error) {
	resources, err := s.ListResources(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[ownership.Kind]int)
	for _, res := range resources {
		counts[res.State.Kind]++
	}
	return counts, nil
}

// ListTransitions returns the audit trail for a resource, newest first
func (s *RedisStore) ListTransitions(ctx context.Context, resource string, limit int) ([]models.TransitionRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raws, err := s.client.LRange(ctx, auditKey(resource), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}

	recs := make([]models.TransitionRecord, 0, len(raws))
	for _, raw := range raws {
		var rec models.TransitionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			log.Printf("Warning: failed to parse transition for %s: %v", resource, err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// PruneTransitions drops audit records older than the cutoff. Each audit list
// is rewritten under WATCH so concurrent appends are not lost.
func (s *RedisStore) PruneTransitions(ctx context.Context, olderThan time.Time) (int64, error) {
	names, err := s.client.SMembers(ctx, redisResourcesKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list resources: %w", err)
	}

	var pruned int64
	for _, name := range names {
		key := auditKey(name)

		txn := func(tx *redis.Tx) error {
			raws, err := tx.LRange(ctx, key, 0, -1).Result()
			if err != nil {
				return err
			}

			kept := make([]interface{}, 0, len(raws))
			var dropped int64
			for _, raw := range raws {
				var rec models.TransitionRecord
				if err := json.Unmarshal([]byte(raw), &rec); err != nil {
					kept = append(kept, raw)
					continue
				}
				if rec.OccurredAt.Before(olderThan) {
					dropped++
					continue
				}
				kept = append(kept, raw)
			}
			if dropped == 0 {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				if len(kept) > 0 {
					pipe.RPush(ctx, key, kept...)
				}
				return nil
			})
			if err != nil {
				return err
			}
			pruned += dropped
			return nil
		}

		for i := 0; i < redisTxRetries; i++ {
			err := s.client.Watch(ctx, txn, key)
			if err == nil {
				break
			}
			if errors.Is(err, redis.TxFailedErr) {
				continue
			}
			return pruned, fmt.Errorf("prune transitions for %s: %w", name, err)
		}
	}
	return pruned, nil
}

// Principal operations

// CreatePrincipal stores a new principal
func (s *RedisStore) CreatePrincipal(ctx context.Context, principal *models.Principal) error {
	raw, err := json.Marshal(toPrincipalRecord(principal))
	if err != nil {
		return fmt.Errorf("marshal principal: %w", err)
	}

	created, err := s.client.HSetNX(ctx, redisPrincipalsKey, principal.ID, raw).Result()
	if err != nil {
		return fmt.Errorf("create principal: %w", err)
	}
	if !created {
		return ErrPrincipalExists
	}
	return nil
}

// GetPrincipal retrieves a principal by ID
func (s *RedisStore) GetPrincipal(ctx context.Context, id string) (*models.Principal, error) {
	raw, err := s.client.HGet(ctx, redisPrincipalsKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get principal: %w", err)
	}

	var record principalRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("parse principal: %w", err)
	}
	return record.principal(), nil
}

// ListPrincipals returns all principals, sorted by ID
func (s *RedisStore) ListPrincipals(ctx context.Context) ([]*models.Principal, error) {
	raws, err := s.client.HGetAll(ctx, redisPrincipalsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("query principals: %w", err)
	}

	principals := make([]*models.Principal, 0, len(raws))
	for id, raw := range raws {
		var record principalRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			log.Printf("Warning: failed to parse principal %s: %v", id, err)
			continue
		}
		principals = append(principals, record.principal())
	}
	sort.Slice(principals, func(i, j int) bool {
		return principals[i].ID < principals[j].ID
	})
	return principals, nil
}

// DeletePrincipal removes a principal
func (s *RedisStore) DeletePrincipal(ctx context.Context, id string) error {
	removed, err := s.client.HDel(ctx, redisPrincipalsKey, id).Result()
	if err != nil {
		return fmt.Errorf("delete principal: %w", err)
	}
	if removed == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

// HealthCheck verifies the Redis connection
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
