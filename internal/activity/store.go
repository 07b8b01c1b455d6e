// Package activity remembers which inbound activities were already answered
// so a redelivered activity does not produce a second reply.
package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store records processed activity ids per conversation.
type Store interface {
	AlreadyProcessed(ctx context.Context, conversationID, activityID string) (bool, error)
	// MarkProcessed records the activity and reports whether it was new.
	MarkProcessed(ctx context.Context, conversationID, activityID string) (bool, error)
}

var errMissingID = errors.New("activity: conversation and activity ids required")

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore keeps processed activities in Postgres.
type ProcessedStore struct {
	pool rowQuerier
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("activity: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

func newProcessedStoreWithExec(exec rowQuerier) *ProcessedStore {
	if exec == nil {
		panic("activity: exec required")
	}
	return &ProcessedStore{pool: exec}
}

// AlreadyProcessed checks whether the activity was recorded.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, conversationID, activityID string) (bool, error) {
	query := `SELECT 1 FROM processed_activities WHERE conversation_id = $1 AND activity_id = $2`
	var exists int
	if err := s.pool.QueryRow(ctx, query, conversationID, activityID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("activity: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed inserts the activity, returning false if it already exists.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, conversationID, activityID string) (bool, error) {
	if strings.TrimSpace(conversationID) == "" || strings.TrimSpace(activityID) == "" {
		return false, errMissingID
	}
	query := `
		INSERT INTO processed_activities (conversation_id, activity_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, conversationID, activityID)
	if err != nil {
		return false, fmt.Errorf("activity: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// PurgeBefore deletes records older than cutoff and returns how many went.
func (s *ProcessedStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM processed_activities WHERE processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("activity: purge processed: %w", err)
	}
	return ct.RowsAffected(), nil
}

// MemoryStore is a bounded in-process Store for runs without Postgres.
type MemoryStore struct {
	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

// NewMemoryStore remembers up to size activities for ttl each.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size <= 0 {
		size = 10000
	}
	return &MemoryStore{seen: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

func (s *MemoryStore) AlreadyProcessed(ctx context.Context, conversationID, activityID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen.Contains(conversationID + "\x00" + activityID), nil
}

func (s *MemoryStore) MarkProcessed(ctx context.Context, conversationID, activityID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if strings.TrimSpace(conversationID) == "" || strings.TrimSpace(activityID) == "" {
		return false, errMissingID
	}
	key := conversationID + "\x00" + activityID
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen.Contains(key) {
		return false, nil
	}
	s.seen.Add(key, struct{}{})
	return true, nil
}
