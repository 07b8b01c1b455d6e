// Package transcript keeps the recent message history of each conversation
// so a reconnecting webchat client can replay it.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	keyPrefix          = "bot_transcript:"
	defaultTTL         = 24 * time.Hour
	defaultMaxMessages = 200
)

// Roles of a transcript entry.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	From      string    `json:"from,omitempty"`
	Text      string    `json:"text"`
	Decision  string    `json:"decision,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store appends to and lists conversation transcripts.
type Store interface {
	Append(ctx context.Context, conversationID string, msg Message) error
	List(ctx context.Context, conversationID string, limit int64) ([]Message, error)
}

var errConversationRequired = errors.New("transcript: conversationID required")

func prepare(msg Message) Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return msg
}

// RedisStore keeps each transcript in a capped, expiring Redis list.
type RedisStore struct {
	redis       *redis.Client
	tracer      trace.Tracer
	ttl         time.Duration
	maxMessages int64
}

func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("transcript: redis client required")
	}
	return &RedisStore{
		redis:       redisClient,
		tracer:      otel.Tracer("dental.internal.transcript"),
		ttl:         defaultTTL,
		maxMessages: defaultMaxMessages,
	}
}

func (s *RedisStore) Append(ctx context.Context, conversationID string, msg Message) error {
	if conversationID == "" {
		return errConversationRequired
	}
	data, err := json.Marshal(prepare(msg))
	if err != nil {
		return fmt.Errorf("transcript: marshal message: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "transcript.append")
	defer span.End()

	key := keyPrefix + conversationID
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	if s.maxMessages > 0 {
		pipe.LTrim(ctx, key, -s.maxMessages, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("transcript: append message: %w", err)
	}
	return nil
}

// List returns the newest limit messages oldest first; limit <= 0 means all.
func (s *RedisStore) List(ctx context.Context, conversationID string, limit int64) ([]Message, error) {
	if conversationID == "" {
		return nil, errConversationRequired
	}

	ctx, span := s.tracer.Start(ctx, "transcript.list")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -limit
	}
	raw, err := s.redis.LRange(ctx, keyPrefix+conversationID, start, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("transcript: list messages: %w", err)
	}

	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// MemoryStore is an in-process Store for local runs.
type MemoryStore struct {
	mu          sync.Mutex
	maxMessages int
	byConv      map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{maxMessages: defaultMaxMessages, byConv: make(map[string][]Message)}
}

func (s *MemoryStore) Append(_ context.Context, conversationID string, msg Message) error {
	if conversationID == "" {
		return errConversationRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := append(s.byConv[conversationID], prepare(msg))
	if len(msgs) > s.maxMessages {
		msgs = msgs[len(msgs)-s.maxMessages:]
	}
	s.byConv[conversationID] = msgs
	return nil
}

func (s *MemoryStore) List(_ context.Context, conversationID string, limit int64) ([]Message, error) {
	if conversationID == "" {
		return nil, errConversationRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.byConv[conversationID]
	if limit > 0 && int64(len(msgs)) > limit {
		msgs = msgs[int64(len(msgs))-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
