package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/dental-assistant-bot/internal/activity"
	"github.com/wolfman30/dental-assistant-bot/internal/greeter"
	"github.com/wolfman30/dental-assistant-bot/internal/observability/metrics"
	"github.com/wolfman30/dental-assistant-bot/internal/routing"
	"github.com/wolfman30/dental-assistant-bot/internal/transcript"
	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

// Router decides the reply for one utterance.
type Router interface {
	Route(ctx context.Context, u routing.Utterance) routing.Decision
}

// ErrMissingConversation is returned for activities without a conversation id.
var ErrMissingConversation = errors.New("bot: activity has no conversation id")

// Bot dispatches activities. Messages of one conversation are handled one at
// a time and each produces at most one reply.
type Bot struct {
	account    ChannelAccount
	router     Router
	processed  activity.Store
	transcript transcript.Store
	logger     *logging.Logger
	metrics    *metrics.RoutingMetrics
	locks      *convLocks
	now        func() time.Time
}

// Option customizes a Bot.
type Option func(*Bot)

// WithProcessedStore skips activities that were already answered.
func WithProcessedStore(s activity.Store) Option {
	return func(b *Bot) { b.processed = s }
}

// WithTranscript records both sides of each turn.
func WithTranscript(s transcript.Store) Option {
	return func(b *Bot) { b.transcript = s }
}

func WithMetrics(m *metrics.RoutingMetrics) Option {
	return func(b *Bot) { b.metrics = m }
}

// WithClock overrides the clock; used by tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) {
		if now != nil {
			b.now = now
		}
	}
}

func New(account ChannelAccount, router Router, logger *logging.Logger, opts ...Option) *Bot {
	if router == nil {
		panic("bot: router is required")
	}
	if strings.TrimSpace(account.ID) == "" {
		panic("bot: bot account id is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	b := &Bot{
		account: account,
		router:  router,
		logger:  logger,
		locks:   newConvLocks(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Account is the bot's own channel identity.
func (b *Bot) Account() ChannelAccount { return b.account }

// Handle processes one inbound activity and emits its replies.
func (b *Bot) Handle(ctx context.Context, act Activity, out Emitter) error {
	if out == nil {
		return errors.New("bot: emitter is required")
	}
	switch act.Type {
	case TypeMessage:
		return b.handleMessage(ctx, act, out)
	case TypeConversationUpdate:
		return b.handleConversationUpdate(ctx, act, out)
	default:
		b.metrics.ObserveActivity(act.Type, "ignored")
		b.logger.Debug("ignoring activity", "type", act.Type, "conversation_id", act.Conversation.ID)
		return nil
	}
}

func (b *Bot) handleMessage(ctx context.Context, act Activity, out Emitter) error {
	convID := act.Conversation.ID
	if convID == "" {
		b.metrics.ObserveActivity(TypeMessage, "rejected")
		return ErrMissingConversation
	}
	release, err := b.locks.acquire(ctx, convID)
	if err != nil {
		b.metrics.ObserveActivity(TypeMessage, "cancelled")
		return err
	}
	defer release()

	if b.alreadyAnswered(ctx, act) {
		b.metrics.ObserveActivity(TypeMessage, "duplicate")
		b.logger.Info("duplicate activity skipped", "conversation_id", convID, "activity_id", act.ID)
		return nil
	}

	b.record(ctx, convID, transcript.Message{
		Role: transcript.RoleUser,
		From: act.From.ID,
		Text: act.Text,
	})

	decision := b.router.Route(ctx, routing.Utterance{
		Text:           act.Text,
		ConversationID: convID,
		SenderID:       act.From.ID,
		ActivityID:     act.ID,
	})
	if decision.Cancelled || ctx.Err() != nil {
		b.metrics.ObserveActivity(TypeMessage, "cancelled")
		b.logger.Info("turn cancelled before reply", "conversation_id", convID, "activity_id", act.ID)
		return ctx.Err()
	}

	reply := newReply(act, b.account, act.From, decision.Reply, b.now())
	if err := out.Emit(ctx, reply); err != nil {
		b.metrics.ObserveActivity(TypeMessage, "emit_failed")
		return fmt.Errorf("bot: emit reply: %w", err)
	}
	b.metrics.ObserveActivity(TypeMessage, "replied")

	b.markAnswered(ctx, act)
	b.record(ctx, convID, transcript.Message{
		ID:       reply.ID,
		Role:     transcript.RoleAssistant,
		From:     b.account.ID,
		Text:     reply.Text,
		Decision: string(decision.Kind),
	})
	return nil
}

func (b *Bot) handleConversationUpdate(ctx context.Context, act Activity, out Emitter) error {
	convID := act.Conversation.ID
	if convID == "" {
		b.metrics.ObserveActivity(TypeConversationUpdate, "rejected")
		return ErrMissingConversation
	}
	ids := make([]string, len(act.MembersAdded))
	byID := make(map[string]ChannelAccount, len(act.MembersAdded))
	for i, m := range act.MembersAdded {
		ids[i] = m.ID
		byID[m.ID] = m
	}
	recipientID := act.Recipient.ID
	if recipientID == "" {
		recipientID = b.account.ID
	}
	greetings := greeter.Greet(ids, recipientID)
	if len(greetings) == 0 {
		b.metrics.ObserveActivity(TypeConversationUpdate, "ignored")
		return nil
	}

	release, err := b.locks.acquire(ctx, convID)
	if err != nil {
		return err
	}
	defer release()

	for _, g := range greetings {
		if err := ctx.Err(); err != nil {
			b.metrics.ObserveActivity(TypeConversationUpdate, "cancelled")
			return err
		}
		reply := newReply(act, b.account, byID[g.MemberID], g.Text, b.now())
		if err := out.Emit(ctx, reply); err != nil {
			b.metrics.ObserveActivity(TypeConversationUpdate, "emit_failed")
			return fmt.Errorf("bot: emit greeting: %w", err)
		}
		b.record(ctx, convID, transcript.Message{
			ID:   reply.ID,
			Role: transcript.RoleAssistant,
			From: b.account.ID,
			Text: g.Text,
		})
	}
	b.metrics.ObserveActivity(TypeConversationUpdate, "greeted")
	return nil
}

// alreadyAnswered fails open: a store outage must not silence the bot.
func (b *Bot) alreadyAnswered(ctx context.Context, act Activity) bool {
	if b.processed == nil || act.ID == "" {
		return false
	}
	seen, err := b.processed.AlreadyProcessed(ctx, act.Conversation.ID, act.ID)
	if err != nil {
		b.logger.Warn("processed store check failed", "conversation_id", act.Conversation.ID, "activity_id", act.ID, "error", err)
		return false
	}
	return seen
}

func (b *Bot) markAnswered(ctx context.Context, act Activity) {
	if b.processed == nil || act.ID == "" {
		return
	}
	if _, err := b.processed.MarkProcessed(ctx, act.Conversation.ID, act.ID); err != nil {
		b.logger.Warn("processed store mark failed", "conversation_id", act.Conversation.ID, "activity_id", act.ID, "error", err)
	}
}

func (b *Bot) record(ctx context.Context, convID string, msg transcript.Message) {
	if b.transcript == nil {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = b.now().UTC()
	}
	if err := b.transcript.Append(ctx, convID, msg); err != nil {
		b.logger.Warn("transcript append failed", "conversation_id", convID, "error", err)
	}
}

// History returns the most recent transcript entries of a conversation.
func (b *Bot) History(ctx context.Context, convID string, limit int64) ([]transcript.Message, error) {
	if b.transcript == nil {
		return nil, nil
	}
	return b.transcript.List(ctx, convID, limit)
}
