package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-assistant-bot/internal/activity"
	"github.com/wolfman30/dental-assistant-bot/internal/greeter"
	"github.com/wolfman30/dental-assistant-bot/internal/intent"
	"github.com/wolfman30/dental-assistant-bot/internal/knowledge"
	"github.com/wolfman30/dental-assistant-bot/internal/routing"
	"github.com/wolfman30/dental-assistant-bot/internal/scheduler"
	"github.com/wolfman30/dental-assistant-bot/internal/transcript"
	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

var botAccount = ChannelAccount{ID: "dental-bot", Name: "Dental Office"}

type stubRouter struct {
	decision routing.Decision
	calls    atomic.Int32
	hook     func(ctx context.Context, u routing.Utterance)
}

func (s *stubRouter) Route(ctx context.Context, u routing.Utterance) routing.Decision {
	s.calls.Add(1)
	if s.hook != nil {
		s.hook(ctx, u)
	}
	return s.decision
}

func message(conv, id, text string) Activity {
	return Activity{
		Type:         TypeMessage,
		ID:           id,
		ChannelID:    "webchat",
		From:         ChannelAccount{ID: "patient-1"},
		Recipient:    botAccount,
		Conversation: ConversationAccount{ID: conv},
		Text:         text,
	}
}

func TestHandle_MessageEmitsOneReply(t *testing.T) {
	router := &stubRouter{decision: routing.Decision{Kind: routing.KindKnowledgeAnswer, Reply: "We accept most PPO plans."}}
	store := transcript.NewMemoryStore()
	b := New(botAccount, router, logging.Discard(), WithTranscript(store))
	out := &Collector{}

	require.NoError(t, b.Handle(context.Background(), message("conv-1", "act-1", "insurance?"), out))

	require.Len(t, out.Replies, 1)
	reply := out.Replies[0]
	assert.Equal(t, TypeMessage, reply.Type)
	assert.Equal(t, "We accept most PPO plans.", reply.Text)
	assert.Equal(t, "act-1", reply.ReplyToID)
	assert.Equal(t, botAccount, reply.From)
	assert.Equal(t, "patient-1", reply.Recipient.ID)
	assert.Equal(t, "conv-1", reply.Conversation.ID)
	assert.NotEmpty(t, reply.ID)

	history, err := b.History(context.Background(), "conv-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, transcript.RoleUser, history[0].Role)
	assert.Equal(t, "insurance?", history[0].Text)
	assert.Equal(t, transcript.RoleAssistant, history[1].Role)
	assert.Equal(t, string(routing.KindKnowledgeAnswer), history[1].Decision)
}

func TestHandle_PassesUtterance(t *testing.T) {
	var got routing.Utterance
	router := &stubRouter{decision: routing.Decision{Kind: routing.KindFallback, Reply: routing.FallbackMessage}}
	router.hook = func(_ context.Context, u routing.Utterance) { got = u }
	b := New(botAccount, router, logging.Discard())

	require.NoError(t, b.Handle(context.Background(), message("conv-9", "act-9", "hi"), &Collector{}))
	assert.Equal(t, routing.Utterance{Text: "hi", ConversationID: "conv-9", SenderID: "patient-1", ActivityID: "act-9"}, got)
}

func TestHandle_DuplicateActivityAnsweredOnce(t *testing.T) {
	router := &stubRouter{decision: routing.Decision{Kind: routing.KindFallback, Reply: "help"}}
	b := New(botAccount, router, logging.Discard(), WithProcessedStore(activity.NewMemoryStore(100, time.Hour)))
	out := &Collector{}

	require.NoError(t, b.Handle(context.Background(), message("conv-1", "act-1", "hi"), out))
	require.NoError(t, b.Handle(context.Background(), message("conv-1", "act-1", "hi"), out))
	require.NoError(t, b.Handle(context.Background(), message("conv-1", "act-2", "hi again"), out))

	assert.Len(t, out.Replies, 2)
	assert.Equal(t, int32(2), router.calls.Load())
}

type failingStore struct{}

func (failingStore) AlreadyProcessed(context.Context, string, string) (bool, error) {
	return false, errors.New("db down")
}

func (failingStore) MarkProcessed(context.Context, string, string) (bool, error) {
	return false, errors.New("db down")
}

func TestHandle_ProcessedStoreOutageFailsOpen(t *testing.T) {
	router := &stubRouter{decision: routing.Decision{Kind: routing.KindFallback, Reply: "help"}}
	b := New(botAccount, router, logging.Discard(), WithProcessedStore(failingStore{}))
	out := &Collector{}

	require.NoError(t, b.Handle(context.Background(), message("conv-1", "act-1", "hi"), out))
	assert.Len(t, out.Replies, 1)
}

func TestHandle_CancelledTurnEmitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	router := &stubRouter{decision: routing.Decision{Kind: routing.KindScheduleQuery, Cancelled: true}}
	router.hook = func(context.Context, routing.Utterance) { cancel() }
	processed := activity.NewMemoryStore(100, time.Hour)
	b := New(botAccount, router, logging.Discard(), WithProcessedStore(processed))
	out := &Collector{}

	err := b.Handle(ctx, message("conv-1", "act-1", "any openings?"), out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.Replies)

	seen, _ := processed.AlreadyProcessed(context.Background(), "conv-1", "act-1")
	assert.False(t, seen, "a cancelled turn must stay eligible for redelivery")
}

func TestHandle_EmitFailureIsReturned(t *testing.T) {
	router := &stubRouter{decision: routing.Decision{Kind: routing.KindFallback, Reply: "help"}}
	processed := activity.NewMemoryStore(100, time.Hour)
	b := New(botAccount, router, logging.Discard(), WithProcessedStore(processed))

	err := b.Handle(context.Background(), message("conv-1", "act-1", "hi"), EmitterFunc(func(context.Context, Activity) error {
		return errors.New("socket closed")
	}))
	require.Error(t, err)
	seen, _ := processed.AlreadyProcessed(context.Background(), "conv-1", "act-1")
	assert.False(t, seen)
}

func TestHandle_ConversationUpdateGreetsNewMembers(t *testing.T) {
	b := New(botAccount, &stubRouter{}, logging.Discard())
	out := &Collector{}

	update := Activity{
		Type:         TypeConversationUpdate,
		Recipient:    botAccount,
		Conversation: ConversationAccount{ID: "conv-1"},
		MembersAdded: []ChannelAccount{botAccount, {ID: "userX", Name: "Sam"}},
	}
	require.NoError(t, b.Handle(context.Background(), update, out))

	require.Len(t, out.Replies, 1)
	assert.Equal(t, greeter.WelcomeMessage, out.Replies[0].Text)
	assert.Equal(t, ChannelAccount{ID: "userX", Name: "Sam"}, out.Replies[0].Recipient)

	out.Replies = nil
	onlyBot := update
	onlyBot.MembersAdded = []ChannelAccount{botAccount}
	require.NoError(t, b.Handle(context.Background(), onlyBot, out))
	assert.Empty(t, out.Replies)
}

func TestHandle_RejectsAndIgnores(t *testing.T) {
	router := &stubRouter{}
	b := New(botAccount, router, logging.Discard())
	out := &Collector{}

	assert.ErrorIs(t, b.Handle(context.Background(), message("", "act", "hi"), out), ErrMissingConversation)
	assert.NoError(t, b.Handle(context.Background(), Activity{Type: "typing", Conversation: ConversationAccount{ID: "c"}}, out))
	assert.Error(t, b.Handle(context.Background(), message("c", "a", "hi"), nil))
	assert.Empty(t, out.Replies)
	assert.Zero(t, router.calls.Load())
}

func TestHandle_SerializesTurnsPerConversation(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	router := &stubRouter{decision: routing.Decision{Kind: routing.KindFallback, Reply: "help"}}
	router.hook = func(context.Context, routing.Utterance) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
	}
	b := New(botAccount, router, logging.Discard())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		replies int
	)
	out := EmitterFunc(func(context.Context, Activity) error {
		mu.Lock()
		replies++
		mu.Unlock()
		return nil
	})
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = b.Handle(context.Background(), message("conv-1", fmt.Sprintf("act-%d", i), "hi"), out)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Equal(t, 10, replies)
	assert.Zero(t, b.locks.len(), "idle conversations should leave no lock state")
}

func TestConvLocks_AcquireHonorsContext(t *testing.T) {
	locks := newConvLocks()
	release, err := locks.acquire(context.Background(), "conv")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locks.acquire(ctx, "conv")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	assert.Zero(t, locks.len())
}

// End to end through the real router with in-process collaborators.
func TestHandle_WithRouter(t *testing.T) {
	now := func() time.Time { return time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC) }
	cal := scheduler.NewCalendar(scheduler.CalendarConfig{Location: time.UTC}, now)
	idx, err := knowledge.NewIndex([]knowledge.FAQ{
		{Question: "Which insurance plans do you accept?", Answer: "We accept Delta Dental, Cigna and most PPO plans."},
	}, 3, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	router := routing.New(intent.NewRuleClassifier(), idx, cal, logging.Discard())
	b := New(botAccount, router, logging.Discard())

	tests := []struct {
		text string
		want string
	}{
		{"Can I book an appointment for tomorrow at 3pm?", "An appointment is set for Fri Oct 16 at 3:00 PM."},
		{"What is your availability?", routing.AvailabilityPrefix + "Our next openings are Thu Oct 15 at 10:30 AM, Thu Oct 15 at 11:00 AM, Thu Oct 15 at 11:30 AM, Thu Oct 15 at 12:00 PM."},
		{"Which insurance do you accept?", "We accept Delta Dental, Cigna and most PPO plans."},
		{"zzzz qqqq", routing.FallbackMessage},
	}
	for i, tt := range tests {
		out := &Collector{}
		require.NoError(t, b.Handle(context.Background(), message("conv-e2e", fmt.Sprintf("act-%d", i), tt.text), out))
		require.Len(t, out.Replies, 1, tt.text)
		assert.Equal(t, tt.want, out.Replies[0].Text, tt.text)
	}
}
