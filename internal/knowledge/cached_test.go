package knowledge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLooker struct {
	answers []Answer
	err     error
	calls   int
}

func (c *countingLooker) Lookup(ctx context.Context, question string) ([]Answer, error) {
	c.calls++
	return c.answers, c.err
}

func TestCached_ReusesNormalizedQuestion(t *testing.T) {
	backend := &countingLooker{answers: []Answer{{Text: "8 to 5", Score: 0.9}}}
	cached := NewCached(backend, 8, time.Minute)

	first, err := cached.Lookup(context.Background(), "What are your hours?")
	require.NoError(t, err)
	second, err := cached.Lookup(context.Background(), "  what are   YOUR hours? ")
	require.NoError(t, err)

	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, first, second)

	second[0].Text = "mutated"
	third, err := cached.Lookup(context.Background(), "what are your hours?")
	require.NoError(t, err)
	assert.Equal(t, "8 to 5", third[0].Text)

	cached.Purge()
	_, err = cached.Lookup(context.Background(), "what are your hours?")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.calls)
}

func TestCached_DoesNotCacheErrors(t *testing.T) {
	backend := &countingLooker{err: errors.New("timeout")}
	cached := NewCached(backend, 8, time.Minute)

	_, err := cached.Lookup(context.Background(), "hours")
	assert.Error(t, err)
	_, err = cached.Lookup(context.Background(), "hours")
	assert.Error(t, err)
	assert.Equal(t, 2, backend.calls)
}

func TestCached_EmptyQuestion(t *testing.T) {
	backend := &countingLooker{}
	cached := NewCached(backend, 0, time.Minute)
	answers, err := cached.Lookup(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, answers)
	assert.Zero(t, backend.calls)
}

func TestEmptyLooker(t *testing.T) {
	answers, err := Empty{}.Lookup(context.Background(), "anything")
	assert.NoError(t, err)
	assert.Empty(t, answers)
}
