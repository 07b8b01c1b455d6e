package intent

import (
	"context"
	"errors"

	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

// Chain tries each classifier in order and returns the first successful
// result. The error of the last classifier is returned when all fail.
type Chain struct {
	classifiers []Classifier
	logger      *logging.Logger
}

// NewChain builds a Chain, skipping nil entries.
func NewChain(logger *logging.Logger, classifiers ...Classifier) *Chain {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Chain{logger: logger}
	for _, cl := range classifiers {
		if cl != nil {
			c.classifiers = append(c.classifiers, cl)
		}
	}
	return c
}

func (c *Chain) Classify(ctx context.Context, text string) (Result, error) {
	if len(c.classifiers) == 0 {
		return Result{}, ErrNotConfigured
	}
	var lastErr error
	for i, cl := range c.classifiers {
		res, err := cl.Classify(ctx, text)
		if err == nil {
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		lastErr = err
		if i < len(c.classifiers)-1 {
			c.logger.Warn("intent classifier failed; trying next", "position", i, "error", err)
		}
	}
	return Result{}, errors.Join(ErrUnavailable, lastErr)
}

// ErrUnavailable marks a classification that no backend could serve.
var ErrUnavailable = errors.New("intent: all classifiers failed")
