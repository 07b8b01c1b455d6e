package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/dental-assistant-bot/internal/activity"
	"github.com/wolfman30/dental-assistant-bot/internal/bot"
	appconfig "github.com/wolfman30/dental-assistant-bot/internal/config"
	"github.com/wolfman30/dental-assistant-bot/internal/observability/metrics"
	"github.com/wolfman30/dental-assistant-bot/internal/routing"
	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

// Runtime is the assembled bot plus the resources it owns.
type Runtime struct {
	Bot *bot.Bot
	// SchedulerHandler serves the in-memory calendar; nil with a remote scheduler.
	SchedulerHandler http.Handler
	// Processed is the redelivery guard, exposed for periodic purging.
	Processed activity.Store

	closers []func() error
}

// Close releases every resource acquired by BuildRuntime.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildRuntime wires classifier, knowledge, scheduler and stores into a bot.
// m may be nil to disable metrics.
func BuildRuntime(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, m *metrics.RoutingMetrics, logger *logging.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rt := &Runtime{}
	fail := func(err error) (*Runtime, error) {
		_ = rt.Close()
		return nil, err
	}

	classifier, err := BuildClassifier(cfg, awsCfg, logger)
	if err != nil {
		return fail(err)
	}
	looker, closeKnowledge, err := BuildKnowledge(cfg, logger)
	if err != nil {
		return fail(err)
	}
	rt.closers = append(rt.closers, closeKnowledge)

	sched, schedHandler, err := BuildScheduler(cfg, logger)
	if err != nil {
		return fail(err)
	}
	rt.SchedulerHandler = schedHandler

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		rt.closers = append(rt.closers, redisClient.Close)
	}
	transcripts := BuildTranscriptStore(redisClient, logger)

	processed, pool, err := BuildProcessedStore(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	if pool != nil {
		rt.closers = append(rt.closers, closePool(pool))
	}
	rt.Processed = processed

	routerOpts := []routing.Option{}
	botOpts := []bot.Option{bot.WithProcessedStore(processed), bot.WithTranscript(transcripts)}
	if m != nil {
		routerOpts = append(routerOpts, routing.WithMetrics(m))
		botOpts = append(botOpts, bot.WithMetrics(m))
	}
	r := routing.New(classifier, looker, sched, logger, routerOpts...)
	rt.Bot = bot.New(bot.ChannelAccount{ID: cfg.BotID, Name: "Dental Office"}, r, logger, botOpts...)
	return rt, nil
}

func closePool(p *pgxpool.Pool) func() error {
	return func() error {
		p.Close()
		return nil
	}
}
