package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/dental-assistant-bot/internal/intent"
	"github.com/wolfman30/dental-assistant-bot/internal/knowledge"
	"github.com/wolfman30/dental-assistant-bot/internal/observability/metrics"
	"github.com/wolfman30/dental-assistant-bot/internal/scheduler"
	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

// Router queries the intent classifier and the knowledge base for each
// utterance and picks exactly one reply. It keeps no state between turns.
type Router struct {
	classifier intent.Classifier
	knowledge  knowledge.Looker
	scheduler  scheduler.Scheduler
	logger     *logging.Logger
	metrics    *metrics.RoutingMetrics
	tracer     trace.Tracer
}

// Option customizes a Router.
type Option func(*Router)

// WithMetrics records decisions and source failures.
func WithMetrics(m *metrics.RoutingMetrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// New wires a Router. All three collaborators are required.
func New(classifier intent.Classifier, looker knowledge.Looker, sched scheduler.Scheduler, logger *logging.Logger, opts ...Option) *Router {
	if classifier == nil {
		panic("routing: classifier is required")
	}
	if looker == nil {
		panic("routing: knowledge looker is required")
	}
	if sched == nil {
		panic("routing: scheduler is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	r := &Router{
		classifier: classifier,
		knowledge:  looker,
		scheduler:  sched,
		logger:     logger,
		tracer:     otel.Tracer("dental.internal.routing"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route decides the reply for one utterance. It never fails: source errors
// degrade to the next rule and a scheduler error becomes a failure notice.
func (r *Router) Route(ctx context.Context, u Utterance) Decision {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "routing.route", trace.WithAttributes(
		attribute.String("conversation_id", u.ConversationID),
		attribute.String("activity_id", u.ActivityID),
	))
	defer span.End()

	result, answers, d := r.gather(ctx, u)
	if ctx.Err() == nil {
		r.decide(ctx, u, result, answers, &d)
	}
	if ctx.Err() != nil && d.Reply == "" {
		d.Cancelled = true
		if d.Kind == "" {
			d.Kind = KindFallback
		}
	}

	span.SetAttributes(
		attribute.String("decision", string(d.Kind)),
		attribute.String("top_intent", string(d.TopIntent)),
		attribute.Float64("intent_score", d.IntentScore),
		attribute.Bool("cancelled", d.Cancelled),
	)
	if d.SchedulerFailed {
		span.SetStatus(codes.Error, string(SchedulerFailure))
	}
	if !d.Cancelled {
		r.metrics.ObserveDecision(string(d.Kind), time.Since(start).Seconds())
	}
	r.logger.Info("turn routed",
		"conversation_id", u.ConversationID,
		"activity_id", u.ActivityID,
		"decision", d.Kind,
		"top_intent", d.TopIntent,
		"intent_score", d.IntentScore,
		"knowledge_score", d.KnowledgeScore,
		"cancelled", d.Cancelled,
	)
	return d
}

// gather runs the classifier and the knowledge lookup concurrently and waits
// for both. A failed source yields its empty result.
func (r *Router) gather(ctx context.Context, u Utterance) (intent.Result, []knowledge.Answer, Decision) {
	var (
		wg        sync.WaitGroup
		result    intent.Result
		answers   []knowledge.Answer
		intentErr error
		kbErr     error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		result, intentErr = r.classify(ctx, u.Text)
	}()
	go func() {
		defer wg.Done()
		answers, kbErr = r.lookup(ctx, u.Text)
	}()
	wg.Wait()

	var d Decision
	if ctx.Err() != nil {
		return intent.Result{}, nil, d
	}
	if intentErr != nil {
		result = intent.Result{}
		r.sourceFailed(&d, ClassifierUnavailable, u, intentErr)
	}
	if kbErr != nil {
		answers = nil
		r.sourceFailed(&d, KnowledgeUnavailable, u, kbErr)
	}
	d.TopIntent = result.TopIntent
	d.IntentScore = result.ScoreOf(result.TopIntent)
	return result, answers, d
}

func (r *Router) classify(ctx context.Context, text string) (res intent.Result, err error) {
	ctx, span := r.tracer.Start(ctx, "routing.classify")
	defer span.End()
	defer func() {
		if p := recover(); p != nil {
			res, err = intent.Result{}, fmt.Errorf("routing: classifier panic: %v", p)
		}
		if err != nil {
			span.RecordError(err)
		}
	}()
	return r.classifier.Classify(ctx, text)
}

func (r *Router) lookup(ctx context.Context, text string) (answers []knowledge.Answer, err error) {
	ctx, span := r.tracer.Start(ctx, "routing.knowledge_lookup")
	defer span.End()
	defer func() {
		if p := recover(); p != nil {
			answers, err = nil, fmt.Errorf("routing: knowledge panic: %v", p)
		}
		if err != nil {
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Int("candidates", len(answers)))
	}()
	return r.knowledge.Lookup(ctx, text)
}

// decide applies the rules in order. An intent above threshold wins over any
// knowledge answer regardless of the answer's confidence.
func (r *Router) decide(ctx context.Context, u Utterance, result intent.Result, answers []knowledge.Answer, d *Decision) {
	switch {
	case result.Exceeds(intent.NameGetAvailability, IntentThreshold):
		d.Kind = KindScheduleQuery
		text, err := r.callScheduler(ctx, "scheduler.get_availability", func(ctx context.Context) (string, error) {
			return r.scheduler.GetAvailability(ctx)
		})
		if r.schedulerFailed(ctx, u, d, err) {
			return
		}
		d.Reply = AvailabilityPrefix + text
		return

	case result.Exceeds(intent.NameScheduleAppointment, IntentThreshold):
		entity, ok := result.FirstEntity(intent.EntityDateTime)
		if !ok {
			d.degrade(MalformedEntity)
			r.metrics.ObserveSourceFailure(string(MalformedEntity))
			r.logger.Info("booking intent without a usable datetime",
				"conversation_id", u.ConversationID,
				"intent_score", d.IntentScore,
			)
			break
		}
		d.Kind = KindScheduleBooking
		d.TimeText = strings.TrimSpace(entity.Text)
		text, err := r.callScheduler(ctx, "scheduler.schedule_appointment", func(ctx context.Context) (string, error) {
			return r.scheduler.ScheduleAppointment(ctx, d.TimeText)
		})
		if r.schedulerFailed(ctx, u, d, err) {
			return
		}
		d.Reply = text
		r.logger.Info("scheduler reply", "conversation_id", u.ConversationID, "time_text", d.TimeText, "reply", text)
		return
	}

	// Lookups drop empty answers, so the top candidate is sent as is.
	if len(answers) > 0 {
		d.Kind = KindKnowledgeAnswer
		d.Reply = answers[0].Text
		d.KnowledgeScore = answers[0].Score
		return
	}

	d.Kind = KindFallback
	d.Reply = FallbackMessage
}

func (r *Router) callScheduler(ctx context.Context, name string, call func(context.Context) (string, error)) (text string, err error) {
	ctx, span := r.tracer.Start(ctx, name)
	defer span.End()
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("routing: scheduler panic: %v", p)
		}
		if err != nil {
			span.RecordError(err)
		}
	}()
	return call(ctx)
}

// schedulerFailed fills d for a failed scheduler call and reports whether it
// did. A call abandoned because the turn was cancelled is not a failure.
func (r *Router) schedulerFailed(ctx context.Context, u Utterance, d *Decision, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		d.Cancelled = true
		return true
	}
	d.SchedulerFailed = true
	d.Reply = SchedulerFailureMessage
	d.degrade(SchedulerFailure)
	r.metrics.ObserveSourceFailure(string(SchedulerFailure))
	r.logger.Error("scheduler call failed",
		"conversation_id", u.ConversationID,
		"decision", d.Kind,
		"error", err,
	)
	return true
}

func (r *Router) sourceFailed(d *Decision, kind ErrorKind, u Utterance, err error) {
	d.degrade(kind)
	r.metrics.ObserveSourceFailure(string(kind))
	r.logger.Warn("routing source unavailable",
		"conversation_id", u.ConversationID,
		"reason", kind,
		"error", err,
	)
}
