// Package routing decides how the bot answers one utterance: a scheduling
// action, a knowledge-base answer or the help message.
package routing

import (
	"github.com/wolfman30/dental-assistant-bot/internal/intent"
)

// IntentThreshold is the confidence a scheduling intent must strictly exceed.
const IntentThreshold = 0.5

const (
	// AvailabilityPrefix leads every availability reply.
	AvailabilityPrefix = "Yes, we can schedule a visit! "
	// FallbackMessage is sent when nothing else matched.
	FallbackMessage = "I'm not sure I can answer your question. I can answer questions about who can access our services, give info about availability of the Dental Office and schedule an appointment."
	// SchedulerFailureMessage is sent when the scheduling backend failed mid-turn.
	SchedulerFailureMessage = "Sorry, I couldn't reach the scheduling system right now. Please try again in a few minutes."
)

// Utterance is one inbound message.
type Utterance struct {
	Text           string
	ConversationID string
	SenderID       string
	ActivityID     string
}

// DecisionKind names the branch a turn took.
type DecisionKind string

const (
	KindScheduleQuery   DecisionKind = "schedule_query"
	KindScheduleBooking DecisionKind = "schedule_booking"
	KindKnowledgeAnswer DecisionKind = "knowledge_answer"
	KindFallback        DecisionKind = "fallback"
)

// ErrorKind classifies a degraded source. Only SchedulerFailure reaches the
// patient; the rest downgrade the turn.
type ErrorKind string

const (
	ClassifierUnavailable ErrorKind = "classifier_unavailable"
	KnowledgeUnavailable  ErrorKind = "knowledge_unavailable"
	SchedulerFailure      ErrorKind = "scheduler_failure"
	MalformedEntity       ErrorKind = "malformed_entity"
)

// Decision is the outcome of one turn. Reply is the single text to emit.
type Decision struct {
	Kind  DecisionKind
	Reply string

	TopIntent      intent.Name
	IntentScore    float64
	KnowledgeScore float64
	// TimeText is the datetime span handed to the scheduler on a booking.
	TimeText string

	SchedulerFailed bool
	// Cancelled is set when the turn's context ended before a reply was
	// decided; callers must not emit Reply.
	Cancelled bool
	// Degraded lists the sources that failed or were unusable this turn.
	Degraded []ErrorKind
}

func (d *Decision) degrade(kind ErrorKind) {
	d.Degraded = append(d.Degraded, kind)
}
