// Package scheduler talks to the dental office scheduling backend: it reports
// open slots and books appointments from natural-language time expressions.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Scheduler is what the router dispatches to. Both methods return text meant
// for the patient. A booking the backend declines is reported as text with a
// nil error; an error means the backend could not be reached.
type Scheduler interface {
	GetAvailability(ctx context.Context) (string, error)
	ScheduleAppointment(ctx context.Context, timeText string) (string, error)
}

var (
	// ErrBackendUnavailable wraps transport and server failures.
	ErrBackendUnavailable = errors.New("scheduler: backend unavailable")
	// ErrUnrecognizedTime is returned by ParseTimeExpression.
	ErrUnrecognizedTime = errors.New("scheduler: unrecognized time expression")
	// ErrSlotUnavailable is returned by Calendar when a slot cannot be booked.
	ErrSlotUnavailable = errors.New("scheduler: slot unavailable")
)

const displayLayout = "Mon Jan 2 at 3:04 PM"

func unrecognizedTimeReply(text string) string {
	return fmt.Sprintf("Sorry, I couldn't understand %q as a date or time. Try something like \"tomorrow at 3pm\".", strings.TrimSpace(text))
}

func pastTimeReply(t time.Time) string {
	return fmt.Sprintf("Sorry, %s has already passed. Please pick a time in the future.", t.Format(displayLayout))
}

func confirmationReply(t time.Time) string {
	return fmt.Sprintf("An appointment is set for %s.", t.Format(displayLayout))
}
