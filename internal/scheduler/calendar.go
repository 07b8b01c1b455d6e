package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// CalendarConfig describes office hours.
type CalendarConfig struct {
	Location  *time.Location
	OpenHour  int
	CloseHour int
	Slot      time.Duration
	// DaysAhead bounds how far availability is reported.
	DaysAhead int
	// MaxListed bounds how many open slots GetAvailability lists.
	MaxListed int
}

// Calendar is an in-memory stand-in for the office scheduling backend. It
// serves local runs and demos; bookings live only as long as the process.
type Calendar struct {
	cfg CalendarConfig
	now func() time.Time

	mu     sync.Mutex
	booked map[time.Time]struct{}
}

// NewCalendar builds a Calendar open Monday to Friday.
func NewCalendar(cfg CalendarConfig, now func() time.Time) *Calendar {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.OpenHour <= 0 {
		cfg.OpenHour = 8
	}
	if cfg.CloseHour <= cfg.OpenHour {
		cfg.CloseHour = 17
	}
	if cfg.Slot <= 0 {
		cfg.Slot = 30 * time.Minute
	}
	if cfg.DaysAhead <= 0 {
		cfg.DaysAhead = 5
	}
	if cfg.MaxListed <= 0 {
		cfg.MaxListed = 4
	}
	if now == nil {
		now = time.Now
	}
	return &Calendar{cfg: cfg, now: now, booked: make(map[time.Time]struct{})}
}

// OpenSlots lists free slots from now across the next DaysAhead business days.
func (c *Calendar) OpenSlots(limit int) []time.Time {
	now := c.now().In(c.cfg.Location)
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []time.Time
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.cfg.Location)
	for businessDays := 0; businessDays < c.cfg.DaysAhead; day = day.AddDate(0, 0, 1) {
		if !isBusinessDay(day) {
			continue
		}
		businessDays++
		// Wall-clock hours, so a DST change at midnight does not shift the day.
		start := time.Date(day.Year(), day.Month(), day.Day(), c.cfg.OpenHour, 0, 0, 0, c.cfg.Location)
		end := time.Date(day.Year(), day.Month(), day.Day(), c.cfg.CloseHour, 0, 0, 0, c.cfg.Location)
		for slot := start; !slot.Add(c.cfg.Slot).After(end); slot = slot.Add(c.cfg.Slot) {
			if !slot.After(now) {
				continue
			}
			if _, taken := c.booked[slot]; taken {
				continue
			}
			out = append(out, slot)
			if limit > 0 && len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// Book reserves the slot starting at t.
func (c *Calendar) Book(t time.Time) error {
	t = t.In(c.cfg.Location)
	if !t.After(c.now()) {
		return fmt.Errorf("%w: %s is in the past", ErrSlotUnavailable, t.Format(displayLayout))
	}
	if !isBusinessDay(t) {
		return fmt.Errorf("%w: the office is closed on %s", ErrSlotUnavailable, t.Weekday())
	}
	open := time.Date(t.Year(), t.Month(), t.Day(), c.cfg.OpenHour, 0, 0, 0, c.cfg.Location)
	closing := time.Date(t.Year(), t.Month(), t.Day(), c.cfg.CloseHour, 0, 0, 0, c.cfg.Location)
	if t.Before(open) || t.Add(c.cfg.Slot).After(closing) {
		return fmt.Errorf("%w: %s is outside office hours", ErrSlotUnavailable, t.Format(displayLayout))
	}
	if t.Sub(open)%c.cfg.Slot != 0 {
		return fmt.Errorf("%w: appointments start every %d minutes", ErrSlotUnavailable, int(c.cfg.Slot.Minutes()))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, taken := c.booked[t]; taken {
		return fmt.Errorf("%w: %s is already booked", ErrSlotUnavailable, t.Format(displayLayout))
	}
	c.booked[t] = struct{}{}
	return nil
}

// GetAvailability implements Scheduler.
func (c *Calendar) GetAvailability(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return describeSlots(c.OpenSlots(c.cfg.MaxListed)), nil
}

// ScheduleAppointment implements Scheduler.
func (c *Calendar) ScheduleAppointment(ctx context.Context, timeText string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	when, err := ParseTimeExpression(timeText, c.now(), c.cfg.Location)
	if err != nil {
		return unrecognizedTimeReply(timeText), nil
	}
	return c.bookReply(when), nil
}

func (c *Calendar) bookReply(when time.Time) string {
	if err := c.Book(when); err != nil {
		return declineReply(err)
	}
	return confirmationReply(when)
}

func declineReply(err error) string {
	msg := strings.TrimPrefix(err.Error(), ErrSlotUnavailable.Error()+": ")
	return fmt.Sprintf("Sorry, I can't book that: %s. Ask me about availability to see open times.", msg)
}

func describeSlots(slots []time.Time) string {
	if len(slots) == 0 {
		return "We are fully booked for the next few days."
	}
	parts := make([]string, len(slots))
	for i, s := range slots {
		parts[i] = s.Format(displayLayout)
	}
	return "Our next openings are " + strings.Join(parts, ", ") + "."
}

func isBusinessDay(t time.Time) bool {
	return t.Weekday() != time.Saturday && t.Weekday() != time.Sunday
}

// Handler exposes the calendar with the wire contract Client expects.
func (c *Calendar) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/availability", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		text, err := c.GetAvailability(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeText(w, http.StatusOK, text)
	})
	mux.HandleFunc("/schedule", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req scheduleRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		when, err := time.Parse(time.RFC3339, req.Time)
		if err != nil {
			writeText(w, http.StatusUnprocessableEntity, unrecognizedTimeReply(req.Text))
			return
		}
		if err := c.Book(when); err != nil {
			if errors.Is(err, ErrSlotUnavailable) {
				writeText(w, http.StatusConflict, declineReply(err))
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeText(w, http.StatusCreated, confirmationReply(when.In(c.cfg.Location)))
	})
	return mux
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}
