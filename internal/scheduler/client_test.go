package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL+"/", logging.Discard(),
		WithTimeout(time.Second),
		WithLocation(time.UTC),
		WithClock(func() time.Time { return testNow }),
	)
}

func TestClient_AgainstCalendarBackend(t *testing.T) {
	client := newTestClient(t, newTestCalendar().Handler())
	ctx := context.Background()

	text, err := client.GetAvailability(ctx)
	if err != nil {
		t.Fatalf("GetAvailability() error = %v", err)
	}
	if !strings.HasPrefix(text, "Our next openings are Thu Oct 15 at 10:30 AM") {
		t.Fatalf("availability = %q", text)
	}

	reply, err := client.ScheduleAppointment(ctx, "tomorrow at 3pm")
	if err != nil {
		t.Fatalf("ScheduleAppointment() error = %v", err)
	}
	if reply != "An appointment is set for Fri Oct 16 at 3:00 PM." {
		t.Fatalf("reply = %q", reply)
	}

	reply, err = client.ScheduleAppointment(ctx, "tomorrow at 3pm")
	if err != nil {
		t.Fatalf("second booking error = %v", err)
	}
	if !strings.Contains(reply, "already booked") {
		t.Fatalf("conflict reply = %q", reply)
	}

	reply, err = client.ScheduleAppointment(ctx, "saturday at 10am")
	if err != nil {
		t.Fatalf("weekend booking error = %v", err)
	}
	if !strings.Contains(reply, "closed on Saturday") {
		t.Fatalf("weekend reply = %q", reply)
	}
}

func TestClient_ScheduleSendsParsedTime(t *testing.T) {
	var got scheduleRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/schedule" {
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))

	reply, err := client.ScheduleAppointment(context.Background(), "next monday at 11am")
	if err != nil {
		t.Fatalf("ScheduleAppointment() error = %v", err)
	}
	if got.Time != "2026-10-19T11:00:00Z" || got.Text != "next monday at 11am" {
		t.Fatalf("request = %+v", got)
	}
	if reply != "An appointment is set for Mon Oct 19 at 11:00 AM." {
		t.Fatalf("empty-body reply = %q", reply)
	}
}

func TestClient_RejectsWithoutCallingBackend(t *testing.T) {
	called := false
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	reply, err := client.ScheduleAppointment(context.Background(), "whenever you like")
	if err != nil {
		t.Fatalf("unparseable error = %v", err)
	}
	if reply != `Sorry, I couldn't understand "whenever you like" as a date or time. Try something like "tomorrow at 3pm".` {
		t.Fatalf("reply = %q", reply)
	}

	reply, err = client.ScheduleAppointment(context.Background(), "today at 9am")
	if err != nil {
		t.Fatalf("past error = %v", err)
	}
	if !strings.Contains(reply, "already passed") {
		t.Fatalf("past reply = %q", reply)
	}
	if called {
		t.Fatal("backend should not be called")
	}
}

func TestClient_BackendFailures(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	if _, err := client.GetAvailability(context.Background()); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("GetAvailability err = %v", err)
	}
	if _, err := client.ScheduleAppointment(context.Background(), "tomorrow at 3pm"); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("ScheduleAppointment err = %v", err)
	}

	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	down := NewClient(url, logging.Discard(), WithClock(func() time.Time { return testNow }))
	if _, err := down.GetAvailability(context.Background()); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("closed server err = %v", err)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.GetAvailability(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestClient_YearlessDatesReachBackend(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"November 3 at 2pm", "2026-11-03T14:00:00Z"},
		{"12/1 at 10am", "2026-12-01T10:00:00Z"},
		{"December 1st", "2026-12-01T09:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			var got scheduleRequest
			calls := 0
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					t.Fatalf("decode: %v", err)
				}
				w.WriteHeader(http.StatusCreated)
			}))

			reply, err := client.ScheduleAppointment(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("ScheduleAppointment() error = %v", err)
			}
			if calls != 1 {
				t.Fatalf("backend calls = %d, reply = %q", calls, reply)
			}
			if got.Time != tt.want {
				t.Fatalf("sent time = %q, want %q", got.Time, tt.want)
			}
			if strings.Contains(reply, "already passed") {
				t.Fatalf("reply = %q", reply)
			}
		})
	}
}
