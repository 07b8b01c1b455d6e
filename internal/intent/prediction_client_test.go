package intent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

func newTestPredictionClient(t *testing.T, handler http.HandlerFunc) *PredictionClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	client, err := NewPredictionClient(PredictionConfig{
		Endpoint: ts.URL + "/",
		AppID:    "app-1",
		APIKey:   "secret",
		Timeout:  time.Second,
	}, logging.Discard())
	if err != nil {
		t.Fatalf("NewPredictionClient() error = %v", err)
	}
	return client
}

const scheduleResponse = `{
  "query": "book me in tomorrow at 3pm",
  "prediction": {
    "topIntent": "ScheduleAppointment",
    "intents": {
      "ScheduleAppointment": {"score": 0.93},
      "GetAvailability": {"score": 0.04},
      "None": {"score": 0.01}
    },
    "entities": {
      "datetimeV2": [
        {"type": "datetime", "values": [{"timex": "2026-10-16T15", "resolution": [{"value": "2026-10-16 15:00:00"}]}]}
      ],
      "$instance": {
        "datetimeV2": [
          {"type": "builtin.datetimeV2.datetime", "text": "tomorrow at 3pm", "startIndex": 11, "length": 15}
        ]
      }
    }
  }
}`

func TestPredictionClient_Classify(t *testing.T) {
	client := newTestPredictionClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/luis/prediction/v3.0/apps/app-1/slots/production/predict" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("query"); got != "book me in tomorrow at 3pm" {
			t.Fatalf("query = %q", got)
		}
		if got := r.URL.Query().Get("show-all-intents"); got != "true" {
			t.Fatalf("show-all-intents = %q", got)
		}
		if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "secret" {
			t.Fatalf("subscription key = %q", got)
		}
		_, _ = w.Write([]byte(scheduleResponse))
	})

	res, err := client.Classify(context.Background(), "book me in tomorrow at 3pm")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if res.TopIntent != NameScheduleAppointment || res.Score != 0.93 {
		t.Fatalf("top = %s/%v", res.TopIntent, res.Score)
	}
	if res.Intents[NameGetAvailability] != 0.04 {
		t.Fatalf("intents = %v", res.Intents)
	}
	e, ok := res.FirstEntity(EntityDateTime)
	if !ok {
		t.Fatalf("expected datetime entity, got %+v", res.Entities)
	}
	if e.Text != "tomorrow at 3pm" || e.Value != "2026-10-16 15:00:00" || e.Start != 11 {
		t.Fatalf("entity = %+v", e)
	}
}

func TestPredictionClient_NormalizedDatetimeKey(t *testing.T) {
	client := newTestPredictionClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prediction":{"topIntent":"ScheduleAppointment","intents":{"ScheduleAppointment":{"score":0.7}},
			"entities":{"$instance":{"datetime":[{"text":"friday","startIndex":20},{"text":"monday","startIndex":5}]}}}}`))
	})
	res, err := client.Classify(context.Background(), "monday or maybe friday")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	e, ok := res.FirstEntity(EntityDateTime)
	if !ok || e.Text != "monday" {
		t.Fatalf("first entity = %+v (%v)", e, ok)
	}
}

func TestPredictionClient_BenignInputSkipsBackend(t *testing.T) {
	called := false
	client := newTestPredictionClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	for _, text := range []string{"", "  ", "?!"} {
		res, err := client.Classify(context.Background(), text)
		if err != nil {
			t.Fatalf("Classify(%q) error = %v", text, err)
		}
		if !res.IsZero() {
			t.Fatalf("Classify(%q) = %+v, want zero", text, res)
		}
	}
	if called {
		t.Fatal("backend should not be called for benign input")
	}
}

func TestPredictionClient_HTTPError(t *testing.T) {
	client := newTestPredictionClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	})
	if _, err := client.Classify(context.Background(), "hello"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestPredictionClient_InvalidJSON(t *testing.T) {
	client := newTestPredictionClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prediction":`))
	})
	if _, err := client.Classify(context.Background(), "hello"); err == nil {
		t.Fatal("expected decode error, got nil")
	}
}

func TestPredictionClient_TopIntentDerivedWhenMissing(t *testing.T) {
	client := newTestPredictionClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prediction":{"intents":{"None":{"score":0.2},"GetAvailability":{"score":0.6}}}}`))
	})
	res, err := client.Classify(context.Background(), "are you open")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if res.TopIntent != NameGetAvailability || res.Score != 0.6 {
		t.Fatalf("top = %s/%v", res.TopIntent, res.Score)
	}
}

func TestNewPredictionClient_RequiresSettings(t *testing.T) {
	if _, err := NewPredictionClient(PredictionConfig{Endpoint: "http://x"}, nil); err != ErrNotConfigured {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}
