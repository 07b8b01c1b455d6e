// Package intent classifies user utterances into a small set of bot intents
// and extracts the entities the router needs (currently date/time spans).
package intent

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

// Name identifies an intent. The known intents are constants below; any other
// value coming back from a model is kept verbatim so it can be logged.
type Name string

const (
	NameNone                Name = "None"
	NameGetAvailability     Name = "GetAvailability"
	NameScheduleAppointment Name = "ScheduleAppointment"
)

var knownNames = []Name{NameNone, NameGetAvailability, NameScheduleAppointment}

// ParseName maps a model label onto a known intent, ignoring case. Unknown
// labels are returned unchanged.
func ParseName(label string) Name {
	label = strings.TrimSpace(label)
	for _, n := range knownNames {
		if strings.EqualFold(label, string(n)) {
			return n
		}
	}
	return Name(label)
}

// Known reports whether the intent is one the bot acts on or explicitly ignores.
func (n Name) Known() bool {
	for _, k := range knownNames {
		if n == k {
			return true
		}
	}
	return false
}

// EntityKind identifies the type of an extracted entity.
type EntityKind string

const (
	EntityDateTime EntityKind = "datetime"
)

// ParseEntityKind normalizes recognizer entity labels. Both "datetime" and
// the prebuilt "datetimeV2" map onto EntityDateTime.
func ParseEntityKind(label string) EntityKind {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "datetime", "datetimev2", "builtin.datetimev2", "builtin.datetime":
		return EntityDateTime
	}
	return EntityKind(strings.TrimSpace(label))
}

// Entity is a span of the utterance the recognizer tagged.
type Entity struct {
	Kind  EntityKind `json:"kind"`
	Text  string     `json:"text"`
	Value string     `json:"value,omitempty"`
	Start int        `json:"start"`
}

// Result is the typed outcome of one classification. The zero value means
// "nothing recognized": no top intent, score 0, no entities.
type Result struct {
	TopIntent Name             `json:"top_intent"`
	Score     float64          `json:"score"`
	Intents   map[Name]float64 `json:"intents,omitempty"`
	Entities  []Entity         `json:"entities,omitempty"`
}

// IsZero reports whether nothing was recognized.
func (r Result) IsZero() bool {
	return r.TopIntent == "" && r.Score == 0 && len(r.Entities) == 0
}

// ScoreOf returns the confidence reported for the intent, or 0.
func (r Result) ScoreOf(name Name) float64 {
	if name == r.TopIntent && r.Score > 0 {
		return r.Score
	}
	return r.Intents[name]
}

// Exceeds reports whether name is the top intent with a score strictly above threshold.
func (r Result) Exceeds(name Name, threshold float64) bool {
	return r.TopIntent == name && r.ScoreOf(name) > threshold
}

// FirstEntity returns the first entity of kind with a non-empty text span.
func (r Result) FirstEntity(kind EntityKind) (Entity, bool) {
	for _, e := range r.Entities {
		if e.Kind == kind && strings.TrimSpace(e.Text) != "" {
			return e, true
		}
	}
	return Entity{}, false
}

// Classifier turns an utterance into a Result.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// ErrNotConfigured is returned by classifiers missing required settings.
var ErrNotConfigured = errors.New("intent: classifier not configured")

// IsBenign reports whether text has nothing a model could classify (empty,
// whitespace or punctuation only). Classifiers short-circuit such input.
func IsBenign(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// topOf picks the highest-scoring intent from a score map. Ties resolve to
// the lexically smaller name so the result is stable.
func topOf(scores map[Name]float64) (Name, float64) {
	var (
		best      Name
		bestScore float64
	)
	for name, score := range scores {
		if best == "" || score > bestScore || (score == bestScore && name < best) {
			best, bestScore = name, score
		}
	}
	return best, bestScore
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
