// Package knowledge looks up answers to free-text questions in a FAQ-style
// knowledge base.
package knowledge

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// Answer is one candidate reply. Score is normalized to [0,1].
type Answer struct {
	Text      string   `json:"answer"`
	Score     float64  `json:"score"`
	Source    string   `json:"source,omitempty"`
	Questions []string `json:"questions,omitempty"`
}

// Looker returns candidate answers ordered by descending Score. An empty
// slice means nothing matched.
type Looker interface {
	Lookup(ctx context.Context, question string) ([]Answer, error)
}

// ErrNotConfigured is returned when a lookup backend lacks required settings.
var ErrNotConfigured = errors.New("knowledge: backend not configured")

// Empty is a Looker that never matches.
type Empty struct{}

func (Empty) Lookup(context.Context, string) ([]Answer, error) { return nil, nil }

func normalizeQuestion(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// sortAnswers orders by score, highest first, keeping backend order on ties.
func sortAnswers(answers []Answer) {
	sort.SliceStable(answers, func(i, j int) bool {
		return answers[i].Score > answers[j].Score
	})
}
