package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve"
)

// FAQ is one question/answer pair of a local knowledge file.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Source   string `json:"source,omitempty"`
}

// LoadFAQFile reads a JSON array of FAQ entries.
func LoadFAQFile(path string) ([]FAQ, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("knowledge: read faq file: %w", err)
	}
	var faqs []FAQ
	if err := json.Unmarshal(data, &faqs); err != nil {
		return nil, fmt.Errorf("knowledge: decode faq file: %w", err)
	}
	return faqs, nil
}

// Index is an in-memory full-text index over FAQ entries.
type Index struct {
	index    bleve.Index
	entries  map[string]FAQ
	top      int
	minScore float64
}

// NewIndex indexes faqs in memory. Entries without a question or answer are skipped.
func NewIndex(faqs []FAQ, top int, minScore float64) (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("knowledge: create index: %w", err)
	}
	if top <= 0 {
		top = 3
	}

	entries := make(map[string]FAQ, len(faqs))
	batch := idx.NewBatch()
	for i, f := range faqs {
		if strings.TrimSpace(f.Question) == "" || strings.TrimSpace(f.Answer) == "" {
			continue
		}
		id := strconv.Itoa(i)
		entries[id] = f
		if err := batch.Index(id, map[string]string{"question": f.Question, "answer": f.Answer}); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("knowledge: index entry %d: %w", i, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("knowledge: commit index: %w", err)
	}
	return &Index{index: idx, entries: entries, top: top, minScore: minScore}, nil
}

// Lookup matches question against the indexed questions and answers.
func (x *Index) Lookup(ctx context.Context, question string) ([]Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(question), x.top, 0, false)
	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("knowledge: search: %w", err)
	}

	answers := make([]Answer, 0, len(res.Hits))
	for _, hit := range res.Hits {
		entry, ok := x.entries[hit.ID]
		if !ok {
			continue
		}
		score := hit.Score / (hit.Score + 1)
		if score < x.minScore {
			continue
		}
		answers = append(answers, Answer{
			Text:      entry.Answer,
			Score:     score,
			Source:    entry.Source,
			Questions: []string{entry.Question},
		})
	}
	sortAnswers(answers)
	return answers, nil
}

// Len returns the number of indexed entries.
func (x *Index) Len() int {
	return len(x.entries)
}

// Close releases the index.
func (x *Index) Close() error {
	return x.index.Close()
}
