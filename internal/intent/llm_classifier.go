package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

const classifierSystemPrompt = `You label messages sent to a dental office assistant. Respond with JSON only.`

const classifierPrompt = `Classify the patient message into ONE intent.

Intents:
- GetAvailability: asking when the office is open or which times are free
- ScheduleAppointment: asking to book, set or make an appointment
- None: anything else (questions about services, insurance, greetings)

Also copy out every date or time expression exactly as written in the message.

Message: %s

Respond with: {"intent": "<intent>", "score": <0..1>, "datetime": ["<span>", ...]}`

// LLMClassifier asks a chat model to label the utterance.
type LLMClassifier struct {
	client LLMClient
	model  string
	logger *logging.Logger
}

// NewLLMClassifier creates an LLM-based intent classifier.
func NewLLMClassifier(client LLMClient, model string, logger *logging.Logger) *LLMClassifier {
	if client == nil {
		panic("intent: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMClassifier{client: client, model: model, logger: logger}
}

type llmLabel struct {
	Intent   string   `json:"intent"`
	Score    float64  `json:"score"`
	Datetime []string `json:"datetime"`
}

// Classify labels text. A reply that cannot be parsed yields the zero Result
// rather than an error so the router falls through to the knowledge base.
func (c *LLMClassifier) Classify(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if IsBenign(text) {
		return Result{}, nil
	}

	resp, err := c.client.Complete(ctx, LLMRequest{
		Model:     c.model,
		System:    classifierSystemPrompt,
		Prompt:    strings.Replace(classifierPrompt, "%s", text, 1),
		MaxTokens: 120,
	})
	if err != nil {
		return Result{}, fmt.Errorf("intent: llm classify: %w", err)
	}

	content := strings.TrimSpace(resp.Text)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}

	var label llmLabel
	if err := json.Unmarshal([]byte(content), &label); err != nil {
		c.logger.Debug("intent: unparseable llm label", "error", err)
		return Result{}, nil
	}
	return label.toResult(text), nil
}

func (l llmLabel) toResult(text string) Result {
	name := ParseName(l.Intent)
	if name == "" {
		return Result{}
	}
	score := clamp01(l.Score)
	res := Result{
		TopIntent: name,
		Score:     score,
		Intents:   map[Name]float64{name: score},
	}
	lower := strings.ToLower(text)
	for _, span := range l.Datetime {
		span = strings.TrimSpace(span)
		if span == "" {
			continue
		}
		res.Entities = append(res.Entities, Entity{
			Kind:  EntityDateTime,
			Text:  span,
			Start: strings.Index(lower, strings.ToLower(span)),
		})
	}
	return res
}
