package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

const (
	defaultQnATimeout = 5 * time.Second
	// noMatchAnswerID is the id the service uses for its "No good match found in KB." placeholder.
	noMatchAnswerID = -1
)

// QnAConfig configures a hosted QnA knowledge base.
type QnAConfig struct {
	Host            string
	KnowledgeBaseID string
	EndpointKey     string
	Top             int
	MinScore        float64
	Timeout         time.Duration
}

// QnAClient calls the generateAnswer endpoint of a hosted knowledge base.
type QnAClient struct {
	httpClient *http.Client
	cfg        QnAConfig
	logger     *logging.Logger
}

// NewQnAClient constructs a QnA client.
func NewQnAClient(cfg QnAConfig, logger *logging.Logger) (*QnAClient, error) {
	if strings.TrimSpace(cfg.Host) == "" || strings.TrimSpace(cfg.KnowledgeBaseID) == "" || strings.TrimSpace(cfg.EndpointKey) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Top <= 0 {
		cfg.Top = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultQnATimeout
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if logger == nil {
		logger = logging.Default()
	}
	return &QnAClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
	}, nil
}

type generateAnswerRequest struct {
	Question       string  `json:"question"`
	Top            int     `json:"top"`
	ScoreThreshold float64 `json:"scoreThreshold,omitempty"`
}

type generateAnswerResponse struct {
	Answers []struct {
		ID        int      `json:"id"`
		Answer    string   `json:"answer"`
		Score     float64  `json:"score"`
		Source    string   `json:"source"`
		Questions []string `json:"questions"`
	} `json:"answers"`
}

// Lookup asks the knowledge base for its best answers to question.
func (c *QnAClient) Lookup(ctx context.Context, question string) ([]Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil
	}

	payload, err := json.Marshal(generateAnswerRequest{
		Question:       question,
		Top:            c.cfg.Top,
		ScoreThreshold: c.cfg.MinScore * 100,
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/knowledgebases/%s/generateAnswer", c.cfg.Host, url.PathEscape(c.cfg.KnowledgeBaseID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("knowledge: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "EndpointKey "+c.cfg.EndpointKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("knowledge: generateAnswer request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("knowledge: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("knowledge base non-2xx response", "status", resp.StatusCode, "body", msg)
		return nil, fmt.Errorf("knowledge: generateAnswer returned %d", resp.StatusCode)
	}

	var decoded generateAnswerResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("knowledge: decode response: %w", err)
	}

	answers := make([]Answer, 0, len(decoded.Answers))
	for _, a := range decoded.Answers {
		if a.ID == noMatchAnswerID || strings.TrimSpace(a.Answer) == "" {
			continue
		}
		score := a.Score / 100
		if score < c.cfg.MinScore {
			continue
		}
		answers = append(answers, Answer{
			Text:      a.Answer,
			Score:     score,
			Source:    a.Source,
			Questions: a.Questions,
		})
	}
	sortAnswers(answers)
	return answers, nil
}
