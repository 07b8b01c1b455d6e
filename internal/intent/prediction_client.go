package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

const defaultPredictionTimeout = 5 * time.Second

// PredictionConfig holds the settings of a LUIS v3 style prediction endpoint.
type PredictionConfig struct {
	Endpoint string
	AppID    string
	APIKey   string
	Slot     string
	Timeout  time.Duration
}

// PredictionClient queries a hosted intent recognizer over REST.
type PredictionClient struct {
	httpClient *http.Client
	cfg        PredictionConfig
	logger     *logging.Logger
}

// NewPredictionClient constructs a prediction endpoint client.
func NewPredictionClient(cfg PredictionConfig, logger *logging.Logger) (*PredictionClient, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.AppID) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Slot == "" {
		cfg.Slot = "production"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPredictionTimeout
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if logger == nil {
		logger = logging.Default()
	}
	return &PredictionClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
	}, nil
}

type predictionResponse struct {
	Query      string `json:"query"`
	Prediction struct {
		TopIntent string `json:"topIntent"`
		Intents   map[string]struct {
			Score float64 `json:"score"`
		} `json:"intents"`
		Entities map[string]json.RawMessage `json:"entities"`
	} `json:"prediction"`
}

type instanceEntity struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	StartIndex int    `json:"startIndex"`
}

type datetimeEntity struct {
	Type   string `json:"type"`
	Values []struct {
		Timex      string `json:"timex"`
		Resolution []struct {
			Value string `json:"value"`
			Start string `json:"start"`
		} `json:"resolution"`
	} `json:"values"`
}

// Classify sends the utterance to the prediction endpoint.
func (c *PredictionClient) Classify(ctx context.Context, text string) (Result, error) {
	if IsBenign(text) {
		return Result{}, nil
	}

	q := url.Values{}
	q.Set("query", text)
	q.Set("show-all-intents", "true")
	endpoint := fmt.Sprintf("%s/luis/prediction/v3.0/apps/%s/slots/%s/predict?%s",
		c.cfg.Endpoint, url.PathEscape(c.cfg.AppID), url.PathEscape(c.cfg.Slot), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("intent: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("intent: prediction request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("intent: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("intent prediction non-2xx response", "status", resp.StatusCode, "body", msg)
		return Result{}, fmt.Errorf("intent: prediction endpoint returned %d", resp.StatusCode)
	}

	var decoded predictionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{}, fmt.Errorf("intent: decode response: %w", err)
	}
	return decoded.toResult(), nil
}

func (p predictionResponse) toResult() Result {
	res := Result{}
	if len(p.Prediction.Intents) > 0 {
		res.Intents = make(map[Name]float64, len(p.Prediction.Intents))
		for label, v := range p.Prediction.Intents {
			res.Intents[ParseName(label)] = clamp01(v.Score)
		}
	}
	if top := strings.TrimSpace(p.Prediction.TopIntent); top != "" {
		res.TopIntent = ParseName(top)
		res.Score = res.Intents[res.TopIntent]
	} else {
		res.TopIntent, res.Score = topOf(res.Intents)
	}
	res.Entities = decodeEntities(p.Prediction.Entities)
	return res
}

// decodeEntities reads the $instance block (raw spans) and pairs each span
// with the resolved value of its sibling entity list when one exists.
func decodeEntities(raw map[string]json.RawMessage) []Entity {
	instRaw, ok := raw["$instance"]
	if !ok {
		return nil
	}
	var instances map[string][]instanceEntity
	if err := json.Unmarshal(instRaw, &instances); err != nil {
		return nil
	}

	var out []Entity
	for label, spans := range instances {
		kind := ParseEntityKind(label)
		values := resolvedValues(kind, raw[label])
		for i, span := range spans {
			e := Entity{Kind: kind, Text: strings.TrimSpace(span.Text), Start: span.StartIndex}
			if i < len(values) {
				e.Value = values[i]
			}
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func resolvedValues(kind EntityKind, raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	if kind == EntityDateTime {
		var dts []datetimeEntity
		if err := json.Unmarshal(raw, &dts); err != nil {
			return nil
		}
		out := make([]string, 0, len(dts))
		for _, dt := range dts {
			out = append(out, firstResolution(dt))
		}
		return out
	}
	var plain []string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	return nil
}

func firstResolution(dt datetimeEntity) string {
	for _, v := range dt.Values {
		for _, r := range v.Resolution {
			if r.Value != "" {
				return r.Value
			}
			if r.Start != "" {
				return r.Start
			}
		}
		if v.Timex != "" {
			return v.Timex
		}
	}
	return ""
}
