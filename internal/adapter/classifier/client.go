// Package classifier scores hazard labels for a conditions description
// using a zero-shot text classification service, with a deterministic
// local heuristic when the service cannot answer.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/coastal-hazard-watch/internal/domain"
	"github.com/couchcryptid/coastal-hazard-watch/internal/observability"
)

// Classifier scores candidate hazard labels for a description of current
// conditions.
type Classifier interface {
	Classify(ctx context.Context, description string, labels []string) (domain.LabelClassification, error)
}

// Client implements Classifier against an HTTP classification service.
type Client struct {
	serviceURL string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a classifier client.
func NewClient(serviceURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		serviceURL: serviceURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

type classifyRequest struct {
	Text   string   `json:"text"`
	Labels []string `json:"labels"`
}

// classifyResponse follows the zero-shot convention of parallel label and
// score arrays, best first.
type classifyResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// Classify scores the candidate labels for the description. When the
// service is unreachable or answers non-200 the local heuristic answers
// instead, marked Fallback; the caller decides how much to trust it.
func (c *Client) Classify(ctx context.Context, description string, labels []string) (domain.LabelClassification, error) {
	body, err := json.Marshal(classifyRequest{Text: description, Labels: labels})
	if err != nil {
		return domain.LabelClassification{}, fmt.Errorf("classifier: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return domain.LabelClassification{}, fmt.Errorf("classifier: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ClassifierAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Warn("classifier unreachable, using heuristic scores", "error", err)
		c.metrics.ClassifierRequests.WithLabelValues("fallback").Inc()
		return domain.LabelClassification{Scores: fallbackScores(description, labels), Fallback: true}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("classifier error status, using heuristic scores",
			"status", resp.StatusCode,
		)
		c.metrics.ClassifierRequests.WithLabelValues("fallback").Inc()
		return domain.LabelClassification{Scores: fallbackScores(description, labels), Fallback: true}, nil
	}

	var decoded classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.metrics.ClassifierRequests.WithLabelValues("error").Inc()
		return domain.LabelClassification{}, fmt.Errorf("classifier: decode response: %w", err)
	}
	if len(decoded.Labels) != len(decoded.Scores) {
		c.metrics.ClassifierRequests.WithLabelValues("error").Inc()
		return domain.LabelClassification{}, fmt.Errorf("classifier: %d labels but %d scores",
			len(decoded.Labels), len(decoded.Scores))
	}

	scores := make(map[string]float64, len(decoded.Labels))
	for i, label := range decoded.Labels {
		scores[label] = decoded.Scores[i]
	}

	c.metrics.ClassifierRequests.WithLabelValues("success").Inc()
	return domain.LabelClassification{Scores: scores}, nil
}

var readingPattern = regexp.MustCompile(`(wave height|wind speed) ([0-9]+(?:\.[0-9]+)?)`)

// fallbackScores produces deterministic scores from the readings quoted in
// the description: one dominant label picked by coarse thresholds gets 0.4,
// the rest of the mass spreads evenly. With nothing notable the spread is
// uniform, which downstream retention treats as no signal.
func fallbackScores(description string, labels []string) map[string]float64 {
	if len(labels) == 0 {
		return nil
	}

	readings := make(map[string]float64)
	for _, m := range readingPattern.FindAllStringSubmatch(strings.ToLower(description), -1) {
		if v, err := strconv.ParseFloat(m[2], 64); err == nil {
			readings[m[1]] = v
		}
	}

	var primary string
	switch {
	case readings["wave height"] > 4.0:
		primary = domain.LabelCritical
	case readings["wave height"] > 2.5:
		primary = string(domain.HazardHighWaves)
	case readings["wind speed"] > 15.0:
		primary = string(domain.HazardStorm)
	}

	hasPrimary := false
	for _, label := range labels {
		if label == primary {
			hasPrimary = true
			break
		}
	}

	scores := make(map[string]float64, len(labels))
	if !hasPrimary || len(labels) == 1 {
		for _, label := range labels {
			scores[label] = 1.0 / float64(len(labels))
		}
		return scores
	}

	const primaryScore = 0.4
	rest := (1.0 - primaryScore) / float64(len(labels)-1)
	for _, label := range labels {
		if label == primary {
			scores[label] = primaryScore
		} else {
			scores[label] = rest
		}
	}
	return scores
}
