package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"inteliroute/internal/config"
)

// Prediction is the classifier's answer for one message.
type Prediction struct {
	Department string          `json:"department"`
	Source     string          `json:"source"`
	Prob       *float64        `json:"prob"`
	Candidates json.RawMessage `json:"candidates"`
}

// Classifier predicts the target department for a message given the
// tenant's allowed department names.
type Classifier interface {
	Predict(ctx context.Context, subject, body string, allowed []string, useRules bool, minConfidence float64) (*Prediction, error)
}

type predictRequest struct {
	Subject            string   `json:"subject"`
	Body               string   `json:"body"`
	AllowedDepartments []string `json:"allowed_departments"`
	UseRules           bool     `json:"use_rules"`
	MinConfidence      float64  `json:"min_confidence"`
	ReturnCandidates   bool     `json:"return_candidates"`
}

// Client is an HTTP client for the prediction endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.ClassifierConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
	}
}

// Predict calls POST /predict. Allowed names are deduplicated
// case-insensitively before sending.
func (c *Client) Predict(ctx context.Context, subject, body string, allowed []string, useRules bool, minConfidence float64) (*Prediction, error) {
	payload := predictRequest{
		Subject:            subject,
		Body:               body,
		AllowedDepartments: dedupeFold(allowed),
		UseRules:           useRules,
		MinConfidence:      minConfidence,
		ReturnCandidates:   true,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logrus.WithFields(logrus.Fields{
		"allowed":        strings.Join(payload.AllowedDepartments, ","),
		"use_rules":      useRules,
		"min_confidence": minConfidence,
	}).Debug("Classifier POST /predict")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var pred Prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}

	return &pred, nil
}

// dedupeFold removes case-insensitive duplicates preserving first occurrence.
func dedupeFold(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}
