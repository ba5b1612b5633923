// Package ai implements the cover letter text generator against an
// OpenAI-compatible chat completions API.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/letterstack/ms-go-account/config"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
	requestTimeout    = 60 * time.Second
)

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	return &Client{
		apiKey:     cfg.OpenAI.APIKey,
		baseURL:    strings.TrimSuffix(cfg.OpenAI.BaseURL, "/"),
		model:      cfg.OpenAI.Model,
		httpClient: &http.Client{Timeout: requestTimeout},
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}, nil
}

// GenerateCoverLetter asks the model for a letter, retrying transient API
// failures (429 and 5xx) with a fixed delay.
func (c *Client) GenerateCoverLetter(ctx context.Context, cvText, jobDescription string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		letter, retryable, err := c.generateOnce(ctx, cvText, jobDescription)
		if err == nil {
			return letter, nil
		}

		lastErr = err
		logrus.WithError(err).WithFields(logrus.Fields{
			"attempt":     attempt,
			"max_retries": c.maxRetries,
		}).Warn("Letter generation attempt failed")

		if !retryable || ctx.Err() != nil {
			return "", err
		}
		if attempt < c.maxRetries {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) generateOnce(ctx context.Context, cvText, jobDescription string) (string, bool, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(cvText, jobDescription)},
		},
		Temperature: 0.7,
		MaxTokens:   1200,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("chat completions request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("chat completions returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp chatResponse
	if err = json.Unmarshal(body, &apiResp); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if apiResp.Error != nil {
		return "", false, fmt.Errorf("chat completions error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return "", false, fmt.Errorf("no choices in response")
	}

	letter := strings.TrimSpace(apiResp.Choices[0].Message.Content)
	if letter == "" {
		return "", false, fmt.Errorf("empty letter in response")
	}
	return letter, false, nil
}
