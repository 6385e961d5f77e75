// Package mailer is a client for the transactional email provider's HTTP
// API. Transient server errors are retried with a short backoff.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/providerdesk/backoffice/internal/logging"
)

// Config configures the mail client.
type Config struct {
	BaseURL     string
	APIKey      string
	FromAddress string
	Timeout     time.Duration
	MaxRetries  int
}

// Client sends email through the provider API.
type Client struct {
	baseURL    string
	apiKey     string
	from       string
	maxRetries int
	httpClient *http.Client
	log        *logging.Logger
}

// New creates a mail client.
func New(cfg Config, log *logging.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("mailer base URL is required")
	}
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("mailer from address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if log == nil {
		log = logging.NewDefault("mailer")
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		from:       cfg.FromAddress,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}, nil
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Send delivers one email. Server errors (5xx) are retried up to the
// configured limit.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      to,
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
			}
		}

		status, respBody, err := c.post(ctx, payload)
		if err != nil {
			lastErr = err
			continue
		}
		if status < 300 {
			return nil
		}
		lastErr = fmt.Errorf("mailer responded %d: %s", status, strings.TrimSpace(string(respBody)))
		if status < 500 {
			return lastErr
		}
		c.log.WithError(lastErr).WithField("attempt", attempt+1).Warn("mail send retrying")
	}
	return lastErr
}

func (c *Client) post(ctx context.Context, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("mail request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, body, nil
}
