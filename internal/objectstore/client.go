// Package objectstore is a thin client for the hosted storage API used to
// keep rendered contract documents. It speaks the bucket/object HTTP
// surface and hands out time-limited signed URLs.
package objectstore

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

	"github.com/providerdesk/backoffice/internal/logging"
)

// Config configures the storage client.
type Config struct {
	BaseURL string
	APIKey  string
	Bucket  string
	Timeout time.Duration
}

// Client talks to the storage service.
type Client struct {
	baseURL    string
	apiKey     string
	bucket     string
	httpClient *http.Client
	log        *logging.Logger
}

// New creates a storage client.
func New(cfg Config, log *logging.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("storage base URL is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logging.NewDefault("objectstore")
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		bucket:     cfg.Bucket,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}, nil
}

// Upload stores data under key, overwriting any previous object.
func (c *Client) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	urlStr := fmt.Sprintf("%s/object/%s/%s", c.baseURL, c.bucket, url.PathEscape(key))

	headers := map[string]string{
		"Content-Type": contentType,
		"x-upsert":     "true",
	}
	if headers["Content-Type"] == "" {
		headers["Content-Type"] = "application/octet-stream"
	}

	respBody, statusCode, err := c.request(ctx, http.MethodPost, urlStr, data, headers)
	if err != nil {
		return err
	}
	if statusCode >= 400 {
		return parseError(respBody, statusCode)
	}
	return nil
}

// Download fetches the object stored under key.
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	urlStr := fmt.Sprintf("%s/object/%s/%s", c.baseURL, c.bucket, url.PathEscape(key))

	respBody, statusCode, err := c.request(ctx, http.MethodGet, urlStr, nil, nil)
	if err != nil {
		return nil, err
	}
	if statusCode >= 400 {
		return nil, parseError(respBody, statusCode)
	}
	return respBody, nil
}

// CreateSignedURL returns a URL granting temporary read access to key.
func (c *Client) CreateSignedURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	urlStr := fmt.Sprintf("%s/object/sign/%s/%s", c.baseURL, c.bucket, url.PathEscape(key))

	body, err := json.Marshal(map[string]interface{}{
		"expiresIn": int(expiresIn.Seconds()),
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	respBody, statusCode, err := c.request(ctx, http.MethodPost, urlStr, body, map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return "", err
	}
	if statusCode >= 400 {
		return "", parseError(respBody, statusCode)
	}

	var result struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return c.baseURL + result.SignedURL, nil
}

func (c *Client) request(ctx context.Context, method, urlStr string, body []byte, headers map[string]string) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("storage request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

func parseError(body []byte, statusCode int) error {
	var apiErr struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("storage error (%d): %s", statusCode, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("storage error (%d): %s", statusCode, apiErr.Error)
		}
	}
	return fmt.Errorf("storage error (%d)", statusCode)
}
