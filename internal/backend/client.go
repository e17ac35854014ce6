// Package backend is the client for the launchpad metadata service: project
// records and upload targets for token imagery. It has no coupling to the
// ledger; registration failures never roll back confirmed chain steps.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ServiceTokenHeader carries the signed service token.
const ServiceTokenHeader = "X-Service-Token"

// Client is an authenticated HTTP client for the metadata service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	serviceID  string
	signingKey []byte
	maxRetries int
}

// ClientConfig configures the metadata client.
type ClientConfig struct {
	BaseURL    string
	ServiceID  string
	SigningKey []byte
	Timeout    time.Duration
	MaxRetries int
}

// NewClient creates a metadata service client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 2
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		serviceID:  cfg.ServiceID,
		signingKey: cfg.SigningKey,
		maxRetries: maxRetries,
	}
}

// Record is a registered project metadata record.
type Record struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Symbol      string            `json:"symbol"`
	Description string            `json:"description"`
	ImageKey    string            `json:"image_key,omitempty"`
	Addresses   map[string]string `json:"addresses,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// UploadTarget is a pre-authorized object-storage destination.
type UploadTarget struct {
	UploadURL string `json:"upload_url"`
	ObjectKey string `json:"object_key"`
}

// CreateRecord registers project metadata and returns the stored record.
func (c *Client) CreateRecord(ctx context.Context, fields Record) (*Record, error) {
	var record Record
	if err := c.post(ctx, "/records", fields, &record); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	return &record, nil
}

// GetUploadTarget requests an upload destination for the given file.
func (c *Client) GetUploadTarget(ctx context.Context, fileName, contentType string) (*UploadTarget, error) {
	payload := map[string]string{
		"file_name":    fileName,
		"content_type": contentType,
	}
	var target UploadTarget
	if err := c.post(ctx, "/uploads", payload, &target); err != nil {
		return nil, fmt.Errorf("get upload target: %w", err)
	}
	return &target, nil
}

func (c *Client) post(ctx context.Context, path string, body, target interface{}) error {
	return c.doWithRetry(ctx, path, body, target, 0)
}

func (c *Client) doWithRetry(ctx context.Context, path string, body, target interface{}, attempt int) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if len(c.signingKey) > 0 {
		token, err := c.serviceToken()
		if err != nil {
			return fmt.Errorf("generate service token: %w", err)
		}
		req.Header.Set(ServiceTokenHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	// Retry transient auth failures once the token is regenerated.
	if (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) && attempt < c.maxRetries {
		resp.Body.Close()
		return c.doWithRetry(ctx, path, body, target, attempt+1)
	}

	return decodeResponse(resp, target)
}

func (c *Client) serviceToken() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    c.serviceID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signingKey)
}

func decodeResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := strings.TrimSpace(string(body))
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, msg)
	}

	if target == nil {
		_, err := io.Copy(io.Discard, io.LimitReader(resp.Body, 8<<20))
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
