// Package backend talks to the Chill REST API: paged video card fetches and
// the video submission endpoint.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/bitcrank/chill/pkg/chillerr"
	"github.com/bitcrank/chill/pkg/httpclient"
	"github.com/bitcrank/chill/pkg/videocard"
)

// duplicateKeyCode is the backend's unique-violation error code.
const duplicateKeyCode = "23505"

// Client is an authenticated client for the Chill backend.
type Client struct {
	baseURL string
	anonKey string
	http    *httpclient.Client
}

// NewClient creates a backend client for the given base URL and API key.
func NewClient(baseURL, anonKey string) *Client {
	config := httpclient.DefaultConfig()
	config.Timeout = 15 * time.Second
	config.Headers["apikey"] = anonKey

	return &Client{
		baseURL: baseURL,
		anonKey: anonKey,
		http:    httpclient.NewClient(config),
	}
}

// Submission is the payload for the video submission endpoint.
type Submission struct {
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	ThumbnailURL    string    `json:"thumbnail_url,omitempty"`
	CreatorName     string    `json:"creator_name"`
	PlatformName    string    `json:"platform_name"`
	VideoURL        string    `json:"video_url,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	Note            string    `json:"note,omitempty"`
	UserID          uuid.UUID `json:"user_id"`
}

// apiError is the backend's error response shape.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FetchCards fetches one page of video cards, newest first. The offset acts
// as the page cursor.
func (c *Client) FetchCards(ctx context.Context, accessToken string, limit, offset int) ([]videocard.DTO, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/video_cards?order=updated_at.desc&limit=%d&offset=%d",
		c.baseURL, limit, offset)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch request: %w", err)
	}
	c.authorize(req, accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chillerr.ErrNetwork, err)
	}

	var dtos []videocard.DTO
	if err := httpclient.DecodeJSONResponse(resp, &dtos); err != nil {
		return nil, fmt.Errorf("failed to decode card page: %w", err)
	}

	slog.Debug("Fetched card page", "count", len(dtos), "offset", offset)
	return dtos, nil
}

// SubmitVideo posts a new video to the backend. A unique-violation response
// maps to chillerr.ErrDuplicateVideo; server errors map to
// chillerr.ErrNetwork so the caller retries them.
func (c *Client) SubmitVideo(ctx context.Context, accessToken string, sub Submission) error {
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to encode submission: %w", err)
	}

	endpoint := c.baseURL + "/rest/v1/videos"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req, accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", chillerr.ErrNetwork, err)
	}

	body, err := httpclient.ReadResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read submission response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		slog.Debug("Submitted video", "url", sub.URL)
		return nil
	}

	return c.mapSubmissionError(resp.StatusCode, body)
}

func (c *Client) mapSubmissionError(statusCode int, body []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code == duplicateKeyCode {
		return chillerr.ErrDuplicateVideo
	}

	if statusCode >= 500 {
		return fmt.Errorf("%w: backend returned %d", chillerr.ErrNetwork, statusCode)
	}

	message := apiErr.Message
	if message == "" {
		message = fmt.Sprintf("backend returned %d", statusCode)
	}
	return &chillerr.SubmissionError{Reason: message}
}

func (c *Client) authorize(req *http.Request, accessToken string) {
	req.Header.Set("apikey", c.anonKey)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

// RealtimeURL returns the websocket endpoint for the change feed on the
// given table.
func (c *Client) RealtimeURL(table string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid backend URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = "/realtime/v1/changes/" + table
	q := u.Query()
	q.Set("apikey", c.anonKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
