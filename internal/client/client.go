// Package client talks to the liftlog server over HTTP. It is the
// persistence, template-preload and draft-storage boundary for editors
// running outside the server process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/catalog"
	"github.com/claude/liftlog/internal/draft"
	"github.com/claude/liftlog/internal/models"
)

// StatusError is a non-2xx response. Body is the raw response body.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, e.Message())
}

// Message returns the server's error message, or the raw body when the body
// is not a JSON error object.
func (e *StatusError) Message() string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(e.Body), &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return e.Status
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client sends requests to the liftlog server. Requests are never retried.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
}

// New creates a client for serverURL. apiKey may be empty when the server
// does not require one.
func New(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) request(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(raw)}
	}
	return resp, nil
}

// doJSON sends in (when non-nil) as JSON and decodes the response into out
// (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	resp, err := c.request(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// Me returns the user the server resolved for this client.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var u models.User
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/me", nil, &u)
	return u, err
}

// Exercises returns the catalog records visible to the caller.
func (c *Client) Exercises(ctx context.Context) ([]catalog.Record, error) {
	var recs []catalog.Record
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/exercises", nil, &recs)
	return recs, err
}

// StartSession starts a workout session, optionally from a template.
func (c *Client) StartSession(ctx context.Context, templateID string) (models.SessionRow, error) {
	var s models.SessionRow
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/sessions", models.StartSessionRequest{TemplateID: templateID}, &s)
	return s, err
}

// SessionItems returns the persisted flat items of a session.
func (c *Client) SessionItems(ctx context.Context, sessionID string) ([]models.FlatItem, error) {
	var p models.ItemsPayload
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/sets", nil, &p)
	return p.Items, err
}

// FinishWorkout submits the flattened sets and marks the session finished.
func (c *Client) FinishWorkout(ctx context.Context, sessionID string, items []models.FlatItem) (models.FinishResponse, error) {
	var resp models.FinishResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/finish",
		models.ItemsPayload{Items: items}, &resp)
	return resp, err
}

// DeleteSession deletes a session and its sets.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/sessions/"+url.PathEscape(sessionID), nil, nil)
}

// SaveTemplate creates a template, or replaces one when templateID is set.
func (c *Client) SaveTemplate(ctx context.Context, templateID, name string, items []models.FlatItem) (models.TemplateRow, error) {
	method, path := http.MethodPost, "/api/v1/templates"
	if templateID != "" {
		method, path = http.MethodPut, path+"/"+url.PathEscape(templateID)
	}
	var t models.TemplateRow
	err := c.doJSON(ctx, method, path, models.TemplateRequest{Name: name, Items: items}, &t)
	return t, err
}

// TemplateItems returns a template's flat items for preloading.
func (c *Client) TemplateItems(ctx context.Context, templateID string) ([]models.FlatItem, error) {
	var p models.ItemsPayload
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/templates/"+url.PathEscape(templateID)+"/exercises", nil, &p)
	return p.Items, err
}

func draftPath(key string) string {
	return "/api/v1/drafts/" + url.PathEscape(key)
}

// Get implements draft.Backend.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := c.request(ctx, http.MethodGet, draftPath(key), nil, "")
	if IsStatus(err, http.StatusNotFound) {
		return nil, draft.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Set implements draft.Backend.
func (c *Client) Set(ctx context.Context, key string, data []byte) error {
	resp, err := c.request(ctx, http.MethodPut, draftPath(key), bytes.NewReader(data), "application/json")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Remove implements draft.Backend.
func (c *Client) Remove(ctx context.Context, key string) error {
	resp, err := c.request(ctx, http.MethodDelete, draftPath(key), nil, "")
	if IsStatus(err, http.StatusNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
