// Package notesclient is the Go client of the notely API together with a
// cached data layer for list, detail and tag queries.
package notesclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx reply of the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notely api: %s (status %d)", e.Message, e.Status)
}

// Is maps the status code onto the shared error taxonomy so callers can
// use errors.Is(err, ErrNotFound) and friends.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusBadRequest:
		return target == ErrInvalidInput
	case http.StatusUnauthorized:
		return target == ErrUnauthenticated
	case http.StatusNotFound:
		return target == ErrNotFound
	case http.StatusPreconditionFailed:
		return target == ErrConflict
	}
	return false
}

// Client calls the notely REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer credential sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the API mounted at baseURL (e.g.
// "http://localhost:3000/api").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// send performs req and decodes a JSON reply into out.
func (c *Client) send(req *http.Request, out any) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var body struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(data))
		}
		return resp, &APIError{Status: resp.StatusCode, Message: body.Error}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("notely api: decode %s %s: %w", req.Method, req.URL.Path, err)
		}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	_, err = c.send(req, out)
	return err
}

// FilterQuery encodes f the way GET /notes expects it. Zero page and limit
// are omitted so the server defaults apply.
func FilterQuery(f NoteFilter) url.Values {
	q := url.Values{}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	for _, t := range f.Tags {
		q.Add("tags", t)
	}
	return q
}

// ListNotes returns one page of notes matching f.
func (c *Client) ListNotes(ctx context.Context, f NoteFilter) (*NoteList, error) {
	path := "/notes"
	if q := FilterQuery(f).Encode(); q != "" {
		path += "?" + q
	}
	var list NoteList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	if list.Data == nil {
		list.Data = []Note{}
	}
	return &list, nil
}

// GetNote returns a note and its ETag.
func (c *Client) GetNote(ctx context.Context, id string) (*Note, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/notes/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, "", err
	}
	var n Note
	resp, err := c.send(req, &n)
	if err != nil {
		return nil, "", err
	}
	return &n, resp.Header.Get("ETag"), nil
}

// CreateNote creates a note.
func (c *Client) CreateNote(ctx context.Context, in NoteInput) (*Note, error) {
	var n Note
	if err := c.do(ctx, http.MethodPost, "/notes", in, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateNote applies patch. A non-empty ifMatch makes the update fail with
// ErrConflict when the note changed since that ETag was read.
func (c *Client) UpdateNote(ctx context.Context, id string, patch NotePatch, ifMatch string) (*Note, error) {
	req, err := c.newRequest(ctx, http.MethodPatch, "/notes/"+url.PathEscape(id), patch)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}
	var n Note
	if _, err := c.send(req, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// DeleteNote deletes a note and returns it.
func (c *Client) DeleteNote(ctx context.Context, id string) (*Note, error) {
	var n Note
	if err := c.do(ctx, http.MethodDelete, "/notes/"+url.PathEscape(id), nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Tags returns the distinct tags of the caller's notes.
func (c *Client) Tags(ctx context.Context) ([]string, error) {
	tags := []string{}
	if err := c.do(ctx, http.MethodGet, "/tags", nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// GenerateTags asks the server to suggest up to two tags for content.
func (c *Client) GenerateTags(ctx context.Context, content string) ([]string, error) {
	tags := []string{}
	if err := c.do(ctx, http.MethodPost, "/tags/generate", map[string]string{"content": content}, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// SendMagicLink asks the server to email a sign-in link. A rejection by the
// identity provider is returned as an error carrying its message.
func (c *Client) SendMagicLink(ctx context.Context, email string) (string, error) {
	var reply struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/send-token", map[string]string{"email": email}, &reply); err != nil {
		return "", err
	}
	if !reply.Success {
		return "", errors.New(reply.Message)
	}
	return reply.Message, nil
}
