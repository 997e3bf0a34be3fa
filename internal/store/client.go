package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client communicates with the annotation persistence HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a persistence client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListAnnotations fetches the ordered annotations recorded for a book.
func (c *Client) ListAnnotations(ctx context.Context, bookID string) ([]Annotation, error) {
	var out struct {
		Annotations []Annotation `json:"annotations"`
	}
	if err := c.do(ctx, http.MethodGet, "/books/"+url.PathEscape(bookID)+"/annotations", nil, &out); err != nil {
		return nil, err
	}
	return out.Annotations, nil
}

// SaveAnnotation persists annotation metadata (confidence, strategy and
// retry bookkeeping updated after an application attempt).
func (c *Client) SaveAnnotation(ctx context.Context, bookID string, ann Annotation) error {
	return c.do(ctx, http.MethodPut, "/books/"+url.PathEscape(bookID)+"/annotations/"+url.PathEscape(ann.ID), ann, nil)
}

// DeleteAnnotation removes an annotation record.
func (c *Client) DeleteAnnotation(ctx context.Context, bookID, annID string) error {
	return c.do(ctx, http.MethodDelete, "/books/"+url.PathEscape(bookID)+"/annotations/"+url.PathEscape(annID), nil, nil)
}

// PositionRecord is the persisted shape of a reading-position snapshot.
// The engine's richer snapshot type serializes into Data.
type PositionRecord struct {
	BookID    string          `json:"book_id"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SavePosition persists the reader's position snapshot for a book.
func (c *Client) SavePosition(ctx context.Context, bookID string, data json.RawMessage) error {
	rec := PositionRecord{BookID: bookID, Data: data, UpdatedAt: time.Now()}
	return c.do(ctx, http.MethodPut, "/books/"+url.PathEscape(bookID)+"/position", rec, nil)
}

// LoadPosition fetches the stored position snapshot, or nil if none.
func (c *Client) LoadPosition(ctx context.Context, bookID string) (json.RawMessage, error) {
	var rec PositionRecord
	err := c.do(ctx, http.MethodGet, "/books/"+url.PathEscape(bookID)+"/position", nil, &rec)
	if err != nil {
		return nil, err
	}
	return rec.Data, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
