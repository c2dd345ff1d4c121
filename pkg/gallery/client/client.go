// Package client is an HTTP client for the gallery API.
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
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/cloud-gallery/pkg/gallery"
	"github.com/tendant/cloud-gallery/pkg/gallery/api"
)

// APIError is a non-2xx answer from the gallery API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("gallery api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("gallery api: %s: %s", e.Code, e.Message)
}

// Unwrap maps API errors back onto the gallery sentinels
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return gallery.ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return gallery.ErrImageNotFound
	case e.Code == "invalid_content_type":
		return gallery.ErrInvalidContentType
	}
	return nil
}

// Client talks to a gallery server
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken sets the bearer token sent on write requests
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a client for the server at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestUpload asks the server for an upload intent
func (c *Client) RequestUpload(ctx context.Context, contentType string) (*gallery.UploadIntent, error) {
	body, err := json.Marshal(api.CreateImageRequest{ContentType: contentType})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	var intent gallery.UploadIntent
	if err := c.do(req, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// Upload PUTs data to the intent's upload URL with the declared content type
func (c *Client) Upload(ctx context.Context, intent *gallery.UploadIntent, data io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, intent.UploadURL, data)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", intent.ContentType)
	return c.do(req, nil)
}

// ListReady returns the gallery feed. A zero limit uses the server default.
func (c *Client) ListReady(ctx context.Context, limit int) ([]gallery.GalleryItem, error) {
	u := c.baseURL + "/images"
	if limit > 0 {
		u += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var items []gallery.GalleryItem
	if err := c.do(req, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetImage returns one record in any status
func (c *Client) GetImage(ctx context.Context, id uuid.UUID) (*api.ImageResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/images/"+id.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var view api.ImageResponse
	if err := c.do(req, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			apiErr.Code = body.Error.Code
			apiErr.Message = body.Error.Message
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// IsStatus reports whether err is an APIError with the given HTTP status
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
