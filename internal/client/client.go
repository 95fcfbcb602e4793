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

	"github.com/five82/kdebridge/internal/protocol"
)

// StateFetcher defines the interface for reading the bridge state.
// This interface is implemented by *Client and can be used for testing.
type StateFetcher interface {
	FetchState(ctx context.Context) (*protocol.BridgeState, error)
}

// Ensure Client implements StateFetcher at compile time.
var _ StateFetcher = (*Client)(nil)

// Client talks to the bridge daemon over HTTP and WebSocket.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultListen    = "127.0.0.1:7489"
	defaultUserAgent = "kdebridge/0.1"
	requestTimeout   = 5 * time.Second
)

// NewClient builds a Client using the provided listen host:port value.
func NewClient(listen string) (*Client, error) {
	base, err := parseBaseURL(listen)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// FetchState retrieves the daemon's read-only view of the bridge.
func (c *Client) FetchState(ctx context.Context) (*protocol.BridgeState, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload protocol.BridgeState
	if err := c.do(ctx, http.MethodGet, "/api/state", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// ClickRequest is the body of POST /api/menu/click.
type ClickRequest struct {
	ItemID string `json:"itemId"`
	URL    string `json:"url"`
}

// ClickMenu activates a context menu item for url.
func (c *Client) ClickMenu(ctx context.Context, itemID, link string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(itemID) == "" {
		return fmt.Errorf("item id required")
	}
	return c.do(ctx, http.MethodPost, "/api/menu/click", ClickRequest{ItemID: itemID, URL: link}, nil)
}

// Share attaches as a CLI surface, asks the host to send link to target and
// detaches once the message is written.
func (c *Client) Share(ctx context.Context, target, link string) error {
	if strings.TrimSpace(target) == "" || strings.TrimSpace(link) == "" {
		return fmt.Errorf("share needs a device and a url")
	}
	s, err := c.Attach(ctx, "cli")
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Send(protocol.NewShare(target, link))
}

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("api %s returned status %d", e.Path, e.Status)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	rel := &url.URL{Path: path}
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Path: rel.String(), Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&payload) == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(listen string) (*url.URL, error) {
	trimmed := strings.TrimSpace(listen)
	if trimmed == "" {
		trimmed = defaultListen
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse listen %q: %w", listen, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
