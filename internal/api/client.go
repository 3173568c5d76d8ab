package api

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

	"tempodel/internal/config"
)

// ErrUnavailable reports that no daemon API endpoint is configured.
var ErrUnavailable = errors.New("daemon api not configured")

// Client talks to a running tempodeld over HTTP.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for the configured api.bind address.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, ErrUnavailable
	}
	return NewClientForAddress(cfg.API.Bind, cfg.API.Token)
}

// NewClientForAddress builds a client for addr, which may omit the scheme.
func NewClientForAddress(addr, token string) (*Client, error) {
	bind := strings.TrimSpace(addr)
	if bind == "" {
		return nil, ErrUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Status fetches daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// Schedule lists scheduled entries.
func (c *Client) Schedule(ctx context.Context) ([]Entry, error) {
	var out ScheduleListResponse
	if err := c.do(ctx, http.MethodGet, "/api/schedule", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// Add schedules paths through the daemon.
func (c *Client) Add(ctx context.Context, req AddRequest) ([]Entry, error) {
	var out AddResponse
	if err := c.do(ctx, http.MethodPost, "/api/schedule", nil, req, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// Remove unschedules paths through the daemon.
func (c *Client) Remove(ctx context.Context, paths ...string) (RemoveResponse, error) {
	values := url.Values{}
	for _, p := range paths {
		values.Add("path", p)
	}
	var out RemoveResponse
	err := c.do(ctx, http.MethodDelete, "/api/schedule", values, nil, &out)
	return out, err
}

// Reconcile asks the daemon for an immediate pass.
func (c *Client) Reconcile(ctx context.Context) (ReconcileResponse, error) {
	var out ReconcileResponse
	err := c.do(ctx, http.MethodPost, "/api/reconcile", nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrUnavailable
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
