// Package adminclient reads the status API of a running rescue-console.
package adminclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dwizi/rescue-console/internal/config"
	"github.com/dwizi/rescue-console/internal/rescue"
)

var ErrNotReady = errors.New("instance not ready")

type Client struct {
	baseURL string
	http    *http.Client
}

type Board struct {
	Online bool            `json:"online"`
	Items  []rescue.Record `json:"items"`
	Count  int             `json:"count"`
}

type Stats struct {
	Online       bool   `json:"online"`
	RescueCount  int    `json:"rescue_count"`
	CycleAt      int    `json:"cycle_at"`
	NoMatchCount uint64 `json:"no_match_count"`
	Prefix       string `json:"prefix"`
}

type apiError struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func New(cfg config.Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.AdminAPIURL), "/")
	if base == "" {
		return nil, fmt.Errorf("admin api url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse admin api url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("admin api url must be http or https, got %q", base)
	}

	timeout := time.Duration(cfg.AdminHTTPTimeoutSec) * time.Second
	if timeout < time.Second {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if c == nil {
		return nil
	}
	if timeout < time.Second {
		return c
	}
	clone := *c
	if c.http == nil {
		clone.http = &http.Client{Timeout: timeout}
		return &clone
	}
	httpClone := *c.http
	httpClone.Timeout = timeout
	clone.http = &httpClone
	return &clone
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Board(ctx context.Context) (Board, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/board", nil)
	if err != nil {
		return Board{}, err
	}
	var board Board
	if err := c.doJSON(req, &board); err != nil {
		return Board{}, err
	}
	return board, nil
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/stats", nil)
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	if err := c.doJSON(req, &stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// Ready reports nil when the instance answers /readyz with 200.
func (c *Client) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/readyz", nil)
	if err != nil {
		return err
	}
	if err := c.doJSON(req, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	return nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		var payload apiError
		_ = json.NewDecoder(res.Body).Decode(&payload)
		message := strings.TrimSpace(payload.Error)
		if message == "" {
			message = res.Status
		}
		return errors.New(message)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
