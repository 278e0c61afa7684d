// Package caseapi talks to the remote case-management service over a
// WebSocket session. Requests carry an id and the service answers with the
// same id, so several requests can be in flight on one connection.
package caseapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dwizi/rescue-console/internal/rescue"
)

const (
	ActionCreateRescue = "rescues:create"
	ActionUpdateRescue = "rescues:update"
	ActionDeleteRescue = "rescues:delete"
)

var (
	ErrNotConnected  = errors.New("case service not connected")
	ErrSessionClosed = errors.New("case service session closed")
	ErrRemote        = errors.New("case service error")
)

// Link is told when a session comes up or goes away. The rescue board
// implements it.
type Link interface {
	GoOnline()
	GoOffline()
}

type Config struct {
	URL        string
	Token      string
	Timeout    time.Duration
	RetryDelay time.Duration
}

type Client struct {
	url        string
	token      string
	timeout    time.Duration
	retryDelay time.Duration
	dialer     *websocket.Dialer
	logger     *slog.Logger

	mu      sync.RWMutex
	current *session
}

func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	return &Client{
		url:        strings.TrimSpace(cfg.URL),
		token:      strings.TrimSpace(cfg.Token),
		timeout:    timeout,
		retryDelay: retryDelay,
		dialer:     websocket.DefaultDialer,
		logger:     logger.With("component", "caseapi"),
	}
}

func (c *Client) Enabled() bool { return c.url != "" }

func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current != nil
}

// Start keeps a session open until ctx is done, reconnecting after failures.
// link goes online for the lifetime of each session.
func (c *Client) Start(ctx context.Context, link Link) error {
	if c.url == "" {
		c.logger.Info("case api disabled, url missing")
		<-ctx.Done()
		return nil
	}
	c.logger.Info("case api client started", "url", c.url)
	for {
		if ctx.Err() != nil {
			c.logger.Info("case api client stopped")
			return nil
		}
		if err := c.runSession(ctx, link); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("case api client stopped")
				return nil
			}
			c.logger.Error("case api session ended, reconnecting", "error", err)
			select {
			case <-ctx.Done():
				c.logger.Info("case api client stopped")
				return nil
			case <-time.After(c.retryDelay):
			}
		}
	}
}

func (c *Client) runSession(ctx context.Context, link Link) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return fmt.Errorf("dial case api: %w", err)
	}
	s := newSession(conn)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c.setSession(s)
	if link != nil {
		link.GoOnline()
	}
	c.logger.Info("case api session established")
	defer func() {
		c.setSession(nil)
		if link != nil {
			link.GoOffline()
		}
		s.close()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read case api message: %w", err)
		}
		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Error("decode case api response failed", "error", err)
			continue
		}
		if !s.resolve(resp) {
			c.logger.Warn("case api response without pending request", "request_id", resp.ID)
		}
	}
}

func (c *Client) setSession(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = s
}

func (c *Client) activeSession() *session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Client) CreateRescue(ctx context.Context, record rescue.Record) (uuid.UUID, error) {
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	if err := c.do(ctx, ActionCreateRescue, record, &created); err != nil {
		return uuid.Nil, err
	}
	return created.ID, nil
}

func (c *Client) UpdateRescue(ctx context.Context, record rescue.Record) error {
	return c.do(ctx, ActionUpdateRescue, record, nil)
}

func (c *Client) RemoveRescue(ctx context.Context, record rescue.Record) error {
	return c.do(ctx, ActionDeleteRescue, map[string]any{"id": record.ID}, nil)
}

func (c *Client) do(ctx context.Context, action string, data any, out any) error {
	s := c.activeSession()
	if s == nil {
		return ErrNotConnected
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", action, err)
	}
	id := uuid.NewString()
	replies := s.register(id)
	defer s.unregister(id)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := s.write(request{ID: id, Action: action, Data: payload}, c.timeout); err != nil {
		return fmt.Errorf("send %s request: %w", action, err)
	}

	select {
	case resp := <-replies:
		if resp.Error != nil {
			return fmt.Errorf("%w: %s: %s", ErrRemote, action, resp.Error.Message)
		}
		if out != nil && len(resp.Data) > 0 {
			if err := json.Unmarshal(resp.Data, out); err != nil {
				return fmt.Errorf("decode %s response: %w", action, err)
			}
		}
		return nil
	case <-s.done:
		return fmt.Errorf("%s: %w", action, ErrSessionClosed)
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", action, ctx.Err())
	}
}

type request struct {
	ID     string          `json:"id"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type response struct {
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *remoteError    `json:"error,omitempty"`
}

type remoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan response
	done    chan struct{}
	once    sync.Once
}

func newSession(conn *websocket.Conn) *session {
	return &session{
		conn:    conn,
		pending: map[string]chan response{},
		done:    make(chan struct{}),
	}
}

func (s *session) register(id string) chan response {
	replies := make(chan response, 1)
	s.mu.Lock()
	s.pending[id] = replies
	s.mu.Unlock()
	return replies
}

func (s *session) unregister(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *session) resolve(resp response) bool {
	s.mu.Lock()
	replies, ok := s.pending[resp.ID]
	delete(s.pending, resp.ID)
	s.mu.Unlock()
	if !ok {
		return false
	}
	replies <- resp
	return true
}

func (s *session) write(req request, timeout time.Duration) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(req)
}

func (s *session) close() {
	s.once.Do(func() { close(s.done) })
}
