package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	errReconnectRequested = errors.New("gateway requested reconnect")
	errSessionInvalidated = errors.New("gateway invalidated the session")
	errUndecodableFrame   = errors.New("undecodable gateway frame")
)

// gatewaySession is one websocket connection to the gateway. Writes are
// serialized because heartbeats go out from their own goroutine.
type gatewaySession struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	sequence atomic.Int64
	interval time.Duration
}

func (s *gatewaySession) send(op int, data any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(map[string]any{"op": op, "d": data})
}

func (s *gatewaySession) read() (gatewayFrame, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return gatewayFrame{}, err
	}
	var frame gatewayFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return gatewayFrame{}, fmt.Errorf("%w: %v", errUndecodableFrame, err)
	}
	if frame.Sequence != nil {
		s.sequence.Store(*frame.Sequence)
	}
	return frame, nil
}

// Start keeps a gateway session open until ctx is done, reconnecting after
// retryDelay whenever one ends.
func (c *Connector) Start(ctx context.Context) error {
	if c.token == "" || c.dispatcher == nil {
		c.logger.Info("discord connector idle", "token_configured", c.token != "", "dispatcher_configured", c.dispatcher != nil)
		<-ctx.Done()
		return nil
	}

	for attempt := 1; ; attempt++ {
		err := c.runSession(ctx)
		if ctx.Err() != nil {
			c.logger.Info("discord connector stopped")
			return nil
		}
		c.logger.Warn("discord session lost", "attempt", attempt, "retry_in", c.retryDelay.String(), "error", err)
		select {
		case <-ctx.Done():
			c.logger.Info("discord connector stopped")
			return nil
		case <-time.After(c.retryDelay):
		}
	}
}

func (c *Connector) runSession(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.gatewayURL, nil)
	if err != nil {
		return fmt.Errorf("dial discord gateway: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	session := &gatewaySession{conn: conn}
	if err := c.awaitHello(session); err != nil {
		return err
	}
	if err := session.send(opIdentify, c.identifyData()); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go c.keepAlive(heartbeatCtx, session)

	for {
		frame, err := session.read()
		if errors.Is(err, errUndecodableFrame) {
			c.logger.Warn("gateway frame skipped", "error", err)
			continue
		}
		if err != nil {
			return fmt.Errorf("read gateway frame: %w", err)
		}
		switch frame.Op {
		case opDispatch:
			c.handleEvent(ctx, frame)
		case opHeartbeat:
			if err := session.send(opHeartbeat, session.sequence.Load()); err != nil {
				return fmt.Errorf("answer heartbeat request: %w", err)
			}
		case opReconnect:
			return errReconnectRequested
		case opInvalidSession:
			return errSessionInvalidated
		case opHeartbeatAck:
		}
	}
}

// awaitHello reads frames until the gateway announces its heartbeat interval.
func (c *Connector) awaitHello(session *gatewaySession) error {
	for {
		frame, err := session.read()
		if err != nil {
			return fmt.Errorf("read hello: %w", err)
		}
		if frame.Op != opHello {
			continue
		}
		var hello helloData
		if err := json.Unmarshal(frame.Data, &hello); err != nil {
			return fmt.Errorf("decode hello: %w", err)
		}
		session.interval = time.Duration(hello.HeartbeatIntervalMS) * time.Millisecond
		return nil
	}
}

func (c *Connector) identifyData() map[string]any {
	return map[string]any{
		"token":   c.token,
		"intents": intentGuilds | intentGuildMessages | intentDirectMessages | intentMessageContents,
		"properties": map[string]string{
			"os":      "linux",
			"browser": "rescue-console",
			"device":  "rescue-console",
		},
	}
}

func (c *Connector) handleEvent(ctx context.Context, frame gatewayFrame) {
	switch frame.Event {
	case eventReady:
		var ready readyData
		if err := json.Unmarshal(frame.Data, &ready); err != nil {
			c.logger.Warn("ready event undecodable", "error", err)
			return
		}
		c.botUserID = strings.TrimSpace(ready.User.ID)
		c.logger.Info("discord session ready", "bot_user_id", c.botUserID, "session_id", ready.SessionID)
	case eventMessageCreate:
		var message messageCreate
		if err := json.Unmarshal(frame.Data, &message); err != nil {
			c.logger.Warn("message event undecodable", "error", err)
			return
		}
		c.handleMessageCreate(ctx, message)
	}
}

// keepAlive sends heartbeats at the interval from hello. It stops on the
// first failed write; the read loop then sees the broken connection.
func (c *Connector) keepAlive(ctx context.Context, session *gatewaySession) {
	interval := session.interval
	if interval < time.Second {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := session.send(opHeartbeat, session.sequence.Load()); err != nil {
				c.logger.Warn("heartbeat not sent", "error", err)
				return
			}
		}
	}
}
