// Package console feeds lines typed on a local terminal into the dispatcher
// as if they arrived from chat.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/dwizi/rescue-console/internal/dispatch"
)

const (
	defaultChannel      = "#console"
	directTarget        = "@console"
	channelTargetPrefix = "#"
	prompt              = "console> "
)

type Dispatcher interface {
	HandleLine(ctx context.Context, transport dispatch.Transport, nickname, target, line string) dispatch.Outcome
}

type Connector struct {
	in         io.Reader
	out        io.Writer
	user       dispatch.User
	dispatcher Dispatcher
	logger     *slog.Logger

	mu      sync.Mutex
	channel string
}

// New builds a console session. identity is used as the hostname permission
// sets are matched against.
func New(in io.Reader, out io.Writer, identity string, dispatcher Dispatcher, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	identity = strings.TrimSpace(identity)
	return &Connector{
		in:  in,
		out: out,
		user: dispatch.User{
			Nickname:   "console",
			Account:    "console",
			Hostname:   identity,
			Realname:   "local operator",
			Identified: true,
		},
		dispatcher: dispatcher,
		logger:     logger.With("connector", "console"),
		channel:    defaultChannel,
	}
}

func (c *Connector) Name() string {
	return "console"
}

// Start reads lines until EOF, /quit, or ctx is done.
func (c *Connector) Start(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	c.printf("Console ready as %s in %s. Type /help for session commands.\n", c.user.Hostname, c.currentChannel())
	for {
		c.printf("%s", prompt)
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				c.printf("\n")
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if done := c.handleLine(ctx, line); done {
				return nil
			}
		}
	}
}

func (c *Connector) handleLine(ctx context.Context, raw string) bool {
	line := strings.TrimSpace(raw)
	if line == "" {
		return false
	}
	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(command) {
	case "/quit", "/exit":
		return true
	case "/help":
		c.printf("/dm <line>    send a line as a direct message\n/join #name   switch the channel lines are sent to\n/quit         leave the console\n")
		return false
	case "/join":
		if !strings.HasPrefix(rest, channelTargetPrefix) || len(rest) < 2 {
			c.printf("usage: /join #channel\n")
			return false
		}
		c.mu.Lock()
		c.channel = rest
		c.mu.Unlock()
		c.printf("now sending to %s\n", rest)
		return false
	case "/dm":
		if rest == "" {
			c.printf("usage: /dm <line>\n")
			return false
		}
		c.dispatch(ctx, directTarget, rest)
		return false
	}
	c.dispatch(ctx, c.currentChannel(), line)
	return false
}

func (c *Connector) dispatch(ctx context.Context, target, line string) {
	outcome := c.dispatcher.HandleLine(ctx, c, c.user.Nickname, target, line)
	c.logger.Debug("console line dispatched",
		"target", target,
		"outcome", string(outcome.Kind),
		"name", outcome.Name,
	)
}

func (c *Connector) Reply(_ context.Context, target, text string) error {
	label := target
	if !c.IsChannelName(target) {
		label = "dm"
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for index, line := range lines {
		if index == 0 {
			if err := c.printf("[%s] %s\n", label, line); err != nil {
				return err
			}
			continue
		}
		if err := c.printf("%s %s\n", strings.Repeat(" ", len(label)+2), line); err != nil {
			return err
		}
	}
	return nil
}

// Whois knows a single user: the operator at the terminal.
func (c *Connector) Whois(_ context.Context, nickname string) (dispatch.User, error) {
	if !strings.EqualFold(strings.TrimSpace(nickname), c.user.Nickname) {
		return dispatch.User{}, fmt.Errorf("no console user %q", nickname)
	}
	return c.user, nil
}

func (c *Connector) IsChannelName(target string) bool {
	return strings.HasPrefix(target, channelTargetPrefix)
}

func (c *Connector) currentChannel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

func (c *Connector) printf(format string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		return fmt.Errorf("write console output: %w", err)
	}
	return nil
}
