// Package discord connects the dispatcher to Discord guild channels and
// direct messages through the bot gateway.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dwizi/rescue-console/internal/dispatch"
)

const (
	intentGuilds          = 1 << 0
	intentGuildMessages   = 1 << 9
	intentDirectMessages  = 1 << 12
	intentMessageContents = 1 << 15

	// Targets carry their kind so replies and guards need no lookup.
	channelTargetPrefix = "#"
	directTargetPrefix  = "@"
)

// Dispatcher receives every inbound line. HandleLine must finish before the
// next line from the gateway is read.
type Dispatcher interface {
	HandleLine(ctx context.Context, transport dispatch.Transport, nickname, target, line string) dispatch.Outcome
}

type Connector struct {
	token      string
	apiBase    string
	gatewayURL string
	dispatcher Dispatcher
	httpClient *http.Client
	logger     *slog.Logger
	botUserID  string
	retryDelay time.Duration

	// members maps lowercased display names to the last author seen under
	// that name.
	membersMu sync.RWMutex
	members   map[string]dispatch.User
}

func New(token, apiBase, gatewayURL string, dispatcher Dispatcher, logger *slog.Logger) *Connector {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://discord.com/api/v10"
	}
	if strings.TrimSpace(gatewayURL) == "" {
		gatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		token:      strings.TrimSpace(token),
		apiBase:    strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		gatewayURL: strings.TrimSpace(gatewayURL),
		dispatcher: dispatcher,
		httpClient: &http.Client{Timeout: 12 * time.Second},
		logger:     logger.With("connector", "discord"),
		retryDelay: 2 * time.Second,
		members:    map[string]dispatch.User{},
	}
}

func (c *Connector) Name() string {
	return "discord"
}

// Enabled reports whether a bot token was configured.
func (c *Connector) Enabled() bool {
	return c.token != ""
}

// Whois returns the identity of the member last seen speaking under
// nickname. Discord sessions are authenticated, so known members are always
// identified.
func (c *Connector) Whois(_ context.Context, nickname string) (dispatch.User, error) {
	c.membersMu.RLock()
	defer c.membersMu.RUnlock()
	user, ok := c.members[strings.ToLower(strings.TrimSpace(nickname))]
	if !ok {
		return dispatch.User{}, fmt.Errorf("discord member %q not seen", nickname)
	}
	return user, nil
}

func (c *Connector) remember(user dispatch.User) {
	c.membersMu.Lock()
	defer c.membersMu.Unlock()
	c.members[strings.ToLower(user.Nickname)] = user
}
