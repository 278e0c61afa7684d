package dispatch

import (
	"context"
	"strings"

	"github.com/dwizi/rescue-console/internal/permissions"
)

const (
	requireChannelMessage       = "This command must be invoked in a channel."
	requireDirectMessageMessage = "This command must be invoked in a direct message."
)

// Handler runs a command or rule. Returned errors are reported by the
// dispatcher, never by the guard layer.
type Handler func(ctx context.Context, inv *Invocation) error

// Guard holds the preconditions checked before a handler runs.
type Guard struct {
	Permission           *permissions.Permission
	PermissionMessage    string
	RequireChannel       bool
	RequireDirectMessage bool
}

// Check evaluates permission, then channel, then direct message. It returns
// the reply to send when a precondition fails.
func (g Guard) Check(inv *Invocation) (string, bool) {
	if g.Permission != nil && !g.Permission.Allows(inv.User().Identities()...) {
		message := strings.TrimSpace(g.PermissionMessage)
		if message == "" {
			message = g.Permission.DeniedMessage()
		}
		return message, false
	}
	_, inChannel := inv.Channel()
	if g.RequireChannel && !inChannel {
		return requireChannelMessage, false
	}
	if g.RequireDirectMessage && inChannel {
		return requireDirectMessageMessage, false
	}
	return "", true
}

func runGuarded(ctx context.Context, guard Guard, handler Handler, inv *Invocation) error {
	if message, ok := guard.Check(inv); !ok {
		return inv.Reply(ctx, message)
	}
	return handler(ctx, inv)
}
