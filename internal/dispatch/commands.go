package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Command is one named handler. The first alias is its display name.
type Command struct {
	Aliases []string
	Usage   string
	Help    string
	Handler Handler
	Guard   Guard
}

func (c *Command) Name() string {
	if len(c.Aliases) == 0 {
		return ""
	}
	return c.Aliases[0]
}

// Commands is the case-insensitive alias table. Registration is append-only.
type Commands struct {
	mu      sync.RWMutex
	byAlias map[string]*Command
	ordered []*Command
}

func NewCommands() *Commands {
	return &Commands{byAlias: map[string]*Command{}}
}

func (c *Commands) Register(command Command) error {
	if command.Handler == nil {
		return fmt.Errorf("%w: %v: %w", ErrInvalidCommand, command.Aliases, errHandlerRequired)
	}
	aliases := make([]string, 0, len(command.Aliases))
	seen := map[string]struct{}{}
	for _, alias := range command.Aliases {
		key := foldAlias(alias)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		aliases = append(aliases, key)
	}
	if len(aliases) == 0 {
		return fmt.Errorf("%w: at least one alias is required", ErrInvalidCommand)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, alias := range aliases {
		if _, exists := c.byAlias[alias]; exists {
			return fmt.Errorf("%w: %s", ErrNameCollision, alias)
		}
	}
	registered := command
	registered.Aliases = aliases
	for _, alias := range aliases {
		c.byAlias[alias] = &registered
	}
	c.ordered = append(c.ordered, &registered)
	return nil
}

func (c *Commands) Lookup(alias string) (*Command, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	command, ok := c.byAlias[foldAlias(alias)]
	return command, ok
}

// Invoke runs the command behind alias through its guard. Unknown aliases
// are a no-op; falling through to rules and facts is the dispatcher's job.
func (c *Commands) Invoke(ctx context.Context, alias string, inv *Invocation) error {
	command, ok := c.Lookup(alias)
	if !ok {
		return nil
	}
	return runGuarded(ctx, command.Guard, command.Handler, inv)
}

// List returns commands sorted by display name.
func (c *Commands) List() []*Command {
	c.mu.RLock()
	result := append([]*Command(nil), c.ordered...)
	c.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

func foldAlias(alias string) string {
	return strings.ToLower(strings.TrimSpace(alias))
}
