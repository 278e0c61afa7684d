// Package gateway registers the commands and rules operators use to run the
// rescue board from chat. Registration is an explicit pass at startup; the
// dispatcher owns precedence and guards.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dwizi/rescue-console/internal/board"
	"github.com/dwizi/rescue-console/internal/dispatch"
	"github.com/dwizi/rescue-console/internal/permissions"
	"github.com/dwizi/rescue-console/internal/rescue"
)

type Board interface {
	CreateRescue(ctx context.Context, params rescue.Params) (*rescue.Rescue, error)
	ModifyRescue(ctx context.Context, key board.Key, fn func(*rescue.Rescue) error) (*rescue.Rescue, error)
	RemoveRescue(ctx context.Context, key board.Key) (*rescue.Rescue, error)
	Get(key board.Key) (*rescue.Rescue, error)
	List() []*rescue.Rescue
}

type Deps struct {
	Board       Board
	Permissions *permissions.Model
	// Reload re-reads the console file. Nil disables the reload command.
	Reload  func(ctx context.Context) error
	Version string
	Logger  *slog.Logger
}

type service struct {
	board   Board
	reload  func(ctx context.Context) error
	version string
	logger  *slog.Logger
}

// Register adds every rescue command and the ratsignal rule. A missing
// permission level is a configuration error.
func Register(commands *dispatch.Commands, rules *dispatch.Rules, deps Deps) error {
	if deps.Board == nil {
		return errors.New("gateway: board is required")
	}
	if deps.Permissions == nil {
		return errors.New("gateway: permission model is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	svc := &service{
		board:   deps.Board,
		reload:  deps.Reload,
		version: strings.TrimSpace(deps.Version),
		logger:  logger.With("component", "gateway"),
	}
	if svc.version == "" {
		svc.version = "dev"
	}

	rat, err := deps.Permissions.Lookup("rat")
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	overseer, err := deps.Permissions.Lookup("overseer")
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	admin, err := deps.Permissions.Lookup("admin")
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	ratGuard := dispatch.Guard{Permission: rat}
	definitions := []dispatch.Command{
		{Aliases: []string{"list"}, Usage: "", Help: "List the rescues on the board.", Handler: svc.list, Guard: dispatch.Guard{Permission: rat, RequireChannel: true}},
		{Aliases: []string{"quote"}, Usage: "<case>", Help: "Show everything known about a case.", Handler: svc.quote, Guard: ratGuard},
		{Aliases: []string{"inject"}, Usage: "<case|client> <text>", Help: "Add a line to a case, creating it if needed.", Handler: svc.inject, Guard: ratGuard},
		{Aliases: []string{"active", "inactive"}, Usage: "<case>", Help: "Toggle whether a case is active.", Handler: svc.active, Guard: ratGuard},
		{Aliases: []string{"cr", "codered"}, Usage: "<case>", Help: "Toggle code red on a case.", Handler: svc.codeRed, Guard: ratGuard},
		{Aliases: []string{"sys", "system"}, Usage: "<case> <system>", Help: "Set the star system of a case.", Handler: svc.system, Guard: ratGuard},
		{Aliases: []string{"pc", "xb", "ps"}, Usage: "<case>", Help: "Set the platform of a case.", Handler: svc.platform, Guard: ratGuard},
		{Aliases: []string{"go", "assign"}, Usage: "<case> <rats...>", Help: "Assign rats to a case.", Handler: svc.assign, Guard: ratGuard},
		{Aliases: []string{"unassign", "deassign"}, Usage: "<case> <rats...>", Help: "Unassign rats from a case.", Handler: svc.unassign, Guard: ratGuard},
		{Aliases: []string{"close", "clear"}, Usage: "<case> [first responder]", Help: "Close a case and take it off the board.", Handler: svc.closeCase, Guard: ratGuard},
		{Aliases: []string{"md", "mdadd"}, Usage: "<case> <reason>", Help: "Mark a case for deletion and close it.", Handler: svc.markDeletion, Guard: dispatch.Guard{Permission: overseer}},
		{Aliases: []string{"title"}, Usage: "<case> <title>", Help: "Set the operation title of a case.", Handler: svc.title, Guard: ratGuard},
		{Aliases: []string{"lang"}, Usage: "<case> <code>", Help: "Set the client language of a case.", Handler: svc.language, Guard: ratGuard},
		{Aliases: []string{"nick", "ircnick"}, Usage: "<case> <nickname>", Help: "Set the chat nickname of a case client.", Handler: svc.nickname, Guard: ratGuard},
		{Aliases: []string{"reload"}, Usage: "", Help: "Re-read the console configuration file.", Handler: svc.reloadConfig, Guard: dispatch.Guard{Permission: admin, RequireDirectMessage: true}},
		{Aliases: []string{"version"}, Usage: "", Help: "Show the running version.", Handler: svc.showVersion},
	}
	for _, command := range definitions {
		if err := commands.Register(command); err != nil {
			return err
		}
	}

	if _, err := rules.Register(dispatch.RuleSpec{
		Name:          "ratsignal",
		Pattern:       `ratsignal\b`,
		Handler:       svc.ratsignal,
		MatchFullLine: true,
		Prefixless:    true,
	}); err != nil {
		return err
	}
	return nil
}

func usage(ctx context.Context, inv *dispatch.Invocation, args string) error {
	return inv.Reply(ctx, fmt.Sprintf("Usage: %s %s", strings.ToLower(inv.Word(0)), args))
}

// replyBoardError turns the board's consistency errors into replies. Remote
// sync failures are reported to the operator and logged; the local change
// stands. Anything else goes to the dispatcher.
func (s *service) replyBoardError(ctx context.Context, inv *dispatch.Invocation, key board.Key, err error) error {
	switch {
	case errors.Is(err, board.ErrRescueNotFound):
		return inv.Reply(ctx, fmt.Sprintf("Case %s not found.", key))
	case errors.Is(err, board.ErrIndexNotFree):
		return inv.Reply(ctx, fmt.Sprintf("Case %s: that board index is taken.", key))
	case errors.Is(err, board.ErrRescueExists):
		return inv.Reply(ctx, fmt.Sprintf("Case %s: another rescue already uses that id.", key))
	case errors.Is(err, rescue.ErrMarkIncomplete):
		return inv.Reply(ctx, "A reason is required to mark a case for deletion.")
	default:
		return err
	}
}

// syncNote is appended to replies when the case service rejected a change
// that was already applied locally.
func (s *service) syncNote(key board.Key, err error) string {
	if err == nil || !errors.Is(err, board.ErrRemoteSync) {
		return ""
	}
	s.logger.Warn("case service sync failed", "key", key.String(), "error", err)
	return " (case service sync failed, change kept locally)"
}

// modify runs fn on the rescue behind key and replies with the text reply
// builds from the result.
func (s *service) modify(ctx context.Context, inv *dispatch.Invocation, key board.Key, fn func(*rescue.Rescue) error, reply func(*rescue.Rescue) string) error {
	result, err := s.board.ModifyRescue(ctx, key, fn)
	if err != nil && !errors.Is(err, board.ErrRemoteSync) {
		return s.replyBoardError(ctx, inv, key, err)
	}
	return inv.Reply(ctx, reply(result)+s.syncNote(key, err))
}
