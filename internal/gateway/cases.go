package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dwizi/rescue-console/internal/board"
	"github.com/dwizi/rescue-console/internal/dispatch"
	"github.com/dwizi/rescue-console/internal/rescue"
)

func (s *service) list(ctx context.Context, inv *dispatch.Invocation) error {
	rescues := s.board.List()
	if len(rescues) == 0 {
		return inv.Reply(ctx, "No active rescues.")
	}
	var active, inactive []string
	for _, r := range rescues {
		if r.Active() {
			active = append(active, summary(r))
			continue
		}
		inactive = append(inactive, summary(r))
	}
	parts := make([]string, 0, 2)
	if len(active) > 0 {
		parts = append(parts, fmt.Sprintf("%d active: %s", len(active), strings.Join(active, ", ")))
	}
	if len(inactive) > 0 {
		parts = append(parts, fmt.Sprintf("%d inactive: %s", len(inactive), strings.Join(inactive, ", ")))
	}
	return inv.Reply(ctx, strings.Join(parts, ". ")+".")
}

func (s *service) quote(ctx context.Context, inv *dispatch.Invocation) error {
	if inv.Len() < 2 {
		return usage(ctx, inv, "<case>")
	}
	key := board.ParseKey(inv.Word(1))
	r, err := s.board.Get(key)
	if err != nil {
		return s.replyBoardError(ctx, inv, key, err)
	}
	return inv.Reply(ctx, strings.Join(describe(r), "\n"))
}

// inject appends a case note. An unknown client gets a new case; an unknown
// board index or id is an error.
func (s *service) inject(ctx context.Context, inv *dispatch.Invocation) error {
	if inv.Len() < 3 {
		return usage(ctx, inv, "<case|client> <text>")
	}
	key := board.ParseKey(inv.Word(1))
	text := inv.Rest(2)
	author := inv.User().Nickname

	if _, err := s.board.Get(key); errors.Is(err, board.ErrRescueNotFound) && isClientKey(inv.Word(1)) {
		created, err := s.board.CreateRescue(ctx, rescue.Params{Client: inv.Word(1)})
		if err != nil && !errors.Is(err, board.ErrRemoteSync) {
			return s.replyBoardError(ctx, inv, key, err)
		}
		note := s.syncNote(key, err)
		created, err = s.board.ModifyRescue(ctx, board.ByID(created.ID()), func(r *rescue.Rescue) error {
			r.AddQuote(text, author)
			return nil
		})
		if err != nil && !errors.Is(err, board.ErrRemoteSync) {
			return s.replyBoardError(ctx, inv, key, err)
		}
		if note == "" {
			note = s.syncNote(key, err)
		}
		return inv.Reply(ctx, fmt.Sprintf("Created case %s for %s.%s", caseLabel(created), clientName(created), note))
	}

	return s.modify(ctx, inv, key, func(r *rescue.Rescue) error {
		r.AddQuote(text, author)
		return nil
	}, func(r *rescue.Rescue) string {
		return fmt.Sprintf("Added line to case %s for %s.", caseLabel(r), clientName(r))
	})
}

func isClientKey(raw string) bool {
	key := board.ParseKey(raw)
	return key == board.ByClient(raw)
}

func (s *service) active(ctx context.Context, inv *dispatch.Invocation) error {
	if inv.Len() < 2 {
		return usage(ctx, inv, "<case>")
	}
	key := board.ParseKey(inv.Word(1))
	return s.modify(ctx, inv, key, func(r *rescue.Rescue) error {
		r.SetActive(!r.Active())
		return nil
	}, func(r *rescue.Rescue) string {
		state := "inactive"
		if r.Active() {
			state = "active"
		}
		return fmt.Sprintf("Case %s (%s) is now %s.", caseLabel(r), clientName(r), state)
	})
}

func (s *service) codeRed(ctx context.Context, inv *dispatch.Invocation) error {
	if inv.Len() < 2 {
		return usage(ctx, inv, "<case>")
	}
	key := board.ParseKey(inv.Word(1))
	return s.modify(ctx, inv, key, func(r *rescue.Rescue) error {
		r.SetCodeRed(!r.CodeRed())
		return nil
	}, func(r *rescue.Rescue) string {
		if r.CodeRed() {
			return fmt.Sprintf("CODE RED! Case %s (%s) is now code red.", caseLabel(r), clientName(r))
		}
		return fmt.Sprintf("Case %s (%s) is no longer code red.", caseLabel(r), clientName(r))
	})
}

func (s *service) system(ctx context.Context, inv *dispatch.Invocation) error {
	if inv.Len() < 3 {
		return usage(ctx, inv, "<case> <system>")
	}
	key := board.ParseKey(inv.Word(1))
	system := inv.Rest(2)
	return s.modify(ctx, inv, key, func(r *rescue.Rescue) error {
		r.SetSystem(system)
		return nil
	}, func(r *rescue.Rescue) string {
		return fmt.Sprintf("System for case %s (%s) set to %s.", caseLabel(r), clientName(r), r.System())
	})
}

// platform reads the platform from the alias it was invoked with.
func (s *service) platform(ctx context.Context, inv *dispatch.Invocation) error {
	if inv.Len() < 2 {
		return usage(ctx, inv, "<case>")
	}
	platform, err := rescue.ParsePlatform(inv.Word(0))
	if err != nil {
		return err
	}
	key := board.ParseKey(inv.Word(1))
	return s.modify(ctx, inv, key, func(r *rescue.Rescue) error {
		r.SetPlatform(platform)
		return nil
	}, func(r *rescue.Rescue) string {
		return fmt.Sprintf("Platform for case %s (%s) set to %s.", caseLabel(r), clientName(r), r.Platform().Label())
	})
}

func (s *service) assign(ctx context.Context, inv *dispatch.Invocation) error {
	if inv.Len() < 3 {
		return usage(ctx, inv, "<case> <rats...>")
	}
	key := board.ParseKey(inv.Word(1))
	names := inv.Words()[2:]
	var added []string
	return s.modify(ctx, inv, key, func(r *rescue.Rescue) error {
		added = added[:0]
		for _, name := range names {
			if r.AddUnidentifiedRat(name, r.Platform()) {
				added = append(added, name)
			}
		}
		return nil
	}, func(r *rescue.Rescue) string {
		if len(added) == 0 {
			return fmt.Sprintf("Nobody new to assign to case %s (%s).", caseLabel(r), clientName(r))
		}
		return fmt.Sprintf("Assigned %s to case %s (%s).", strings.Join(added, ", "), caseLabel(r), clientName(r))
	})
}

func (s *service) unassign(ctx context.Context, inv *dispatch.Invocation) error {
	if inv.Len() < 3 {
		return usage(ctx, inv, "<case> <rats...>")
	}
	key := board.ParseKey(inv.Word(1))
	names := inv.Words()[2:]
	var removed []string
	return s.modify(ctx, inv, key, func(r *rescue.Rescue) error {
		removed = removed[:0]
		for _, name := range names {
			if r.RemoveRat(name) {
				removed = append(removed, name)
			}
		}
		return nil
	}, func(r *rescue.Rescue) string {
		if len(removed) == 0 {
			return fmt.Sprintf("None of those rats are assigned to case %s (%s).", caseLabel(r), clientName(r))
		}
		return fmt.Sprintf("Unassigned %s from case %s (%s).", strings.Join(removed, ", "), caseLabel(r), clientName(r))
	})
}

var errNotAssigned = errors.New("first responder is not assigned")

// closeCase closes the rescue, records the first responder when one is named
// and takes the case off the board.
func (s *service) closeCase(ctx context.Context, inv *dispatch.Invocation) error {
	if inv.Len() < 2 {
		return usage(ctx, inv, "<case> [first responder]")
	}
	key := board.ParseKey(inv.Word(1))
	responder := inv.Word(2)
	closed, err := s.board.ModifyRescue(ctx, key, func(r *rescue.Rescue) error {
		if responder != "" {
			found := false
			for _, rat := range r.Rats() {
				if rescue.NormalizeRatName(rat.Name) == rescue.NormalizeRatName(responder) {
					r.SetFirstResponder(rat.ID)
					found = true
				}
			}
			for _, rat := range r.UnidentifiedRats() {
				if rescue.NormalizeRatName(rat.Name) == rescue.NormalizeRatName(responder) {
					found = true
				}
			}
			if !found {
				return errNotAssigned
			}
		}
		r.SetOpen(false)
		return nil
	})
	if errors.Is(err, errNotAssigned) {
		return inv.Reply(ctx, fmt.Sprintf("%s is not assigned to case %s.", responder, key))
	}
	if err != nil && !errors.Is(err, board.ErrRemoteSync) {
		return s.replyBoardError(ctx, inv, key, err)
	}
	note := s.syncNote(key, err)
	return s.takeOff(ctx, inv, closed, note, func(label string) string {
		reply := fmt.Sprintf("Case %s closed.", label)
		if responder != "" {
			reply += fmt.Sprintf(" First limpet: %s.", responder)
		}
		return reply
	})
}

func (s *service) markDeletion(ctx context.Context, inv *dispatch.Invocation) error {
	if inv.Len() < 3 {
		return usage(ctx, inv, "<case> <reason>")
	}
	key := board.ParseKey(inv.Word(1))
	reason := inv.Rest(2)
	reporter := inv.User().Nickname
	marked, err := s.board.ModifyRescue(ctx, key, func(r *rescue.Rescue) error {
		if err := r.Mark(reason, reporter); err != nil {
			return err
		}
		r.SetOpen(false)
		return nil
	})
	if err != nil && !errors.Is(err, board.ErrRemoteSync) {
		return s.replyBoardError(ctx, inv, key, err)
	}
	note := s.syncNote(key, err)
	return s.takeOff(ctx, inv, marked, note, func(label string) string {
		return fmt.Sprintf("Case %s marked for deletion and closed.", label)
	})
}

// takeOff removes a closed rescue from the board and replies.
func (s *service) takeOff(ctx context.Context, inv *dispatch.Invocation, r *rescue.Rescue, note string, reply func(label string) string) error {
	label := fmt.Sprintf("%s (%s)", caseLabel(r), clientName(r))
	key := board.ByID(r.ID())
	_, err := s.board.RemoveRescue(ctx, key)
	if err != nil && !errors.Is(err, board.ErrRemoteSync) {
		return s.replyBoardError(ctx, inv, key, err)
	}
	if note == "" {
		note = s.syncNote(key, err)
	}
	s.logger.Info("case closed", "rescue_id", r.ID().String(), "client", r.Client(), "closed_by", inv.User().Nickname)
	return inv.Reply(ctx, reply(label)+note)
}

func (s *service) title(ctx context.Context, inv *dispatch.Invocation) error {
	if inv.Len() < 3 {
		return usage(ctx, inv, "<case> <title>")
	}
	key := board.ParseKey(inv.Word(1))
	title := inv.Rest(2)
	return s.modify(ctx, inv, key, func(r *rescue.Rescue) error {
		r.SetTitle(title)
		return nil
	}, func(r *rescue.Rescue) string {
		return fmt.Sprintf("Operation title for case %s (%s) set to %q.", caseLabel(r), clientName(r), r.Title())
	})
}

func (s *service) language(ctx context.Context, inv *dispatch.Invocation) error {
	if inv.Len() < 3 {
		return usage(ctx, inv, "<case> <code>")
	}
	key := board.ParseKey(inv.Word(1))
	lang := languageCode(inv.Word(2))
	if lang == "" {
		return inv.Reply(ctx, fmt.Sprintf("%q is not a language code.", inv.Word(2)))
	}
	return s.modify(ctx, inv, key, func(r *rescue.Rescue) error {
		r.SetLangID(lang)
		return nil
	}, func(r *rescue.Rescue) string {
		return fmt.Sprintf("Language for case %s (%s) set to %s.", caseLabel(r), clientName(r), r.LangID())
	})
}

func (s *service) nickname(ctx context.Context, inv *dispatch.Invocation) error {
	if inv.Len() < 3 {
		return usage(ctx, inv, "<case> <nickname>")
	}
	key := board.ParseKey(inv.Word(1))
	nickname := inv.Word(2)
	return s.modify(ctx, inv, key, func(r *rescue.Rescue) error {
		r.SetIRCNickname(nickname)
		return nil
	}, func(r *rescue.Rescue) string {
		return fmt.Sprintf("Nickname for case %s (%s) set to %s.", caseLabel(r), clientName(r), r.IRCNickname())
	})
}
