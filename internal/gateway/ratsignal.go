package gateway

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dwizi/rescue-console/internal/board"
	"github.com/dwizi/rescue-console/internal/dispatch"
	"github.com/dwizi/rescue-console/internal/rescue"
)

// A signal looks like
//
//	RATSIGNAL - CMDR Alice - System: Sol - Platform: PC - O2: OK - Language: English (en-US)
//
// Fields may come in any order and unknown fields are ignored.
var (
	signalSeparator    = regexp.MustCompile(`\s+[-–|]\s+`)
	signalField        = regexp.MustCompile(`(?i)^(cmdr|client|system|platform|o2|language|lang|irc nickname|nick)\b\s*:?\s*(.*)$`)
	signalLanguageCode = regexp.MustCompile(`\(([A-Za-z]{2})(?:[-_][A-Za-z]{2})?\)`)
	languageCodeOnly   = regexp.MustCompile(`^([A-Za-z]{2})(?:[-_][A-Za-z]{2})?$`)
)

type signal struct {
	client   string
	nickname string
	system   string
	platform rescue.Platform
	codeRed  bool
	lang     string
}

func parseSignal(line string) signal {
	var parsed signal
	parts := signalSeparator.Split(strings.TrimSpace(line), -1)
	for _, part := range parts[1:] {
		match := signalField.FindStringSubmatch(strings.TrimSpace(part))
		if match == nil {
			continue
		}
		value := strings.TrimSpace(match[2])
		switch strings.ToLower(match[1]) {
		case "cmdr", "client":
			parsed.client = value
		case "irc nickname", "nick":
			parsed.nickname = value
		case "system":
			parsed.system = value
		case "platform":
			if platform, err := rescue.ParsePlatform(value); err == nil {
				parsed.platform = platform
			}
		case "o2":
			parsed.codeRed = value != "" && !strings.EqualFold(value, "ok")
		case "language", "lang":
			parsed.lang = languageCode(value)
		}
	}
	return parsed
}

// languageCode extracts a two letter code from "English (en-US)", "en-US"
// or "en". It returns "" when there is none.
func languageCode(value string) string {
	value = strings.TrimSpace(value)
	if match := signalLanguageCode.FindStringSubmatch(value); match != nil {
		return strings.ToLower(match[1])
	}
	if match := languageCodeOnly.FindStringSubmatch(value); match != nil {
		return strings.ToLower(match[1])
	}
	return ""
}

// ratsignal opens a case from a signal line posted in a channel.
func (s *service) ratsignal(ctx context.Context, inv *dispatch.Invocation) error {
	parsed := parseSignal(inv.Rest(0))
	if parsed.client == "" {
		return inv.Reply(ctx, "Signal received, but it has no CMDR name. Use: RATSIGNAL - CMDR <name> - System: <system> - Platform: <pc|xb|ps> - O2: <OK|NOT OK>")
	}
	key := board.ByClient(parsed.client)
	if existing, err := s.board.Get(key); err == nil {
		return inv.Reply(ctx, fmt.Sprintf("%s already has case %s on the board.", parsed.client, caseLabel(existing)))
	}

	created, err := s.board.CreateRescue(ctx, rescue.Params{
		Client:      parsed.client,
		IRCNickname: parsed.nickname,
		System:      parsed.system,
		Platform:    parsed.platform,
		CodeRed:     parsed.codeRed,
		LangID:      parsed.lang,
	})
	if err != nil && !errors.Is(err, board.ErrRemoteSync) {
		return s.replyBoardError(ctx, inv, key, err)
	}
	note := s.syncNote(key, err)

	system := created.System()
	if system == "" {
		system = "unknown system"
	}
	reply := fmt.Sprintf("RATSIGNAL - CMDR %s - Case %s - %s - %s (%s)", created.Client(), caseLabel(created), system, created.Platform().Label(), created.LangID())
	if created.CodeRed() {
		reply += " - O2 NOT OK, CODE RED"
	}
	s.logger.Info("ratsignal received",
		"rescue_id", created.ID().String(),
		"client", created.Client(),
		"code_red", created.CodeRed(),
		"reported_by", inv.User().Nickname,
	)
	return inv.Reply(ctx, reply+note)
}
