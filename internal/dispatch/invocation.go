package dispatch

import (
	"context"
	"strings"
	"unicode"
)

// Transport is the chat side of an invocation: who sent a line, where replies
// go and how channel-shaped targets are recognised.
type Transport interface {
	Whois(ctx context.Context, nickname string) (User, error)
	Reply(ctx context.Context, target, text string) error
	IsChannelName(target string) bool
}

// User is the sender of a line as resolved by the transport's whois.
type User struct {
	Nickname   string
	Account    string
	Hostname   string
	Realname   string
	Identified bool
	Away       bool
}

// Identities lists the strings permission sets are matched against. The
// account only counts once the user is identified with services.
func (u User) Identities() []string {
	identities := make([]string, 0, 2)
	if host := strings.TrimSpace(u.Hostname); host != "" {
		identities = append(identities, host)
	}
	if account := strings.TrimSpace(u.Account); account != "" && u.Identified {
		identities = append(identities, account)
	}
	return identities
}

// Invocation is one normalized inbound chat line. It is never mutated after
// FromMessage returns.
type Invocation struct {
	user      User
	target    string
	channel   string
	words     []string
	wordsEol  []string
	prefixed  bool
	match     []string
	transport Transport
}

// FromMessage tokenizes line. When line starts with prefix the prefix is
// stripped and the invocation is marked prefixed. target is the channel for
// channel messages and the peer's nickname for direct messages.
func FromMessage(transport Transport, user User, target, line, prefix string) *Invocation {
	text := line
	prefixed := false
	if prefix != "" && strings.HasPrefix(text, prefix) {
		text = text[len(prefix):]
		prefixed = true
	}
	words, wordsEol := tokenize(text)

	inv := &Invocation{
		user:      user,
		target:    strings.TrimSpace(target),
		words:     words,
		wordsEol:  wordsEol,
		prefixed:  prefixed,
		transport: transport,
	}
	if transport != nil && transport.IsChannelName(inv.target) {
		inv.channel = inv.target
	}
	return inv
}

func tokenize(text string) ([]string, []string) {
	var (
		words  []string
		starts []int
	)
	start := -1
	for index, char := range text {
		if unicode.IsSpace(char) {
			if start >= 0 {
				words = append(words, text[start:index])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = index
			starts = append(starts, index)
		}
	}
	if start >= 0 {
		words = append(words, text[start:])
	}
	wordsEol := make([]string, len(starts))
	for index, offset := range starts {
		wordsEol[index] = strings.TrimRightFunc(text[offset:], unicode.IsSpace)
	}
	return words, wordsEol
}

func (i *Invocation) User() User         { return i.user }
func (i *Invocation) Target() string     { return i.target }
func (i *Invocation) Prefixed() bool     { return i.prefixed }
func (i *Invocation) IsDirect() bool     { return i.channel == "" }
func (i *Invocation) Words() []string    { return append([]string(nil), i.words...) }
func (i *Invocation) WordsEol() []string { return append([]string(nil), i.wordsEol...) }

// Channel returns the channel the line was sent to, if any.
func (i *Invocation) Channel() (string, bool) {
	return i.channel, i.channel != ""
}

// Word returns token index or "" when out of range.
func (i *Invocation) Word(index int) string {
	if index < 0 || index >= len(i.words) {
		return ""
	}
	return i.words[index]
}

// Rest returns the line from token index to the end, or "".
func (i *Invocation) Rest(index int) string {
	if index < 0 || index >= len(i.wordsEol) {
		return ""
	}
	return i.wordsEol[index]
}

func (i *Invocation) Len() int { return len(i.words) }

// Match returns the submatches of the rule that selected this invocation
// when the rule asked for them.
func (i *Invocation) Match() []string {
	return append([]string(nil), i.match...)
}

// Reply sends text back to where the line came from.
func (i *Invocation) Reply(ctx context.Context, text string) error {
	if i.transport == nil {
		return nil
	}
	return i.transport.Reply(ctx, i.target, text)
}

func (i *Invocation) withMatch(match []string) *Invocation {
	clone := *i
	clone.match = append([]string(nil), match...)
	return &clone
}
