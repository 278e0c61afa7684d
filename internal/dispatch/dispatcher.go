// Package dispatch turns inbound chat lines into handler invocations.
//
// A line becomes an Invocation, then the Dispatcher picks exactly one
// handler for it: a command when the line is prefixed and its first word is a
// known alias, otherwise the first matching rule, otherwise (prefixed lines
// only) a fact from the fact store. Guards run before every handler and
// handler failures are contained at Trigger.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// FactStore resolves canned replies by name and language.
type FactStore interface {
	Find(ctx context.Context, name, lang string) (string, bool, error)
}

type OutcomeKind string

const (
	OutcomeIgnored   OutcomeKind = "ignored"
	OutcomeCommand   OutcomeKind = "command"
	OutcomeRule      OutcomeKind = "rule"
	OutcomeFact      OutcomeKind = "fact"
	OutcomeUnmatched OutcomeKind = "unmatched"
)

// Outcome reports what Trigger did with one invocation.
type Outcome struct {
	Kind OutcomeKind
	Name string
	// CorrelationID is set when the handler failed and the user was told.
	CorrelationID string
}

type Options struct {
	Prefix      string
	DefaultLang string
	Facts       FactStore
	Logger      *slog.Logger
}

type Dispatcher struct {
	commands    *Commands
	rules       *Rules
	facts       FactStore
	logger      *slog.Logger
	defaultLang string
	prefix      atomic.Value
	noMatch     atomic.Uint64
}

func NewDispatcher(commands *Commands, rules *Rules, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lang := strings.ToLower(strings.TrimSpace(opts.DefaultLang))
	if lang == "" {
		lang = "en"
	}
	if commands == nil {
		commands = NewCommands()
	}
	if rules == nil {
		rules = NewRules()
	}
	d := &Dispatcher{
		commands:    commands,
		rules:       rules,
		facts:       opts.Facts,
		logger:      logger.With("component", "dispatch"),
		defaultLang: lang,
	}
	d.SetPrefix(opts.Prefix)
	return d
}

func (d *Dispatcher) Commands() *Commands { return d.commands }
func (d *Dispatcher) Rules() *Rules       { return d.rules }

func (d *Dispatcher) Prefix() string {
	value, _ := d.prefix.Load().(string)
	return value
}

// SetPrefix swaps the command prefix for every line handled afterwards.
func (d *Dispatcher) SetPrefix(prefix string) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "!"
	}
	d.prefix.Store(prefix)
}

// NoMatchCount counts prefixed lines that hit neither command, rule nor fact.
func (d *Dispatcher) NoMatchCount() uint64 {
	return d.noMatch.Load()
}

// HandleLine resolves nickname through the transport's whois and handles the
// line as that user. A failed lookup leaves the sender unidentified, so only
// unguarded handlers will run for it.
func (d *Dispatcher) HandleLine(ctx context.Context, transport Transport, nickname, target, line string) Outcome {
	user, err := transport.Whois(ctx, nickname)
	if err != nil {
		d.logger.Warn("whois failed", "nickname", nickname, "error", err)
		user = User{Nickname: nickname}
	}
	if user.Nickname == "" {
		user.Nickname = nickname
	}
	return d.Handle(ctx, transport, user, target, line)
}

// Handle builds an invocation from a raw line using the current prefix and
// triggers it.
func (d *Dispatcher) Handle(ctx context.Context, transport Transport, user User, target, line string) Outcome {
	return d.Trigger(ctx, FromMessage(transport, user, target, line, d.Prefix()))
}

// Trigger runs at most one handler for inv. Handler errors and panics stop
// here: they are logged with a correlation id and the user gets a short
// notice carrying the same id.
func (d *Dispatcher) Trigger(ctx context.Context, inv *Invocation) (outcome Outcome) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err := fmt.Errorf("panic: %v", recovered)
		outcome.CorrelationID = d.reportFailure(ctx, inv, outcome, err, string(debug.Stack()))
	}()

	outcome, err := d.dispatch(ctx, inv)
	if err != nil {
		outcome.CorrelationID = d.reportFailure(ctx, inv, outcome, err, "")
	}
	return outcome
}

func (d *Dispatcher) dispatch(ctx context.Context, inv *Invocation) (Outcome, error) {
	if inv == nil || inv.Rest(0) == "" {
		return Outcome{Kind: OutcomeIgnored}, nil
	}
	words := inv.words
	wordsEol := inv.wordsEol

	if !inv.Prefixed() {
		rule, match := d.rules.Lookup(words, wordsEol, true)
		if rule == nil {
			return Outcome{Kind: OutcomeIgnored}, nil
		}
		return d.runRule(ctx, rule, match, inv)
	}

	if command, ok := d.commands.Lookup(words[0]); ok {
		outcome := Outcome{Kind: OutcomeCommand, Name: command.Name()}
		d.logger.Debug("command invoked", "command", command.Name(), "target", inv.Target(), "nickname", inv.User().Nickname)
		return outcome, runGuarded(ctx, command.Guard, command.Handler, inv)
	}
	if rule, match := d.rules.Lookup(words, wordsEol, false); rule != nil {
		return d.runRule(ctx, rule, match, inv)
	}

	name, lang := splitFactName(words[0], d.defaultLang)
	if d.facts != nil {
		text, found, err := d.facts.Find(ctx, name, lang)
		if err != nil {
			return Outcome{Kind: OutcomeFact, Name: name}, fmt.Errorf("find fact %s: %w", name, err)
		}
		if found {
			return Outcome{Kind: OutcomeFact, Name: name}, inv.Reply(ctx, text)
		}
	}
	d.noMatch.Add(1)
	return Outcome{Kind: OutcomeUnmatched, Name: name}, nil
}

func (d *Dispatcher) runRule(ctx context.Context, rule *Rule, match []string, inv *Invocation) (Outcome, error) {
	outcome := Outcome{Kind: OutcomeRule, Name: rule.Name()}
	target := inv
	if match != nil {
		target = inv.withMatch(match)
	}
	d.logger.Debug("rule matched", "rule", rule.Name(), "target", inv.Target(), "nickname", inv.User().Nickname)
	return outcome, runGuarded(ctx, rule.guard, rule.handler, target)
}

func (d *Dispatcher) reportFailure(ctx context.Context, inv *Invocation, outcome Outcome, err error, stack string) string {
	correlationID := uuid.NewString()
	attrs := []any{
		"correlation_id", correlationID,
		"kind", string(outcome.Kind),
		"name", outcome.Name,
		"error", err,
	}
	if inv != nil {
		attrs = append(attrs, "target", inv.Target(), "nickname", inv.User().Nickname, "line", inv.Rest(0))
	}
	if stack != "" {
		attrs = append(attrs, "stack", stack)
	}
	d.logger.Error("handler failed", attrs...)
	if inv != nil {
		message := fmt.Sprintf("Something went wrong handling that. Please report this to a tech rat with reference %s.", correlationID)
		if replyErr := inv.Reply(ctx, message); replyErr != nil {
			d.logger.Warn("failure notice not delivered", "correlation_id", correlationID, "error", replyErr)
		}
	}
	return correlationID
}

// splitFactName reads "prep-de" as fact "prep" in German.
func splitFactName(word, defaultLang string) (string, string) {
	name := strings.ToLower(strings.TrimSpace(word))
	if index := strings.LastIndex(name, "-"); index > 0 && len(name)-index-1 == 2 {
		return name[:index], name[index+1:]
	}
	return name, defaultLang
}
