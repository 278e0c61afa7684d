package dispatch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var (
	ErrDuplicateRule   = errors.New("duplicate rule")
	ErrRuleNotPresent  = errors.New("rule not present")
	ErrInvalidRule     = errors.New("invalid rule")
	ErrNameCollision   = errors.New("command name collision")
	ErrInvalidCommand  = errors.New("invalid command")
	errHandlerRequired = errors.New("handler is required")
)

// RuleSpec describes a rule at registration time.
type RuleSpec struct {
	Name          string
	Pattern       string
	Handler       Handler
	Guard         Guard
	CaseSensitive bool
	// MatchFullLine matches against the whole line instead of the first word.
	MatchFullLine bool
	// PassMatch exposes the regexp submatches through Invocation.Match.
	PassMatch  bool
	Prefixless bool
	// After splices the rule directly behind an already registered one.
	After *Rule
}

type Rule struct {
	name          string
	source        string
	pattern       *regexp.Regexp
	handler       Handler
	guard         Guard
	matchFullLine bool
	passMatch     bool
	prefixless    bool
}

func (r *Rule) Name() string        { return r.name }
func (r *Rule) Pattern() string     { return r.source }
func (r *Rule) Prefixless() bool    { return r.prefixless }
func (r *Rule) MatchFullLine() bool { return r.matchFullLine }

// match applies starts-with semantics: a match anywhere but offset zero is
// not a match.
func (r *Rule) match(words, wordsEol []string) ([]string, bool) {
	var subject string
	if r.matchFullLine {
		if len(wordsEol) == 0 {
			return nil, false
		}
		subject = wordsEol[0]
	} else {
		if len(words) == 0 {
			return nil, false
		}
		subject = words[0]
	}
	groups := r.pattern.FindStringSubmatch(subject)
	if groups == nil {
		return nil, false
	}
	return groups, true
}

// Rules holds the prefixed and prefixless rule lists. Registration happens in
// the startup pass; lookups run on every line.
type Rules struct {
	mu         sync.RWMutex
	prefixed   []*Rule
	prefixless []*Rule
}

func NewRules() *Rules {
	return &Rules{}
}

func (r *Rules) Register(spec RuleSpec) (*Rule, error) {
	if spec.Handler == nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRule, spec.Pattern, errHandlerRequired)
	}
	if strings.TrimSpace(spec.Pattern) == "" {
		return nil, fmt.Errorf("%w: pattern is required", ErrInvalidRule)
	}
	expression := `\A(?:` + spec.Pattern + `)`
	if !spec.CaseSensitive {
		expression = `(?i)` + expression
	}
	compiled, err := regexp.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, spec.Pattern, err)
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		name = spec.Pattern
	}
	rule := &Rule{
		name:          name,
		source:        spec.Pattern,
		pattern:       compiled,
		handler:       spec.Handler,
		guard:         spec.Guard,
		matchFullLine: spec.MatchFullLine,
		passMatch:     spec.PassMatch,
		prefixless:    spec.Prefixless,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	list := &r.prefixed
	if spec.Prefixless {
		list = &r.prefixless
	}
	for _, existing := range *list {
		if existing.source == rule.source && existing.matchFullLine == rule.matchFullLine {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRule, spec.Pattern)
		}
	}
	if spec.After == nil {
		*list = append(*list, rule)
		return rule, nil
	}
	position := -1
	for index, existing := range *list {
		if existing == spec.After {
			position = index
			break
		}
	}
	if position < 0 {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotPresent, spec.After.source)
	}
	next := make([]*Rule, 0, len(*list)+1)
	next = append(next, (*list)[:position+1]...)
	next = append(next, rule)
	next = append(next, (*list)[position+1:]...)
	*list = next
	return rule, nil
}

// Lookup returns the first rule in the chosen list that matches, together
// with its submatches when the rule asked for them.
func (r *Rules) Lookup(words, wordsEol []string, prefixless bool) (*Rule, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.prefixed
	if prefixless {
		list = r.prefixless
	}
	for _, rule := range list {
		groups, ok := rule.match(words, wordsEol)
		if !ok {
			continue
		}
		if rule.passMatch {
			return rule, groups
		}
		return rule, nil
	}
	return nil, nil
}

func (r *Rules) List(prefixless bool) []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if prefixless {
		return append([]*Rule(nil), r.prefixless...)
	}
	return append([]*Rule(nil), r.prefixed...)
}

// Clear drops every rule. Only tests reset the registry.
func (r *Rules) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixed = nil
	r.prefixless = nil
}
