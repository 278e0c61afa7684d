// Package permissions models the ordered trust levels operators hold.
//
// Each Permission is bound to a set of external identity strings (vhosts,
// accounts). Holding a level implies every level below it, so the identity set
// of a Permission is the union of the identities configured at its own level
// and every higher level. Guards then only ever test membership against the
// minimum level they require.
package permissions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	ErrUnknownPermission = errors.New("unknown permission")
	ErrInvalidTable      = errors.New("invalid permission table")
)

const defaultDeniedMessage = "Access denied."

// Definition is one row of the permission configuration.
type Definition struct {
	Name          string   `yaml:"name"`
	Level         int      `yaml:"level"`
	Identities    []string `yaml:"identities"`
	DeniedMessage string   `yaml:"denied_message"`
}

type state struct {
	level         int
	identities    map[string]struct{}
	deniedMessage string
}

// table is one complete generation of the permission configuration.
type table struct {
	states map[string]*state
}

type Permission struct {
	name  string
	model *Model
}

func (p *Permission) current() *state { return p.model.table.Load().states[p.name] }

func (p *Permission) Name() string { return p.name }

func (p *Permission) Level() int { return p.current().level }

func (p *Permission) DeniedMessage() string { return p.current().deniedMessage }

// Allows reports whether any of the given identities holds this level.
func (p *Permission) Allows(identities ...string) bool {
	return p.current().allows(identities)
}

func (p *Permission) Identities() []string {
	current := p.current()
	result := make([]string, 0, len(current.identities))
	for identity := range current.identities {
		result = append(result, identity)
	}
	sort.Strings(result)
	return result
}

func (s *state) allows(identities []string) bool {
	for _, identity := range identities {
		key := normalizeIdentity(identity)
		if key == "" {
			continue
		}
		if _, ok := s.identities[key]; ok {
			return true
		}
	}
	return false
}

// Model is the full permission table. Reload publishes a new table in one
// store, so readers see either the old or the new table, never a mix.
type Model struct {
	mu     sync.Mutex
	byName map[string]*Permission
	table  atomic.Pointer[table]
}

func NewModel(definitions []Definition) (*Model, error) {
	model := &Model{byName: map[string]*Permission{}}
	if err := model.Reload(definitions); err != nil {
		return nil, err
	}
	return model, nil
}

// Reload validates definitions and replaces the table. Permissions that
// disappear from the configuration keep their identity (commands hold
// pointers to them) but are emptied so they deny everyone.
func (m *Model) Reload(definitions []Definition) error {
	states, err := buildStates(definitions)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if previous := m.table.Load(); previous != nil {
		for name, old := range previous.states {
			if _, kept := states[name]; kept {
				continue
			}
			states[name] = &state{
				level:         old.level,
				identities:    map[string]struct{}{},
				deniedMessage: old.deniedMessage,
			}
		}
	}
	for name := range states {
		if _, exists := m.byName[name]; !exists {
			m.byName[name] = &Permission{name: name, model: m}
		}
	}
	m.table.Store(&table{states: states})
	return nil
}

func (m *Model) Lookup(name string) (*Permission, error) {
	key := normalizeName(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	permission, ok := m.byName[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPermission, name)
	}
	return permission, nil
}

// List returns every permission ordered by level, lowest first.
func (m *Model) List() []*Permission {
	current, list := m.snapshot()
	sortByLevel(list, current)
	return list
}

// Highest returns the top permission any of the identities holds, judged
// against a single table.
func (m *Model) Highest(identities ...string) (*Permission, bool) {
	current, list := m.snapshot()
	sortByLevel(list, current)
	for index := len(list) - 1; index >= 0; index-- {
		if current.states[list[index].name].allows(identities) {
			return list[index], true
		}
	}
	return nil, false
}

// snapshot pairs the published table with the permissions it covers.
func (m *Model) snapshot() (*table, []*Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]*Permission, 0, len(m.byName))
	for _, permission := range m.byName {
		list = append(list, permission)
	}
	return m.table.Load(), list
}

func sortByLevel(list []*Permission, current *table) {
	sort.Slice(list, func(i, j int) bool {
		left, right := current.states[list[i].name], current.states[list[j].name]
		if left.level == right.level {
			return list[i].name < list[j].name
		}
		return left.level < right.level
	})
}

func buildStates(definitions []Definition) (map[string]*state, error) {
	if len(definitions) == 0 {
		return nil, fmt.Errorf("%w: no permissions defined", ErrInvalidTable)
	}
	names := map[string]struct{}{}
	levels := map[int]string{}
	for _, definition := range definitions {
		name := normalizeName(definition.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: permission name is required", ErrInvalidTable)
		}
		if _, exists := names[name]; exists {
			return nil, fmt.Errorf("%w: duplicate permission %q", ErrInvalidTable, name)
		}
		if other, exists := levels[definition.Level]; exists {
			return nil, fmt.Errorf("%w: %q and %q share level %d", ErrInvalidTable, other, name, definition.Level)
		}
		names[name] = struct{}{}
		levels[definition.Level] = name
	}

	states := make(map[string]*state, len(definitions))
	for _, definition := range definitions {
		identities := map[string]struct{}{}
		for _, other := range definitions {
			if other.Level < definition.Level {
				continue
			}
			for _, identity := range other.Identities {
				if key := normalizeIdentity(identity); key != "" {
					identities[key] = struct{}{}
				}
			}
		}
		denied := strings.TrimSpace(definition.DeniedMessage)
		if denied == "" {
			denied = defaultDeniedMessage
		}
		states[normalizeName(definition.Name)] = &state{
			level:         definition.Level,
			identities:    identities,
			deniedMessage: denied,
		}
	}
	return states, nil
}

// DefaultDefinitions is the built-in table used when no console file is
// configured.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Name: "recruit", Level: 0, Identities: []string{"recruit.rescue.example"}, DeniedMessage: "You need to be a registered and drilled rat to use this command."},
		{Name: "rat", Level: 1, Identities: []string{"rat.rescue.example"}, DeniedMessage: "You need to be a registered and drilled rat to use this command."},
		{Name: "dispatch", Level: 2, Identities: []string{"dispatch.rescue.example"}, DeniedMessage: "This command is reserved for dispatchers."},
		{Name: "overseer", Level: 3, Identities: []string{"overseer.rescue.example"}, DeniedMessage: "This command is reserved for overseers."},
		{Name: "techrat", Level: 4, Identities: []string{"techrat.rescue.example"}, DeniedMessage: "This command is reserved for tech rats."},
		{Name: "netadmin", Level: 5, Identities: []string{"netadmin.rescue.example"}, DeniedMessage: "This command is reserved for network administrators."},
		{Name: "admin", Level: 6, Identities: []string{"admin.rescue.example"}, DeniedMessage: "This command is reserved for administrators."},
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func normalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
