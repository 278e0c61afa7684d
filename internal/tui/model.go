// Package tui renders a live, read-only view of a running instance's rescue
// board.
package tui

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dwizi/rescue-console/internal/adminclient"
	"github.com/dwizi/rescue-console/internal/config"
	"github.com/dwizi/rescue-console/internal/rescue"
)

const fetchTimeout = 10 * time.Second

type source interface {
	Board(ctx context.Context) (adminclient.Board, error)
	Stats(ctx context.Context) (adminclient.Stats, error)
}

type boardLoadedMsg struct {
	board adminclient.Board
	stats adminclient.Stats
	at    time.Time
	err   error
}

type tickMsg time.Time

type model struct {
	cfg    config.Config
	logger *slog.Logger
	source source
	keys   keyMap
	help   help.Model

	width  int
	height int

	records     []rescue.Record
	online      bool
	stats       adminclient.Stats
	selected    int
	loading     bool
	loaded      bool
	lastRefresh time.Time
	errorText   string
	quitting    bool

	refreshEvery time.Duration
}

func Run(cfg config.Config, logger *slog.Logger) error {
	client, err := adminclient.New(cfg)
	if err != nil {
		return err
	}
	program := tea.NewProgram(newModel(cfg, client, logger), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func newModel(cfg config.Config, src source, logger *slog.Logger) model {
	if logger == nil {
		logger = slog.Default()
	}
	refresh := time.Duration(cfg.DashboardRefreshSec) * time.Second
	if refresh < time.Second {
		refresh = 5 * time.Second
	}
	return model{
		cfg:          cfg,
		logger:       logger.With("component", "tui"),
		source:       src,
		keys:         newKeyMap(),
		help:         help.New(),
		loading:      true,
		refreshEvery: refresh,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.help.Width = typed.Width
		return m, nil
	case boardLoadedMsg:
		m.loading = false
		if typed.err != nil {
			m.errorText = typed.err.Error()
			m.logger.Warn("board refresh failed", "error", typed.err)
			return m, nil
		}
		m.errorText = ""
		m.loaded = true
		m.lastRefresh = typed.at
		m.online = typed.board.Online
		m.stats = typed.stats
		m.records = sortByIndex(typed.board.Items)
		m.clampSelection()
		return m, nil
	case tickMsg:
		if m.loading {
			return m, m.tickCmd()
		}
		m.loading = true
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())
	case tea.KeyMsg:
		return m.handleKey(typed)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Refresh):
		if m.loading {
			return m, nil
		}
		m.loading = true
		return m, m.refreshCmd()
	case key.Matches(msg, m.keys.Up):
		m.selected--
	case key.Matches(msg, m.keys.Down):
		m.selected++
	case key.Matches(msg, m.keys.Top):
		m.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selected = len(m.records) - 1
	case key.Matches(msg, m.keys.ToggleHelp):
		m.help.ShowAll = !m.help.ShowAll
	}
	m.clampSelection()
	return m, nil
}

func (m model) View() string {
	return m.renderView()
}

func (m model) refreshCmd() tea.Cmd {
	src := m.source
	return func() tea.Msg {
		if src == nil {
			return boardLoadedMsg{err: fmt.Errorf("no board source configured")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		board, err := src.Board(ctx)
		if err != nil {
			return boardLoadedMsg{err: fmt.Errorf("load board: %w", err)}
		}
		stats, err := src.Stats(ctx)
		if err != nil {
			return boardLoadedMsg{err: fmt.Errorf("load stats: %w", err)}
		}
		return boardLoadedMsg{board: board, stats: stats, at: time.Now()}
	}
}

func (m model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshEvery, func(at time.Time) tea.Msg {
		return tickMsg(at)
	})
}

func (m *model) clampSelection() {
	if m.selected >= len(m.records) {
		m.selected = len(m.records) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m model) current() (rescue.Record, bool) {
	if m.selected < 0 || m.selected >= len(m.records) {
		return rescue.Record{}, false
	}
	return m.records[m.selected], true
}

// sortByIndex orders records by board index; records without one go last.
func sortByIndex(records []rescue.Record) []rescue.Record {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b rescue.Record) int {
		switch {
		case a.BoardIndex == nil && b.BoardIndex == nil:
			return 0
		case a.BoardIndex == nil:
			return 1
		case b.BoardIndex == nil:
			return -1
		}
		return cmp.Compare(*a.BoardIndex, *b.BoardIndex)
	})
	return sorted
}
