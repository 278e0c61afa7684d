package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/dwizi/rescue-console/internal/adminclient"
	"github.com/dwizi/rescue-console/internal/config"
	"github.com/dwizi/rescue-console/internal/rescue"
)

type fakeSource struct {
	board    adminclient.Board
	stats    adminclient.Stats
	boardErr error
	calls    int
}

func (f *fakeSource) Board(context.Context) (adminclient.Board, error) {
	f.calls++
	return f.board, f.boardErr
}

func (f *fakeSource) Stats(context.Context) (adminclient.Stats, error) {
	return f.stats, nil
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func intPtr(value int) *int {
	return &value
}

func sampleBoard() adminclient.Board {
	return adminclient.Board{
		Online: true,
		Count:  3,
		Items: []rescue.Record{
			{ID: uuid.New(), Client: "carol", BoardIndex: intPtr(2), Status: rescue.StatusInactive},
			{ID: uuid.New(), Client: "alice", BoardIndex: intPtr(0), Platform: rescue.PlatformPC, System: "SOL", CodeRed: true,
				Rats:   []rescue.Rat{{ID: uuid.New(), Name: "ratA"}},
				Quotes: []rescue.Quotation{{Message: "fuel low", Author: "ratA"}}},
			{ID: uuid.New(), Client: "bob", BoardIndex: intPtr(1), Platform: rescue.PlatformXbox},
		},
	}
}

func newTestModel(src source) model {
	cfg := config.Config{
		Environment: "test",
		AdminAPIURL: "http://board.test",
	}
	m := newModel(cfg, src, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.width = 140
	m.height = 40
	return m
}

func loaded(t *testing.T, m model) model {
	t.Helper()
	msg := m.refreshCmd()()
	updated, _ := m.Update(msg)
	return updated.(model)
}

func TestRefreshSortsRecordsByIndex(t *testing.T) {
	src := &fakeSource{board: sampleBoard(), stats: adminclient.Stats{CycleAt: 15, Prefix: "!"}}
	m := loaded(t, newTestModel(src))

	if m.loading || !m.loaded || !m.online {
		t.Fatalf("unexpected state loading=%v loaded=%v online=%v", m.loading, m.loaded, m.online)
	}
	var clients []string
	for _, record := range m.records {
		clients = append(clients, record.Client)
	}
	if strings.Join(clients, ",") != "alice,bob,carol" {
		t.Fatalf("expected records ordered by index, got %v", clients)
	}
	view := m.View()
	for _, want := range []string{"Rescue Board", "ONLINE", "alice", "SOL", "2 active, 1 inactive", "fuel low"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q\n%s", want, view)
		}
	}
}

func TestNavigationClampsSelection(t *testing.T) {
	src := &fakeSource{board: sampleBoard()}
	m := loaded(t, newTestModel(src))

	updated, _ := m.Update(keyRune('k'))
	m = updated.(model)
	if m.selected != 0 {
		t.Fatalf("expected selection clamped at 0, got %d", m.selected)
	}
	for i := 0; i < 5; i++ {
		updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m = updated.(model)
	}
	if m.selected != 2 {
		t.Fatalf("expected selection clamped at last row, got %d", m.selected)
	}
	record, ok := m.current()
	if !ok || record.Client != "carol" {
		t.Fatalf("expected carol selected, got %+v", record)
	}
	updated, _ = m.Update(keyRune('g'))
	if updated.(model).selected != 0 {
		t.Fatal("expected g to jump to the first case")
	}
}

func TestRefreshErrorKeepsPreviousBoard(t *testing.T) {
	src := &fakeSource{board: sampleBoard()}
	m := loaded(t, newTestModel(src))

	src.boardErr = errors.New("connection refused")
	updated, cmd := m.Update(keyRune('r'))
	m = updated.(model)
	if !m.loading || cmd == nil {
		t.Fatal("expected refresh to start")
	}
	updated, _ = m.Update(cmd())
	m = updated.(model)
	if !strings.Contains(m.errorText, "connection refused") {
		t.Fatalf("expected error text, got %q", m.errorText)
	}
	if len(m.records) != 3 {
		t.Fatalf("expected previous board kept, got %d records", len(m.records))
	}
	if !strings.Contains(m.View(), "error: load board: connection refused") {
		t.Fatalf("expected error in footer\n%s", m.View())
	}
}

func TestTickSkipsRefreshWhileLoading(t *testing.T) {
	src := &fakeSource{board: sampleBoard()}
	m := newTestModel(src)
	if !m.loading {
		t.Fatal("expected initial model to be loading")
	}
	updated, _ := m.Update(tickMsg(time.Now()))
	if !updated.(model).loading {
		t.Fatal("expected loading to stay set")
	}

	m = loaded(t, m)
	updated, cmd := m.Update(tickMsg(time.Now()))
	if !updated.(model).loading || cmd == nil {
		t.Fatal("expected tick to start a refresh")
	}
	_, _ = updated.(model).Update(keyRune('r'))
	if src.calls != 1 {
		t.Fatalf("expected no extra fetch while loading, got %d calls", src.calls)
	}
}

func TestQuitKey(t *testing.T) {
	m := newTestModel(&fakeSource{})
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !updated.(model).quitting || cmd == nil {
		t.Fatal("expected quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}

func TestCompactLayoutStacksPanes(t *testing.T) {
	layout := computeLayout(80, 20)
	if !layout.Compact {
		t.Fatal("expected compact layout")
	}
	if layout.CompactListHeight+layout.CompactDetailHeight > layout.BodyHeight {
		t.Fatalf("stacked panes overflow body: %+v", layout)
	}
	wide := computeLayout(160, 50)
	if wide.Compact || wide.ListWidth+wide.DetailWidth+1 > wide.Width {
		t.Fatalf("unexpected wide layout: %+v", wide)
	}
}
