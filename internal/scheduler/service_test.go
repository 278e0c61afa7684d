package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dwizi/rescue-console/internal/rescue"
)

type fakeBoard struct {
	mu      sync.Mutex
	records []rescue.Record
}

func (f *fakeBoard) Snapshot() []rescue.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rescue.Record(nil), f.records...)
}

func (f *fakeBoard) set(records ...rescue.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
}

type fakeStore struct {
	mu    sync.Mutex
	saves [][]rescue.Record
	err   error
}

func (f *fakeStore) SaveRescues(_ context.Context, records []rescue.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saves = append(f.saves, records)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSaveSkipsUnchangedSnapshots(t *testing.T) {
	board := &fakeBoard{}
	board.set(rescue.New(rescue.Params{Client: "alice"}).Record())
	store := &fakeStore{}
	service, err := New(board, store, "@every 1h", discardLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	if wrote, err := service.Save(ctx); err != nil || !wrote {
		t.Fatalf("expected first save to write, got %v %v", wrote, err)
	}
	if wrote, err := service.Save(ctx); err != nil || wrote {
		t.Fatalf("expected unchanged snapshot skipped, got %v %v", wrote, err)
	}
	board.set()
	if wrote, err := service.Save(ctx); err != nil || !wrote {
		t.Fatalf("expected changed snapshot written, got %v %v", wrote, err)
	}
	if store.count() != 2 {
		t.Fatalf("expected 2 saves, got %d", store.count())
	}
}

func TestFailedSaveIsRetried(t *testing.T) {
	board := &fakeBoard{}
	board.set(rescue.New(rescue.Params{Client: "alice"}).Record())
	store := &fakeStore{err: errors.New("disk full")}
	service, err := New(board, store, "", discardLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := service.Save(context.Background()); err == nil {
		t.Fatal("expected save error")
	}
	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()
	if wrote, err := service.Save(context.Background()); err != nil || !wrote {
		t.Fatalf("expected retry to write, got %v %v", wrote, err)
	}
}

func TestStartSavesOnShutdown(t *testing.T) {
	board := &fakeBoard{}
	board.set(rescue.New(rescue.Params{Client: "alice"}).Record())
	store := &fakeStore{}
	service, err := New(board, store, "@every 1h", discardLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if store.count() != 1 {
		t.Fatalf("expected final save, got %d saves", store.count())
	}
}

func TestNewRejectsInvalidSchedule(t *testing.T) {
	if _, err := New(&fakeBoard{}, &fakeStore{}, "every minute please", discardLogger()); err == nil {
		t.Fatal("expected parse error")
	}
}
