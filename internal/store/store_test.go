package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dwizi/rescue-console/internal/rescue"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "rescue_console_test.sqlite")
	sqlStore, err := New(dbPath)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = sqlStore.Close() })
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	return sqlStore
}

func TestAutoMigrateIsRepeatable(t *testing.T) {
	sqlStore := newTestStore(t)
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("second migration: %v", err)
	}
}

func TestFactLifecycle(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	if err := sqlStore.PutFact(ctx, Fact{Name: "Prep", Lang: "EN", Message: "Please drop from supercruise.", Author: "bob"}); err != nil {
		t.Fatalf("put fact: %v", err)
	}
	if err := sqlStore.PutFact(ctx, Fact{Name: "prep", Lang: "de", Message: "Bitte aus dem Supercruise fallen."}); err != nil {
		t.Fatalf("put fact: %v", err)
	}
	if err := sqlStore.PutFact(ctx, Fact{Name: "prep", Lang: "en", Message: "Please drop from supercruise now."}); err != nil {
		t.Fatalf("replace fact: %v", err)
	}

	facts, err := sqlStore.ListFacts(ctx)
	if err != nil {
		t.Fatalf("list facts: %v", err)
	}
	if len(facts) != 2 || facts[0].Lang != "de" || facts[1].Message != "Please drop from supercruise now." {
		t.Fatalf("unexpected facts %+v", facts)
	}
	if facts[1].Author != "" {
		t.Fatalf("expected replaced author cleared, got %q", facts[1].Author)
	}

	if err := sqlStore.DeleteFact(ctx, "prep", "de"); err != nil {
		t.Fatalf("delete fact: %v", err)
	}
	if err := sqlStore.DeleteFact(ctx, "prep", "de"); !errors.Is(err, ErrFactNotFound) {
		t.Fatalf("expected ErrFactNotFound, got %v", err)
	}
	if err := sqlStore.PutFact(ctx, Fact{Name: "x", Lang: "en"}); !errors.Is(err, ErrInvalidFact) {
		t.Fatalf("expected ErrInvalidFact, got %v", err)
	}
}

func TestFactLookupFallsBackToDefaultLanguage(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()
	if err := sqlStore.PutFact(ctx, Fact{Name: "fr", Lang: "en", Message: "Send a friend request."}); err != nil {
		t.Fatalf("put fact: %v", err)
	}
	if err := sqlStore.PutFact(ctx, Fact{Name: "fr", Lang: "ru", Message: "Отправьте запрос в друзья."}); err != nil {
		t.Fatalf("put fact: %v", err)
	}
	lookup := sqlStore.FactLookup("en")

	tests := []struct {
		lang  string
		want  string
		found bool
	}{
		{lang: "ru", want: "Отправьте запрос в друзья.", found: true},
		{lang: "de", want: "Send a friend request.", found: true},
		{lang: "", want: "Send a friend request.", found: true},
	}
	for _, tt := range tests {
		got, found, err := lookup.Find(ctx, "FR", tt.lang)
		if err != nil {
			t.Fatalf("find %q: %v", tt.lang, err)
		}
		if found != tt.found || got != tt.want {
			t.Fatalf("find %q = %q %v, want %q %v", tt.lang, got, found, tt.want, tt.found)
		}
	}
	if _, found, err := lookup.Find(ctx, "missing", "en"); err != nil || found {
		t.Fatalf("expected missing fact not found, got found=%v err=%v", found, err)
	}
}

func TestRescueSnapshotsRoundTrip(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	two, five := 2, 5
	first := rescue.New(rescue.Params{Client: "alice", System: "sol", Platform: rescue.PlatformPC, BoardIndex: &five})
	first.AddQuote("client is in sol", "dispatch")
	second := rescue.New(rescue.Params{Client: "bob", BoardIndex: &two, CodeRed: true})
	third := rescue.New(rescue.Params{Client: "carol"})
	third.SetTitle("Operation Pickup")

	records := []rescue.Record{first.Record(), second.Record(), third.Record()}
	if err := sqlStore.SaveRescues(ctx, records); err != nil {
		t.Fatalf("save rescues: %v", err)
	}
	loaded, err := sqlStore.LoadRescues(ctx)
	if err != nil {
		t.Fatalf("load rescues: %v", err)
	}
	want := []rescue.Record{second.Record(), first.Record(), third.Record()}
	if diff := cmp.Diff(want, loaded); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	if err := sqlStore.SaveRescues(ctx, nil); err != nil {
		t.Fatalf("save empty snapshot: %v", err)
	}
	loaded, err = sqlStore.LoadRescues(ctx)
	if err != nil {
		t.Fatalf("load rescues: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty snapshot, got %d records", len(loaded))
	}
}
