package board

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/dwizi/rescue-console/internal/rescue"
)

type fakeRemote struct {
	mu        sync.Mutex
	createErr error
	updateErr error
	removeErr error
	issued    []uuid.UUID
	updates   []rescue.Record
	removals  []rescue.Record
}

func (f *fakeRemote) CreateRescue(_ context.Context, _ rescue.Record) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return uuid.Nil, f.createErr
	}
	id := uuid.New()
	f.issued = append(f.issued, id)
	return id, nil
}

func (f *fakeRemote) UpdateRescue(_ context.Context, record rescue.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, record)
	return nil
}

func (f *fakeRemote) RemoveRescue(_ context.Context, record rescue.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removals = append(f.removals, record)
	return nil
}

func newTestBoard(remote Remote) *Board {
	return New(Options{
		CycleAt: 15,
		Remote:  remote,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func mustCreate(t *testing.T, b *Board, client string) *rescue.Rescue {
	t.Helper()
	r, err := b.CreateRescue(context.Background(), rescue.Params{Client: client})
	if err != nil {
		t.Fatalf("create %s: %v", client, err)
	}
	return r
}

func boardIndex(t *testing.T, r *rescue.Rescue) int {
	t.Helper()
	index, ok := r.BoardIndex()
	if !ok {
		t.Fatalf("rescue %s has no board index", r.Client())
	}
	return index
}

func TestCaseNumbersCycleAtThreshold(t *testing.T) {
	b := newTestBoard(nil)
	var first *rescue.Rescue
	for i := 0; i < 15; i++ {
		r := mustCreate(t, b, "client-"+uuid.NewString())
		if got := boardIndex(t, r); got != i {
			t.Fatalf("creation %d: expected index %d, got %d", i, i, got)
		}
		if i == 0 {
			first = r
		}
	}
	sixteenth := mustCreate(t, b, "sixteenth")
	if got := boardIndex(t, sixteenth); got != 15 {
		t.Fatalf("expected index 15 while low range is full, got %d", got)
	}

	if _, err := b.RemoveRescue(context.Background(), ByID(first.ID())); err != nil {
		t.Fatalf("remove: %v", err)
	}
	reused := mustCreate(t, b, "seventeenth")
	if got := boardIndex(t, reused); got != 0 {
		t.Fatalf("expected freed index 0 to be reused, got %d", got)
	}
}

func TestCaseNumbersAreDistinct(t *testing.T) {
	b := newTestBoard(nil)
	seen := map[int]string{}
	for i := 0; i < 40; i++ {
		r := mustCreate(t, b, uuid.NewString())
		index := boardIndex(t, r)
		if other, dup := seen[index]; dup {
			t.Fatalf("index %d handed to %s and %s", index, other, r.Client())
		}
		seen[index] = r.Client()
	}
}

func TestAppendIndexCollision(t *testing.T) {
	b := newTestBoard(nil)
	index := 3
	a := rescue.New(rescue.Params{Client: "alice", BoardIndex: &index})
	other := rescue.New(rescue.Params{Client: "bob", BoardIndex: &index})

	if err := b.Append(a, false); err != nil {
		t.Fatalf("append a: %v", err)
	}
	err := b.Append(other, false)
	var notFree *IndexNotFreeError
	if !errors.As(err, &notFree) || notFree.Index != 3 || !errors.Is(err, ErrIndexNotFree) {
		t.Fatalf("expected IndexNotFreeError for 3, got %v", err)
	}

	if err := b.Append(other, true); err != nil {
		t.Fatalf("append with overwrite: %v", err)
	}
	got, err := b.Get(ByIndex(3))
	if err != nil || got.ID() != other.ID() {
		t.Fatalf("expected bob under index 3, got %v %v", got, err)
	}
	if b.Contains(ByID(a.ID())) || b.Contains(ByClient("alice")) {
		t.Fatal("expected alice fully evicted")
	}
	if b.Len() != 1 {
		t.Fatalf("expected one rescue, got %d", b.Len())
	}
}

func TestAppendRejectsKnownRescue(t *testing.T) {
	b := newTestBoard(nil)
	r := rescue.New(rescue.Params{Client: "alice"})
	if err := b.Append(r, false); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := b.Append(r, false); !errors.Is(err, ErrRescueExists) {
		t.Fatalf("expected ErrRescueExists, got %v", err)
	}
	if _, ok := mustGet(t, b, ByClient("ALICE")).BoardIndex(); ok {
		t.Fatal("expected rescue without index to stay off the index table")
	}
}

func TestSharedClientIsNotACollision(t *testing.T) {
	b := newTestBoard(nil)
	first, second, third := 1, 2, 3
	a := rescue.New(rescue.Params{Client: "alice", BoardIndex: &first})
	same := rescue.New(rescue.Params{Client: "Alice", BoardIndex: &second})

	if err := b.Append(a, false); err != nil {
		t.Fatalf("append a: %v", err)
	}
	if err := b.Append(same, false); err != nil {
		t.Fatalf("expected second rescue for the same client to be accepted, got %v", err)
	}
	if err := b.Append(rescue.New(rescue.Params{Client: "ALICE", BoardIndex: &third}), true); err != nil {
		t.Fatalf("append with overwrite: %v", err)
	}
	if b.Len() != 3 {
		t.Fatalf("expected no rescue evicted, got %d on the board", b.Len())
	}
	if mustGet(t, b, ByIndex(1)).ID() != a.ID() {
		t.Fatal("expected the first rescue still under index 1")
	}

	created, err := b.CreateRescue(context.Background(), rescue.Params{Client: "ALICE"})
	if err != nil {
		t.Fatalf("create for known client: %v", err)
	}
	if mustGet(t, b, ByClient("alice")).ID() != created.ID() {
		t.Fatal("expected the client key to resolve to the newest rescue")
	}
	if _, err := b.RemoveRescue(context.Background(), ByID(created.ID())); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := mustGet(t, b, ByClient("alice")); got.ID() == created.ID() {
		t.Fatal("expected the client key handed to a remaining rescue")
	}
}

func TestFailedCreateKeepsCaseNumber(t *testing.T) {
	b := newTestBoard(nil)
	taken := mustCreate(t, b, "alice")
	if _, err := b.CreateRescue(context.Background(), rescue.Params{ID: taken.ID(), Client: "bob"}); !errors.Is(err, ErrRescueExists) {
		t.Fatalf("expected ErrRescueExists, got %v", err)
	}
	if next := boardIndex(t, mustCreate(t, b, "carol")); next != 1 {
		t.Fatalf("expected index 1 still free after the failed create, got %d", next)
	}
}

func mustGet(t *testing.T, b *Board, key Key) *rescue.Rescue {
	t.Helper()
	r, err := b.Get(key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	return r
}

func TestModifyRescueChecksOut(t *testing.T) {
	b := newTestBoard(nil)
	created := mustCreate(t, b, "alice")
	keys := []Key{ByID(created.ID()), ByClient("alice"), ByIndex(boardIndex(t, created))}

	_, err := b.ModifyRescue(context.Background(), keys[0], func(r *rescue.Rescue) error {
		for _, key := range keys {
			if _, err := b.Get(key); !errors.Is(err, ErrRescueNotFound) {
				t.Errorf("expected %s hidden during checkout, got %v", key, err)
			}
		}
		if _, err := b.ModifyRescue(context.Background(), keys[1], func(*rescue.Rescue) error { return nil }); !errors.Is(err, ErrRescueNotFound) {
			t.Errorf("expected nested checkout to miss, got %v", err)
		}
		if next := b.FreeCaseNumber(); next == boardIndex(t, created) {
			t.Errorf("checked-out index %d handed out again", next)
		}
		r.SetSystem("sol")
		return nil
	})
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	for _, key := range keys {
		got := mustGet(t, b, key)
		if got.System() != "SOL" || got.Client() != "alice" {
			t.Fatalf("unexpected rescue under %s: %+v", key, got.Record())
		}
	}
}

func TestModifyRescueReinsertsOnFailure(t *testing.T) {
	b := newTestBoard(nil)
	created := mustCreate(t, b, "alice")
	keys := []Key{ByID(created.ID()), ByClient("alice"), ByIndex(boardIndex(t, created))}

	boom := errors.New("boom")
	if _, err := b.ModifyRescue(context.Background(), keys[0], func(r *rescue.Rescue) error {
		r.SetCodeRed(true)
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_, _ = b.ModifyRescue(context.Background(), keys[1], func(*rescue.Rescue) error {
			panic("handler bug")
		})
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	if _, err := b.ModifyRescue(ctx, keys[2], func(*rescue.Rescue) error {
		called = true
		return nil
	}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatal("expected mutation skipped for a cancelled context")
	}

	for _, key := range keys {
		got := mustGet(t, b, key)
		if !got.CodeRed() {
			t.Fatalf("expected mutation before failure kept under %s", key)
		}
	}
}

func TestModifyRescueIndexConflictRestoresIndex(t *testing.T) {
	b := newTestBoard(nil)
	alice := mustCreate(t, b, "alice")
	bob := mustCreate(t, b, "bob")

	_, err := b.ModifyRescue(context.Background(), ByClient("alice"), func(r *rescue.Rescue) error {
		r.SetBoardIndex(boardIndex(t, bob))
		return nil
	})
	if !errors.Is(err, ErrIndexNotFree) {
		t.Fatalf("expected ErrIndexNotFree, got %v", err)
	}
	got := mustGet(t, b, ByIndex(boardIndex(t, alice)))
	if got.ID() != alice.ID() {
		t.Fatalf("expected alice back on index %d", boardIndex(t, alice))
	}
	if mustGet(t, b, ByIndex(boardIndex(t, bob))).ID() != bob.ID() {
		t.Fatal("expected bob untouched")
	}
}

func TestConcurrentModifyNeverLosesRescue(t *testing.T) {
	b := newTestBoard(nil)
	created := mustCreate(t, b, "alice")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.ModifyRescue(context.Background(), ByID(created.ID()), func(r *rescue.Rescue) error {
				r.AddQuote("ping", "test")
				return nil
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, ErrRescueNotFound) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	got := mustGet(t, b, ByID(created.ID()))
	if len(got.Quotes()) != succeeded {
		t.Fatalf("expected %d quotes, got %d", succeeded, len(got.Quotes()))
	}
}

func TestOnlineBoardWritesThrough(t *testing.T) {
	remote := &fakeRemote{}
	b := newTestBoard(remote)
	b.GoOnline()
	b.GoOnline()

	created := mustCreate(t, b, "alice")
	if len(remote.issued) != 1 || created.ID() != remote.issued[0] {
		t.Fatalf("expected rescue re-keyed to remote id, got %s (issued %v)", created.ID(), remote.issued)
	}
	if !b.Contains(ByID(remote.issued[0])) {
		t.Fatal("expected remote id on the board")
	}

	if _, err := b.ModifyRescue(context.Background(), ByClient("alice"), func(r *rescue.Rescue) error {
		r.SetSystem("sol")
		r.SetPlatform(rescue.PlatformPC)
		return nil
	}); err != nil {
		t.Fatalf("modify: %v", err)
	}
	if len(remote.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(remote.updates))
	}
	want := []string{rescue.FieldPlatform, rescue.FieldSystem}
	if diff := cmp.Diff(want, remote.updates[0].ModifiedFields); diff != "" {
		t.Fatalf("pushed fields mismatch (-want +got):\n%s", diff)
	}
	if mustGet(t, b, ByClient("alice")).Modified() {
		t.Fatal("expected dirty set cleared after successful push")
	}

	if _, err := b.RemoveRescue(context.Background(), ByClient("alice")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(remote.removals) != 1 || remote.removals[0].ID != created.ID() {
		t.Fatalf("expected remote removal, got %+v", remote.removals)
	}
}

func TestRemoteFailureKeepsLocalChange(t *testing.T) {
	unavailable := errors.New("case service unavailable")
	remote := &fakeRemote{createErr: unavailable, updateErr: unavailable}
	b := newTestBoard(remote)
	b.GoOnline()

	created, err := b.CreateRescue(context.Background(), rescue.Params{Client: "alice"})
	if !errors.Is(err, ErrRemoteSync) || !errors.Is(err, unavailable) {
		t.Fatalf("expected wrapped remote error, got %v", err)
	}
	if created == nil || !b.Contains(ByID(created.ID())) {
		t.Fatal("expected rescue kept locally")
	}

	_, err = b.ModifyRescue(context.Background(), ByClient("alice"), func(r *rescue.Rescue) error {
		r.SetSystem("sol")
		return nil
	})
	if !errors.Is(err, ErrRemoteSync) {
		t.Fatalf("expected ErrRemoteSync, got %v", err)
	}
	got := mustGet(t, b, ByClient("alice"))
	if got.System() != "SOL" || !got.Modified() {
		t.Fatalf("expected local change kept and still dirty, got %+v", got.Record())
	}
}

func TestGoingOnlineDoesNotPushOfflineRescues(t *testing.T) {
	remote := &fakeRemote{}
	b := newTestBoard(remote)
	mustCreate(t, b, "alice")
	b.GoOnline()
	b.GoOffline()
	b.GoOffline()
	if len(remote.issued) != 0 || len(remote.updates) != 0 {
		t.Fatalf("expected no retroactive push, got %d creates %d updates", len(remote.issued), len(remote.updates))
	}
	if b.Online() {
		t.Fatal("expected board offline")
	}
}

func TestSnapshotRestore(t *testing.T) {
	b := newTestBoard(nil)
	mustCreate(t, b, "alice")
	bob := mustCreate(t, b, "bob")
	if _, err := b.ModifyRescue(context.Background(), ByID(bob.ID()), func(r *rescue.Rescue) error {
		r.AddUnidentifiedRat("ratone", rescue.PlatformPC)
		return nil
	}); err != nil {
		t.Fatalf("modify: %v", err)
	}

	snapshot := b.Snapshot()
	restored := newTestBoard(nil)
	if err := restored.Restore(snapshot); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if diff := cmp.Diff(snapshot, restored.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if next := restored.FreeCaseNumber(); next != 2 {
		t.Fatalf("expected next free index 2, got %d", next)
	}
}

func TestParseKey(t *testing.T) {
	id := uuid.New()
	tests := map[string]Key{
		"3":           ByIndex(3),
		"#12":         ByIndex(12),
		id.String():   ByID(id),
		"Some Client": ByClient("some client"),
	}
	for input, want := range tests {
		if got := ParseKey(input); got != want {
			t.Fatalf("ParseKey(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestSnapshotKeepsCheckedOutRescue(t *testing.T) {
	b := newTestBoard(nil)
	mustCreate(t, b, "alice")
	bob := mustCreate(t, b, "bob")

	var during []rescue.Record
	if _, err := b.ModifyRescue(context.Background(), ByID(bob.ID()), func(r *rescue.Rescue) error {
		r.SetCodeRed(true)
		during = b.Snapshot()
		return nil
	}); err != nil {
		t.Fatalf("modify: %v", err)
	}

	if len(during) != 2 {
		t.Fatalf("expected both rescues in a snapshot taken mid-change, got %d", len(during))
	}
	for _, record := range during {
		if record.ID == bob.ID() && record.CodeRed {
			t.Fatal("expected the checked-out rescue as it was before the change")
		}
	}
}
