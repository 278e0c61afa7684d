package rescue

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func withClock(t *testing.T, start time.Time) *time.Time {
	t.Helper()
	current := start
	previous := timeNow
	timeNow = func() time.Time { return current }
	t.Cleanup(func() { timeNow = previous })
	return &current
}

func TestNewDefaults(t *testing.T) {
	r := New(Params{Client: " Alice ", System: "  sol   system "})
	if r.ID() == uuid.Nil {
		t.Fatal("expected generated id")
	}
	if r.Client() != "Alice" || r.IRCNickname() != "Alice" {
		t.Fatalf("unexpected client/nickname: %q %q", r.Client(), r.IRCNickname())
	}
	if r.System() != "SOL SYSTEM" {
		t.Fatalf("expected normalized system, got %q", r.System())
	}
	if r.Status() != StatusOpen || !r.Open() || !r.Active() {
		t.Fatalf("expected open rescue, got %s", r.Status())
	}
	if r.LangID() != "en" {
		t.Fatalf("expected default lang en, got %q", r.LangID())
	}
	if _, ok := r.BoardIndex(); ok {
		t.Fatal("expected no board index")
	}
	if r.Modified() {
		t.Fatalf("expected clean rescue, got %v", r.ModifiedFields())
	}
}

func TestSettersTrackModifiedFields(t *testing.T) {
	clock := withClock(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	r := New(Params{Client: "alice"})
	created := r.CreatedAt()

	*clock = clock.Add(time.Minute)
	r.SetSystem("sol")
	r.SetPlatform(PlatformPS)
	r.SetCodeRed(true)
	r.SetBoardIndex(4)

	want := []string{FieldBoardIndex, FieldCodeRed, FieldPlatform, FieldSystem}
	if diff := cmp.Diff(want, r.ModifiedFields()); diff != "" {
		t.Fatalf("modified fields mismatch (-want +got):\n%s", diff)
	}
	if !r.UpdatedAt().After(created) {
		t.Fatalf("expected updated_at after created_at, got %s <= %s", r.UpdatedAt(), created)
	}
	r.ClearModified()
	if r.Modified() {
		t.Fatal("expected dirty set cleared")
	}
}

func TestUpdatedAtNeverPrecedesCreatedAt(t *testing.T) {
	clock := withClock(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	r := New(Params{Client: "alice"})
	*clock = clock.Add(-time.Hour)
	r.SetTitle("backwards clock")
	if r.UpdatedAt().Before(r.CreatedAt()) {
		t.Fatalf("updated_at %s precedes created_at %s", r.UpdatedAt(), r.CreatedAt())
	}
}

func TestStatusConvenienceSetters(t *testing.T) {
	tests := []struct {
		name  string
		start Status
		apply func(*Rescue)
		want  Status
	}{
		{name: "deactivate open", start: StatusOpen, apply: func(r *Rescue) { r.SetActive(false) }, want: StatusInactive},
		{name: "activate inactive", start: StatusInactive, apply: func(r *Rescue) { r.SetActive(true) }, want: StatusOpen},
		{name: "deactivate closed becomes inactive", start: StatusClosed, apply: func(r *Rescue) { r.SetActive(false) }, want: StatusInactive},
		{name: "close open", start: StatusOpen, apply: func(r *Rescue) { r.SetOpen(false) }, want: StatusClosed},
		{name: "reopen inactive", start: StatusInactive, apply: func(r *Rescue) { r.SetOpen(true) }, want: StatusOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(Params{Client: "alice", Status: tt.start})
			tt.apply(r)
			if r.Status() != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, r.Status())
			}
		})
	}
}

func TestRatAssignment(t *testing.T) {
	r := New(Params{Client: "alice"})
	if !r.AddUnidentifiedRat("SomeRat", PlatformPC) {
		t.Fatal("expected unidentified rat added")
	}
	r.AddRat(Rat{ID: uuid.New(), Name: "somerat", Platform: PlatformPC})
	if len(r.UnidentifiedRats()) != 0 {
		t.Fatalf("expected placeholder replaced, got %+v", r.UnidentifiedRats())
	}
	if r.AddUnidentifiedRat("SOMERAT", PlatformPC) {
		t.Fatal("expected identified rat to block placeholder")
	}
	if !r.RemoveRat("SomeRat") {
		t.Fatal("expected rat removed")
	}
	if len(r.AssignedNames()) != 0 {
		t.Fatalf("expected no assigned rats, got %v", r.AssignedNames())
	}
}

func TestMarkRequiresReasonAndReporter(t *testing.T) {
	r := New(Params{Client: "alice"})
	if err := r.Mark("duplicate", ""); !errors.Is(err, ErrMarkIncomplete) {
		t.Fatalf("expected ErrMarkIncomplete, got %v", err)
	}
	if r.MarkedForDeletion().Marked {
		t.Fatal("expected rescue left unmarked")
	}
	if err := r.Mark("duplicate", "overseer"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	got := r.MarkedForDeletion()
	if !got.Marked || got.Reason != "duplicate" || got.Reporter != "overseer" {
		t.Fatalf("unexpected mark: %+v", got)
	}
}

func TestQuotationModifyRollsBackInvalidResult(t *testing.T) {
	clock := withClock(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	r := New(Params{Client: "alice"})
	r.AddQuote("client in sol", "")
	before := r.Quotes()[0]
	if before.Author != DefaultQuoteAuthor {
		t.Fatalf("expected default author, got %q", before.Author)
	}

	*clock = clock.Add(time.Minute)
	err := r.ModifyQuote(0, "dispatcher", func(q *Quotation) {
		q.Message = "   "
		q.Author = "someone"
	})
	if !errors.Is(err, ErrInvalidQuotation) {
		t.Fatalf("expected ErrInvalidQuotation, got %v", err)
	}
	if diff := cmp.Diff(before, r.Quotes()[0]); diff != "" {
		t.Fatalf("expected rollback (-want +got):\n%s", diff)
	}

	if err := r.ModifyQuote(0, "dispatcher", func(q *Quotation) { q.Message = "client in SOL, o2 ok" }); err != nil {
		t.Fatalf("modify quote: %v", err)
	}
	after := r.Quotes()[0]
	if after.LastAuthor != "dispatcher" || !after.UpdatedAt.Equal(*clock) {
		t.Fatalf("expected stamped quote, got %+v", after)
	}
	if err := r.ModifyQuote(3, "dispatcher", func(*Quotation) {}); !errors.Is(err, ErrQuoteNotFound) {
		t.Fatalf("expected ErrQuoteNotFound, got %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	r := New(Params{Client: "alice"})
	r.AddUnidentifiedRat("ratone", PlatformPC)
	r.AddQuote("hello", "bob")
	r.SetBoardIndex(2)

	clone := r.Clone()
	clone.AddUnidentifiedRat("rattwo", PlatformPC)
	clone.SetBoardIndex(5)
	clone.AddQuote("more", "bob")

	if len(r.UnidentifiedRats()) != 1 || len(r.Quotes()) != 1 {
		t.Fatalf("original mutated through clone: %+v", r.Record())
	}
	if index, _ := r.BoardIndex(); index != 2 {
		t.Fatalf("expected original index 2, got %d", index)
	}
}

func TestRecordRoundTripKeepsDirtySet(t *testing.T) {
	r := New(Params{Client: "alice", Platform: PlatformXbox, Status: StatusInactive})
	r.SetBoardIndex(3)
	r.AddQuote("quote", "dispatch")
	r.SetFirstResponder(uuid.New())

	restored, err := FromRecord(r.Record())
	if err != nil {
		t.Fatalf("from record: %v", err)
	}
	if diff := cmp.Diff(r.Record(), restored.Record()); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestFromRecordRejectsInvertedTimestamps(t *testing.T) {
	now := time.Now().UTC()
	_, err := FromRecord(Record{ID: uuid.New(), Client: "alice", CreatedAt: now, UpdatedAt: now.Add(-time.Second)})
	if !errors.Is(err, ErrInvalidTimestamps) {
		t.Fatalf("expected ErrInvalidTimestamps, got %v", err)
	}
}

func TestParsePlatform(t *testing.T) {
	for input, want := range map[string]Platform{"PC": PlatformPC, "xbox": PlatformXbox, "PS4": PlatformPS, "": PlatformNone} {
		got, err := ParsePlatform(input)
		if err != nil || got != want {
			t.Fatalf("ParsePlatform(%q) = %q, %v; want %q", input, got, err, want)
		}
	}
	if _, err := ParsePlatform("switch"); !errors.Is(err, ErrUnknownPlatform) {
		t.Fatalf("expected ErrUnknownPlatform, got %v", err)
	}
}
