// Package board keeps the set of in-flight rescues.
//
// Rescues live in an arena addressed by slot ids; three maps (api id, client
// name, board index) point into it, so a change made through any key is seen
// through every key. Only the api id and the board index are unique; several
// rescues may share a client name, which then resolves to the newest of them. Callers never hold the board's own rescue values: Get and
// List hand out clones and all mutation goes through ModifyRescue, which
// checks the rescue out of every index for the duration of the change and puts
// it back on every exit path.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dwizi/rescue-console/internal/rescue"
)

const DefaultCycleAt = 15

// Remote is the authoritative case service the board writes through to while
// online.
type Remote interface {
	CreateRescue(ctx context.Context, record rescue.Record) (uuid.UUID, error)
	UpdateRescue(ctx context.Context, record rescue.Record) error
	RemoveRescue(ctx context.Context, record rescue.Record) error
}

type Options struct {
	// CycleAt is the index at which case number allocation wraps to zero.
	CycleAt int
	Remote  Remote
	Logger  *slog.Logger
}

type slotID uint64

// checkout remembers the keys a rescue held when it left the indices and a
// copy of it as it was then.
type checkout struct {
	id    uuid.UUID
	index *int
	prior *rescue.Rescue
}

type Board struct {
	mu        sync.Mutex
	slots     map[slotID]*rescue.Rescue
	nextSlot  slotID
	byID      map[uuid.UUID]slotID
	byClient  map[string]slotID
	byIndex   map[int]slotID
	checkouts map[slotID]checkout
	rekeyed   map[uuid.UUID]uuid.UUID
	counter   int
	cycleAt   int

	remote Remote
	online atomic.Bool
	logger *slog.Logger
}

func New(opts Options) *Board {
	cycleAt := opts.CycleAt
	if cycleAt <= 0 {
		cycleAt = DefaultCycleAt
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		slots:     map[slotID]*rescue.Rescue{},
		byID:      map[uuid.UUID]slotID{},
		byClient:  map[string]slotID{},
		byIndex:   map[int]slotID{},
		checkouts: map[slotID]checkout{},
		rekeyed:   map[uuid.UUID]uuid.UUID{},
		cycleAt:   cycleAt,
		remote:    opts.Remote,
		logger:    logger.With("component", "board"),
	}
}

func (b *Board) Online() bool { return b.online.Load() }

func (b *Board) GoOnline() {
	if b.online.CompareAndSwap(false, true) {
		b.logger.Info("board online")
	}
}

func (b *Board) GoOffline() {
	if b.online.CompareAndSwap(true, false) {
		b.logger.Info("board offline")
	}
}

func (b *Board) CycleAt() int { return b.cycleAt }

// Len counts rescues currently on the board. Checked-out rescues are not
// counted.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.slots)
}

// Append puts a copy of r on the board. Without overwrite it fails when r's
// api id or index already belongs to a tracked rescue; with overwrite the
// colliding rescues are evicted from every index. A shared client name is not
// a collision: the client key moves to r.
func (b *Board) Append(r *rescue.Rescue, overwrite bool) error {
	if r == nil {
		return fmt.Errorf("append: rescue is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.appendLocked(r.Clone(), overwrite)
	return err
}

func (b *Board) Get(key Key) (*rescue.Rescue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	slot, ok := b.resolveLocked(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRescueNotFound, key)
	}
	return b.slots[slot].Clone(), nil
}

func (b *Board) Contains(key Key) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.resolveLocked(key)
	return ok
}

// List returns copies ordered by board index; rescues without an index come
// last, oldest first.
func (b *Board) List() []*rescue.Rescue {
	b.mu.Lock()
	result := make([]*rescue.Rescue, 0, len(b.slots))
	for _, r := range b.slots {
		result = append(result, r.Clone())
	}
	b.mu.Unlock()
	sortRescues(result)
	return result
}

// Snapshot returns the records of every rescue on the board. Rescues checked
// out by ModifyRescue are included as they were before the change started.
func (b *Board) Snapshot() []rescue.Record {
	b.mu.Lock()
	list := make([]*rescue.Rescue, 0, len(b.slots)+len(b.checkouts))
	for _, r := range b.slots {
		list = append(list, r.Clone())
	}
	for _, held := range b.checkouts {
		list = append(list, held.prior.Clone())
	}
	b.mu.Unlock()
	sortRescues(list)
	records := make([]rescue.Record, 0, len(list))
	for _, r := range list {
		records = append(records, r.Record())
	}
	return records
}

func sortRescues(result []*rescue.Rescue) {
	sort.Slice(result, func(i, j int) bool {
		left, leftOK := result[i].BoardIndex()
		right, rightOK := result[j].BoardIndex()
		switch {
		case leftOK && rightOK:
			return left < right
		case leftOK != rightOK:
			return leftOK
		default:
			return result[i].CreatedAt().Before(result[j].CreatedAt())
		}
	})
}

// Restore loads records, typically a snapshot taken before a restart. Records
// that fail to load are skipped and reported together.
func (b *Board) Restore(records []rescue.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for _, record := range records {
		r, err := rescue.FromRecord(record)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := b.appendLocked(r, true); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", record.ID, err))
		}
	}
	return errors.Join(errs...)
}

// FreeCaseNumber returns the next unused board index and advances the
// allocation counter past it.
func (b *Board) FreeCaseNumber() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.freeCaseNumberLocked()
}

func (b *Board) freeCaseNumberLocked() int {
	candidate := b.nextFreeIndexLocked()
	b.counter = candidate + 1
	return candidate
}

// nextFreeIndexLocked finds the index FreeCaseNumber would hand out without
// advancing the counter.
func (b *Board) nextFreeIndexLocked() int {
	candidate := b.counter
	if candidate >= b.cycleAt {
		candidate = 0
	}
	for b.indexTakenLocked(candidate) {
		candidate++
	}
	return candidate
}

// CreateRescue builds a rescue from params, giving it a free board index when
// none is set, and appends it. While online the creation is then pushed to the
// remote service and the rescue is re-keyed to the id it hands back. A remote
// failure leaves the rescue on the board and is returned wrapped in
// ErrRemoteSync alongside the created rescue.
func (b *Board) CreateRescue(ctx context.Context, params rescue.Params) (*rescue.Rescue, error) {
	b.mu.Lock()
	allocated := params.BoardIndex == nil
	if allocated {
		index := b.nextFreeIndexLocked()
		params.BoardIndex = &index
	}
	r := rescue.New(params)
	slot, err := b.appendLocked(r, false)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	if allocated {
		b.counter = *params.BoardIndex + 1
	}
	record := r.Record()
	created := r.Clone()
	b.mu.Unlock()

	b.logger.Info("rescue created", "rescue_id", record.ID, "client", record.Client, "board_index", *record.BoardIndex)
	if !b.Online() || b.remote == nil {
		return created, nil
	}
	remoteID, err := b.remote.CreateRescue(ctx, record)
	if err != nil {
		return created, fmt.Errorf("%w: create %s: %w", ErrRemoteSync, record.ID, err)
	}
	return b.rekey(slot, record, created, remoteID), nil
}

func (b *Board) rekey(slot slotID, record rescue.Record, created *rescue.Rescue, remoteID uuid.UUID) *rescue.Rescue {
	b.mu.Lock()
	defer b.mu.Unlock()
	if remoteID == uuid.Nil {
		remoteID = record.ID
	}
	created.SetID(remoteID)
	created.ClearModified()

	r, ok := b.slots[slot]
	if !ok {
		if _, out := b.checkouts[slot]; out && remoteID != record.ID {
			b.rekeyed[record.ID] = remoteID
		}
		return created
	}
	if remoteID != record.ID {
		delete(b.byID, r.ID())
		r.SetID(remoteID)
		b.byID[remoteID] = slot
	}
	if r.UpdatedAt().Equal(record.UpdatedAt) {
		r.ClearModified()
	}
	return r.Clone()
}

// ModifyRescue checks the rescue behind key out of every index, runs fn on it
// and puts it back, also when fn fails, panics or ctx is already done. While
// checked out the rescue is invisible to Get and a second ModifyRescue on the
// same rescue fails with ErrRescueNotFound. If fn moved the rescue onto an
// api id or index that is no longer free, the previous value is restored and
// the conflict is returned. Successful changes are pushed to the remote
// service while online.
func (b *Board) ModifyRescue(ctx context.Context, key Key, fn func(*rescue.Rescue) error) (*rescue.Rescue, error) {
	slot, r, held, err := b.checkout(key)
	if err != nil {
		return nil, err
	}
	checkedIn := false
	defer func() {
		if !checkedIn {
			b.checkin(slot, r, held)
		}
	}()

	mutateErr := ctx.Err()
	if mutateErr == nil {
		mutateErr = fn(r)
	}
	record, result, checkinErr := b.checkin(slot, r, held)
	checkedIn = true

	if err := errors.Join(mutateErr, checkinErr); err != nil {
		return result, err
	}
	if err := b.pushUpdate(ctx, slot, record); err != nil {
		return result, err
	}
	return result, nil
}

func (b *Board) checkout(key Key) (slotID, *rescue.Rescue, checkout, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	slot, ok := b.resolveLocked(key)
	if !ok {
		return 0, nil, checkout{}, fmt.Errorf("%w: %s", ErrRescueNotFound, key)
	}
	r := b.slots[slot]
	held := checkout{id: r.ID(), prior: r.Clone()}
	if index, ok := r.BoardIndex(); ok {
		held.index = &index
	}
	b.unindexLocked(slot, r)
	delete(b.slots, slot)
	b.checkouts[slot] = held
	return slot, r, held, nil
}

func (b *Board) checkin(slot slotID, r *rescue.Rescue, held checkout) (rescue.Record, *rescue.Rescue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.checkouts, slot)
	if remoteID, ok := b.rekeyed[held.id]; ok {
		delete(b.rekeyed, held.id)
		r.SetID(remoteID)
	}

	var conflicts []error
	if r.ID() != held.id && b.idTakenLocked(r.ID()) {
		conflicts = append(conflicts, fmt.Errorf("%w: %s", ErrRescueExists, r.ID()))
		r.SetID(held.id)
	}
	if index, ok := r.BoardIndex(); ok && b.indexTakenLocked(index) {
		conflicts = append(conflicts, &IndexNotFreeError{Index: index})
		if held.index != nil && !b.indexTakenLocked(*held.index) {
			r.SetBoardIndex(*held.index)
		} else {
			r.ClearBoardIndex()
		}
	}

	b.slots[slot] = r
	b.indexLocked(slot, r)
	return r.Record(), r.Clone(), errors.Join(conflicts...)
}

func (b *Board) pushUpdate(ctx context.Context, slot slotID, record rescue.Record) error {
	if !b.Online() || b.remote == nil || len(record.ModifiedFields) == 0 {
		return nil
	}
	if err := b.remote.UpdateRescue(ctx, record); err != nil {
		return fmt.Errorf("%w: update %s: %w", ErrRemoteSync, record.ID, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.slots[slot]; ok && r.UpdatedAt().Equal(record.UpdatedAt) {
		r.ClearModified()
	}
	return nil
}

// RemoveRescue takes the rescue off every index and, while online, tells the
// remote service. The removed rescue is returned even when the remote call
// fails.
func (b *Board) RemoveRescue(ctx context.Context, key Key) (*rescue.Rescue, error) {
	b.mu.Lock()
	slot, ok := b.resolveLocked(key)
	if !ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRescueNotFound, key)
	}
	removed := b.slots[slot]
	b.evictLocked(slot)
	record := removed.Record()
	b.mu.Unlock()

	b.logger.Info("rescue removed", "rescue_id", record.ID, "client", record.Client)
	if !b.Online() || b.remote == nil {
		return removed, nil
	}
	if err := b.remote.RemoveRescue(ctx, record); err != nil {
		return removed, fmt.Errorf("%w: remove %s: %w", ErrRemoteSync, record.ID, err)
	}
	return removed, nil
}

func (b *Board) appendLocked(r *rescue.Rescue, overwrite bool) (slotID, error) {
	var collisions []slotID
	if b.idCheckedOutLocked(r.ID()) {
		return 0, fmt.Errorf("%w: %s", ErrRescueExists, r.ID())
	}
	if slot, ok := b.byID[r.ID()]; ok {
		if !overwrite {
			return 0, fmt.Errorf("%w: %s", ErrRescueExists, r.ID())
		}
		collisions = append(collisions, slot)
	}
	if index, ok := r.BoardIndex(); ok {
		if b.indexCheckedOutLocked(index) {
			return 0, &IndexNotFreeError{Index: index}
		}
		if slot, ok := b.byIndex[index]; ok {
			if !overwrite {
				return 0, &IndexNotFreeError{Index: index}
			}
			collisions = append(collisions, slot)
		}
	}
	for _, slot := range collisions {
		b.evictLocked(slot)
	}
	b.nextSlot++
	slot := b.nextSlot
	b.slots[slot] = r
	b.indexLocked(slot, r)
	return slot, nil
}

func (b *Board) resolveLocked(key Key) (slotID, bool) {
	var (
		slot slotID
		ok   bool
	)
	switch key.kind {
	case keyID:
		slot, ok = b.byID[key.id]
	case keyClient:
		slot, ok = b.byClient[key.client]
	case keyIndex:
		slot, ok = b.byIndex[key.index]
	}
	return slot, ok
}

// indexLocked points every key of r at slot. The client key goes to the
// newest rescue (highest slot) carrying that name.
func (b *Board) indexLocked(slot slotID, r *rescue.Rescue) {
	b.byID[r.ID()] = slot
	if client := normalizeClient(r.Client()); client != "" {
		if current, ok := b.byClient[client]; !ok || current <= slot {
			b.byClient[client] = slot
		}
	}
	if index, ok := r.BoardIndex(); ok {
		b.byIndex[index] = slot
	}
}

func (b *Board) unindexLocked(slot slotID, r *rescue.Rescue) {
	if current, ok := b.byID[r.ID()]; ok && current == slot {
		delete(b.byID, r.ID())
	}
	if client := normalizeClient(r.Client()); client != "" {
		if current, ok := b.byClient[client]; ok && current == slot {
			delete(b.byClient, client)
			b.reclaimClientLocked(client, slot)
		}
	}
	if index, ok := r.BoardIndex(); ok {
		if current, ok := b.byIndex[index]; ok && current == slot {
			delete(b.byIndex, index)
		}
	}
}

// reclaimClientLocked hands a freed client key to the newest remaining rescue
// with that name.
func (b *Board) reclaimClientLocked(client string, leaving slotID) {
	var (
		newest slotID
		found  bool
	)
	for slot, other := range b.slots {
		if slot == leaving || normalizeClient(other.Client()) != client {
			continue
		}
		if !found || slot > newest {
			newest, found = slot, true
		}
	}
	if found {
		b.byClient[client] = newest
	}
}

func (b *Board) evictLocked(slot slotID) {
	r, ok := b.slots[slot]
	if !ok {
		return
	}
	b.unindexLocked(slot, r)
	delete(b.slots, slot)
}

func (b *Board) idTakenLocked(id uuid.UUID) bool {
	_, ok := b.byID[id]
	return ok || b.idCheckedOutLocked(id)
}

// indexTakenLocked also counts indices held by checked-out rescues so they are
// not handed out while their owner is away.
func (b *Board) indexTakenLocked(index int) bool {
	_, ok := b.byIndex[index]
	return ok || b.indexCheckedOutLocked(index)
}

func (b *Board) idCheckedOutLocked(id uuid.UUID) bool {
	for _, held := range b.checkouts {
		if held.id == id {
			return true
		}
	}
	return false
}

func (b *Board) indexCheckedOutLocked(index int) bool {
	for _, held := range b.checkouts {
		if held.index != nil && *held.index == index {
			return true
		}
	}
	return false
}
