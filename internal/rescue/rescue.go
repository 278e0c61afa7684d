// Package rescue holds the case entity tracked on the rescue board.
//
// A Rescue keeps its attributes private; every setter updates the value,
// bumps UpdatedAt and records the attribute name in a dirty set that is only
// cleared once the remote case service has accepted the change.
package rescue

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	FieldClient            = "client"
	FieldIRCNickname       = "irc_nickname"
	FieldSystem            = "system"
	FieldPlatform          = "platform"
	FieldStatus            = "status"
	FieldCodeRed           = "code_red"
	FieldRats              = "rats"
	FieldUnidentifiedRats  = "unidentified_rats"
	FieldQuotes            = "quotes"
	FieldMarkedForDeletion = "marked_for_deletion"
	FieldBoardIndex        = "board_index"
	FieldLangID            = "lang_id"
	FieldTitle             = "title"
	FieldFirstResponder    = "first_responder_id"
)

var (
	ErrQuoteNotFound     = errors.New("quote not found")
	ErrInvalidTimestamps = errors.New("updated_at precedes created_at")
)

var timeNow = func() time.Time { return time.Now().UTC() }

type Params struct {
	ID          uuid.UUID
	Client      string
	IRCNickname string
	System      string
	Platform    Platform
	Status      Status
	CodeRed     bool
	BoardIndex  *int
	LangID      string
	Title       string
	CreatedAt   time.Time
}

type Rescue struct {
	id                uuid.UUID
	client            string
	ircNickname       string
	system            string
	platform          Platform
	status            Status
	codeRed           bool
	unidentifiedRats  map[string]UnidentifiedRat
	rats              map[string]Rat
	quotes            []Quotation
	markedForDeletion MarkForDeletion
	boardIndex        *int
	langID            string
	title             string
	firstResponderID  *uuid.UUID
	createdAt         time.Time
	updatedAt         time.Time
	modified          map[string]struct{}
}

func New(params Params) *Rescue {
	id := params.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := params.CreatedAt.UTC()
	if params.CreatedAt.IsZero() {
		createdAt = timeNow()
	}
	nickname := strings.TrimSpace(params.IRCNickname)
	if nickname == "" {
		nickname = strings.TrimSpace(params.Client)
	}
	langID := strings.ToLower(strings.TrimSpace(params.LangID))
	if langID == "" {
		langID = "en"
	}
	return &Rescue{
		id:               id,
		client:           strings.TrimSpace(params.Client),
		ircNickname:      nickname,
		system:           normalizeSystem(params.System),
		platform:         params.Platform,
		status:           params.Status,
		codeRed:          params.CodeRed,
		unidentifiedRats: map[string]UnidentifiedRat{},
		rats:             map[string]Rat{},
		boardIndex:       copyIntPtr(params.BoardIndex),
		langID:           langID,
		title:            strings.TrimSpace(params.Title),
		createdAt:        createdAt,
		updatedAt:        createdAt,
		modified:         map[string]struct{}{},
	}
}

func (r *Rescue) ID() uuid.UUID { return r.id }

// SetID replaces the local id with the one issued by the remote case service.
// It is not a tracked attribute change.
func (r *Rescue) SetID(id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	r.id = id
}

func (r *Rescue) Client() string { return r.client }

func (r *Rescue) SetClient(client string) {
	r.client = strings.TrimSpace(client)
	r.touch(FieldClient)
}

func (r *Rescue) IRCNickname() string { return r.ircNickname }

func (r *Rescue) SetIRCNickname(nickname string) {
	r.ircNickname = strings.TrimSpace(nickname)
	r.touch(FieldIRCNickname)
}

func (r *Rescue) System() string { return r.system }

func (r *Rescue) SetSystem(system string) {
	r.system = normalizeSystem(system)
	r.touch(FieldSystem)
}

func (r *Rescue) Platform() Platform { return r.platform }

func (r *Rescue) SetPlatform(platform Platform) {
	r.platform = platform
	r.touch(FieldPlatform)
}

func (r *Rescue) Status() Status { return r.status }

func (r *Rescue) SetStatus(status Status) {
	r.status = status
	r.touch(FieldStatus)
}

func (r *Rescue) Active() bool { return r.status != StatusInactive }

// SetActive maps true to open and false to inactive. Deactivating a closed
// rescue therefore leaves it inactive rather than closed.
func (r *Rescue) SetActive(active bool) {
	if active {
		r.SetStatus(StatusOpen)
		return
	}
	r.SetStatus(StatusInactive)
}

func (r *Rescue) Open() bool { return r.status != StatusClosed }

func (r *Rescue) SetOpen(open bool) {
	if open {
		r.SetStatus(StatusOpen)
		return
	}
	r.SetStatus(StatusClosed)
}

func (r *Rescue) CodeRed() bool { return r.codeRed }

func (r *Rescue) SetCodeRed(codeRed bool) {
	r.codeRed = codeRed
	r.touch(FieldCodeRed)
}

func (r *Rescue) BoardIndex() (int, bool) {
	if r.boardIndex == nil {
		return 0, false
	}
	return *r.boardIndex, true
}

func (r *Rescue) SetBoardIndex(index int) {
	r.boardIndex = &index
	r.touch(FieldBoardIndex)
}

func (r *Rescue) ClearBoardIndex() {
	r.boardIndex = nil
	r.touch(FieldBoardIndex)
}

func (r *Rescue) LangID() string { return r.langID }

func (r *Rescue) SetLangID(langID string) {
	r.langID = strings.ToLower(strings.TrimSpace(langID))
	r.touch(FieldLangID)
}

func (r *Rescue) Title() string { return r.title }

func (r *Rescue) SetTitle(title string) {
	r.title = strings.TrimSpace(title)
	r.touch(FieldTitle)
}

func (r *Rescue) FirstResponder() (uuid.UUID, bool) {
	if r.firstResponderID == nil {
		return uuid.Nil, false
	}
	return *r.firstResponderID, true
}

func (r *Rescue) SetFirstResponder(id uuid.UUID) {
	r.firstResponderID = &id
	r.touch(FieldFirstResponder)
}

func (r *Rescue) ClearFirstResponder() {
	r.firstResponderID = nil
	r.touch(FieldFirstResponder)
}

// AddRat assigns an identified responder and drops any placeholder with the
// same name.
func (r *Rescue) AddRat(rat Rat) {
	key := NormalizeRatName(rat.Name)
	if key == "" {
		return
	}
	rat.Name = strings.TrimSpace(rat.Name)
	r.rats[key] = rat
	r.touch(FieldRats)
	if _, exists := r.unidentifiedRats[key]; exists {
		delete(r.unidentifiedRats, key)
		r.touch(FieldUnidentifiedRats)
	}
}

// AddUnidentifiedRat assigns a responder known only by chat name. It is a
// no-op when an identified rat with that name is already assigned.
func (r *Rescue) AddUnidentifiedRat(name string, platform Platform) bool {
	key := NormalizeRatName(name)
	if key == "" {
		return false
	}
	if _, exists := r.rats[key]; exists {
		return false
	}
	r.unidentifiedRats[key] = UnidentifiedRat{Name: strings.TrimSpace(name), Platform: platform}
	r.touch(FieldUnidentifiedRats)
	return true
}

// RemoveRat unassigns a responder of either kind.
func (r *Rescue) RemoveRat(name string) bool {
	key := NormalizeRatName(name)
	removed := false
	if _, exists := r.rats[key]; exists {
		delete(r.rats, key)
		r.touch(FieldRats)
		removed = true
	}
	if _, exists := r.unidentifiedRats[key]; exists {
		delete(r.unidentifiedRats, key)
		r.touch(FieldUnidentifiedRats)
		removed = true
	}
	return removed
}

func (r *Rescue) Rats() []Rat {
	result := make([]Rat, 0, len(r.rats))
	for _, rat := range r.rats {
		result = append(result, rat)
	}
	sort.Slice(result, func(i, j int) bool {
		return NormalizeRatName(result[i].Name) < NormalizeRatName(result[j].Name)
	})
	return result
}

func (r *Rescue) UnidentifiedRats() []UnidentifiedRat {
	result := make([]UnidentifiedRat, 0, len(r.unidentifiedRats))
	for _, rat := range r.unidentifiedRats {
		result = append(result, rat)
	}
	sort.Slice(result, func(i, j int) bool {
		return NormalizeRatName(result[i].Name) < NormalizeRatName(result[j].Name)
	})
	return result
}

// AssignedNames lists every responder, identified or not, by display name.
func (r *Rescue) AssignedNames() []string {
	names := make([]string, 0, len(r.rats)+len(r.unidentifiedRats))
	for _, rat := range r.Rats() {
		names = append(names, rat.Name)
	}
	for _, rat := range r.UnidentifiedRats() {
		names = append(names, rat.Name)
	}
	return names
}

func (r *Rescue) AddQuote(message, author string) Quotation {
	quote := NewQuotation(message, author)
	r.quotes = append(r.quotes, quote)
	r.touch(FieldQuotes)
	return quote
}

func (r *Rescue) Quotes() []Quotation {
	return append([]Quotation(nil), r.quotes...)
}

// ModifyQuote runs a scoped Quotation.Modify on the quote at index.
func (r *Rescue) ModifyQuote(index int, author string, fn func(*Quotation)) error {
	if index < 0 || index >= len(r.quotes) {
		return fmt.Errorf("%w: %d", ErrQuoteNotFound, index)
	}
	if err := r.quotes[index].Modify(author, fn); err != nil {
		return err
	}
	r.touch(FieldQuotes)
	return nil
}

func (r *Rescue) DeleteQuote(index int) error {
	if index < 0 || index >= len(r.quotes) {
		return fmt.Errorf("%w: %d", ErrQuoteNotFound, index)
	}
	r.quotes = append(r.quotes[:index], r.quotes[index+1:]...)
	r.touch(FieldQuotes)
	return nil
}

func (r *Rescue) MarkedForDeletion() MarkForDeletion { return r.markedForDeletion }

// Mark flags the rescue for deletion review; reason and reporter are required.
func (r *Rescue) Mark(reason, reporter string) error {
	reason = strings.TrimSpace(reason)
	reporter = strings.TrimSpace(reporter)
	if reason == "" || reporter == "" {
		return ErrMarkIncomplete
	}
	r.markedForDeletion = MarkForDeletion{Marked: true, Reason: reason, Reporter: reporter}
	r.touch(FieldMarkedForDeletion)
	return nil
}

func (r *Rescue) Unmark() {
	r.markedForDeletion = MarkForDeletion{}
	r.touch(FieldMarkedForDeletion)
}

func (r *Rescue) CreatedAt() time.Time { return r.createdAt }
func (r *Rescue) UpdatedAt() time.Time { return r.updatedAt }

// ModifiedFields returns the attributes changed since the last successful sync.
func (r *Rescue) ModifiedFields() []string {
	fields := make([]string, 0, len(r.modified))
	for field := range r.modified {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func (r *Rescue) Modified() bool { return len(r.modified) > 0 }

func (r *Rescue) ClearModified() {
	r.modified = map[string]struct{}{}
}

// Clone returns a deep copy that shares no mutable state with r.
func (r *Rescue) Clone() *Rescue {
	clone := *r
	clone.unidentifiedRats = make(map[string]UnidentifiedRat, len(r.unidentifiedRats))
	for key, rat := range r.unidentifiedRats {
		clone.unidentifiedRats[key] = rat
	}
	clone.rats = make(map[string]Rat, len(r.rats))
	for key, rat := range r.rats {
		clone.rats[key] = rat
	}
	clone.quotes = append([]Quotation(nil), r.quotes...)
	clone.boardIndex = copyIntPtr(r.boardIndex)
	if r.firstResponderID != nil {
		id := *r.firstResponderID
		clone.firstResponderID = &id
	}
	clone.modified = make(map[string]struct{}, len(r.modified))
	for field := range r.modified {
		clone.modified[field] = struct{}{}
	}
	return &clone
}

func (r *Rescue) touch(field string) {
	now := timeNow()
	if now.Before(r.createdAt) {
		now = r.createdAt
	}
	r.updatedAt = now
	r.modified[field] = struct{}{}
}

func normalizeSystem(system string) string {
	return strings.ToUpper(strings.Join(strings.Fields(system), " "))
}

func copyIntPtr(value *int) *int {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
