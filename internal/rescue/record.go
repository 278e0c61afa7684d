package rescue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is the serialized form of a Rescue used by snapshots and the remote
// case service.
type Record struct {
	ID                uuid.UUID         `json:"id"`
	Client            string            `json:"client"`
	IRCNickname       string            `json:"irc_nickname,omitempty"`
	System            string            `json:"system,omitempty"`
	Platform          Platform          `json:"platform,omitempty"`
	Status            Status            `json:"status"`
	CodeRed           bool              `json:"code_red"`
	Rats              []Rat             `json:"rats,omitempty"`
	UnidentifiedRats  []UnidentifiedRat `json:"unidentified_rats,omitempty"`
	Quotes            []Quotation       `json:"quotes,omitempty"`
	MarkedForDeletion MarkForDeletion   `json:"marked_for_deletion"`
	BoardIndex        *int              `json:"board_index,omitempty"`
	LangID            string            `json:"lang_id,omitempty"`
	Title             string            `json:"title,omitempty"`
	FirstResponderID  *uuid.UUID        `json:"first_responder_id,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	ModifiedFields    []string          `json:"modified_fields,omitempty"`
}

func (r *Rescue) Record() Record {
	record := Record{
		ID:                r.id,
		Client:            r.client,
		IRCNickname:       r.ircNickname,
		System:            r.system,
		Platform:          r.platform,
		Status:            r.status,
		CodeRed:           r.codeRed,
		Rats:              r.Rats(),
		UnidentifiedRats:  r.UnidentifiedRats(),
		Quotes:            r.Quotes(),
		MarkedForDeletion: r.markedForDeletion,
		BoardIndex:        copyIntPtr(r.boardIndex),
		LangID:            r.langID,
		Title:             r.title,
		CreatedAt:         r.createdAt,
		UpdatedAt:         r.updatedAt,
		ModifiedFields:    r.ModifiedFields(),
	}
	if r.firstResponderID != nil {
		id := *r.firstResponderID
		record.FirstResponderID = &id
	}
	if len(record.Rats) == 0 {
		record.Rats = nil
	}
	if len(record.UnidentifiedRats) == 0 {
		record.UnidentifiedRats = nil
	}
	if len(record.ModifiedFields) == 0 {
		record.ModifiedFields = nil
	}
	return record
}

// FromRecord rebuilds a Rescue, restoring its dirty set verbatim.
func FromRecord(record Record) (*Rescue, error) {
	if record.ID == uuid.Nil {
		return nil, fmt.Errorf("rescue record has no id")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = timeNow()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	if record.UpdatedAt.Before(record.CreatedAt) {
		return nil, fmt.Errorf("%w: rescue %s", ErrInvalidTimestamps, record.ID)
	}
	if _, err := record.Status.MarshalText(); err != nil {
		return nil, err
	}
	r := New(Params{
		ID:          record.ID,
		Client:      record.Client,
		IRCNickname: record.IRCNickname,
		System:      record.System,
		Platform:    record.Platform,
		Status:      record.Status,
		CodeRed:     record.CodeRed,
		BoardIndex:  record.BoardIndex,
		LangID:      record.LangID,
		Title:       record.Title,
		CreatedAt:   record.CreatedAt,
	})
	for _, rat := range record.Rats {
		if key := NormalizeRatName(rat.Name); key != "" {
			r.rats[key] = rat
		}
	}
	for _, rat := range record.UnidentifiedRats {
		if key := NormalizeRatName(rat.Name); key != "" {
			r.unidentifiedRats[key] = rat
		}
	}
	r.quotes = append([]Quotation(nil), record.Quotes...)
	r.markedForDeletion = record.MarkedForDeletion
	if record.FirstResponderID != nil {
		id := *record.FirstResponderID
		r.firstResponderID = &id
	}
	r.updatedAt = record.UpdatedAt.UTC()
	for _, field := range record.ModifiedFields {
		r.modified[field] = struct{}{}
	}
	return r, nil
}
