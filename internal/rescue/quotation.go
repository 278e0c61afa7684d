package rescue

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidQuotation = errors.New("invalid quotation")

const DefaultQuoteAuthor = "system"

// Quotation is a line of case notes attached to a rescue.
type Quotation struct {
	Message    string    `json:"message"`
	Author     string    `json:"author"`
	LastAuthor string    `json:"last_author"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewQuotation(message, author string) Quotation {
	author = strings.TrimSpace(author)
	if author == "" {
		author = DefaultQuoteAuthor
	}
	now := timeNow()
	return Quotation{
		Message:    strings.TrimSpace(message),
		Author:     author,
		LastAuthor: author,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Modify applies fn to the quotation. On success LastAuthor and UpdatedAt are
// stamped; if the result does not validate every field is restored.
func (q *Quotation) Modify(author string, fn func(*Quotation)) error {
	backup := *q
	fn(q)
	if err := q.validate(); err != nil {
		*q = backup
		return err
	}
	author = strings.TrimSpace(author)
	if author == "" {
		author = DefaultQuoteAuthor
	}
	q.LastAuthor = author
	q.UpdatedAt = timeNow()
	if q.UpdatedAt.Before(q.CreatedAt) {
		q.UpdatedAt = q.CreatedAt
	}
	return nil
}

func (q Quotation) validate() error {
	if strings.TrimSpace(q.Message) == "" {
		return errors.Join(ErrInvalidQuotation, errors.New("message is empty"))
	}
	if strings.TrimSpace(q.Author) == "" {
		return errors.Join(ErrInvalidQuotation, errors.New("author is empty"))
	}
	if q.CreatedAt.IsZero() {
		return errors.Join(ErrInvalidQuotation, errors.New("created_at is unset"))
	}
	return nil
}
