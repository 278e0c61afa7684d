package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrFactNotFound = errors.New("fact not found")
	ErrInvalidFact  = errors.New("invalid fact")
)

type Fact struct {
	Name      string
	Lang      string
	Message   string
	Author    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PutFact creates or replaces the fact for (name, lang).
func (s *Store) PutFact(ctx context.Context, fact Fact) error {
	name := normalizeFactKey(fact.Name)
	lang := normalizeFactKey(fact.Lang)
	message := strings.TrimSpace(fact.Message)
	if name == "" || lang == "" || message == "" {
		return fmt.Errorf("%w: name, lang and message are required", ErrInvalidFact)
	}
	nowUnix := time.Now().UTC().Unix()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO facts (name, lang, message, author, created_at_unix, updated_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name, lang) DO UPDATE SET
			message = excluded.message,
			author = excluded.author,
			updated_at_unix = excluded.updated_at_unix`,
		name,
		lang,
		message,
		nullIfEmpty(strings.TrimSpace(fact.Author)),
		nowUnix,
		nowUnix,
	)
	if err != nil {
		return fmt.Errorf("upsert fact: %w", err)
	}
	return nil
}

func (s *Store) LookupFact(ctx context.Context, name, lang string) (Fact, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT name, lang, message, author, created_at_unix, updated_at_unix
		 FROM facts
		 WHERE name = ? AND lang = ?`,
		normalizeFactKey(name),
		normalizeFactKey(lang),
	)
	fact, err := scanFact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Fact{}, ErrFactNotFound
		}
		return Fact{}, fmt.Errorf("lookup fact: %w", err)
	}
	return fact, nil
}

func (s *Store) ListFacts(ctx context.Context) ([]Fact, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT name, lang, message, author, created_at_unix, updated_at_unix
		 FROM facts
		 ORDER BY name ASC, lang ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		facts = append(facts, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return facts, nil
}

func (s *Store) DeleteFact(ctx context.Context, name, lang string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM facts WHERE name = ? AND lang = ?`, normalizeFactKey(name), normalizeFactKey(lang))
	if err != nil {
		return fmt.Errorf("delete fact: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete fact rows: %w", err)
	}
	if affected == 0 {
		return ErrFactNotFound
	}
	return nil
}

// FactLookup answers dispatcher fact requests, falling back to the default
// language when a translation is missing.
type FactLookup struct {
	store       *Store
	defaultLang string
}

func (s *Store) FactLookup(defaultLang string) *FactLookup {
	lang := normalizeFactKey(defaultLang)
	if lang == "" {
		lang = "en"
	}
	return &FactLookup{store: s, defaultLang: lang}
}

func (l *FactLookup) Find(ctx context.Context, name, lang string) (string, bool, error) {
	langs := []string{normalizeFactKey(lang)}
	if langs[0] == "" {
		langs[0] = l.defaultLang
	} else if langs[0] != l.defaultLang {
		langs = append(langs, l.defaultLang)
	}
	for _, candidate := range langs {
		fact, err := l.store.LookupFact(ctx, name, candidate)
		if errors.Is(err, ErrFactNotFound) {
			continue
		}
		if err != nil {
			return "", false, err
		}
		return fact.Message, true, nil
	}
	return "", false, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFact(row rowScanner) (Fact, error) {
	var (
		fact        Fact
		author      sql.NullString
		createdUnix int64
		updatedUnix int64
	)
	if err := row.Scan(&fact.Name, &fact.Lang, &fact.Message, &author, &createdUnix, &updatedUnix); err != nil {
		return Fact{}, err
	}
	fact.Author = author.String
	fact.CreatedAt = time.Unix(createdUnix, 0).UTC()
	fact.UpdatedAt = time.Unix(updatedUnix, 0).UTC()
	return fact, nil
}

func normalizeFactKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
