// Package scheduler persists the rescue board on a cron schedule so rescues
// created while the case service is unreachable survive a restart.
package scheduler

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dwizi/rescue-console/internal/rescue"
)

var autosaveCronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Board interface {
	Snapshot() []rescue.Record
}

type Store interface {
	SaveRescues(ctx context.Context, records []rescue.Record) error
}

type Service struct {
	board    Board
	store    Store
	schedule cron.Schedule
	expr     string
	logger   *slog.Logger

	mu       sync.Mutex
	lastHash string
}

// New parses expr with the same five-field plus descriptor syntax the
// "@every 1m" default uses.
func New(board Board, store Store, expr string, logger *slog.Logger) (*Service, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = "@every 1m"
	}
	schedule, err := autosaveCronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse autosave schedule: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		board:    board,
		store:    store,
		schedule: schedule,
		expr:     expr,
		logger:   logger.With("component", "scheduler"),
	}, nil
}

// Start saves on every tick and once more on shutdown.
func (s *Service) Start(ctx context.Context) error {
	if s.board == nil || s.store == nil {
		<-ctx.Done()
		return nil
	}
	s.logger.Info("autosave scheduler started", "schedule", s.expr)
	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if _, err := s.Save(shutdownCtx); err != nil {
				s.logger.Error("final autosave failed", "error", err)
			}
			cancel()
			s.logger.Info("autosave scheduler stopped")
			return nil
		case <-timer.C:
		}
		if _, err := s.Save(ctx); err != nil {
			s.logger.Error("autosave failed", "error", err)
		}
	}
}

// Save writes the board snapshot unless it is identical to the last one
// written. It reports whether anything was written.
func (s *Service) Save(ctx context.Context) (bool, error) {
	records := s.board.Snapshot()
	payload, err := json.Marshal(records)
	if err != nil {
		return false, fmt.Errorf("encode snapshot: %w", err)
	}
	sum := sha1.Sum(payload)
	hash := hex.EncodeToString(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	if hash == s.lastHash {
		return false, nil
	}
	if err := s.store.SaveRescues(ctx, records); err != nil {
		return false, err
	}
	s.lastHash = hash
	s.logger.Debug("board snapshot saved", "rescue_count", len(records))
	return true, nil
}
