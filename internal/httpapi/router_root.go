package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dwizi/rescue-console/internal/board"
	"github.com/dwizi/rescue-console/internal/config"
	"github.com/dwizi/rescue-console/internal/rescue"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type BoardView interface {
	Online() bool
	CycleAt() int
	Len() int
	Snapshot() []rescue.Record
	Get(key board.Key) (*rescue.Rescue, error)
}

type DispatchStats interface {
	Prefix() string
	NoMatchCount() uint64
}

type CaseService interface {
	Enabled() bool
	Connected() bool
}

type Dependencies struct {
	Config   config.Config
	Store    Pinger
	Board    BoardView
	Dispatch DispatchStats
	CaseAPI  CaseService
	Version  string
	Logger   *slog.Logger
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/api/v1/info", rt.handleInfo)
	mux.HandleFunc("/api/v1/board", rt.handleBoard)
	mux.HandleFunc("/api/v1/board/case", rt.handleCase)
	mux.HandleFunc("/api/v1/stats", rt.handleStats)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
