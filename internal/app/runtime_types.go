package app

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/dwizi/rescue-console/internal/board"
	"github.com/dwizi/rescue-console/internal/caseapi"
	"github.com/dwizi/rescue-console/internal/config"
	"github.com/dwizi/rescue-console/internal/connectors"
	"github.com/dwizi/rescue-console/internal/dispatch"
	"github.com/dwizi/rescue-console/internal/permissions"
	"github.com/dwizi/rescue-console/internal/scheduler"
	"github.com/dwizi/rescue-console/internal/store"
	"github.com/dwizi/rescue-console/internal/watcher"
)

// Version is set at build time.
var Version = "dev"

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	store       *store.Store
	board       *board.Board
	caseAPI     *caseapi.Client
	permissions *permissions.Model
	dispatcher  *dispatch.Dispatcher
	httpServer  *http.Server
	watcher     *watcher.Service
	scheduler   *scheduler.Service
	connectors  []connectors.Connector

	reloadMu sync.Mutex
}
