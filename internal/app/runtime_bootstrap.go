package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dwizi/rescue-console/internal/board"
	"github.com/dwizi/rescue-console/internal/caseapi"
	"github.com/dwizi/rescue-console/internal/config"
	"github.com/dwizi/rescue-console/internal/connectors"
	"github.com/dwizi/rescue-console/internal/connectors/discord"
	"github.com/dwizi/rescue-console/internal/dispatch"
	"github.com/dwizi/rescue-console/internal/gateway"
	"github.com/dwizi/rescue-console/internal/httpapi"
	"github.com/dwizi/rescue-console/internal/permissions"
	"github.com/dwizi/rescue-console/internal/scheduler"
	"github.com/dwizi/rescue-console/internal/store"
	"github.com/dwizi/rescue-console/internal/watcher"
)

// New wires every component. Configuration problems, including a malformed
// console file, are returned here and stop startup.
func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	console, err := config.LoadConsoleFile(cfg.ConsoleFile, cfg.Prefix)
	if err != nil {
		return nil, err
	}
	permissionModel, err := permissions.NewModel(console.Permissions)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}

	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		sqlStore.Close()
		return nil, err
	}

	caseClient := caseapi.New(caseapi.Config{
		URL:     cfg.CaseAPIURL,
		Token:   cfg.CaseAPIToken,
		Timeout: time.Duration(cfg.CaseAPITimeoutSec) * time.Second,
	}, logger)
	boardOptions := board.Options{CycleAt: cfg.BoardCycleAt, Logger: logger}
	if caseClient.Enabled() {
		boardOptions.Remote = caseClient
	}
	rescueBoard := board.New(boardOptions)

	rt := &Runtime{
		cfg:         cfg,
		logger:      logger,
		store:       sqlStore,
		board:       rescueBoard,
		caseAPI:     caseClient,
		permissions: permissionModel,
	}
	if err := rt.restoreBoard(context.Background()); err != nil {
		logger.Error("board snapshot restore incomplete", "error", err)
	}

	rt.dispatcher = dispatch.NewDispatcher(dispatch.NewCommands(), dispatch.NewRules(), dispatch.Options{
		Prefix:      console.Prefix,
		DefaultLang: cfg.DefaultLang,
		Facts:       sqlStore.FactLookup(cfg.DefaultLang),
		Logger:      logger,
	})
	deps := gateway.Deps{
		Board:       rescueBoard,
		Permissions: permissionModel,
		Version:     Version,
		Logger:      logger,
	}
	if cfg.ConsoleFile != "" {
		deps.Reload = rt.ReloadConsole
	}
	if err := gateway.Register(rt.dispatcher.Commands(), rt.dispatcher.Rules(), deps); err != nil {
		sqlStore.Close()
		return nil, fmt.Errorf("register commands: %w", err)
	}

	if cfg.Autosave {
		autosave, err := scheduler.New(rescueBoard, sqlStore, cfg.AutosaveCron, logger)
		if err != nil {
			sqlStore.Close()
			return nil, err
		}
		rt.scheduler = autosave
	}
	if cfg.ConsoleFile != "" {
		consoleWatcher, err := watcher.New(cfg.ConsoleFile, logger, func(ctx context.Context, _ string) {
			if err := rt.ReloadConsole(ctx); err != nil {
				logger.Error("console reload rejected, keeping previous configuration", "error", err)
			}
		})
		if err != nil {
			sqlStore.Close()
			return nil, err
		}
		rt.watcher = consoleWatcher
	}

	rt.connectors = []connectors.Connector{
		discord.New(cfg.DiscordToken, cfg.DiscordAPI, cfg.DiscordWSURL, rt.dispatcher, logger),
	}

	rt.httpServer = &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Dependencies{
			Config:   cfg,
			Store:    sqlStore,
			Board:    rescueBoard,
			Dispatch: rt.dispatcher,
			CaseAPI:  caseClient,
			Version:  Version,
			Logger:   logger.With("component", "httpapi"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return rt, nil
}

// restoreBoard loads the last saved snapshot. Individual records that no
// longer fit the board are skipped and reported.
func (r *Runtime) restoreBoard(ctx context.Context) error {
	records, err := r.store.LoadRescues(ctx)
	if err != nil {
		return fmt.Errorf("load board snapshot: %w", err)
	}
	if len(records) == 0 {
		return nil
	}
	restoreErr := r.board.Restore(records)
	r.logger.Info("board snapshot restored", "rescue_count", r.board.Len(), "snapshot_count", len(records))
	return restoreErr
}

// ReloadConsole re-reads the console file and applies it. A file that fails
// validation leaves the running configuration untouched.
func (r *Runtime) ReloadConsole(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	console, err := config.LoadConsoleFile(r.cfg.ConsoleFile, r.cfg.Prefix)
	if err != nil {
		return err
	}
	if err := r.permissions.Reload(console.Permissions); err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidConsoleFile, err)
	}
	previous := r.dispatcher.Prefix()
	r.dispatcher.SetPrefix(console.Prefix)
	r.logger.Info("console configuration applied",
		"prefix", console.Prefix,
		"previous_prefix", previous,
		"permission_count", len(console.Permissions),
	)
	return nil
}

func (r *Runtime) Dispatcher() *dispatch.Dispatcher { return r.dispatcher }
func (r *Runtime) Board() *board.Board              { return r.board }
func (r *Runtime) Store() *store.Store              { return r.store }
