package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run starts every long-lived component and blocks until ctx is done or one
// of them fails.
func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("rescue-console runtime starting",
		"addr", r.cfg.HTTPAddr,
		"db_path", r.cfg.DBPath,
		"case_api_enabled", r.caseAPI.Enabled(),
		"prefix", r.dispatcher.Prefix(),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return r.caseAPI.Start(groupCtx, r.board)
	})
	if r.watcher != nil {
		group.Go(func() error {
			return r.watcher.Start(groupCtx)
		})
	}
	if r.scheduler != nil {
		group.Go(func() error {
			return r.scheduler.Start(groupCtx)
		})
	}
	for _, conn := range r.connectors {
		connector := conn
		group.Go(func() error {
			return connector.Start(groupCtx)
		})
	}
	group.Go(func() error {
		err := r.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// RunBackground starts only the components a local console session needs:
// the case service session and autosave.
func (r *Runtime) RunBackground(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return r.caseAPI.Start(groupCtx, r.board)
	})
	if r.scheduler != nil {
		group.Go(func() error {
			return r.scheduler.Start(groupCtx)
		})
	}
	return group.Wait()
}

func (r *Runtime) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}
