// Package server is the reference implementation of the synchronization
// boundary: a JSON HTTP API over a storage.Provider. It pins down the
// backend-side semantics the editing core treats as opaque: structure
// versioning by effective date, tombstone processing, minimal-shift action
// reordering and daily-action bookkeeping.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/julianstephens/fieldbook/internal/logger"
	"github.com/julianstephens/fieldbook/internal/storage"
)

// Config holds server configuration.
type Config struct {
	Port  int
	Store storage.Provider
}

// Router assembles the API routes over the given store.
func Router(store storage.Provider) http.Handler {
	h := &handler{store: store}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/v1/structure", h.getStructure)
	r.Post("/v1/structure", h.saveStructure)
	r.Get("/v1/entry", h.getEntry)
	r.Post("/v1/entry", h.saveEntry)
	r.Get("/v1/actions", h.listActions)
	r.Post("/v1/actions/create", h.createAction)
	r.Post("/v1/actions/remove", h.removeAction)
	r.Post("/v1/actions/register", h.registerAction)
	r.Post("/v1/actions/reorder", h.reorderAction)

	return r
}

// Run starts the HTTP server and shuts it down when ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: Router(cfg.Store),
	}

	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("synchronization server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
