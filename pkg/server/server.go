package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/de-tools/campaign-atlas/pkg/handlers/runs"
	"github.com/de-tools/campaign-atlas/pkg/handlers/templates"
	atlasmiddleware "github.com/de-tools/campaign-atlas/pkg/server/middleware"
	"github.com/de-tools/campaign-atlas/pkg/services/template"
	"github.com/de-tools/campaign-atlas/pkg/store/records"
	runstore "github.com/de-tools/campaign-atlas/pkg/store/runs"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const defaultShutdownTimeout = 10 * time.Second

type WebAPI struct {
	logger          *zerolog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
}

type Dependencies struct {
	Templates template.Manager
	Runner    runs.Runner
	Records   records.Store  // optional
	Runs      runstore.Store // optional
	Logger    zerolog.Logger
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

func ConfigureRouter(config Config) *chi.Mux {
	deps := config.Dependencies
	templateHandler := templates.NewHandler(deps.Templates)
	runHandler := runs.NewHandler(deps.Runner, deps.Records, deps.Runs)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(atlasmiddleware.Logger(&deps.Logger))
	router.Use(middleware.Recoverer)

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/templates", func(r chi.Router) {
			r.Post("/validate", templateHandler.Validate)
			r.Get("/active", templateHandler.GetActive)
			r.Put("/active", templateHandler.Activate)
			r.Delete("/active", templateHandler.Reset)
			r.Get("/active/export", templateHandler.ExportActive)
		})
		r.Post("/runs", runHandler.Create)
		r.Get("/runs", runHandler.ListRuns)
		r.Get("/runs/{run}", runHandler.GetRun)
		r.Get("/records", runHandler.ListRecords)
	})

	return router
}

func NewWebAPI(config Config) *WebAPI {
	logger := config.Dependencies.Logger
	timeout := config.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	return &WebAPI{
		logger: &logger,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           ConfigureRouter(config),
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: timeout,
	}
}

func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-shutdown:
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()

		err := w.server.Shutdown(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
