package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/farxc/carbon_footprint/internal/ingestion"
	"github.com/farxc/carbon_footprint/internal/logger"
	"github.com/farxc/carbon_footprint/internal/metrics"
	"github.com/farxc/carbon_footprint/internal/reporting"
	"github.com/farxc/carbon_footprint/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type application struct {
	config    config
	store     *store.Storage
	ingestion *ingestion.Service
	reports   *reporting.Service
	logger    *logger.Logger
	gatherer  prometheus.Gatherer
}

type config struct {
	addr     string
	db       dbConfig
	redis    redisConfig
	region   string
	workers  int
	logLevel string
	csv      csvConfig
}

type dbConfig struct {
	addr         string
	maxOpenConns int
	maxIdleConns int
	maxIdleTime  string
}

type redisConfig struct {
	addr     string
	password string
	db       int
	ttl      time.Duration
}

type csvConfig struct {
	encoding  string
	delimiter string
}

const maxUploadBytes = 32 << 20

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// Set a timeout value on the request context (ctx), that will signal
	// through ctx.Done() that the request has timed out and further
	// processing should be stopped.
	r.Use(middleware.Timeout(60 * time.Second))

	if app.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(app.gatherer))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", app.healthCheckHandler)

		r.Route("/uploads", func(r chi.Router) {
			r.Get("/", app.handleListUploads)
			r.Post("/", app.handleCreateUpload)
			r.Post("/exclude-all", app.handleExcludeAllUploads)
			r.Get("/{id}", app.handleGetUpload)
			r.Delete("/{id}", app.handleExcludeUpload)
		})
		r.Post("/bills", app.handleCreateBill)

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", app.handleListCatalog)
			r.Put("/", app.handleUpsertCatalog)
		})

		r.Route("/factors", func(r chi.Router) {
			r.Get("/", app.handleGetFactors)
			r.Get("/reference", app.handleListReferenceFactors)
			r.Post("/reference", app.handleCreateReferenceFactor)
		})

		r.Route("/metrics", func(r chi.Router) {
			r.Get("/products", app.handleGetProductMetrics)
			r.Get("/bills", app.handleGetBillMetrics)
			r.Get("/company", app.handleGetCompanyMetrics)
			r.Get("/footprint", app.handleGetFootprint)
			r.Get("/trends", app.handleGetTrends)
			r.Get("/kpis", app.handleGetKPIs)
		})
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	const component = "API"

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 120,
		ReadTimeout:  time.Second * 40,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error, 1)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info(component, "Shutting down server: signal=%s", s)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Info(component, "Server started on %s", app.config.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-shutdown
}
