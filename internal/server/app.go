// Package server wires the enquiry server together: database and
// migrations, the form registry, attachment storage, the record engine, the
// HTTP API, the gRPC health endpoint and the search sync worker.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/enquirykeeper/internal/logging"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/attachments"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/authz"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/config"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/enquiries"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/metrics"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/rest"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/schema"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/search"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/services"

	gs "github.com/dmitrijs2005/enquirykeeper/internal/server/grpc"
)

var (
	openDB = func(dsn string) (*sql.DB, error) { return sql.Open("pgx", dsn) }

	newRepositoryManager = repomanager.NewPostgresRepositoryManager
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	registry *prometheus.Registry
	router   chi.Router
	health   *gs.HealthServer
	search   *search.Notifier
	closers  []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app := &App{config: c, logger: logger, db: db, closers: []func() error{db.Close}}

	if err := app.init(ctx); err != nil {
		_ = app.close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config
	rm := newRepositoryManager()

	if err := rm.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	registry := schema.NewRegistry()
	if err := registry.Load(ctx, rm.Forms(app.db)); err != nil {
		return err
	}

	store, err := app.attachmentStore(ctx)
	if err != nil {
		return err
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(app.registry)

	publisher, err := app.searchPublisher(ctx)
	if err != nil {
		return err
	}
	app.search = search.NewNotifier(publisher, c.SearchQueueSize, app.logger, m)

	engine := enquiries.NewEngine(app.db, rm, store, app.logger,
		enquiries.WithMetrics(m),
		enquiries.WithMaxUploadSize(c.MaxUploadSize),
		enquiries.WithMaxPhotos(c.MaxPhotos),
	)
	svc := services.NewEnquiryService(registry, authz.NewRoleGate(c.RolePermissions), engine, app.search, app.logger)

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", m.Handler())
	rest.NewHandler(svc, app.logger, c.SecretKey, c.MaxUploadSize, c.MaxPhotos).Register(r)
	app.router = r

	app.health = gs.NewHealthServer(c.EndpointAddrGRPC, app.logger, app.db, 5*time.Second)
	return nil
}

func (app *App) attachmentStore(ctx context.Context) (attachments.Store, error) {
	switch app.config.AttachmentBackend {
	case config.AttachmentBackendMemory:
		app.logger.Warn(ctx, "using in-memory attachment store; attachments are lost on restart")
		return attachments.NewMemoryStore(), nil
	case config.AttachmentBackendS3:
		s, err := attachments.NewS3Store(ctx, app.config)
		if err != nil {
			return nil, fmt.Errorf("attachment store init error: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown attachment backend %q", app.config.AttachmentBackend)
	}
}

func (app *App) searchPublisher(ctx context.Context) (search.Publisher, error) {
	if app.config.RedisAddr == "" {
		return search.NewLogPublisher(app.logger), nil
	}
	client, err := search.NewRedisClient(ctx, app.config.RedisAddr)
	if err != nil {
		return nil, fmt.Errorf("search sync init error: %w", err)
	}
	app.closers = append(app.closers, client.Close)
	return search.NewRedisPublisher(client, app.config.SearchStream), nil
}

func (app *App) close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i]())
	}
	return errors.Join(errs...)
}

// Handler returns the HTTP handler serving the enquiry API and /metrics.
func (app *App) Handler() http.Handler {
	return app.router
}

func (app *App) runHTTPServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
		// requests outlive ctx so Shutdown can let them finish
		BaseContext: func(_ net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Run serves until ctx is cancelled or a SIGINT/SIGTERM/SIGQUIT arrives,
// then shuts every component down and closes the database. The search
// worker stops only after the HTTP server has drained, so notifications
// from in-flight requests are still published.
func (app *App) Run(ctx context.Context) error {

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)
	searchCtx, stopSearch := context.WithCancel(context.WithoutCancel(ctx))
	defer stopSearch()

	g.Go(func() error {
		defer stopSearch()
		return app.runHTTPServer(ctx)
	})
	g.Go(func() error { return app.health.Run(ctx) })
	g.Go(func() error { return app.search.Run(searchCtx) })

	err := g.Wait()
	if cerr := app.close(); cerr != nil {
		app.logger.Error(context.WithoutCancel(ctx), "close error", "error", cerr)
	}
	app.logger.Info(context.WithoutCancel(ctx), "App stopped")
	return err
}
