package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/config"
	"github.com/walletwise/walletwise/internal/database"
	"github.com/walletwise/walletwise/internal/utils"
)

const configPath = "./config/application.yaml"

// Application wires configuration, database, router, and server lifecycle.
type Application struct {
	cfg     config.Application
	db      *pgxpool.Pool
	deps    *Dependencies
	router  *mux.Router
	srv     *http.Server
	cleanup func()
}

// NewApplication constructs the full HTTP application, ready to Run().
func NewApplication() (*Application, error) {
	cfg, db, deps, cleanup, err := bootstrap()
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	SetupMiddleware(r, deps)
	RegisterRoutes(r, deps)

	srv := &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{cfg: cfg, db: db, deps: deps, router: r, srv: srv, cleanup: cleanup}, nil
}

// NewDailyJobFromConfig builds only what the daily job needs, for running it outside the server.
func NewDailyJobFromConfig() (*DailyJob, func(), error) {
	_, _, deps, cleanup, err := bootstrap()
	if err != nil {
		return nil, nil, err
	}
	return deps.DailyJob, cleanup, nil
}

func bootstrap() (config.Application, *pgxpool.Pool, *Dependencies, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, nil, nil, err
	}

	if err := database.Migrate(cfg.Database); err != nil {
		return cfg, nil, nil, nil, err
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return cfg, nil, nil, nil, err
	}

	mailer, closeMailer, err := NewMailer(cfg.Notifier)
	if err != nil {
		db.Close()
		return cfg, nil, nil, nil, err
	}

	deps, err := BuildDependencies(PostgresRepositories(db), database.NewTxManager(db), mailer, utils.SystemClock{}, cfg)
	if err != nil {
		closeMailer()
		db.Close()
		return cfg, nil, nil, nil, err
	}

	cleanup := func() {
		closeMailer()
		db.Close()
	}
	return cfg, db, deps, cleanup, nil
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM, then drains in-flight requests.
func (a *Application) Run() error {
	defer a.cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", a.srv.Addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.srv.Shutdown(shutdownCtx)
}
