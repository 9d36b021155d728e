package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/percal/percal/internal/config"
	"github.com/percal/percal/internal/database"
	"github.com/percal/percal/internal/task_queue"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Application wires configuration, database, router, task queue, cron
// schedule, and server lifecycle.
type Application struct {
	cfg    config.Application
	router *mux.Router
	srv    *http.Server
	queue  *task_queue.Queue
	cron   *cron.Cron
}

// NewApplication constructs the full HTTP application, ready to Run().
func NewApplication() (*Application, error) {
	cfg, err := config.Load("./config/application.yaml")
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	// db will be closed when server shuts down; defer not possible here, leave to process exit.
	if err := database.Migrate(cfg.Database); err != nil {
		return nil, err
	}

	queue := task_queue.New(256)
	deps := BuildDependencies(db, queue, cfg)

	r := mux.NewRouter()
	SetupMiddleware(r)
	RegisterRoutes(r, deps)

	c := cron.New()
	// Five minutes past each three-hour boundary, so the interval
	// computation lands inside the bucket that just started.
	_, err = c.AddFunc("5 */3 * * *", func() {
		if err := deps.SubscriptionService.RunDueSyncs(context.Background()); err != nil {
			log.Errorf("scheduled sync run failed: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}
	// Nightly retention pass over long-ended events.
	_, err = c.AddFunc("30 1 * * *", func() {
		removed, err := deps.CleanupService.RemoveExpired(context.Background(), deps.Gateway, time.Now().UTC())
		if err != nil {
			log.Errorf("retention cleanup failed: %v", err)
			return
		}
		log.Infof("retention cleanup removed %d events", removed)
	})
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Handler:      r,
		Addr:         ":8181",
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{cfg: cfg, router: r, srv: srv, queue: queue, cron: c}, nil
}

// Run starts the task queue worker, the cron schedule, and the HTTP
// server, then blocks.
func (a *Application) Run() error {
	a.queue.Start(context.Background())
	a.cron.Start()
	log.Infof("Starting server on %s", a.srv.Addr)
	return a.srv.ListenAndServe()
}
