package app

import (
	"context"
	"database/sql"

	"github.com/percal/percal/internal/config"
	"github.com/percal/percal/internal/task_queue"
	"github.com/percal/percal/internal/utils"
	"github.com/percal/percal/pkg/event"
	"github.com/percal/percal/pkg/gcal"
	"github.com/percal/percal/pkg/ical"
	"github.com/percal/percal/pkg/notify"
	"github.com/percal/percal/pkg/subscription"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Queue    *task_queue.Queue
	Notifier notify.Notifier
	Clock    utils.Clock

	GoogleAuth *gcal.GoogleAuth
	Gateway    *gcal.Gateway

	EventRepo      event.Repository
	EventStore     *event.Store
	CleanupService *event.CleanupService

	SubscriptionRepo    subscription.Repository
	CheckpointRepo      subscription.CheckpointRepository
	SubscriptionService subscription.Service
	SubscriptionHandler *subscription.Handler
	SyncEngine          *subscription.SyncEngine
	Reconciler          *subscription.Reconciler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *sql.DB, queue *task_queue.Queue, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.Queue = queue
	deps.Notifier = notify.NewMailgunNotifier(cfg.Mailgun)
	deps.Clock = &utils.SystemClock{}

	// Sync and cleanup notify through the queue; the TaskNotifyAdmins
	// handler below does the actual Mailgun send off their goroutines.
	queued := notify.NewQueuedNotifier(queue)

	deps.GoogleAuth = gcal.NewGoogleAuth(db, cfg)
	deps.Gateway = gcal.NewGateway(deps.GoogleAuth, cfg)

	deps.EventRepo = event.NewRepository(db)
	deps.EventStore = event.NewStore(deps.EventRepo)
	deps.CleanupService = event.NewCleanupService(deps.EventRepo, queued, deps.Clock)

	deps.SubscriptionRepo = subscription.NewRepository(db)
	deps.CheckpointRepo = subscription.NewCheckpointRepository(db)
	deps.SubscriptionService = subscription.NewService(deps.SubscriptionRepo, queue, deps.Clock)
	deps.SubscriptionHandler = subscription.NewHandler(deps.SubscriptionService)

	fetcher := ical.NewHTTPFetcher(cfg.Sync.FeedTimeout)
	deps.SyncEngine = subscription.NewSyncEngine(deps.SubscriptionRepo, deps.CheckpointRepo,
		deps.EventStore, fetcher, deps.Gateway, deps.GoogleAuth, queue, queued, deps.Clock, cfg.Sync)
	deps.Reconciler = subscription.NewReconciler(deps.SubscriptionRepo, deps.EventRepo,
		deps.EventStore, deps.Gateway, deps.Clock)

	registerTaskHandlers(queue, deps)
	return deps
}

func registerTaskHandlers(queue *task_queue.Queue, deps *Dependencies) {
	task_queue.HandleTyped(queue, task_queue.TaskSyncUser,
		func(ctx context.Context, p task_queue.SyncUserPayload) error {
			return deps.SyncEngine.SyncUser(ctx, p.Owner)
		})
	task_queue.HandleTyped(queue, task_queue.TaskSyncResume,
		func(ctx context.Context, p task_queue.SyncResumePayload) error {
			return deps.SyncEngine.Resume(ctx, p.Owner)
		})
	task_queue.HandleTyped(queue, task_queue.TaskReconcile,
		func(ctx context.Context, p task_queue.ReconcilePayload) error {
			return deps.Reconciler.Reconcile(ctx, p.Owner, p.Upcoming)
		})
	task_queue.HandleTyped(queue, task_queue.TaskNotifyAdmins,
		func(ctx context.Context, p task_queue.NotifyAdminsPayload) error {
			deps.Notifier.Notify(p.Subject, p.Message)
			return nil
		})
}
