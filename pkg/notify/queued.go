package notify

import (
	"github.com/percal/percal/internal/task_queue"
	log "github.com/sirupsen/logrus"
)

// Scheduler is the slice of the task queue the notifier needs.
type Scheduler interface {
	Enqueue(taskType task_queue.TaskType, payload any) error
}

// QueuedNotifier hands notifications to the task queue, where the
// registered handler delivers them. Delivery runs on the queue worker,
// never on the caller's goroutine. A rejected enqueue drops the
// notification with an error log, matching the fire-and-forget contract.
type QueuedNotifier struct {
	queue Scheduler
}

func NewQueuedNotifier(queue Scheduler) *QueuedNotifier {
	return &QueuedNotifier{queue: queue}
}

func (n *QueuedNotifier) Notify(subject, message string) {
	err := n.queue.Enqueue(task_queue.TaskNotifyAdmins, task_queue.NotifyAdminsPayload{
		Subject: subject,
		Message: message,
	})
	if err != nil {
		log.Errorf("task queue rejected admin notification %q: %v", subject, err)
	}
}
