package notify

import (
	"errors"
	"testing"

	"github.com/percal/percal/internal/task_queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingScheduler struct {
	types    []task_queue.TaskType
	payloads []any
	fail     bool
}

func (s *recordingScheduler) Enqueue(taskType task_queue.TaskType, payload any) error {
	if s.fail {
		return errors.New("task queue full")
	}
	s.types = append(s.types, taskType)
	s.payloads = append(s.payloads, payload)
	return nil
}

func TestQueuedNotifier(t *testing.T) {
	t.Run("enqueues an admin notification task", func(t *testing.T) {
		// given
		scheduler := &recordingScheduler{}
		notifier := NewQueuedNotifier(scheduler)

		// when
		notifier.Notify("Sync aborted", "details")

		// then
		require.Len(t, scheduler.types, 1)
		assert.Equal(t, task_queue.TaskNotifyAdmins, scheduler.types[0])
		assert.Equal(t, task_queue.NotifyAdminsPayload{
			Subject: "Sync aborted",
			Message: "details",
		}, scheduler.payloads[0])
	})

	t.Run("a rejected enqueue drops the notification", func(t *testing.T) {
		// given
		scheduler := &recordingScheduler{fail: true}
		notifier := NewQueuedNotifier(scheduler)

		// when
		notifier.Notify("Sync aborted", "details")

		// then
		assert.Empty(t, scheduler.types)
	})
}
