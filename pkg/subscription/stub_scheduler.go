package subscription

import (
	"fmt"

	"github.com/percal/percal/internal/task_queue"
)

type ScheduledTask struct {
	Type    task_queue.TaskType
	Payload any
}

// StubScheduler records enqueued tasks instead of running them.
type StubScheduler struct {
	Tasks []ScheduledTask
	Fail  bool
}

func (s *StubScheduler) Enqueue(taskType task_queue.TaskType, payload any) error {
	if s.Fail {
		return fmt.Errorf("stub scheduler failure")
	}
	s.Tasks = append(s.Tasks, ScheduledTask{Type: taskType, Payload: payload})
	return nil
}

func (s *StubScheduler) TasksOfType(taskType task_queue.TaskType) []ScheduledTask {
	var out []ScheduledTask
	for _, task := range s.Tasks {
		if task.Type == taskType {
			out = append(out, task)
		}
	}
	return out
}
