package task_queue

const (
	// TaskSyncUser starts a fresh subscription sync for one user.
	TaskSyncUser TaskType = "sync.user"
	// TaskSyncResume continues a checkpointed sync for one user.
	TaskSyncResume TaskType = "sync.resume"
	// TaskReconcile reconciles a user's upcoming set after a full sync.
	TaskReconcile TaskType = "sync.reconcile"
	// TaskNotifyAdmins emails the admin recipients.
	TaskNotifyAdmins TaskType = "notify.admins"
)

type SyncUserPayload struct {
	Owner string
}

type SyncResumePayload struct {
	Owner string
}

type ReconcilePayload struct {
	Owner    string
	Upcoming []string
}

type NotifyAdminsPayload struct {
	Subject string
	Message string
}
