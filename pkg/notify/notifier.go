package notify

// Notifier delivers operational messages to the project admins. Failures
// are an operator concern, not a user-facing one, so every caller treats
// delivery as fire-and-forget.
type Notifier interface {
	Notify(subject, message string)
}
