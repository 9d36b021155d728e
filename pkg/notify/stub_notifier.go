package notify

// StubNotifier records notifications for assertions in tests.
type StubNotifier struct {
	Subjects []string
	Messages []string
}

func (s *StubNotifier) Notify(subject, message string) {
	s.Subjects = append(s.Subjects, subject)
	s.Messages = append(s.Messages, message)
}

func (s *StubNotifier) Cleanup() {
	s.Subjects = nil
	s.Messages = nil
}
