package event

import (
	"context"
	"sort"
)

// StubRepository is an in-memory Repository for tests.
type StubRepository struct {
	Events    map[string]Event
	FailStore bool
}

func NewStubRepository() *StubRepository {
	return &StubRepository{Events: make(map[string]Event)}
}

func (s *StubRepository) Get(ctx context.Context, uid string) (*Event, error) {
	ev, ok := s.Events[uid]
	if !ok {
		return nil, nil
	}
	copied := ev
	return &copied, nil
}

func (s *StubRepository) Store(ctx context.Context, event *Event) error {
	if s.FailStore {
		return errFailStore
	}
	s.Events[event.UID] = *event
	return nil
}

func (s *StubRepository) Delete(ctx context.Context, uid string) error {
	delete(s.Events, uid)
	return nil
}

func (s *StubRepository) FindEndingBefore(ctx context.Context, endDate string) ([]Event, error) {
	var out []Event
	for _, ev := range s.Events {
		if ev.EndDate() < endDate {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}
