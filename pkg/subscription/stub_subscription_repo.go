package subscription

import (
	"context"
	"fmt"
	"slices"
)

type StubRepository struct {
	Subs      map[string]*UserSubscription
	FailStore bool
}

func NewStubRepository() *StubRepository {
	return &StubRepository{Subs: make(map[string]*UserSubscription)}
}

func (s *StubRepository) Get(_ context.Context, owner string) (*UserSubscription, error) {
	sub, ok := s.Subs[owner]
	if !ok {
		return nil, nil
	}
	copied := *sub
	copied.Calendars = slices.Clone(sub.Calendars)
	copied.UpdateIntervals = slices.Clone(sub.UpdateIntervals)
	copied.Upcoming = slices.Clone(sub.Upcoming)
	return &copied, nil
}

func (s *StubRepository) Store(_ context.Context, sub *UserSubscription) error {
	if s.FailStore {
		return fmt.Errorf("stub store failure")
	}
	copied := *sub
	s.Subs[sub.Owner] = &copied
	return nil
}

func (s *StubRepository) List(_ context.Context) ([]UserSubscription, error) {
	owners := make([]string, 0, len(s.Subs))
	for owner := range s.Subs {
		owners = append(owners, owner)
	}
	slices.Sort(owners)

	subs := make([]UserSubscription, 0, len(owners))
	for _, owner := range owners {
		subs = append(subs, *s.Subs[owner])
	}
	return subs, nil
}

type StubCheckpointRepository struct {
	States    map[string]*ResumeState
	FailStore bool
}

func NewStubCheckpointRepository() *StubCheckpointRepository {
	return &StubCheckpointRepository{States: make(map[string]*ResumeState)}
}

func (s *StubCheckpointRepository) Get(_ context.Context, owner string) (*ResumeState, error) {
	state, ok := s.States[owner]
	if !ok {
		return nil, nil
	}
	copied := *state
	copied.RemainingLinks = slices.Clone(state.RemainingLinks)
	copied.UpcomingSoFar = slices.Clone(state.UpcomingSoFar)
	return &copied, nil
}

func (s *StubCheckpointRepository) Store(_ context.Context, state *ResumeState) error {
	if s.FailStore {
		return fmt.Errorf("stub checkpoint store failure")
	}
	copied := *state
	s.States[state.Owner] = &copied
	return nil
}

func (s *StubCheckpointRepository) Delete(_ context.Context, owner string) error {
	delete(s.States, owner)
	return nil
}
