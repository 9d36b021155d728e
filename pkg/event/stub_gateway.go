package event

import (
	"context"
	"fmt"
	"strconv"
)

var (
	errFailStore   = fmt.Errorf("stub repository store failure")
	errGatewayDown = fmt.Errorf("stub gateway failure")
)

// StubGateway simulates the remote calendar. It keeps remote resources in
// memory, counts calls per operation, and can be switched to fail any of
// them.
type StubGateway struct {
	Remote map[string]*RemoteEvent

	Inserts int
	Updates int
	Deletes int
	Gets    int

	FailInsert bool
	FailUpdate bool
	FailDelete bool
	FailGet    bool

	nextID int
}

func NewStubGateway() *StubGateway {
	return &StubGateway{Remote: make(map[string]*RemoteEvent)}
}

func (g *StubGateway) Insert(ctx context.Context, body EventBody) (*RemoteEvent, error) {
	g.Inserts++
	if g.FailInsert {
		return nil, errGatewayDown
	}
	g.nextID++
	re := &RemoteEvent{
		ID:        "remote-" + strconv.Itoa(g.nextID),
		Sequence:  0,
		Attendees: append([]string(nil), body.Attendees...),
	}
	g.Remote[re.ID] = re
	return re, nil
}

func (g *StubGateway) Update(ctx context.Context, remoteID string, body EventBody) (*RemoteEvent, error) {
	g.Updates++
	if g.FailUpdate {
		return nil, errGatewayDown
	}
	existing, ok := g.Remote[remoteID]
	if !ok {
		return nil, fmt.Errorf("stub gateway: unknown remote id %s", remoteID)
	}
	existing.Sequence++
	existing.Attendees = append([]string(nil), body.Attendees...)
	copied := *existing
	return &copied, nil
}

func (g *StubGateway) Delete(ctx context.Context, remoteID string) error {
	g.Deletes++
	if g.FailDelete {
		return errGatewayDown
	}
	delete(g.Remote, remoteID)
	return nil
}

func (g *StubGateway) Get(ctx context.Context, remoteID string) (*RemoteEvent, error) {
	g.Gets++
	if g.FailGet {
		return nil, errGatewayDown
	}
	existing, ok := g.Remote[remoteID]
	if !ok {
		return nil, fmt.Errorf("stub gateway: unknown remote id %s", remoteID)
	}
	copied := *existing
	return &copied, nil
}
