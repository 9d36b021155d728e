package event

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/percal/percal/pkg/timeutil"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	Get(ctx context.Context, uid string) (*Event, error)
	Store(ctx context.Context, event *Event) error
	Delete(ctx context.Context, uid string) error
	FindEndingBefore(ctx context.Context, endDate string) ([]Event, error)
}

type RepositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

// Get returns the stored event for uid, or nil when none exists.
func (r *RepositoryImpl) Get(ctx context.Context, uid string) (*Event, error) {
	query := `SELECT uid, summary, location, description, start_kind, start_value, end_kind, end_value,
				attendees, remote_id, sequence FROM events WHERE uid = $1`

	row := r.db.QueryRowContext(ctx, query, uid)
	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		err := fmt.Errorf("failed to load event %s: %w", uid, err)
		log.Error(err)
		return nil, err
	}
	return ev, nil
}

// Store inserts or replaces the event row for event.UID.
func (r *RepositoryImpl) Store(ctx context.Context, event *Event) error {
	attendees, err := json.Marshal(event.Attendees)
	if err != nil {
		return fmt.Errorf("could not encode attendees: %w", err)
	}

	query := `INSERT INTO events (uid, summary, location, description, start_kind, start_value,
				end_kind, end_value, end_date, attendees, remote_id, sequence)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				ON CONFLICT (uid) DO UPDATE SET
					summary = excluded.summary,
					location = excluded.location,
					description = excluded.description,
					start_kind = excluded.start_kind,
					start_value = excluded.start_value,
					end_kind = excluded.end_kind,
					end_value = excluded.end_value,
					end_date = excluded.end_date,
					attendees = excluded.attendees,
					remote_id = excluded.remote_id,
					sequence = excluded.sequence`

	_, err = r.db.ExecContext(ctx, query,
		event.UID,
		event.Summary,
		event.Location,
		event.Description,
		string(event.Start.Kind),
		event.Start.Value,
		string(event.End.Kind),
		event.End.Value,
		event.EndDate(),
		string(attendees),
		event.RemoteID,
		event.Sequence,
	)
	if err != nil {
		err := fmt.Errorf("failed to store event %s: %w", event.UID, err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, uid string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE uid = $1", uid)
	if err != nil {
		err := fmt.Errorf("failed to delete event %s: %w", uid, err)
		log.Error(err)
		return err
	}
	return nil
}

// FindEndingBefore returns all events whose end date is strictly before
// endDate ("2006-01-02"). String comparison is safe for this format.
func (r *RepositoryImpl) FindEndingBefore(ctx context.Context, endDate string) ([]Event, error) {
	query := `SELECT uid, summary, location, description, start_kind, start_value, end_kind, end_value,
				attendees, remote_id, sequence FROM events WHERE end_date < $1`

	rows, err := r.db.QueryContext(ctx, query, endDate)
	if err != nil {
		err := fmt.Errorf("failed to query expired events: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			err := fmt.Errorf("failed to scan expired event: %w", err)
			log.Error(err)
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var ev Event
	var startKind, endKind, attendees string
	err := row.Scan(&ev.UID, &ev.Summary, &ev.Location, &ev.Description,
		&startKind, &ev.Start.Value, &endKind, &ev.End.Value,
		&attendees, &ev.RemoteID, &ev.Sequence)
	if err != nil {
		return nil, err
	}
	ev.Start.Kind = timeutil.Kind(startKind)
	ev.End.Kind = timeutil.Kind(endKind)
	if err := json.Unmarshal([]byte(attendees), &ev.Attendees); err != nil {
		return nil, fmt.Errorf("could not decode attendees: %w", err)
	}
	return &ev, nil
}
