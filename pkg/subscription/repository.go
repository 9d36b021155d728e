package subscription

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

type Repository interface {
	Get(ctx context.Context, owner string) (*UserSubscription, error)
	Store(ctx context.Context, sub *UserSubscription) error
	List(ctx context.Context) ([]UserSubscription, error)
}

type RepositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

// Get returns the subscription for owner, or nil when none exists.
func (r *RepositoryImpl) Get(ctx context.Context, owner string) (*UserSubscription, error) {
	query := `SELECT owner, email, calendars, update_intervals, upcoming
				FROM user_subscription WHERE owner = $1`

	row := r.db.QueryRowContext(ctx, query, owner)
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		err := fmt.Errorf("failed to load subscription for %s: %w", owner, err)
		log.Error(err)
		return nil, err
	}
	return sub, nil
}

func (r *RepositoryImpl) Store(ctx context.Context, sub *UserSubscription) error {
	calendars, err := json.Marshal(sub.Calendars)
	if err != nil {
		return fmt.Errorf("could not encode calendars: %w", err)
	}
	intervals, err := json.Marshal(sub.UpdateIntervals)
	if err != nil {
		return fmt.Errorf("could not encode update intervals: %w", err)
	}
	upcoming, err := json.Marshal(sub.Upcoming)
	if err != nil {
		return fmt.Errorf("could not encode upcoming: %w", err)
	}

	query := `INSERT INTO user_subscription (owner, email, calendars, update_intervals, upcoming)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (owner) DO UPDATE SET
					email = excluded.email,
					calendars = excluded.calendars,
					update_intervals = excluded.update_intervals,
					upcoming = excluded.upcoming`

	_, err = r.db.ExecContext(ctx, query, sub.Owner, sub.Email, string(calendars), string(intervals), string(upcoming))
	if err != nil {
		err := fmt.Errorf("failed to store subscription for %s: %w", sub.Owner, err)
		log.Error(err)
		return err
	}
	return nil
}

// List returns every subscription. The set is small enough that interval
// filtering happens in memory rather than in dialect-specific JSON SQL.
func (r *RepositoryImpl) List(ctx context.Context) ([]UserSubscription, error) {
	query := `SELECT owner, email, calendars, update_intervals, upcoming
				FROM user_subscription ORDER BY owner`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		err := fmt.Errorf("failed to list subscriptions: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var subs []UserSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			err := fmt.Errorf("failed to scan subscription: %w", err)
			log.Error(err)
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*UserSubscription, error) {
	var sub UserSubscription
	var calendars, intervals, upcoming string
	err := row.Scan(&sub.Owner, &sub.Email, &calendars, &intervals, &upcoming)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(calendars), &sub.Calendars); err != nil {
		return nil, fmt.Errorf("could not decode calendars: %w", err)
	}
	if err := json.Unmarshal([]byte(intervals), &sub.UpdateIntervals); err != nil {
		return nil, fmt.Errorf("could not decode update intervals: %w", err)
	}
	if err := json.Unmarshal([]byte(upcoming), &sub.Upcoming); err != nil {
		return nil, fmt.Errorf("could not decode upcoming: %w", err)
	}
	return &sub, nil
}
