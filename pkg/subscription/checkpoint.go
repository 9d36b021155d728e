package subscription

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// ResumeState is the durable checkpoint of a sync that ran out of its
// invocation budget. A resume task picks it up and continues where the
// previous invocation stopped.
type ResumeState struct {
	Owner string
	// RemainingLinks are the feed links not yet fully processed; the
	// first one is the link that was in flight when the budget ran out.
	RemainingLinks []string
	// UpcomingSoFar accumulates upcoming UIDs across invocations.
	UpcomingSoFar []string
	// LastUID is the last item processed within the first remaining
	// link. Empty means start that link from the top.
	LastUID string
}

type CheckpointRepository interface {
	Get(ctx context.Context, owner string) (*ResumeState, error)
	Store(ctx context.Context, state *ResumeState) error
	Delete(ctx context.Context, owner string) error
}

type CheckpointRepositoryImpl struct {
	db *sql.DB
}

func NewCheckpointRepository(db *sql.DB) *CheckpointRepositoryImpl {
	return &CheckpointRepositoryImpl{db: db}
}

// Get returns the checkpoint for owner, or nil when none exists.
func (r *CheckpointRepositoryImpl) Get(ctx context.Context, owner string) (*ResumeState, error) {
	query := `SELECT owner, remaining_links, upcoming_so_far, last_uid
				FROM sync_checkpoint WHERE owner = $1`

	var state ResumeState
	var remaining, upcoming string
	err := r.db.QueryRowContext(ctx, query, owner).
		Scan(&state.Owner, &remaining, &upcoming, &state.LastUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		err := fmt.Errorf("failed to load sync checkpoint for %s: %w", owner, err)
		log.Error(err)
		return nil, err
	}
	if err := json.Unmarshal([]byte(remaining), &state.RemainingLinks); err != nil {
		return nil, fmt.Errorf("could not decode remaining links: %w", err)
	}
	if err := json.Unmarshal([]byte(upcoming), &state.UpcomingSoFar); err != nil {
		return nil, fmt.Errorf("could not decode upcoming: %w", err)
	}
	return &state, nil
}

func (r *CheckpointRepositoryImpl) Store(ctx context.Context, state *ResumeState) error {
	remaining, err := json.Marshal(state.RemainingLinks)
	if err != nil {
		return fmt.Errorf("could not encode remaining links: %w", err)
	}
	upcoming, err := json.Marshal(state.UpcomingSoFar)
	if err != nil {
		return fmt.Errorf("could not encode upcoming: %w", err)
	}

	query := `INSERT INTO sync_checkpoint (owner, remaining_links, upcoming_so_far, last_uid, created_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (owner) DO UPDATE SET
					remaining_links = excluded.remaining_links,
					upcoming_so_far = excluded.upcoming_so_far,
					last_uid = excluded.last_uid,
					created_at = excluded.created_at`

	_, err = r.db.ExecContext(ctx, query,
		state.Owner, string(remaining), string(upcoming), state.LastUID, time.Now().Unix())
	if err != nil {
		err := fmt.Errorf("failed to store sync checkpoint for %s: %w", state.Owner, err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *CheckpointRepositoryImpl) Delete(ctx context.Context, owner string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sync_checkpoint WHERE owner = $1", owner)
	if err != nil {
		err := fmt.Errorf("failed to delete sync checkpoint for %s: %w", owner, err)
		log.Error(err)
		return err
	}
	return nil
}
