package event

import (
	"context"
	"fmt"
	"time"

	"github.com/percal/percal/internal/utils"
	"github.com/percal/percal/pkg/notify"
	log "github.com/sirupsen/logrus"
)

const (
	retentionMonths = 3
	// maxReferenceSkew guards against a misconfigured caller handing in a
	// stale reference date and wiping recent data.
	maxReferenceSkew = 48 * time.Hour
)

// CleanupService deletes events that ended long enough ago that no feed
// will reference them again. It also backstops reconciliations whose
// remote delete failed.
type CleanupService struct {
	repo     Repository
	notifier notify.Notifier
	clock    utils.Clock
}

func NewCleanupService(repo Repository, notifier notify.Notifier, clock utils.Clock) *CleanupService {
	return &CleanupService{repo: repo, notifier: notifier, clock: clock}
}

// RemoveExpired deletes every event whose end date is more than three
// months before reference. A reference more than two days away from the
// actual current time is refused: nothing is deleted and admins are
// alerted.
func (s *CleanupService) RemoveExpired(ctx context.Context, gw Gateway, reference time.Time) (int, error) {
	now := s.clock.Now()
	skew := now.Sub(reference)
	if skew < 0 {
		skew = -skew
	}
	if skew > maxReferenceSkew {
		msg := fmt.Sprintf("cleanup reference date %s is %s away from current time %s, refusing to delete",
			reference.Format("2006-01-02"), skew, now.Format("2006-01-02"))
		log.Error(msg)
		s.notifier.Notify("Cleanup aborted", msg)
		return 0, fmt.Errorf("stale cleanup reference date")
	}

	cutoff := reference.UTC().AddDate(0, -retentionMonths, 0).Format("2006-01-02")
	expired, err := s.repo.FindEndingBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, ev := range expired {
		if ev.RemoteID != "" {
			if err := gw.Delete(ctx, ev.RemoteID); err != nil {
				// Keep the local record so the next sweep retries.
				log.Errorf("failed to delete expired event %s remotely: %v", ev.UID, err)
				continue
			}
		}
		if err := s.repo.Delete(ctx, ev.UID); err != nil {
			continue
		}
		deleted++
	}

	log.Infof("cleanup removed %d of %d expired events (cutoff %s)", deleted, len(expired), cutoff)
	return deleted, nil
}
