package election

import (
	"time"

	"github.com/ovaphlow/pitchfork/service-election/internal/election/entity"
)

// ResolveStatus derives the effective status of an election. Completed and
// Cancelled are kept as stored; Planned and Active follow the [start, end]
// window, both bounds inclusive.
func ResolveStatus(stored entity.Status, start, end, now time.Time) entity.Status {
	if stored.Terminal() {
		return stored
	}
	switch {
	case now.Before(start):
		return entity.StatusPlanned
	case now.After(end):
		return entity.StatusCompleted
	default:
		return entity.StatusActive
	}
}

// Effective is ResolveStatus applied to e.
func Effective(e *entity.Election, now time.Time) entity.Status {
	return ResolveStatus(e.Status, e.StartDate, e.EndDate, now)
}
