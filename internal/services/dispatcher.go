package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"technician-dispatch-service/internal/domain"
)

// ErrSuperseded is returned to a recompute whose technician-day was edited
// again before it finished. The later request's snapshot is authoritative;
// the superseded caller should discard its result.
var ErrSuperseded = errors.New("recompute superseded by a later edit")

type inflightRun struct {
	cancel context.CancelFunc
}

// RecomputeDispatcher serializes recomputes per technician-day while letting
// different technician-days run in parallel. A second submission for the
// same key cancels the in-flight one (last write wins at technician-day
// granularity) rather than merging.
type RecomputeDispatcher struct {
	mu       sync.Mutex
	inflight map[string]*inflightRun
}

func NewRecomputeDispatcher() *RecomputeDispatcher {
	return &RecomputeDispatcher{inflight: make(map[string]*inflightRun)}
}

func dayKey(technicianID int, date string) string {
	return fmt.Sprintf("%d|%s", technicianID, date)
}

// Run executes fn for one technician-day, superseding any recompute already
// in flight for that key. When fn observes its context cancelled because a
// later edit arrived, Run reports ErrSuperseded.
func (d *RecomputeDispatcher) Run(
	ctx context.Context,
	technicianID int,
	date string,
	fn func(context.Context) (*domain.ScheduleSnapshot, error),
) (*domain.ScheduleSnapshot, error) {
	key := dayKey(technicianID, date)

	runCtx, cancel := context.WithCancel(ctx)
	me := &inflightRun{cancel: cancel}

	d.mu.Lock()
	if prev, ok := d.inflight[key]; ok {
		prev.cancel()
	}
	d.inflight[key] = me
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		// Only clear the slot if it is still ours; a later run may have
		// replaced it already.
		if d.inflight[key] == me {
			delete(d.inflight, key)
		}
		d.mu.Unlock()
		cancel()
	}()

	snap, err := fn(runCtx)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return nil, ErrSuperseded
		}
		return nil, err
	}
	return snap, nil
}
