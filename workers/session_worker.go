package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultSweepBatch = 200

type idleSessionStore interface {
	ListIdleSessionIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	TerminateIdleSession(ctx context.Context, id string, cutoff, now time.Time) (bool, error)
}

// SessionWorker terminates open sessions whose guests stopped writing.
type SessionWorker struct {
	store       idleSessionStore
	idleTimeout time.Duration
	interval    time.Duration
	batch       int
	now         func() time.Time
}

func NewSessionWorker(store idleSessionStore, idleTimeout, interval time.Duration) *SessionWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SessionWorker{
		store:       store,
		idleTimeout: idleTimeout,
		interval:    interval,
		batch:       defaultSweepBatch,
		now:         time.Now,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (w *SessionWorker) Run(ctx context.Context) {
	log.Info().Dur("idle_timeout", w.idleTimeout).Dur("interval", w.interval).Msg("session worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("session worker stopped")
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("session sweep failed")
			}
		}
	}
}

// Sweep terminates one batch of idle sessions and returns how many it closed.
// A session touched between listing and termination is left open.
func (w *SessionWorker) Sweep(ctx context.Context) (int, error) {
	now := w.now()
	cutoff := now.Add(-w.idleTimeout)
	ids, err := w.store.ListIdleSessionIDs(ctx, cutoff, w.batch)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, id := range ids {
		ok, err := w.store.TerminateIdleSession(ctx, id, cutoff, now)
		if err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("failed to terminate idle session")
			continue
		}
		if ok {
			closed++
		}
	}
	if closed > 0 {
		log.Info().Int("count", closed).Msg("terminated idle sessions")
	}
	return closed, nil
}
