package worker

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-lifecycle/internal/config"
	"github.com/stemsi/exstem-lifecycle/internal/service"
)

// ExpiredFinalizer closes sessions whose deadline has passed.
type ExpiredFinalizer interface {
	FinalizeExpired(ctx context.Context) (service.SweepReport, error)
}

// SweepLocker guards a sweep across replicas. ok is false while another
// holder has the lock.
type SweepLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// FinalizerWorker runs the auto-finalize sweep on a fixed interval. A session
// is finalized at most one interval after its deadline; failed sessions are
// retried on the following sweep.
type FinalizerWorker struct {
	finalizer ExpiredFinalizer
	locker    SweepLocker
	clock     clockwork.Clock
	interval  time.Duration
	log       zerolog.Logger
}

// NewFinalizerWorker creates a new FinalizerWorker. locker may be nil.
func NewFinalizerWorker(finalizer ExpiredFinalizer, locker SweepLocker, clock clockwork.Clock, interval time.Duration, log zerolog.Logger) *FinalizerWorker {
	return &FinalizerWorker{
		finalizer: finalizer,
		locker:    locker,
		clock:     clock,
		interval:  interval,
		log:       log.With().Str("component", config.WorkerKey.SessionFinalizer).Logger(),
	}
}

// Start sweeps every interval until ctx is cancelled.
func (w *FinalizerWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("FinalizerWorker started")

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("FinalizerWorker stopping")
			return
		case <-ticker.Chan():
			_, _ = w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. When another replica holds the sweep lock
// it returns an empty report without sweeping.
func (w *FinalizerWorker) RunOnce(ctx context.Context) (service.SweepReport, error) {
	if w.locker != nil {
		release, ok, err := w.locker.TryLock(ctx, config.WorkerKey.FinalizerLock, w.interval)
		switch {
		case err != nil:
			// Sweeping twice is safe; skipping because Redis is down is not.
			w.log.Warn().Err(err).Msg("Sweep lock unavailable, sweeping anyway")
		case !ok:
			w.log.Debug().Msg("Sweep lock held elsewhere, skipping")
			return service.SweepReport{}, nil
		default:
			defer release()
		}
	}

	report, err := w.finalizer.FinalizeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).
				Int("scanned", report.Scanned).
				Int("finalized", report.Finalized).
				Int("failed", report.Failed).
				Msg("Sweep finished with failures")
		}
		return report, err
	}

	if report.Scanned > 0 {
		w.log.Info().
			Int("scanned", report.Scanned).
			Int("finalized", report.Finalized).
			Int("skipped", report.Skipped).
			Msg("Sweep finished")
	}
	return report, nil
}
