package worker

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Expirer fails checkout sessions stuck in verification since before the cutoff.
type Expirer interface {
	ExpireStale(ctx context.Context, before time.Time) ([]string, error)
}

// Backoff spaces sweeps out after consecutive ledger failures.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
}

// Delay returns the wait after the given number of consecutive failures (1-based).
func (b Backoff) Delay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	initial := b.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	factor := b.Factor
	if factor <= 0 {
		factor = 2
	}

	d := time.Duration(float64(initial) * math.Pow(factor, float64(failures-1)))
	if b.MaxDelay > 0 && d > b.MaxDelay {
		d = b.MaxDelay
	}
	if d <= 0 {
		d = initial
	}
	return d
}

// Reconciler periodically expires checkouts whose verification never finished,
// e.g. after the gateway died between posting the proof and recording the outcome.
type Reconciler struct {
	expirer        Expirer
	interval       time.Duration
	pendingTimeout time.Duration
	backoff        Backoff
	logger         *zerolog.Logger
	now            func() time.Time
}

func NewReconciler(expirer Expirer, interval, pendingTimeout time.Duration, logger *zerolog.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if pendingTimeout <= 0 {
		pendingTimeout = 15 * time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Reconciler{
		expirer:        expirer,
		interval:       interval,
		pendingTimeout: pendingTimeout,
		backoff:        Backoff{InitialDelay: interval, MaxDelay: 10 * interval, Factor: 2},
		logger:         logger,
		now:            time.Now,
	}
}

// RunOnce performs a single sweep and returns the number of expired sessions.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	expired, err := r.expirer.ExpireStale(ctx, r.now().Add(-r.pendingTimeout))
	if len(expired) > 0 {
		r.logger.Info().Strs("session_ids", expired).Msg("expired stuck verifications")
	}
	return len(expired), err
}

// Start sweeps until ctx is done.
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Dur("pending_timeout", r.pendingTimeout).Msg("reconciler started")
	defer r.logger.Info().Msg("reconciler stopped")

	failures := 0
	wait := r.interval
	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := r.RunOnce(ctx); err != nil {
			failures++
			wait = r.backoff.Delay(failures)
			r.logger.Error().Err(err).Int("failures", failures).Dur("next_in", wait).Msg("reconcile sweep failed")
			continue
		}
		failures = 0
		wait = r.interval
	}
}
