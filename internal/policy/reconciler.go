// AngelaMos | 2026
// reconciler.go

package policy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/carterperez-dev/insurance-backend/internal/config"
	"github.com/carterperez-dev/insurance-backend/internal/core"
)

const reconcileLockKey = "lock:policy:reconcile"

var (
	reconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insurance",
		Subsystem: "policy",
		Name:      "reconcile_runs_total",
		Help:      "Reconciliation passes by outcome.",
	}, []string{"outcome"})

	reconcileUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "insurance",
		Subsystem: "policy",
		Name:      "reconcile_updated_total",
		Help:      "Policies whose stored status was corrected.",
	})
)

// Reconciler periodically persists date-derived policy statuses. Only one
// replica runs a pass at a time.
type Reconciler struct {
	svc      *Service
	locker   core.Locker
	interval time.Duration
	lockTTL  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewReconciler(
	svc *Service,
	locker core.Locker,
	cfg config.ReconcileConfig,
	logger *slog.Logger,
) *Reconciler {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &Reconciler{
		svc:      svc,
		locker:   locker,
		interval: cfg.Interval,
		lockTTL:  ttl,
		now:      time.Now,
		logger:   logger.With("job", "policy_reconcile"),
	}
}

// Run performs a pass immediately and then once per interval until ctx
// is done.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("reconciler started", "interval", r.interval)

	//nolint:errcheck // outcome is logged and counted inside RunOnce
	_, _ = r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			//nolint:errcheck // outcome is logged and counted inside RunOnce
			_, _ = r.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single pass under the distributed lock. A pass that
// finds the lock taken is skipped and reports zero updates.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	release, err := r.locker.Acquire(ctx, reconcileLockKey, r.lockTTL)
	if errors.Is(err, core.ErrLockHeld) {
		reconcileRuns.WithLabelValues("skipped").Inc()
		r.logger.Debug("reconcile pass skipped, lock held elsewhere")
		return 0, nil
	}
	if err != nil {
		reconcileRuns.WithLabelValues("error").Inc()
		r.logger.Error("reconcile lock failed", "error", err)
		return 0, err
	}
	defer release()

	start := time.Now()
	updated, err := r.svc.ReconcileAllStatuses(ctx, r.now())
	if err != nil {
		reconcileRuns.WithLabelValues("error").Inc()
		r.logger.Error("reconcile pass failed",
			"updated", updated,
			"error", err,
		)
		return updated, err
	}

	reconcileRuns.WithLabelValues("ok").Inc()
	reconcileUpdated.Add(float64(updated))
	r.logger.Info("reconcile pass finished",
		"updated", updated,
		"duration", time.Since(start),
	)

	return updated, nil
}
