package sweep

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// Runner wakes on a fixed interval and, while its toggle is enabled, runs
// a notifying sweep. The toggle is flipped from the interactive menu; the
// runner keeps ticking while disabled so enabling takes effect on the next
// wake-up.
type Runner struct {
	controller *Controller
	interval   time.Duration
	enabled    atomic.Bool
	log        *slog.Logger
}

// NewRunner builds a periodic runner around a controller. The toggle
// starts disabled.
func NewRunner(controller *Controller, interval time.Duration, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		controller: controller,
		interval:   interval,
		log:        log.With("component", "sweep-runner"),
	}
}

// SetEnabled flips the auto-update toggle.
func (r *Runner) SetEnabled(enabled bool) {
	r.enabled.Store(enabled)
	r.log.Info("automatic updates toggled", "enabled", enabled)
}

// Enabled reports the toggle state.
func (r *Runner) Enabled() bool {
	return r.enabled.Load()
}

// Toggle flips the toggle and returns the new state.
func (r *Runner) Toggle() bool {
	next := !r.enabled.Load()
	r.SetEnabled(next)
	return next
}

// Run blocks until ctx is canceled, sweeping with notifications on every
// tick while the toggle is enabled. Sweep failures are logged, never fatal.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !r.enabled.Load() {
				r.log.Debug("tick skipped, automatic updates disabled")
				continue
			}
			if err := r.controller.Sweep(ctx, true); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.log.Error("automatic sweep failed", "error", err)
			}
		}
	}
}
