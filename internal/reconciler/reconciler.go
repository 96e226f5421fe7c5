// Package reconciler periodically re-drives notifications stranded by
// crashes: pending records that never got scheduled, due scheduled
// records whose task went missing, and processing records whose worker
// died.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

type sweeper interface {
	RequeueStuck(ctx context.Context, strategy retry.Strategy) (int, error)
}

// Reconciler runs the reconciliation sweep on a fixed interval.
type Reconciler struct {
	engine   *cron.Cron
	service  sweeper
	strategy retry.Strategy
	timeout  time.Duration
}

// New builds a reconciler sweeping every interval. Each sweep gets its
// own deadline so a slow database cannot pile sweeps on top of each
// other.
func New(svc sweeper, strategy retry.Strategy, interval, timeout time.Duration) (*Reconciler, error) {
	r := &Reconciler{
		engine:   cron.New(),
		service:  svc,
		strategy: strategy,
		timeout:  timeout,
	}

	spec := fmt.Sprintf("@every %s", interval)
	if _, err := r.engine.AddFunc(spec, r.sweep); err != nil {
		return nil, fmt.Errorf("add sweep job: %w", err)
	}

	return r, nil
}

// Start launches the sweep schedule in its own goroutine.
func (r *Reconciler) Start() {
	r.engine.Start()
	zlog.Logger.Info().Dur("timeout", r.timeout).Msg("reconciler started")
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (r *Reconciler) Stop() {
	<-r.engine.Stop().Done()
	zlog.Logger.Info().Msg("reconciler stopped")
}

func (r *Reconciler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if _, err := r.service.RequeueStuck(ctx, r.strategy); err != nil {
		zlog.Logger.Error().Err(err).Msg("reconciliation sweep failed")
	}
}
