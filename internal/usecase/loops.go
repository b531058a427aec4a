package usecase

import (
	"context"
	"sync"
	"time"

	domrepo "MarketPulse/internal/domain/repository"
	applogger "MarketPulse/pkg/logger"
)

// Loop is one periodic unit of work. Run does a single pass; errors
// are retried with backoff rather than killing the process.
type Loop struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner drives the independent loops. Each loop is isolated: one
// failing loop backs off exponentially on its own while the others
// keep their cadence.
type Runner struct {
	loops      []Loop
	backoffMax time.Duration
	l          *applogger.Logger
	wg         sync.WaitGroup
	cancel     context.CancelFunc
}

func NewRunner(l *applogger.Logger, backoffMax time.Duration, loops ...Loop) *Runner {
	if backoffMax <= 0 {
		backoffMax = 5 * time.Minute
	}
	return &Runner{loops: loops, backoffMax: backoffMax, l: l}
}

// Start launches all loops. Each runs its first pass immediately.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	for _, loop := range r.loops {
		r.wg.Add(1)
		go r.run(ctx, loop)
	}
}

// Stop cancels the loops and waits for in-flight passes to finish.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, loop Loop) {
	defer r.wg.Done()
	r.l.Info("loop started",
		applogger.String("loop", loop.Name),
		applogger.Duration("interval", loop.Interval),
	)

	backoff := time.Duration(0)
	for {
		start := time.Now()
		err := loop.Run(ctx)
		if ctx.Err() != nil {
			r.l.Info("loop stopped", applogger.String("loop", loop.Name))
			return
		}
		if err != nil {
			backoff = nextBackoff(backoff, loop.Interval, r.backoffMax)
			fields := []applogger.Field{
				applogger.Error(err),
				applogger.String("loop", loop.Name),
				applogger.Duration("backoff", backoff),
			}
			if domrepo.IsTransient(err) {
				r.l.Warn("loop pass failed, will retry", fields...)
			} else {
				r.l.Error("loop pass failed", fields...)
			}
		} else {
			if backoff > 0 {
				r.l.Info("loop recovered", applogger.String("loop", loop.Name))
			}
			backoff = 0
			r.l.Debug("loop pass ok",
				applogger.String("loop", loop.Name),
				applogger.Duration("took", time.Since(start)),
			)
		}

		wait := loop.Interval
		if backoff > wait {
			wait = backoff
		}
		select {
		case <-ctx.Done():
			r.l.Info("loop stopped", applogger.String("loop", loop.Name))
			return
		case <-time.After(wait):
		}
	}
}

func nextBackoff(cur, base, max time.Duration) time.Duration {
	if cur <= 0 {
		if base > 0 {
			cur = base
		} else {
			cur = time.Second
		}
		return cur
	}
	cur *= 2
	if cur > max {
		cur = max
	}
	return cur
}
