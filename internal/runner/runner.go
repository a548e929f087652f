package runner

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Result captures execution summary.
type Result struct {
	Iterations  int64         // completed iterations
	Errors      int64         // completed iterations that returned an error
	Interrupted int64         // iterations cut short by a stop or cancellation
	MaxVUs      int           // peak number of running VUs
	Duration    time.Duration // wall time of the whole run including graceful stop
}

// Runner coordinates the VU pool against the stage plan.
type Runner struct {
	opt     Options
	plan    *stagePlan
	limiter *rate.Limiter

	iterations  atomic.Int64
	errs        atomic.Int64
	interrupted atomic.Int64
	running     atomic.Int64
	maxVUs      atomic.Int64
}

func New(opt Options) *Runner {
	opt.normalize()
	r := &Runner{
		opt:  opt,
		plan: compileStagePlan(opt.StartVUs, opt.Stages),
	}
	if opt.MaxRPS > 0 {
		r.limiter = opt.LimiterFactory(opt.MaxRPS)
	}
	return r
}

// PlannedDuration is the sum of all stage durations.
func (r *Runner) PlannedDuration() time.Duration {
	return r.plan.totalDuration()
}

// Run drives the plan to completion or until ctx is cancelled. It always
// returns with every VU stopped.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	log := r.opt.Logger

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := &vuPool{runner: r, ctx: runCtx}

	if r.plan == nil || r.opt.Workload == nil {
		log.Warn("nothing to run", zap.Bool("has_stages", r.plan != nil), zap.Bool("has_workload", r.opt.Workload != nil))
		return r.result(start)
	}

	ticker := time.NewTicker(r.opt.TickInterval)
	defer ticker.Stop()

	currentStage := -1
	for {
		elapsed := time.Since(start)
		target, stage, ok := r.plan.targetAt(elapsed)
		if !ok {
			break
		}
		if stage != currentStage {
			log.Info("stage started",
				zap.Int("stage", stage+1),
				zap.Int("of", len(r.opt.Stages)),
				zap.Duration("duration", r.opt.Stages[stage].Duration),
				zap.Int("target", r.opt.Stages[stage].Target),
			)
			currentStage = stage
		}
		pool.scale(target)
		r.publishVUs()

		select {
		case <-ctx.Done():
			log.Warn("run cancelled, interrupting virtual users", zap.Int("active", pool.size()))
			pool.drain(-1)
			r.publishVUs()
			return r.result(start)
		case <-ticker.C:
		}
	}

	pool.scale(r.plan.finalTarget())
	log.Info("stages complete, waiting for running iterations",
		zap.Int("active", int(r.running.Load())),
		zap.Duration("graceful_stop", r.opt.GracefulStop),
	)
	pool.drain(r.opt.GracefulStop)
	r.publishVUs()
	return r.result(start)
}

func (r *Runner) publishVUs() {
	if r.opt.Observer != nil {
		r.opt.Observer.SetVUs(int(r.running.Load()))
	}
}

func (r *Runner) result(start time.Time) Result {
	return Result{
		Iterations:  r.iterations.Load(),
		Errors:      r.errs.Load(),
		Interrupted: r.interrupted.Load(),
		MaxVUs:      int(r.maxVUs.Load()),
		Duration:    time.Since(start),
	}
}

// vuLoop runs iterations until the VU is retired or its context ends.
func (r *Runner) vuLoop(ctx context.Context, h *vuHandle) {
	defer close(h.done)
	n := r.running.Add(1)
	for {
		peak := r.maxVUs.Load()
		if n <= peak || r.maxVUs.CompareAndSwap(peak, n) {
			break
		}
	}
	defer r.running.Add(-1)

	vu := VU{ID: h.id}
	for {
		select {
		case <-h.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case <-h.stop:
				return
			default:
			}
		}

		began := time.Now()
		err := r.opt.Workload.Iteration(ctx, vu)
		vu.Iteration++

		if ctx.Err() != nil {
			r.interrupted.Add(1)
			if r.opt.Observer != nil {
				r.opt.Observer.RecordInterrupted()
			}
			return
		}

		r.iterations.Add(1)
		if err != nil {
			r.errs.Add(1)
		}
		if r.opt.Observer != nil {
			r.opt.Observer.RecordIteration(time.Since(began), err)
		}
	}
}

type vuHandle struct {
	id     int
	stop   chan struct{} // closed to retire the VU after its current iteration
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *vuHandle) finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// vuPool is owned by the goroutine executing Run.
type vuPool struct {
	runner   *Runner
	ctx      context.Context
	active   []*vuHandle
	retiring []*vuHandle
	nextID   int
}

func (p *vuPool) size() int {
	return len(p.active)
}

func (p *vuPool) scale(target int) {
	p.prune()
	log := p.runner.opt.Logger
	switch {
	case target > len(p.active):
		for len(p.active) < target {
			p.spawn()
		}
		log.Debug("scaled up", zap.Int("vus", len(p.active)))
	case target < len(p.active):
		// Retire the most recently started VUs first.
		for len(p.active) > target {
			last := len(p.active) - 1
			h := p.active[last]
			p.active = p.active[:last]
			p.retire(h, p.runner.opt.GracefulRampDown)
		}
		log.Debug("scaled down", zap.Int("vus", len(p.active)), zap.Int("retiring", len(p.retiring)))
	}
}

func (p *vuPool) spawn() {
	p.nextID++
	vuCtx, cancel := context.WithCancel(p.ctx)
	h := &vuHandle{
		id:     p.nextID,
		stop:   make(chan struct{}),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.active = append(p.active, h)
	go p.runner.vuLoop(vuCtx, h)
}

func (p *vuPool) retire(h *vuHandle, grace time.Duration) {
	close(h.stop)
	p.retiring = append(p.retiring, h)
	if grace < 0 {
		h.cancel()
		return
	}
	go func() {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-h.done:
		case <-timer.C:
			h.cancel()
		}
		// Release the context once the VU is gone.
		<-h.done
		h.cancel()
	}()
}

// prune forgets retired VUs that have exited.
func (p *vuPool) prune() {
	kept := p.retiring[:0]
	for _, h := range p.retiring {
		if !h.finished() {
			kept = append(kept, h)
		}
	}
	p.retiring = kept
}

// drain retires every VU and waits for all of them. VUs still running after
// grace are interrupted; a negative grace interrupts immediately.
func (p *vuPool) drain(grace time.Duration) {
	for _, h := range p.active {
		close(h.stop)
	}
	all := append(p.retiring, p.active...)
	p.active = nil
	p.retiring = nil

	allDone := make(chan struct{})
	go func() {
		for _, h := range all {
			<-h.done
		}
		close(allDone)
	}()

	if grace >= 0 {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-allDone:
			return
		case <-timer.C:
			p.runner.opt.Logger.Warn("graceful stop expired, interrupting iterations", zap.Duration("graceful_stop", grace))
		}
	}
	for _, h := range all {
		h.cancel()
	}
	<-allDone
}
