package runner

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultGracefulRampDown = 30 * time.Second
	defaultGracefulStop     = 30 * time.Second
	defaultTickInterval     = 100 * time.Millisecond
)

// VU identifies the virtual user running an iteration.
type VU struct {
	ID        int   // 1-based, stable for the VU's lifetime
	Iteration int64 // 0-based count of iterations this VU has started
}

// Workload is one unit of virtual-user work. Iteration must honour ctx: the
// runner cancels it to interrupt the VU.
type Workload interface {
	Iteration(ctx context.Context, vu VU) error
}

// WorkloadFunc adapts a function to the Workload interface.
type WorkloadFunc func(ctx context.Context, vu VU) error

func (f WorkloadFunc) Iteration(ctx context.Context, vu VU) error { return f(ctx, vu) }

// Observer receives the runner's own measurements.
type Observer interface {
	RecordIteration(duration time.Duration, err error)
	RecordInterrupted()
	SetVUs(active int)
}

// Stage is a time-bounded segment of the run with a target VU count.
type Stage struct {
	Duration time.Duration
	Target   int
}

// Options configure the Runner.
type Options struct {
	Stages           []Stage
	StartVUs         int           // VUs at the start of the first stage
	GracefulRampDown time.Duration // grace for VUs retired by a ramp-down (0 uses the default, <0 interrupts immediately)
	GracefulStop     time.Duration // grace for VUs still running when the plan ends (same conventions)
	MaxRPS           int           // global cap on iteration starts per second (0 means unlimited)
	Workload         Workload      // required
	Observer         Observer      // optional
	Logger           *zap.Logger   // optional

	TickInterval   time.Duration               // how often the pool is resized; tests shorten it
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.StartVUs < 0 {
		o.StartVUs = 0
	}
	if o.GracefulRampDown == 0 {
		o.GracefulRampDown = defaultGracefulRampDown
	}
	if o.GracefulStop == 0 {
		o.GracefulStop = defaultGracefulStop
	}
	if o.MaxRPS < 0 {
		o.MaxRPS = 0
	}
	if o.TickInterval <= 0 {
		o.TickInterval = defaultTickInterval
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			// Burst equal to rps to smooth pacing across VUs.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}
