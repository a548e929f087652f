// Package runner executes a workload with a staged virtual-user ramp.
//
// A virtual user (VU) is a goroutine that runs the workload's Iteration in a
// loop until it is told to stop. The runner owns the VU pool and resizes it
// as the run moves through its stages:
//
//	r := runner.New(runner.Options{
//		Stages: []runner.Stage{
//			{Duration: 2 * time.Minute, Target: 100},
//			{Duration: 5 * time.Minute, Target: 100},
//			{Duration: 2 * time.Minute, Target: 0},
//		},
//		Workload: myWorkload,
//		Observer: collector,
//	})
//	result := r.Run(ctx)
//
// # Stages
//
// Within a stage the target VU count moves linearly from the previous
// stage's target (or [Options.StartVUs] for the first stage) to the stage's
// own target, so the pool matches each stage's target at its boundary and
// holds steady when consecutive targets are equal.
//
// # Stopping
//
// Surplus VUs are retired, not killed: they finish the iteration in flight
// and exit. A VU still busy after [Options.GracefulRampDown] has its context
// cancelled. When the last stage ends, every VU gets [Options.GracefulStop]
// to finish before being interrupted. Interrupted iterations are reported
// to the [Observer] separately from completed ones.
//
// Cancelling the context passed to Run interrupts every VU immediately.
//
// # Failures
//
// The error an Iteration returns is an observation, not a control signal:
// the runner counts it and moves on. There are no retries.
package runner
