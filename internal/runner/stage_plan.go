package runner

import (
	"math"
	"time"
)

type stagePlan struct {
	segments  []stageSegment
	duration  time.Duration
	maxTarget int
	final     int
}

type stageSegment struct {
	index    int // position in the original stage list
	start    time.Duration
	duration time.Duration
	from     int
	to       int
}

// compileStagePlan turns stages into absolute segments. A zero-length stage
// produces no segment but still moves the starting point of the next one.
func compileStagePlan(startVUs int, stages []Stage) *stagePlan {
	if len(stages) == 0 {
		return nil
	}

	plan := &stagePlan{maxTarget: clampTarget(startVUs)}
	from := clampTarget(startVUs)
	var offset time.Duration
	for i, stage := range stages {
		to := clampTarget(stage.Target)
		if stage.Duration > 0 {
			plan.segments = append(plan.segments, stageSegment{
				index:    i,
				start:    offset,
				duration: stage.Duration,
				from:     from,
				to:       to,
			})
			offset += stage.Duration
		}
		if to > plan.maxTarget {
			plan.maxTarget = to
		}
		from = to
	}

	if len(plan.segments) == 0 {
		return nil
	}
	plan.duration = offset
	plan.final = from
	return plan
}

// targetAt returns the VU target at elapsed and the index of the active
// stage. ok is false once the plan has ended.
func (p *stagePlan) targetAt(elapsed time.Duration) (target int, stage int, ok bool) {
	if p == nil || len(p.segments) == 0 {
		return 0, -1, false
	}
	if elapsed < 0 {
		elapsed = 0
	}
	for _, seg := range p.segments {
		end := seg.start + seg.duration
		if elapsed < seg.start || elapsed >= end {
			continue
		}
		if seg.from == seg.to {
			return seg.to, seg.index, true
		}
		progress := float64(elapsed-seg.start) / float64(seg.duration)
		value := float64(seg.from) + float64(seg.to-seg.from)*progress
		return clampTarget(int(math.Round(value))), seg.index, true
	}
	return 0, -1, false
}

// finalTarget is the target of the last stage.
func (p *stagePlan) finalTarget() int {
	if p == nil {
		return 0
	}
	return p.final
}

func (p *stagePlan) totalDuration() time.Duration {
	if p == nil {
		return 0
	}
	return p.duration
}

func clampTarget(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
