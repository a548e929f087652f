// Package check evaluates named boolean assertions against the outcome of a
// single request.
package check

import (
	"time"

	"github.com/tidwall/gjson"
)

// Response is the observable outcome of one request. Status is 0 when the
// request never produced a response.
type Response struct {
	Status   int
	Body     []byte
	Err      error
	Duration time.Duration
}

// Check is a named predicate over a Response.
type Check struct {
	Name string
	Fn   func(Response) bool
}

// Outcome is the result of evaluating one Check.
type Outcome struct {
	Name string
	OK   bool
}

// Recorder receives check outcomes.
type Recorder interface {
	RecordCheck(name string, ok bool)
}

// Run evaluates every check against resp, in order. A panicking predicate
// counts as a failed check.
func Run(resp Response, checks ...Check) []Outcome {
	outcomes := make([]Outcome, 0, len(checks))
	for _, c := range checks {
		outcomes = append(outcomes, Outcome{Name: c.Name, OK: safeEval(c.Fn, resp)})
	}
	return outcomes
}

// RunAndRecord evaluates checks and publishes each outcome to rec. It reports
// whether all checks passed.
func RunAndRecord(rec Recorder, resp Response, checks ...Check) ([]Outcome, bool) {
	outcomes := Run(resp, checks...)
	all := true
	for _, o := range outcomes {
		if rec != nil {
			rec.RecordCheck(o.Name, o.OK)
		}
		all = all && o.OK
	}
	return outcomes, all
}

func safeEval(fn func(Response) bool, resp Response) (ok bool) {
	if fn == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return fn(resp)
}

// StatusIs passes iff the observed status code equals code.
func StatusIs(code int) func(Response) bool {
	return func(r Response) bool {
		return r.Status == code
	}
}

// JSONExists passes iff the body is valid JSON and path resolves to a value.
// Paths use gjson syntax; a leading "$." is accepted.
func JSONExists(path string) func(Response) bool {
	path = normalizePath(path)
	return func(r Response) bool {
		if !gjson.ValidBytes(r.Body) {
			return false
		}
		return gjson.GetBytes(r.Body, path).Exists()
	}
}

func normalizePath(path string) string {
	switch {
	case path == "$":
		return "@this"
	case len(path) > 2 && path[:2] == "$.":
		return path[2:]
	}
	return path
}
