// Package metrics aggregates the observations a load test run produces.
//
// A single [Collector] is shared by every virtual user. It tracks:
//   - http_reqs, http_req_duration and http_req_failed for each request
//   - iterations and iteration_duration for each workload iteration
//   - named check outcomes and the aggregate checks rate
//   - the active and peak virtual user counts
//
// Durations are kept in HDR histograms so percentiles stay accurate at
// high request counts without retaining individual samples:
//
//	collector := metrics.NewCollector()
//	collector.Start()
//	collector.RecordRequest(latency, resp.StatusCode, err)
//	collector.RecordCheck("status is 200", resp.StatusCode == 200)
//	stats := collector.Stats(time.Since(start))
//
// [Stats] is a point-in-time copy and is safe to hand to reporters and the
// threshold evaluator while the run continues.
//
// # History
//
// [Collector.Snapshot] appends a [DataPoint] to the run history; call it on a
// ticker and read the series back with [Collector.History] for charts.
//
// # Thread Safety
//
// All Collector methods may be called concurrently.
package metrics
