package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/cloudcostguard/estimate-load/internal/metrics"
)

// htmlReportData contains everything the HTML template renders.
type htmlReportData struct {
	GeneratedAt string
	Summary     Summary
	Stats       metrics.Stats
	Passed      bool
	StatusCodes []metrics.StatusBucket
	History     []metrics.DataPoint
	HistoryJSON string
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"short":   short,
	"percent": percent,
	"checkRate": func(c metrics.CheckStats) string {
		total := c.Passes + c.Fails
		if total == 0 {
			return percent(0)
		}
		return percent(float64(c.Passes) / float64(total))
	},
	"formatFloat": func(f float64) string {
		return fmt.Sprintf("%.2f", f)
	},
}).Parse(htmlTemplate))

// WriteHTMLReport renders a standalone HTML report of the run. history feeds
// the charts and may be empty.
func WriteHTMLReport(w io.Writer, s Summary, history []metrics.DataPoint) error {
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if history == nil {
		historyJSON = []byte("[]")
	}

	data := htmlReportData{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Summary:     s,
		Stats:       s.Stats,
		Passed:      s.Passed(),
		StatusCodes: metrics.SortedStatusCodes(s.Stats.StatusCodes),
		History:     history,
		HistoryJSON: string(historyJSON),
	}
	if err := reportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Estimate Load Test Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1200px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header { background: #1f3a5f; color: white; padding: 30px 40px; }
        header h1 { font-size: 1.8rem; margin-bottom: 8px; }
        header .meta { opacity: 0.9; font-size: 0.9rem; }
        .content { padding: 40px; }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card { background: #f8f9fa; border-radius: 8px; padding: 20px; border-left: 4px solid #1f3a5f; }
        .card h3 { font-size: 0.85rem; color: #6c757d; text-transform: uppercase; margin-bottom: 8px; }
        .card .value { font-size: 1.8rem; font-weight: bold; }
        .card .subvalue { font-size: 0.85rem; color: #6c757d; }
        .card.success { border-left-color: #10b981; }
        .card.error { border-left-color: #ef4444; }
        .section { margin-bottom: 40px; }
        .section h2 { font-size: 1.4rem; margin-bottom: 16px; padding-bottom: 8px; border-bottom: 2px solid #e5e7eb; }
        .chart-container { border: 1px solid #e5e7eb; border-radius: 8px; padding: 20px; margin-bottom: 24px; }
        .chart { width: 100%; height: 300px; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 10px; border-bottom: 1px solid #e5e7eb; }
        th { background: #f8f9fa; font-size: 0.85rem; text-transform: uppercase; color: #4b5563; }
        .badge { display: inline-block; padding: 3px 12px; border-radius: 12px; font-size: 0.85rem; font-weight: 600; }
        .badge-success { background: #d1fae5; color: #065f46; }
        .badge-error { background: #fee2e2; color: #991b1b; }
        .latency-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(130px, 1fr)); gap: 12px; }
        .latency-item { background: #f8f9fa; padding: 12px; border-radius: 6px; text-align: center; }
        .latency-item .label { font-size: 0.85rem; color: #6c757d; }
        .latency-item .value { font-size: 1.2rem; font-weight: bold; }
    </style>
    {{if .History}}
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
    {{end}}
</head>
<body>
    <div class="container">
        <header>
            <h1>Estimate Load Test Report</h1>
            {{if .Summary.Target}}<div class="meta">Target: {{.Summary.Target}}</div>{{end}}
            {{if .Summary.RunID}}<div class="meta">Run: {{.Summary.RunID}}</div>{{end}}
            <div class="meta">Generated: {{.GeneratedAt}} | Duration: {{short .Stats.Duration}}{{if .Summary.Cancelled}} | cancelled before the plan finished{{end}}</div>
        </header>

        <div class="content">
            <div class="grid">
                <div class="card {{if .Passed}}success{{else}}error{{end}}">
                    <h3>Thresholds</h3>
                    <div class="value">{{if .Passed}}PASS{{else}}FAIL{{end}}</div>
                </div>
                <div class="card">
                    <h3>http_reqs</h3>
                    <div class="value">{{.Stats.Requests}}</div>
                    <div class="subvalue">{{formatFloat .Stats.RequestsPerSec}}/s</div>
                </div>
                <div class="card error">
                    <h3>http_req_failed</h3>
                    <div class="value">{{percent .Stats.FailureRate}}</div>
                    <div class="subvalue">{{.Stats.RequestFailures}} failed</div>
                </div>
                <div class="card success">
                    <h3>checks</h3>
                    <div class="value">{{percent .Stats.CheckRate}}</div>
                    <div class="subvalue">{{.Stats.ChecksPassed}} passed / {{.Stats.ChecksFailed}} failed</div>
                </div>
                <div class="card">
                    <h3>iterations</h3>
                    <div class="value">{{.Stats.Iterations}}</div>
                    <div class="subvalue">{{.Stats.Interrupted}} interrupted</div>
                </div>
                <div class="card">
                    <h3>vus_max</h3>
                    <div class="value">{{.Stats.VUsMax}}</div>
                </div>
            </div>

            {{if .History}}
            <div class="section">
                <h2>Run Timeline</h2>
                <div class="chart-container">
                    <div id="load-chart" class="chart"></div>
                </div>
                <div class="chart-container">
                    <div id="latency-chart" class="chart"></div>
                </div>
            </div>
            {{end}}

            {{if .Stats.Checks}}
            <div class="section">
                <h2>Checks</h2>
                <table>
                    <thead><tr><th>Check</th><th>Passes</th><th>Fails</th><th>Rate</th></tr></thead>
                    <tbody>
                        {{range .Stats.Checks}}
                        <tr>
                            <td>{{if eq .Fails 0}}<span class="badge badge-success">✓</span>{{else}}<span class="badge badge-error">✗</span>{{end}} {{.Name}}</td>
                            <td>{{.Passes}}</td>
                            <td>{{.Fails}}</td>
                            <td>{{checkRate .}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            <div class="section">
                <h2>http_req_duration</h2>
                <div class="latency-grid">
                    <div class="latency-item"><div class="label">avg</div><div class="value">{{short .Stats.RequestDuration.Mean}}</div></div>
                    <div class="latency-item"><div class="label">min</div><div class="value">{{short .Stats.RequestDuration.Min}}</div></div>
                    <div class="latency-item"><div class="label">med</div><div class="value">{{short .Stats.RequestDuration.P50}}</div></div>
                    <div class="latency-item"><div class="label">p(90)</div><div class="value">{{short .Stats.RequestDuration.P90}}</div></div>
                    <div class="latency-item"><div class="label">p(95)</div><div class="value">{{short .Stats.RequestDuration.P95}}</div></div>
                    <div class="latency-item"><div class="label">p(99)</div><div class="value">{{short .Stats.RequestDuration.P99}}</div></div>
                    <div class="latency-item"><div class="label">max</div><div class="value">{{short .Stats.RequestDuration.Max}}</div></div>
                </div>
            </div>

            {{if .Summary.Thresholds}}
            <div class="section">
                <h2>Thresholds</h2>
                <table>
                    <thead><tr><th>Threshold</th><th>Actual</th><th>Status</th></tr></thead>
                    <tbody>
                        {{range .Summary.Thresholds}}
                        <tr>
                            <td>{{.Threshold.Raw}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>{{if .Pass}}<span class="badge badge-success">✓ PASS</span>{{else}}<span class="badge badge-error">✗ FAIL</span>{{end}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .StatusCodes}}
            <div class="section">
                <h2>Status Codes</h2>
                <table>
                    <thead><tr><th>Status</th><th>Count</th></tr></thead>
                    <tbody>
                        {{range .StatusCodes}}<tr><td>HTTP {{.Code}}</td><td>{{.Count}}</td></tr>{{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{with .Summary.Host}}{{if .Samples}}
            <div class="section">
                <h2>Load Generator</h2>
                <table>
                    <tbody>
                        <tr><td>CPU avg / max</td><td>{{formatFloat .CPUAvg}}% / {{formatFloat .CPUMax}}%</td></tr>
                        <tr><td>Memory max</td><td>{{formatFloat .MemMax}}%</td></tr>
                        {{if .Saturated}}<tr><td colspan="2"><span class="badge badge-error">CPU reached {{formatFloat .Threshold}}%; results may reflect the generator</span></td></tr>{{end}}
                    </tbody>
                </table>
            </div>
            {{end}}{{end}}
        </div>
    </div>

    {{if .History}}
    <script>
        const history = JSON.parse({{.HistoryJSON}});
        if (history.length > 0) {
            const elapsed = history.map(d => d.elapsed_s);
            new uPlot({
                title: "Virtual users and requests per second",
                width: document.getElementById('load-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Elapsed (s)" },
                    { label: "VUs", stroke: "#1f3a5f", width: 2, scale: "vus" },
                    { label: "RPS", stroke: "#10b981", width: 2, scale: "rps" }
                ],
                axes: [
                    { label: "Elapsed (seconds)" },
                    { label: "VUs", scale: "vus" },
                    { label: "Requests/sec", scale: "rps", side: 1, grid: { show: false } }
                ]
            }, [elapsed, history.map(d => d.vus), history.map(d => d.current_rps)], document.getElementById('load-chart'));

            new uPlot({
                title: "http_req_duration percentiles (ms)",
                width: document.getElementById('latency-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Elapsed (s)" },
                    { label: "P50", stroke: "#10b981", width: 2 },
                    { label: "P95", stroke: "#f59e0b", width: 2 },
                    { label: "P99", stroke: "#ef4444", width: 2 }
                ],
                axes: [
                    { label: "Elapsed (seconds)" },
                    { label: "Latency (ms)" }
                ]
            }, [elapsed, history.map(d => d.p50_latency_ms), history.map(d => d.p95_latency_ms), history.map(d => d.p99_latency_ms)], document.getElementById('latency-chart'));
        }
    </script>
    {{end}}
</body>
</html>
`
