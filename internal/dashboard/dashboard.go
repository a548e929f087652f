// Package dashboard renders a live terminal view of a running load test.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/cloudcostguard/estimate-load/internal/metrics"
	"github.com/cloudcostguard/estimate-load/internal/threshold"
)

const (
	refreshInterval = 500 * time.Millisecond
	maxHistory      = 100
	maxListRows     = 10
)

// RunInfo describes the run for the header panel.
type RunInfo struct {
	RunID      string
	Target     string
	Planned    time.Duration // total length of the stage plan
	PeakTarget int           // highest stage target, the VU gauge's full scale
	Stages     []string      // e.g. "2m0s:100"
}

// Dashboard renders a live terminal UI for load test metrics.
type Dashboard struct {
	collector    *metrics.Collector
	evaluator    *threshold.Evaluator
	info         RunInfo
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	grid           *ui.Grid
	summaryPara    *widgets.Paragraph
	vuGauge        *widgets.Gauge
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	checkList      *widgets.List
	thresholdList  *widgets.List
	statusList     *widgets.List
	p95History     []float64
}

// New initialises the terminal and builds the dashboard. shutdownFunc is
// called when the user presses q or Ctrl-C.
func New(collector *metrics.Collector, thresholds []threshold.Threshold, info RunInfo, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}
	d := newDashboard(collector, thresholds, info, shutdownFunc)
	d.setupGrid()
	return d, nil
}

func newDashboard(collector *metrics.Collector, thresholds []threshold.Threshold, info RunInfo, shutdownFunc func()) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		collector:    collector,
		evaluator:    threshold.NewEvaluator(thresholds),
		info:         info,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		p95History:   make([]float64, 0, maxHistory),
	}
	d.initWidgets()
	return d
}

func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.vuGauge = widgets.NewGauge()
	d.vuGauge.Title = "Virtual Users"
	d.vuGauge.BarColor = ui.ColorBlue
	d.vuGauge.BorderStyle.Fg = ui.ColorCyan
	d.vuGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	sparkline := widgets.NewSparkline()
	sparkline.Title = "p(95) ms"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}
	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "http_req_duration"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency"
	d.latencyPara.Text = "Waiting for data..."
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.checkList = widgets.NewList()
	d.checkList.Title = "Checks"
	d.checkList.Rows = []string{"Awaiting data"}
	d.checkList.BorderStyle.Fg = ui.ColorCyan

	d.thresholdList = widgets.NewList()
	d.thresholdList.Title = "Thresholds"
	d.thresholdList.Rows = []string{"Awaiting data"}
	d.thresholdList.BorderStyle.Fg = ui.ColorCyan

	d.statusList = widgets.NewList()
	d.statusList.Title = "Status Codes"
	d.statusList.Rows = []string{"Awaiting data"}
	d.statusList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.statusList.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)
	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(0.6, d.summaryPara),
			ui.NewCol(0.4, d.vuGauge),
		),
		ui.NewRow(0.30,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.27,
			ui.NewCol(0.5, d.checkList),
			ui.NewCol(0.5, d.thresholdList),
		),
		ui.NewRow(0.27,
			ui.NewCol(1.0, d.statusList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the update loop and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()
	d.render()

	for {
		select {
		case <-d.ctx.Done():
			return
		case e := <-uiEvents:
			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.mu.Lock()
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				d.mu.Unlock()
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()
	ui.Render(d.grid)
}

// update refreshes every widget from the collector.
func (d *Dashboard) update() {
	elapsed := d.collector.Elapsed()
	stats := d.collector.Stats(elapsed)
	results := d.evaluator.Evaluate(stats)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.summaryPara.Text = formatSummary(d.info, stats, elapsed)

	d.vuGauge.Percent = gaugePercent(stats.VUs, d.info.PeakTarget)
	d.vuGauge.Label = fmt.Sprintf("%d / %d VUs (max %d)", stats.VUs, d.info.PeakTarget, stats.VUsMax)

	if stats.Requests > 0 {
		d.p95History = appendBounded(d.p95History, stats.RequestDuration.P95Ms, maxHistory)
		d.latencySparkle.Sparklines[0].Data = d.p95History
		d.latencySparkle.Title = fmt.Sprintf("http_req_duration | p(95) %.2fms | max %.2fms",
			stats.RequestDuration.P95Ms, stats.RequestDuration.MaxMs)
	}
	d.latencyPara.Text = formatLatency(stats.RequestDuration)

	d.checkList.Rows = formatCheckRows(stats.Checks)
	d.thresholdList.Rows = formatThresholdRows(results)
	d.statusList.Rows = formatStatusRows(stats)
}

func formatSummary(info RunInfo, stats metrics.Stats, elapsed time.Duration) string {
	lines := []string{fmt.Sprintf("Target: %s", info.Target)}
	if len(info.Stages) > 0 {
		lines = append(lines, "Stages: "+strings.Join(info.Stages, ", "))
	}
	progress := elapsed.Round(time.Second).String()
	if info.Planned > 0 {
		progress += " / " + info.Planned.String()
	}
	lines = append(lines, fmt.Sprintf("Elapsed: %s | Iterations: %d | Requests: %d (%.1f/s) | Failed: %.2f%%",
		progress, stats.Iterations, stats.Requests, stats.RequestsPerSec, stats.FailureRate()*100))
	if info.RunID != "" {
		lines = append(lines, "Run: "+info.RunID)
	}
	return strings.Join(lines, "\n")
}

func gaugePercent(current, peak int) int {
	if peak <= 0 || current <= 0 {
		return 0
	}
	pct := current * 100 / peak
	if pct > 100 {
		pct = 100
	}
	return pct
}

func appendBounded(history []float64, v float64, limit int) []float64 {
	history = append(history, v)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

func formatLatency(t metrics.TrendStats) string {
	return fmt.Sprintf("avg:   %.2fms\nmin:   %.2fms\nmed:   %.2fms\np(90): %.2fms\np(95): %.2fms\np(99): %.2fms\nmax:   %.2fms",
		t.MeanMs, t.MinMs, t.P50Ms, t.P90Ms, t.P95Ms, t.P99Ms, t.MaxMs)
}

func formatCheckRows(checks []metrics.CheckStats) []string {
	if len(checks) == 0 {
		return []string{"Awaiting data"}
	}
	rows := make([]string, 0, len(checks))
	for _, c := range checks {
		total := c.Passes + c.Fails
		rate := 0.0
		if total > 0 {
			rate = float64(c.Passes) / float64(total) * 100
		}
		if c.Fails == 0 {
			rows = append(rows, fmt.Sprintf("[✓ %s](fg:green) %.2f%% (%d)", c.Name, rate, c.Passes))
			continue
		}
		rows = append(rows, fmt.Sprintf("[✗ %s](fg:red) %.2f%% (✓ %d / ✗ %d)", c.Name, rate, c.Passes, c.Fails))
	}
	return rows
}

func formatThresholdRows(results []threshold.Result) []string {
	if len(results) == 0 {
		return []string{"No thresholds"}
	}
	rows := make([]string, 0, len(results))
	for _, r := range results {
		color := "green"
		if !r.Pass {
			color = "red"
		}
		rows = append(rows, fmt.Sprintf("[%s](fg:%s)", r.Message, color))
	}
	return rows
}

func formatStatusRows(stats metrics.Stats) []string {
	buckets := metrics.SortedStatusCodes(stats.StatusCodes)
	if len(buckets) == 0 && len(stats.Errors) == 0 {
		return []string{"Awaiting data"}
	}
	rows := make([]string, 0, len(buckets)+len(stats.Errors))
	for _, b := range buckets {
		color := "green"
		if b.Code != "200" {
			color = "red"
		}
		rows = append(rows, fmt.Sprintf("[HTTP %s](fg:%s) %d", b.Code, color, b.Count))
	}
	for _, e := range metrics.SortedStatusCodes(stats.Errors) {
		rows = append(rows, fmt.Sprintf("[%s](fg:red) %d", metrics.FriendlyErrorName(e.Code), e.Count))
	}
	if len(rows) > maxListRows {
		rows = rows[:maxListRows]
	}
	return rows
}
