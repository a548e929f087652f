package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cloudcostguard/estimate-load/internal/check"
	"github.com/cloudcostguard/estimate-load/internal/httpclient"
	"github.com/cloudcostguard/estimate-load/internal/logging"
	"github.com/cloudcostguard/estimate-load/internal/runner"
	"github.com/cloudcostguard/estimate-load/internal/tracing"
)

const (
	CheckStatusOK  = "status is 200"
	CheckTotalCost = "has total cost"

	maxLoggedBodyBytes = 1024
	maxBodyReadSize    = 1024 * 1024
)

// EstimateChecks are evaluated against every response, in this order.
var EstimateChecks = []check.Check{
	{Name: CheckStatusOK, Fn: check.StatusIs(http.StatusOK)},
	{Name: CheckTotalCost, Fn: check.JSONExists("total_monthly_cost")},
}

// Recorder receives request and check observations.
type Recorder interface {
	RecordRequest(latency time.Duration, status int, err error)
	RecordCheck(name string, ok bool)
}

// WorkloadOptions configure an EstimateWorkload.
type WorkloadOptions struct {
	Builder   *httpclient.RequestBuilder
	Client    *http.Client
	Recorder  Recorder
	Change    ResourceChange // zero value sends DefaultResourceChange
	ThinkTime time.Duration
	Tracer    trace.Tracer // optional
	Logger    *zap.Logger  // optional, logs every request at debug level
}

// EstimateWorkload posts one synthetic plan per iteration, checks the
// response and pauses for the think time.
type EstimateWorkload struct {
	builder   *httpclient.RequestBuilder
	client    *http.Client
	recorder  Recorder
	change    ResourceChange
	thinkTime time.Duration
	tracer    trace.Tracer
	logger    *zap.Logger
}

func NewEstimateWorkload(opts WorkloadOptions) (*EstimateWorkload, error) {
	if opts.Builder == nil {
		return nil, errors.New("request builder is required")
	}
	if opts.Recorder == nil {
		return nil, errors.New("recorder is required")
	}
	if opts.ThinkTime < 0 {
		return nil, fmt.Errorf("think time must be >= 0, got %s", opts.ThinkTime)
	}
	change := opts.Change
	if change.Address == "" && change.Type == "" {
		change = DefaultResourceChange()
	}
	if err := change.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := opts.Client
	if client == nil {
		client = httpclient.NewClient(0)
	}
	return &EstimateWorkload{
		builder:   opts.Builder,
		client:    client,
		recorder:  opts.Recorder,
		change:    change,
		thinkTime: opts.ThinkTime,
		tracer:    opts.Tracer,
		logger:    logger,
	}, nil
}

// Iteration runs one request-check-sleep cycle. The returned error describes
// a failed request; it never stops the run.
func (w *EstimateWorkload) Iteration(ctx context.Context, _ runner.VU) error {
	err := w.post(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if sleepErr := runner.Sleep(ctx, w.thinkTime); sleepErr != nil {
		return sleepErr
	}
	return err
}

func (w *EstimateWorkload) post(ctx context.Context) (err error) {
	body, err := json.Marshal(NewPayload(w.change))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var status int
	if w.tracer != nil {
		var span trace.Span
		ctx, span = tracing.StartRequestSpan(ctx, w.tracer, http.MethodPost, w.builder.Target())
		defer func() {
			var attrs []attribute.KeyValue
			if status > 0 {
				attrs = append(attrs, tracing.StatusCode(status))
			}
			tracing.EndSpan(span, err, attrs...)
		}()
	}

	start := time.Now()
	req, err := w.builder.Build(ctx, body)
	if err != nil {
		w.observe(ctx, check.Response{Err: err, Duration: time.Since(start)})
		return err
	}

	resp, err := w.client.Do(req)
	if err != nil {
		w.observe(ctx, check.Response{Err: err, Duration: time.Since(start)})
		return err
	}
	defer resp.Body.Close()

	status = resp.StatusCode
	// The duration covers the whole response body, not just the headers.
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyReadSize))
	latency := time.Since(start)
	if readErr != nil {
		respBody = nil
	}
	w.observe(ctx, check.Response{Status: status, Body: respBody, Duration: latency})

	if status >= 400 {
		snippet := respBody
		if len(snippet) > maxLoggedBodyBytes {
			snippet = snippet[:maxLoggedBodyBytes]
		}
		return &runner.HTTPError{StatusCode: status, Body: strings.TrimSpace(string(snippet))}
	}
	return nil
}

// observe records the request and its checks. Requests cut short by the run
// ending are not data points.
func (w *EstimateWorkload) observe(ctx context.Context, resp check.Response) {
	if ctx.Err() != nil {
		return
	}
	w.recorder.RecordRequest(resp.Duration, resp.Status, resp.Err)
	_, ok := check.RunAndRecord(w.recorder, resp, EstimateChecks...)

	if w.logger.Core().Enabled(zap.DebugLevel) {
		logging.WithSpan(ctx, w.logger).Debug("estimate request",
			zap.Int("status", resp.Status),
			zap.Duration("latency", resp.Duration),
			zap.Bool("checks_passed", ok),
			zap.Error(resp.Err),
		)
	}
}
