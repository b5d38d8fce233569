// Package pipeline runs career pipelines: an ordered list of stages, each
// handing selected state values to a worker and storing the worker's result
// back in the state store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/jobhunter-labs/jobhunter/internal/config"
	intevents "github.com/jobhunter-labs/jobhunter/internal/events"
	"github.com/jobhunter-labs/jobhunter/internal/logger"
	"github.com/jobhunter-labs/jobhunter/internal/retry"
	"github.com/jobhunter-labs/jobhunter/internal/template"
	inttracing "github.com/jobhunter-labs/jobhunter/internal/tracing"
	"github.com/jobhunter-labs/jobhunter/internal/util"
	intworker "github.com/jobhunter-labs/jobhunter/internal/worker"
	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/events"
	jhlog "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/log"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/state"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/tracing"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/worker"
)

const tracerName = "jobhunter-pipeline"

// Metadata keys the runner adds to stored stage outputs and seeded vars.
const (
	MetaSource = "source"
	MetaWorker = "worker"
	MetaRunID  = "run_id"
)

// SourceVars is the MetaSource value of seeded pipeline vars.
const SourceVars = "vars"

// Runner executes pipelines against a state store. Stages run one after the
// other; a Runner may be used for several runs, but not concurrently on the
// same application namespace.
type Runner struct {
	store          state.StateStore
	registry       worker.Registry
	bus            events.Bus
	log            jhlog.Logger
	tracerProvider tracing.TracerProvider
	renderer       *template.GoRenderer
	retryHelper    *retry.Helper
	now            func() time.Time
}

// Option configures a Runner.
type Option func(*Runner) error

// WithRegistry replaces the default worker registry.
func WithRegistry(reg worker.Registry) Option {
	return func(r *Runner) error {
		if reg == nil {
			return jherrors.NewConfigError("worker registry cannot be nil", nil)
		}
		r.registry = reg
		return nil
	}
}

// WithEventBus sets the bus pipeline and stage events are published to.
func WithEventBus(bus events.Bus) Option {
	return func(r *Runner) error {
		if bus == nil {
			return jherrors.NewConfigError("event bus cannot be nil", nil)
		}
		r.bus = bus
		return nil
	}
}

// WithLogger sets the runner logger.
func WithLogger(log jhlog.Logger) Option {
	return func(r *Runner) error {
		if log == nil {
			return jherrors.NewConfigError("logger cannot be nil", nil)
		}
		r.log = log
		return nil
	}
}

// WithTracerProvider enables spans for runs and stages.
func WithTracerProvider(tp tracing.TracerProvider) Option {
	return func(r *Runner) error {
		if tp == nil {
			return jherrors.NewConfigError("tracer provider cannot be nil", nil)
		}
		r.tracerProvider = tp
		return nil
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) error {
		r.now = now
		return nil
	}
}

// NewRunner creates a Runner over store. Without options it uses the default
// worker registry, a no-op event bus, the no-op tracer and a discarding
// logger.
func NewRunner(store state.StateStore, opts ...Option) (*Runner, error) {
	if store == nil {
		return nil, jherrors.NewConfigError("state store cannot be nil", nil)
	}
	r := &Runner{
		store:    store,
		registry: intworker.Default(),
		bus:      intevents.NewNoOpEventBus(),
		renderer: template.NewGoRenderer(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.log == nil {
		r.log = logger.NewDiscardLogger()
	}
	if r.tracerProvider == nil {
		r.tracerProvider = inttracing.NewNoOpProvider()
	}
	r.retryHelper = retry.NewHelper(r.log)
	return r, nil
}

// run carries the per-run values shared by all stages.
type run struct {
	id       string
	pipeline *config.Pipeline
	appID    string
	vars     map[string]interface{}
	tracer   oteltrace.Tracer
	log      jhlog.Logger
}

// Run executes p. The returned report is non-nil whenever p passed
// validation. The error is the first stage failure not covered by
// ignore_errors, or the context error when the run was cancelled.
func (r *Runner) Run(ctx context.Context, p *config.Pipeline) (*Report, error) {
	if p == nil {
		return nil, jherrors.NewValidationError("pipeline cannot be nil", nil)
	}
	if errs := config.ValidatePipelineStructure(p); len(errs) > 0 {
		return nil, jherrors.NewValidationError(fmt.Sprintf("pipeline '%s' is invalid", p.Name), errors.Join(errs...))
	}
	for _, st := range p.Stages {
		if _, err := r.registry.Get(st.Worker); err != nil {
			return nil, jherrors.NewConfigError(fmt.Sprintf("stage '%s' uses unknown worker '%s' (available: %s)",
				st.Name, st.Worker, strings.Join(r.registry.List(), ", ")), err)
		}
	}

	rn := &run{
		id:       uuid.NewString(),
		pipeline: p,
		appID:    p.ApplicationID,
		vars:     util.DeepCopyMap(p.Vars),
		tracer:   r.tracerProvider.GetTracer(tracerName),
	}
	rn.log = r.log.With("pipeline", p.Name, "run_id", rn.id)
	if rn.appID != "" {
		rn.log = rn.log.With("application_id", rn.appID)
	}

	report := &Report{
		RunID:         rn.id,
		PipelineName:  p.Name,
		ApplicationID: rn.appID,
		StartTime:     r.now(),
		Stages:        make([]StageResult, 0, len(p.Stages)),
	}

	ctx, span := rn.tracer.Start(ctx, "jobhunter.pipeline.run", oteltrace.WithAttributes(
		inttracing.AttrPipelineName.String(p.Name),
		inttracing.AttrRunID.String(rn.id),
		inttracing.AttrApplicationID.String(rn.appID),
	))
	defer span.End()

	rn.log.LogCtx(ctx, slog.LevelInfo, "Starting pipeline run", "stages", len(p.Stages))
	r.emit(rn, events.PipelineStart, "", map[string]interface{}{"stages": len(p.Stages)})

	r.seedVars(rn)

	var runErr error
	for i := range p.Stages {
		st := &p.Stages[i]
		if runErr == nil {
			if err := ctx.Err(); err != nil {
				runErr = err
			}
		}
		if runErr != nil {
			report.Stages = append(report.Stages, StageResult{Name: st.Name, Worker: st.Worker, Output: st.Output, Status: StatusSkipped})
			continue
		}

		res, err := r.runStage(ctx, rn, st)
		report.Stages = append(report.Stages, res)
		if err != nil && !st.IgnoreErrors {
			runErr = err
		}
	}

	report.EndTime = r.now()
	report.Duration = report.EndTime.Sub(report.StartTime)
	report.tally()
	report.Status = StatusCompleted
	if runErr != nil {
		report.Status = StatusFailed
		report.Error = template.RedactSecretsInError(runErr, template.DefaultRedactedKeywords).Error()
		inttracing.RecordError(span, runErr)
		rn.log.Errorf("Pipeline run failed after %v: %v", report.Duration, runErr)
	} else {
		span.SetStatus(codes.Ok, "")
		rn.log.Infof("Pipeline run completed in %v (%d completed, %d failed and ignored)",
			report.Duration, report.CompletedStages, report.FailedStages)
	}

	r.emit(rn, events.PipelineEnd, "", map[string]interface{}{
		"status":           report.Status,
		"duration_seconds": report.Duration.Seconds(),
		"completed":        report.CompletedStages,
		"failed":           report.FailedStages,
		"skipped":          report.SkippedStages,
	})
	return report, runErr
}

// seedVars writes the pipeline vars into the run's namespace.
func (r *Runner) seedVars(rn *run) {
	for k, v := range rn.vars {
		r.store.Store(k, v, rn.appID, state.Metadata{MetaSource: SourceVars, MetaRunID: rn.id})
	}
	if len(rn.vars) > 0 {
		rn.log.Debugf("Seeded %d pipeline vars", len(rn.vars))
	}
}

func (r *Runner) runStage(ctx context.Context, rn *run, st *config.Stage) (res StageResult, err error) {
	res = StageResult{Name: st.Name, Worker: st.Worker, Output: st.Output, StartTime: r.now()}
	stageLog := rn.log.With("stage", st.Name, "worker", st.Worker)

	ctx, span := rn.tracer.Start(ctx, "jobhunter.stage.run", oteltrace.WithAttributes(
		inttracing.AttrStageName.String(st.Name),
		inttracing.AttrWorkerType.String(st.Worker),
		inttracing.AttrOutputKey.String(st.Output),
	))
	defer span.End()

	r.emit(rn, events.StageStart, st.Name, map[string]interface{}{"worker": st.Worker})
	stageLog.Infof("Starting stage")

	defer func() {
		res.EndTime = r.now()
		res.Duration = res.EndTime.Sub(res.StartTime)
		payload := map[string]interface{}{
			"worker":           st.Worker,
			"attempts":         res.Attempts,
			"duration_seconds": res.Duration.Seconds(),
		}
		if err != nil {
			res.Status = StatusFailed
			res.Ignored = st.IgnoreErrors
			res.Error = template.RedactSecretsInError(err, template.DefaultRedactedKeywords).Error()
			res.ErrorCategory = string(jherrors.Categorize(err))
			payload["error_category"] = res.ErrorCategory
			inttracing.RecordError(span, err)
			if st.IgnoreErrors {
				stageLog.Warnf("Stage failed, continuing because ignore_errors is set: %v", err)
			} else {
				stageLog.Errorf("Stage failed: %v", err)
			}
		} else {
			res.Status = StatusCompleted
			span.SetStatus(codes.Ok, "")
			stageLog.Infof("Stage completed in %v", res.Duration)
		}
		span.SetAttributes(inttracing.AttrAttempts.Int(res.Attempts), attribute.String("jobhunter.stage.status", res.Status))
		payload["status"] = res.Status
		r.emit(rn, events.StageEnd, st.Name, payload)
	}()

	factory, err := r.registry.Get(st.Worker)
	if err != nil {
		return res, jherrors.NewStageExecutionError(st.Name, st.Worker, err)
	}
	w := factory()
	if emitter, ok := w.(worker.EventEmitter); ok {
		emitter.SetEventBus(&stageBus{
			next:          r.bus,
			pipelineName:  rn.pipeline.Name,
			runID:         rn.id,
			stageName:     st.Name,
			applicationID: rn.appID,
		})
	}

	input, err := r.gatherInputs(rn, st)
	if err != nil {
		return res, jherrors.NewStageExecutionError(st.Name, st.Worker, err)
	}

	data := map[string]interface{}{
		template.VarsKey:  rn.vars,
		template.InputKey: input,
		template.RunKey: map[string]interface{}{
			"id":             rn.id,
			"pipeline":       rn.pipeline.Name,
			"application_id": rn.appID,
			"stage":          st.Name,
		},
	}
	params, err := r.renderer.RenderParams(st.Params, data)
	if err != nil {
		return res, jherrors.NewStageExecutionError(st.Name, st.Worker,
			jherrors.NewValidationError("parameter rendering failed", err))
	}
	span.SetAttributes(inttracing.ParamAttributes(params)...)

	stageCtx := ctx
	if timeout := st.GetTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	reader := readOnly{r.store}
	var output interface{}
	retryCfg := retry.Config{
		Attempts:      st.GetRetryAttempts(),
		Delay:         st.GetRetryDelay(),
		MaxDelay:      st.GetRetryMaxDelay(),
		BackoffFactor: st.GetRetryBackoffFactor(),
		Jitter:        st.GetRetryJitter(),
		OnError:       st.ShouldRetryOnError(),
		StageName:     st.Name,
	}
	res.Attempts, err = r.retryHelper.Do(stageCtx, retryCfg, func(opCtx context.Context) error {
		// Workers get fresh copies on every attempt.
		out, performErr := w.Perform(opCtx, util.DeepCopyMap(params), util.DeepCopyMap(input), reader)
		if performErr == nil {
			output = out
		}
		return performErr
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("stage timeout of %v exceeded: %w", st.GetTimeout(), err)
		}
		return res, jherrors.NewStageExecutionError(st.Name, st.Worker, err)
	}

	if st.Output != "" {
		r.store.Store(st.Output, output, rn.appID, state.Metadata{
			MetaSource: st.Name,
			MetaWorker: st.Worker,
			MetaRunID:  rn.id,
		})
	}
	return res, nil
}

// gatherInputs reads the stage inputs, preferring the application namespace
// over the global one.
func (r *Runner) gatherInputs(rn *run, st *config.Stage) (map[string]interface{}, error) {
	input := make(map[string]interface{}, len(st.Inputs))
	var missing []string
	for _, key := range st.Inputs {
		v, ok := r.store.Retrieve(key, rn.appID)
		if !ok && rn.appID != "" {
			v, ok = r.store.Retrieve(key, "")
		}
		if !ok {
			missing = append(missing, key)
			continue
		}
		input[key] = v
	}
	if len(missing) > 0 {
		return nil, jherrors.NewValidationError(fmt.Sprintf("missing stage inputs: %s", strings.Join(missing, ", ")), nil)
	}
	return input, nil
}

func (r *Runner) emit(rn *run, t events.EventType, stage string, payload map[string]interface{}) {
	r.bus.Emit(events.Event{
		Type:          t,
		Timestamp:     r.now(),
		ApplicationID: rn.appID,
		PipelineName:  rn.pipeline.Name,
		RunID:         rn.id,
		StageName:     stage,
		Payload:       payload,
	})
}

// readOnly hides the write methods of the store from workers.
type readOnly struct {
	state.StateReader
}
