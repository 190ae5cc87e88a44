package storetest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/nonebot/store-test/internal/otel"
	"github.com/nonebot/store-test/internal/registry"
	"github.com/nonebot/store-test/internal/telemetry"
	"github.com/nonebot/store-test/internal/validation"
)

// ErrUnknownCandidate is returned when an explicit key is not a store plugin
var ErrUnknownCandidate = errors.New("unknown candidate")

// Status of one candidate step
type Status string

const (
	// StatusTested means a fresh record was produced
	StatusTested Status = "tested"
	// StatusSkipped means the previous record, if any, is carried forward
	StatusSkipped Status = "skipped"
	// StatusFailed means validation errored and no record was produced
	StatusFailed Status = "failed"
)

// Options is the window of a batch run
type Options struct {
	// Offset is the number of listed plugins skipped before the window starts
	Offset int
	// Limit is the number of plugins tested at most
	Limit int
	// Force disables version based skipping
	Force bool
}

// Validate checks the options
func (o Options) Validate() error {
	if o.Offset < 0 {
		return fmt.Errorf("offset must not be negative, got %d", o.Offset)
	}
	if o.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", o.Limit)
	}
	return nil
}

// Request selects the candidates of a run. An empty Key runs the batch window.
type Request struct {
	Key registry.Key
	// Config overrides the plugin config of an explicit key
	Config *string
	// Data is a metadata document for an explicit key
	Data *string
}

// Outcome records what happened to one candidate
type Outcome struct {
	Key      registry.Key
	Status   Status
	Reason   string
	Err      error
	Passed   bool
	Duration time.Duration
}

// Report is the merged output of a run
type Report struct {
	Results  *registry.OrderedMap[*registry.TestResult]
	Plugins  *registry.OrderedMap[*registry.Plugin]
	Outcomes []Outcome
	// Limit is the effective budget after clamping
	Limit  int
	Tested int
}

// Count returns the number of outcomes with the given status
func (r *Report) Count(status Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithTracer sets the tracer used for candidate spans
func WithTracer(tracer trace.Tracer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

// WithMetrics sets the run metrics recorder
func WithMetrics(metrics *telemetry.RunMetrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

// Orchestrator runs the store test over a loaded snapshot
type Orchestrator struct {
	snapshot     *registry.Snapshot
	policy       *SkipPolicy
	validator    validation.Validator
	options      Options
	knownPlugins map[string]string

	tracer  trace.Tracer
	metrics *telemetry.RunMetrics
}

// NewOrchestrator creates an orchestrator for snapshot
func NewOrchestrator(
	snapshot *registry.Snapshot,
	oracle VersionOracle,
	validator validation.Validator,
	options Options,
	opts ...OrchestratorOption,
) (*Orchestrator, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}

	known := make(map[string]string, snapshot.Plugins.Len())
	for _, sp := range snapshot.Plugins.All() {
		known[sp.ProjectLink] = sp.ModuleName
	}

	o := &Orchestrator{
		snapshot:     snapshot,
		policy:       NewSkipPolicy(oracle, snapshot),
		validator:    validator,
		options:      options,
		knownPlugins: known,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// candidate is one plugin queued for the run
type candidate struct {
	key    registry.Key
	plugin *registry.StorePlugin
	config string
	data   *string
}

// Run tests the selected candidates and merges the outcome with the
// previous run
func (o *Orchestrator) Run(ctx context.Context, req *Request) (*Report, error) {
	if req == nil {
		req = &Request{}
	}

	candidates, limit, err := o.candidates(req)
	if err != nil {
		return nil, err
	}

	freshResults := registry.NewOrderedMap[*registry.TestResult]()
	freshPlugins := registry.NewOrderedMap[*registry.Plugin]()
	report := &Report{Limit: limit}

	slog.Info("Starting store test",
		"candidates", len(candidates),
		"limit", limit,
		"offset", o.options.Offset,
		"force", o.options.Force,
		"key", req.Key)

	for _, c := range candidates {
		if report.Tested >= limit {
			slog.Info("Reached the test limit, stopping", "limit", limit)
			break
		}

		outcome := o.step(ctx, c, report.Tested+1, limit, freshResults, freshPlugins)
		if outcome.Status == StatusTested {
			report.Tested++
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	keys := o.snapshot.Plugins.Keys()
	report.Results = Merge(keys, freshResults, o.snapshot.PreviousResults)
	report.Plugins = Merge(keys, freshPlugins, o.snapshot.PreviousPlugins)

	slog.Info("Store test finished",
		"tested", report.Tested,
		"skipped", report.Count(StatusSkipped),
		"failed", report.Count(StatusFailed),
		"results", report.Results.Len(),
		"plugins", report.Plugins.Len())
	return report, nil
}

// candidates returns the candidates in order and the effective budget
func (o *Orchestrator) candidates(req *Request) ([]candidate, int, error) {
	if req.Key != "" {
		sp, ok := o.snapshot.Plugins.Get(req.Key)
		if !ok {
			return nil, 0, fmt.Errorf("%w: %s", ErrUnknownCandidate, req.Key)
		}
		config := ""
		if req.Config != nil {
			config = *req.Config
		}
		return []candidate{{key: req.Key, plugin: sp, config: config, data: req.Data}}, 1, nil
	}

	keys := o.snapshot.Plugins.Keys()
	if o.options.Offset < len(keys) {
		keys = keys[o.options.Offset:]
	} else {
		keys = nil
	}

	candidates := make([]candidate, 0, len(keys))
	for _, key := range keys {
		sp, _ := o.snapshot.Plugins.Get(key)
		config := ""
		if previous, ok := o.snapshot.PreviousResults.Get(key); ok {
			config = previous.Inputs.Config
		}
		candidates = append(candidates, candidate{key: key, plugin: sp, config: config})
	}

	return candidates, min(o.options.Limit, len(candidates)), nil
}

// step evaluates one candidate, recording fresh records on success
func (o *Orchestrator) step(
	ctx context.Context,
	c candidate,
	index, limit int,
	freshResults *registry.OrderedMap[*registry.TestResult],
	freshPlugins *registry.OrderedMap[*registry.Plugin],
) Outcome {
	ctx, span := otel.StartSpan(ctx, o.tracer, "storetest.Candidate")
	defer span.End()
	span.SetAttributes(
		otel.AttrCandidateKey.String(c.key.String()),
		otel.AttrCandidateProject.String(c.plugin.ProjectLink),
		otel.AttrCandidateModule.String(c.plugin.ModuleName),
	)

	outcome := Outcome{Key: c.key}
	defer func() {
		span.SetAttributes(
			otel.AttrCandidateStatus.String(string(outcome.Status)),
			otel.AttrSkipReason.String(outcome.Reason),
		)
		o.metrics.RecordCandidate(ctx, string(outcome.Status), outcome.Reason)
	}()

	decision := o.policy.ShouldSkip(ctx, c.key, o.options.Force)
	outcome.Reason = decision.Reason
	if decision.Skip {
		outcome.Status = StatusSkipped
		return outcome
	}

	slog.Info(fmt.Sprintf("%d/%d testing plugin", index, limit), "key", c.key, "reason", decision.Reason)

	previous, _ := o.snapshot.PreviousPlugins.Get(c.key)
	start := time.Now()
	result, plugin, err := o.validator.Validate(ctx, &validation.Request{
		Plugin:       c.plugin,
		Config:       c.config,
		Data:         c.data,
		SkipTest:     o.policy.SkipPluginTest(c.key),
		Previous:     previous,
		KnownPlugins: o.knownPlugins,
	})
	outcome.Duration = time.Since(start)
	if err != nil {
		slog.Error("Plugin test failed", "key", c.key, "error", err)
		otel.RecordError(span, err)
		outcome.Status = StatusFailed
		outcome.Err = err
		return outcome
	}

	freshResults.Set(c.key, result)
	if plugin != nil {
		freshPlugins.Set(c.key, plugin)
	}

	outcome.Status = StatusTested
	outcome.Passed = result.Passed()
	span.SetAttributes(
		otel.AttrVersion.String(result.Version),
		otel.AttrTestPassed.Bool(outcome.Passed),
	)
	o.metrics.RecordValidationDuration(ctx, outcome.Duration, outcome.Passed)
	slog.Info("Plugin tested", "key", c.key, "passed", outcome.Passed, "version", result.Version)
	return outcome
}

// Merge builds the output map over keys in order, preferring fresh records
// over previous ones and omitting keys found in neither
func Merge[V any](keys []registry.Key, fresh, previous *registry.OrderedMap[V]) *registry.OrderedMap[V] {
	merged := registry.NewOrderedMap[V]()
	for _, key := range keys {
		if v, ok := fresh.Get(key); ok {
			merged.Set(key, v)
		} else if v, ok := previous.Get(key); ok {
			merged.Set(key, v)
		}
	}
	return merged
}

// Output assembles what a run writes: the passthrough listings, the merged
// plugin list and the merged results
func Output(snapshot *registry.Snapshot, report *Report) *registry.Output {
	return &registry.Output{
		Adapters: snapshot.Adapters,
		Bots:     snapshot.Bots,
		Drivers:  snapshot.Drivers,
		Plugins:  report.Plugins.Values(),
		Results:  report.Results,
	}
}
