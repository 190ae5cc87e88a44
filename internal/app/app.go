// Package app wires the store test components and runs them.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nonebot/store-test/internal/config"
	"github.com/nonebot/store-test/internal/otel"
	"github.com/nonebot/store-test/internal/sources"
	"github.com/nonebot/store-test/internal/status"
	"github.com/nonebot/store-test/internal/storetest"
)

// StoreTestApp encapsulates all components needed to run the store test
type StoreTestApp struct {
	config     *config.Config
	options    storetest.Options
	components *AppComponents
	now        func() time.Time
}

// RunSummary is what a run did
type RunSummary struct {
	Status *status.RunStatus
	Load   *sources.LoadResult
	Report *storetest.Report
}

// Run loads the inputs, tests the selected candidates and writes the new
// snapshot. The run status is saved whether or not the run succeeds.
func (app *StoreTestApp) Run(ctx context.Context, req *storetest.Request) (*RunSummary, error) {
	if req == nil {
		req = &storetest.Request{}
	}

	ctx, span := otel.StartSpan(ctx, app.components.Tracer, "app.Run")
	defer span.End()

	previous, err := app.components.Status.LoadStatus(ctx)
	if err != nil {
		slog.Warn("Failed to load previous run status, starting fresh", "error", err)
		previous = nil
	}

	runStatus := status.NewRunStatus(previous, status.Window{
		Offset: app.options.Offset,
		Limit:  app.options.Limit,
		Force:  app.options.Force,
		Key:    req.Key.String(),
	}, app.now())
	if err := app.components.Status.SaveStatus(ctx, runStatus); err != nil {
		return nil, err
	}

	slog.Info("Store test run started", "run_id", runStatus.RunID)

	summary := &RunSummary{Status: runStatus}
	if err := app.run(ctx, req, summary); err != nil {
		otel.RecordError(span, err)
		runStatus.Fail(err, app.now())
		if saveErr := app.components.Status.SaveStatus(ctx, runStatus); saveErr != nil {
			slog.Error("Failed to save run status", "run_id", runStatus.RunID, "error", saveErr)
		}
		return summary, err
	}

	runStatus.Complete(countsOf(summary), app.now())
	if err := app.components.Status.SaveStatus(ctx, runStatus); err != nil {
		return summary, err
	}

	slog.Info("Store test run completed",
		"run_id", runStatus.RunID,
		"duration", runStatus.Duration,
		"tested", runStatus.Counts.Tested)
	return summary, nil
}

func (app *StoreTestApp) run(ctx context.Context, req *storetest.Request, summary *RunSummary) error {
	load, err := app.components.Loader.Load(ctx, app.config)
	if err != nil {
		return fmt.Errorf("failed to load store snapshot: %w", err)
	}
	summary.Load = load
	summary.Status.Sources = sourceStatuses(load.Sources)

	orchestrator, err := storetest.NewOrchestrator(
		load.Snapshot,
		app.components.Oracle,
		app.components.Validator,
		app.options,
		storetest.WithTracer(app.components.Tracer),
		storetest.WithMetrics(app.components.Metrics),
	)
	if err != nil {
		return err
	}

	report, err := orchestrator.Run(ctx, req)
	if err != nil {
		return err
	}
	summary.Report = report

	if err := app.components.Store.Store(ctx, storetest.Output(load.Snapshot, report)); err != nil {
		return fmt.Errorf("failed to write store snapshot: %w", err)
	}
	return nil
}

// GetConfig returns the application configuration
func (app *StoreTestApp) GetConfig() *config.Config {
	return app.config
}

func countsOf(summary *RunSummary) status.Counts {
	counts := status.Counts{}
	if summary.Load != nil {
		counts.Rejected = summary.Load.Rejected()
	}
	if report := summary.Report; report != nil {
		counts.Candidates = len(report.Outcomes)
		counts.Tested = report.Tested
		counts.Skipped = report.Count(storetest.StatusSkipped)
		counts.Failed = report.Count(storetest.StatusFailed)
		for _, o := range report.Outcomes {
			if o.Passed {
				counts.Passed++
			}
		}
	}
	return counts
}

func sourceStatuses(reports []sources.SourceReport) []status.SourceStatus {
	statuses := make([]status.SourceStatus, 0, len(reports))
	for _, r := range reports {
		statuses = append(statuses, status.SourceStatus{
			Name:     r.Name,
			Type:     r.Type,
			Location: r.Location,
			Hash:     r.Hash,
			Entries:  r.Entries,
			Rejected: r.Rejected,
			Missing:  r.Missing,
		})
	}
	return statuses
}
