package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/nonebot/store-test/internal/config"
	"github.com/nonebot/store-test/internal/otel"
	"github.com/nonebot/store-test/internal/registry"
	"github.com/nonebot/store-test/internal/telemetry"
)

// Source names as they appear in reports and logs
const (
	SourceStoreAdapters   = "store.adapters"
	SourceStoreBots       = "store.bots"
	SourceStoreDrivers    = "store.drivers"
	SourceStorePlugins    = "store.plugins"
	SourcePreviousResults = "previous.results"
	SourcePreviousPlugins = "previous.plugins"
)

// SourceReport describes how one document was loaded
type SourceReport struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Location string `json:"location"`
	Hash     string `json:"hash,omitempty"`
	Entries  int    `json:"entries"`
	Rejected int    `json:"rejected"`
	// Missing is set for a previous document that does not exist yet
	Missing bool `json:"missing,omitempty"`
}

// LoadResult is the loaded snapshot and a report per document
type LoadResult struct {
	Snapshot *registry.Snapshot
	Sources  []SourceReport
}

// Rejected returns the number of records dropped across all documents
func (r *LoadResult) Rejected() int {
	total := 0
	for _, s := range r.Sources {
		total += s.Rejected
	}
	return total
}

// LoaderOption configures a SnapshotLoader
type LoaderOption func(*SnapshotLoader)

// WithTracer sets the tracer used for load spans
func WithTracer(tracer trace.Tracer) LoaderOption {
	return func(l *SnapshotLoader) {
		l.tracer = tracer
	}
}

// WithMetrics sets the metrics recorder for listing sizes
func WithMetrics(metrics *telemetry.RunMetrics) LoaderOption {
	return func(l *SnapshotLoader) {
		l.metrics = metrics
	}
}

// SnapshotLoader reads the store listings and the previous snapshot
type SnapshotLoader struct {
	factory   SourceHandlerFactory
	validator *RecordValidator
	tracer    trace.Tracer
	metrics   *telemetry.RunMetrics
}

// NewSnapshotLoader creates a loader fetching documents through factory
func NewSnapshotLoader(factory SourceHandlerFactory, opts ...LoaderOption) (*SnapshotLoader, error) {
	validator, err := NewRecordValidator()
	if err != nil {
		return nil, err
	}
	l := &SnapshotLoader{
		factory:   factory,
		validator: validator,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load reads all six documents. Any failure on a store listing is fatal;
// previous documents that do not exist yet are treated as empty.
func (l *SnapshotLoader) Load(ctx context.Context, cfg *config.Config) (result *LoadResult, err error) {
	ctx, span := otel.StartSpan(ctx, l.tracer, "sources.Load")
	defer func() {
		otel.RecordError(span, err)
		span.End()
	}()

	if c, ok := l.factory.(closer); ok {
		defer func() {
			if closeErr := c.Close(ctx); closeErr != nil {
				slog.Warn("Failed to release source handlers", "error", closeErr)
			}
		}()
	}

	snapshot := registry.NewSnapshot()
	result = &LoadResult{Snapshot: snapshot}

	entryLists := []struct {
		name   string
		source *config.SourceConfig
		kind   registry.Kind
		schema string
		target *[]*registry.Entry
	}{
		{SourceStoreAdapters, &cfg.Store.Adapters, registry.KindAdapter, SchemaAdapter, &snapshot.Adapters},
		{SourceStoreBots, &cfg.Store.Bots, registry.KindBot, SchemaBot, &snapshot.Bots},
		{SourceStoreDrivers, &cfg.Store.Drivers, registry.KindDriver, SchemaDriver, &snapshot.Drivers},
	}
	for _, list := range entryLists {
		report, data, err := l.fetch(ctx, list.name, list.source, false)
		if err != nil {
			return nil, err
		}
		entries, rejected, err := decodeList(l.validator, list.schema, data, list.name,
			func(e *registry.Entry) registry.Key { return listingKey(e) })
		if err != nil {
			return nil, fmt.Errorf("%s: %w", list.name, err)
		}
		for _, e := range entries {
			e.Kind = list.kind
		}
		*list.target = entries
		report.Entries, report.Rejected = len(entries), rejected
		result.Sources = append(result.Sources, *report)
		l.metrics.RecordListingEntries(ctx, list.kind.String(), len(entries))
	}

	report, data, err := l.fetch(ctx, SourceStorePlugins, &cfg.Store.Plugins, false)
	if err != nil {
		return nil, err
	}
	plugins, rejected, err := decodeList(l.validator, SchemaPlugin, data, SourceStorePlugins,
		func(p *registry.StorePlugin) registry.Key { return p.Key() })
	if err != nil {
		return nil, fmt.Errorf("%s: %w", SourceStorePlugins, err)
	}
	for _, p := range plugins {
		snapshot.Plugins.Set(p.Key(), p)
	}
	report.Entries, report.Rejected = snapshot.Plugins.Len(), rejected
	result.Sources = append(result.Sources, *report)
	l.metrics.RecordListingEntries(ctx, registry.KindPlugin.String(), snapshot.Plugins.Len())

	report, data, err = l.fetch(ctx, SourcePreviousResults, &cfg.Previous.Results, true)
	if err != nil {
		return nil, err
	}
	if data != nil {
		results, rejected, err := decodeResults(l.validator, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", SourcePreviousResults, err)
		}
		snapshot.PreviousResults = results
		report.Entries, report.Rejected = results.Len(), rejected
	}
	result.Sources = append(result.Sources, *report)

	report, data, err = l.fetch(ctx, SourcePreviousPlugins, &cfg.Previous.Plugins, true)
	if err != nil {
		return nil, err
	}
	if data != nil {
		previous, rejected, err := decodeList(l.validator, SchemaPreviousPlugin, data, SourcePreviousPlugins,
			func(p *registry.Plugin) registry.Key { return p.Key() })
		if err != nil {
			return nil, fmt.Errorf("%s: %w", SourcePreviousPlugins, err)
		}
		for _, p := range previous {
			snapshot.PreviousPlugins.Set(p.Key(), p)
		}
		report.Entries, report.Rejected = snapshot.PreviousPlugins.Len(), rejected
	}
	result.Sources = append(result.Sources, *report)

	span.SetAttributes(otel.AttrResultCount.Int(snapshot.Plugins.Len()))
	slog.Info("Loaded store snapshot",
		"adapters", len(snapshot.Adapters),
		"bots", len(snapshot.Bots),
		"drivers", len(snapshot.Drivers),
		"plugins", snapshot.Plugins.Len(),
		"previous_results", snapshot.PreviousResults.Len(),
		"previous_plugins", snapshot.PreviousPlugins.Len(),
		"rejected", result.Rejected())

	return result, nil
}

// fetch reads one document. With optional set, a missing document returns
// a nil payload and a report flagged Missing.
func (l *SnapshotLoader) fetch(
	ctx context.Context,
	name string,
	source *config.SourceConfig,
	optional bool,
) (*SourceReport, []byte, error) {
	ctx, span := otel.StartSpan(ctx, l.tracer, "sources.Fetch")
	defer span.End()
	span.SetAttributes(
		otel.AttrSourceType.String(source.GetType()),
		otel.AttrSourceLocation.String(source.String()),
	)

	report := &SourceReport{
		Name:     name,
		Type:     source.GetType(),
		Location: source.String(),
	}

	handler, err := l.factory.CreateHandler(source.GetType())
	if err != nil {
		otel.RecordError(span, err)
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}

	fetched, err := handler.FetchData(ctx, source)
	if err != nil {
		if optional && errors.Is(err, ErrSourceNotFound) {
			slog.Warn("Previous document not found, starting from an empty snapshot",
				"source", name,
				"location", report.Location)
			report.Missing = true
			return report, nil, nil
		}
		otel.RecordError(span, err)
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}

	report.Location = fetched.Location
	report.Hash = fetched.Hash
	slog.Debug("Fetched document",
		"source", name,
		"location", fetched.Location,
		"hash", fetched.Hash,
		"bytes", len(fetched.Data))
	return report, fetched.Data, nil
}

// decodeList decodes a JSON array, validating every element against the
// named schema. Elements that fail are logged and counted, not fatal.
func decodeList[T any](
	validator *RecordValidator,
	schema string,
	data []byte,
	source string,
	key func(*T) registry.Key,
) ([]*T, int, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, 0, fmt.Errorf("document must be a JSON array: %w", err)
	}

	items := make([]*T, 0, len(raws))
	rejected := 0
	for i, raw := range raws {
		if err := validator.Validate(schema, raw); err != nil {
			slog.Warn("Rejected malformed record", "source", source, "index", i, "error", err)
			rejected++
			continue
		}
		item := new(T)
		if err := json.Unmarshal(raw, item); err != nil {
			slog.Warn("Rejected undecodable record", "source", source, "index", i, "error", err)
			rejected++
			continue
		}
		slog.Debug("Decoded record", "source", source, "key", key(item))
		items = append(items, item)
	}
	return items, rejected, nil
}

// decodeResults decodes the previous results object in document order
func decodeResults(validator *RecordValidator, data []byte) (*registry.OrderedMap[*registry.TestResult], int, error) {
	raws := registry.NewOrderedMap[json.RawMessage]()
	if err := json.Unmarshal(data, raws); err != nil {
		return nil, 0, fmt.Errorf("document must be a JSON object: %w", err)
	}

	results := registry.NewOrderedMap[*registry.TestResult]()
	rejected := 0
	for key, raw := range raws.All() {
		if _, err := registry.ParseKey(key.String()); err != nil {
			slog.Warn("Rejected result with malformed key", "key", key, "error", err)
			rejected++
			continue
		}
		if err := validator.Validate(SchemaResult, raw); err != nil {
			slog.Warn("Rejected malformed result", "key", key, "error", err)
			rejected++
			continue
		}
		var result registry.TestResult
		if err := json.Unmarshal(raw, &result); err != nil {
			slog.Warn("Rejected undecodable result", "key", key, "error", err)
			rejected++
			continue
		}
		results.Set(key, &result)
	}
	return results, rejected, nil
}

func listingKey(e *registry.Entry) registry.Key {
	if e.Package == nil {
		return registry.Key(e.Name)
	}
	return e.Key()
}
