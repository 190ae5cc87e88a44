// Package registry provides the data model shared by the store test pipeline.
//
// The plugin store publishes four listings: adapters, bots, drivers and
// plugins. Every listing record shares a common set of fields (name,
// description, author, homepage, tags, official flag); adapters, drivers and
// plugins additionally carry package-index fields (project link and module
// name).
//
// # Core Types
//
//   - Entry: a listing record tagged with its Kind. Adapters, bots and drivers
//     are passed through the pipeline as Entries.
//   - StorePlugin: an immutable plugin candidate as listed upstream.
//   - Plugin: the enriched plugin record written to the new store snapshot.
//   - TestResult: the outcome of one validation attempt for one candidate.
//   - Key: the composite "project_link:module_name" identifier used to join
//     the current listing with previous results and plugins.
//
// # Ordering
//
// Outputs must keep the upstream listing order. OrderedMap is an
// insertion-ordered map keyed by Key whose JSON encoding preserves that order:
//
//	results := registry.NewOrderedMap[*registry.TestResult]()
//	results.Set(key, result)
//	data, _ := json.Marshal(results) // keys appear in insertion order
//
// # Test Utilities
//
// NewTestStorePlugin, NewTestPlugin and NewTestResult build realistic records
// with functional options so tests across the repository do not have to
// hand-assemble structs:
//
//	plugin := registry.NewTestStorePlugin("nonebot-plugin-status",
//	    registry.WithModuleName("nonebot_plugin_status"),
//	    registry.WithOfficial(true),
//	)
package registry
