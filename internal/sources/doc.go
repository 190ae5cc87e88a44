// Package sources loads the store listings and the previous run's snapshot.
//
// Each document is located by a config.SourceConfig and read through a
// SourceHandler:
//   - fileSourceHandler reads a local file
//   - urlSourceHandler downloads it with an httpclient.Client
//   - gitSourceHandler clones a repository in memory and reads a path from
//     it; clones are shared per repository and ref
//
// SnapshotLoader reads all six documents, validates every entry against an
// embedded JSON Schema and decodes the survivors into a registry.Snapshot.
// Malformed entries are dropped and counted. A previous document that does
// not exist yet yields an empty previous snapshot.
package sources
