package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Common holds the fields shared by every listing kind
type Common struct {
	Name       string `json:"name"`
	Desc       string `json:"desc"`
	Author     string `json:"author"`
	Homepage   string `json:"homepage"`
	Tags       []Tag  `json:"tags"`
	IsOfficial bool   `json:"is_official"`
}

// Package holds the package index fields of adapters, drivers and plugins
type Package struct {
	ModuleName  string `json:"module_name"`
	ProjectLink string `json:"project_link"`
}

// Key returns the composite key of the package
func (p Package) Key() Key {
	return NewKey(p.ProjectLink, p.ModuleName)
}

// Entry is a listing record of any kind. Adapters, bots and drivers are not
// tested and are written back exactly as they were read, so the raw document
// is kept next to the decoded fields.
type Entry struct {
	Kind Kind `json:"-"`
	*Package
	Common

	raw json.RawMessage
}

// NewEntry creates an entry from decoded fields
func NewEntry(kind Kind, pkg *Package, common Common) *Entry {
	return &Entry{Kind: kind, Package: pkg, Common: common}
}

type entryFields struct {
	*Package
	Common
}

// UnmarshalJSON decodes the record and keeps its raw form
func (e *Entry) UnmarshalJSON(data []byte) error {
	var fields entryFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	e.Package = fields.Package
	e.Common = fields.Common
	e.raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	return nil
}

// MarshalJSON writes the raw record when the entry was decoded from a
// document, and the decoded fields otherwise
func (e *Entry) MarshalJSON() ([]byte, error) {
	if len(e.raw) > 0 {
		return e.raw, nil
	}
	return json.Marshal(entryFields{Package: e.Package, Common: e.Common})
}

// StorePlugin is a plugin as listed in the upstream store. It is never
// modified by the pipeline.
type StorePlugin struct {
	Package
	Common
	SupportedAdapters []string `json:"supported_adapters"`
}

// Metadata is the metadata a plugin reports about itself once loaded
type Metadata struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Usage             string   `json:"usage"`
	Type              string   `json:"type"`
	Homepage          string   `json:"homepage"`
	SupportedAdapters []string `json:"supported_adapters"`
}

// Plugin is the enriched plugin record written to the new store snapshot
type Plugin struct {
	Package
	Common
	Type              string   `json:"type"`
	SupportedAdapters []string `json:"supported_adapters"`
	Valid             bool     `json:"valid"`
	Time              string   `json:"time"`
	Version           string   `json:"version"`
	SkipTest          bool     `json:"skip_test"`
}

// NewPlugin creates a plugin record carrying the listing fields of a store plugin
func NewPlugin(sp *StorePlugin) *Plugin {
	plugin := &Plugin{
		Package: sp.Package,
		Common:  sp.Common,
	}
	if sp.SupportedAdapters != nil {
		plugin.SupportedAdapters = append([]string{}, sp.SupportedAdapters...)
	}
	if sp.Tags != nil {
		plugin.Tags = append([]Tag{}, sp.Tags...)
	}
	return plugin
}

// ApplyMetadata overlays runtime-reported metadata onto the plugin record
func (p *Plugin) ApplyMetadata(md *Metadata) {
	if md == nil {
		return
	}
	p.Name = md.Name
	p.Desc = md.Description
	p.Homepage = md.Homepage
	p.Type = md.Type
	p.SupportedAdapters = md.SupportedAdapters
}

// Metadata returns the metadata recorded in the plugin
func (p *Plugin) Metadata() *Metadata {
	return &Metadata{
		Name:              p.Name,
		Description:       p.Desc,
		Type:              p.Type,
		Homepage:          p.Homepage,
		SupportedAdapters: p.SupportedAdapters,
	}
}

// Results holds the three checks of a test run
type Results struct {
	Validation bool `json:"validation"`
	Load       bool `json:"load"`
	Metadata   bool `json:"metadata"`
}

// Inputs holds what a test run was given
type Inputs struct {
	Config string `json:"config"`
}

// Outputs holds the diagnostics of a test run
type Outputs struct {
	Validation []string  `json:"validation"`
	Load       string    `json:"load"`
	Metadata   *Metadata `json:"metadata"`
}

// TestResult is the outcome of one validation attempt
type TestResult struct {
	Time    string  `json:"time"`
	Version string  `json:"version"`
	Results Results `json:"results"`
	Inputs  Inputs  `json:"inputs"`
	Outputs Outputs `json:"outputs"`
}

// Passed reports whether every check of the attempt passed
func (r *TestResult) Passed() bool {
	return r.Results.Validation && r.Results.Load && r.Results.Metadata
}

// String returns a short human readable summary
func (r *TestResult) String() string {
	return fmt.Sprintf("version=%s validation=%t load=%t metadata=%t",
		r.Version, r.Results.Validation, r.Results.Load, r.Results.Metadata)
}
