// Package loader reads an asset-graph document off disk and builds the
// assetgraph.Graph the bundler core consumes — the one seam where the
// out-of-scope resolver/transformer stage (§1) is stood in by a static
// YAML fixture, grounded on the teacher's own YAML document loading in
// cmd/kro/internal/loader.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"

	"github.com/dsblv/parcel/internal/assetgraph"
	"github.com/dsblv/parcel/internal/bundlererr"
)

// AssetDoc is one asset entry of a document (§6's input contract).
type AssetDoc struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Size       int64  `json:"size"`
	IsInline   bool   `json:"isInline,omitempty"`
	IsIsolated bool   `json:"isIsolated,omitempty"`
	Env        EnvDoc `json:"env,omitempty"`
}

// EnvDoc mirrors assetgraph.Env's wire shape.
type EnvDoc struct {
	Context      string `json:"context,omitempty"`
	OutputFormat string `json:"outputFormat,omitempty"`
	IsLibrary    bool   `json:"isLibrary,omitempty"`
	IsIsolated   bool   `json:"isIsolated,omitempty"`
}

// TargetDoc mirrors assetgraph.Target's wire shape.
type TargetDoc struct {
	Dist      string `json:"dist,omitempty"`
	Env       EnvDoc `json:"env,omitempty"`
	PublicURL string `json:"publicUrl,omitempty"`
}

// DependencyDoc is one dependency entry of a document. Resolution lists
// the asset ids this dependency resolves to — a document has no live
// resolver, so the listed targets are the resolution, statically.
type DependencyDoc struct {
	ID          string    `json:"id"`
	SourceAsset string    `json:"sourceAsset,omitempty"`
	IsEntry     bool      `json:"isEntry,omitempty"`
	IsAsync     bool      `json:"isAsync,omitempty"`
	IsOptional  bool      `json:"isOptional,omitempty"`
	IsWeak      bool      `json:"isWeak,omitempty"`
	IsDeferred  bool      `json:"isDeferred,omitempty"`
	Target      TargetDoc `json:"target,omitempty"`
	Resolution  []string  `json:"resolution,omitempty"`
}

// Document is the on-disk shape of an asset graph (§6's input contract).
type Document struct {
	Assets       []AssetDoc      `json:"assets"`
	Dependencies []DependencyDoc `json:"dependencies"`
}

// Load reads and parses an asset-graph document from path.
func Load(path string) (*Document, error) {
	ext := filepath.Ext(path)
	if ext != ".yaml" && ext != ".yml" && ext != ".json" {
		return nil, fmt.Errorf("file %q must have a .yaml, .yml or .json extension", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset graph document: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal asset graph document: %w", err)
	}
	return &doc, nil
}

func toEnv(e EnvDoc) assetgraph.Env {
	return assetgraph.NewEnv(e.Context, e.OutputFormat, e.IsLibrary, e.IsIsolated)
}

func toTarget(t TargetDoc) assetgraph.Target {
	return assetgraph.Target{Dist: t.Dist, Env: toEnv(t.Env), PublicURL: t.PublicURL}
}

// Build constructs an assetgraph.Graph from doc. Every dependency's
// resolver is the static Resolution list recorded in the document —
// this is the loader's one substitute for the real out-of-scope
// resolver/transformer stage.
func Build(doc *Document, opts ...assetgraph.Option) (*assetgraph.Graph, error) {
	g := assetgraph.New(opts...)

	for _, a := range doc.Assets {
		if a.ID == "" {
			return nil, bundlererr.Structuralf("loader", "asset document entry missing an id")
		}
		if err := g.AddAsset(&assetgraph.Asset{
			ID:         assetgraph.AssetID(a.ID),
			Type:       a.Type,
			Size:       a.Size,
			IsInline:   a.IsInline,
			IsIsolated: a.IsIsolated,
			Env:        toEnv(a.Env),
		}); err != nil {
			return nil, err
		}
	}

	for _, d := range doc.Dependencies {
		if d.ID == "" {
			return nil, bundlererr.Structuralf("loader", "dependency document entry missing an id")
		}
		resolution := make([]assetgraph.AssetID, len(d.Resolution))
		for i, id := range d.Resolution {
			resolution[i] = assetgraph.AssetID(id)
		}
		resolve := func(_ context.Context, _ *assetgraph.Dependency) ([]assetgraph.AssetID, error) {
			return resolution, nil
		}
		if err := g.AddDependency(&assetgraph.Dependency{
			ID:          assetgraph.DependencyID(d.ID),
			SourceAsset: assetgraph.AssetID(d.SourceAsset),
			IsEntry:     d.IsEntry,
			IsAsync:     d.IsAsync,
			IsOptional:  d.IsOptional,
			IsWeak:      d.IsWeak,
			IsDeferred:  d.IsDeferred,
			Target:      toTarget(d.Target),
		}, resolve); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// LoadGraph loads and builds in one step.
func LoadGraph(path string, opts ...assetgraph.Option) (*assetgraph.Graph, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Build(doc, opts...)
}
