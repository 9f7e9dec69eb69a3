// Package bundlegraph implements BundleGraph (§4.2): the mutable overlay
// graph the Bundler writes into and the Optimizer mutates in place —
// bundles, bundle-groups, membership, references, and the ancestor
// queries the optimizer's dedup/sharing passes depend on.
package bundlegraph

import (
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/dsblv/parcel/internal/assetgraph"
)

// BundleID identifies a Bundle within a Graph.
type BundleID string

// GroupID identifies a BundleGroup within a Graph.
type GroupID string

// Bundle is an emittable artifact grouping assets of one type, per §3.
type Bundle struct {
	ID   BundleID
	Type string
	Env  assetgraph.Env

	Target assetgraph.Target

	IsEntry      bool
	IsInline     bool
	IsSplittable bool

	// EntryAssets is the ordered sequence of root assets whose reachable
	// subgraphs comprise this bundle.
	EntryAssets []assetgraph.AssetID

	// Assets is the set of all assets currently attached to this bundle.
	Assets sets.Set[assetgraph.AssetID]

	// UniqueKey identifies a bundle that has no single entry asset (a
	// shared bundle extracted by pass 4). Empty for entry-asset bundles.
	UniqueKey string
}

// BundleOptions configures CreateBundle. Exactly one of EntryAsset or
// UniqueKey must be set, per §4.2.
type BundleOptions struct {
	EntryAsset *assetgraph.AssetID
	UniqueKey  string

	Type   string
	Env    assetgraph.Env
	Target assetgraph.Target

	IsEntry      bool
	IsInline     bool
	IsSplittable bool
}

func newBundle(id BundleID, opts BundleOptions) *Bundle {
	b := &Bundle{
		ID:           id,
		Type:         opts.Type,
		Env:          opts.Env,
		Target:       opts.Target,
		IsEntry:      opts.IsEntry,
		IsInline:     opts.IsInline,
		IsSplittable: opts.IsSplittable,
		Assets:       sets.New[assetgraph.AssetID](),
		UniqueKey:    opts.UniqueKey,
	}
	if opts.EntryAsset != nil {
		b.EntryAssets = append(b.EntryAssets, *opts.EntryAsset)
	}
	return b
}

// MainEntry returns the bundle's primary entry asset (the first one
// recorded), or "" if the bundle has none (a pure shared bundle).
func (b *Bundle) MainEntry() (assetgraph.AssetID, bool) {
	if len(b.EntryAssets) == 0 {
		return "", false
	}
	return b.EntryAssets[0], true
}

// BundleGroup is an atomic loadable unit — one HTML entry or one async
// import site, per §3.
type BundleGroup struct {
	ID GroupID

	// Dependency is the dependency that triggered this group's creation.
	Dependency assetgraph.DependencyID
	Target     assetgraph.Target

	// Bundles is the ordered set of member bundles.
	Bundles []BundleID

	bundleSet sets.Set[BundleID]
}

func newBundleGroup(id GroupID, dep assetgraph.DependencyID, target assetgraph.Target) *BundleGroup {
	return &BundleGroup{
		ID:         id,
		Dependency: dep,
		Target:     target,
		bundleSet:  sets.New[BundleID](),
	}
}

func (g *BundleGroup) has(b BundleID) bool { return g.bundleSet.Has(b) }

func (g *BundleGroup) add(b BundleID) bool {
	if g.bundleSet.Has(b) {
		return false
	}
	g.bundleSet.Insert(b)
	g.Bundles = append(g.Bundles, b)
	return true
}

func (g *BundleGroup) remove(b BundleID) {
	if !g.bundleSet.Has(b) {
		return
	}
	g.bundleSet.Delete(b)
	for i, id := range g.Bundles {
		if id == b {
			g.Bundles = append(g.Bundles[:i], g.Bundles[i+1:]...)
			break
		}
	}
}
