package bundlegraph

import (
	"context"
	"fmt"
	"sort"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/dsblv/parcel/internal/assetgraph"
	"github.com/dsblv/parcel/internal/bundlererr"
)

// AssetReference records that dependency D, wherever it's emitted, needs
// its require() rewritten because it resolves to an asset living in a
// different bundle than D's origin (§3).
type AssetReference struct {
	Dependency assetgraph.DependencyID
	Asset      assetgraph.AssetID
}

// Graph is the mutable BundleGraph overlay described in §4.2.
type Graph struct {
	Assets *assetgraph.Graph

	bundles     map[BundleID]*Bundle
	bundleOrder []BundleID
	nextBundle  int

	groups     map[GroupID]*BundleGroup
	groupOrder []GroupID
	nextGroup  int

	// membership: bundle -> groups it belongs to.
	bundleGroups map[BundleID]sets.Set[GroupID]

	// groupParents: bundles whose code triggered a group's creation.
	groupParents map[GroupID]sets.Set[BundleID]

	// containment: asset -> bundles it is currently attached to.
	assetBundles map[assetgraph.AssetID]sets.Set[BundleID]

	// bundle reference: from -> {to}. "A's code causes B to load."
	bundleRefs map[BundleID]sets.Set[BundleID]
	// reverse of bundleRefs, for ancestor expansion.
	bundleRefsBy map[BundleID]sets.Set[BundleID]

	// dependency -> bundles containing that dependency's source asset.
	depBundles map[assetgraph.DependencyID]sets.Set[BundleID]

	assetRefs []AssetReference

	// internalized[bundle][dep] marks an async dependency satisfied
	// inside bundle without a loader call.
	internalized map[BundleID]sets.Set[assetgraph.DependencyID]
}

// New returns an empty BundleGraph over the given (read-only) asset
// graph.
func New(assets *assetgraph.Graph) *Graph {
	return &Graph{
		Assets:       assets,
		bundles:      make(map[BundleID]*Bundle),
		groups:       make(map[GroupID]*BundleGroup),
		bundleGroups: make(map[BundleID]sets.Set[GroupID]),
		groupParents: make(map[GroupID]sets.Set[BundleID]),
		assetBundles: make(map[assetgraph.AssetID]sets.Set[BundleID]),
		bundleRefs:   make(map[BundleID]sets.Set[BundleID]),
		bundleRefsBy: make(map[BundleID]sets.Set[BundleID]),
		depBundles:   make(map[assetgraph.DependencyID]sets.Set[BundleID]),
		internalized: make(map[BundleID]sets.Set[assetgraph.DependencyID]),
	}
}

// CreateBundleGroup creates a new bundle-group triggered by dep, loading
// to target. parent, if non-empty, is the bundle whose code triggered
// the group (absent for top-level entry groups, per invariant 5 in §8).
func (g *Graph) CreateBundleGroup(dep assetgraph.DependencyID, target assetgraph.Target, parent BundleID) *BundleGroup {
	id := GroupID(fmt.Sprintf("group:%d", g.nextGroup))
	g.nextGroup++
	group := newBundleGroup(id, dep, target)
	g.groups[id] = group
	g.groupOrder = append(g.groupOrder, id)

	g.groupParents[id] = sets.New[BundleID]()
	if parent != "" {
		g.groupParents[id].Insert(parent)
	}
	return group
}

// CreateBundle creates a new bundle. Exactly one of opts.EntryAsset or
// opts.UniqueKey must be set.
func (g *Graph) CreateBundle(opts BundleOptions) (*Bundle, error) {
	if opts.EntryAsset == nil && opts.UniqueKey == "" {
		return nil, bundlererr.Structuralf("bundlegraph", "CreateBundle requires an entry asset or a unique key")
	}
	id := BundleID(fmt.Sprintf("bundle:%d", g.nextBundle))
	g.nextBundle++

	b := newBundle(id, opts)
	g.bundles[id] = b
	g.bundleOrder = append(g.bundleOrder, id)
	g.bundleGroups[id] = sets.New[GroupID]()
	return b, nil
}

// AddBundleToBundleGroup attaches bundle to group. Idempotent.
func (g *Graph) AddBundleToBundleGroup(bundle *Bundle, group *BundleGroup) {
	if group.add(bundle.ID) {
		g.bundleGroups[bundle.ID].Insert(group.ID)
	}
}

// AddBundleGroupParent records that parent's code is responsible for
// group being reachable — used by getParentBundlesOfBundleGroup and by
// the ancestor-bundle expansion in isAssetInAncestorBundles.
func (g *Graph) AddBundleGroupParent(group GroupID, parent BundleID) {
	if g.groupParents[group] == nil {
		g.groupParents[group] = sets.New[BundleID]()
	}
	g.groupParents[group].Insert(parent)
}

// CreateAssetReference records that dep's require() must be rewritten to
// point at a different bundle than its origin, because it resolves to
// asset.
func (g *Graph) CreateAssetReference(dep assetgraph.DependencyID, asset assetgraph.AssetID) {
	g.assetRefs = append(g.assetRefs, AssetReference{Dependency: dep, Asset: asset})
}

// AssetReferences returns every recorded asset reference, in creation
// order.
func (g *Graph) AssetReferences() []AssetReference {
	return append([]AssetReference(nil), g.assetRefs...)
}

// CreateBundleReference records that from's code causes to to load.
func (g *Graph) CreateBundleReference(from, to BundleID) {
	if g.bundleRefs[from] == nil {
		g.bundleRefs[from] = sets.New[BundleID]()
	}
	if g.bundleRefs[from].Has(to) {
		return
	}
	g.bundleRefs[from].Insert(to)
	if g.bundleRefsBy[to] == nil {
		g.bundleRefsBy[to] = sets.New[BundleID]()
	}
	g.bundleRefsBy[to].Insert(from)
}

// RecordDependencyBundle indexes that dep's source asset currently lives
// in bundle, for findBundlesWithDependency.
func (g *Graph) RecordDependencyBundle(dep assetgraph.DependencyID, bundle BundleID) {
	if g.depBundles[dep] == nil {
		g.depBundles[dep] = sets.New[BundleID]()
	}
	g.depBundles[dep].Insert(bundle)
}

// Bundle looks up a bundle by id.
func (g *Graph) Bundle(id BundleID) (*Bundle, bool) {
	b, ok := g.bundles[id]
	return b, ok
}

// BundleGroupByID looks up a group by id.
func (g *Graph) BundleGroupByID(id GroupID) (*BundleGroup, bool) {
	group, ok := g.groups[id]
	return group, ok
}

// Bundles returns every bundle in creation order.
func (g *Graph) Bundles() []*Bundle {
	out := make([]*Bundle, 0, len(g.bundleOrder))
	for _, id := range g.bundleOrder {
		if b, ok := g.bundles[id]; ok {
			out = append(out, b)
		}
	}
	return out
}

// BundleGroups returns every bundle-group in creation order.
func (g *Graph) BundleGroups() []*BundleGroup {
	out := make([]*BundleGroup, 0, len(g.groupOrder))
	for _, id := range g.groupOrder {
		if group, ok := g.groups[id]; ok {
			out = append(out, group)
		}
	}
	return out
}

// FindBundlesWithAsset returns the bundles currently containing asset,
// in bundle-creation order.
func (g *Graph) FindBundlesWithAsset(asset assetgraph.AssetID) []*Bundle {
	ids := g.assetBundles[asset]
	return g.sortedBundles(ids)
}

// FindBundlesWithDependency returns the bundles whose source asset for
// dep is currently attached, in creation order.
func (g *Graph) FindBundlesWithDependency(dep assetgraph.DependencyID) []*Bundle {
	return g.sortedBundles(g.depBundles[dep])
}

func (g *Graph) sortedBundles(ids sets.Set[BundleID]) []*Bundle {
	if ids.Len() == 0 {
		return nil
	}
	out := make([]*Bundle, 0, ids.Len())
	for _, id := range g.bundleOrder {
		if ids.Has(id) {
			out = append(out, g.bundles[id])
		}
	}
	return out
}

// GetBundleGroupsContainingBundle returns the groups bundle belongs to,
// in group-creation order.
func (g *Graph) GetBundleGroupsContainingBundle(bundle BundleID) []*BundleGroup {
	ids := g.bundleGroups[bundle]
	out := make([]*BundleGroup, 0, ids.Len())
	for _, id := range g.groupOrder {
		if ids.Has(id) {
			out = append(out, g.groups[id])
		}
	}
	return out
}

// GetBundlesInBundleGroup returns the member bundles of group, in
// group-local (load) order.
func (g *Graph) GetBundlesInBundleGroup(group GroupID) []*Bundle {
	grp, ok := g.groups[group]
	if !ok {
		return nil
	}
	out := make([]*Bundle, 0, len(grp.Bundles))
	for _, id := range grp.Bundles {
		out = append(out, g.bundles[id])
	}
	return out
}

// GetReferencedBundles returns the bundles directly referenced by
// bundle via CreateBundleReference, in lexicographic id order (matches
// §6's determinism requirement for bucket/candidate ordering).
func (g *Graph) GetReferencedBundles(bundle BundleID) []*Bundle {
	refs := g.bundleRefs[bundle]
	if refs.Len() == 0 {
		return nil
	}
	ids := refs.UnsortedList()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*Bundle, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.bundles[id])
	}
	return out
}

// GetSiblingBundles returns every other bundle that shares at least one
// bundle-group with bundle.
func (g *Graph) GetSiblingBundles(bundle BundleID) []*Bundle {
	siblings := sets.New[BundleID]()
	for _, group := range g.GetBundleGroupsContainingBundle(bundle) {
		for _, id := range group.Bundles {
			if id != bundle {
				siblings.Insert(id)
			}
		}
	}
	return g.sortedBundles(siblings)
}

// GetParentBundlesOfBundleGroup returns the bundles whose code triggered
// group, in bundle-creation order.
func (g *Graph) GetParentBundlesOfBundleGroup(group GroupID) []*Bundle {
	return g.sortedBundles(g.groupParents[group])
}

// GetTotalSize returns the byte size of the subgraph rooted at asset,
// reachable without leaving bundle (§4.2's getTotalSize) — not just
// asset's own size. Pass 4 relies on this summing the whole subgraph it
// skips over with SkipChildren, so a shared subgraph of several small
// assets is weighed by its total, not by its root alone.
func (g *Graph) GetTotalSize(ctx context.Context, asset assetgraph.AssetID, bundle *Bundle) (int64, error) {
	ids, err := g.reachableWithinBundle(ctx, asset, bundle)
	if err != nil {
		return 0, err
	}
	var total int64
	for id := range ids {
		if a, ok := g.Assets.Asset(id); ok {
			total += a.Size
		}
	}
	return total, nil
}

// GetDependencies returns the dependencies whose source is asset.
func (g *Graph) GetDependencies(asset assetgraph.AssetID) []*assetgraph.Dependency {
	return g.Assets.DependenciesOf(asset)
}

// ExternalResolution describes what an external (non-bundled) dependency
// resolves to, per resolveExternalDependency in §4.2.
type ExternalResolution struct {
	Kind  string // "bundle_group" | "asset"
	Group GroupID
	Asset assetgraph.AssetID
}

// ResolveExternalDependency reports what dep resolves to when it isn't
// resolvable as ordinary in-bundle content — an async import resolves to
// the bundle-group it opened; anything else resolves to its (unique)
// target asset. Asset is left empty when dep does not resolve to exactly
// one asset.
func (g *Graph) ResolveExternalDependency(dep *assetgraph.Dependency, group GroupID) ExternalResolution {
	if dep.IsAsync && group != "" {
		return ExternalResolution{Kind: "bundle_group", Group: group}
	}
	res := ExternalResolution{Kind: "asset"}
	if assets, err := g.Assets.Resolve(context.Background(), dep.ID); err == nil && len(assets) == 1 {
		res.Asset = assets[0]
	}
	return res
}
