package bundlegraph

import (
	"context"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/dsblv/parcel/internal/assetgraph"
	"github.com/dsblv/parcel/internal/bundlererr"
)

func (g *Graph) attachAsset(asset assetgraph.AssetID, bundle *Bundle) {
	bundle.Assets.Insert(asset)
	if g.assetBundles[asset] == nil {
		g.assetBundles[asset] = sets.New[BundleID]()
	}
	g.assetBundles[asset].Insert(bundle.ID)
	for _, dep := range g.Assets.DependenciesOf(asset) {
		g.RecordDependencyBundle(dep.ID, bundle.ID)
	}
}

func (g *Graph) detachAsset(asset assetgraph.AssetID, bundle *Bundle) {
	bundle.Assets.Delete(asset)
	if set := g.assetBundles[asset]; set != nil {
		set.Delete(bundle.ID)
	}
	for _, dep := range g.Assets.DependenciesOf(asset) {
		if set := g.depBundles[dep.ID]; set != nil {
			set.Delete(bundle.ID)
		}
	}
}

// isSplitPoint reports whether descending from dep into target would
// cross one of the boundaries §4.2 calls a split point: an async
// dependency, an isolated or inline target asset, or a type change
// relative to bundle — each of those gets its own bundle (and possibly
// its own bundle-group) elsewhere, so addAssetGraphToBundle must not
// pull it in here.
func isSplitPoint(dep *assetgraph.Dependency, target *assetgraph.Asset, bundle *Bundle) bool {
	if dep.IsAsync {
		return true
	}
	if target.IsIsolated || target.IsInline {
		return true
	}
	if target.Type != bundle.Type {
		return true
	}
	return false
}

// AddAssetGraphToBundle attaches asset and every asset transitively
// reachable from it — without crossing a split point — to bundle.
// Idempotent per asset per bundle (§4.2).
func (g *Graph) AddAssetGraphToBundle(ctx context.Context, asset assetgraph.AssetID, bundle *Bundle) error {
	hasEntry := false
	for _, e := range bundle.EntryAssets {
		if e == asset {
			hasEntry = true
			break
		}
	}
	if !hasEntry {
		bundle.EntryAssets = append(bundle.EntryAssets, asset)
	}

	visited := sets.New[assetgraph.AssetID]()
	var walk func(id assetgraph.AssetID) error
	walk = func(id assetgraph.AssetID) error {
		if visited.Has(id) {
			return nil
		}
		visited.Insert(id)

		a, ok := g.Assets.Asset(id)
		if !ok {
			return bundlererr.Structuralf("addAssetGraphToBundle", "unknown asset %q", id)
		}
		if a.Type != bundle.Type {
			return bundlererr.Structuralf("addAssetGraphToBundle", "asset %q has type %q, bundle %q has type %q", id, a.Type, bundle.ID, bundle.Type)
		}
		g.attachAsset(id, bundle)

		for _, dep := range g.Assets.DependenciesOf(id) {
			if dep.IsAsync {
				continue
			}
			targets, err := g.Assets.Resolve(ctx, dep.ID)
			if err != nil {
				return err
			}
			for _, t := range targets {
				ta, ok := g.Assets.Asset(t)
				if !ok {
					return bundlererr.Structuralf("addAssetGraphToBundle", "dependency %q resolves to unknown asset %q", dep.ID, t)
				}
				if isSplitPoint(dep, ta, bundle) {
					continue
				}
				if err := walk(t); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(asset)
}

// reachableWithinBundle computes the assets reachable from root using
// only edges that stay inside bundle — used by RemoveAssetGraphFromBundle
// to figure out what a removal would actually free up.
func (g *Graph) reachableWithinBundle(ctx context.Context, root assetgraph.AssetID, bundle *Bundle) (sets.Set[assetgraph.AssetID], error) {
	visited := sets.New[assetgraph.AssetID]()
	var walk func(id assetgraph.AssetID) error
	walk = func(id assetgraph.AssetID) error {
		if visited.Has(id) || !bundle.Assets.Has(id) {
			return nil
		}
		visited.Insert(id)
		for _, dep := range g.Assets.DependenciesOf(id) {
			if dep.IsAsync {
				continue
			}
			targets, err := g.Assets.Resolve(ctx, dep.ID)
			if err != nil {
				return err
			}
			for _, t := range targets {
				if err := walk(t); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return visited, nil
}

// reachableAvoiding is reachableWithinBundle but treats avoid as a cut
// vertex: it is never expanded past and never counted as reached (when
// root itself equals avoid the result is empty), because the caller is about to
// evict avoid's whole subgraph and anything only reachable through it
// should not count as "kept".
func (g *Graph) reachableAvoiding(ctx context.Context, root assetgraph.AssetID, bundle *Bundle, avoid assetgraph.AssetID) (sets.Set[assetgraph.AssetID], error) {
	visited := sets.New[assetgraph.AssetID]()
	var walk func(id assetgraph.AssetID) error
	walk = func(id assetgraph.AssetID) error {
		if visited.Has(id) || !bundle.Assets.Has(id) || id == avoid {
			return nil
		}
		visited.Insert(id)
		for _, dep := range g.Assets.DependenciesOf(id) {
			if dep.IsAsync {
				continue
			}
			targets, err := g.Assets.Resolve(ctx, dep.ID)
			if err != nil {
				return err
			}
			for _, t := range targets {
				if err := walk(t); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return visited, nil
}

// RemoveAssetGraphFromBundle is the inverse of AddAssetGraphToBundle: it
// removes asset's subgraph from bundle, except whatever is still
// reachable from one of bundle's other entries without passing through
// asset (§4.2).
func (g *Graph) RemoveAssetGraphFromBundle(ctx context.Context, asset assetgraph.AssetID, bundle *Bundle) error {
	mine, err := g.reachableWithinBundle(ctx, asset, bundle)
	if err != nil {
		return err
	}

	keep := sets.New[assetgraph.AssetID]()
	for _, entry := range bundle.EntryAssets {
		if entry == asset {
			continue
		}
		reach, err := g.reachableAvoiding(ctx, entry, bundle, asset)
		if err != nil {
			return err
		}
		keep = keep.Union(reach)
	}

	for id := range mine {
		if keep.Has(id) {
			continue
		}
		g.detachAsset(id, bundle)
	}

	for i, e := range bundle.EntryAssets {
		if e == asset {
			bundle.EntryAssets = append(bundle.EntryAssets[:i], bundle.EntryAssets[i+1:]...)
			break
		}
	}
	return nil
}

// InternalizeAsyncDependency marks dep as satisfied inside bundle without
// a runtime loader call (§4.2, used by optimizer pass 5).
func (g *Graph) InternalizeAsyncDependency(bundle BundleID, dep assetgraph.DependencyID) {
	if g.internalized[bundle] == nil {
		g.internalized[bundle] = sets.New[assetgraph.DependencyID]()
	}
	g.internalized[bundle].Insert(dep)
}

// IsInternalized reports whether dep was internalized within bundle.
func (g *Graph) IsInternalized(bundle BundleID, dep assetgraph.DependencyID) bool {
	set := g.internalized[bundle]
	return set != nil && set.Has(dep)
}

// RemoveBundleGroup removes group and, per §4.2, cascades to remove any
// bundle that is no longer a member of any group afterward.
func (g *Graph) RemoveBundleGroup(group GroupID) {
	grp, ok := g.groups[group]
	if !ok {
		return
	}

	members := append([]BundleID(nil), grp.Bundles...)
	delete(g.groups, group)
	delete(g.groupParents, group)
	g.groupOrder = removeID(g.groupOrder, group)

	for _, bundleID := range members {
		if set := g.bundleGroups[bundleID]; set != nil {
			set.Delete(group)
		}
		if g.bundleGroups[bundleID] == nil || g.bundleGroups[bundleID].Len() == 0 {
			g.removeBundle(bundleID)
		}
	}
}

func (g *Graph) removeBundle(id BundleID) {
	bundle, ok := g.bundles[id]
	if !ok {
		return
	}
	for asset := range bundle.Assets {
		if set := g.assetBundles[asset]; set != nil {
			set.Delete(id)
		}
	}
	delete(g.bundles, id)
	delete(g.bundleGroups, id)
	delete(g.bundleRefs, id)
	delete(g.bundleRefsBy, id)
	delete(g.internalized, id)
	g.bundleOrder = removeID(g.bundleOrder, id)

	for dep, set := range g.depBundles {
		set.Delete(id)
		if set.Len() == 0 {
			delete(g.depBundles, dep)
		}
	}
	for from, set := range g.bundleRefs {
		set.Delete(id)
		if set.Len() == 0 {
			delete(g.bundleRefs, from)
		}
	}
	for to, set := range g.bundleRefsBy {
		set.Delete(id)
		if set.Len() == 0 {
			delete(g.bundleRefsBy, to)
		}
	}
	for _, grp := range g.groups {
		grp.remove(id)
	}
	for group, set := range g.groupParents {
		set.Delete(id)
		if set.Len() == 0 {
			delete(g.groupParents, group)
		}
	}
}

func removeID[T comparable](ids []T, target T) []T {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
