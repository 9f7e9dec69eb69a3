package bundlegraph

import (
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/dsblv/parcel/internal/assetgraph"
)

// ancestorBundlesInGroup returns the bundles guaranteed to load before
// bundle whenever it loads as a member of group: bundles at an earlier
// position in the group, the bundles that caused the group to exist,
// and — recursively — anything that in turn references one of those
// (§4.2's "co-members with earlier position" plus "bundle references,
// recursively").
func (g *Graph) ancestorBundlesInGroup(bundle BundleID, group GroupID) sets.Set[BundleID] {
	grp, ok := g.groups[group]
	if !ok {
		return sets.New[BundleID]()
	}

	pos := -1
	for i, id := range grp.Bundles {
		if id == bundle {
			pos = i
			break
		}
	}

	frontier := sets.New[BundleID]()
	if pos > 0 {
		frontier.Insert(grp.Bundles[:pos]...)
	}
	for parent := range g.groupParents[group] {
		frontier.Insert(parent)
	}

	visited := sets.New[BundleID]()
	queue := frontier.UnsortedList()
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited.Has(id) {
			continue
		}
		visited.Insert(id)
		for ref := range g.bundleRefsBy[id] {
			if !visited.Has(ref) {
				queue = append(queue, ref)
			}
		}
	}
	return visited
}

// IsAssetInAncestorBundles implements §4.2's central query: asset must
// already be guaranteed loaded, in every bundle-group bundle belongs to,
// by some ancestor bundle — otherwise dedup would drop a copy that isn't
// actually guaranteed available.
func (g *Graph) IsAssetInAncestorBundles(bundle BundleID, asset assetgraph.AssetID) bool {
	groups := g.bundleGroups[bundle]
	if groups.Len() == 0 {
		return false
	}

	var intersection sets.Set[assetgraph.AssetID]
	for group := range groups {
		ancestors := g.ancestorBundlesInGroup(bundle, group)
		assetsInGroup := sets.New[assetgraph.AssetID]()
		for ancestor := range ancestors {
			if b, ok := g.bundles[ancestor]; ok {
				assetsInGroup = assetsInGroup.Union(b.Assets)
			}
		}
		if intersection == nil {
			intersection = assetsInGroup
		} else {
			intersection = intersection.Intersection(assetsInGroup)
		}
		if intersection.Len() == 0 {
			return false
		}
	}
	return intersection.Has(asset)
}

// IsAssetReferencedByDependant reports whether some dependency whose
// resolution includes asset originates from a bundle other than bundle —
// i.e. whether removing asset from bundle would still leave it reachable
// through an asset reference rewrite rather than going missing.
func (g *Graph) IsAssetReferencedByDependant(bundle BundleID, asset assetgraph.AssetID) bool {
	for _, ref := range g.assetRefs {
		if ref.Asset != asset {
			continue
		}
		dep, ok := g.Assets.Dependency(ref.Dependency)
		if !ok {
			continue
		}
		for _, b := range g.FindBundlesWithAsset(dep.SourceAsset) {
			if b.ID != bundle {
				return true
			}
		}
	}
	return false
}
