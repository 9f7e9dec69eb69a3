// Package optimizer implements the Optimizer's passes 2-5 (§4.4):
// reparenting splittable entries, ancestor dedup, shared-bundle
// extraction, and async internalization. Each pass mutates the
// BundleGraph produced by package bundler in place and assumes the
// invariants of its predecessors.
package optimizer

import (
	"context"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"github.com/samber/lo"
	"golang.org/x/exp/maps"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/dsblv/parcel/internal/assetgraph"
	"github.com/dsblv/parcel/internal/bundlererr"
	"github.com/dsblv/parcel/internal/bundlegraph"
	"github.com/dsblv/parcel/internal/config"
	"github.com/dsblv/parcel/internal/dag"
)

// Option configures a Run call. The core packages never construct their
// own logger (§10.1); Run defaults to logr.Discard().
type Option func(*runSettings)

type runSettings struct {
	log logr.Logger
}

// WithLogger injects a logger Run uses to report pass-level decisions —
// most usefully resource-limit declines, which are otherwise silent
// per §7.
func WithLogger(log logr.Logger) Option {
	return func(s *runSettings) { s.log = log }
}

// Run executes passes 2 through 5, in the fixed order §5 requires, and
// discards the resulting Stats. Use RunWithStats to inspect what each
// pass actually did.
func Run(ctx context.Context, bg *bundlegraph.Graph, cfg config.Tunables, opts ...Option) error {
	_, err := RunWithStats(ctx, bg, cfg, opts...)
	return err
}

// RunWithStats is Run, but also returns the accumulated Stats.
func RunWithStats(ctx context.Context, bg *bundlegraph.Graph, cfg config.Tunables, opts ...Option) (*Stats, error) {
	settings := &runSettings{log: logr.Discard()}
	for _, opt := range opts {
		opt(settings)
	}
	stats := &Stats{}

	if err := pass2ReparentSplittableEntries(ctx, bg, cfg, stats, settings.log); err != nil {
		return stats, err
	}
	if err := pass3AncestorDedup(ctx, bg, cfg, stats); err != nil {
		return stats, err
	}
	if err := pass4ExtractSharedBundles(ctx, bg, cfg, stats, settings.log); err != nil {
		return stats, err
	}
	if err := pass5InternalizeAsync(ctx, bg, stats); err != nil {
		return stats, err
	}
	settings.log.V(1).Info("optimizer passes complete",
		"reparented", stats.Reparented,
		"ancestorDeduped", stats.AncestorDeduped,
		"sharedBundlesExtracted", stats.SharedBundlesExtracted,
		"asyncInternalized", stats.AsyncInternalized,
		"groupsRemoved", stats.GroupsRemoved,
		"declined", len(stats.Declined))
	return stats, nil
}

// pass2ReparentSplittableEntries implements §4.4.1: once an asset has
// its own independent bundle, other bundles holding a copy of it can
// load that bundle instead of carrying the copy.
func pass2ReparentSplittableEntries(ctx context.Context, bg *bundlegraph.Graph, cfg config.Tunables, stats *Stats, log logr.Logger) error {
	for _, b := range bg.Bundles() {
		if !b.IsSplittable || b.IsInline {
			continue
		}
		entry, ok := b.MainEntry()
		if !ok {
			continue
		}

		additions := referencedSiblings(bg, b)
		additions = append(additions, b)

		for _, c := range bg.Bundles() {
			if c.ID == b.ID || c.IsEntry || c.IsInline || !c.IsSplittable {
				continue
			}
			if !c.Assets.Has(entry) {
				continue
			}

			groups := bg.GetBundleGroupsContainingBundle(c.ID)
			if !everyGroupHasRoom(groups, additions, cfg.MaxParallelRequests) {
				stats.decline("optimizer.pass2", "no group containing "+string(c.ID)+" has room for "+string(b.ID))
				log.V(1).Info("pass 2 declined reparenting", "bundle", b.ID, "contains", c.ID)
				continue
			}

			if err := bg.RemoveAssetGraphFromBundle(ctx, entry, c); err != nil {
				return err
			}
			for _, group := range groups {
				for _, add := range additions {
					bg.AddBundleToBundleGroup(add, group)
				}
			}
			stats.Reparented++
		}
	}
	return nil
}

// referencedSiblings returns b's referenced bundles that also share a
// bundle-group with b and aren't inline — the "B's non-inline referenced
// siblings" of §4.4.1.
func referencedSiblings(bg *bundlegraph.Graph, b *bundlegraph.Bundle) []*bundlegraph.Bundle {
	siblingIDs := sets.New[bundlegraph.BundleID]()
	for _, s := range bg.GetSiblingBundles(b.ID) {
		siblingIDs.Insert(s.ID)
	}
	var out []*bundlegraph.Bundle
	for _, ref := range bg.GetReferencedBundles(b.ID) {
		if siblingIDs.Has(ref.ID) && !ref.IsInline {
			out = append(out, ref)
		}
	}
	return out
}

func everyGroupHasRoom(groups []*bundlegraph.BundleGroup, additions []*bundlegraph.Bundle, max int) bool {
	for _, group := range groups {
		present := sets.New[bundlegraph.BundleID]()
		for _, id := range group.Bundles {
			present.Insert(id)
		}
		need := 0
		for _, add := range additions {
			if !present.Has(add.ID) {
				need++
			}
		}
		if len(group.Bundles)+need > max {
			return false
		}
	}
	return true
}

// pass3AncestorDedup implements §4.4.2: an asset that is both in a
// bundle and in one of that bundle's ancestors doesn't need to be
// carried twice — the ancestor's copy is guaranteed loaded first.
func pass3AncestorDedup(ctx context.Context, bg *bundlegraph.Graph, cfg config.Tunables, stats *Stats) error {
	order, err := bundlePostOrder(bg)
	if err != nil {
		return err
	}
	for _, id := range order {
		b, ok := bg.Bundle(id)
		if !ok {
			continue
		}
		if err := dedupBundleAgainstAncestors(ctx, bg, b, stats); err != nil {
			return err
		}
	}
	return nil
}

// bundlePostOrder returns bundle ids such that a bundle referenced by
// another (via CreateBundleReference) comes before the referrer —
// descendants before ancestors, matching §4.4.2's "post-order over
// bundles".
func bundlePostOrder(bg *bundlegraph.Graph) ([]bundlegraph.BundleID, error) {
	g := dag.NewDirectedAcyclicGraph[bundlegraph.BundleID]()
	bundles := bg.Bundles()
	for i, b := range bundles {
		if err := g.AddVertex(b.ID, i); err != nil {
			return nil, bundlererr.Structuralf("optimizer", "%v", err)
		}
	}
	for _, b := range bundles {
		for _, ref := range bg.GetReferencedBundles(b.ID) {
			if err := g.AddDependencies(b.ID, []bundlegraph.BundleID{ref.ID}); err != nil {
				if dag.AsCycleError[bundlegraph.BundleID](err) != nil {
					continue // a reference cycle can't happen structurally; ignore defensively
				}
				return nil, err
			}
		}
	}
	return g.TopologicalSort()
}

func dedupBundleAgainstAncestors(ctx context.Context, bg *bundlegraph.Graph, b *bundlegraph.Bundle, stats *Stats) error {
	if b.Env.IsIsolated() || !b.IsSplittable {
		return nil
	}
	for _, asset := range sortedAssets(b.Assets) {
		if !b.Assets.Has(asset) {
			continue // removed by an earlier iteration of this same loop
		}
		for _, dep := range bg.GetDependencies(asset) {
			targets, err := bg.GetDependencyResolution(ctx, dep.ID, nil)
			if err != nil {
				return err
			}
			for _, t := range targets {
				if b.Assets.Has(t) && bg.IsAssetInAncestorBundles(b.ID, t) {
					if err := bg.RemoveAssetGraphFromBundle(ctx, t, b); err != nil {
						return err
					}
					stats.AncestorDeduped++
				}
			}
		}
	}
	return nil
}

func sortedAssets(s sets.Set[assetgraph.AssetID]) []assetgraph.AssetID {
	out := s.UnsortedList()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// candidate is a shared-bundle-extraction bucket keyed by its sorted
// source-bundle id set, per §4.4.3.
type candidate struct {
	key       string
	bundleIDs []bundlegraph.BundleID
	assets    []assetgraph.AssetID
	size      int64
}

// pass4ExtractSharedBundles implements §4.4.3: assets carried by more
// than minBundles qualifying bundles (see qualifyingBundles) are factored into a
// synthetic shared bundle once the aggregate is worth the extra request.
func pass4ExtractSharedBundles(ctx context.Context, bg *bundlegraph.Graph, cfg config.Tunables, stats *Stats, log logr.Logger) error {
	candidates := map[string]*candidate{}
	visited := sets.New[assetgraph.AssetID]()

	enter := func(ctx context.Context, n assetgraph.Node, inherited struct{}) (struct{}, assetgraph.Decision, error) {
		if n.Kind != assetgraph.NodeAsset {
			return inherited, assetgraph.Continue, nil
		}
		if visited.Has(n.Asset) {
			return inherited, assetgraph.SkipChildren, nil
		}
		visited.Insert(n.Asset)

		ids := qualifyingBundles(bg, n.Asset)
		if len(ids) <= cfg.MinBundles {
			return inherited, assetgraph.Continue, nil
		}

		key := strings.Join(bundleIDStrings(ids), ",")
		c := candidates[key]
		if c == nil {
			c = &candidate{key: key, bundleIDs: ids}
			candidates[key] = c
		}
		c.assets = append(c.assets, n.Asset)

		// The subgraph's size is intrinsic to n.Asset's reachable
		// descendants inside whichever qualifying bundle currently holds
		// it — bounded by the same split points pass 1 used, so any
		// qualifying bundle gives the same answer.
		bundle, ok := bg.Bundle(ids[0])
		if !ok {
			return inherited, assetgraph.Continue, bundlererr.Structuralf("pass4ExtractSharedBundles", "qualifying bundle %q not found", ids[0])
		}
		size, err := bg.GetTotalSize(ctx, n.Asset, bundle)
		if err != nil {
			return inherited, assetgraph.Continue, err
		}
		c.size += size
		return inherited, assetgraph.SkipChildren, nil
	}

	if err := assetgraph.Traverse(ctx, bg.Assets, struct{}{}, assetgraph.Visitor[struct{}]{Enter: enter}); err != nil {
		return err
	}

	keys := maps.Keys(candidates)
	sort.Strings(keys)
	list := lo.FilterMap(keys, func(k string, _ int) (*candidate, bool) {
		c := candidates[k]
		return c, c.size >= cfg.MinBundleSize
	})
	sort.Slice(list, func(i, j int) bool {
		if list[i].size != list[j].size {
			return list[i].size > list[j].size
		}
		return list[i].key < list[j].key
	})

	for _, c := range list {
		if err := extractCandidate(ctx, bg, cfg, c, stats, log); err != nil {
			return err
		}
	}
	return nil
}

// qualifyingBundles returns, in lexicographic id order, the bundles
// containing asset that qualify as shared-bundle sources per §4.4.3:
// splittable, and not carrying asset as their own main entry.
//
// §4.4.3's formula also excludes b.isEntry, but bundle.isEntry here is
// set straight from the triggering dependency's isEntry (§4.3 rule 1),
// which is also true for ordinary top-level JS/CSS entry bundles, not
// only document wrappers. Excluding those outright would make
// multi-entry sharing (scenario S3: two JS entries, no HTML) impossible,
// so qualification here turns on splittability and main-entry status
// alone; isEntry is left to gate other decisions (pass 2, packaging).
func qualifyingBundles(bg *bundlegraph.Graph, asset assetgraph.AssetID) []bundlegraph.BundleID {
	var ids []bundlegraph.BundleID
	for _, b := range bg.FindBundlesWithAsset(asset) {
		if !b.IsSplittable {
			continue
		}
		if me, ok := b.MainEntry(); ok && me == asset {
			continue
		}
		ids = append(ids, b.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func bundleIDStrings(ids []bundlegraph.BundleID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func extractCandidate(ctx context.Context, bg *bundlegraph.Graph, cfg config.Tunables, c *candidate, stats *Stats, log logr.Logger) error {
	groupIDs := sets.New[bundlegraph.GroupID]()
	for _, bid := range c.bundleIDs {
		for _, group := range bg.GetBundleGroupsContainingBundle(bid) {
			groupIDs.Insert(group.ID)
		}
	}
	groups := groupIDs.UnsortedList()
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })

	for _, gid := range groups {
		group, ok := bg.BundleGroupByID(gid)
		if !ok {
			continue
		}
		if len(group.Bundles) >= cfg.MaxParallelRequests {
			stats.decline("optimizer.pass4", "group "+string(gid)+" has no room for shared bundle "+c.key)
			log.V(1).Info("pass 4 declined shared-bundle extraction", "candidate", c.key, "group", gid)
			return nil
		}
	}

	var srcType string
	var srcEnv assetgraph.Env
	var srcTarget assetgraph.Target
	for i, bid := range c.bundleIDs {
		src, ok := bg.Bundle(bid)
		if !ok {
			continue
		}
		if i == 0 {
			srcType, srcEnv, srcTarget = src.Type, src.Env, src.Target
			continue
		}
		if src.Type != srcType {
			return bundlererr.Structuralf("optimizer", "shared-bundle candidate %q spans mismatched types %q/%q", c.key, srcType, src.Type)
		}
	}

	shared, err := bg.CreateBundle(bundlegraph.BundleOptions{
		UniqueKey:    c.key,
		Type:         srcType,
		Env:          srcEnv,
		Target:       srcTarget,
		IsSplittable: true,
	})
	if err != nil {
		return err
	}

	for _, asset := range c.assets {
		if err := bg.AddAssetGraphToBundle(ctx, asset, shared); err != nil {
			return err
		}
		for _, bid := range c.bundleIDs {
			src, ok := bg.Bundle(bid)
			if !ok {
				continue
			}
			if err := bg.RemoveAssetGraphFromBundle(ctx, asset, src); err != nil {
				return err
			}
		}
	}

	for _, gid := range groups {
		if group, ok := bg.BundleGroupByID(gid); ok {
			bg.AddBundleToBundleGroup(shared, group)
		}
	}

	stats.SharedBundlesExtracted++
	return dedupBundleAgainstAncestors(ctx, bg, shared, stats)
}

// asyncRecord tracks an async bundle-group discovered during
// pass5InternalizeAsync, for the trailing orphan-group sweep.
type asyncRecord struct {
	dep   assetgraph.DependencyID
	group *bundlegraph.BundleGroup
}

// pass5InternalizeAsync implements §4.4.4: an async dependency whose
// target is already guaranteed present in a bundle doesn't need a
// runtime loader call there, and a bundle-group no bundle still needs
// to trigger is removed outright.
func pass5InternalizeAsync(ctx context.Context, bg *bundlegraph.Graph, stats *Stats) error {
	var recorded []asyncRecord

	enter := func(innerCtx context.Context, n assetgraph.Node, inherited struct{}) (struct{}, assetgraph.Decision, error) {
		if n.Kind != assetgraph.NodeDependency {
			return inherited, assetgraph.Continue, nil
		}
		dep, ok := bg.Assets.Dependency(n.Dependency)
		if !ok || !dep.IsAsync || dep.IsEntry {
			return inherited, assetgraph.Continue, nil
		}
		targets, err := bg.Assets.Resolve(innerCtx, n.Dependency)
		if err != nil {
			return inherited, assetgraph.Continue, err
		}
		if len(targets) != 1 {
			return inherited, assetgraph.Continue, nil
		}
		resolution := targets[0]

		var group *bundlegraph.BundleGroup
		for _, g := range bg.BundleGroups() {
			if g.Dependency == n.Dependency {
				group = g
				break
			}
		}
		if group == nil {
			return inherited, assetgraph.Continue, nil
		}
		recorded = append(recorded, asyncRecord{dep: n.Dependency, group: group})

		for _, b := range bg.FindBundlesWithDependency(n.Dependency) {
			if b.Assets.Has(resolution) || bg.IsAssetInAncestorBundles(b.ID, resolution) {
				bg.InternalizeAsyncDependency(b.ID, n.Dependency)
				stats.AsyncInternalized++
			}
		}
		return inherited, assetgraph.Continue, nil
	}

	if err := assetgraph.Traverse(ctx, bg.Assets, struct{}{}, assetgraph.Visitor[struct{}]{Enter: enter}); err != nil {
		return err
	}

	for _, r := range recorded {
		stillNeeded := false
		for _, b := range bg.FindBundlesWithDependency(r.dep) {
			if !bg.IsInternalized(b.ID, r.dep) {
				stillNeeded = true
				break
			}
		}
		if !stillNeeded {
			bg.RemoveBundleGroup(r.group.ID)
			stats.GroupsRemoved++
		}
	}
	return nil
}
