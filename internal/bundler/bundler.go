// Package bundler implements the Bundler's pass 1 (§4.3): a single
// depth-first traversal of the asset graph that opens bundle-groups at
// entry/async/isolated/inline boundaries and splits by type within a
// group, leaving the optimizer (package optimizer) to dedup and share
// afterward.
package bundler

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/dsblv/parcel/internal/assetgraph"
	"github.com/dsblv/parcel/internal/bundlererr"
	"github.com/dsblv/parcel/internal/bundlegraph"
)

// Stats records what pass 1 produced, for the CLI reporter.
type Stats struct {
	GroupsCreated  int
	BundlesCreated int
}

// Option configures a Run call. The core never constructs its own
// logger (§10.1); Run defaults to logr.Discard().
type Option func(*runSettings)

type runSettings struct {
	log logr.Logger
}

// WithLogger injects a logger Run uses to report the pass's outcome.
func WithLogger(log logr.Logger) Option {
	return func(s *runSettings) { s.log = log }
}

// visitContext is the traversal-carried state of §4.3: which group and
// type-bundle map is active, and who the nearest enclosing bundle/asset
// was. The struct is copied on every descent, but bundleByType is a map
// shared by every context within one group: the same-group branch
// registers each new type-sibling bundle in it, so later visits in that
// group see it. Other shared bundler state lives in the BundleGraph or
// the builder's own maps.
type visitContext struct {
	group        *bundlegraph.BundleGroup
	groupDep     assetgraph.DependencyID
	bundleByType map[string]*bundlegraph.Bundle
	parentBundle *bundlegraph.Bundle
	parentAsset  assetgraph.AssetID
}

type builder struct {
	assets *assetgraph.Graph
	bg     *bundlegraph.Graph

	bundleRoots           map[bundlegraph.BundleID][]assetgraph.AssetID
	bundlesByEntryAsset   map[assetgraph.AssetID]*bundlegraph.Bundle
	siblingBundlesByAsset map[assetgraph.AssetID][]*bundlegraph.Bundle
}

// Run executes pass 1 over assets and returns the freshly populated
// BundleGraph, discarding Stats. Use RunWithStats to inspect pass-1
// output counts.
func Run(ctx context.Context, assets *assetgraph.Graph, opts ...Option) (*bundlegraph.Graph, error) {
	bg, _, err := RunWithStats(ctx, assets, opts...)
	return bg, err
}

// RunWithStats is Run, but also returns the Stats pass 1 produced.
func RunWithStats(ctx context.Context, assets *assetgraph.Graph, opts ...Option) (*bundlegraph.Graph, *Stats, error) {
	settings := &runSettings{log: logr.Discard()}
	for _, opt := range opts {
		opt(settings)
	}

	b := &builder{
		assets:                assets,
		bg:                    bundlegraph.New(assets),
		bundleRoots:           make(map[bundlegraph.BundleID][]assetgraph.AssetID),
		bundlesByEntryAsset:   make(map[assetgraph.AssetID]*bundlegraph.Bundle),
		siblingBundlesByAsset: make(map[assetgraph.AssetID][]*bundlegraph.Bundle),
	}

	v := assetgraph.Visitor[visitContext]{Enter: b.enter}
	if err := assetgraph.Traverse(ctx, assets, visitContext{}, v); err != nil {
		return nil, nil, err
	}

	for _, bundle := range b.bg.Bundles() {
		for _, root := range b.bundleRoots[bundle.ID] {
			if err := b.bg.AddAssetGraphToBundle(ctx, root, bundle); err != nil {
				return nil, nil, err
			}
		}
	}

	stats := &Stats{
		BundlesCreated: len(b.bg.Bundles()),
		GroupsCreated:  len(b.bg.BundleGroups()),
	}
	settings.log.V(1).Info("bundler pass 1 complete", "bundles", stats.BundlesCreated, "groups", stats.GroupsCreated)
	return b.bg, stats, nil
}

func (b *builder) enter(ctx context.Context, n assetgraph.Node, inherited visitContext) (visitContext, assetgraph.Decision, error) {
	switch n.Kind {
	case assetgraph.NodeAsset:
		return b.enterAsset(n.Asset, inherited)
	case assetgraph.NodeDependency:
		return b.enterDependency(ctx, n.Dependency, inherited)
	default:
		return inherited, assetgraph.Continue, nil
	}
}

func (b *builder) enterAsset(asset assetgraph.AssetID, inherited visitContext) (visitContext, assetgraph.Decision, error) {
	next := inherited
	next.parentAsset = asset
	if bundle, ok := b.bundlesByEntryAsset[asset]; ok {
		next.parentBundle = bundle
	}
	return next, assetgraph.Continue, nil
}

func (b *builder) enterDependency(ctx context.Context, depID assetgraph.DependencyID, inherited visitContext) (visitContext, assetgraph.Decision, error) {
	dep, ok := b.assets.Dependency(depID)
	if !ok {
		return inherited, assetgraph.Continue, bundlererr.Structuralf("bundler", "unknown dependency %q", depID)
	}

	targetIDs, err := b.assets.Resolve(ctx, depID)
	if err != nil {
		return inherited, assetgraph.Continue, err
	}
	if len(targetIDs) == 0 {
		if dep.Required() {
			return inherited, assetgraph.Continue, bundlererr.Structuralf("bundler", "dependency %q has no resolution", depID)
		}
		return inherited, assetgraph.SkipChildren, nil
	}

	targets := make([]*assetgraph.Asset, 0, len(targetIDs))
	for _, id := range targetIDs {
		a, ok := b.assets.Asset(id)
		if !ok {
			return inherited, assetgraph.Continue, bundlererr.Structuralf("bundler", "dependency %q resolves to unknown asset %q", depID, id)
		}
		targets = append(targets, a)
	}

	if opensNewGroup(dep, targets) {
		next, err := b.newGroupBranch(depID, dep, targets, inherited)
		return next, assetgraph.Continue, err
	}
	next, err := b.sameGroupBranch(depID, dep, targets, inherited)
	return next, assetgraph.Continue, err
}

// opensNewGroup implements rule 1 of §4.3. The source text phrases the
// isEntry/isAsync/isIsolated/isInline conditions in terms of a single
// "resolution"; resolving to more than one asset isn't pinned down by
// §9's open question, so any qualifying resolved asset is treated as
// triggering the new group, one bundle per resolved asset.
func opensNewGroup(dep *assetgraph.Dependency, targets []*assetgraph.Asset) bool {
	if len(targets) == 0 {
		return false
	}
	if dep.IsEntry || dep.IsAsync {
		return true
	}
	for _, t := range targets {
		if t.IsIsolated || t.IsInline {
			return true
		}
	}
	return false
}

func (b *builder) newGroupBranch(depID assetgraph.DependencyID, dep *assetgraph.Dependency, targets []*assetgraph.Asset, inherited visitContext) (visitContext, error) {
	target := dep.Target
	if target == (assetgraph.Target{}) && inherited.group != nil {
		target = inherited.group.Target
	}

	var parentID bundlegraph.BundleID
	if inherited.parentBundle != nil {
		parentID = inherited.parentBundle.ID
	}
	group := b.bg.CreateBundleGroup(depID, target, parentID)

	bundleByType := make(map[string]*bundlegraph.Bundle)
	for _, asset := range targets {
		isEntry := dep.IsEntry
		if asset.IsIsolated {
			isEntry = false
		}
		asset := asset
		bundle, err := b.bg.CreateBundle(bundlegraph.BundleOptions{
			EntryAsset:   &asset.ID,
			Type:         asset.Type,
			Env:          asset.Env,
			Target:       target,
			IsEntry:      isEntry,
			IsInline:     asset.IsInline,
			IsSplittable: !asset.IsInline,
		})
		if err != nil {
			return inherited, err
		}
		bundleByType[asset.Type] = bundle
		b.bundleRoots[bundle.ID] = append(b.bundleRoots[bundle.ID], asset.ID)
		b.bundlesByEntryAsset[asset.ID] = bundle
		b.siblingBundlesByAsset[asset.ID] = nil
		b.bg.AddBundleToBundleGroup(bundle, group)
		if inherited.parentBundle != nil {
			b.bg.CreateBundleReference(inherited.parentBundle.ID, bundle.ID)
		}
	}

	next := inherited
	next.group = group
	next.groupDep = depID
	next.bundleByType = bundleByType
	return next, nil
}

func (b *builder) sameGroupBranch(depID assetgraph.DependencyID, dep *assetgraph.Dependency, targets []*assetgraph.Asset, inherited visitContext) (visitContext, error) {
	parentAsset, _ := b.assets.Asset(inherited.parentAsset)

	allSameType := parentAsset != nil
	if allSameType {
		for _, t := range targets {
			if t.Type != parentAsset.Type {
				allSameType = false
				break
			}
		}
	}

	for _, t := range targets {
		if parentAsset != nil && t.Type == parentAsset.Type {
			b.propagateSiblings(t.ID, inherited.parentAsset, allSameType, inherited.group)
			continue
		}

		if existing, ok := inherited.bundleByType[t.Type]; ok {
			b.bundleRoots[existing.ID] = append(b.bundleRoots[existing.ID], t.ID)
			b.bg.CreateAssetReference(depID, t.ID)
			continue
		}

		t := t
		sibling, err := b.bg.CreateBundle(bundlegraph.BundleOptions{
			EntryAsset:   &t.ID,
			Type:         t.Type,
			Env:          t.Env,
			Target:       groupTarget(inherited),
			IsInline:     t.IsInline,
			IsSplittable: !t.IsInline,
		})
		if err != nil {
			return inherited, err
		}
		if inherited.bundleByType != nil {
			inherited.bundleByType[t.Type] = sibling
		}
		b.siblingBundlesByAsset[inherited.parentAsset] = append(b.siblingBundlesByAsset[inherited.parentAsset], sibling)
		b.bundleRoots[sibling.ID] = append(b.bundleRoots[sibling.ID], t.ID)
		b.bundlesByEntryAsset[t.ID] = sibling
		b.bg.CreateAssetReference(depID, t.ID)
		if inherited.parentBundle != nil {
			b.bg.CreateBundleReference(inherited.parentBundle.ID, sibling.ID)
		}
		if inherited.group != nil {
			b.bg.AddBundleToBundleGroup(sibling, inherited.group)
		}
	}
	return inherited, nil
}

func groupTarget(c visitContext) assetgraph.Target {
	if c.group != nil {
		return c.group.Target
	}
	return assetgraph.Target{}
}

// propagateSiblings implements the re-entry half of rule 2: a
// DAG-shared asset visited a second time through a new group must
// contribute its previously-generated type-sibling bundles to that
// group, but only when the whole resolution set agreed on one type —
// mixed resolutions start a fresh list instead (§9's open question).
func (b *builder) propagateSiblings(asset, parentAsset assetgraph.AssetID, allSameType bool, group *bundlegraph.BundleGroup) {
	if existing := b.siblingBundlesByAsset[asset]; len(existing) > 0 {
		if allSameType && group != nil {
			for _, sib := range existing {
				b.bg.AddBundleToBundleGroup(sib, group)
			}
		}
		return
	}
	if allSameType {
		b.siblingBundlesByAsset[asset] = append([]*bundlegraph.Bundle(nil), b.siblingBundlesByAsset[parentAsset]...)
	} else {
		b.siblingBundlesByAsset[asset] = []*bundlegraph.Bundle{}
	}
}
