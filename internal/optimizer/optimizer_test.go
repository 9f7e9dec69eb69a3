package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dsblv/parcel/internal/assetgraph"
	"github.com/dsblv/parcel/internal/bundler"
	"github.com/dsblv/parcel/internal/config"
)

func resolverOf(ids ...assetgraph.AssetID) assetgraph.Resolver {
	return func(ctx context.Context, dep *assetgraph.Dependency) ([]assetgraph.AssetID, error) {
		return ids, nil
	}
}

// S3: two entries statically depending on a 40kb shared asset — above
// minBundleSize, so pass 4 extracts a third, shared bundle.
func TestRun_sharedBundleExtraction(t *testing.T) {
	g := assetgraph.New()
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "a.js", Type: "js", Size: 1}))
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "c.js", Type: "js", Size: 1}))
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "shared.js", Type: "js", Size: 40_000}))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "d-a-shared", SourceAsset: "a.js"}, resolverOf("shared.js")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "d-c-shared", SourceAsset: "c.js"}, resolverOf("shared.js")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "root-a", IsEntry: true}, resolverOf("a.js")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "root-c", IsEntry: true}, resolverOf("c.js")))

	bg, err := bundler.Run(context.Background(), g)
	require.NoError(t, err)
	require.NoError(t, Run(context.Background(), bg, config.Default()))

	require.Len(t, bg.Bundles(), 3)
	sharedBundles := bg.FindBundlesWithAsset("shared.js")
	require.Len(t, sharedBundles, 1)
	require.NotEmpty(t, sharedBundles[0].UniqueKey)

	for _, b := range bg.Bundles() {
		if b.UniqueKey != "" {
			require.True(t, b.Assets.Has("shared.js"))
			require.False(t, b.Assets.Has("a.js"))
			require.False(t, b.Assets.Has("c.js"))
		}
	}
	require.Len(t, bg.BundleGroups(), 2)
	for _, group := range bg.BundleGroups() {
		require.Len(t, group.Bundles, 2)
	}
}

// Shared subgraph whose root alone is below minBundleSize but whose
// full reachable subgraph (root + its own dependency) clears it —
// guards against weighing a candidate by its root asset's size alone
// instead of the whole subgraph GetTotalSize is supposed to cover.
func TestRun_sharedBundleExtraction_multiAssetSubgraph(t *testing.T) {
	g := assetgraph.New()
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "a.js", Type: "js", Size: 1}))
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "c.js", Type: "js", Size: 1}))
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "shared.js", Type: "js", Size: 1_000}))
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "shared-dep.js", Type: "js", Size: 40_000}))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "d-shared-dep", SourceAsset: "shared.js"}, resolverOf("shared-dep.js")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "d-a-shared", SourceAsset: "a.js"}, resolverOf("shared.js")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "d-c-shared", SourceAsset: "c.js"}, resolverOf("shared.js")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "root-a", IsEntry: true}, resolverOf("a.js")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "root-c", IsEntry: true}, resolverOf("c.js")))

	bg, err := bundler.Run(context.Background(), g)
	require.NoError(t, err)
	require.NoError(t, Run(context.Background(), bg, config.Default()))

	sharedBundles := bg.FindBundlesWithAsset("shared.js")
	require.Len(t, sharedBundles, 1, "shared.js's 41kb subgraph clears minBundleSize even though shared.js alone does not")
	require.True(t, sharedBundles[0].Assets.Has("shared-dep.js"))
}

// S4: same shape but the shared asset is below minBundleSize — no
// extraction, both entries just carry their own copy.
func TestRun_belowThresholdNoExtraction(t *testing.T) {
	g := assetgraph.New()
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "a.js", Type: "js", Size: 1}))
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "c.js", Type: "js", Size: 1}))
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "s.js", Type: "js", Size: 20_000}))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "d-a-s", SourceAsset: "a.js"}, resolverOf("s.js")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "d-c-s", SourceAsset: "c.js"}, resolverOf("s.js")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "root-a", IsEntry: true}, resolverOf("a.js")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "root-c", IsEntry: true}, resolverOf("c.js")))

	bg, err := bundler.Run(context.Background(), g)
	require.NoError(t, err)
	require.NoError(t, Run(context.Background(), bg, config.Default()))

	require.Len(t, bg.Bundles(), 2)
	for _, b := range bg.Bundles() {
		require.True(t, b.Assets.Has("s.js"))
	}
}

// S5: an async import that is also statically reachable gets
// internalized, and its bundle-group disappears.
func TestRun_asyncInternalization(t *testing.T) {
	g := assetgraph.New()
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "a.js", Type: "js", Size: 1}))
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "b.js", Type: "js", Size: 1}))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "d-static", SourceAsset: "a.js"}, resolverOf("b.js")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "d-async", SourceAsset: "a.js", IsAsync: true}, resolverOf("b.js")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "root", IsEntry: true}, resolverOf("a.js")))

	bg, err := bundler.Run(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, bg.BundleGroups(), 2, "pass 1 opens a second group for the async import")

	require.NoError(t, Run(context.Background(), bg, config.Default()))

	require.Len(t, bg.BundleGroups(), 1, "pass 5 removes the now-unneeded async group")
	aBundles := bg.FindBundlesWithAsset("a.js")
	require.Len(t, aBundles, 1)
	require.True(t, bg.IsInternalized(aBundles[0].ID, "d-async"))
}
