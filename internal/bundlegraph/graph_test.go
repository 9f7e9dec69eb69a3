package bundlegraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dsblv/parcel/internal/assetgraph"
)

func staticResolver(targets ...assetgraph.AssetID) assetgraph.Resolver {
	return func(ctx context.Context, dep *assetgraph.Dependency) ([]assetgraph.AssetID, error) {
		return targets, nil
	}
}

// buildChain wires a -> b -> c, all type "js", as a minimal fixture for
// attach/detach tests.
func buildChain(t *testing.T) *assetgraph.Graph {
	t.Helper()
	g := assetgraph.New()
	for _, id := range []assetgraph.AssetID{"a", "b", "c"} {
		require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: id, Type: "js", Size: 10}))
	}
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "d-ab", SourceAsset: "a"}, staticResolver("b")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "d-bc", SourceAsset: "b"}, staticResolver("c")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "d-root", IsEntry: true}, staticResolver("a")))
	return g
}

func TestAddAssetGraphToBundle_followsChain(t *testing.T) {
	assets := buildChain(t)
	bg := New(assets)

	bundle, err := bg.CreateBundle(BundleOptions{EntryAsset: ptr(assetgraph.AssetID("a")), Type: "js", IsSplittable: true})
	require.NoError(t, err)

	require.NoError(t, bg.AddAssetGraphToBundle(context.Background(), "a", bundle))
	require.True(t, bundle.Assets.Has("a"))
	require.True(t, bundle.Assets.Has("b"))
	require.True(t, bundle.Assets.Has("c"))

	found := bg.FindBundlesWithAsset("c")
	require.Len(t, found, 1)
	require.Equal(t, bundle.ID, found[0].ID)
}

func TestAddAssetGraphToBundle_stopsAtAsync(t *testing.T) {
	assets := assetgraph.New()
	require.NoError(t, assets.AddAsset(&assetgraph.Asset{ID: "a", Type: "js", Size: 10}))
	require.NoError(t, assets.AddAsset(&assetgraph.Asset{ID: "b", Type: "js", Size: 10}))
	require.NoError(t, assets.AddDependency(&assetgraph.Dependency{ID: "d", SourceAsset: "a", IsAsync: true}, staticResolver("b")))
	require.NoError(t, assets.AddDependency(&assetgraph.Dependency{ID: "root", IsEntry: true}, staticResolver("a")))

	bg := New(assets)
	bundle, err := bg.CreateBundle(BundleOptions{EntryAsset: ptr(assetgraph.AssetID("a")), Type: "js", IsSplittable: true})
	require.NoError(t, err)

	require.NoError(t, bg.AddAssetGraphToBundle(context.Background(), "a", bundle))
	require.True(t, bundle.Assets.Has("a"))
	require.False(t, bundle.Assets.Has("b"))
}

func TestRemoveAssetGraphFromBundle_keepsSharedTail(t *testing.T) {
	assets := assetgraph.New()
	for _, id := range []assetgraph.AssetID{"e1", "e2", "shared"} {
		require.NoError(t, assets.AddAsset(&assetgraph.Asset{ID: id, Type: "js", Size: 10}))
	}
	require.NoError(t, assets.AddDependency(&assetgraph.Dependency{ID: "d1", SourceAsset: "e1"}, staticResolver("shared")))
	require.NoError(t, assets.AddDependency(&assetgraph.Dependency{ID: "d2", SourceAsset: "e2"}, staticResolver("shared")))
	require.NoError(t, assets.AddDependency(&assetgraph.Dependency{ID: "root1", IsEntry: true}, staticResolver("e1")))
	require.NoError(t, assets.AddDependency(&assetgraph.Dependency{ID: "root2", IsEntry: true}, staticResolver("e2")))

	bg := New(assets)
	bundle, err := bg.CreateBundle(BundleOptions{EntryAsset: ptr(assetgraph.AssetID("e1")), Type: "js", IsSplittable: true})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bg.AddAssetGraphToBundle(ctx, "e1", bundle))
	require.NoError(t, bg.AddAssetGraphToBundle(ctx, "e2", bundle))
	require.True(t, bundle.Assets.Has("shared"))

	require.NoError(t, bg.RemoveAssetGraphFromBundle(ctx, "e1", bundle))
	require.False(t, bundle.Assets.Has("e1"))
	require.True(t, bundle.Assets.Has("shared"), "shared must survive because e2 still reaches it")

	require.NoError(t, bg.RemoveAssetGraphFromBundle(ctx, "e2", bundle))
	require.False(t, bundle.Assets.Has("shared"), "shared must go once nothing in the bundle reaches it")
}

func TestAncestorBundles_groupIntersection(t *testing.T) {
	assets := assetgraph.New()
	for _, id := range []assetgraph.AssetID{"a", "b", "shared"} {
		require.NoError(t, assets.AddAsset(&assetgraph.Asset{ID: id, Type: "js", Size: 10}))
	}
	bg := New(assets)

	a, err := bg.CreateBundle(BundleOptions{EntryAsset: ptr(assetgraph.AssetID("a")), Type: "js", IsSplittable: true})
	require.NoError(t, err)
	shared, err := bg.CreateBundle(BundleOptions{UniqueKey: "shared", Type: "js", IsSplittable: true})
	require.NoError(t, err)
	shared.Assets.Insert("shared")
	b, err := bg.CreateBundle(BundleOptions{EntryAsset: ptr(assetgraph.AssetID("b")), Type: "js", IsSplittable: true})
	require.NoError(t, err)

	group := bg.CreateBundleGroup("root1", assetgraph.Target{}, "")
	bg.AddBundleToBundleGroup(shared, group)
	bg.AddBundleToBundleGroup(a, group)

	require.True(t, bg.IsAssetInAncestorBundles(a.ID, "shared"))
	require.False(t, bg.IsAssetInAncestorBundles(b.ID, "shared"), "b isn't in any group with the shared bundle")
}

func TestGetTotalSize_sumsSubgraphNotJustRoot(t *testing.T) {
	assets := buildChain(t) // a(10) -> b(10) -> c(10)
	bg := New(assets)

	bundle, err := bg.CreateBundle(BundleOptions{EntryAsset: ptr(assetgraph.AssetID("a")), Type: "js", IsSplittable: true})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bg.AddAssetGraphToBundle(ctx, "a", bundle))

	size, err := bg.GetTotalSize(ctx, "a", bundle)
	require.NoError(t, err)
	require.Equal(t, int64(30), size, "must sum a, b, and c, not just a's own size")

	size, err = bg.GetTotalSize(ctx, "b", bundle)
	require.NoError(t, err)
	require.Equal(t, int64(20), size, "rooted at b, only b and c are reachable")
}

func ptr[T any](v T) *T { return &v }
