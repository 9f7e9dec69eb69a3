package bundler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dsblv/parcel/internal/assetgraph"
)

func resolverOf(ids ...assetgraph.AssetID) assetgraph.Resolver {
	return func(ctx context.Context, dep *assetgraph.Dependency) ([]assetgraph.AssetID, error) {
		return ids, nil
	}
}

// S1: one entry HTML depending on one JS asset.
func TestRun_entryHTMLWithJS(t *testing.T) {
	g := assetgraph.New()
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "a.html", Type: "html", Size: 1}))
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "a.js", Type: "js", Size: 1}))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "d-html-js", SourceAsset: "a.html"}, resolverOf("a.js")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "root", IsEntry: true}, resolverOf("a.html")))

	bg, err := Run(context.Background(), g)
	require.NoError(t, err)

	require.Len(t, bg.BundleGroups(), 1)
	require.Len(t, bg.Bundles(), 2)

	group := bg.BundleGroups()[0]
	require.Len(t, group.Bundles, 2)

	htmlBundles := bg.FindBundlesWithAsset("a.html")
	jsBundles := bg.FindBundlesWithAsset("a.js")
	require.Len(t, htmlBundles, 1)
	require.Len(t, jsBundles, 1)
	require.Equal(t, "html", htmlBundles[0].Type)
	require.Equal(t, "js", jsBundles[0].Type)

	refs := bg.GetReferencedBundles(htmlBundles[0].ID)
	require.Len(t, refs, 1)
	require.Equal(t, jsBundles[0].ID, refs[0].ID)
}

// S6: one entry HTML depending on both JS and CSS — two parallel bundles
// from rule 2's type-change branch, same group.
func TestRun_entryHTMLWithJSAndCSS(t *testing.T) {
	g := assetgraph.New()
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "a.html", Type: "html", Size: 1}))
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "a.js", Type: "js", Size: 1}))
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "a.css", Type: "css", Size: 1}))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "d-js", SourceAsset: "a.html"}, resolverOf("a.js")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "d-css", SourceAsset: "a.html"}, resolverOf("a.css")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "root", IsEntry: true}, resolverOf("a.html")))

	bg, err := Run(context.Background(), g)
	require.NoError(t, err)

	require.Len(t, bg.BundleGroups(), 1)
	require.Len(t, bg.Bundles(), 3)

	group := bg.BundleGroups()[0]
	require.Len(t, group.Bundles, 3)

	jsBundles := bg.FindBundlesWithAsset("a.js")
	cssBundles := bg.FindBundlesWithAsset("a.css")
	require.Len(t, jsBundles, 1)
	require.Len(t, cssBundles, 1)
	require.NotEqual(t, jsBundles[0].ID, cssBundles[0].ID)
}

// S2: an async import opens a second bundle-group.
func TestRun_asyncImportOpensNewGroup(t *testing.T) {
	g := assetgraph.New()
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "a.js", Type: "js", Size: 1}))
	require.NoError(t, g.AddAsset(&assetgraph.Asset{ID: "b.js", Type: "js", Size: 10_000}))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "d-async", SourceAsset: "a.js", IsAsync: true}, resolverOf("b.js")))
	require.NoError(t, g.AddDependency(&assetgraph.Dependency{ID: "root", IsEntry: true}, resolverOf("a.js")))

	bg, err := Run(context.Background(), g)
	require.NoError(t, err)

	require.Len(t, bg.BundleGroups(), 2)
	require.Len(t, bg.Bundles(), 2)

	bBundles := bg.FindBundlesWithAsset("b.js")
	require.Len(t, bBundles, 1)
	require.False(t, bBundles[0].Assets.Has("a.js"))
}
