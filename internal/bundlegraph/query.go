package bundlegraph

import (
	"context"

	"github.com/dsblv/parcel/internal/assetgraph"
)

// GetDependencyAssets resolves dep against the underlying asset graph.
func (g *Graph) GetDependencyAssets(ctx context.Context, dep assetgraph.DependencyID) ([]assetgraph.AssetID, error) {
	return g.Assets.Resolve(ctx, dep)
}

// GetDependencyResolution resolves dep and, if bundle is non-nil,
// restricts the result to assets actually attached to that bundle —
// useful once dedup/sharing has moved an asset elsewhere.
func (g *Graph) GetDependencyResolution(ctx context.Context, dep assetgraph.DependencyID, bundle *Bundle) ([]assetgraph.AssetID, error) {
	assets, err := g.Assets.Resolve(ctx, dep)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return assets, nil
	}
	out := make([]assetgraph.AssetID, 0, len(assets))
	for _, a := range assets {
		if bundle.Assets.Has(a) {
			out = append(out, a)
		}
	}
	return out, nil
}
