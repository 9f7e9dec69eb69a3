package assetgraph

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/dsblv/parcel/internal/bundlererr"
)

// rootAsset is the sentinel "source" for entry dependencies — the
// virtual root described in §3 ("a dependency resolves from a source
// asset or virtual root").
const rootAsset = AssetID("")

// Graph is the immutable input asset graph (GraphModel, §4.1). Nothing
// in the bundler or optimizer packages ever calls a method on Graph that
// mutates an Asset or Dependency; the only mutable state here is the
// resolution cache, which exists purely to make re-entrant traversal of
// shared subtrees (§4.1) cheap.
type Graph struct {
	assets map[AssetID]*Asset
	deps   map[DependencyID]*Dependency

	depsByAsset map[AssetID][]DependencyID
	roots       []DependencyID

	mu    sync.Mutex
	cache map[DependencyID][]AssetID

	resolveGroup singleflight.Group
	limiter      *rate.Limiter
	log          logr.Logger
}

// Option configures a Graph at construction time.
type Option func(*Graph)

// WithRateLimit bounds how fast Resolve may call into an external
// resolver backing a Dependency — see §11 of SPEC_FULL.md.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(g *Graph) { g.limiter = limiter }
}

// WithLogger injects a logger for Resolve's external-call boundary.
// The graph never constructs its own logger, per §10.1 — it defaults
// to logr.Discard().
func WithLogger(log logr.Logger) Option {
	return func(g *Graph) { g.log = log }
}

// New returns an empty Graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		assets:      make(map[AssetID]*Asset),
		deps:        make(map[DependencyID]*Dependency),
		depsByAsset: make(map[AssetID][]DependencyID),
		cache:       make(map[DependencyID][]AssetID),
		log:         logr.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddAsset registers an asset. Calling it twice for the same id is a
// structural error — the input graph is supposed to be a set.
func (g *Graph) AddAsset(a *Asset) error {
	if _, exists := g.assets[a.ID]; exists {
		return bundlererr.Structuralf("assetgraph", "duplicate asset id %q", a.ID)
	}
	g.assets[a.ID] = a
	return nil
}

// AddDependency registers a dependency whose resolution is produced by
// resolve, attaching it to its SourceAsset's outgoing edge list (or to
// the graph's root list if SourceAsset is empty, i.e. it is a top-level
// entry per §3).
func (g *Graph) AddDependency(d *Dependency, resolve Resolver) error {
	if _, exists := g.deps[d.ID]; exists {
		return bundlererr.Structuralf("assetgraph", "duplicate dependency id %q", d.ID)
	}
	d.resolve = resolve
	g.deps[d.ID] = d

	source := d.SourceAsset
	if source == "" {
		source = rootAsset
		g.roots = append(g.roots, d.ID)
	}
	g.depsByAsset[source] = append(g.depsByAsset[source], d.ID)
	return nil
}

// Asset looks up an asset by id.
func (g *Graph) Asset(id AssetID) (*Asset, bool) {
	a, ok := g.assets[id]
	return a, ok
}

// Dependency looks up a dependency by id.
func (g *Graph) Dependency(id DependencyID) (*Dependency, bool) {
	d, ok := g.deps[id]
	return d, ok
}

// Roots returns the entry dependencies hanging off the virtual root, in
// the order they were added — this is "the input graph's stable order"
// that §6's determinism guarantee is built on.
func (g *Graph) Roots() []DependencyID {
	return g.roots
}

// DependenciesOf returns the dependencies whose source is asset, in
// insertion order.
func (g *Graph) DependenciesOf(asset AssetID) []*Dependency {
	ids := g.depsByAsset[asset]
	out := make([]*Dependency, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.deps[id])
	}
	return out
}

// Resolve answers what a dependency resolves to, per §3/§6. Results are
// cached for the lifetime of the graph and concurrent/duplicate calls for
// the same dependency id are collapsed through a singleflight.Group —
// traversal re-enters shared subtrees (§4.1) and would otherwise invoke
// an external resolver for the same id more than once per run.
func (g *Graph) Resolve(ctx context.Context, depID DependencyID) ([]AssetID, error) {
	g.mu.Lock()
	if cached, ok := g.cache[depID]; ok {
		g.mu.Unlock()
		return cached, nil
	}
	g.mu.Unlock()

	dep, ok := g.deps[depID]
	if !ok {
		return nil, bundlererr.Structuralf("resolve", "unknown dependency %q", depID)
	}
	if dep.resolve == nil {
		// Empty/deferred resolution: silently skipped, per §7.
		return nil, nil
	}

	v, err, shared := g.resolveGroup.Do(string(depID), func() (any, error) {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		assets, err := dep.resolve(ctx, dep)
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.cache[depID] = assets
		g.mu.Unlock()
		return assets, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		g.log.V(2).Info("collapsed duplicate in-flight resolution", "dependency", depID)
	}
	return v.([]AssetID), nil
}

// TotalAssetCount reports the number of assets registered, mostly useful
// for diagnostics and tests.
func (g *Graph) TotalAssetCount() int { return len(g.assets) }
