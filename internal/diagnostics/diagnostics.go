// Package diagnostics runs a read-only, parallel lint pass over an input
// asset graph before it reaches the bundler core (§10.6 of SPEC_FULL.md).
// It is adapted from the teacher's pkg/graph/walker bounded worker pool:
// assets are discovered with a visited-set DFS and then linted
// concurrently by a bounded worker pool. §9 models the asset graph as
// possibly cyclic and the core traversal tolerates re-entry, so
// discovery here walks with a visited set rather than rejecting a
// cycle outright — this is explicitly not the core traversal, which
// stays single-threaded and synchronous; this is an optional, external
// sanity pass the CLI runs up front.
package diagnostics

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dsblv/parcel/internal/assetgraph"
)

// Severity classifies a Finding.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is one lint result against a single asset.
type Finding struct {
	Asset    assetgraph.AssetID
	Severity Severity
	Message  string
}

// Options configures Run's worker pool.
type Options struct {
	// Parallelism bounds concurrent workers. <= 0 defaults to
	// runtime.NumCPU(), matching the teacher's walker.Options default.
	Parallelism int
}

// Run lints every asset reachable from assets' roots and returns the
// findings in a deterministic order (by asset id, then message),
// regardless of which worker produced them.
func Run(ctx context.Context, assets *assetgraph.Graph, opts Options) ([]Finding, error) {
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}

	order, err := discoverAssets(ctx, assets)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		findings []Finding
	)

	grp, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(opts.Parallelism))

	for _, id := range order {
		id := id
		grp.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			fs, err := lintAsset(gctx, assets, id)
			if err != nil {
				return err
			}
			if len(fs) > 0 {
				mu.Lock()
				findings = append(findings, fs...)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Asset != findings[j].Asset {
			return findings[i].Asset < findings[j].Asset
		}
		return findings[i].Message < findings[j].Message
	})
	return findings, nil
}

// discoverAssets walks every asset reachable from assets' roots with a
// visited-set DFS, returning them in discovery order. The visited set
// makes this tolerate a true cycle in the asset graph (§9) instead of
// rejecting it the way a strict topological sort would — the order
// produced is a valid worklist for Run's pool (every asset is visited
// exactly once), not a dependency ordering guarantee.
func discoverAssets(ctx context.Context, assets *assetgraph.Graph) ([]assetgraph.AssetID, error) {
	seen := map[assetgraph.AssetID]bool{}
	var order []assetgraph.AssetID

	var visit func(id assetgraph.AssetID) error
	visit = func(id assetgraph.AssetID) error {
		if seen[id] {
			return nil
		}
		seen[id] = true
		order = append(order, id)
		for _, dep := range assets.DependenciesOf(id) {
			targets, err := assets.Resolve(ctx, dep.ID)
			if err != nil {
				return err
			}
			for _, t := range targets {
				if err := visit(t); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, rootDep := range assets.Roots() {
		targets, err := assets.Resolve(ctx, rootDep)
		if err != nil {
			return nil, err
		}
		for _, t := range targets {
			if err := visit(t); err != nil {
				return nil, err
			}
		}
	}

	return order, nil
}

// lintAsset runs the checks named in §10.6 against a single asset: zero
// size, and any required dependency whose resolution is empty.
func lintAsset(ctx context.Context, assets *assetgraph.Graph, id assetgraph.AssetID) ([]Finding, error) {
	asset, ok := assets.Asset(id)
	if !ok {
		return nil, fmt.Errorf("diagnostics: unknown asset %q", id)
	}

	var findings []Finding
	if asset.Size == 0 {
		findings = append(findings, Finding{
			Asset:    id,
			Severity: SeverityWarning,
			Message:  "asset has zero size",
		})
	}

	for _, dep := range assets.DependenciesOf(id) {
		targets, err := assets.Resolve(ctx, dep.ID)
		if err != nil {
			return nil, err
		}
		if len(targets) == 0 && dep.Required() {
			findings = append(findings, Finding{
				Asset:    id,
				Severity: SeverityError,
				Message:  fmt.Sprintf("required dependency %q has an empty resolution", dep.ID),
			})
		}
	}
	return findings, nil
}
