package assetgraph

import "context"

// NodeKind tags a Node as either an asset or a dependency — the
// polymorphic graph node described in §9's design notes ("tagged variant
// Node = Asset(AssetId) | Dependency(DepId); no inheritance").
type NodeKind int

const (
	NodeAsset NodeKind = iota
	NodeDependency
)

// Node is a polymorphic graph node: exactly one of Asset/Dependency is
// meaningful, selected by Kind.
type Node struct {
	Kind       NodeKind
	Asset      AssetID
	Dependency DependencyID
}

// Decision is returned by an EnterFunc to control descent.
type Decision int

const (
	// Continue descends into the node's children as usual.
	Continue Decision = iota
	// SkipChildren stops this branch from being descended into, per the
	// visitor's skipChildren() request in §4.1.
	SkipChildren
)

// EnterFunc is invoked each time the traversal reaches a node (shared
// nodes are reached once per path), before its children. It returns the
// context to propagate to children (the *only* way children observe
// inherited state, per §4.1) plus a Decision.
type EnterFunc[C any] func(ctx context.Context, n Node, inherited C) (next C, decision Decision, err error)

// ExitFunc is invoked when ascending past a node, including a node whose
// EnterFunc returned SkipChildren.
type ExitFunc[C any] func(ctx context.Context, n Node, c C)

// Visitor bundles the enter/exit callbacks for one traversal.
type Visitor[C any] struct {
	Enter EnterFunc[C]
	Exit  ExitFunc[C]
}

// Traverse performs the depth-first visitation contract of §4.1,
// starting at the graph's root dependencies in their stable insertion
// order. Shared subtrees are re-entered rather than deduplicated — the
// bundler's same-group branch (rule 2 in §4.3) relies on that re-entry to attach siblings
// to every bundle-group that reaches a shared asset.
func Traverse[C any](ctx context.Context, g *Graph, initial C, v Visitor[C]) error {
	for _, rootDep := range g.Roots() {
		if err := traverseDependency(ctx, g, rootDep, initial, v); err != nil {
			return err
		}
	}
	return nil
}

func traverseDependency[C any](ctx context.Context, g *Graph, depID DependencyID, inherited C, v Visitor[C]) error {
	node := Node{Kind: NodeDependency, Dependency: depID}
	next, decision, err := v.Enter(ctx, node, inherited)
	if err != nil {
		return err
	}

	if decision != SkipChildren {
		assets, err := g.Resolve(ctx, depID)
		if err != nil {
			return err
		}
		for _, assetID := range assets {
			if err := traverseAsset(ctx, g, assetID, next, v); err != nil {
				return err
			}
		}
	}

	if v.Exit != nil {
		v.Exit(ctx, node, next)
	}
	return nil
}

func traverseAsset[C any](ctx context.Context, g *Graph, assetID AssetID, inherited C, v Visitor[C]) error {
	node := Node{Kind: NodeAsset, Asset: assetID}
	next, decision, err := v.Enter(ctx, node, inherited)
	if err != nil {
		return err
	}

	if decision != SkipChildren {
		for _, dep := range g.DependenciesOf(assetID) {
			if err := traverseDependency(ctx, g, dep.ID, next, v); err != nil {
				return err
			}
		}
	}

	if v.Exit != nil {
		v.Exit(ctx, node, next)
	}
	return nil
}
