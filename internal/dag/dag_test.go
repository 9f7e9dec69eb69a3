package dag

import (
	"reflect"
	"testing"
)

// These tests exercise DirectedAcyclicGraph the way bundlePostOrder
// (internal/optimizer) uses it: vertices keyed by bundlegraph.BundleID-shaped strings, edges added
// from a referencing bundle to the bundle it references, descendants
// expected before referrers.

func TestAddVertexRejectsDuplicate(t *testing.T) {
	d := NewDirectedAcyclicGraph[string]()

	if err := d.AddVertex("bundle:0", 0); err != nil {
		t.Fatalf("AddVertex(bundle:0): %v", err)
	}
	if err := d.AddVertex("bundle:0", 1); err == nil {
		t.Error("expected error adding bundle:0 twice, got nil")
	}
	if len(d.Vertices) != 1 {
		t.Errorf("expected 1 vertex, got %d", len(d.Vertices))
	}
}

func TestAddDependenciesRejectsSelfAndUnknown(t *testing.T) {
	d := NewDirectedAcyclicGraph[string]()
	mustAddVertex(t, d, "bundle:0", 0)

	if err := d.AddDependencies("bundle:0", []string{"bundle:0"}); err == nil {
		t.Error("expected error on self-reference, got nil")
	}
	if err := d.AddDependencies("bundle:0", []string{"bundle:1"}); err == nil {
		t.Error("expected error referencing an unknown bundle, got nil")
	}
	if len(d.Vertices["bundle:0"].DependsOn) != 0 {
		t.Error("a rejected AddDependencies call must leave the vertex unchanged")
	}
}

func TestAddDependenciesRejectsCycle(t *testing.T) {
	d := NewDirectedAcyclicGraph[string]()
	mustAddVertex(t, d, "bundle:0", 0)
	mustAddVertex(t, d, "bundle:1", 1)

	// bundle:1's code references bundle:0 (bundle:1 -> bundle:0).
	if err := d.AddDependencies("bundle:1", []string{"bundle:0"}); err != nil {
		t.Fatalf("AddDependencies(bundle:1, [bundle:0]): %v", err)
	}

	// Closing the loop (bundle:0 -> bundle:1) would make both bundles
	// wait on each other; pass 3 can never observe this structurally,
	// but the primitive itself must still refuse it.
	err := d.AddDependencies("bundle:0", []string{"bundle:1"})
	if err == nil {
		t.Fatal("expected a cycle error, got nil")
	}
	if AsCycleError[string](err) == nil {
		t.Errorf("expected a *CycleError, got %T: %v", err, err)
	}
	if len(d.Vertices["bundle:0"].DependsOn) != 0 {
		t.Error("a rejected cyclic edge must be rolled back")
	}
}

// TestBundlePostOrderDescendantsBeforeReferrers mirrors
// optimizer.bundlePostOrder: an edge runs from a referencing bundle to
// the bundle it references, and TopologicalSort is expected to place
// referenced bundles (descendants) before their referrers, exactly the
// order pass 3's ancestor dedup needs to visit ancestors only after
// their descendants are already deduped against.
func TestBundlePostOrderDescendantsBeforeReferrers(t *testing.T) {
	d := NewDirectedAcyclicGraph[string]()
	// bundle:2 is the entry bundle; its code references both bundle:0
	// (a shared vendor bundle) and bundle:1 (a route bundle), and
	// bundle:1 in turn references bundle:0 too.
	mustAddVertex(t, d, "bundle:0", 0)
	mustAddVertex(t, d, "bundle:1", 1)
	mustAddVertex(t, d, "bundle:2", 2)

	if err := d.AddDependencies("bundle:1", []string{"bundle:0"}); err != nil {
		t.Fatalf("adding bundle:1 -> bundle:0: %v", err)
	}
	if err := d.AddDependencies("bundle:2", []string{"bundle:0", "bundle:1"}); err != nil {
		t.Fatalf("adding bundle:2 -> {bundle:0, bundle:1}: %v", err)
	}

	order, err := d.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["bundle:0"] > pos["bundle:1"] {
		t.Errorf("expected bundle:0 before bundle:1 in %v", order)
	}
	if pos["bundle:1"] > pos["bundle:2"] {
		t.Errorf("expected bundle:1 before bundle:2 in %v", order)
	}
}

func TestBundlePostOrderNoReferencesIsInsertionOrder(t *testing.T) {
	d := NewDirectedAcyclicGraph[string]()
	mustAddVertex(t, d, "bundle:0", 0)
	mustAddVertex(t, d, "bundle:1", 1)
	mustAddVertex(t, d, "bundle:2", 2)

	order, err := d.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	want := []string{"bundle:0", "bundle:1", "bundle:2"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("got %v, want %v", order, want)
	}
}

// TestTopologicalSortLevelsGroupsSiblingBundles models a shared bundle
// (bundle:0) referenced by two sibling route bundles that don't
// reference each other — both siblings should land in the same level,
// after the shared bundle's level.
func TestTopologicalSortLevelsGroupsSiblingBundles(t *testing.T) {
	d := NewDirectedAcyclicGraph[string]()
	mustAddVertex(t, d, "bundle:0", 0)
	mustAddVertex(t, d, "bundle:1", 1)
	mustAddVertex(t, d, "bundle:2", 2)

	if err := d.AddDependencies("bundle:1", []string{"bundle:0"}); err != nil {
		t.Fatalf("adding bundle:1 -> bundle:0: %v", err)
	}
	if err := d.AddDependencies("bundle:2", []string{"bundle:0"}); err != nil {
		t.Fatalf("adding bundle:2 -> bundle:0: %v", err)
	}

	levels, err := d.TopologicalSortLevels()
	if err != nil {
		t.Fatalf("TopologicalSortLevels: %v", err)
	}
	want := [][]string{{"bundle:0"}, {"bundle:1", "bundle:2"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("got %v, want %v", levels, want)
	}
}

func TestReachesFollowsBundleReferenceChain(t *testing.T) {
	d := NewDirectedAcyclicGraph[string]()
	mustAddVertex(t, d, "bundle:0", 0)
	mustAddVertex(t, d, "bundle:1", 1)
	mustAddVertex(t, d, "bundle:2", 2)

	if err := d.AddDependencies("bundle:1", []string{"bundle:0"}); err != nil {
		t.Fatalf("adding bundle:1 -> bundle:0: %v", err)
	}
	if err := d.AddDependencies("bundle:2", []string{"bundle:1"}); err != nil {
		t.Fatalf("adding bundle:2 -> bundle:1: %v", err)
	}

	if !d.Reaches("bundle:2", "bundle:0") {
		t.Error("expected bundle:2 to transitively reach bundle:0")
	}
	if d.Reaches("bundle:0", "bundle:2") {
		t.Error("bundle:0 must not reach bundle:2 — the edge only runs one way")
	}
	if d.Reaches("bundle:2", "bundle:2") {
		t.Error("a bundle does not reach itself")
	}
}

func TestSuccessorsReturnsReferrers(t *testing.T) {
	d := NewDirectedAcyclicGraph[string]()
	mustAddVertex(t, d, "bundle:0", 0)
	mustAddVertex(t, d, "bundle:1", 1)
	mustAddVertex(t, d, "bundle:2", 2)

	if err := d.AddDependencies("bundle:1", []string{"bundle:0"}); err != nil {
		t.Fatalf("adding bundle:1 -> bundle:0: %v", err)
	}
	if err := d.AddDependencies("bundle:2", []string{"bundle:0"}); err != nil {
		t.Fatalf("adding bundle:2 -> bundle:0: %v", err)
	}

	got := d.Successors("bundle:0")
	want := []string{"bundle:1", "bundle:2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Successors(bundle:0) = %v, want %v", got, want)
	}
}

func mustAddVertex(t *testing.T, d *DirectedAcyclicGraph[string], id string, order int) {
	t.Helper()
	if err := d.AddVertex(id, order); err != nil {
		t.Fatalf("AddVertex(%q, %d): %v", id, order, err)
	}
}
