package optimizer

import "github.com/dsblv/parcel/internal/bundlererr"

// Stats records what a Run of passes 2-5 actually did, for the CLI
// reporter and for tests that want to assert on decisions rather than
// just final graph shape. Declines are never errors (§7) — they are
// accumulated here instead of being returned up the call stack.
type Stats struct {
	Reparented             int
	AncestorDeduped        int
	SharedBundlesExtracted int
	AsyncInternalized      int
	GroupsRemoved          int
	Declined               []*bundlererr.Declined
}

func (s *Stats) decline(stage, reason string) {
	s.Declined = append(s.Declined, bundlererr.Decline(stage, reason))
}
