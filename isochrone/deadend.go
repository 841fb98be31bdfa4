package isochrone

// DeadEnds returns the edges of the shortest-path tree that no other entry
// continues from. Sampling them produces spikes, so the sampler skips them on
// the fully-inside path. The map is not modified.
func DeadEnds(am *AccessibilityMap) EdgeSet {
	parents := make(map[int]struct{}, len(am.Entries))
	for _, e := range am.Entries {
		if e.Parent < 0 || e.Parent >= len(am.Entries) {
			continue
		}
		if pe := am.Entries[e.Parent].Edge; pe != NoEdge {
			parents[pe] = struct{}{}
		}
	}

	dead := make(EdgeSet)
	for _, e := range am.Entries {
		if e.Edge == NoEdge {
			continue
		}
		if _, ok := parents[e.Edge]; !ok {
			dead[e.Edge] = struct{}{}
		}
	}
	return dead
}
