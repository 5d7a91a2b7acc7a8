package objgraph

// PathTo reconstructs the access path from the root to the object with the
// given identity, in root-to-target order. For an object at depth k the path
// has exactly k steps; the final step's Object is the target itself. The walk
// is bounded by the size of the parent map, so it terminates even on a
// malformed snapshot.
func (s *Snapshot) PathTo(id ID) []Step {
	var steps []Step
	cur := id
	for range len(s.Parents) + 1 {
		edge, ok := s.Parents[cur]
		if !ok {
			// No recorded edge: cur is the root.
			break
		}
		steps = append(steps, Step{Label: edge.Label, Object: s.Objects[cur]})
		cur = edge.Parent
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return steps
}
