package merge

// pruneAbsent deep-copies a nested object value, dropping keys whose value is
// nil at any depth. The store rejects absent values; an explicit null is
// represented by a Candidate with Null set, never by a nil inside an object.
func pruneAbsent(v map[string]any) map[string]any {
	out := make(map[string]any, len(v))
	for k, inner := range v {
		if inner == nil {
			continue
		}
		if m, ok := inner.(map[string]any); ok {
			pruned := pruneAbsent(m)
			if len(pruned) == 0 {
				continue
			}
			out[k] = pruned
			continue
		}
		out[k] = inner
	}
	return out
}
