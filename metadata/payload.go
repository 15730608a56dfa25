package metadata

// ClonePayload returns a deep copy of a payload map. Nested maps and
// slices are copied; scalar values are shared. Callers on both sides of
// the store boundary receive independent maps, so mutating a payload
// after an upsert or a read never changes filter-visible state.
func ClonePayload(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}

	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return ClonePayload(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
