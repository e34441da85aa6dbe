package domain

import (
	"dario.cat/mergo"
)

// MergeVariables merges updates into current, overriding scalar values and
// appending slices. Used for updateVariables and for folding for-each output
// collections back into the outer scope.
func MergeVariables(current, updates Variables) (Variables, error) {
	if len(current) == 0 {
		return updates, nil
	}

	if len(updates) == 0 {
		return current, nil
	}

	merged := make(Variables, len(current))
	for k, v := range current {
		merged[k] = v
	}

	if err := mergo.Merge((*map[string]interface{})(&merged), map[string]interface{}(updates),
		mergo.WithOverride,
		mergo.WithAppendSlice); err != nil {
		return nil, err
	}

	return merged, nil
}
