package volley

import "sort"

// sortByIndex orders outcomes by their original request index and
// extracts the result values: successes contribute their transformed
// value, failures contribute their *RequestError. This restores input
// order after out-of-order concurrent completion.
func sortByIndex(outcomes []Outcome) []any {
	sorted := make([]Outcome, len(outcomes))
	copy(sorted, outcomes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})

	values := make([]any, len(sorted))
	for i, oc := range sorted {
		if oc.Err != nil {
			values[i] = oc.Err
			continue
		}
		values[i] = oc.Value
	}
	return values
}
