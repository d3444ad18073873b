package alerts

import "github.com/ashita-ai/sparkwatch/internal/model"

// Diff compares two evaluation passes by alert id. raised holds alerts in
// next that prev did not have, in next's order; cleared holds ids that were
// in prev but are gone from next.
func Diff(prev, next []model.Alert) (raised []model.Alert, cleared []string) {
	seen := make(map[string]struct{}, len(prev))
	for _, a := range prev {
		seen[a.ID] = struct{}{}
	}
	current := make(map[string]struct{}, len(next))
	for _, a := range next {
		current[a.ID] = struct{}{}
		if _, ok := seen[a.ID]; !ok {
			raised = append(raised, a)
		}
	}
	for _, a := range prev {
		if _, ok := current[a.ID]; !ok {
			cleared = append(cleared, a.ID)
		}
	}
	return raised, cleared
}
