package payroll

import (
	"sort"
	"strings"
	"time"
)

// NormalizeSelection fills the mode from the fields that are set and drops
// duplicate user IDs.
func NormalizeSelection(sel Selection) Selection {
	out := Selection{RateType: strings.TrimSpace(sel.RateType)}
	seen := make(map[string]struct{}, len(sel.UserIDs))
	for _, id := range sel.UserIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out.UserIDs = append(out.UserIDs, id)
	}
	switch {
	case len(out.UserIDs) > 0:
		out.Mode = SelectionExplicit
		out.RateType = ""
	case out.RateType != "":
		out.Mode = SelectionRateType
	case sel.Mode == SelectionExplicit:
		out.Mode = SelectionExplicit
	default:
		out.Mode = SelectionAll
	}
	return out
}

// ResolveRate picks the rate active on the period start, falling back to the
// one active on the period end. Later effective dates win ties.
func ResolveRate(rates []PayRate, start, end time.Time) (PayRate, bool) {
	ordered := make([]PayRate, len(rates))
	copy(ordered, rates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EffectiveFrom.After(ordered[j].EffectiveFrom)
	})
	for _, day := range []time.Time{start, end} {
		for _, rate := range ordered {
			if rate.ActiveOn(day) {
				return rate, true
			}
		}
	}
	return PayRate{}, false
}

// SelectEmployees resolves a selection against the tenant's candidates.
// Explicitly named users that cannot be paid are reported as skipped; users
// outside an implicit selection are not.
func SelectEmployees(sel Selection, candidates []Candidate, start, end time.Time) ([]Selected, []SkippedEmployee) {
	sel = NormalizeSelection(sel)
	var selected []Selected
	var skipped []SkippedEmployee

	if sel.Mode == SelectionExplicit {
		byID := make(map[string]Candidate, len(candidates))
		for _, c := range candidates {
			byID[c.UserID] = c
		}
		for _, id := range sel.UserIDs {
			c, ok := byID[id]
			switch {
			case !ok:
				skipped = append(skipped, SkippedEmployee{UserID: id, Reason: SkipReasonUnknownUser})
			case !c.Active:
				skipped = append(skipped, SkippedEmployee{UserID: id, Reason: SkipReasonInactive})
			default:
				rate, found := ResolveRate(c.Rates, start, end)
				if !found {
					skipped = append(skipped, SkippedEmployee{UserID: id, Reason: SkipReasonNoRate})
					continue
				}
				selected = append(selected, Selected{Candidate: c, Rate: rate})
			}
		}
		return selected, skipped
	}

	for _, c := range candidates {
		if !c.Active {
			continue
		}
		rate, found := ResolveRate(c.Rates, start, end)
		if !found {
			continue
		}
		if sel.RateType != "" && rate.RateType != sel.RateType {
			continue
		}
		selected = append(selected, Selected{Candidate: c, Rate: rate})
	}
	return selected, skipped
}
