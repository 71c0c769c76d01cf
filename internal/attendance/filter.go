package attendance

import "strings"

// Filter narrows a report. Zero values mean "no filter".
type Filter struct {
	Search string `json:"search,omitempty"`
	Date   string `json:"date,omitempty"`
}

// MatchesName reports whether name contains term, ignoring case.
func MatchesName(name, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(term))
}

// FilterGroups keeps the groups on f.Date (when set) that still have at least
// one student whose name matches f.Search; surviving groups carry only the
// matching students. The input is not modified.
func FilterGroups(groups []DailyGroup, f Filter) []DailyGroup {
	out := make([]DailyGroup, 0, len(groups))
	for _, g := range groups {
		if f.Date != "" && g.Date != f.Date {
			continue
		}
		var students []StudentSummary
		for _, s := range g.Students {
			if MatchesName(s.Name, f.Search) {
				students = append(students, s)
			}
		}
		if len(students) == 0 {
			continue
		}
		out = append(out, DailyGroup{Date: g.Date, Students: students})
	}
	return out
}
