package attendance

// Stats summarizes a filtered report.
type Stats struct {
	AverageAttendancePercent float64 `json:"averageAttendancePercent"`
	// TotalDistinctStudentEntries is student entries divided by the number of
	// groups, i.e. an average per day, not a count of distinct students.
	TotalDistinctStudentEntries float64 `json:"totalDistinctStudentEntries"`
	TotalAbsences               int     `json:"totalAbsences"`
}

// ComputeStats aggregates over every student in every group.
func ComputeStats(groups []DailyGroup) Stats {
	var entries, attended, total, absences int
	for _, g := range groups {
		for _, s := range g.Students {
			entries++
			attended += s.AttendedClasses
			total += s.TotalClasses
			absences += s.Absences
		}
	}

	var avg float64
	if total > 0 {
		avg = float64(attended) / float64(total) * 100
	}
	days := len(groups)
	if days == 0 {
		days = 1
	}
	return Stats{
		AverageAttendancePercent:    avg,
		TotalDistinctStudentEntries: float64(entries) / float64(days),
		TotalAbsences:               absences,
	}
}
