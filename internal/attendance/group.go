package attendance

import "fmt"

// StudentSummary is the per-student view of attendance inside one group.
//
// The attendance endpoint only reports sessions that were attended, so
// AttendedClasses and TotalClasses are always 1 and the absence counters are
// always 0. Percentages derived from it are therefore always 100%. That is a
// gap in the backend data, not something this package computes around.
type StudentSummary struct {
	StudentID       int64  `json:"studentId"`
	Name            string `json:"name"`
	AttendedClasses int    `json:"attendedClasses"`
	Absences        int    `json:"absences"`
	ExcusedAbsences int    `json:"excusedAbsences"`
	TotalClasses    int    `json:"totalClasses"`
}

// Percent returns attended/total as a percentage, 0 when total is 0.
func (s StudentSummary) Percent() float64 {
	if s.TotalClasses <= 0 {
		return 0
	}
	return float64(s.AttendedClasses) / float64(s.TotalClasses) * 100
}

// DailyGroup holds everyone who attended on one calendar day.
type DailyGroup struct {
	Date     string           `json:"date"`
	Students []StudentSummary `json:"students"`
}

// RecordError reports a record that could not be grouped.
type RecordError struct {
	Index  int
	Record Record
	Err    error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d (student %d): %v", e.Index, e.Record.StudentID, e.Err)
}

// GroupByDate buckets records by calendar day. Groups appear in the order
// their day is first seen and students keep input order inside a group.
// Records with an unusable date are skipped and returned as errors; the rest
// of the batch is still grouped.
func GroupByDate(records []Record) ([]DailyGroup, []RecordError) {
	var (
		groups []DailyGroup
		bad    []RecordError
		index  = make(map[string]int)
	)
	for i, rec := range records {
		day, err := DayKey(rec.Date)
		if err != nil {
			bad = append(bad, RecordError{Index: i, Record: rec, Err: err})
			continue
		}
		pos, ok := index[day]
		if !ok {
			pos = len(groups)
			index[day] = pos
			groups = append(groups, DailyGroup{Date: day})
		}
		groups[pos].Students = append(groups[pos].Students, summarize(rec))
	}
	return groups, bad
}

func summarize(rec Record) StudentSummary {
	return StudentSummary{
		StudentID:       rec.StudentID,
		Name:            rec.StudentName,
		AttendedClasses: 1,
		Absences:        0,
		ExcusedAbsences: 0,
		TotalClasses:    1,
	}
}
