package attendance

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DayLayout is the date-only key format used for grouping and filtering.
const DayLayout = "2006-01-02"

// Record is one student-attended-one-session fact as returned by the backend.
type Record struct {
	Date        string  `json:"date"`
	Time        *string `json:"time"`
	StudentName string  `json:"studentName"`
	StudentID   int64   `json:"studentId"`
	CourseID    int64   `json:"courseId"`
	AssistantID int64   `json:"assistantId"`
}

// UnmarshalJSON accepts every spelling of the assistant id the backend has
// been seen to send.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var aux struct {
		plain
		Misspelled *int64 `json:"asisstantId"`
		Lowercase  *int64 `json:"assistantid"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Record(aux.plain)
	if r.AssistantID == 0 {
		switch {
		case aux.Misspelled != nil:
			r.AssistantID = *aux.Misspelled
		case aux.Lowercase != nil:
			r.AssistantID = *aux.Lowercase
		}
	}
	return nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	DayLayout,
}

// ParseTimestamp parses a backend date value. Timestamps without a zone are
// read as written.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("date is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognised date %q", raw)
}

// DayKey normalizes a backend date value to its calendar day. The day is taken
// in the offset the timestamp was written with, so the same session never
// lands on two keys because of zone conversion.
func DayKey(raw string) (string, error) {
	t, err := ParseTimestamp(raw)
	if err != nil {
		return "", err
	}
	return t.Format(DayLayout), nil
}
