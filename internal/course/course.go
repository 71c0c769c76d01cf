package course

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"dashboard/internal/attendance"
	"dashboard/internal/backend"
	"dashboard/internal/validation"
)

// Status of a course relative to now.
const (
	StatusUpcoming  = "Upcoming"
	StatusActive    = "Active"
	StatusCompleted = "Completed"
)

var weekdays = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayName returns the label of a dayOfCourse value (1 = Monday … 7 = Sunday).
func DayName(day int) string {
	if day < 1 || day > len(weekdays) {
		return ""
	}
	return weekdays[day-1]
}

// Input is the add-course form.
type Input struct {
	Name        string `json:"name" validate:"required,min=2"`
	StartFrom   string `json:"startFrom" validate:"required"`
	EndIn       string `json:"endIn" validate:"required"`
	DayOfCourse int    `json:"dayOfCourse" validate:"min=1,max=7"`
	AssistantID int64  `json:"assistantId" validate:"required,min=1"`
}

var messages = validation.Messages{
	"name.required":      "Course name is required",
	"name.min":           "Course name must be at least 2 characters",
	"startFrom.required": "Start date is required",
	"startFrom.date":     "Start date is not a valid date",
	"endIn.required":     "End date is required",
	"endIn.date":         "End date is not a valid date",
	"endIn.after":        "End date must be after start date",
	"dayOfCourse":        "Day of course must be between 1 (Monday) and 7 (Sunday)",
	"assistantId":        "Assistant ID is required and must be positive",
}

// Register adds the cross-field course rules to v.
func Register(v *validation.Validator) {
	v.RegisterStructValidation(validateDates, Input{})
}

func validateDates(sl validator.StructLevel) {
	in := sl.Current().Interface().(Input)
	var start, end time.Time
	var startErr, endErr error
	if strings.TrimSpace(in.StartFrom) != "" {
		if start, startErr = attendance.ParseTimestamp(in.StartFrom); startErr != nil {
			sl.ReportError(in.StartFrom, "startFrom", "StartFrom", "date", "")
		}
	}
	if strings.TrimSpace(in.EndIn) != "" {
		if end, endErr = attendance.ParseTimestamp(in.EndIn); endErr != nil {
			sl.ReportError(in.EndIn, "endIn", "EndIn", "date", "")
		}
	}
	if !start.IsZero() && !end.IsZero() && startErr == nil && endErr == nil && !end.After(start) {
		sl.ReportError(in.EndIn, "endIn", "EndIn", "after", "startFrom")
	}
}

// Normalize trims the input before validation.
func (in Input) Normalize() Input {
	in.Name = strings.TrimSpace(in.Name)
	in.StartFrom = strings.TrimSpace(in.StartFrom)
	in.EndIn = strings.TrimSpace(in.EndIn)
	return in
}

// Validate checks the form and returns validation.Errors keyed by field.
func Validate(v *validation.Validator, in Input) error {
	return v.Check(in.Normalize(), messages)
}

// ToBackend maps the form to the add-course payload. The backend names the
// owner instructorId.
func (in Input) ToBackend() backend.NewCourse {
	in = in.Normalize()
	return backend.NewCourse{
		Name:         in.Name,
		StartFrom:    in.StartFrom,
		EndIn:        in.EndIn,
		DayOfCourse:  in.DayOfCourse,
		InstructorID: in.AssistantID,
	}
}

// Summary is a course with its derived display fields.
type Summary struct {
	backend.Course
	Status  string `json:"status"`
	DayName string `json:"dayName"`
}

// Status classifies a course at now. Unparseable dates count as active.
func Status(c backend.Course, now time.Time) string {
	start, serr := attendance.ParseTimestamp(c.StartFrom)
	end, eerr := attendance.ParseTimestamp(c.EndIn)
	switch {
	case serr == nil && now.Before(start):
		return StatusUpcoming
	case eerr == nil && now.After(end):
		return StatusCompleted
	default:
		return StatusActive
	}
}

// Summarize decorates and filters courses by a case-insensitive name search.
func Summarize(courses []backend.Course, search string, now time.Time) []Summary {
	out := make([]Summary, 0, len(courses))
	for _, c := range courses {
		if !attendance.MatchesName(c.Name, search) {
			continue
		}
		out = append(out, Summary{Course: c, Status: Status(c, now), DayName: DayName(c.DayOfCourse)})
	}
	return out
}
