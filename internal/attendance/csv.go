package attendance

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ContentType is sent with every CSV download.
const ContentType = "text/csv;charset=utf-8"

// ReportHeader is the first line of a report export.
const ReportHeader = "Date,Student Name,Attended Classes,Absences,Excused Absences,Total Classes,Attendance %"

// RecordsHeader is the first line of a raw record export.
const RecordsHeader = "Student Name,Student ID,Course ID,Course Name,Attendance Date,Attendance Time,Assistant ID"

// WriteCSV writes one row per (group, student) pair, in order.
func WriteCSV(w io.Writer, groups []DailyGroup) error {
	if _, err := io.WriteString(w, ReportHeader+"\n"); err != nil {
		return err
	}
	for _, g := range groups {
		for _, s := range g.Students {
			row := strings.Join([]string{
				g.Date,
				quote(s.Name),
				strconv.Itoa(s.AttendedClasses),
				strconv.Itoa(s.Absences),
				strconv.Itoa(s.ExcusedAbsences),
				strconv.Itoa(s.TotalClasses),
				formatPercent(s),
			}, ",")
			if _, err := io.WriteString(w, row+"\n"); err != nil {
				return err
			}
		}
	}
	return nil
}

// ToCSV renders groups as report CSV text.
func ToCSV(groups []DailyGroup) string {
	var buf bytes.Buffer
	_ = WriteCSV(&buf, groups)
	return buf.String()
}

// WriteRecordsCSV writes the flat record export, one row per record.
func WriteRecordsCSV(w io.Writer, records []Record, courseName string) error {
	if _, err := io.WriteString(w, RecordsHeader+"\n"); err != nil {
		return err
	}
	for _, rec := range records {
		day, clock := splitTimestamp(rec)
		row := strings.Join([]string{
			quote(rec.StudentName),
			strconv.FormatInt(rec.StudentID, 10),
			strconv.FormatInt(rec.CourseID, 10),
			quote(courseName),
			day,
			clock,
			strconv.FormatInt(rec.AssistantID, 10),
		}, ",")
		if _, err := io.WriteString(w, row+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// ExportFilename names a report download.
func ExportFilename(courseID int64, day time.Time) string {
	return fmt.Sprintf("attendance_course_%d_%s.csv", courseID, day.Format(DayLayout))
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9]`)

// RecordsFilename names a raw record download.
func RecordsFilename(courseName string, day time.Time) string {
	return fmt.Sprintf("%s_Attendance_%s.csv", unsafeName.ReplaceAllString(courseName, "_"), day.Format(DayLayout))
}

func formatPercent(s StudentSummary) string {
	if s.TotalClasses <= 0 {
		return "0%"
	}
	return strconv.FormatFloat(s.Percent(), 'f', 2, 64) + "%"
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// splitTimestamp prefers the explicit check-in time and falls back to the
// time of day carried by the date, if any.
func splitTimestamp(rec Record) (string, string) {
	t, err := ParseTimestamp(rec.Date)
	if err != nil {
		return quote(rec.Date), ""
	}
	clock := ""
	if rec.Time != nil {
		clock = strings.TrimSpace(*rec.Time)
	} else if strings.ContainsAny(strings.TrimSpace(rec.Date), "T ") {
		clock = t.Format("15:04:05")
	}
	if clock != "" {
		clock = quote(clock)
	}
	return t.Format(DayLayout), clock
}
