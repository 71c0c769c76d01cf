package attendance

import (
	"bytes"
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"dashboard/internal/metrics"
	"dashboard/internal/validation"
)

// Source is the backend the service reads attendance from.
type Source interface {
	AllCourseAttendance(ctx context.Context, token string, courseID int64) ([]Record, error)
	MarkAttendance(ctx context.Context, token string, m Mark) error
}

// Mark is a request to record one attended session.
type Mark struct {
	CourseID  int64  `json:"courseId"`
	StudentID int64  `json:"studentId" validate:"required,min=1"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string `json:"time" validate:"omitempty,clock"`
}

var markMessages = validation.Messages{
	"studentId":     "Student ID is required and must be positive",
	"date.required": "Date is required",
	"date.datetime": "Date must be in YYYY-MM-DD format",
	"time.clock":    "Time must be HH:MM or HH:MM:SS",
}

// View identifies who is looking at which course. Fetches for the same view
// replace each other.
type View struct {
	SessionID string
	Token     string
	CourseID  int64
}

// key scopes superseding to one operation, so an export never cancels the
// report on screen.
func (v View) key(op string) string {
	return v.SessionID + ":" + strconv.FormatInt(v.CourseID, 10) + ":" + op
}

// ReportStudent is a student row with derived display data.
type ReportStudent struct {
	StudentSummary
	AttendancePercent float64   `json:"attendancePercent"`
	NameSegments      []Segment `json:"nameSegments"`
}

// ReportGroup is one day of the report.
type ReportGroup struct {
	Date     string          `json:"date"`
	Students []ReportStudent `json:"students"`
}

// Skipped describes a record that could not be placed in a group.
type Skipped struct {
	Index     int    `json:"index"`
	StudentID int64  `json:"studentId"`
	Date      string `json:"date"`
	Reason    string `json:"reason"`
}

// Report is the aggregated attendance view of a course.
type Report struct {
	CourseID     int64         `json:"courseId"`
	Filter       Filter        `json:"filter"`
	TotalRecords int           `json:"totalRecords"`
	Groups       []ReportGroup `json:"groups"`
	Stats        Stats         `json:"stats"`
	Skipped      []Skipped     `json:"skipped,omitempty"`
}

// Export is a rendered CSV download.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// Export formats.
const (
	FormatReport  = "report"
	FormatRecords = "records"
)

// Service fetches attendance and runs the aggregation pipeline over it.
type Service struct {
	source   Source
	tracker  *Tracker
	validate *validation.Validator
	log      *zap.Logger
	now      func() time.Time
}

// NewService creates a service backed by a source.
func NewService(source Source, validate *validation.Validator, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		source:   source,
		tracker:  NewTracker(),
		validate: validate,
		log:      log,
		now:      time.Now,
	}
}

// Report builds the filtered, date-grouped report for a view.
func (s *Service) Report(ctx context.Context, v View, f Filter) (*Report, error) {
	records, err := s.fetch(ctx, v, "report")
	if err != nil {
		return nil, err
	}
	groups, bad := s.group(v, records)
	filtered := FilterGroups(groups, f)

	rep := &Report{
		CourseID:     v.CourseID,
		Filter:       f,
		TotalRecords: len(records),
		Groups:       make([]ReportGroup, 0, len(filtered)),
		Stats:        ComputeStats(filtered),
	}
	for _, g := range filtered {
		rg := ReportGroup{Date: g.Date, Students: make([]ReportStudent, 0, len(g.Students))}
		for _, st := range g.Students {
			rg.Students = append(rg.Students, ReportStudent{
				StudentSummary:    st,
				AttendancePercent: st.Percent(),
				NameSegments:      Highlight(st.Name, f.Search),
			})
		}
		rep.Groups = append(rep.Groups, rg)
	}
	for _, b := range bad {
		rep.Skipped = append(rep.Skipped, Skipped{
			Index:     b.Index,
			StudentID: b.Record.StudentID,
			Date:      b.Record.Date,
			Reason:    b.Err.Error(),
		})
	}
	return rep, nil
}

// Export renders the filtered view as CSV. FormatRecords writes the flat
// record listing instead of the grouped report.
func (s *Service) Export(ctx context.Context, v View, f Filter, format, courseName string) (*Export, error) {
	records, err := s.fetch(ctx, v, "export")
	if err != nil {
		return nil, err
	}

	var (
		buf  bytes.Buffer
		rows int
		name string
	)
	switch format {
	case FormatRecords:
		kept := filterRecords(records, f)
		if err := WriteRecordsCSV(&buf, kept, courseName); err != nil {
			return nil, errors.Wrap(err, "write records csv")
		}
		rows = len(kept)
		name = RecordsFilename(courseName, s.now())
	case FormatReport, "":
		format = FormatReport
		groups, _ := s.group(v, records)
		filtered := FilterGroups(groups, f)
		if err := WriteCSV(&buf, filtered); err != nil {
			return nil, errors.Wrap(err, "write report csv")
		}
		for _, g := range filtered {
			rows += len(g.Students)
		}
		name = ExportFilename(v.CourseID, s.now())
	default:
		return nil, validation.Errors{"format": "format must be report or records"}
	}

	metrics.AttendanceExports.WithLabelValues(format).Inc()
	s.log.Info("attendance exported",
		zap.Int64("course_id", v.CourseID),
		zap.String("format", format),
		zap.Int("rows", rows))
	return &Export{Filename: name, ContentType: ContentType, Body: buf.Bytes(), Rows: rows}, nil
}

// Mark validates and records an attended session.
func (s *Service) Mark(ctx context.Context, token string, m Mark) error {
	if err := s.validate.Check(m, markMessages); err != nil {
		return err
	}
	return s.source.MarkAttendance(ctx, token, m)
}

func (s *Service) fetch(ctx context.Context, v View, op string) ([]Record, error) {
	ctx, ticket := s.tracker.Begin(ctx, v.key(op))
	defer ticket.Done()

	records, err := s.source.AllCourseAttendance(ctx, v.Token, v.CourseID)
	if !ticket.Current() {
		s.log.Debug("attendance fetch superseded", zap.Int64("course_id", v.CourseID))
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Service) group(v View, records []Record) ([]DailyGroup, []RecordError) {
	groups, bad := GroupByDate(records)
	if len(bad) > 0 {
		metrics.SkippedRecords.Add(float64(len(bad)))
		for _, b := range bad {
			s.log.Warn("attendance record skipped",
				zap.Int64("course_id", v.CourseID),
				zap.Int("index", b.Index),
				zap.Error(b.Err))
		}
	}
	return groups, bad
}

// filterRecords applies the report filter to flat records. Records whose date
// cannot be parsed only survive when no date filter is set.
func filterRecords(records []Record, f Filter) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if f.Date != "" {
			day, err := DayKey(rec.Date)
			if err != nil || day != f.Date {
				continue
			}
		}
		if !MatchesName(rec.StudentName, f.Search) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
