package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dashboard/internal/attendance"
)

// maxPages bounds how many pages one course fetch may request, whatever the
// backend reports.
const maxPages = 500

// CourseAttendance fetches one page of attendance records.
func (cl *Client) CourseAttendance(ctx context.Context, token string, courseID int64, pageNumber, pageSize int, search string) (Page[attendance.Record], error) {
	q := url.Values{}
	q.Set("courseId", strconv.FormatInt(courseID, 10))
	q.Set("PageNumber", strconv.Itoa(pageNumber))
	q.Set("PageSize", strconv.Itoa(pageSize))
	if search != "" {
		q.Set("searchTerm", search)
	}

	req := PageRequest{Number: pageNumber, Size: pageSize}
	var raw []byte
	err := cl.do(ctx, call{
		endpoint: "attendance.for-course",
		method:   http.MethodGet,
		path:     "/Attendance/for-course",
		query:    q,
		token:    token,
		fallback: "Failed to fetch attendance data.",
	}, &raw)
	if err != nil {
		return Page[attendance.Record]{Items: []attendance.Record{}, PageNumber: pageNumber, PageSize: pageSize, TotalPages: 1}, err
	}

	page, derr := DecodePage[attendance.Record](raw, req)
	if derr != nil {
		cl.Log.Warn("unexpected attendance envelope",
			zap.Int64("course_id", courseID), zap.Stringer("shape", page.Shape), zap.Error(derr))
	}
	return page, nil
}

// AllCourseAttendance fetches every page of a course's attendance. Pages after
// the first are fetched concurrently when the page count is known.
func (cl *Client) AllCourseAttendance(ctx context.Context, token string, courseID int64) ([]attendance.Record, error) {
	size := cl.PageSize
	if size <= 0 {
		size = 50
	}
	first, err := cl.CourseAttendance(ctx, token, courseID, 1, size, "")
	if err != nil {
		return nil, err
	}
	records := append([]attendance.Record{}, first.Items...)
	if len(first.Items) == 0 {
		return records, nil
	}

	total := first.TotalPages
	if total > maxPages {
		cl.Log.Warn("backend reported too many attendance pages, truncating",
			zap.Int64("course_id", courseID), zap.Int("total_pages", total), zap.Int("max_pages", maxPages))
		total = maxPages
	}

	switch {
	case total > 1:
		rest := make([][]attendance.Record, total-1)
		g, gctx := errgroup.WithContext(ctx)
		limit := cl.Concurrency
		if limit <= 0 {
			limit = 1
		}
		g.SetLimit(limit)
		for n := 2; n <= total; n++ {
			n := n
			g.Go(func() error {
				page, err := cl.CourseAttendance(gctx, token, courseID, n, size, "")
				if err != nil {
					return err
				}
				rest[n-2] = page.Items
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, items := range rest {
			records = append(records, items...)
		}

	case first.HasNext:
		for n := 2; n <= maxPages; n++ {
			page, err := cl.CourseAttendance(ctx, token, courseID, n, size, "")
			if err != nil {
				return nil, err
			}
			records = append(records, page.Items...)
			if !page.HasNext || len(page.Items) == 0 {
				break
			}
		}
	}
	return records, nil
}

// MarkAttendance records one attended session.
func (cl *Client) MarkAttendance(ctx context.Context, token string, m attendance.Mark) error {
	body := map[string]interface{}{
		"courseId":  m.CourseID,
		"studentId": m.StudentID,
		"date":      m.Date,
		"time":      m.Time,
	}
	return cl.do(ctx, call{
		endpoint: "attendance.mark",
		method:   http.MethodPost,
		path:     "/Attendance/mark",
		token:    token,
		body:     body,
		fallback: "Failed to mark attendance.",
	}, nil)
}
