package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"dashboard/internal/attendance"
	"dashboard/internal/validation"
)

func (h *Handler) view(c *gin.Context) (attendance.View, bool) {
	id, ok := courseID(c)
	if !ok {
		return attendance.View{}, false
	}
	s := h.session(c)
	return attendance.View{SessionID: s.ID, Token: s.BackendToken, CourseID: id}, true
}

func filterOf(c *gin.Context) (attendance.Filter, error) {
	f := attendance.Filter{
		Search: strings.TrimSpace(c.Query("search")),
		Date:   strings.TrimSpace(c.Query("date")),
	}
	if f.Date != "" {
		day, err := attendance.DayKey(f.Date)
		if err != nil {
			return f, validation.Errors{"date": "Date must be in YYYY-MM-DD format"}
		}
		f.Date = day
	}
	return f, nil
}

func (h *Handler) attendanceReport(c *gin.Context) {
	v, ok := h.view(c)
	if !ok {
		return
	}
	f, err := filterOf(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	rep, err := h.Attendance.Report(c.Request.Context(), v, f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) attendanceExport(c *gin.Context) {
	v, ok := h.view(c)
	if !ok {
		return
	}
	f, err := filterOf(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	name := strings.TrimSpace(c.Query("courseName"))
	if name == "" {
		name = "Course_" + strconv.FormatInt(v.CourseID, 10)
	}
	exp, err := h.Attendance.Export(c.Request.Context(), v, f, c.Query("format"), name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+exp.Filename+`"`)
	c.Header("X-Export-Rows", strconv.Itoa(exp.Rows))
	c.Data(http.StatusOK, exp.ContentType, exp.Body)
}

func (h *Handler) markAttendance(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	var m attendance.Mark
	if !h.bindJSON(c, &m) {
		return
	}
	m.CourseID = id
	if err := h.Attendance.Mark(c.Request.Context(), h.session(c).BackendToken, m); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Attendance recorded"})
}
