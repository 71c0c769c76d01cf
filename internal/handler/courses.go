package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dashboard/internal/course"
	"dashboard/internal/roster"
)

func (h *Handler) listCourses(c *gin.Context) {
	s := h.session(c)
	courses, err := h.Backend.ListCourses(c.Request.Context(), s.BackendToken, s.InstructorID)
	if err != nil {
		h.fail(c, err)
		return
	}
	summaries := course.Summarize(courses, c.Query("search"), h.now())
	c.JSON(http.StatusOK, gin.H{"courses": summaries, "total": len(courses)})
}

func (h *Handler) addCourse(c *gin.Context) {
	var in course.Input
	if !h.bindJSON(c, &in) {
		return
	}
	s := h.session(c)
	if in.AssistantID == 0 {
		in.AssistantID = s.InstructorID
	}
	if err := course.Validate(h.Validator, in); err != nil {
		h.fail(c, err)
		return
	}
	created, err := h.Backend.AddCourse(c.Request.Context(), s.BackendToken, in.ToBackend())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Log.Info("course added", zap.String("session_id", s.ID), zap.Int64("course_id", created.ID))
	c.JSON(http.StatusCreated, course.Summary{
		Course:  created,
		Status:  course.Status(created, h.now()),
		DayName: course.DayName(created.DayOfCourse),
	})
}

func (h *Handler) deleteCourse(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	s := h.session(c)
	if err := h.Backend.DeleteCourse(c.Request.Context(), s.BackendToken, id); err != nil {
		h.fail(c, err)
		return
	}
	h.Log.Info("course deleted", zap.String("session_id", s.ID), zap.Int64("course_id", id))
	c.Status(http.StatusNoContent)
}

func (h *Handler) addAssistant(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	var in roster.AssistantInput
	if !h.bindJSON(c, &in) {
		return
	}
	payload, err := roster.ValidateAssistant(h.Validator, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Backend.AddAssistant(c.Request.Context(), h.session(c).BackendToken, id, payload); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Assistant added successfully"})
}

func (h *Handler) enrollments(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	students, err := h.Backend.EnrolledStudents(c.Request.Context(), h.session(c).BackendToken, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}
