package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dashboard/internal/roster"
	"dashboard/internal/validation"
)

func (h *Handler) listStudents(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	students, err := h.Backend.StudentsByCourse(c.Request.Context(), h.session(c).BackendToken, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	rows := roster.FilterStudents(students, c.Query("search"))
	c.JSON(http.StatusOK, gin.H{"students": rows, "total": len(students)})
}

func (h *Handler) addStudent(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	var in roster.StudentInput
	if !h.bindJSON(c, &in) {
		return
	}
	payload, err := roster.ValidateStudent(h.Validator, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Backend.AddStudent(c.Request.Context(), h.session(c).BackendToken, id, payload); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Student added successfully"})
}

func (h *Handler) uploadStudents(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	if h.MaxUploadBytes > 0 {
		// Leave room for the multipart framing around the file.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+1<<20)
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.fail(c, validation.Errors{"file": "Please select a file"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.fail(c, validation.Errors{"file": "File is too large"})
		return
	}

	s := h.session(c)
	job, err := h.Importer.Submit(c.Request.Context(), s, id, header.Filename, content)
	if err != nil {
		h.fail(c, err)
		return
	}
	if job == nil {
		h.Log.Info("roster uploaded", zap.String("session_id", s.ID), zap.Int64("course_id", id))
		c.Status(http.StatusNoContent)
		return
	}
	h.Log.Info("roster import queued", zap.String("session_id", s.ID), zap.String("job", job.ID))
	c.JSON(http.StatusAccepted, job)
}

func (h *Handler) importStatus(c *gin.Context) {
	job, err := h.Importer.Status(c.Request.Context(), h.session(c).ID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
