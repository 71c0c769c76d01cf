package backend

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

// Student is a roster row.
type Student struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Image           *string `json:"image"`
	AttendedClasses int     `json:"attendedClasses"`
	Absences        int     `json:"absences"`
	ExcusedAbsences int     `json:"excusedAbsences"`
	TotalClasses    int     `json:"totalClasses"`
}

// NewStudent is the payload of the add-student endpoint.
type NewStudent struct {
	NationalID string `json:"nationalId"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
}

// StudentsByCourse returns a course roster. The endpoint has answered with a
// bare array, {items}, {value} and {value:{items}}; all are accepted.
func (cl *Client) StudentsByCourse(ctx context.Context, token string, courseID int64) ([]Student, error) {
	var raw []byte
	err := cl.do(ctx, call{
		endpoint: "student.by-course",
		method:   http.MethodGet,
		path:     "/Student/by-course/" + strconv.FormatInt(courseID, 10),
		token:    token,
		fallback: "Failed to fetch students.",
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeList[Student](cl, "student.by-course", raw), nil
}

// AddStudent adds one student to a course.
func (cl *Client) AddStudent(ctx context.Context, token string, courseID int64, in NewStudent) error {
	return cl.do(ctx, call{
		endpoint: "student.add",
		method:   http.MethodPost,
		path:     "/Student/add",
		query:    courseQuery(courseID),
		token:    token,
		body:     in,
		fallback: "Failed to add student.",
	}, nil)
}

// UploadStudents sends a roster file as multipart field "file".
func (cl *Client) UploadStudents(ctx context.Context, token string, courseID int64, filename string, content io.Reader) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		return &Error{Kind: KindUnexpected, Op: "student.upload", Message: MsgUnexpected, Err: err}
	}
	if _, err := io.Copy(fw, content); err != nil {
		return &Error{Kind: KindUnexpected, Op: "student.upload", Message: MsgUnexpected, Err: errors.Wrap(err, "copy roster file")}
	}
	if err := w.Close(); err != nil {
		return &Error{Kind: KindUnexpected, Op: "student.upload", Message: MsgUnexpected, Err: err}
	}

	return cl.do(ctx, call{
		endpoint:    "student.upload",
		method:      http.MethodPost,
		path:        "/Student/upload",
		query:       courseQuery(courseID),
		token:       token,
		raw:         buf.Bytes(),
		contentType: w.FormDataContentType(),
		fallback:    "Failed to upload students file.",
	}, nil)
}

func courseQuery(courseID int64) url.Values {
	return url.Values{"courseid": []string{strconv.FormatInt(courseID, 10)}}
}
