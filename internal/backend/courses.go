package backend

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// Course is an instructor-owned offering.
type Course struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	StartFrom    string `json:"startFrom"`
	EndIn        string `json:"endIn"`
	DayOfCourse  int    `json:"dayOfCourse"`
	InstructorID int64  `json:"instructorId"`
}

// NewCourse is the payload of the add-course endpoint.
type NewCourse struct {
	Name         string `json:"name"`
	StartFrom    string `json:"startFrom"`
	EndIn        string `json:"endIn"`
	DayOfCourse  int    `json:"dayOfCourse"`
	InstructorID int64  `json:"instructorId"`
}

// NewAssistant is the payload of the add-assistant endpoint.
type NewAssistant struct {
	Name        string `json:"name"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`
}

// EnrolledStudent is a row of a course enrollment listing.
type EnrolledStudent struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phoneNumber"`
	EnrollmentDate string `json:"enrollmentDate"`
	Status         string `json:"status"`
}

// ListCourses returns every course of an assistant/instructor.
func (cl *Client) ListCourses(ctx context.Context, token string, assistantID int64) ([]Course, error) {
	var raw []byte
	err := cl.do(ctx, call{
		endpoint: "course.all",
		method:   http.MethodGet,
		path:     "/Course/all/" + strconv.FormatInt(assistantID, 10),
		token:    token,
		fallback: "Failed to fetch courses.",
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeList[Course](cl, "course.all", raw), nil
}

// AddCourse creates a course.
func (cl *Client) AddCourse(ctx context.Context, token string, in NewCourse) (Course, error) {
	payload := struct {
		ID int64 `json:"id"`
		NewCourse
	}{NewCourse: in}

	var out Course
	err := cl.do(ctx, call{
		endpoint: "instructor.add-course",
		method:   http.MethodPost,
		path:     "/Instructor/add-course",
		token:    token,
		body:     payload,
		fallback: "Failed to add course. Please check your data.",
	}, &out)
	return out, err
}

// DeleteCourse removes a course.
func (cl *Client) DeleteCourse(ctx context.Context, token string, courseID int64) error {
	return cl.do(ctx, call{
		endpoint: "course.delete",
		method:   http.MethodDelete,
		path:     "/Course/" + strconv.FormatInt(courseID, 10),
		token:    token,
		fallback: "Failed to delete course.",
	}, nil)
}

// AddAssistant attaches a new assistant account to a course.
func (cl *Client) AddAssistant(ctx context.Context, token string, courseID int64, in NewAssistant) error {
	payload := struct {
		CourseID int64 `json:"courseId"`
		NewAssistant
	}{CourseID: courseID, NewAssistant: in}

	return cl.do(ctx, call{
		endpoint: "assistant.add",
		method:   http.MethodPost,
		path:     "/Asisstant/add",
		token:    token,
		body:     payload,
		fallback: "Failed to add assistant to course",
	}, nil)
}

// EnrolledStudents lists the students enrolled in a course.
func (cl *Client) EnrolledStudents(ctx context.Context, token string, courseID int64) ([]EnrolledStudent, error) {
	var raw []byte
	err := cl.do(ctx, call{
		endpoint: "course.students",
		method:   http.MethodGet,
		path:     "/Course/" + strconv.FormatInt(courseID, 10) + "/students",
		token:    token,
		fallback: "Failed to fetch enrolled students",
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeList[EnrolledStudent](cl, "course.students", raw), nil
}

// decodeList normalizes a list body; unknown shapes become an empty list.
func decodeList[T any](cl *Client, endpoint string, raw []byte) []T {
	page, err := DecodePage[T](raw, PageRequest{Number: 1})
	if err != nil {
		cl.Log.Warn("unexpected list shape from backend",
			zap.String("endpoint", endpoint), zap.Stringer("shape", page.Shape), zap.Error(err))
	}
	return page.Items
}
