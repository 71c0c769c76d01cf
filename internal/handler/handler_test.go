package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashboard/internal/attendance"
	"dashboard/internal/auth"
	"dashboard/internal/backend"
	"dashboard/internal/course"
	"dashboard/internal/queue"
	"dashboard/internal/roster"
	"dashboard/internal/session"
	"dashboard/internal/validation"
)

type fakeBackend struct {
	mu sync.Mutex

	identity backend.Identity
	loginErr error
	courses  []backend.Course
	students []backend.Student
	records  []attendance.Record
	err      error // returned by every authenticated call when set

	addedCourses []backend.NewCourse
	uploads      []string
	tokens       []string
}

func (f *fakeBackend) seen(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	return f.err
}

func (f *fakeBackend) Login(_ context.Context, email, _ string) (backend.Identity, error) {
	if f.loginErr != nil {
		return backend.Identity{}, f.loginErr
	}
	id := f.identity
	id.Email = email
	return id, nil
}

func (f *fakeBackend) ListCourses(_ context.Context, token string, _ int64) ([]backend.Course, error) {
	return f.courses, f.seen(token)
}

func (f *fakeBackend) AddCourse(_ context.Context, token string, in backend.NewCourse) (backend.Course, error) {
	if err := f.seen(token); err != nil {
		return backend.Course{}, err
	}
	f.mu.Lock()
	f.addedCourses = append(f.addedCourses, in)
	f.mu.Unlock()
	return backend.Course{ID: 99, Name: in.Name, StartFrom: in.StartFrom, EndIn: in.EndIn, DayOfCourse: in.DayOfCourse, InstructorID: in.InstructorID}, nil
}

func (f *fakeBackend) DeleteCourse(_ context.Context, token string, _ int64) error {
	return f.seen(token)
}

func (f *fakeBackend) AddAssistant(_ context.Context, token string, _ int64, _ backend.NewAssistant) error {
	return f.seen(token)
}

func (f *fakeBackend) EnrolledStudents(_ context.Context, token string, _ int64) ([]backend.EnrolledStudent, error) {
	return []backend.EnrolledStudent{{ID: 1, Name: "Ann"}}, f.seen(token)
}

func (f *fakeBackend) StudentsByCourse(_ context.Context, token string, _ int64) ([]backend.Student, error) {
	return f.students, f.seen(token)
}

func (f *fakeBackend) AddStudent(_ context.Context, token string, _ int64, _ backend.NewStudent) error {
	return f.seen(token)
}

func (f *fakeBackend) UploadStudents(_ context.Context, token string, _ int64, filename string, content io.Reader) error {
	if err := f.seen(token); err != nil {
		return err
	}
	data, _ := io.ReadAll(content)
	f.mu.Lock()
	f.uploads = append(f.uploads, filename+":"+string(data))
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) AllCourseAttendance(_ context.Context, token string, _ int64) ([]attendance.Record, error) {
	return f.records, f.seen(token)
}

func (f *fakeBackend) MarkAttendance(_ context.Context, token string, _ attendance.Mark) error {
	return f.seen(token)
}

type testEnv struct {
	router   *gin.Engine
	backend  *fakeBackend
	sessions *session.Manager
}

func newTestEnv(t *testing.T, importer func(Backend, *session.Manager) *roster.Importer) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fb := &fakeBackend{
		identity: backend.Identity{InstructorID: 42, Token: "backend-token"},
		courses: []backend.Course{
			{ID: 1, Name: "Go 101", StartFrom: "2020-01-01", EndIn: "2020-06-01", DayOfCourse: 1},
			{ID: 2, Name: "Rust", StartFrom: "2099-01-01", EndIn: "2099-06-01", DayOfCourse: 3},
		},
		students: []backend.Student{{ID: 1, Name: "Ann Lee"}, {ID: 2, Name: "Ben"}},
		records: []attendance.Record{
			{Date: "2024-03-01", StudentName: "Ann", StudentID: 1, CourseID: 1},
			{Date: "2024-03-01", StudentName: "Ben", StudentID: 2, CourseID: 1},
			{Date: "2024-03-02", StudentName: "Ann", StudentID: 1, CourseID: 1},
		},
	}
	sessions := session.NewManager(session.NewMemory(), time.Hour, nil)
	v := validation.New()
	course.Register(v)

	im := roster.NewImporter(nil, nil, fb, 1<<20, nil)
	if importer != nil {
		im = importer(fb, sessions)
	}
	h := New(Deps{
		Backend:        fb,
		Attendance:     attendance.NewService(fb, v, nil),
		Sessions:       sessions,
		Issuer:         auth.NewIssuer("dashboard-test", "secret", time.Minute, time.Hour),
		Importer:       im,
		Validator:      v,
		MaxUploadBytes: 1 << 20,
	})
	r := gin.New()
	h.Register(r)
	return &testEnv{router: r, backend: fb, sessions: sessions}
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T) tokenResponse {
	t.Helper()
	rec := e.do(http.MethodPost, "/v1/auth/login", "", gin.H{"email": "a@b.com", "password": "secret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestLoginAndSession(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.login(t)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(42), resp.Session.InstructorID)
	assert.Equal(t, session.PageCourses, resp.Session.CurrentPage)
	assert.True(t, resp.Session.ShowWelcome)

	rec := env.do(http.MethodGet, "/v1/session", resp.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "a@b.com", body["email"])
	assert.NotContains(t, body, "backendToken")
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodPost, "/v1/auth/login", "", gin.H{"email": "nope", "password": "ab"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode(t, rec)["fields"].(map[string]interface{})
	assert.Equal(t, "Please enter a valid email address", fields["email"])
	assert.Equal(t, "Password must be at least 3 characters long", fields["password"])

	rec = env.do(http.MethodPost, "/v1/auth/login", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginBackendErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "bad credentials",
			err:      &backend.Error{Kind: backend.KindServer, Status: 401, Message: "Invalid email or password. Please check your credentials."},
			wantCode: http.StatusUnauthorized,
			wantMsg:  "Invalid email or password. Please check your credentials.",
		},
		{name: "no identity", err: backend.ErrNoIdentity, wantCode: http.StatusBadGateway, wantMsg: backend.MsgNoIdentity},
		{
			name:     "network",
			err:      &backend.Error{Kind: backend.KindTransport, Message: backend.MsgNetwork},
			wantCode: http.StatusBadGateway,
			wantMsg:  backend.MsgNetwork,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.backend.loginErr = tt.err
			rec := env.do(http.MethodPost, "/v1/auth/login", "", gin.H{"email": "a@b.com", "password": "secret"})
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantMsg, decode(t, rec)["error"])
		})
	}
}

func TestRefreshAndLogout(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.login(t)

	rec := env.do(http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": resp.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": resp.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/v1/auth/logout", resp.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, auth.LoginPath, decode(t, rec)["redirect"])

	rec = env.do(http.MethodGet, "/v1/session", resp.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": resp.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequiresSession(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/v1/courses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, auth.LoginPath, decode(t, rec)["redirect"])
}

func TestListCourses(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login(t).AccessToken

	rec := env.do(http.MethodGet, "/v1/courses", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Courses []course.Summary `json:"courses"`
		Total   int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Courses, 2)
	assert.Equal(t, course.StatusCompleted, body.Courses[0].Status)
	assert.Equal(t, course.StatusUpcoming, body.Courses[1].Status)
	assert.Equal(t, "Monday", body.Courses[0].DayName)
	assert.Equal(t, []string{"backend-token"}, env.backend.tokens)

	rec = env.do(http.MethodGet, "/v1/courses?search=rus", tok, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Courses, 1)
	assert.Equal(t, 2, body.Total)
}

func TestBackendUnauthorizedClearsSession(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login(t).AccessToken
	env.backend.err = &backend.Error{Kind: backend.KindUnauthorized, Status: 401, Message: "Failed to fetch courses."}

	rec := env.do(http.MethodGet, "/v1/courses", tok, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, auth.LoginPath, decode(t, rec)["redirect"])

	env.backend.err = nil
	rec = env.do(http.MethodGet, "/v1/session", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "session is gone")
}

func TestBackendErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "transport", err: &backend.Error{Kind: backend.KindTransport, Message: backend.MsgNetwork}, wantCode: http.StatusBadGateway},
		{name: "not found", err: &backend.Error{Kind: backend.KindServer, Status: 404, Message: "Failed to delete course."}, wantCode: http.StatusNotFound},
		{name: "server error", err: &backend.Error{Kind: backend.KindServer, Status: 500, Message: "Failed to delete course."}, wantCode: http.StatusBadGateway},
		{name: "unexpected", err: &backend.Error{Kind: backend.KindUnexpected, Message: backend.MsgUnexpected}, wantCode: http.StatusInternalServerError},
		{name: "plain", err: assert.AnError, wantCode: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			tok := env.login(t).AccessToken
			env.backend.err = tt.err
			rec := env.do(http.MethodDelete, "/v1/courses/1", tok, nil)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestAddCourse(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login(t).AccessToken

	rec := env.do(http.MethodPost, "/v1/courses", tok, gin.H{"name": "G", "startFrom": "2024-03-01", "endIn": "2024-02-01", "dayOfCourse": 2})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode(t, rec)["fields"].(map[string]interface{})
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "endIn")
	assert.Empty(t, env.backend.addedCourses)

	rec = env.do(http.MethodPost, "/v1/courses", tok, gin.H{"name": "Go 201", "startFrom": "2024-03-01", "endIn": "2024-06-01", "dayOfCourse": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, env.backend.addedCourses, 1)
	assert.Equal(t, int64(42), env.backend.addedCourses[0].InstructorID, "defaults to the session's instructor")
	assert.Equal(t, "Tuesday", decode(t, rec)["dayName"])
}

func TestCourseIDValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login(t).AccessToken
	rec := env.do(http.MethodGet, "/v1/courses/abc/students", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStudentsAndAssistants(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login(t).AccessToken

	rec := env.do(http.MethodGet, "/v1/courses/1/students?search=lee", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Students []roster.Row `json:"students"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Students, 1)
	assert.Equal(t, "Ann Lee", body.Students[0].Name)

	rec = env.do(http.MethodPost, "/v1/courses/1/students", tok, gin.H{"nationalId": "123", "name": "Cy"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(http.MethodPost, "/v1/courses/1/students", tok, gin.H{"name": "Cy"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/v1/courses/1/assistants", tok, gin.H{"name": "Bo", "password": "abc", "phoneNumber": "0100"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(http.MethodPost, "/v1/courses/1/assistants", tok, gin.H{"name": "Bo"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/v1/courses/1/enrollments", tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAttendanceReport(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login(t).AccessToken

	rec := env.do(http.MethodGet, "/v1/courses/1/attendance?search=ben", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rep attendance.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	require.Len(t, rep.Groups, 1)
	assert.Equal(t, "2024-03-01", rep.Groups[0].Date)
	require.Len(t, rep.Groups[0].Students, 1)
	assert.Equal(t, "Ben", rep.Groups[0].Students[0].Name)
	assert.Equal(t, 3, rep.TotalRecords)

	rec = env.do(http.MethodGet, "/v1/courses/1/attendance?date=yesterday", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttendanceExport(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login(t).AccessToken

	rec := env.do(http.MethodGet, "/v1/courses/1/attendance/export?date=2024-03-02", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, attendance.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attendance_course_1_")
	assert.Equal(t, "1", rec.Header().Get("X-Export-Rows"))
	lines := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n"), "\n")
	assert.Equal(t, []string{attendance.ReportHeader, `2024-03-02,"Ann",1,0,0,1,100.00%`}, lines)

	rec = env.do(http.MethodGet, "/v1/courses/1/attendance/export?format=records&courseName=Go%20101", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Go_101_Attendance_")
	assert.Equal(t, "3", rec.Header().Get("X-Export-Rows"))

	rec = env.do(http.MethodGet, "/v1/courses/1/attendance/export?format=pdf", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkAttendance(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login(t).AccessToken

	rec := env.do(http.MethodPost, "/v1/courses/1/attendance", tok, gin.H{"studentId": 2, "date": "2024-03-01", "time": "09:00"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodPost, "/v1/courses/1/attendance", tok, gin.H{"date": "2024-03-01"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["fields"], "studentId")
}

func uploadRequest(t *testing.T, path, token, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, _ = io.WriteString(fw, content)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUploadInline(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login(t).AccessToken

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, uploadRequest(t, "/v1/courses/1/students/upload", tok, "roster.csv", "a,b\n"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"roster.csv:a,b\n"}, env.backend.uploads)

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, uploadRequest(t, "/v1/courses/1/students/upload", tok, "roster.pdf", "a,b\n"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadQueued(t *testing.T) {
	var worker *roster.Worker
	env := newTestEnv(t, func(b Backend, sessions *session.Manager) *roster.Importer {
		jobs, q := roster.NewMemoryJobs(), queue.NewInMemory(4)
		worker = roster.NewWorker(jobs, q, sessions, b, nil)
		return roster.NewImporter(jobs, q, b, 1<<20, nil)
	})
	tok := env.login(t).AccessToken

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, uploadRequest(t, "/v1/courses/1/students/upload", tok, "roster.csv", "a,b\n"))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	id, _ := decode(t, rec)["id"].(string)
	require.NotEmpty(t, id)

	assert.Eventually(t, func() bool {
		rec := env.do(http.MethodGet, "/v1/imports/"+id, tok, nil)
		var job roster.Job
		if rec.Code != http.StatusOK || json.Unmarshal(rec.Body.Bytes(), &job) != nil {
			return false
		}
		return job.Status == roster.StatusDone
	}, 2*time.Second, 10*time.Millisecond)

	rec = env.do(http.MethodGet, "/v1/imports/unknown", tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
