package roster

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Job statuses. A job moves pending -> processing -> done|failed.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// ErrJobNotFound is returned for unknown jobs and for jobs owned by another session.
var ErrJobNotFound = errors.New("import job not found")

// Job is a queued bulk student import.
type Job struct {
	ID        string    `json:"id"`
	SessionID string    `json:"-"`
	CourseID  int64     `json:"courseId"`
	Filename  string    `json:"filename"`
	Content   []byte    `json:"-"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Finished reports whether the job reached a terminal status.
func (j Job) Finished() bool {
	return j.Status == StatusDone || j.Status == StatusFailed
}

// JobStore persists import jobs.
type JobStore interface {
	Insert(ctx context.Context, job Job) (Job, error)
	Get(ctx context.Context, id string) (Job, error)
	UpdateStatus(ctx context.Context, id, status, message string) error
}

// Schema creates the import job table.
const Schema = `
CREATE TABLE IF NOT EXISTS import_jobs (
	id          UUID PRIMARY KEY,
	session_id  TEXT NOT NULL,
	course_id   BIGINT NOT NULL,
	filename    TEXT NOT NULL,
	content     BYTEA NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	message     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Repository persists import jobs in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new job.
func (r *Repository) Insert(ctx context.Context, job Job) (Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO import_jobs (id, session_id, course_id, filename, content, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at
	`, job.ID, job.SessionID, job.CourseID, job.Filename, job.Content, job.Status)
	if err := row.Scan(&job.CreatedAt, &job.UpdatedAt); err != nil {
		return Job{}, errors.Wrap(err, "insert import job")
	}
	return job, nil
}

// Get returns a single job by id.
func (r *Repository) Get(ctx context.Context, id string) (Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Job{}, ErrJobNotFound
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, course_id, filename, content, status, message, created_at, updated_at
		FROM import_jobs WHERE id = $1
	`, id)
	var j Job
	if err := row.Scan(&j.ID, &j.SessionID, &j.CourseID, &j.Filename, &j.Content, &j.Status, &j.Message, &j.CreatedAt, &j.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrJobNotFound
		}
		return Job{}, errors.Wrap(err, "get import job")
	}
	return j, nil
}

// UpdateStatus moves a job to status. The file body is dropped once the job finishes.
func (r *Repository) UpdateStatus(ctx context.Context, id, status, message string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE import_jobs
		SET status = $2,
			message = $3,
			content = CASE WHEN $2 IN ('done', 'failed') THEN ''::bytea ELSE content END,
			updated_at = NOW()
		WHERE id = $1
	`, id, status, message)
	if err != nil {
		return errors.Wrap(err, "update import job")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// MemoryJobs keeps jobs in process; used with the in-memory queue.
type MemoryJobs struct {
	mu   sync.Mutex
	jobs map[string]Job
	now  func() time.Time
}

// NewMemoryJobs creates an empty job store.
func NewMemoryJobs() *MemoryJobs {
	return &MemoryJobs{jobs: make(map[string]Job), now: time.Now}
}

// Insert stores a new job.
func (m *MemoryJobs) Insert(_ context.Context, job Job) (Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job.CreatedAt = m.now().UTC()
	job.UpdatedAt = job.CreatedAt
	m.jobs[job.ID] = job
	return job, nil
}

// Get returns a job by id.
func (m *MemoryJobs) Get(_ context.Context, id string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return j, nil
}

// UpdateStatus moves a job to status.
func (m *MemoryJobs) UpdateStatus(_ context.Context, id, status, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	j.Status = status
	j.Message = message
	j.UpdatedAt = m.now().UTC()
	if j.Finished() {
		j.Content = nil
	}
	m.jobs[id] = j
	return nil
}
