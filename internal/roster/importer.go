package roster

import (
	"bytes"
	"context"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"dashboard/internal/backend"
	"dashboard/internal/metrics"
	"dashboard/internal/queue"
	"dashboard/internal/session"
)

// MessageImport is the queue message type carrying an import job id.
const MessageImport = "roster.import"

// MsgSessionGone is recorded on jobs whose owner logged out before the worker ran.
const MsgSessionGone = "Your session has expired, please log in again"

// Uploader sends a roster file to the backend.
type Uploader interface {
	UploadStudents(ctx context.Context, token string, courseID int64, filename string, content io.Reader) error
}

// Sessions resolves the session that owns a job.
type Sessions interface {
	Get(ctx context.Context, id string) (session.Session, error)
}

// Importer accepts roster uploads. With a job store it queues them;
// without one the upload is forwarded inline.
type Importer struct {
	jobs     JobStore
	queue    queue.Queue
	uploader Uploader
	maxBytes int64
	log      *zap.Logger
}

// NewImporter wires an importer. jobs and q may both be nil for inline mode.
func NewImporter(jobs JobStore, q queue.Queue, uploader Uploader, maxBytes int64, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	if jobs == nil || q == nil {
		jobs, q = nil, nil
	}
	return &Importer{jobs: jobs, queue: q, uploader: uploader, maxBytes: maxBytes, log: log}
}

// Queued reports whether uploads run as background jobs.
func (im *Importer) Queued() bool { return im.jobs != nil }

// Submit validates the file and either queues it or uploads it directly.
// A nil job with a nil error means the upload already completed.
func (im *Importer) Submit(ctx context.Context, s session.Session, courseID int64, filename string, content []byte) (*Job, error) {
	if err := ValidateUpload(filename, int64(len(content)), im.maxBytes); err != nil {
		return nil, err
	}
	if !im.Queued() {
		err := im.uploader.UploadStudents(ctx, s.BackendToken, courseID, filename, bytes.NewReader(content))
		if err != nil {
			metrics.ImportJobs.WithLabelValues(StatusFailed).Inc()
			return nil, err
		}
		metrics.ImportJobs.WithLabelValues(StatusDone).Inc()
		return nil, nil
	}

	job, err := im.jobs.Insert(ctx, Job{
		SessionID: s.ID,
		CourseID:  courseID,
		Filename:  filename,
		Content:   content,
		Status:    StatusPending,
	})
	if err != nil {
		return nil, err
	}
	metrics.ImportJobs.WithLabelValues(StatusPending).Inc()
	if err := im.queue.Publish(ctx, queue.Message{Type: MessageImport, Body: []byte(job.ID)}); err != nil {
		im.log.Error("queue publish failed", zap.String("job", job.ID), zap.Error(err))
		if uerr := im.jobs.UpdateStatus(context.WithoutCancel(ctx), job.ID, StatusFailed, backend.MsgUnexpected); uerr != nil {
			im.log.Warn("mark job failed", zap.String("job", job.ID), zap.Error(uerr))
		}
		metrics.ImportJobs.WithLabelValues(StatusFailed).Inc()
		return nil, errors.Wrap(err, "queue import job")
	}
	job.Content = nil
	return &job, nil
}

// Status returns a job owned by sessionID.
func (im *Importer) Status(ctx context.Context, sessionID, id string) (Job, error) {
	if !im.Queued() {
		return Job{}, ErrJobNotFound
	}
	job, err := im.jobs.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if job.SessionID != sessionID {
		return Job{}, ErrJobNotFound
	}
	job.Content = nil
	return job, nil
}
