package roster

import (
	"bytes"
	"context"

	"go.uber.org/zap"

	"dashboard/internal/backend"
	"dashboard/internal/metrics"
	"dashboard/internal/queue"
)

// Worker drains queued import jobs and forwards them to the backend.
type Worker struct {
	jobs     JobStore
	queue    queue.Queue
	sessions Sessions
	uploader Uploader
	log      *zap.Logger
}

// NewWorker wires a worker.
func NewWorker(jobs JobStore, q queue.Queue, sessions Sessions, uploader Uploader, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{jobs: jobs, queue: q, sessions: sessions, uploader: uploader, log: log}
}

// Run processes messages until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.queue.Consume(ctx)
	if err != nil {
		return err
	}
	w.log.Info("import worker started")
	for msg := range messages {
		if msg.Type != MessageImport {
			w.log.Debug("skipping message", zap.String("type", msg.Type))
			continue
		}
		w.Process(ctx, string(msg.Body))
	}
	w.log.Info("import worker stopped")
	return nil
}

// Process runs a single job. Jobs that are no longer pending are skipped.
func (w *Worker) Process(ctx context.Context, id string) {
	log := w.log.With(zap.String("job", id))
	job, err := w.jobs.Get(ctx, id)
	if err != nil {
		log.Warn("fetch job failed", zap.Error(err))
		return
	}
	if job.Status != StatusPending {
		log.Debug("job already handled", zap.String("status", job.Status))
		return
	}
	if err := w.jobs.UpdateStatus(ctx, id, StatusProcessing, ""); err != nil {
		log.Warn("mark processing failed", zap.Error(err))
		return
	}
	metrics.ImportJobs.WithLabelValues(StatusProcessing).Inc()

	s, err := w.sessions.Get(ctx, job.SessionID)
	if err != nil {
		w.finish(ctx, log, id, StatusFailed, MsgSessionGone)
		return
	}
	err = w.uploader.UploadStudents(ctx, s.BackendToken, job.CourseID, job.Filename, bytes.NewReader(job.Content))
	if err != nil {
		log.Info("import rejected", zap.Int64("course", job.CourseID), zap.Error(err))
		w.finish(ctx, log, id, StatusFailed, failureMessage(err))
		return
	}
	log.Info("import done", zap.Int64("course", job.CourseID), zap.String("file", job.Filename))
	w.finish(ctx, log, id, StatusDone, "")
}

func (w *Worker) finish(ctx context.Context, log *zap.Logger, id, status, msg string) {
	if err := w.jobs.UpdateStatus(context.WithoutCancel(ctx), id, status, msg); err != nil {
		log.Warn("update job failed", zap.String("status", status), zap.Error(err))
		return
	}
	metrics.ImportJobs.WithLabelValues(status).Inc()
}

func failureMessage(err error) string {
	if be, ok := backend.AsError(err); ok && be.Message != "" {
		return be.Message
	}
	return backend.MsgUnexpected
}
