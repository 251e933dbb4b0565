package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"promptscan-backend/internal/batch"
	"promptscan-backend/internal/export"
	"promptscan-backend/internal/queue"
	"promptscan-backend/internal/sessions"
	"promptscan-backend/internal/shared/metrics"
	"promptscan-backend/internal/shared/storage/object"
	"promptscan-backend/internal/shared/telemetry"
	"promptscan-backend/internal/shared/util"
)

const contentTypeCSV = "text/csv"

// Service stores batch uploads, queues them, and runs them when a worker
// picks them up.
type Service struct {
	Repo      Repo
	Store     object.ObjectStore
	Queue     queue.Client
	Scheduler *sessions.Scheduler
	Exports   *export.Service
	Now       func() time.Time
}

// Submit validates the upload, stores it and enqueues a job for it.
func (s *Service) Submit(ctx context.Context, fileName string, data []byte) (Job, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Job{}, ErrEmptyUpload
	}
	rows, err := batch.Parse(bytes.NewReader(data))
	if err != nil {
		return Job{}, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}
	if s.Queue == nil {
		return Job{}, ErrQueueNotConfigured
	}
	if s.Store == nil {
		return Job{}, ErrStoreMissing
	}

	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		name = batch.TemplateFileName
	}
	now := s.now()
	job := Job{
		ID:        uuid.NewString(),
		FileName:  name,
		RowCount:  len(rows),
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.StorageKey = StorageKey(job.ID, name)

	if _, err := s.Store.SaveWithKey(ctx, job.StorageKey, contentTypeCSV, bytes.NewReader(data)); err != nil {
		return Job{}, fmt.Errorf("store batch upload: %w", err)
	}
	if err := s.Repo.Create(ctx, job); err != nil {
		return Job{}, fmt.Errorf("create batch job: %w", err)
	}

	requestID := sessions.RequestIDFromContext(ctx)
	msg := queue.Message{
		JobID:      job.ID,
		StorageKey: job.StorageKey,
		RequestID:  requestID,
		EnqueuedAt: now.Format(time.RFC3339),
		Version:    queue.MessageVersion,
	}
	if err := s.Queue.Send(ctx, msg); err != nil {
		job.Status = StatusFailed
		job.Error = "enqueue failed"
		job.UpdatedAt = s.now()
		_ = s.Repo.Update(ctx, job)
		return Job{}, fmt.Errorf("enqueue batch job: %w", err)
	}

	metrics.IncBatchJobSubmitted()
	telemetry.Info("batch_job.status", map[string]any{
		"request_id":        requestID,
		"job_id":            job.ID,
		"rows":              job.RowCount,
		"status_transition": "none->queued",
	})
	return job, nil
}

// Get returns a job by ID.
func (s *Service) Get(ctx context.Context, id string) (Job, error) {
	if strings.TrimSpace(id) == "" {
		return Job{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, id)
}

// Process runs a queued job to completion and exports the resulting session.
// Jobs that already reached a terminal status are left untouched so queue
// redeliveries are harmless.
func (s *Service) Process(ctx context.Context, jobID string) error {
	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		telemetry.Info("batch_job.skipped", map[string]any{
			"request_id": sessions.RequestIDFromContext(ctx),
			"job_id":     job.ID,
			"status":     string(job.Status),
		})
		return nil
	}
	return s.run(ctx, job)
}

// RunStored creates a job for a CSV already in the object store and runs it
// in the calling goroutine.
func (s *Service) RunStored(ctx context.Context, storageKey string) (Job, error) {
	if strings.TrimSpace(storageKey) == "" {
		return Job{}, errors.New("storage key is required")
	}
	now := s.now()
	job := Job{
		ID:         uuid.NewString(),
		StorageKey: storageKey,
		FileName:   path.Base(storageKey),
		Status:     StatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.Create(ctx, job); err != nil {
		return Job{}, fmt.Errorf("create batch job: %w", err)
	}
	if err := s.run(ctx, job); err != nil {
		return job, err
	}
	return s.Repo.GetByID(ctx, job.ID)
}

func (s *Service) run(ctx context.Context, job Job) error {
	if s.Store == nil || s.Scheduler == nil {
		return ErrStoreMissing
	}
	requestID := sessions.RequestIDFromContext(ctx)
	start := time.Now()

	if err := s.transition(ctx, &job, StatusRunning, ""); err != nil {
		return err
	}

	rows, err := s.load(ctx, job.StorageKey)
	if err != nil {
		return s.fail(ctx, job, err)
	}
	job.RowCount = len(rows)

	session, err := s.Scheduler.RunBatch(ctx, rows, nil)
	if err != nil {
		return s.fail(ctx, job, err)
	}
	job.SessionID = session.ID

	if s.Exports != nil {
		rec, _, err := s.Exports.Export(ctx, session)
		if err != nil {
			return s.fail(ctx, job, err)
		}
		job.ExportID = rec.ID
	}

	if session.Status == sessions.SessionError {
		return s.fail(ctx, job, errors.New(session.Error))
	}

	if err := s.transition(ctx, &job, StatusCompleted, ""); err != nil {
		return err
	}
	metrics.IncBatchJobCompleted()
	telemetry.Info("batch_job.status", map[string]any{
		"request_id":        requestID,
		"job_id":            job.ID,
		"session_id":        job.SessionID,
		"export_id":         job.ExportID,
		"status_transition": "running->completed",
		"duration_ms":       time.Since(start).Milliseconds(),
	})
	return nil
}

func (s *Service) load(ctx context.Context, key string) ([]batch.Row, error) {
	body, err := s.Store.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open batch upload: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read batch upload: %w", err)
	}
	return batch.Parse(bytes.NewReader(data))
}

func (s *Service) fail(ctx context.Context, job Job, cause error) error {
	msg := cause.Error()
	if err := s.transition(ctx, &job, StatusFailed, msg); err != nil {
		telemetry.Error("batch_job.update_failed", map[string]any{
			"job_id": job.ID,
			"error":  err.Error(),
		})
	}
	metrics.IncBatchJobFailed()
	telemetry.Error("batch_job.status", map[string]any{
		"request_id":        sessions.RequestIDFromContext(ctx),
		"job_id":            job.ID,
		"status_transition": "running->failed",
		"error":             msg,
	})
	return fmt.Errorf("batch job %s: %w", job.ID, cause)
}

func (s *Service) transition(ctx context.Context, job *Job, status Status, errMsg string) error {
	job.Status = status
	job.Error = errMsg
	job.UpdatedAt = s.now()
	// Status writes survive cancellation of the run itself.
	return s.Repo.Update(context.WithoutCancel(ctx), *job)
}

// StorageKey is the object key of a batch upload.
func StorageKey(jobID, fileName string) string {
	return path.Join("batches", jobID, fileName)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
