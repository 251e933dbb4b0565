package jobs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptscan-backend/internal/batch"
	"promptscan-backend/internal/sessions"
)

func TestSubmitStoresAndEnqueues(t *testing.T) {
	q := &recordingQueue{}
	svc := newTestService(t, q, &countingProvider{})
	ctx := sessions.WithRequestID(context.Background(), "req-1")

	job, err := svc.Submit(ctx, "my batch.csv", []byte(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, job.Status)
	assert.Equal(t, 2, job.RowCount)
	assert.Equal(t, "batches/"+job.ID+"/my batch.csv", job.StorageKey)

	msgs := q.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, job.ID, msgs[0].JobID)
	assert.Equal(t, job.StorageKey, msgs[0].StorageKey)
	assert.Equal(t, "req-1", msgs[0].RequestID)

	body, err := svc.Store.Open(context.Background(), job.StorageKey)
	require.NoError(t, err)
	defer body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(body)
	assert.Equal(t, sampleCSV, buf.String())
}

func TestSubmitRejections(t *testing.T) {
	tests := []struct {
		name    string
		queue   *recordingQueue
		data    string
		wantErr error
	}{
		{name: "empty", queue: &recordingQueue{}, data: "  ", wantErr: ErrEmptyUpload},
		{name: "missing columns", queue: &recordingQueue{}, data: "a,b\n1,2\n", wantErr: batch.ErrMissingColumns},
		{name: "too many rows", queue: &recordingQueue{}, data: "prompt,keywords\n" + strings.Repeat("p,k\n", batch.MaxRows+1), wantErr: batch.ErrTooManyRows},
		{name: "no queue", queue: nil, data: sampleCSV, wantErr: ErrQueueNotConfigured},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, nil, &countingProvider{})
			if tt.queue != nil {
				svc.Queue = tt.queue
			}
			_, err := svc.Submit(context.Background(), "b.csv", []byte(tt.data))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSubmitMarksJobFailedWhenEnqueueFails(t *testing.T) {
	q := &recordingQueue{err: errors.New("sqs down")}
	svc := newTestService(t, q, &countingProvider{})

	_, err := svc.Submit(context.Background(), "b.csv", []byte(sampleCSV))
	require.Error(t, err)
}

func TestProcessRunsAndExports(t *testing.T) {
	q := &recordingQueue{}
	provider := &countingProvider{}
	svc := newTestService(t, q, provider)
	ctx := context.Background()

	job, err := svc.Submit(ctx, "b.csv", []byte(sampleCSV))
	require.NoError(t, err)

	require.NoError(t, svc.Process(ctx, job.ID))

	got, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.NotEmpty(t, got.SessionID)
	assert.NotEmpty(t, got.ExportID)
	assert.Equal(t, 2, provider.Calls())

	rec, err := svc.Exports.Get(ctx, got.ExportID)
	require.NoError(t, err)
	assert.Equal(t, got.SessionID, rec.SessionID)
	assert.Equal(t, sessions.LaneBatch, rec.Lane)
	assert.Equal(t, 2, rec.ItemCount)

	// Redelivery of a finished job does not call the provider again.
	require.NoError(t, svc.Process(ctx, job.ID))
	assert.Equal(t, 2, provider.Calls())
}

func TestProcessCompletesWhenPromptsFail(t *testing.T) {
	svc := newTestService(t, &recordingQueue{}, &countingProvider{fail: true})
	ctx := context.Background()

	job, err := svc.Submit(ctx, "b.csv", []byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, svc.Process(ctx, job.ID))

	got, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestProcessFailsOnMissingUpload(t *testing.T) {
	svc := newTestService(t, &recordingQueue{}, &countingProvider{})
	ctx := context.Background()

	job := Job{ID: "job-x", StorageKey: "batches/job-x/missing.csv", Status: StatusQueued}
	require.NoError(t, svc.Repo.Create(ctx, job))

	require.Error(t, svc.Process(ctx, job.ID))
	got, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.NotEmpty(t, got.Error)
}

func TestProcessUnknownJob(t *testing.T) {
	svc := newTestService(t, &recordingQueue{}, &countingProvider{})
	assert.ErrorIs(t, svc.Process(context.Background(), "nope"), ErrNotFound)
}

func TestRunStored(t *testing.T) {
	svc := newTestService(t, nil, &countingProvider{})
	ctx := context.Background()

	_, err := svc.Store.SaveWithKey(ctx, "scheduled/nightly.csv", contentTypeCSV, strings.NewReader(sampleCSV))
	require.NoError(t, err)

	job, err := svc.RunStored(ctx, "scheduled/nightly.csv")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, "nightly.csv", job.FileName)
	assert.Equal(t, 2, job.RowCount)
}
