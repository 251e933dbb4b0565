package metrics

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	promptsStartedTotal   atomic.Uint64
	promptsCompletedTotal atomic.Uint64
	promptsFailedTotal    atomic.Uint64

	sessionsStartedTotal   atomic.Uint64
	sessionsCompletedTotal atomic.Uint64
	sessionsAbortedTotal   atomic.Uint64

	batchJobsSubmittedTotal atomic.Uint64
	batchJobsCompletedTotal atomic.Uint64
	batchJobsFailedTotal    atomic.Uint64

	promptDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncPromptStarted increments the prompts started counter.
func IncPromptStarted() { promptsStartedTotal.Add(1) }

// IncPromptCompleted increments the prompts completed counter.
func IncPromptCompleted() { promptsCompletedTotal.Add(1) }

// IncPromptFailed increments the prompts failed counter.
func IncPromptFailed() { promptsFailedTotal.Add(1) }

func IncSessionStarted()   { sessionsStartedTotal.Add(1) }
func IncSessionCompleted() { sessionsCompletedTotal.Add(1) }

// IncSessionAborted counts sessions that ended in error or were reset mid-run.
func IncSessionAborted() { sessionsAbortedTotal.Add(1) }

func IncBatchJobSubmitted() { batchJobsSubmittedTotal.Add(1) }
func IncBatchJobCompleted() { batchJobsCompletedTotal.Add(1) }
func IncBatchJobFailed()    { batchJobsFailedTotal.Add(1) }

// ObservePromptDurationMs records a single provider call duration in milliseconds.
func ObservePromptDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	promptDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "prompts_started_total", "Total prompts sent to the provider", promptsStartedTotal.Load())
	writeCounter(&buf, "prompts_completed_total", "Total prompts answered", promptsCompletedTotal.Load())
	writeCounter(&buf, "prompts_failed_total", "Total prompts failed", promptsFailedTotal.Load())
	writeCounter(&buf, "sessions_started_total", "Total sessions started", sessionsStartedTotal.Load())
	writeCounter(&buf, "sessions_completed_total", "Total sessions completed", sessionsCompletedTotal.Load())
	writeCounter(&buf, "sessions_aborted_total", "Total sessions aborted or reset", sessionsAbortedTotal.Load())
	writeCounter(&buf, "batch_jobs_submitted_total", "Total batch jobs submitted", batchJobsSubmittedTotal.Load())
	writeCounter(&buf, "batch_jobs_completed_total", "Total batch jobs completed", batchJobsCompletedTotal.Load())
	writeCounter(&buf, "batch_jobs_failed_total", "Total batch jobs failed", batchJobsFailedTotal.Load())
	writeHistogram(&buf, "prompt_duration_ms", "Provider call duration in milliseconds", promptDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf io.Writer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf io.Writer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
