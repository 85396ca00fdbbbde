package web

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Relayn/video-downloader-uploader/internal/core/domain"
)

// ErrJobInFlight is returned by Start while a previous job is still running.
var ErrJobInFlight = errors.New("a job is already in flight")

// Progress events queue here between the worker goroutine and the drain
// loop. The worker never blocks on a full buffer; stale fractions are
// superseded by the next event anyway.
const progressBuffer = 64

// Runner is the slice of the orchestrator the tracker needs.
type Runner interface {
	RunJob(ctx context.Context, job domain.Job, onProgress domain.ProgressFunc) *domain.JobResult
}

// State is the poll snapshot of the current (or last finished) job.
type State struct {
	JobID    string            `json:"job_id"`
	Running  bool              `json:"running"`
	Phase    domain.Phase      `json:"phase"`
	Fraction float64           `json:"fraction"`
	Result   *domain.JobResult `json:"result,omitempty"`
}

// Tracker runs one job at a time on a worker goroutine and keeps a
// snapshot the HTTP handlers can poll. Progress flows worker -> bounded
// channel -> drain goroutine -> snapshot, so the progress callback never
// blocks the job and handlers never touch worker state directly.
type Tracker struct {
	ctx    context.Context
	runner Runner
	logger zerolog.Logger

	mu    sync.Mutex
	state State
}

// NewTracker creates an idle tracker. Jobs started later run under ctx,
// which should outlive any single HTTP request.
func NewTracker(ctx context.Context, runner Runner, logger zerolog.Logger) *Tracker {
	return &Tracker{ctx: ctx, runner: runner, logger: logger}
}

// Start launches req on the worker goroutine and returns its job ID.
// While a job is running every call fails with ErrJobInFlight.
func (t *Tracker) Start(req domain.JobRequest) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Running {
		return "", ErrJobInFlight
	}

	job := domain.NewJob(req)
	t.state = State{JobID: job.ID, Running: true, Phase: domain.PhasePending}

	events := make(chan domain.ProgressEvent, progressBuffer)
	done := make(chan *domain.JobResult, 1)

	go func() {
		result := t.runner.RunJob(t.ctx, job, func(ev domain.ProgressEvent) {
			select {
			case events <- ev:
			default:
			}
		})
		close(events)
		done <- result
	}()

	go t.drain(job.ID, events, done)

	return job.ID, nil
}

// drain applies progress events to the snapshot, then records the result.
func (t *Tracker) drain(jobID string, events <-chan domain.ProgressEvent, done <-chan *domain.JobResult) {
	for ev := range events {
		t.mu.Lock()
		t.state.Phase = ev.Phase
		if ev.Fraction > t.state.Fraction {
			t.state.Fraction = ev.Fraction
		}
		t.mu.Unlock()
	}

	result := <-done
	t.mu.Lock()
	t.state.Running = false
	t.state.Result = result
	if result.Success {
		t.state.Phase = domain.PhaseDone
		t.state.Fraction = 1
	} else {
		t.state.Phase = domain.PhaseFailed
	}
	t.mu.Unlock()
	t.logger.Debug().Str("job_id", jobID).Bool("success", result.Success).Msg("tracker recorded result")
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Get returns the state for jobID. Only the current or most recent job is
// retained; anything else reports false.
func (t *Tracker) Get(jobID string) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.JobID != jobID {
		return State{}, false
	}
	return t.state, true
}
