package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// JobState is the lifecycle state of an asynchronous backend run.
type JobState string

const (
	JobSubmitted JobState = "submitted"
	JobPolling   JobState = "polling"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

const (
	DefaultPollInterval = time.Second
	DefaultMaxPollWait  = 10 * time.Second
)

// Progress is one observation of a run.
type Progress[T any] struct {
	State  JobState
	Result T
	// Err explains a JobFailed state. A *TransientError here makes the
	// whole job transient.
	Err error
}

// Job polls a submitted run until it reaches a terminal state or MaxWait
// elapses.
type Job[T any] struct {
	// Name labels errors.
	Name string

	Interval time.Duration
	MaxWait  time.Duration

	// Poll fetches the current progress. Required.
	Poll func(ctx context.Context) (Progress[T], error)

	// Cancel asks the backend to abandon the run. Optional; called
	// best-effort on timeout or when ctx is done.
	Cancel func(ctx context.Context) error

	// OnState observes state transitions. Optional.
	OnState func(JobState)

	state JobState
}

// Wait polls immediately and then once per Interval.
//
// Exceeding MaxWait returns a *TransientError wrapping ErrPollTimeout.
// Failed and cancelled runs return a *FatalError unless the failure
// itself is transient. If ctx is done first, its error is returned as is.
func (j *Job[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	interval := j.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxWait := j.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultMaxPollWait
	}
	j.transition(JobSubmitted)

	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p, err := j.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				j.abandon(ctx)
				return zero, ctx.Err()
			}
			err = Classify(j.Name, err)
			if !IsTransient(err) {
				return zero, err
			}
			// A transient poll failure is retried on the next tick.
			p = Progress[T]{State: JobPolling}
		}

		switch p.State {
		case JobCompleted:
			j.transition(JobCompleted)
			return p.Result, nil
		case JobFailed:
			j.transition(JobFailed)
			reason := p.Err
			if reason == nil {
				reason = errors.New("run failed")
			}
			if IsTransient(reason) {
				return zero, reason
			}
			return zero, &FatalError{Op: j.Name, Err: reason}
		case JobCancelled:
			j.transition(JobCancelled)
			return zero, &FatalError{Op: j.Name, Err: errors.New("run was cancelled")}
		default:
			j.transition(JobPolling)
		}

		select {
		case <-ctx.Done():
			j.abandon(ctx)
			return zero, ctx.Err()
		case <-deadline.C:
			j.abandon(ctx)
			return zero, &TransientError{Op: j.Name, Err: fmt.Errorf("%w after %s", ErrPollTimeout, maxWait)}
		case <-ticker.C:
		}
	}
}

func (j *Job[T]) transition(s JobState) {
	if j.state == s {
		return
	}
	j.state = s
	if j.OnState != nil {
		j.OnState(s)
	}
}

// abandon cancels the run on a context detached from ctx, since ctx may
// already be done.
func (j *Job[T]) abandon(ctx context.Context) {
	if j.Cancel == nil {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	_ = j.Cancel(cctx)
}
