// Package scheduler runs a task once, after a delay. The returned Job can be
// canceled at any time before it fires.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Schedule runs task after waitTime has passed. Canceling ctx cancels the job.
func Schedule(ctx context.Context, task Task, waitTime time.Duration) *Job {
	ctx2, cancel := context.WithCancel(ctx)
	j := &Job{
		task:   task,
		state:  stateScheduled,
		cancel: cancel,
	}
	go j.run(ctx2, waitTime)

	return j
}

// Task is the work a Job performs when its wait time expires.
type Task interface {
	Run(ctx context.Context) error
}

// Job is a scheduled task. It fires once, unless canceled first.
type Job struct {
	task   Task
	state  state
	cancel context.CancelFunc
	err    error
	lock   sync.RWMutex
}

func (j *Job) run(ctx context.Context, waitTime time.Duration) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(waitTime):
		err := j.task.Run(ctx)
		s := stateCompleted
		if err != nil {
			s = stateFailed
		}
		j.setState(s, err)
	}
}

// Cancel stops the job. Canceling a job that already fired is a no-op.
func (j *Job) Cancel() {
	j.cancel()
	j.setState(stateCanceled, nil)
}

// Result reports whether the job has finished (fired, failed or canceled)
// and, if it fired, the error its task returned.
func (j *Job) Result() (completed bool, err error) {
	var result state
	result, err = j.getState()
	if completed = result.done(); completed {
		j.cancel()
	}
	return
}

// Due reports whether the job is still waiting to fire.
func (j *Job) Due() bool {
	s, _ := j.getState()
	return s == stateScheduled
}

func (j *Job) setState(state state, err error) {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.state.done() {
		return
	}
	j.state = state
	j.err = err
}

func (j *Job) getState() (state state, err error) {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.state, j.err
}

type state int

const (
	stateUnknown state = iota
	stateScheduled
	stateCanceled
	stateCompleted
	stateFailed
)

func (s state) done() bool {
	return s == stateCompleted || s == stateFailed || s == stateCanceled
}
