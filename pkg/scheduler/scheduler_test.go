package scheduler_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/restmode/restmode/pkg/scheduler"
	"github.com/stretchr/testify/assert"
)

type testTask struct {
	err error
}

func (t testTask) Run(_ context.Context) error {
	return t.err
}

func TestScheduler_Schedule(t *testing.T) {
	task := &testTask{}
	job := scheduler.Schedule(context.Background(), task, 100*time.Millisecond)

	assert.Eventually(t, func() bool {
		done, err := job.Result()
		return done && err == nil
	}, time.Second, 10*time.Millisecond)
	assert.False(t, job.Due())

	task = &testTask{err: fmt.Errorf("failed")}
	job = scheduler.Schedule(context.Background(), task, 100*time.Millisecond)

	assert.Eventually(t, func() bool {
		done, err := job.Result()
		return done && err != nil
	}, time.Second, 10*time.Millisecond)
}

func TestScheduler_Cancel(t *testing.T) {
	task := &testTask{}
	job := scheduler.Schedule(context.Background(), task, time.Hour)
	assert.True(t, job.Due())

	job.Cancel()
	completed, err := job.Result()
	assert.NoError(t, err)
	assert.True(t, completed)
	assert.False(t, job.Due())
}

func TestScheduler_Cancel_AfterCompletion(t *testing.T) {
	task := &testTask{}
	job := scheduler.Schedule(context.Background(), task, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		done, _ := job.Result()
		return done
	}, time.Second, 10*time.Millisecond)

	job.Cancel()
	completed, err := job.Result()
	assert.True(t, completed)
	assert.NoError(t, err)
}
