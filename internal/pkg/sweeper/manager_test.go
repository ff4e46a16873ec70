package sweeper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/evpago/evpago/internal/pkg/env"
)

type countingRunner struct {
	runs int64
	err  error
}

func (r *countingRunner) RunExpirationSweep(ctx context.Context) (int, error) {
	atomic.AddInt64(&r.runs, 1)
	return 0, r.err
}

func (r *countingRunner) count() int64 {
	return atomic.LoadInt64(&r.runs)
}

func TestManagerRunsOnSchedule(t *testing.T) {
	runner := &countingRunner{}
	manager := NewManager(runner, 10*time.Millisecond)

	manager.Start()
	assert.Eventually(t, func() bool { return runner.count() >= 2 }, time.Second, 5*time.Millisecond)
	manager.Stop()

	after := runner.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runner.count())
}

func TestManagerSurvivesSweepErrors(t *testing.T) {
	runner := &countingRunner{err: context.DeadlineExceeded}
	manager := NewManager(runner, 10*time.Millisecond)

	manager.Start()
	assert.Eventually(t, func() bool { return runner.count() >= 2 }, time.Second, 5*time.Millisecond)
	manager.Stop()
}

func TestManagerStartIsIdempotent(t *testing.T) {
	runner := &countingRunner{}
	manager := NewManager(runner, time.Hour)

	manager.Start()
	manager.Start()
	manager.Stop()
	manager.Stop()
}

func TestManagerSkipsTestEnvironment(t *testing.T) {
	env.Env = map[string]string{"APP_ENV": "test"}
	defer func() { env.Env = nil }()

	runner := &countingRunner{}
	manager := NewManager(runner, time.Millisecond)

	manager.Start()
	time.Sleep(20 * time.Millisecond)
	manager.Stop()
	assert.Equal(t, int64(0), runner.count())
}
