package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerRunsOnInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	s := NewAlignedScheduler(ctx, 20*time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Start(func() {
			if runs.Add(1) >= 3 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestSchedulerRunImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var runs atomic.Int32
	s := NewAlignedScheduler(ctx, time.Hour)
	s.RunImmediately = true

	done := make(chan struct{})
	go func() {
		s.Start(func() {
			runs.Add(1)
			cancel()
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not exit")
	}
	assert.EqualValues(t, 1, runs.Load())
}

func TestSchedulerInvalidSetup(t *testing.T) {
	done := make(chan struct{})
	go func() {
		s := NewAlignedScheduler(context.Background(), 0)
		s.Start(func() {})
		s2 := NewAlignedScheduler(context.Background(), time.Second)
		s2.Start(nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler with invalid setup should return immediately")
	}
}
