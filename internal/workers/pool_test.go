package workers

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tinybirdco/birdwatcher/internal/common/logging"
)

func testLogger() *logging.Logger {
	return logging.New("test", logging.LevelError)
}

func TestPoolRunsSubmittedTasks(t *testing.T) {
	// Queue capacity covers every submission so a slow scheduler cannot
	// overflow it mid-test.
	p := NewPool(2, 16, testLogger())
	defer p.Close()

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		if err := p.Submit(func() {
			defer wg.Done()
			count.Add(1)
		}); err != nil {
			wg.Done()
			t.Fatalf("Submit() error = %v", err)
		}
	}

	wg.Wait()
	if got := count.Load(); got != 10 {
		t.Errorf("Expected 10 tasks to run, got %d", got)
	}
}

func TestSubmitReturnsErrorWhenFull(t *testing.T) {
	p := NewPool(1, 1, testLogger())
	defer p.Close()

	block := make(chan struct{})
	started := make(chan struct{})

	// Occupy the single worker and fill the single queue slot.
	if err := p.Submit(func() { close(started); <-block }); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-started
	if err := p.Submit(func() { <-block }); err != nil {
		t.Fatalf("Submit() to queue slot error = %v", err)
	}

	if err := p.Submit(func() {}); err != ErrQueueFull {
		t.Errorf("Submit() on full queue = %v, want ErrQueueFull", err)
	}

	close(block)
}

func TestDispatchFallsBackWhenFull(t *testing.T) {
	p := NewPool(1, 1, testLogger())
	defer p.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	if err := p.Submit(func() { close(started); <-block }); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-started
	if err := p.Submit(func() { <-block }); err != nil {
		t.Fatalf("Submit() to queue slot error = %v", err)
	}

	// The pool is saturated; Dispatch must still run the task.
	ran := make(chan struct{})
	p.Dispatch(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Error("Expected dispatched task to run on a detached goroutine")
	}

	close(block)
}

func TestPoolRecoversFromPanic(t *testing.T) {
	p := NewPool(1, 4, testLogger())
	defer p.Close()

	if err := p.Submit(func() { panic("boom") }); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// The worker that recovered must still process later tasks.
	done := make(chan struct{})
	if err := p.Submit(func() { close(done) }); err != nil {
		t.Fatalf("Submit() after panic error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Expected pool to keep working after a task panic")
	}
}

func TestCloseWaitsForInFlightTasks(t *testing.T) {
	p := NewPool(2, 4, testLogger())

	var done atomic.Bool
	if err := p.Submit(func() {
		time.Sleep(50 * time.Millisecond)
		done.Store(true)
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	p.Close()
	if !done.Load() {
		t.Error("Expected Close to wait for in-flight tasks")
	}
}
