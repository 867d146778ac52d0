package fetchpool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsAllJobs(t *testing.T) {
	pool := New(3, nil)
	pool.Start()

	var executed int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range pool.Results() {
		}
	}()

	const jobs = 20
	for i := 0; i < jobs; i++ {
		err := pool.Submit(Job{
			Key: fmt.Sprintf("job-%d", i),
			Execute: func() error {
				atomic.AddInt32(&executed, 1)
				return nil
			},
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	pool.Stop()
	<-done

	if got := atomic.LoadInt32(&executed); got != jobs {
		t.Errorf("Expected %d jobs executed, got %d", jobs, got)
	}
}

func TestPoolFailureIsolation(t *testing.T) {
	pool := New(2, nil)
	pool.Start()

	failing := errors.New("boom")
	var failures, successes int
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range pool.Results() {
			mu.Lock()
			if r.Err != nil {
				failures++
			} else {
				successes++
			}
			mu.Unlock()
		}
	}()

	for i := 0; i < 10; i++ {
		i := i
		pool.Submit(Job{
			Key: fmt.Sprintf("job-%d", i),
			Execute: func() error {
				if i%2 == 0 {
					return failing
				}
				return nil
			},
		})
	}
	pool.Stop()
	<-done

	if failures != 5 || successes != 5 {
		t.Errorf("Expected 5 failures and 5 successes, got %d/%d", failures, successes)
	}
}

func TestPoolBoundedConcurrency(t *testing.T) {
	const workers = 3
	pool := New(workers, nil)
	pool.Start()

	var current, peak int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range pool.Results() {
		}
	}()

	for i := 0; i < 12; i++ {
		pool.Submit(Job{
			Key: fmt.Sprintf("job-%d", i),
			Execute: func() error {
				n := atomic.AddInt32(&current, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return nil
			},
		})
	}
	pool.Stop()
	<-done

	if got := atomic.LoadInt32(&peak); got > workers {
		t.Errorf("Observed %d concurrent jobs, pool is bounded to %d", got, workers)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	pool := New(1, nil)
	pool.Start()
	go func() {
		for range pool.Results() {
		}
	}()
	pool.Stop()

	if err := pool.Submit(Job{Key: "late", Execute: func() error { return nil }}); err == nil {
		t.Error("Expected Submit to fail after Stop")
	}
}
