package concurrency

import (
	"sync"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func TestWriteExcludesWrite(t *testing.T) {
	var e Envelope
	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Write(func() error {
				cur := atomic.LoadInt64(&counter)
				atomic.StoreInt64(&counter, cur+1)
				return nil
			})
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("expected 50 serialised writes, got %d", counter)
	}
}

func TestReadAllowsConcurrency(t *testing.T) {
	var e Envelope
	var wg sync.WaitGroup
	var active int32
	var maxActive int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Read(func() error {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				// Hold the read lock until a second reader is inside as well
				// (or a deadline passes), so overlapping readers are observable.
				deadline := time.Now().Add(time.Second)
				for atomic.LoadInt32(&maxActive) < 2 && time.Now().Before(deadline) {
					runtime.Gosched()
				}
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	if maxActive < 2 {
		t.Errorf("expected at least two concurrent readers observed, got %d", maxActive)
	}
}

func TestWritePropagatesError(t *testing.T) {
	var e Envelope
	sentinel := errWrite
	if err := e.Write(func() error { return sentinel }); err != sentinel {
		t.Errorf("expected error propagated, got %v", err)
	}
}

var errWrite = &testErr{"boom"}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }
