package safego

import (
	"sync"
	"testing"
	"time"
)

// waitOrFail fails the test if wg does not finish within two seconds.
func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("goroutine did not complete within timeout")
	}
}

func TestGoRunsFunction(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)

	Go(func() {
		defer wg.Done()
	})

	waitOrFail(t, &wg)
}

func TestGoRecoversPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)

	// Must not crash the test binary.
	Go(func() {
		defer wg.Done()
		panic("listener blew up")
	})

	waitOrFail(t, &wg)
}
