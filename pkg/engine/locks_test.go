package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockTable_Serializes(t *testing.T) {
	lt := newLockTable()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := lt.acquire("space-1", "sess-1")
			counter++
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestLockTable_DropsUnusedEntries(t *testing.T) {
	lt := newLockTable()

	release := lt.acquire("space-1", "sess-1")
	release()

	lt.mu.Lock()
	defer lt.mu.Unlock()
	assert.Empty(t, lt.locks, "released locks must not accumulate")
}

func TestLockTable_IndependentSessions(t *testing.T) {
	lt := newLockTable()

	releaseA := lt.acquire("space-1", "sess-a")
	defer releaseA()

	// A different session's lock is acquirable while sess-a is held.
	done := make(chan struct{})
	go func() {
		release := lt.acquire("space-1", "sess-b")
		release()
		close(done)
	}()
	<-done
}
