package jobqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainDeduplicates(t *testing.T) {
	q := NewQueue()

	q.Enqueue(Job{InstallationID: 1, Repository: "o/r", Commit: "a"})
	q.Enqueue(Job{InstallationID: 1, Repository: "o/r", Commit: "a"})
	q.Enqueue(Job{InstallationID: 2, Repository: "o/r", Commit: "a"})
	require.Equal(t, 3, q.Len())

	jobs := q.Drain()
	assert.Equal(t, []Job{
		{InstallationID: 1, Repository: "o/r", Commit: "a"},
		{InstallationID: 2, Repository: "o/r", Commit: "a"},
	}, jobs)
	assert.Zero(t, q.Len())
}

func TestDrainSortsJobs(t *testing.T) {
	q := NewQueue()

	q.Enqueue(Job{InstallationID: 2, Repository: "o/a", Commit: "1"})
	q.Enqueue(Job{InstallationID: 1, Repository: "o/b", Commit: "2"})
	q.Enqueue(Job{InstallationID: 1, Repository: "o/b", Commit: "1"})
	q.Enqueue(Job{InstallationID: 1, Repository: "o/a", Commit: "9"})
	q.Enqueue(Job{InstallationID: 1, Repository: "o/b", Commit: "2"})

	assert.Equal(t, []Job{
		{InstallationID: 1, Repository: "o/a", Commit: "9"},
		{InstallationID: 1, Repository: "o/b", Commit: "1"},
		{InstallationID: 1, Repository: "o/b", Commit: "2"},
		{InstallationID: 2, Repository: "o/a", Commit: "1"},
	}, q.Drain())
}

func TestDrainEmptyQueue(t *testing.T) {
	q := NewQueue()
	assert.Empty(t, q.Drain())
}

func TestConcurrentEnqueueAndDrainLosesNoJobs(t *testing.T) {
	const producers = 8
	const jobsPerProducer = 250

	q := NewQueue()
	seen := map[Job]struct{}{}

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(installationID int64) {
			defer wg.Done()
			for i := 0; i < jobsPerProducer; i++ {
				q.Enqueue(Job{InstallationID: installationID, Repository: "o/r", Commit: string(rune('a' + i%26))})
			}
		}(int64(p))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for drainDone := false; !drainDone; {
		select {
		case <-done:
			drainDone = true
		default:
		}

		for _, j := range q.Drain() {
			seen[j] = struct{}{}
		}
	}

	for _, j := range q.Drain() {
		seen[j] = struct{}{}
	}

	assert.Len(t, seen, producers*26)
}
