// Package jobqueue buffers gate recomputation requests and processes them
// periodically.
package jobqueue

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/simplesurance/mergeguard/internal/logfields"
)

// Job is a request to recompute the gate of a commit.
type Job struct {
	InstallationID int64
	Repository     string
	Commit         string
}

func (j *Job) String() string {
	return fmt.Sprintf("%s@%s (installation: %d)", j.Repository, j.Commit, j.InstallationID)
}

// LogFields returns fields that identify the job in log messages.
func (j *Job) LogFields() []zap.Field {
	return []zap.Field{
		logfields.Installation(j.InstallationID),
		logfields.Repository(j.Repository),
		logfields.Commit(j.Commit),
	}
}

func compareJobs(a, b Job) int {
	return cmp.Or(
		cmp.Compare(a.InstallationID, b.InstallationID),
		cmp.Compare(a.Repository, b.Repository),
		cmp.Compare(a.Commit, b.Commit),
	)
}

// Queue is a concurrency-safe list of jobs.
// Duplicates are only removed when the queue is drained.
type Queue struct {
	lock sync.Mutex
	jobs []Job
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends job to the queue.
func (q *Queue) Enqueue(job Job) {
	q.lock.Lock()
	q.jobs = append(q.jobs, job)
	l := len(q.jobs)
	q.lock.Unlock()

	metrics.EnqueuedInc()
	metrics.QueueLenSet(l)
}

// Drain removes all jobs from the queue and returns them sorted by
// installation ID, repository and commit, without duplicates.
func (q *Queue) Drain() []Job {
	q.lock.Lock()
	jobs := q.jobs
	q.jobs = nil
	q.lock.Unlock()

	metrics.QueueLenSet(0)

	if len(jobs) == 0 {
		return nil
	}

	slices.SortFunc(jobs, compareJobs)
	return slices.Compact(jobs)
}

// Len returns the number of queued jobs, including duplicates.
func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return len(q.jobs)
}
