package task

import (
	"container/heap"
	"sync"
	"time"
)

// jobHeap orders jobs by RunAt.
type jobHeap []*Job

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(i, j int) bool { return h[i].RunAt.Before(h[j].RunAt) }
func (h jobHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x any)        { *h = append(*h, x.(*Job)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}

// delayQueue holds jobs whose RunAt is in the future.
type delayQueue struct {
	mu   sync.Mutex
	jobs jobHeap
}

func (d *delayQueue) push(job *Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	heap.Push(&d.jobs, job)
}

// due removes and returns every job with RunAt at or before now.
func (d *delayQueue) due(now time.Time) []*Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Job
	for d.jobs.Len() > 0 && !d.jobs[0].RunAt.After(now) {
		out = append(out, heap.Pop(&d.jobs).(*Job))
	}
	return out
}

func (d *delayQueue) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.jobs.Len()
}
