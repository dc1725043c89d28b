// Package workerpool provides a fixed-size pool of goroutines executing submitted jobs.
package workerpool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by Submit after Shutdown.
var ErrClosed = errors.New("worker pool is shut down")

// Pool runs submitted jobs on a fixed number of worker goroutines. The job
// queue holds up to queue pending jobs; Submit blocks while it is full.
type Pool struct {
	size   int
	jobs   chan func()
	group  errgroup.Group
	logger *logrus.Entry

	mutex  sync.RWMutex
	closed bool
}

// New starts a pool of size workers.
func New(size, queue int, logger *logrus.Entry) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("worker pool size must be >= 1, got %d", size)
	}
	if queue < 0 {
		queue = 0
	}

	p := &Pool{
		size:   size,
		jobs:   make(chan func(), queue),
		logger: logger,
	}
	for w := 0; w < size; w++ {
		id := w
		p.group.Go(func() error {
			for job := range p.jobs {
				p.run(id, job)
			}
			return nil
		})
	}
	return p, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Submit queues job for execution.
func (p *Pool) Submit(job func()) error {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if p.closed {
		return ErrClosed
	}
	p.jobs <- job
	return nil
}

// Shutdown stops accepting jobs and waits for queued and running jobs to finish.
func (p *Pool) Shutdown() {
	p.mutex.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mutex.Unlock()

	_ = p.group.Wait()
}

// run executes one job. A panicking job must not take its worker down with it.
func (p *Pool) run(worker int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("worker", worker).Errorf("job panicked: %v", r)
		}
	}()
	job()
}
