package provision

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const provisionTimeout = 2 * time.Minute

// Runner executes provisioning off the request path on background workers,
// decoupling signup latency from ledger settlement latency. Jobs are ordered
// per enqueue; two different accounts may provision concurrently.
type Runner struct {
	svc    *Service
	logger *slog.Logger
	jobs   chan string
	wg     sync.WaitGroup
}

// NewRunner starts the given number of workers draining a bounded queue.
func NewRunner(svc *Service, logger *slog.Logger, workers, queueSize int) *Runner {
	r := &Runner{
		svc:    svc,
		logger: logger,
		jobs:   make(chan string, queueSize),
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
	return r
}

// Enqueue hands a username to the workers. Blocks when the queue is full,
// applying backpressure to signups rather than dropping work.
func (r *Runner) Enqueue(username string) {
	r.jobs <- username
}

// Close stops accepting work and waits for in-flight provisioning to finish.
func (r *Runner) Close() {
	close(r.jobs)
	r.wg.Wait()
}

func (r *Runner) work() {
	defer r.wg.Done()
	for username := range r.jobs {
		// The request that triggered the signup may be long gone; each job
		// gets its own deadline instead of the request context.
		ctx, cancel := context.WithTimeout(context.Background(), provisionTimeout)
		if err := r.svc.Provision(ctx, username); err != nil {
			r.logger.Error("background provisioning failed", "username", username, "error", err)
		}
		cancel()
	}
}
