package engine

import (
	"context"
	"fmt"
	"time"
)

// Start launches the worker pool. Submit returns false until Start is called.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("pipeline already started")
	}

	p.queue = make(chan Job, p.config.QueueSize)
	p.workerCtx, p.workerCancel = context.WithCancel(ctx)
	for i := 0; i < p.config.NumWorkers; i++ {
		p.workerWG.Add(1)
		go p.worker(p.workerCtx, i)
	}

	p.started = true
	p.log.Info("pipeline started", "workers", p.config.NumWorkers, "queue_size", p.config.QueueSize)
	return nil
}

// Submit queues job for background processing without blocking. It returns
// false when the queue is full or the pipeline is not running.
func (p *Pipeline) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started || p.workerCtx.Err() != nil {
		return false
	}
	if job.Timestamp.IsZero() {
		job.Timestamp = time.Now()
	}

	select {
	case p.queue <- job:
		return true
	default:
		p.log.Warn("job queue full, dropping job",
			"queue_size", p.config.QueueSize,
			"identity", job.Identity,
			"subject", job.Subject,
		)
		return false
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish, up to
// ShutdownTimeout or until ctx is done.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return fmt.Errorf("pipeline not started")
	}

	p.log.Info("shutting down pipeline", "queued", len(p.queue))
	close(p.queue)

	done := make(chan struct{})
	go func() {
		p.workerWG.Wait()
		close(done)
	}()

	var timeout <-chan time.Time
	if p.config.ShutdownTimeout > 0 {
		timer := time.NewTimer(p.config.ShutdownTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var err error
	select {
	case <-done:
		p.log.Info("all pipeline workers finished")
	case <-timeout:
		p.log.Warn("shutdown timeout reached, cancelling in-flight jobs", "remaining", len(p.queue))
		p.workerCancel()
		<-done
	case <-ctx.Done():
		p.log.Warn("shutdown context cancelled, cancelling in-flight jobs", "remaining", len(p.queue))
		p.workerCancel()
		<-done
		err = ctx.Err()
	}

	p.workerCancel()
	p.started = false
	return err
}

// QueueLength returns the number of jobs waiting for a worker.
func (p *Pipeline) QueueLength() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.queue == nil {
		return 0
	}
	return len(p.queue)
}

// worker drains the queue until it is closed. Once ctx is cancelled the
// remaining jobs are dropped.
func (p *Pipeline) worker(ctx context.Context, workerID int) {
	defer p.workerWG.Done()
	p.log.Debug("pipeline worker started", "worker", workerID)

	for job := range p.queue {
		if ctx.Err() != nil {
			continue
		}
		out := p.Process(ctx, job)

		p.cbMu.RLock()
		cb := p.onComplete
		p.cbMu.RUnlock()
		if cb != nil {
			cb(job, out)
		}
	}

	p.log.Debug("pipeline worker stopped", "worker", workerID)
}
