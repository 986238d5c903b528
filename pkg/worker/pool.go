// Package worker runs batch soil model inversions concurrently.
package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Ce1ectric/groundmeas"
	"github.com/Ce1ectric/groundmeas/pkg/webhook"
)

// Job describes one inversion request inside a batch.
type Job struct {
	JobID         string
	RequestID     string
	MeasurementID int64
	Method        string
	ABIsFull      bool
	Layers        int
	ValueKind     string
	Engine        string
}

// Outcome is the terminal state of a single job.
type Outcome struct {
	JobID          string                      `json:"job_id"`
	RequestID      string                      `json:"request_id"`
	MeasurementID  int64                       `json:"measurement_id"`
	Result         *groundmeas.InversionResult `json:"result,omitempty"`
	Error          string                      `json:"error,omitempty"`
	Success        bool                        `json:"success"`
	ProcessingTime time.Duration               `json:"processing_time_ns"`
}

// ProcessorFunc runs one inversion and returns its result.
type ProcessorFunc func(ctx context.Context, job Job) (*groundmeas.InversionResult, error)

// Options holds configuration for creating a new worker pool.
type Options struct {
	Workers   int
	Processor ProcessorFunc
	Webhook   *webhook.Client
}

// Pool manages concurrent inversion workers.
type Pool struct {
	jobs         chan Job
	results      chan Outcome
	webhookQueue chan Outcome
	workers      int
	webhook      *webhook.Client
	processor    ProcessorFunc
	shutdown     chan struct{}
	wg           sync.WaitGroup
}

// New creates a worker pool and starts its workers.
func New(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}

	// do not block queueing new jobs and results even if the workers are already busy
	pool := &Pool{
		jobs:         make(chan Job, opts.Workers*2),
		results:      make(chan Outcome, opts.Workers*2),
		webhookQueue: make(chan Outcome, opts.Workers*4),
		workers:      opts.Workers,
		webhook:      opts.Webhook,
		processor:    opts.Processor,
		shutdown:     make(chan struct{}),
	}

	pool.start()
	return pool
}

func (p *Pool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	p.wg.Add(1)
	go p.webhookProcessor()

	log.Printf("Worker pool started with %d workers", p.workers)
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobs:
			outcome := p.processJob(job)
			// the results buffer is bounded; do not wedge shutdown on a
			// result nobody drains
			select {
			case p.results <- outcome:
			case <-p.shutdown:
				return
			}
			p.queueWebhook(outcome)

		case <-p.shutdown:
			return
		}
	}
}

func (p *Pool) processJob(job Job) Outcome {
	startTime := time.Now()
	result, err := p.processor(context.Background(), job)
	elapsed := time.Since(startTime)

	outcome := Outcome{
		JobID:          job.JobID,
		RequestID:      job.RequestID,
		MeasurementID:  job.MeasurementID,
		Result:         result,
		Success:        err == nil,
		ProcessingTime: elapsed,
	}
	if err != nil {
		outcome.Error = err.Error()
		log.Printf("Inversion job %s for measurement %d failed: %v", job.JobID, job.MeasurementID, err)
	}
	return outcome
}

// webhookProcessor sends webhook notifications without blocking workers.
// Sends run on this goroutine so Shutdown waits for in-flight deliveries.
func (p *Pool) webhookProcessor() {
	defer p.wg.Done()

	for {
		select {
		case outcome := <-p.webhookQueue:
			p.sendWebhook(outcome)

		case <-p.shutdown:
			return
		}
	}
}

func (p *Pool) sendWebhook(outcome Outcome) {
	payload := webhook.Payload{
		JobID:         outcome.JobID,
		MeasurementID: outcome.MeasurementID,
		Result:        outcome.Result,
		Error:         outcome.Error,
	}
	if outcome.Result != nil {
		payload.Misfit = outcome.Result.Misfit
	}
	if err := p.webhook.Send(payload); err != nil {
		log.Printf("Failed to send webhook for job %s: %v", outcome.JobID, err)
	}
}

func (p *Pool) queueWebhook(outcome Outcome) {
	if p.webhook == nil || !p.webhook.Enabled() {
		return
	}
	select {
	case p.webhookQueue <- outcome:
	default:
		log.Printf("Webhook queue full, dropping webhook for job %s", outcome.JobID)
	}
}

// Submit submits a job to the worker pool, blocking if the queue is full.
func (p *Pool) Submit(job Job) {
	select {
	case p.jobs <- job:
	default:
		log.Printf("Worker pool jobs channel full, job %s may be delayed", job.JobID)
		p.jobs <- job
	}
}

// Result retrieves a result from the worker pool without blocking.
func (p *Pool) Result() (Outcome, bool) {
	select {
	case outcome := <-p.results:
		return outcome, true
	default:
		return Outcome{}, false
	}
}

// WaitResult blocks until a result is available or the context ends.
func (p *Pool) WaitResult(ctx context.Context) (Outcome, bool) {
	select {
	case outcome := <-p.results:
		return outcome, true
	case <-ctx.Done():
		return Outcome{}, false
	}
}

// Shutdown gracefully shuts down the worker pool.
func (p *Pool) Shutdown() {
	log.Printf("Shutting down worker pool...")
	close(p.shutdown)
	p.wg.Wait()
	log.Printf("Worker pool shutdown complete")
}
