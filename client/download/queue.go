package download

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// WorkFunc downloads one blob.
type WorkFunc func(ctx context.Context) error

// Adder matches the client.DownloadAsync func signature, so a Result
// can add more downloads to its own batch.
type Adder func(context.Context, Endpoint, string, ...Option) (*Result, error)

// JobError ties a failed download of a batch to its destination.
type JobError struct {
	Dest string
	Err  error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %v", e.Dest, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// Queue runs a batch of download sessions concurrently, at most
// maxConcurrent at a time. Each session still fetches its own spans
// strictly one at a time.
type Queue struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	sem      chan struct{}
	shutdown atomic.Bool
	errs     []error
}

// NewQueue creates a Queue with the given concurrency limit.
// If maxConcurrent <= 0, concurrency is unlimited.
func NewQueue(maxConcurrent int) *Queue {
	q := &Queue{}
	if maxConcurrent > 0 {
		q.sem = make(chan struct{}, maxConcurrent)
	}
	return q
}

// Wait blocks until every download of the batch is done and returns
// their failures as joined *JobError values.
func (q *Queue) Wait() error {
	q.wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()

	return errors.Join(q.errs...)
}

// Shutdown makes downloads that have not started yet fail with
// ErrGroupShutdown.
func (q *Queue) Shutdown() {
	q.shutdown.Store(true)
}

// Start runs fn, the download to dest, once a slot is free.
func (q *Queue) Start(ctx context.Context, dest string, fn WorkFunc, adder Adder) *Result {
	ctx, cancel := context.WithCancel(ctx)
	r := &Result{
		dest:   dest,
		adder:  adder,
		done:   make(chan struct{}),
		cancel: cancel,
		queue:  q,
	}

	q.wg.Add(1)
	go func() {
		defer func() {
			cancel()
			close(r.done)
			q.wg.Done()
		}()

		r.finish(q.run(ctx, fn))
	}()

	return r
}

func (q *Queue) run(ctx context.Context, fn WorkFunc) error {
	if q.sem != nil {
		select {
		case q.sem <- struct{}{}:
			defer func() { <-q.sem }()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if q.shutdown.Load() {
		return ErrGroupShutdown
	}

	return fn(ctx)
}

func (q *Queue) record(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.errs = append(q.errs, err)
}

// Async starts fn on the queue chosen by optFns: the queue joined by
// Result.Add, a new bounded queue from WithBatch, or a queue of its own.
func Async(ctx context.Context, dest string, fn WorkFunc, adder Adder, optFns ...Option) (*Result, error) {
	opts, err := newOptions(optFns...)
	if err != nil {
		return nil, err
	}

	q := opts.queue
	if q == nil {
		var limit int
		if opts.batchLimit != nil {
			limit = *opts.batchLimit
		}
		q = NewQueue(limit)
	}

	return q.Start(ctx, dest, fn, adder), nil
}

// Result tracks one download of a batch.
type Result struct {
	dest   string
	adder  Adder
	done   chan struct{}
	err    error
	cancel context.CancelFunc
	queue  *Queue
}

func (r *Result) finish(err error) {
	if err == nil {
		return
	}

	r.err = &JobError{Dest: r.dest, Err: err}
	r.queue.record(r.err)
}

// Add queues another download on the same batch. WithBatch cannot be
// passed here.
//
// A rejected download (empty destPath, bad endpoint, conflicting
// options) is recorded like a failed one, so [Result.Wait] reports it
// and callers need not check each Add.
func (r *Result) Add(ctx context.Context, ep Endpoint, destPath string, optFns ...Option) *Result {
	result, err := r.adder(ctx, ep, destPath, slices.Concat([]Option{withBatch(r.queue)}, optFns)...)
	if err == nil {
		return result
	}

	done := make(chan struct{})
	close(done)
	rejected := &Result{
		dest:   destPath,
		adder:  r.adder,
		done:   done,
		cancel: func() {},
		queue:  r.queue,
	}
	rejected.finish(err)

	return rejected
}

// Dest returns the destination path of the download.
func (r *Result) Dest() string { return r.dest }

// Done returns a channel that is closed when the download completes.
func (r *Result) Done() <-chan struct{} { return r.done }

// Err blocks until the download completes and returns its error.
func (r *Result) Err() error {
	<-r.done
	return r.err
}

// Wait blocks until the whole batch completes. See [Queue.Wait].
func (r *Result) Wait() error {
	return r.queue.Wait()
}

// Cancel cancels this download's context.
func (r *Result) Cancel() {
	r.cancel()
}
