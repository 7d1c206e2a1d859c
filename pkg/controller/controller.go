// Package controller provides a generic, workqueue-backed reconciliation
// loop: a Handler processes one item of type T at a time, with
// ctrlruntime.Result driving requeue behaviour exactly as it would inside
// controller-runtime, but without pulling in a full manager.
package controller

import (
	"context"
	"time"

	"k8s.io/client-go/util/workqueue"
	ctrlruntime "sigs.k8s.io/controller-runtime"
)

// Handler processes a single queue item. Returning a non-nil error, or a
// Result with Requeue or RequeueAfter set, causes the item to be requeued.
type Handler[T comparable] interface {
	Do(ctx context.Context, item T) (ctrlruntime.Result, error)
}

// Controller drains a rate-limiting workqueue of T with up to MaxConcurrent
// worker goroutines, each calling the Handler for every item it pops.
type Controller[T comparable] struct {
	queue          workqueue.TypedRateLimitingInterface[T]
	handler        Handler[T]
	MaxConcurrent  int
}

// NewController builds a Controller backed by the default typed
// rate-limiting queue.
func NewController[T comparable](handler Handler[T], maxConcurrent int) *Controller[T] {
	queue := workqueue.NewTypedRateLimitingQueueWithConfig(
		workqueue.DefaultTypedControllerRateLimiter[T](),
		workqueue.TypedRateLimitingQueueConfig[T]{},
	)
	return NewControllerWithQueue(handler, queue, maxConcurrent)
}

// NewControllerWithQueue builds a Controller around a caller-supplied
// queue, useful in tests that want to inspect or pre-seed it.
func NewControllerWithQueue[T comparable](handler Handler[T], queue workqueue.TypedRateLimitingInterface[T], maxConcurrent int) *Controller[T] {
	return &Controller[T]{
		queue:         queue,
		handler:       handler,
		MaxConcurrent: maxConcurrent,
	}
}

// Add enqueues item immediately.
func (c *Controller[T]) Add(item T) {
	c.queue.Add(item)
}

// AddAfter enqueues item after the given delay.
func (c *Controller[T]) AddAfter(item T, delay time.Duration) {
	c.queue.AddAfter(item, delay)
}

// GetQueueSize returns the current queue length. Items added with AddAfter
// are not counted until their delay has elapsed.
func (c *Controller[T]) GetQueueSize() int {
	return c.queue.Len()
}

// Run starts MaxConcurrent worker goroutines that each loop calling
// processNext until ctx is cancelled, at which point the queue is shut
// down so outstanding Get calls unblock.
func (c *Controller[T]) Run(ctx context.Context) {
	for i := 0; i < c.MaxConcurrent; i++ {
		go func() {
			for c.processNext(ctx) {
			}
		}()
	}
	go func() {
		<-ctx.Done()
		c.queue.ShutDown()
	}()
}

// processNext pops one item, invokes the handler, and applies requeue
// semantics. It returns false once the queue has been shut down and
// drained, signalling the worker loop to exit.
func (c *Controller[T]) processNext(ctx context.Context) bool {
	item, shutdown := c.queue.Get()
	if shutdown {
		return false
	}
	defer c.queue.Done(item)

	result, err := c.handler.Do(ctx, item)
	switch {
	case err != nil:
		c.queue.AddRateLimited(item)
	case result.RequeueAfter > 0:
		c.queue.Forget(item)
		c.queue.AddAfter(item, result.RequeueAfter)
	case result.Requeue:
		c.queue.AddRateLimited(item)
	default:
		c.queue.Forget(item)
	}
	return true
}
