// Package dispatch implements the dispatcher: started once at service
// boot, it pins the pending queue's stream and fans items out to a single
// channel shared by every fulfiller worker. The dispatcher is the
// channel's sole producer; workers are its only consumers.
package dispatch

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/succinctlabs/sp1-tee-private-proving/internal/fulfill"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/queue"
	"github.com/succinctlabs/sp1-tee-private-proving/internal/telemetry"
)

// Dispatcher owns the worker-channel and the pool of fulfiller workers
// reading from it. Backpressure is natural: when every worker is busy the
// channel send blocks, leaving unfetched items in the pending queue rather
// than growing unbounded worker-side state.
type Dispatcher struct {
	queue   *queue.Queue
	workers []*fulfill.Worker
	ch      chan queue.PendingRequest
	log     *logrus.Entry
	metrics *telemetry.Telemetry
}

// New constructs a Dispatcher over workers, one per GPU device. The
// channel is unbuffered: an item only leaves the dispatcher's hands once a
// worker is ready to receive it. tel may be nil, in which case the
// dispatcher runs without updating Prometheus metrics.
func New(q *queue.Queue, workers []*fulfill.Worker, log *logrus.Logger, tel *telemetry.Telemetry) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{
		queue:   q,
		workers: workers,
		ch:      make(chan queue.PendingRequest),
		log:     log.WithField("component", "dispatcher"),
		metrics: tel,
	}
}

// Run starts every worker and pumps the pending queue's stream into the
// shared channel until ctx is cancelled. It blocks until all workers have
// exited.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.WithField("worker_count", len(d.workers)).Info("dispatcher starting")

	done := make(chan struct{}, len(d.workers))
	for i, w := range d.workers {
		go func(id int, w *fulfill.Worker) {
			w.Run(ctx, d.ch)
			done <- struct{}{}
		}(i, w)
	}

	stream := d.queue.Stream(ctx)
	for {
		select {
		case req, ok := <-stream:
			if !ok {
				d.log.Info("pending queue stream closed, dispatcher stopping")
				d.drain(len(d.workers), done)
				return
			}
			d.setQueueDepth()
			select {
			case d.ch <- req:
			case <-ctx.Done():
				d.drain(len(d.workers), done)
				return
			}
		case <-ctx.Done():
			d.drain(len(d.workers), done)
			return
		}
	}
}

// setQueueDepth samples the pending queue's current depth into the
// QueuedRequests gauge. Stream has already removed req from the queue by
// the time this runs, so the sample reflects what is still waiting behind
// it, not counting the item currently being handed to a worker.
func (d *Dispatcher) setQueueDepth() {
	if d.metrics != nil {
		d.metrics.QueuedRequests.Set(float64(d.queue.Len()))
	}
}

// drain waits for all worker goroutines to observe ctx cancellation and
// exit, so Run never returns while a worker is still mid-request.
func (d *Dispatcher) drain(n int, done <-chan struct{}) {
	for i := 0; i < n; i++ {
		<-done
	}
}
