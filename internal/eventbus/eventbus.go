// Package eventbus implements the batched event bus: requests and
// responses accumulate into per-type batches that flush on size or a
// rearmable timer, then fan out to subscribed observers over bounded,
// drop-on-overflow channels.
package eventbus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/kanti-proxy/kanti/internal/capture"
	"github.com/kanti-proxy/kanti/internal/metrics"
)

// BatchType names the two kinds of batch the bus flushes, matching the
// "type" field of the SSE data envelope the control plane streams.
type BatchType string

const (
	BatchTypeRequest  BatchType = "proxy-request-batch"
	BatchTypeResponse BatchType = "proxy-response-batch"
)

// Batch is one flushed group of records handed to every observer.
type Batch struct {
	Type  BatchType
	Items []capture.RequestDetails
}

const (
	// DefaultBatchSize is the size trigger for an early flush.
	DefaultBatchSize = 50
	// DefaultBatchInterval is the time trigger for a flush of a non-empty,
	// under-threshold buffer.
	DefaultBatchInterval = 100 * time.Millisecond
	// DefaultObserverBuffer is the bounded channel depth per observer.
	DefaultObserverBuffer = 100
)

// observer is one subscriber's bounded delivery channel.
type observer struct {
	id string
	ch chan Batch
}

// Bus accumulates capture.RequestDetails into per-type batches and fans
// flushed batches out to observers. It implements capture.Sink through
// OnRequestEmitted/OnResponseEmitted, and is composed by the caller alongside
// the capture store (see internal/app).
type Bus struct {
	logger hclog.Logger

	batchSize     int
	batchInterval time.Duration

	mu        sync.Mutex
	reqBuf    []capture.RequestDetails
	respBuf   []capture.RequestDetails
	reqTimer  *time.Timer
	respTimer *time.Timer
	observers map[string]*observer
	stopped   bool
}

func New(logger hclog.Logger, batchSize int, batchInterval time.Duration) *Bus {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchInterval <= 0 {
		batchInterval = DefaultBatchInterval
	}
	return &Bus{
		logger:        logger.Named("eventbus"),
		batchSize:     batchSize,
		batchInterval: batchInterval,
		observers:     make(map[string]*observer),
	}
}

// Subscribe registers a new observer and returns its id and delivery
// channel. The caller must call Unsubscribe when done (typically tied to
// request-context cancellation in the control plane's SSE handler).
func (b *Bus) Subscribe() (string, <-chan Batch) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	obs := &observer{id: id, ch: make(chan Batch, DefaultObserverBuffer)}
	b.observers[id] = obs

	metrics.Registry.SetGauge(metrics.ObserversActive, float32(len(b.observers)))
	return id, obs.ch
}

// Unsubscribe removes and closes an observer's channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if obs, ok := b.observers[id]; ok {
		delete(b.observers, id)
		close(obs.ch)
	}
	metrics.Registry.SetGauge(metrics.ObserversActive, float32(len(b.observers)))
}

// OnRequestEmitted implements capture.Sink's request half.
func (b *Bus) OnRequestEmitted(r capture.RequestDetails) {
	b.add(&b.reqBuf, &b.reqTimer, BatchTypeRequest, r)
}

// OnResponseEmitted implements capture.Sink's response half.
func (b *Bus) OnResponseEmitted(r capture.RequestDetails) {
	b.add(&b.respBuf, &b.respTimer, BatchTypeResponse, r)
}

func (b *Bus) add(buf *[]capture.RequestDetails, timer **time.Timer, typ BatchType, r capture.RequestDetails) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}

	*buf = append(*buf, r)
	if len(*buf) >= b.batchSize {
		items := *buf
		*buf = nil
		if *timer != nil {
			(*timer).Stop()
			*timer = nil
		}
		b.mu.Unlock()
		b.flush(typ, items)
		return
	}

	if *timer == nil {
		*timer = time.AfterFunc(b.batchInterval, func() { b.flushTimer(buf, timer, typ) })
	}
	b.mu.Unlock()
}

func (b *Bus) flushTimer(buf *[]capture.RequestDetails, timer **time.Timer, typ BatchType) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	items := *buf
	*buf = nil
	*timer = nil
	b.mu.Unlock()

	if len(items) > 0 {
		b.flush(typ, items)
	}
}

// flush delivers a batch to every observer's channel, dropping it for any
// observer whose channel is full rather than blocking the whole bus.
func (b *Bus) flush(typ BatchType, items []capture.RequestDetails) {
	batch := Batch{Type: typ, Items: items}

	b.mu.Lock()
	targets := make([]*observer, 0, len(b.observers))
	for _, obs := range b.observers {
		targets = append(targets, obs)
	}
	b.mu.Unlock()

	metrics.Registry.IncrCounter(metrics.BatchesFlushed, 1)

	for _, obs := range targets {
		select {
		case obs.ch <- batch:
		default:
			metrics.Registry.IncrCounter(metrics.ObserverEventsDropped, 1)
			b.logger.Warn("dropping batch for slow observer", "observer_id", obs.id, "batch_type", typ)
		}
	}
}

// Stop flushes any pending buffers immediately and stops accepting new
// records.
func (b *Bus) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true

	reqItems, respItems := b.reqBuf, b.respBuf
	b.reqBuf, b.respBuf = nil, nil
	if b.reqTimer != nil {
		b.reqTimer.Stop()
		b.reqTimer = nil
	}
	if b.respTimer != nil {
		b.respTimer.Stop()
		b.respTimer = nil
	}
	b.mu.Unlock()

	if len(reqItems) > 0 {
		b.flush(BatchTypeRequest, reqItems)
	}
	if len(respItems) > 0 {
		b.flush(BatchTypeResponse, respItems)
	}

	b.mu.Lock()
	for id, obs := range b.observers {
		delete(b.observers, id)
		close(obs.ch)
	}
	b.mu.Unlock()
}
