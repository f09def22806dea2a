package bridge

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodeflow/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nodeflow/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nodeflow/internal/shared/types"
)

var (
	_ Dispatcher = (*Bridge)(nil)
	_ Dispatcher = (*Direct)(nil)
)

// Bridge is an unbounded FIFO mailbox between the goroutine that mutates a
// session and the goroutine that presents it. Post never blocks; events are
// delivered on whichever goroutine runs Run or Drain, in Post order, each
// exactly once.
type Bridge struct {
	mu     sync.Mutex
	queue  []types.Event // Protected by mu
	seq    uint64        // Protected by mu
	closed bool          // Protected by mu

	// deliverMu admits one consumer at a time so batches cannot interleave
	deliverMu sync.Mutex

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	delivered atomic.Uint64

	fanout  *fanout
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// Option configures a Bridge
type Option func(*Bridge)

// WithLogger sets the bridge logger
func WithLogger(logger *logging.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics records queue depth and deliveries
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = metrics
	}
}

// New creates an empty bridge
func New(opts ...Option) *Bridge {
	b := &Bridge{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.fanout = &fanout{logger: b.logger}
	return b
}

// Post enqueues an event for delivery. It is safe from any goroutine and
// returns immediately. Events posted after Close are discarded.
func (b *Bridge) Post(event types.Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.logger.Warn("Event posted to closed bridge", zap.String("event", event.String()))
		return
	}
	b.seq++
	event.Seq = b.seq
	b.queue = append(b.queue, event)
	pending := len(b.queue)
	b.mu.Unlock()

	b.metrics.SetBridgePending(pending)

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Subscribe registers a listener called on the delivering goroutine
func (b *Bridge) Subscribe(listener types.Listener) func() {
	return b.fanout.subscribe(listener)
}

// Drain delivers every pending event on the calling goroutine and returns
// how many were delivered. Events posted by listeners during the drain are
// delivered in the same call.
func (b *Bridge) Drain() int {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	total := 0
	for {
		b.mu.Lock()
		batch := b.queue
		b.queue = nil
		b.mu.Unlock()

		if len(batch) == 0 {
			b.metrics.SetBridgePending(0)
			return total
		}

		for _, event := range batch {
			b.fanout.deliver(event)
			b.delivered.Add(1)
			b.metrics.EventDelivered()
		}
		total += len(batch)
	}
}

// Run delivers events as they arrive until ctx is cancelled or the bridge
// is closed. Run it on the presentation goroutine. On Close, events already
// queued are delivered before Run returns.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Debug("Bridge delivery loop started")
	defer b.logger.Debug("Bridge delivery loop stopped")

	for {
		b.Drain()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			b.Drain()
			return nil
		case <-b.wake:
		}
	}
}

// Close stops accepting events and makes Run return after a final drain
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.done)
	})
}

// Pending returns the number of queued, undelivered events
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.queue)
}

// Delivered returns the number of events handed to listeners so far
func (b *Bridge) Delivered() uint64 {
	return b.delivered.Load()
}

// Direct delivers events synchronously inside Post, on the posting
// goroutine. It serves sessions that run on the presentation goroutine.
type Direct struct {
	seq    atomic.Uint64
	fanout *fanout
}

// NewDirect creates a synchronous dispatcher
func NewDirect(logger *logging.Logger) *Direct {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Direct{fanout: &fanout{logger: logger}}
}

// Post delivers event to every listener before returning
func (d *Direct) Post(event types.Event) {
	event.Seq = d.seq.Add(1)
	d.fanout.deliver(event)
}

// Subscribe registers a listener
func (d *Direct) Subscribe(listener types.Listener) func() {
	return d.fanout.subscribe(listener)
}
