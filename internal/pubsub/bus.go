// Package pubsub provides the in-process notification bus used by
// subscription operations.
//
// An event reaches the listeners registered on its topic at publish time and
// nobody else. Publishes on one topic are serialized and every listener owns
// an unbounded FIFO queue drained by its own goroutine, so a listener sees
// every event in publish order and a slow one never stalls the publisher.
// Events still queued when a listener goes away are discarded.
package pubsub

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nailerHeum/AjouNICE/internal/metrics"
)

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("notification bus closed")

const defaultBuffer = 16

// Bus fans events out to live listeners keyed by topic.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]*topic
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup

	buffer  int
	logger  *slog.Logger
	metrics *metrics.Metrics
	nextID  uint64
}

type topic struct {
	mu        sync.Mutex
	listeners map[uint64]*listener
}

type listener struct {
	out  chan any
	wake chan struct{}

	mu    sync.Mutex
	queue []any
}

func (l *listener) push(payload any) {
	l.mu.Lock()
	l.queue = append(l.queue, payload)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *listener) pop() (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	next := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	if len(l.queue) == 0 {
		l.queue = nil
	}
	return next, true
}

func (l *listener) pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.queue)
	l.queue = nil
	return n
}

// drain moves queued events to out in order until stop or done fires. It
// reports false if an event was taken off the queue but not handed over.
func (l *listener) drain(stop, done <-chan struct{}) bool {
	for {
		select {
		case <-stop:
			return true
		case <-done:
			return true
		default:
		}

		next, ok := l.pop()
		if !ok {
			select {
			case <-l.wake:
				continue
			case <-stop:
				return true
			case <-done:
				return true
			}
		}

		select {
		case l.out <- next:
		case <-stop:
			return false
		case <-done:
			return false
		}
	}
}

// Option configures a Bus.
type Option func(*Bus)

// WithBuffer sets the per-listener channel capacity in front of its queue.
func WithBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithLogger sets the logger used to report discarded events.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics reports publish, delivery and discard counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

// New creates an empty bus. It is constructed once per process and shared by
// every handler; tests build their own.
func New(opts ...Option) *Bus {
	b := &Bus{
		topics: make(map[string]*topic),
		done:   make(chan struct{}),
		buffer: defaultBuffer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a listener on name. The returned channel is closed
// once ctx is cancelled or the bus shuts down, after the listener has been
// removed from the registry.
func (b *Bus) Subscribe(ctx context.Context, name string) (<-chan any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	t, ok := b.topics[name]
	if !ok {
		t = &topic{listeners: make(map[uint64]*listener)}
		b.topics[name] = t
	}
	b.nextID++
	id := b.nextID
	l := &listener{
		out:  make(chan any, b.buffer),
		wake: make(chan struct{}, 1),
	}

	t.mu.Lock()
	t.listeners[id] = l
	count := len(t.listeners)
	t.mu.Unlock()

	b.wg.Add(1)
	b.mu.Unlock()

	b.metrics.Listeners(name, count)

	go func() {
		defer b.wg.Done()
		defer close(l.out)

		handed := l.drain(ctx.Done(), b.done)
		b.unsubscribe(name, id)

		discarded := l.pending()
		if !handed {
			discarded++
		}
		if discarded > 0 {
			b.metrics.Discarded(name, discarded)
			b.logger.Debug("listener left with queued notifications",
				"topic", name,
				"listener", id,
				"discarded", discarded,
			)
		}
	}()

	return l.out, nil
}

func (b *Bus) unsubscribe(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[name]
	if !ok {
		return
	}

	t.mu.Lock()
	delete(t.listeners, id)
	count := len(t.listeners)
	t.mu.Unlock()

	if count == 0 {
		delete(b.topics, name)
	}
	b.metrics.Listeners(name, count)
}

// Publish queues payload for every listener currently registered on name
// and returns how many there were. It never blocks on a listener.
func (b *Bus) Publish(name string, payload any) int {
	b.mu.RLock()
	t, ok := b.topics[name]
	closed := b.closed
	b.mu.RUnlock()

	b.metrics.Published(name)
	if !ok || closed {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, l := range t.listeners {
		l.push(payload)
		b.metrics.Delivered(name)
	}
	return len(t.listeners)
}

// ListenerCount returns the number of live listeners on name.
func (b *Bus) ListenerCount(name string) int {
	b.mu.RLock()
	t, ok := b.topics[name]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners)
}

// Close terminates every live subscription and waits for the listeners to
// be released. It is safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
}
