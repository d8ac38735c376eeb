package mailer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nailerHeum/AjouNICE/internal/metrics"
)

var (
	ErrQueueFull         = errors.New("mail queue full")
	ErrDispatcherStopped = errors.New("mail dispatcher stopped")
	ErrNotStarted        = errors.New("mail dispatcher not started")
	ErrStopTimeout       = errors.New("mail dispatcher stop timed out")
)

// Dispatcher delivers messages on a bounded pool of workers. Enqueue never
// blocks the caller; a full queue rejects the message.
type Dispatcher struct {
	sender      Sender
	workers     int
	sendTimeout time.Duration
	queue       chan Message
	logger      *slog.Logger
	metrics     *metrics.Metrics

	mu      sync.Mutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Call Start before Enqueue.
func NewDispatcher(sender Sender, workers, queueSize int, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sender:      sender,
		workers:     workers,
		sendTimeout: 30 * time.Second,
		queue:       make(chan Message, queueSize),
		logger:      logger,
		metrics:     m,
	}
}

// Start launches the workers. They exit when ctx is cancelled or Stop drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Enqueue schedules msg for delivery.
func (d *Dispatcher) Enqueue(msg Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return ErrNotStarted
	}
	if d.stopped {
		return ErrDispatcherStopped
	}

	select {
	case d.queue <- msg:
		d.metrics.MailQueued(len(d.queue))
		return nil
	default:
		d.metrics.MailSent(ErrQueueFull)
		d.logger.Warn("mail queue full, message dropped", "to", msg.To, "subject", msg.Subject)
		return ErrQueueFull
	}
}

// Stop closes the queue and waits up to timeout for queued mail to drain.
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	err := d.sender.Send(sendCtx, msg)
	d.metrics.MailSent(err)
	d.metrics.MailQueued(len(d.queue))
	if err != nil {
		d.logger.Error("mail delivery failed", "to", msg.To, "subject", msg.Subject, "error", err)
	}
}
