package execution

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var channelDropCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "execgate_channel_dropped_total",
	Help: "Events dropped by typed channels under overflow policy",
}, []string{"channel"})

func init() {
	prometheus.MustRegister(channelDropCounters)
}

var (
	ErrChannelClosed   = errors.New("channel closed")
	ErrChannelOverflow = errors.New("channel overflow")
)

// OverflowPolicy selects the behaviour of Send on a full bounded channel.
type OverflowPolicy uint8

const (
	// OverflowBlock parks the sender until space is available. Never use it
	// from a foreign callback context.
	OverflowBlock OverflowPolicy = iota
	// OverflowDropNewest discards the value being sent.
	OverflowDropNewest
	// OverflowDropOldest evicts the oldest queued value in favour of the new one.
	OverflowDropOldest
)

// Chan is a typed delivery primitive with an explicit, observable drop policy.
// Capacity <= 0 means unbounded; then the policy is irrelevant. Every drop is
// counted and surfaced through Drops and the prometheus counter so overload is
// never silent.
type Chan[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []T
	limit  int
	policy OverflowPolicy
	closed bool
	drops  uint64
	name   string
}

func NewChan[T any](name string, capacity int, policy OverflowPolicy) *Chan[T] {
	c := &Chan[T]{limit: capacity, policy: policy, name: name}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Send queues v according to the channel policy. Under overflow it returns
// ErrChannelOverflow after recording the drop: with DropNewest v itself was
// discarded, with DropOldest v was queued and the oldest value evicted.
func (c *Chan[T]) Send(v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}

	if c.limit > 0 && len(c.buf) >= c.limit {
		switch c.policy {
		case OverflowBlock:
			for len(c.buf) >= c.limit && !c.closed {
				c.cond.Wait()
			}
			if c.closed {
				return ErrChannelClosed
			}
		case OverflowDropNewest:
			c.recordDrop()
			return ErrChannelOverflow
		case OverflowDropOldest:
			c.buf = c.buf[1:]
			c.recordDrop()
			c.buf = append(c.buf, v)
			c.cond.Broadcast()
			return ErrChannelOverflow
		}
	}

	c.buf = append(c.buf, v)
	c.cond.Broadcast()
	return nil
}

func (c *Chan[T]) recordDrop() {
	atomic.AddUint64(&c.drops, 1)
	channelDropCounters.WithLabelValues(c.name).Inc()
}

// TryRecv returns the oldest queued value without blocking.
func (c *Chan[T]) TryRecv() (T, bool) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.buf) == 0 {
		return zero, false
	}
	v := c.buf[0]
	c.buf = c.buf[1:]
	c.cond.Broadcast()
	return v, true
}

// Recv blocks until a value is available, the channel is closed and drained,
// or ctx expires.
func (c *Chan[T]) Recv(ctx context.Context) (T, error) {
	var zero T

	stop := context.AfterFunc(ctx, func() {
		c.cond.Broadcast()
	})
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if len(c.buf) > 0 {
			v := c.buf[0]
			c.buf = c.buf[1:]
			c.cond.Broadcast()
			return v, nil
		}
		if c.closed {
			return zero, ErrChannelClosed
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		c.cond.Wait()
	}
}

// Drops returns the number of values discarded so far.
func (c *Chan[T]) Drops() uint64 {
	return atomic.LoadUint64(&c.drops)
}

func (c *Chan[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// Close wakes all blocked senders and receivers. Queued values remain
// receivable until drained.
func (c *Chan[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cond.Broadcast()
}
