package execution

import (
	"strconv"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var bridgeMessageCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "execgate_bridge_message_total",
	Help: "Foreign notifications received by callback kind",
}, []string{"kind"})

var bridgeMalformedCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "execgate_bridge_malformed_total",
	Help: "Foreign notifications that failed to parse",
}, []string{"kind"})

func init() {
	prometheus.MustRegister(bridgeMessageCounters, bridgeMalformedCounters)
}

// CallbackKind identifies the foreign notification entry point invoked.
type CallbackKind uint8

const (
	CallbackStateChanged CallbackKind = iota
	CallbackOrderUpdate
	CallbackTrade
	CallbackBalanceUpdate
	CallbackSnapshot
	CallbackBookUpdate
	CallbackAdjustHistory

	callbackStateChangedStr  = "stateChanged"
	callbackOrderUpdateStr   = "orderUpdate"
	callbackTradeStr         = "trade"
	callbackBalanceUpdateStr = "balanceUpdate"
	callbackSnapshotStr      = "snapshot"
	callbackBookUpdateStr    = "bookUpdate"
	callbackAdjustHistoryStr = "adjustHistory"
)

func (k CallbackKind) String() string {
	switch k {
	case CallbackStateChanged:
		return callbackStateChangedStr
	case CallbackOrderUpdate:
		return callbackOrderUpdateStr
	case CallbackTrade:
		return callbackTradeStr
	case CallbackBalanceUpdate:
		return callbackBalanceUpdateStr
	case CallbackSnapshot:
		return callbackSnapshotStr
	case CallbackBookUpdate:
		return callbackBookUpdateStr
	case CallbackAdjustHistory:
		return callbackAdjustHistoryStr
	}
	panic("invalid callback kind string conversion" + strconv.Itoa(int(k)))
}

// ForeignPayload is what a foreign runtime hands to one bridge entry point:
// raw bytes valid only for the synchronous extent of the call, plus an
// optional buffer handle the bridge must release exactly once.
type ForeignPayload struct {
	Data   []byte
	Buffer *ForeignBuffer
}

// Bridge is the single point where foreign-initiated notifications become
// internal typed events. Its entry points run on a thread owned and scheduled
// by the foreign runtime: they must return promptly, never block, never call
// back into the foreign library, and never propagate an error to the caller.
type Bridge struct {
	logger  *zap.Logger
	events  *Chan[AccountEvent]
	books   *Chan[BookUpdate]
	diags   *Chan[Diagnostic]
	isReady uint32
	ready   chan bool
}

// NewBridge wires a bridge over non-blocking channels. Event and book
// channels are bounded drop-oldest: a stalled consumer costs events (counted,
// surfaced as diagnostics), never a stalled foreign thread.
func NewBridge(logger *zap.Logger, eventCapacity int) *Bridge {
	if eventCapacity <= 0 {
		eventCapacity = 1024
	}
	return &Bridge{
		logger: logger,
		events: NewChan[AccountEvent]("bridge_events", eventCapacity, OverflowDropOldest),
		books:  NewChan[BookUpdate]("bridge_books", eventCapacity, OverflowDropOldest),
		diags:  NewChan[Diagnostic]("bridge_diags", 256, OverflowDropOldest),
		ready:  make(chan bool, 2),
	}
}

// Events is the normalized account event stream. Per foreign thread the
// channel preserves call order; across callback kinds the venue sequence is
// authoritative, not arrival order.
func (b *Bridge) Events() *Chan[AccountEvent] { return b.events }

// Books is the depth notification stream.
func (b *Bridge) Books() *Chan[BookUpdate] { return b.books }

// Diagnostics is the advisory stream of malformed payloads and drops.
func (b *Bridge) Diagnostics() *Chan[Diagnostic] { return b.diags }

// IsReady reports the venue session state as last announced by the foreign
// runtime.
func (b *Bridge) IsReady() bool {
	return atomic.LoadUint32(&b.isReady) == 1
}

// Ready announces session state flips. Buffered so the bridge never blocks
// publishing; the owner must drain it.
func (b *Bridge) Ready() chan bool {
	return b.ready
}

func (b *Bridge) setReady(val bool) {
	var state uint32
	if val {
		state = 1
	}
	if atomic.SwapUint32(&b.isReady, state) != state {
		b.logger.Info("bridge:", zap.Bool("session ready", val))
		if b.ready != nil {
			select {
			case b.ready <- val:
				// ok
			default:
				b.logger.Error("bridge: ready flip discarded due to insufficient chan capacity")
			}
		}
	}
}

// OnStateChanged handles the connection state callback.
func (b *Bridge) OnStateChanged(p ForeignPayload) {
	defer p.Buffer.Release()
	bridgeMessageCounters.WithLabelValues(callbackStateChangedStr).Inc()

	var msg messageStateChange
	if err := jsoniter.Unmarshal(p.Data, &msg); err != nil {
		b.malformed(CallbackStateChanged, p.Data, err)
		return
	}
	switch msg.Connection {
	case connectionStateConnected:
		b.setReady(true)
	case connectionStateDisconnected:
		b.setReady(false)
	default:
		b.logger.Warn("bridge: unknown connection state", zap.String("state", msg.Connection), zap.Int("result", msg.Result))
	}
}

// OnOrderUpdate handles the order lifecycle callback.
func (b *Bridge) OnOrderUpdate(p ForeignPayload) {
	defer p.Buffer.Release()
	bridgeMessageCounters.WithLabelValues(callbackOrderUpdateStr).Inc()

	var msg messageOrderUpdate
	if err := jsoniter.Unmarshal(p.Data, &msg); err != nil {
		b.malformed(CallbackOrderUpdate, p.Data, err)
		return
	}
	b.push(msg.CreateEvent())
}

// OnTrade handles the fill callback.
func (b *Bridge) OnTrade(p ForeignPayload) {
	defer p.Buffer.Release()
	bridgeMessageCounters.WithLabelValues(callbackTradeStr).Inc()

	var msg messageTrade
	if err := jsoniter.Unmarshal(p.Data, &msg); err != nil {
		b.malformed(CallbackTrade, p.Data, err)
		return
	}
	b.push(msg.CreateEvent())
}

// OnBalanceUpdate handles the settlement delta callback.
func (b *Bridge) OnBalanceUpdate(p ForeignPayload) {
	defer p.Buffer.Release()
	bridgeMessageCounters.WithLabelValues(callbackBalanceUpdateStr).Inc()

	var msg messageBalanceUpdate
	if err := jsoniter.Unmarshal(p.Data, &msg); err != nil {
		b.malformed(CallbackBalanceUpdate, p.Data, err)
		return
	}
	b.push(msg.CreateEvent())
}

// OnSnapshot handles the full account resync callback.
func (b *Bridge) OnSnapshot(p ForeignPayload) {
	defer p.Buffer.Release()
	bridgeMessageCounters.WithLabelValues(callbackSnapshotStr).Inc()

	var msg messageSnapshot
	if err := jsoniter.Unmarshal(p.Data, &msg); err != nil {
		b.malformed(CallbackSnapshot, p.Data, err)
		return
	}
	b.push(msg.CreateEvent())
}

// OnBookUpdate handles the depth callback.
func (b *Bridge) OnBookUpdate(p ForeignPayload) {
	defer p.Buffer.Release()
	bridgeMessageCounters.WithLabelValues(callbackBookUpdateStr).Inc()

	var msg messageBookUpdate
	if err := jsoniter.Unmarshal(p.Data, &msg); err != nil {
		b.malformed(CallbackBookUpdate, p.Data, err)
		return
	}
	if err := b.books.Send(msg.CreateUpdate()); err != nil {
		b.dropped("bridge_books", b.books.Drops())
	}
}

// OnAdjustHistory handles the corporate-actions callback. Its payload layout
// is venue specific and not yet confirmed, so the bytes are not interpreted:
// the buffer is still released and the notification is surfaced as a
// diagnostic for offline analysis.
func (b *Bridge) OnAdjustHistory(p ForeignPayload) {
	defer p.Buffer.Release()
	bridgeMessageCounters.WithLabelValues(callbackAdjustHistoryStr).Inc()

	d := newDiagnostic(DiagUnknownPayload, "adjustHistory payload layout unconfirmed, "+strconv.Itoa(len(p.Data))+" bytes")
	emitDiagnostic(b.diags, d)
}

// push delivers ev without blocking. Channel overflow is recorded and
// reported downstream; it is never an error for the foreign caller.
func (b *Bridge) push(ev AccountEvent) {
	if err := b.events.Send(ev); err != nil {
		b.dropped("bridge_events", b.events.Drops())
	}
}

func (b *Bridge) dropped(channel string, total uint64) {
	d := newDiagnostic(DiagDroppedEvents, channel)
	d.Count = total
	emitDiagnostic(b.diags, d)
}

func (b *Bridge) malformed(kind CallbackKind, raw []byte, err error) {
	bridgeMalformedCounters.WithLabelValues(kind.String()).Inc()
	// full raw payload is kept in the log for offline diagnosis
	b.logger.Error("bridge: parse fail "+kind.String(), zap.Error(err), zap.ByteString("payload", raw))
	emitDiagnostic(b.diags, newDiagnostic(DiagMalformedEvent, kind.String()+": "+err.Error()))
}
