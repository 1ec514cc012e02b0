package execution

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var requestDurations = prometheus.NewSummaryVec(prometheus.SummaryOpts{
	Name:       "execgate_request_duration_us",
	Help:       "client request durations microseconds",
	AgeBuckets: 1,
}, []string{"client", "action"})

func init() {
	prometheus.MustRegister(requestDurations)
}

var nextRequestID uint64

// requestCall tracks one in-flight submit/cancel/resync until the venue event
// that settles it arrives through the reconciler.
type requestCall struct {
	id     uint64
	client string
	action string
	start  time.Time
	Snap   OrderSnapshot
	Err    error
	Done   chan *requestCall
}

func (call *requestCall) done() {
	requestDurations.WithLabelValues(call.client, call.action).Observe(float64(time.Since(call.start) / time.Microsecond))
	select {
	case call.Done <- call:
		// ok
	default:
		// The call table settles a call at most once, so with the Done
		// channel at capacity one this branch must be unreachable.
		log.Println("execgate: discarding requestCall reply due to insufficient Done chan capacity")
	}
}

func createCall(client, action string) *requestCall {
	return &requestCall{
		id:     atomic.AddUint64(&nextRequestID, 1),
		client: client,
		action: action,
		start:  time.Now(),
		Done:   make(chan *requestCall, 1),
	}
}

type callKey struct {
	account AccountID
	id      ClientOrderID
}

// callTable correlates venue events with blocked request callers. One submit
// may be outstanding per order; cancels and resyncs may overlap.
type callTable struct {
	mu      sync.Mutex
	submits map[callKey]*requestCall
	cancels map[callKey]map[uint64]*requestCall
	syncs   map[AccountID]map[uint64]*requestCall
}

func newCallTable() *callTable {
	return &callTable{
		submits: make(map[callKey]*requestCall),
		cancels: make(map[callKey]map[uint64]*requestCall),
		syncs:   make(map[AccountID]map[uint64]*requestCall),
	}
}

func (t *callTable) registerSubmit(key callKey, call *requestCall) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, duplicate := t.submits[key]; duplicate {
		return false
	}
	t.submits[key] = call
	return true
}

func (t *callTable) dropSubmit(key callKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.submits, key)
}

func (t *callTable) registerCancel(key callKey, call *requestCall) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.cancels[key]; !ok {
		t.cancels[key] = make(map[uint64]*requestCall)
	}
	t.cancels[key][call.id] = call
}

func (t *callTable) dropCancel(key callKey, call *requestCall) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.cancels[key], call.id)
	if len(t.cancels[key]) == 0 {
		delete(t.cancels, key)
	}
}

func (t *callTable) registerSync(account AccountID, call *requestCall) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, duplicate := t.syncs[account]
	if !duplicate {
		t.syncs[account] = make(map[uint64]*requestCall)
	}
	t.syncs[account][call.id] = call
	return !duplicate
}

func (t *callTable) dropSync(account AccountID, call *requestCall) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.syncs[account], call.id)
	if len(t.syncs[account]) == 0 {
		delete(t.syncs, account)
	}
}

// resolveOrder settles pending calls against the order snapshot produced by
// one venue event. Submits settle on the first acknowledgment of any
// direction, cancels settle once the order is terminal. A call settles at
// most once: it leaves the table before done() so a later event for the same
// order cannot mutate a result the caller is already reading.
func (t *callTable) resolveOrder(snap OrderSnapshot, ev AccountEvent) {
	key := callKey{account: snap.Account, id: snap.ClientOrderID}
	var reason string
	if upd, ok := ev.(OrderUpdateEvent); ok {
		reason = upd.Reason
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if pending, ok := t.submits[key]; ok {
		delete(t.submits, key)
		pending.Snap = snap
		if snap.Status == OrderStatusRejected {
			pending.Err = getErrorByReject(reason)
		}
		pending.done()
	}

	if !snap.Status.IsTerminal() {
		return
	}
	if calls, ok := t.cancels[key]; ok {
		delete(t.cancels, key)
		for _, call := range calls {
			call.Snap = snap
			if snap.Status != OrderStatusCanceled {
				call.Err = ErrOrderTerminal
			}
			call.done()
		}
	}
}

// resolveSync settles pending resync calls for the account.
func (t *callTable) resolveSync(account AccountID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if calls, ok := t.syncs[account]; ok {
		delete(t.syncs, account)
		for _, call := range calls {
			call.done()
		}
	}
}

// failAll wakes every caller with err; used on session loss. The table is
// emptied so stale entries cannot be settled a second time after reconnect.
func (t *callTable) failAll(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, call := range t.submits {
		call.Err = err
		call.done()
	}
	for _, calls := range t.cancels {
		for _, call := range calls {
			call.Err = err
			call.done()
		}
	}
	for _, calls := range t.syncs {
		for _, call := range calls {
			call.Err = err
			call.done()
		}
	}
	t.submits = make(map[callKey]*requestCall)
	t.cancels = make(map[callKey]map[uint64]*requestCall)
	t.syncs = make(map[AccountID]map[uint64]*requestCall)
}

// waitCall blocks until the call settles or ctx expires. A timeout is a
// client-side bookkeeping signal only: the venue request may still be in
// flight and its late event is applied when it arrives.
func waitCall(ctx context.Context, call *requestCall) (OrderSnapshot, error) {
	select {
	case result := <-call.Done:
		return result.Snap, result.Err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return OrderSnapshot{}, ErrTimeout
		}
		return OrderSnapshot{}, connectivityError(call.action, ctx.Err())
	}
}
