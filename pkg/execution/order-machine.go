package execution

import (
	"time"

	"github.com/shopspring/decimal"
)

// orderState pairs the authoritative snapshot with the trade-id set used for
// fill de-duplication. The set never leaves the container.
type orderState struct {
	snap       OrderSnapshot
	seenTrades map[string]struct{}
}

// ordersContainer tracks every order of one account through its lifecycle.
// It is mutated from the submit path and from the reconciler event loop; the
// owning reconciler serializes access with its own lock.
type ordersContainer struct {
	orders map[ClientOrderID]*orderState
}

func newOrdersContainer() *ordersContainer {
	return &ordersContainer{
		orders: make(map[ClientOrderID]*orderState),
	}
}

// submit creates the PendingNew snapshot atomically with request submission,
// before any venue acknowledgment, so cancel-before-ack stays representable.
func (con *ordersContainer) submit(req OrderRequest, now time.Time) (OrderSnapshot, error) {
	if _, ok := con.orders[req.ClientOrderID]; ok {
		return OrderSnapshot{}, ErrDuplicateClient
	}
	snap := OrderSnapshot{
		ClientOrderID: req.ClientOrderID,
		Account:       req.Account,
		Instrument:    req.Instrument,
		Side:          req.Side,
		Type:          req.Type,
		TimeInForce:   req.TimeInForce,
		Price:         req.Price,
		Quantity:      req.Quantity,
		Filled:        decimal.Zero,
		Remaining:     req.Quantity,
		Status:        OrderStatusPendingNew,
		Created:       now,
		Updated:       now,
	}
	con.orders[req.ClientOrderID] = &orderState{
		snap:       snap,
		seenTrades: make(map[string]struct{}),
	}
	return snap, nil
}

func (con *ordersContainer) get(id ClientOrderID) (OrderSnapshot, bool) {
	st, ok := con.orders[id]
	if !ok {
		return OrderSnapshot{}, false
	}
	return st.snap, true
}

// open returns copies of every non-terminal order.
func (con *ordersContainer) open() map[ClientOrderID]OrderSnapshot {
	result := make(map[ClientOrderID]OrderSnapshot)
	for id, st := range con.orders {
		if !st.snap.Status.IsTerminal() {
			result[id] = st.snap
		}
	}
	return result
}

// replaceAll installs a full venue resync, keeping terminal local state so
// idempotence survives the swap.
func (con *ordersContainer) replaceAll(orders []OrderSnapshot) {
	fresh := make(map[ClientOrderID]*orderState, len(orders))
	for i := range orders {
		snap := orders[i]
		seen := make(map[string]struct{})
		if prev, ok := con.orders[snap.ClientOrderID]; ok {
			seen = prev.seenTrades
		}
		fresh[snap.ClientOrderID] = &orderState{snap: snap, seenTrades: seen}
	}
	for id, st := range con.orders {
		if _, ok := fresh[id]; !ok && st.snap.Status.IsTerminal() {
			fresh[id] = st
		}
	}
	con.orders = fresh
}

// allowedTransition encodes the lifecycle graph. Terminal states are sinks
// and an order never regresses to an earlier phase; out-of-order delivery may
// legitimately skip Accepted (fill or cancel confirmation arriving first).
func allowedTransition(from, to OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case OrderStatusPendingNew:
		return false
	case OrderStatusAccepted:
		return from == OrderStatusPendingNew
	case OrderStatusPartiallyFilled:
		return from == OrderStatusPendingNew || from == OrderStatusAccepted || from == OrderStatusPartiallyFilled
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusExpired:
		return true
	case OrderStatusRejected:
		return from == OrderStatusPendingNew
	}
	return false
}

// applyUpdate folds a venue status event into the order state. It returns the
// resulting snapshot, whether anything changed, and an optional diagnostic.
func (con *ordersContainer) applyUpdate(ev OrderUpdateEvent) (OrderSnapshot, bool, *Diagnostic) {
	st, ok := con.orders[ev.ClientOrderID]
	if !ok {
		// venue knows an order we never submitted locally: adopt it, the
		// venue is the source of truth
		snap := OrderSnapshot{
			ClientOrderID: ev.ClientOrderID,
			VenueOrderID:  ev.VenueOrderID,
			Account:       ev.Account,
			Instrument:    ev.Instrument,
			Side:          ev.Side,
			Type:          ev.Type,
			TimeInForce:   ev.TimeInForce,
			Price:         ev.Price,
			Quantity:      ev.Quantity,
			Remaining:     ev.Quantity,
			Status:        ev.Status,
			LastUpdateSeq: ev.Seq,
			Created:       ev.Timestamp,
			Updated:       ev.Timestamp,
		}
		if snap.Status == OrderStatusFilled {
			snap.Filled = snap.Quantity
			snap.Remaining = decimal.Zero
		}
		con.orders[ev.ClientOrderID] = &orderState{snap: snap, seenTrades: make(map[string]struct{})}
		return snap, true, nil
	}

	if st.snap.Status.IsTerminal() {
		d := newDiagnostic(DiagTerminalUpdateIgnored, ev.Status.String()+" after "+st.snap.Status.String())
		d.Account = ev.Account
		d.ClientOrderID = ev.ClientOrderID
		return st.snap, false, &d
	}

	if ev.Seq != 0 && ev.Seq <= st.snap.LastUpdateSeq {
		return st.snap, false, nil
	}

	if ev.Status != st.snap.Status && !allowedTransition(st.snap.Status, ev.Status) {
		d := newDiagnostic(DiagMalformedEvent, "transition "+st.snap.Status.String()+" -> "+ev.Status.String()+" not permitted")
		d.Account = ev.Account
		d.ClientOrderID = ev.ClientOrderID
		return st.snap, false, &d
	}

	if st.snap.VenueOrderID == "" {
		st.snap.VenueOrderID = ev.VenueOrderID
	}
	st.snap.Status = ev.Status
	if ev.Seq > st.snap.LastUpdateSeq {
		st.snap.LastUpdateSeq = ev.Seq
	}
	st.snap.Updated = ev.Timestamp

	// explicit Filled confirmation is authoritative for the quantities too
	if ev.Status == OrderStatusFilled {
		st.snap.Filled = st.snap.Quantity
		st.snap.Remaining = decimal.Zero
	}
	return st.snap, true, nil
}

// applyTrade folds one fill. Replayed trade ids are dropped silently; an
// overrun beyond the order quantity clamps and raises a diagnostic because
// the venue is the source of truth and the mismatch points at a parsing bug,
// not a reason to crash.
func (con *ordersContainer) applyTrade(ev TradeEvent) (OrderSnapshot, bool, *Diagnostic) {
	st, ok := con.orders[ev.ClientOrderID]
	if !ok {
		d := newDiagnostic(DiagMalformedEvent, "trade "+ev.TradeID+" for unknown order")
		d.Account = ev.Account
		d.ClientOrderID = ev.ClientOrderID
		return OrderSnapshot{}, false, &d
	}

	if st.snap.Status.IsTerminal() {
		d := newDiagnostic(DiagTerminalUpdateIgnored, "trade "+ev.TradeID+" after "+st.snap.Status.String())
		d.Account = ev.Account
		d.ClientOrderID = ev.ClientOrderID
		return st.snap, false, &d
	}

	if _, seen := st.seenTrades[ev.TradeID]; seen {
		return st.snap, false, nil
	}
	st.seenTrades[ev.TradeID] = struct{}{}

	var overrun *Diagnostic
	filled := st.snap.Filled.Add(ev.Quantity)
	if filled.GreaterThan(st.snap.Quantity) {
		d := newDiagnostic(DiagQuantityOverrun, "fill "+filled.String()+" exceeds quantity "+st.snap.Quantity.String())
		d.Account = ev.Account
		d.ClientOrderID = ev.ClientOrderID
		overrun = &d
		filled = st.snap.Quantity
	}
	st.snap.Filled = filled
	st.snap.Remaining = st.snap.Quantity.Sub(filled)

	if st.snap.Filled.Equal(st.snap.Quantity) {
		st.snap.Status = OrderStatusFilled
	} else if st.snap.Status == OrderStatusPendingNew || st.snap.Status == OrderStatusAccepted {
		st.snap.Status = OrderStatusPartiallyFilled
	}
	if ev.Seq > st.snap.LastUpdateSeq {
		st.snap.LastUpdateSeq = ev.Seq
	}
	st.snap.Updated = ev.Timestamp

	return st.snap, true, overrun
}
