package execution

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gotest.tools/assert"
)

func testOrderRequest(id int) OrderRequest {
	return OrderRequest{
		ClientOrderID: ClientOrderIDGenerateFast(id),
		Account:       "acc-1",
		Instrument:    InstrumentID{Exchange: "TEST", Symbol: "BTCUSD"},
		Side:          OrderSideBuy,
		Type:          OrderTypeLimit,
		TimeInForce:   OrderTimeInForceGTC,
		Quantity:      decimal.NewFromInt(100),
		Price:         decimal.RequireFromString("10525.20"),
	}
}

func testUpdateEvent(req OrderRequest, seq uint64, status OrderStatus) OrderUpdateEvent {
	return OrderUpdateEvent{
		Account:       req.Account,
		Seq:           seq,
		Timestamp:     time.Now().UTC(),
		ClientOrderID: req.ClientOrderID,
		VenueOrderID:  "V1",
		Instrument:    req.Instrument,
		Side:          req.Side,
		Type:          req.Type,
		TimeInForce:   req.TimeInForce,
		Status:        status,
		Price:         req.Price,
		Quantity:      req.Quantity,
	}
}

func testTradeEvent(req OrderRequest, seq uint64, tradeID string, qty int64) TradeEvent {
	return TradeEvent{
		Account:       req.Account,
		Seq:           seq,
		Timestamp:     time.Now().UTC(),
		TradeID:       tradeID,
		ClientOrderID: req.ClientOrderID,
		Instrument:    req.Instrument,
		Side:          req.Side,
		Price:         req.Price,
		Quantity:      decimal.NewFromInt(qty),
	}
}

func TestOrdersContainerSubmit(t *testing.T) {
	con := newOrdersContainer()
	req := testOrderRequest(1)

	snap, err := con.submit(req, time.Now().UTC())
	assert.NilError(t, err)
	assert.Equal(t, snap.Status, OrderStatusPendingNew)
	assert.Check(t, snap.Remaining.Equal(req.Quantity))
	assert.Check(t, snap.Filled.IsZero())

	_, err = con.submit(req, time.Now().UTC())
	assert.Equal(t, err, ErrDuplicateClient, "duplicate client order id")

	got, ok := con.get(req.ClientOrderID)
	assert.Check(t, ok)
	assert.Equal(t, got.Status, OrderStatusPendingNew)
}

func TestOrdersContainerLifecycle(t *testing.T) {
	con := newOrdersContainer()
	req := testOrderRequest(2)
	_, err := con.submit(req, time.Now().UTC())
	assert.NilError(t, err)

	snap, applied, diag := con.applyUpdate(testUpdateEvent(req, 1, OrderStatusAccepted))
	assert.Check(t, applied)
	assert.Check(t, diag == nil)
	assert.Equal(t, snap.Status, OrderStatusAccepted)
	assert.Equal(t, snap.VenueOrderID, "V1")

	snap, applied, diag = con.applyTrade(testTradeEvent(req, 2, "T1", 40))
	assert.Check(t, applied)
	assert.Check(t, diag == nil)
	assert.Equal(t, snap.Status, OrderStatusPartiallyFilled)
	assert.Check(t, snap.Filled.Equal(decimal.NewFromInt(40)))
	assert.Check(t, snap.Remaining.Equal(decimal.NewFromInt(60)))

	snap, applied, _ = con.applyTrade(testTradeEvent(req, 3, "T2", 60))
	assert.Check(t, applied)
	assert.Equal(t, snap.Status, OrderStatusFilled, "full quantity reached")
	assert.Check(t, snap.Remaining.IsZero())
}

func TestOrdersContainerCancelBeforeAck(t *testing.T) {
	con := newOrdersContainer()
	req := testOrderRequest(10)

	_, err := con.submit(req, time.Now().UTC())
	assert.NilError(t, err)

	// venue confirms the cancel without ever acknowledging the order
	snap, applied, diag := con.applyUpdate(testUpdateEvent(req, 1, OrderStatusCanceled))
	assert.Check(t, applied)
	assert.Check(t, diag == nil)
	assert.Equal(t, snap.Status, OrderStatusCanceled)
	assert.Check(t, snap.Filled.IsZero())
	assert.Check(t, snap.Remaining.Equal(req.Quantity))
}

func TestOrdersContainerTradeDedup(t *testing.T) {
	con := newOrdersContainer()
	req := testOrderRequest(3)
	_, err := con.submit(req, time.Now().UTC())
	assert.NilError(t, err)
	con.applyUpdate(testUpdateEvent(req, 1, OrderStatusAccepted))

	snap, applied, _ := con.applyTrade(testTradeEvent(req, 2, "T1", 40))
	assert.Check(t, applied)
	assert.Check(t, snap.Filled.Equal(decimal.NewFromInt(40)))

	// same trade id replayed, silent no-op
	snap, applied, diag := con.applyTrade(testTradeEvent(req, 3, "T1", 40))
	assert.Check(t, !applied)
	assert.Check(t, diag == nil)
	assert.Check(t, snap.Filled.Equal(decimal.NewFromInt(40)), "filled quantity unchanged")
}

func TestOrdersContainerOverrunClamp(t *testing.T) {
	con := newOrdersContainer()
	req := testOrderRequest(4)
	_, err := con.submit(req, time.Now().UTC())
	assert.NilError(t, err)
	con.applyUpdate(testUpdateEvent(req, 1, OrderStatusAccepted))
	con.applyTrade(testTradeEvent(req, 2, "T1", 80))

	snap, applied, diag := con.applyTrade(testTradeEvent(req, 3, "T2", 40))
	assert.Check(t, applied)
	assert.Assert(t, diag != nil, "overrun must raise a diagnostic")
	assert.Equal(t, diag.Kind, DiagQuantityOverrun)
	assert.Check(t, snap.Filled.Equal(req.Quantity), "clamped at order quantity")
	assert.Check(t, snap.Remaining.IsZero())
	assert.Equal(t, snap.Status, OrderStatusFilled)
}

func TestOrdersContainerTerminalImmutable(t *testing.T) {
	con := newOrdersContainer()
	req := testOrderRequest(5)
	_, err := con.submit(req, time.Now().UTC())
	assert.NilError(t, err)
	con.applyUpdate(testUpdateEvent(req, 1, OrderStatusAccepted))
	con.applyUpdate(testUpdateEvent(req, 2, OrderStatusCanceled))

	snap, applied, diag := con.applyUpdate(testUpdateEvent(req, 3, OrderStatusAccepted))
	assert.Check(t, !applied)
	assert.Assert(t, diag != nil)
	assert.Equal(t, diag.Kind, DiagTerminalUpdateIgnored)
	assert.Equal(t, snap.Status, OrderStatusCanceled)

	_, applied, diag = con.applyTrade(testTradeEvent(req, 4, "T9", 10))
	assert.Check(t, !applied)
	assert.Assert(t, diag != nil)
	assert.Equal(t, diag.Kind, DiagTerminalUpdateIgnored, "trade after terminal")
}

func TestOrdersContainerSeqGate(t *testing.T) {
	con := newOrdersContainer()
	req := testOrderRequest(6)
	_, err := con.submit(req, time.Now().UTC())
	assert.NilError(t, err)
	con.applyUpdate(testUpdateEvent(req, 5, OrderStatusAccepted))

	// stale sequence, silently ignored
	snap, applied, diag := con.applyUpdate(testUpdateEvent(req, 4, OrderStatusPartiallyFilled))
	assert.Check(t, !applied)
	assert.Check(t, diag == nil)
	assert.Equal(t, snap.Status, OrderStatusAccepted)
	assert.Equal(t, snap.LastUpdateSeq, uint64(5))
}

func TestOrdersContainerBadTransition(t *testing.T) {
	con := newOrdersContainer()
	req := testOrderRequest(7)
	_, err := con.submit(req, time.Now().UTC())
	assert.NilError(t, err)
	con.applyUpdate(testUpdateEvent(req, 1, OrderStatusAccepted))

	// rejected is only reachable from pendingNew
	snap, applied, diag := con.applyUpdate(testUpdateEvent(req, 2, OrderStatusRejected))
	assert.Check(t, !applied)
	assert.Assert(t, diag != nil)
	assert.Equal(t, diag.Kind, DiagMalformedEvent)
	assert.Equal(t, snap.Status, OrderStatusAccepted)
}

func TestOrdersContainerAdoptUnknown(t *testing.T) {
	con := newOrdersContainer()
	req := testOrderRequest(8)

	snap, applied, diag := con.applyUpdate(testUpdateEvent(req, 1, OrderStatusAccepted))
	assert.Check(t, applied, "venue-known order adopted")
	assert.Check(t, diag == nil)
	assert.Equal(t, snap.Status, OrderStatusAccepted)
	assert.Check(t, snap.Remaining.Equal(req.Quantity))
}

func TestOrdersContainerReplaceAll(t *testing.T) {
	con := newOrdersContainer()
	req := testOrderRequest(9)
	_, err := con.submit(req, time.Now().UTC())
	assert.NilError(t, err)
	con.applyUpdate(testUpdateEvent(req, 1, OrderStatusAccepted))
	con.applyTrade(testTradeEvent(req, 2, "T1", 40))

	resync, _ := con.get(req.ClientOrderID)
	con.replaceAll([]OrderSnapshot{resync})

	// trade memory must survive the resync or replayed fills double count
	snap, applied, _ := con.applyTrade(testTradeEvent(req, 3, "T1", 40))
	assert.Check(t, !applied, "replayed trade after resync dropped")
	assert.Check(t, snap.Filled.Equal(decimal.NewFromInt(40)))

	open := con.open()
	assert.Equal(t, len(open), 1)
}

func TestAllowedTransition(t *testing.T) {
	assert.Check(t, allowedTransition(OrderStatusPendingNew, OrderStatusAccepted))
	assert.Check(t, allowedTransition(OrderStatusPendingNew, OrderStatusRejected))
	assert.Check(t, allowedTransition(OrderStatusPendingNew, OrderStatusCanceled), "cancel before ack")
	assert.Check(t, allowedTransition(OrderStatusAccepted, OrderStatusPartiallyFilled))
	assert.Check(t, allowedTransition(OrderStatusPartiallyFilled, OrderStatusCanceled))

	assert.Check(t, !allowedTransition(OrderStatusAccepted, OrderStatusRejected))
	assert.Check(t, !allowedTransition(OrderStatusAccepted, OrderStatusPendingNew))
	assert.Check(t, !allowedTransition(OrderStatusFilled, OrderStatusCanceled))
	assert.Check(t, !allowedTransition(OrderStatusCanceled, OrderStatusAccepted))
}
