package execution

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind identifies the shape of an AccountEvent.
type EventKind uint8

const (
	EventOrderUpdate EventKind = iota
	EventTrade
	EventBalanceUpdate
	EventSnapshot

	eventOrderUpdateStr   = "orderUpdate"
	eventTradeStr         = "trade"
	eventBalanceUpdateStr = "balanceUpdate"
	eventSnapshotStr      = "snapshot"
)

func (k EventKind) String() string {
	switch k {
	case EventOrderUpdate:
		return eventOrderUpdateStr
	case EventTrade:
		return eventTradeStr
	case EventBalanceUpdate:
		return eventBalanceUpdateStr
	case EventSnapshot:
		return eventSnapshotStr
	}
	return "unknown"
}

// AccountEvent is the normalized internal event produced by the bridge or a
// simulated venue and consumed by the account reconciler. Sequence is the
// venue-assigned order; zero means the venue provided none and arrival order
// applies with trade de-duplication.
type AccountEvent interface {
	EventKind() EventKind
	AccountID() AccountID
	Sequence() uint64
}

// OrderUpdateEvent carries a status transition for one order.
type OrderUpdateEvent struct {
	Account       AccountID
	Seq           uint64
	Timestamp     time.Time
	ClientOrderID ClientOrderID
	VenueOrderID  string
	Instrument    InstrumentID
	Side          OrderSide
	Type          OrderType
	TimeInForce   OrderTimeInForce
	Status        OrderStatus
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	Reason        string // reject reason code, empty otherwise
}

func (e OrderUpdateEvent) EventKind() EventKind { return EventOrderUpdate }
func (e OrderUpdateEvent) AccountID() AccountID { return e.Account }
func (e OrderUpdateEvent) Sequence() uint64     { return e.Seq }

// TradeEvent carries one fill. TradeID is the venue-unique de-duplication key.
type TradeEvent struct {
	Account       AccountID
	Seq           uint64
	Timestamp     time.Time
	TradeID       string
	ClientOrderID ClientOrderID
	Instrument    InstrumentID
	Side          OrderSide
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	Fee           decimal.Decimal
	FeeAsset      string
}

func (e TradeEvent) EventKind() EventKind { return EventTrade }
func (e TradeEvent) AccountID() AccountID { return e.Account }
func (e TradeEvent) Sequence() uint64     { return e.Seq }

// BalanceUpdateEvent is a settlement delta applied against available funds.
type BalanceUpdateEvent struct {
	Account   AccountID
	Seq       uint64
	Timestamp time.Time
	Asset     string
	Delta     decimal.Decimal
}

func (e BalanceUpdateEvent) EventKind() EventKind { return EventBalanceUpdate }
func (e BalanceUpdateEvent) AccountID() AccountID { return e.Account }
func (e BalanceUpdateEvent) Sequence() uint64     { return e.Seq }

// SnapshotEvent is a full resync from the venue, used after reconnect when
// local state is presumed divergent. It wholesale-replaces balances and open
// orders and only ever moves the account sequence forward.
type SnapshotEvent struct {
	Account   AccountID
	Seq       uint64
	Timestamp time.Time
	Balances  []Balance
	Orders    []OrderSnapshot
}

func (e SnapshotEvent) EventKind() EventKind { return EventSnapshot }
func (e SnapshotEvent) AccountID() AccountID { return e.Account }
func (e SnapshotEvent) Sequence() uint64     { return e.Seq }

// BookUpdate is a parsed depth notification. The gateway does not interpret
// it; it is forwarded for market-data consumers.
type BookUpdate struct {
	Instrument InstrumentID
	Side       OrderSide
	Action     string
	Price      decimal.Decimal
	Position   int
	Timestamp  time.Time
}
