package execution

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountID is an opaque venue account key.
type AccountID string

func (a AccountID) String() string { return string(a) }

// InstrumentID is an opaque exchange+symbol key. The gateway only indexes by
// it and never interprets the contents.
type InstrumentID struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
}

func (i InstrumentID) String() string { return i.Exchange + ":" + i.Symbol }

// OrderRequest is immutable once submitted. A cancel references the original
// ClientOrderID, never the request itself.
type OrderRequest struct {
	ClientOrderID ClientOrderID    `json:"clientOrderId"`
	Account       AccountID        `json:"account"`
	Instrument    InstrumentID     `json:"instrument"`
	Side          OrderSide        `json:"side"`
	Type          OrderType        `json:"type"`
	TimeInForce   OrderTimeInForce `json:"timeInForce"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Price         decimal.Decimal  `json:"price,omitempty"`
}

// Validate checks request consistency before anything is sent to a venue.
func (r *OrderRequest) Validate() error {
	if r.ClientOrderID.IsZero() {
		return ErrOrderNotFound
	}
	if r.Account == "" {
		return ErrUnknownAccount
	}
	if r.Instrument.Symbol == "" {
		return ErrUnknownInstrument
	}
	if !r.Quantity.IsPositive() {
		return ErrBadQuantity
	}
	if r.Type.RequiresPrice() && !r.Price.IsPositive() {
		return ErrBadPrice
	}
	return nil
}

// OrderSnapshot is the authoritative local view of one order's lifecycle.
// Filled is monotonically non-decreasing under increasing sequence and
// Filled+Remaining always equals Quantity.
type OrderSnapshot struct {
	ClientOrderID ClientOrderID    `json:"clientOrderId"`
	VenueOrderID  string           `json:"venueOrderId,omitempty"`
	Account       AccountID        `json:"account"`
	Instrument    InstrumentID     `json:"instrument"`
	Side          OrderSide        `json:"side"`
	Type          OrderType        `json:"type"`
	TimeInForce   OrderTimeInForce `json:"timeInForce"`
	Price         decimal.Decimal  `json:"price"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Filled        decimal.Decimal  `json:"filled"`
	Remaining     decimal.Decimal  `json:"remaining"`
	Status        OrderStatus      `json:"status"`
	LastUpdateSeq uint64           `json:"lastUpdateSeq"`
	Created       time.Time        `json:"created"`
	Updated       time.Time        `json:"updated"`
}

// Trade is an immutable fill report. TradeID is the venue-unique
// de-duplication key: replays with a seen TradeID are dropped silently.
type Trade struct {
	TradeID       string          `json:"tradeId"`
	ClientOrderID ClientOrderID   `json:"clientOrderId"`
	Account       AccountID       `json:"account"`
	Instrument    InstrumentID    `json:"instrument"`
	Side          OrderSide       `json:"side"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
	Fee           decimal.Decimal `json:"fee"`
	FeeAsset      string          `json:"feeAsset,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Balance keeps the invariant Available+Locked == Total.
type Balance struct {
	Asset     string          `json:"asset"`
	Total     decimal.Decimal `json:"total"`
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
}

// AccountSnapshot is owned exclusively by the account reconciler. Consumers
// always receive deep copies, never the live maps.
type AccountSnapshot struct {
	Account    AccountID                       `json:"account"`
	Balances   map[string]Balance              `json:"balances"`
	OpenOrders map[ClientOrderID]OrderSnapshot `json:"openOrders"`
	Seq        uint64                          `json:"seq"`
}

// Clone returns a deep copy safe to hand out to subscribers.
func (s AccountSnapshot) Clone() AccountSnapshot {
	out := AccountSnapshot{
		Account:    s.Account,
		Seq:        s.Seq,
		Balances:   make(map[string]Balance, len(s.Balances)),
		OpenOrders: make(map[ClientOrderID]OrderSnapshot, len(s.OpenOrders)),
	}
	for asset, b := range s.Balances {
		out.Balances[asset] = b
	}
	for id, o := range s.OpenOrders {
		out.OpenOrders[id] = o
	}
	return out
}
