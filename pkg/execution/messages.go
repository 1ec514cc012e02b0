package execution

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Wire shapes of venue notifications. The same shapes arrive from the native
// callback surface (as foreign payload bytes) and from the websocket account
// feed, so both the bridge and the websocket client decode through them.

type messageOrderUpdate struct {
	Account       string           `json:"account"`
	Seq           uint64           `json:"seq"`
	Timestamp     uint64           `json:"timestamp"`
	ClientOrderID ClientOrderID    `json:"clientOrderId"`
	VenueOrderID  string           `json:"orderId"`
	Instrument    InstrumentID     `json:"instrument"`
	Side          OrderSide        `json:"side"`
	Type          OrderType        `json:"type"`
	TimeInForce   OrderTimeInForce `json:"timeInForce"`
	Status        OrderStatus      `json:"status"`
	Price         decimal.Decimal  `json:"price"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Reason        string           `json:"reason,omitempty"`
}

func (m *messageOrderUpdate) CreateEvent() OrderUpdateEvent {
	return OrderUpdateEvent{
		Account:       AccountID(m.Account),
		Seq:           m.Seq,
		Timestamp:     time.UnixMilli(int64(m.Timestamp)).UTC(),
		ClientOrderID: m.ClientOrderID,
		VenueOrderID:  m.VenueOrderID,
		Instrument:    m.Instrument,
		Side:          m.Side,
		Type:          m.Type,
		TimeInForce:   m.TimeInForce,
		Status:        m.Status,
		Price:         m.Price,
		Quantity:      m.Quantity,
		Reason:        m.Reason,
	}
}

type messageTrade struct {
	Account       string          `json:"account"`
	Seq           uint64          `json:"seq"`
	Timestamp     uint64          `json:"timestamp"`
	TradeID       string          `json:"tradeId"`
	ClientOrderID ClientOrderID   `json:"clientOrderId"`
	Instrument    InstrumentID    `json:"instrument"`
	Side          OrderSide       `json:"side"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
	Fee           decimal.Decimal `json:"fee"`
	FeeAsset      string          `json:"feeAsset,omitempty"`
}

func (m *messageTrade) CreateEvent() TradeEvent {
	return TradeEvent{
		Account:       AccountID(m.Account),
		Seq:           m.Seq,
		Timestamp:     time.UnixMilli(int64(m.Timestamp)).UTC(),
		TradeID:       m.TradeID,
		ClientOrderID: m.ClientOrderID,
		Instrument:    m.Instrument,
		Side:          m.Side,
		Price:         m.Price,
		Quantity:      m.Quantity,
		Fee:           m.Fee,
		FeeAsset:      m.FeeAsset,
	}
}

type messageBalanceUpdate struct {
	Account   string          `json:"account"`
	Seq       uint64          `json:"seq"`
	Timestamp uint64          `json:"timestamp"`
	Asset     string          `json:"asset"`
	Delta     decimal.Decimal `json:"delta"`
}

func (m *messageBalanceUpdate) CreateEvent() BalanceUpdateEvent {
	return BalanceUpdateEvent{
		Account:   AccountID(m.Account),
		Seq:       m.Seq,
		Timestamp: time.UnixMilli(int64(m.Timestamp)).UTC(),
		Asset:     m.Asset,
		Delta:     m.Delta,
	}
}

type messageBalanceState struct {
	Asset     string          `json:"asset"`
	Total     decimal.Decimal `json:"total"`
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
}

type messageOrderState struct {
	ClientOrderID ClientOrderID    `json:"clientOrderId"`
	VenueOrderID  string           `json:"orderId"`
	Instrument    InstrumentID     `json:"instrument"`
	Side          OrderSide        `json:"side"`
	Type          OrderType        `json:"type"`
	TimeInForce   OrderTimeInForce `json:"timeInForce"`
	Status        OrderStatus      `json:"status"`
	Price         decimal.Decimal  `json:"price"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Filled        decimal.Decimal  `json:"filled"`
	Created       uint64           `json:"created"`
}

func (o *messageOrderState) CreateSnapshot(account AccountID, seq uint64) OrderSnapshot {
	created := time.UnixMilli(int64(o.Created)).UTC()
	return OrderSnapshot{
		ClientOrderID: o.ClientOrderID,
		VenueOrderID:  o.VenueOrderID,
		Account:       account,
		Instrument:    o.Instrument,
		Side:          o.Side,
		Type:          o.Type,
		TimeInForce:   o.TimeInForce,
		Price:         o.Price,
		Quantity:      o.Quantity,
		Filled:        o.Filled,
		Remaining:     o.Quantity.Sub(o.Filled),
		Status:        o.Status,
		LastUpdateSeq: seq,
		Created:       created,
		Updated:       created,
	}
}

type messageSnapshot struct {
	Account   string                `json:"account"`
	Seq       uint64                `json:"seq"`
	Timestamp uint64                `json:"timestamp"`
	Balances  []messageBalanceState `json:"balances"`
	Orders    []messageOrderState   `json:"orders"`
}

func (m *messageSnapshot) CreateEvent() SnapshotEvent {
	ev := SnapshotEvent{
		Account:   AccountID(m.Account),
		Seq:       m.Seq,
		Timestamp: time.UnixMilli(int64(m.Timestamp)).UTC(),
		Balances:  make([]Balance, 0, len(m.Balances)),
		Orders:    make([]OrderSnapshot, 0, len(m.Orders)),
	}
	for _, b := range m.Balances {
		ev.Balances = append(ev.Balances, Balance{
			Asset:     b.Asset,
			Total:     b.Total,
			Available: b.Available,
			Locked:    b.Locked,
		})
	}
	for i := range m.Orders {
		ev.Orders = append(ev.Orders, m.Orders[i].CreateSnapshot(ev.Account, m.Seq))
	}
	return ev
}

type messageStateChange struct {
	Connection string `json:"connection"`
	Result     int    `json:"result"`
}

const (
	connectionStateConnected    = "connected"
	connectionStateDisconnected = "disconnected"
)

type messageBookUpdate struct {
	Instrument InstrumentID    `json:"instrument"`
	Side       OrderSide       `json:"side"`
	Action     string          `json:"action"`
	Price      decimal.Decimal `json:"price"`
	Position   int             `json:"position"`
	Timestamp  uint64          `json:"timestamp"`
}

func (m *messageBookUpdate) CreateUpdate() BookUpdate {
	return BookUpdate{
		Instrument: m.Instrument,
		Side:       m.Side,
		Action:     m.Action,
		Price:      m.Price,
		Position:   m.Position,
		Timestamp:  time.UnixMilli(int64(m.Timestamp)).UTC(),
	}
}

// wsFrame is the websocket feed envelope: the frame type selects the wire
// shape of data.
type wsFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
