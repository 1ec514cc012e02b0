package execution

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gotest.tools/assert"
)

func wsTestServer(t *testing.T, frames []interface{}) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for _, frame := range frames {
			raw, err := jsoniter.Marshal(frame)
			if err != nil {
				t.Errorf("marshal frame: %v", err)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		}
		// keep the connection open so the client does not reconnect
		time.Sleep(5 * time.Second)
		_ = conn.Close()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsFrameOf(t *testing.T, frameType string, payload interface{}) interface{} {
	t.Helper()
	raw, err := jsoniter.Marshal(payload)
	assert.NilError(t, err)
	return map[string]interface{}{"type": frameType, "data": jsoniter.RawMessage(raw)}
}

func TestWSClientFeed(t *testing.T) {
	id := ClientOrderIDGenerateFast(21)
	frames := []interface{}{
		wsFrameOf(t, wsFrameSnapshot, &messageSnapshot{
			Account:   "acc-1",
			Seq:       1,
			Timestamp: uint64(time.Now().UnixMilli()),
			Balances: []messageBalanceState{
				{Asset: "USD", Total: decimal.NewFromInt(1000), Available: decimal.NewFromInt(1000)},
			},
			Orders: []messageOrderState{{
				ClientOrderID: id,
				VenueOrderID:  "V1",
				Instrument:    InstrumentID{Exchange: "TEST", Symbol: "BTCUSD"},
				Side:          OrderSideBuy,
				Type:          OrderTypeLimit,
				TimeInForce:   OrderTimeInForceGTC,
				Status:        OrderStatusAccepted,
				Price:         decimal.RequireFromString("10525.20"),
				Quantity:      decimal.NewFromInt(100),
			}},
		}),
		wsFrameOf(t, wsFrameTrade, &messageTrade{
			Account:       "acc-1",
			Seq:           2,
			Timestamp:     uint64(time.Now().UnixMilli()),
			TradeID:       "T1",
			ClientOrderID: id,
			Instrument:    InstrumentID{Exchange: "TEST", Symbol: "BTCUSD"},
			Side:          OrderSideBuy,
			Price:         decimal.RequireFromString("10525.20"),
			Quantity:      decimal.NewFromInt(100),
		}),
	}

	srv := wsTestServer(t, frames)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewWSClient(zap.NewNop(), url)
	defer client.Close()

	trades, err := client.TradeStream("acc-1")
	assert.NilError(t, err)
	trade, err := trades.Recv(nativeCtx(t))
	assert.NilError(t, err)
	assert.Equal(t, trade.TradeID, "T1")

	open, err := client.FetchOpenOrders(nativeCtx(t), "acc-1")
	assert.NilError(t, err)
	assert.Equal(t, len(open), 0, "trade for full quantity closes the order")

	balances, err := client.FetchBalances(nativeCtx(t), "acc-1")
	assert.NilError(t, err)
	assert.Equal(t, len(balances), 1)
	assert.Check(t, client.IsReady())
}

func TestWSClientOrderEntryNotImplemented(t *testing.T) {
	srv := wsTestServer(t, nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewWSClient(zap.NewNop(), url)
	defer client.Close()

	_, err := client.SubmitOrder(nativeCtx(t), testOrderRequest(22))
	var execErr *ExecError
	assert.Check(t, errors.As(err, &execErr))
	assert.Equal(t, execErr.Kind, ErrorKindNotImplemented)

	_, err = client.CancelOrder(nativeCtx(t), "acc-1", ClientOrderIDGenerateFast(22))
	assert.Check(t, errors.As(err, &execErr))
	assert.Equal(t, execErr.Kind, ErrorKindNotImplemented)
}

func TestWSClientUnknownFrame(t *testing.T) {
	frames := []interface{}{
		map[string]interface{}{"type": "heartbeat", "data": jsoniter.RawMessage(`{}`)},
	}
	srv := wsTestServer(t, frames)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewWSClient(zap.NewNop(), url)
	defer client.Close()

	d, err := client.Diagnostics().Recv(nativeCtx(t))
	assert.NilError(t, err)
	assert.Equal(t, d.Kind, DiagUnknownPayload)
}
