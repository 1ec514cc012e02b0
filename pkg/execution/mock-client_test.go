package execution_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.heather.loc/helios/execgate/pkg/execution"
	"go.uber.org/zap"
	"gotest.tools/assert"
)

func testRequest(id int) execution.OrderRequest {
	return execution.OrderRequest{
		ClientOrderID: execution.ClientOrderIDGenerateFast(id),
		Account:       "acc-1",
		Instrument:    execution.InstrumentID{Exchange: "MOCK", Symbol: "BTCUSD"},
		Side:          execution.OrderSideBuy,
		Type:          execution.OrderTypeLimit,
		TimeInForce:   execution.OrderTimeInForceGTC,
		Quantity:      decimal.NewFromInt(100),
		Price:         decimal.RequireFromString("10525.20"),
	}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestMockClientFullFill(t *testing.T) {
	client := execution.NewMockClient(zap.NewNop(), execution.MockConfig{Fill: execution.FillPolicyFull})
	defer client.Close()

	stream, err := client.AccountStream("acc-1")
	assert.NilError(t, err)
	trades, err := client.TradeStream("acc-1")
	assert.NilError(t, err)

	req := testRequest(1)
	snap, err := client.SubmitOrder(testCtx(t), req)
	assert.NilError(t, err)
	assert.Equal(t, snap.Status, execution.OrderStatusAccepted, "submit resolves on first ack")
	assert.Check(t, snap.VenueOrderID != "")

	trade, err := trades.Recv(testCtx(t))
	assert.NilError(t, err)
	assert.Check(t, trade.Quantity.Equal(req.Quantity))
	assert.Check(t, trade.Price.Equal(req.Price))

	deadline := time.Now().Add(5 * time.Second)
	for {
		env, err := stream.Recv(testCtx(t))
		assert.NilError(t, err)
		if _, open := env.Payload.OpenOrders[req.ClientOrderID]; !open {
			break // filled orders leave the open set
		}
		if time.Now().After(deadline) {
			t.Fatal("order never left the open set")
		}
	}

	final, err := client.FetchOpenOrders(testCtx(t), "acc-1")
	assert.NilError(t, err)
	assert.Equal(t, len(final), 0)
}

func TestMockClientPartialFill(t *testing.T) {
	client := execution.NewMockClient(zap.NewNop(), execution.MockConfig{
		Fill:         execution.FillPolicyPartial,
		PartialSteps: 4,
	})
	defer client.Close()

	trades, err := client.TradeStream("acc-1")
	assert.NilError(t, err)

	req := testRequest(2)
	_, err = client.SubmitOrder(testCtx(t), req)
	assert.NilError(t, err)

	total := decimal.Zero
	for i := 0; i < 4; i++ {
		trade, err := trades.Recv(testCtx(t))
		assert.NilError(t, err)
		total = total.Add(trade.Quantity)
	}
	assert.Check(t, total.Equal(req.Quantity), "partial fills sum to quantity")
}

func TestMockClientReject(t *testing.T) {
	client := execution.NewMockClient(zap.NewNop(), execution.MockConfig{RejectEvery: 1})
	defer client.Close()

	_, err := client.SubmitOrder(testCtx(t), testRequest(3))
	assert.Assert(t, err != nil)

	var execErr *execution.ExecError
	assert.Check(t, errors.As(err, &execErr))
	assert.Equal(t, execErr.Kind, execution.ErrorKindRejected)
}

func TestMockClientCancel(t *testing.T) {
	client := execution.NewMockClient(zap.NewNop(), execution.MockConfig{Fill: execution.FillPolicyNone})
	defer client.Close()

	req := testRequest(4)
	snap, err := client.SubmitOrder(testCtx(t), req)
	assert.NilError(t, err)
	assert.Equal(t, snap.Status, execution.OrderStatusAccepted)

	snap, err = client.CancelOrder(testCtx(t), "acc-1", req.ClientOrderID)
	assert.NilError(t, err)
	assert.Equal(t, snap.Status, execution.OrderStatusCanceled)

	// second cancel is a local reject, the order is already terminal
	_, err = client.CancelOrder(testCtx(t), "acc-1", req.ClientOrderID)
	assert.Equal(t, err, execution.ErrOrderTerminal)

	_, err = client.CancelOrder(testCtx(t), "acc-1", execution.ClientOrderIDGenerateFast(999))
	assert.Equal(t, err, execution.ErrOrderNotFound)
}

func TestMockClientDuplicate(t *testing.T) {
	client := execution.NewMockClient(zap.NewNop(), execution.MockConfig{Fill: execution.FillPolicyNone})
	defer client.Close()

	req := testRequest(5)
	_, err := client.SubmitOrder(testCtx(t), req)
	assert.NilError(t, err)

	_, err = client.SubmitOrder(testCtx(t), req)
	assert.Equal(t, err, execution.ErrDuplicateClient)
}

func TestMockClientValidation(t *testing.T) {
	client := execution.NewMockClient(zap.NewNop(), execution.MockConfig{})
	defer client.Close()

	req := testRequest(6)
	req.Quantity = decimal.Zero
	_, err := client.SubmitOrder(testCtx(t), req)
	assert.Equal(t, err, execution.ErrBadQuantity)

	req = testRequest(7)
	req.Price = decimal.Zero
	_, err = client.SubmitOrder(testCtx(t), req)
	assert.Equal(t, err, execution.ErrBadPrice, "limit without price")

	req = testRequest(8)
	req.Account = ""
	_, err = client.SubmitOrder(testCtx(t), req)
	assert.Equal(t, err, execution.ErrUnknownAccount)
}

func TestMockClientExpireIOC(t *testing.T) {
	client := execution.NewMockClient(zap.NewNop(), execution.MockConfig{Fill: execution.FillPolicyNone})
	defer client.Close()

	req := testRequest(9)
	req.TimeInForce = execution.OrderTimeInForceIOC
	snap, err := client.SubmitOrder(testCtx(t), req)
	assert.NilError(t, err)
	assert.Equal(t, snap.Status, execution.OrderStatusAccepted)

	// a resting IOC is expired by the venue right after the ack
	deadline := time.Now().Add(5 * time.Second)
	for {
		open, err := client.FetchOpenOrders(testCtx(t), "acc-1")
		assert.NilError(t, err)
		if len(open) == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("IOC order never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMockClientBalances(t *testing.T) {
	client := execution.NewMockClient(zap.NewNop(), execution.MockConfig{
		Balances: map[string]decimal.Decimal{"USD": decimal.NewFromInt(10000)},
	})
	defer client.Close()

	balances, err := client.FetchBalances(testCtx(t), "acc-1")
	assert.NilError(t, err)
	assert.Equal(t, len(balances), 1)
	assert.Equal(t, balances[0].Asset, "USD")
	assert.Check(t, balances[0].Available.Equal(decimal.NewFromInt(10000)))
}

func TestMockClientFixtures(t *testing.T) {
	client := execution.NewMockClient(zap.NewNop(), execution.MockConfig{})
	defer client.Close()
	client.SetupFixtures()

	open, err := client.FetchOpenOrders(testCtx(t), "fixtures")
	assert.NilError(t, err)
	assert.Equal(t, len(open), 8, "type/side matrix")

	open, err = client.FetchOpenOrders(testCtx(t), "empty")
	assert.NilError(t, err)
	assert.Equal(t, len(open), 0)
}

func TestMockClientReady(t *testing.T) {
	client := execution.NewMockClient(zap.NewNop(), execution.MockConfig{})
	defer client.Close()

	assert.Check(t, !client.IsReady())
	client.SetReady(true)
	assert.Check(t, client.IsReady())
	assert.Equal(t, <-client.Ready(), true)
	client.SetReady(true) // no flip, no signal
	client.SetReady(false)
	assert.Equal(t, <-client.Ready(), false)
}
