package execution

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FillPolicy controls how the mock venue fills accepted orders.
type FillPolicy uint8

const (
	FillPolicyFull    FillPolicy = iota // one fill for the whole quantity at the request price
	FillPolicyPartial                   // quantity split over PartialSteps fills
	FillPolicyNone                      // accepted and left resting

	fillPolicyFullStr    = "full"
	fillPolicyPartialStr = "partial"
	fillPolicyNoneStr    = "none"
)

func (fp FillPolicy) String() string {
	switch fp {
	case FillPolicyFull:
		return fillPolicyFullStr
	case FillPolicyPartial:
		return fillPolicyPartialStr
	case FillPolicyNone:
		return fillPolicyNoneStr
	}
	panic("invalid fill policy string conversion" + strconv.Itoa(int(fp)))
}

func FillPolicyStrToType(value string) (FillPolicy, error) {
	switch value {
	case fillPolicyFullStr:
		return FillPolicyFull, nil
	case fillPolicyPartialStr:
		return FillPolicyPartial, nil
	case fillPolicyNoneStr:
		return FillPolicyNone, nil
	}
	return 0, errors.New("unsupported fill policy: " + value)
}

// MockConfig tunes the simulated venue. The zero value is a deterministic
// immediate full-fill venue with no rejects.
type MockConfig struct {
	Fill           FillPolicy
	PartialSteps   int           // fills per order under FillPolicyPartial
	Latency        time.Duration // synthetic delay before each venue event
	RejectEvery    int           // every Nth submit is rejected; 0 disables
	ReferencePrice decimal.Decimal
	Balances       map[string]decimal.Decimal // asset -> total, seeded per account
}

func (c *MockConfig) setDefaults() {
	if c.PartialSteps <= 0 {
		c.PartialSteps = 2
	}
	if !c.ReferencePrice.IsPositive() {
		c.ReferencePrice = decimal.NewFromInt(100)
	}
}

type mockAccount struct {
	rec *Reconciler
}

// MockClient is a deterministic simulated venue. It produces the same event
// shapes a real bridge would and feeds them through the same reconciler, so
// strategy code observes an identical state-machine contract against mock and
// native variants.
type MockClient struct {
	logger *zap.Logger
	cfg    MockConfig
	diags  *Chan[Diagnostic]
	calls  *callTable

	mu       sync.Mutex
	accounts map[AccountID]*mockAccount

	ctx    context.Context
	cancel context.CancelFunc

	isReady     uint32
	ready       chan bool
	submitCount uint64
	venueSeq    uint64
	venueOrder  uint64
	tradeSeq    uint64
}

func NewMockClient(logger *zap.Logger, cfg MockConfig) *MockClient {
	cfg.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	m := &MockClient{
		logger:   logger,
		cfg:      cfg,
		diags:    NewChan[Diagnostic]("mock_diags", 256, OverflowDropOldest),
		calls:    newCallTable(),
		accounts: make(map[AccountID]*mockAccount),
		ctx:      ctx,
		cancel:   cancel,
		ready:    make(chan bool, 2),
	}
	logger.Info("mock: created", zap.String("fill", cfg.Fill.String()))
	return m
}

func (m *MockClient) account(id AccountID) *mockAccount {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if ok {
		return acc
	}

	rec := NewReconciler(m.logger, id, m.diags)
	rec.SetOrderHook(m.calls.resolveOrder)
	rec.SetSnapshotHook(func(uint64) { m.calls.resolveSync(id) })
	acc = &mockAccount{rec: rec}
	m.accounts[id] = acc
	go rec.Run(m.ctx)

	if len(m.cfg.Balances) > 0 {
		balances := make([]Balance, 0, len(m.cfg.Balances))
		for asset, total := range m.cfg.Balances {
			balances = append(balances, Balance{Asset: asset, Total: total, Available: total})
		}
		rec.Apply(SnapshotEvent{
			Account:   id,
			Seq:       m.nextSeq(),
			Timestamp: time.Now().UTC(),
			Balances:  balances,
		})
	}
	return acc
}

func (m *MockClient) nextSeq() uint64 {
	return atomic.AddUint64(&m.venueSeq, 1)
}

// SetupFixtures seeds two well-known accounts: one with a set of resting
// orders covering every type/side combination, one empty.
func (m *MockClient) SetupFixtures() {
	k := 0
	created := time.UnixMilli(1564755682000).UTC()
	instrument := InstrumentID{Exchange: "MOCK", Symbol: "BTCUSD"}
	orders := make([]OrderSnapshot, 0)
	for _, oType := range []OrderType{OrderTypeMarket, OrderTypeLimit, OrderTypeStopMarket, OrderTypeStopLimit} {
		for _, oSide := range []OrderSide{OrderSideSell, OrderSideBuy} {
			k++
			orders = append(orders, OrderSnapshot{
				ClientOrderID: ClientOrderIDGenerateFast(k),
				VenueOrderID:  "M" + strconv.FormatUint(atomic.AddUint64(&m.venueOrder, 1), 10),
				Account:       "fixtures",
				Instrument:    instrument,
				Side:          oSide,
				Type:          oType,
				TimeInForce:   OrderTimeInForceGTC,
				Price:         decimal.RequireFromString("10525.20"),
				Quantity:      decimal.NewFromInt(100),
				Remaining:     decimal.NewFromInt(100),
				Status:        OrderStatusAccepted,
				Created:       created,
				Updated:       created,
			})
		}
	}
	m.logger.Info("mock: setup fixtures", zap.Int("orders", k))
	m.account("fixtures").rec.Apply(SnapshotEvent{
		Account:   "fixtures",
		Seq:       m.nextSeq(),
		Timestamp: created,
		Orders:    orders,
	})
	m.account("empty")
}

// Push injects a scripted venue event, bypassing the fill policy. Scenario
// tests use it to replay exact event sequences.
func (m *MockClient) Push(account AccountID, ev AccountEvent) error {
	return m.account(account).rec.Inbox().Send(ev)
}

func (m *MockClient) SubmitOrder(ctx context.Context, req OrderRequest) (OrderSnapshot, error) {
	if err := req.Validate(); err != nil {
		return OrderSnapshot{}, err
	}
	acc := m.account(req.Account)

	snap, err := acc.rec.SubmitLocal(req)
	if err != nil {
		return OrderSnapshot{}, err
	}

	call := createCall("mock", "submit")
	key := callKey{account: req.Account, id: req.ClientOrderID}
	if !m.calls.registerSubmit(key, call) {
		return snap, ErrDuplicateClient
	}
	defer m.calls.dropSubmit(key)

	go m.respond(acc, req)

	return waitCall(ctx, call)
}

// respond plays the venue side of one submitted order.
func (m *MockClient) respond(acc *mockAccount, req OrderRequest) {
	m.sleep()

	n := atomic.AddUint64(&m.submitCount, 1)
	if m.cfg.RejectEvery > 0 && n%uint64(m.cfg.RejectEvery) == 0 {
		m.pushUpdate(acc, req, OrderStatusRejected, "", orderRejectExceedsLimit)
		return
	}

	venueID := "M" + strconv.FormatUint(atomic.AddUint64(&m.venueOrder, 1), 10)
	m.pushUpdate(acc, req, OrderStatusAccepted, venueID, "")

	price := req.Price
	if !price.IsPositive() {
		price = m.cfg.ReferencePrice
	}

	switch m.cfg.Fill {
	case FillPolicyFull:
		m.pushFill(acc, req, price, req.Quantity)
	case FillPolicyPartial:
		steps := int64(m.cfg.PartialSteps)
		part := req.Quantity.DivRound(decimal.NewFromInt(steps), 8)
		rest := req.Quantity
		for i := int64(0); i < steps && rest.IsPositive(); i++ {
			qty := part
			if i == steps-1 || qty.GreaterThan(rest) {
				qty = rest
			}
			m.sleep()
			m.pushFill(acc, req, price, qty)
			rest = rest.Sub(qty)
		}
	case FillPolicyNone:
		// resting. IOC/FOK cannot rest, the venue expires them at once.
		if req.TimeInForce == OrderTimeInForceIOC || req.TimeInForce == OrderTimeInForceFOK {
			m.sleep()
			m.pushUpdate(acc, req, OrderStatusExpired, venueID, "")
		}
	}
}

func (m *MockClient) pushUpdate(acc *mockAccount, req OrderRequest, status OrderStatus, venueID, reason string) {
	_ = acc.rec.Inbox().Send(OrderUpdateEvent{
		Account:       req.Account,
		Seq:           m.nextSeq(),
		Timestamp:     time.Now().UTC(),
		ClientOrderID: req.ClientOrderID,
		VenueOrderID:  venueID,
		Instrument:    req.Instrument,
		Side:          req.Side,
		Type:          req.Type,
		TimeInForce:   req.TimeInForce,
		Status:        status,
		Price:         req.Price,
		Quantity:      req.Quantity,
		Reason:        reason,
	})
}

func (m *MockClient) pushFill(acc *mockAccount, req OrderRequest, price, qty decimal.Decimal) {
	_ = acc.rec.Inbox().Send(TradeEvent{
		Account:       req.Account,
		Seq:           m.nextSeq(),
		Timestamp:     time.Now().UTC(),
		TradeID:       "T" + strconv.FormatUint(atomic.AddUint64(&m.tradeSeq, 1), 10),
		ClientOrderID: req.ClientOrderID,
		Instrument:    req.Instrument,
		Side:          req.Side,
		Price:         price,
		Quantity:      qty,
	})
}

func (m *MockClient) sleep() {
	if m.cfg.Latency > 0 {
		time.Sleep(m.cfg.Latency)
	}
}

func (m *MockClient) CancelOrder(ctx context.Context, account AccountID, id ClientOrderID) (OrderSnapshot, error) {
	acc := m.account(account)

	// Register before reading the snapshot so an order going terminal in
	// between settles the call instead of leaving the caller to time out.
	call := createCall("mock", "cancel")
	key := callKey{account: account, id: id}
	m.calls.registerCancel(key, call)
	defer m.calls.dropCancel(key, call)

	snap, ok := acc.rec.Order(id)
	if !ok {
		return OrderSnapshot{}, ErrOrderNotFound
	}
	if snap.Status.IsTerminal() {
		// rejected locally, the venue is not called
		return snap, ErrOrderTerminal
	}

	go func() {
		m.sleep()
		current, stillThere := acc.rec.Order(id)
		if !stillThere || current.Status.IsTerminal() {
			return // the terminal event already resolved the cancel
		}
		_ = acc.rec.Inbox().Send(OrderUpdateEvent{
			Account:       account,
			Seq:           m.nextSeq(),
			Timestamp:     time.Now().UTC(),
			ClientOrderID: id,
			VenueOrderID:  current.VenueOrderID,
			Instrument:    current.Instrument,
			Side:          current.Side,
			Type:          current.Type,
			TimeInForce:   current.TimeInForce,
			Status:        OrderStatusCanceled,
			Price:         current.Price,
			Quantity:      current.Quantity,
		})
	}()

	return waitCall(ctx, call)
}

func (m *MockClient) FetchOpenOrders(ctx context.Context, account AccountID) ([]OrderSnapshot, error) {
	return m.account(account).rec.OpenOrders(), nil
}

func (m *MockClient) FetchBalances(ctx context.Context, account AccountID) ([]Balance, error) {
	return m.account(account).rec.Balances(), nil
}

func (m *MockClient) AccountStream(account AccountID) (*Chan[Envelope[AccountSnapshot]], error) {
	return m.account(account).rec.Subscribe(), nil
}

func (m *MockClient) TradeStream(account AccountID) (*Chan[Trade], error) {
	return m.account(account).rec.Trades(), nil
}

func (m *MockClient) Diagnostics() *Chan[Diagnostic] {
	return m.diags
}

func (m *MockClient) IsReady() bool {
	return atomic.LoadUint32(&m.isReady) == 1
}

func (m *MockClient) Ready() chan bool {
	return m.ready
}

func (m *MockClient) SetReady(val bool) {
	setVal := uint32(0)
	if val {
		setVal = 1
	}
	if atomic.SwapUint32(&m.isReady, setVal) != setVal {
		m.logger.Info("mock:", zap.Bool("set ready", val))
		m.ready <- val
	}
}

func (m *MockClient) Close() error {
	m.cancel()
	m.logger.Info("mock: closed")
	return nil
}
