package execution

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

const (
	wsFrameOrderUpdate   = "orderUpdate"
	wsFrameTrade         = "trade"
	wsFrameBalanceUpdate = "balanceUpdate"
	wsFrameSnapshot      = "snapshot"
	wsFrameState         = "state"

	wsReconnectDelay = time.Second
	wsReadTimeout    = 30 * time.Second
)

// WSClient is the read-only websocket variant: it follows an account feed and
// maintains the same reconciled state as the other clients, but has no order
// entry. SubmitOrder and CancelOrder report the missing capability as a typed
// error rather than pretending to route.
type WSClient struct {
	logger *zap.Logger
	url    string
	diags  *Chan[Diagnostic]

	mu       sync.Mutex
	accounts map[AccountID]*Reconciler

	ctx     context.Context
	cancel  context.CancelFunc
	isReady uint32
	ready   chan bool
	wg      sync.WaitGroup
}

func NewWSClient(logger *zap.Logger, url string) *WSClient {
	ctx, cancel := context.WithCancel(context.Background())
	c := &WSClient{
		logger:   logger,
		url:      url,
		diags:    NewChan[Diagnostic]("ws_diags", 256, OverflowDropOldest),
		accounts: make(map[AccountID]*Reconciler),
		ctx:      ctx,
		cancel:   cancel,
		ready:    make(chan bool, 2),
	}
	c.wg.Add(1)
	go c.follow()
	return c
}

// follow dials the feed and re-dials forever on failure. Every reconnect
// leaves local state in place; the feed is expected to open with a snapshot
// frame that supersedes it.
func (c *WSClient) follow() {
	defer c.wg.Done()
	for {
		if c.ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.url, nil)
		if err != nil {
			c.logger.Error("ws: dial fail", zap.String("url", c.url), zap.Error(err))
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(wsReconnectDelay):
			}
			continue
		}
		c.setReady(true)
		c.readLoop(conn)
		c.setReady(false)
		_ = conn.Close()
	}
}

func (c *WSClient) readLoop(conn *websocket.Conn) {
	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-c.ctx.Done():
			_ = conn.Close()
		case <-closed:
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Error("ws: read fail", zap.Error(err))
			}
			return
		}
		c.handle(raw)
	}
}

func (c *WSClient) handle(raw []byte) {
	var frame wsFrame
	if err := jsoniter.Unmarshal(raw, &frame); err != nil {
		c.malformed("frame", raw, err)
		return
	}

	switch frame.Type {
	case wsFrameOrderUpdate:
		var msg messageOrderUpdate
		if err := jsoniter.Unmarshal(frame.Data, &msg); err != nil {
			c.malformed(frame.Type, frame.Data, err)
			return
		}
		c.apply(msg.CreateEvent())
	case wsFrameTrade:
		var msg messageTrade
		if err := jsoniter.Unmarshal(frame.Data, &msg); err != nil {
			c.malformed(frame.Type, frame.Data, err)
			return
		}
		c.apply(msg.CreateEvent())
	case wsFrameBalanceUpdate:
		var msg messageBalanceUpdate
		if err := jsoniter.Unmarshal(frame.Data, &msg); err != nil {
			c.malformed(frame.Type, frame.Data, err)
			return
		}
		c.apply(msg.CreateEvent())
	case wsFrameSnapshot:
		var msg messageSnapshot
		if err := jsoniter.Unmarshal(frame.Data, &msg); err != nil {
			c.malformed(frame.Type, frame.Data, err)
			return
		}
		c.apply(msg.CreateEvent())
	case wsFrameState:
		var msg messageStateChange
		if err := jsoniter.Unmarshal(frame.Data, &msg); err != nil {
			c.malformed(frame.Type, frame.Data, err)
			return
		}
		c.setReady(msg.Connection == connectionStateConnected)
	default:
		c.logger.Warn("ws: unknown frame type", zap.String("type", frame.Type))
		emitDiagnostic(c.diags, newDiagnostic(DiagUnknownPayload, "frame type "+frame.Type))
	}
}

func (c *WSClient) apply(ev AccountEvent) {
	if err := c.account(ev.AccountID()).Inbox().Send(ev); err != nil {
		return
	}
}

func (c *WSClient) malformed(kind string, raw []byte, err error) {
	c.logger.Error("ws: parse fail "+kind, zap.Error(err), zap.ByteString("payload", raw))
	emitDiagnostic(c.diags, newDiagnostic(DiagMalformedEvent, kind+": "+err.Error()))
}

func (c *WSClient) account(id AccountID) *Reconciler {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.accounts[id]
	if ok {
		return rec
	}
	rec = NewReconciler(c.logger, id, c.diags)
	c.accounts[id] = rec
	go rec.Run(c.ctx)
	return rec
}

// SubmitOrder is not available on the read-only feed.
func (c *WSClient) SubmitOrder(ctx context.Context, req OrderRequest) (OrderSnapshot, error) {
	return OrderSnapshot{}, &ExecError{Kind: ErrorKindNotImplemented, Op: "submit", Reason: "read-only feed"}
}

// CancelOrder is not available on the read-only feed.
func (c *WSClient) CancelOrder(ctx context.Context, account AccountID, id ClientOrderID) (OrderSnapshot, error) {
	return OrderSnapshot{}, &ExecError{Kind: ErrorKindNotImplemented, Op: "cancel", Reason: "read-only feed"}
}

func (c *WSClient) FetchOpenOrders(ctx context.Context, account AccountID) ([]OrderSnapshot, error) {
	return c.account(account).OpenOrders(), nil
}

func (c *WSClient) FetchBalances(ctx context.Context, account AccountID) ([]Balance, error) {
	return c.account(account).Balances(), nil
}

func (c *WSClient) AccountStream(account AccountID) (*Chan[Envelope[AccountSnapshot]], error) {
	return c.account(account).Subscribe(), nil
}

func (c *WSClient) TradeStream(account AccountID) (*Chan[Trade], error) {
	return c.account(account).Trades(), nil
}

func (c *WSClient) Diagnostics() *Chan[Diagnostic] {
	return c.diags
}

func (c *WSClient) IsReady() bool {
	return atomic.LoadUint32(&c.isReady) == 1
}

func (c *WSClient) Ready() chan bool {
	return c.ready
}

func (c *WSClient) setReady(val bool) {
	var state uint32
	if val {
		state = 1
	}
	if atomic.SwapUint32(&c.isReady, state) != state {
		c.logger.Info("ws:", zap.Bool("feed ready", val))
		select {
		case c.ready <- val:
			// ok
		default:
			c.logger.Error("ws: ready flip discarded due to insufficient chan capacity")
		}
	}
}

func (c *WSClient) Close() error {
	c.cancel()
	c.wg.Wait()
	c.logger.Info("ws: closed")
	return nil
}
