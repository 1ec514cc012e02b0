package execution

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// VenueSession is the outbound half of a native venue integration: the
// commands the gateway pushes toward the venue library. The inbound half
// arrives through Bridge entry points, on threads the venue owns. Sends must
// not wait for the venue's answer; answers come back as bridge events.
type VenueSession interface {
	SendOrder(req OrderRequest) error
	SendCancel(account AccountID, id ClientOrderID, venueOrderID string) error
	RequestSnapshot(account AccountID) error
	Close() error
}

type nativeAccount struct {
	id  AccountID
	rec *Reconciler
}

// NativeClient drives a real venue through a VenueSession and a Bridge. All
// request/response correlation runs through the call table: a request
// registers interest, the matching bridge event resolves it.
type NativeClient struct {
	logger  *zap.Logger
	bridge  *Bridge
	session VenueSession
	calls   *callTable
	diags   *Chan[Diagnostic]

	mu       sync.Mutex
	accounts map[AccountID]*nativeAccount

	ctx    context.Context
	cancel context.CancelFunc
	ready  chan bool
}

func NewNativeClient(logger *zap.Logger, bridge *Bridge, session VenueSession) *NativeClient {
	ctx, cancel := context.WithCancel(context.Background())
	c := &NativeClient{
		logger:   logger,
		bridge:   bridge,
		session:  session,
		calls:    newCallTable(),
		diags:    NewChan[Diagnostic]("native_diags", 256, OverflowDropOldest),
		accounts: make(map[AccountID]*nativeAccount),
		ctx:      ctx,
		cancel:   cancel,
		ready:    make(chan bool, 2),
	}
	go c.route()
	go c.forwardDiagnostics()
	go c.monitorSession()
	return c
}

// route fans bridge events out to per-account reconcilers. Reconciler inboxes
// block on overflow, so a single slow account applies backpressure here
// instead of losing events.
func (c *NativeClient) route() {
	for {
		ev, err := c.bridge.Events().Recv(c.ctx)
		if err != nil {
			return
		}
		acc := c.account(ev.AccountID())
		if err := acc.rec.Inbox().Send(ev); err != nil {
			return
		}
	}
}

func (c *NativeClient) forwardDiagnostics() {
	for {
		d, err := c.bridge.Diagnostics().Recv(c.ctx)
		if err != nil {
			return
		}
		emitDiagnostic(c.diags, d)
	}
}

// monitorSession reacts to venue session flips. A disconnect fails every
// blocked caller at once; a reconnect forces a resync of every known account
// since local state is presumed divergent.
func (c *NativeClient) monitorSession() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case up := <-c.bridge.Ready():
			select {
			case c.ready <- up:
				// ok
			default:
				c.logger.Error("native: ready flip discarded due to insufficient chan capacity")
			}
			if !up {
				c.calls.failAll(ErrSessionClosed)
				continue
			}
			for _, acc := range c.listAccounts() {
				if err := c.session.RequestSnapshot(acc.id); err != nil {
					c.logger.Error("native: resync request fail", zap.String("account", string(acc.id)), zap.Error(err))
				}
			}
		}
	}
}

func (c *NativeClient) listAccounts() []*nativeAccount {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*nativeAccount, 0, len(c.accounts))
	for _, acc := range c.accounts {
		out = append(out, acc)
	}
	return out
}

func (c *NativeClient) account(id AccountID) *nativeAccount {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, ok := c.accounts[id]
	if ok {
		return acc
	}
	rec := NewReconciler(c.logger, id, c.diags)
	rec.SetOrderHook(c.calls.resolveOrder)
	rec.SetSnapshotHook(func(uint64) { c.calls.resolveSync(id) })
	acc = &nativeAccount{id: id, rec: rec}
	c.accounts[id] = acc
	go rec.Run(c.ctx)
	return acc
}

func (c *NativeClient) SubmitOrder(ctx context.Context, req OrderRequest) (OrderSnapshot, error) {
	if err := req.Validate(); err != nil {
		return OrderSnapshot{}, err
	}
	if !c.bridge.IsReady() {
		return OrderSnapshot{}, connectivityError("submit", ErrSessionClosed)
	}
	acc := c.account(req.Account)

	snap, err := acc.rec.SubmitLocal(req)
	if err != nil {
		return OrderSnapshot{}, err
	}

	call := createCall("native", "submit")
	key := callKey{account: req.Account, id: req.ClientOrderID}
	if !c.calls.registerSubmit(key, call) {
		return snap, ErrDuplicateClient
	}
	defer c.calls.dropSubmit(key)

	if err := c.session.SendOrder(req); err != nil {
		return snap, connectivityError("submit", err)
	}
	return waitCall(ctx, call)
}

func (c *NativeClient) CancelOrder(ctx context.Context, account AccountID, id ClientOrderID) (OrderSnapshot, error) {
	if !c.bridge.IsReady() {
		return OrderSnapshot{}, connectivityError("cancel", ErrSessionClosed)
	}
	acc := c.account(account)

	// Register before reading the snapshot so an order going terminal in
	// between settles the call instead of leaving the caller to time out.
	call := createCall("native", "cancel")
	key := callKey{account: account, id: id}
	c.calls.registerCancel(key, call)
	defer c.calls.dropCancel(key, call)

	snap, ok := acc.rec.Order(id)
	if !ok {
		return OrderSnapshot{}, ErrOrderNotFound
	}
	if snap.Status.IsTerminal() {
		// rejected locally, the venue never sees the request
		return snap, ErrOrderTerminal
	}

	if err := c.session.SendCancel(account, id, snap.VenueOrderID); err != nil {
		return snap, connectivityError("cancel", err)
	}
	return waitCall(ctx, call)
}

// requireSync blocks until the account has applied at least one venue
// snapshot. Concurrent callers share one outstanding snapshot request.
func (c *NativeClient) requireSync(ctx context.Context, acc *nativeAccount) error {
	if acc.rec.Synced() {
		return nil
	}
	call := createCall("native", "snapshot")
	first := c.calls.registerSync(acc.id, call)
	defer c.calls.dropSync(acc.id, call)

	if first {
		if err := c.session.RequestSnapshot(acc.id); err != nil {
			return connectivityError("snapshot", err)
		}
	}
	_, err := waitCall(ctx, call)
	return err
}

func (c *NativeClient) FetchOpenOrders(ctx context.Context, account AccountID) ([]OrderSnapshot, error) {
	acc := c.account(account)
	if err := c.requireSync(ctx, acc); err != nil {
		return nil, err
	}
	return acc.rec.OpenOrders(), nil
}

func (c *NativeClient) FetchBalances(ctx context.Context, account AccountID) ([]Balance, error) {
	acc := c.account(account)
	if err := c.requireSync(ctx, acc); err != nil {
		return nil, err
	}
	return acc.rec.Balances(), nil
}

func (c *NativeClient) AccountStream(account AccountID) (*Chan[Envelope[AccountSnapshot]], error) {
	return c.account(account).rec.Subscribe(), nil
}

func (c *NativeClient) TradeStream(account AccountID) (*Chan[Trade], error) {
	return c.account(account).rec.Trades(), nil
}

func (c *NativeClient) Diagnostics() *Chan[Diagnostic] {
	return c.diags
}

// Books exposes the depth stream bridged from the venue.
func (c *NativeClient) Books() *Chan[BookUpdate] {
	return c.bridge.Books()
}

func (c *NativeClient) IsReady() bool {
	return c.bridge.IsReady()
}

func (c *NativeClient) Ready() chan bool {
	return c.ready
}

func (c *NativeClient) Close() error {
	c.cancel()
	c.calls.failAll(ErrSessionClosed)
	err := c.session.Close()
	c.logger.Info("native: closed")
	return err
}
