package execution

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reconciler owns the authoritative AccountSnapshot of one account and is its
// only writer. Events arrive through the inbox; the submit path creates
// PendingNew orders synchronously. Both paths serialize on the internal lock,
// and consumers only ever see immutable copies.
type Reconciler struct {
	logger  *zap.Logger
	account AccountID
	inbox   *Chan[AccountEvent]
	diags   *Chan[Diagnostic]

	mu       sync.Mutex
	orders   *ordersContainer
	balances map[string]Balance
	seq      uint64 // local snapshot sequence, bumped on every mutation
	venueSeq uint64 // last venue full-resync sequence applied
	synced   bool
	latest   Envelope[AccountSnapshot]

	subsMu sync.Mutex
	subs   []*Chan[Envelope[AccountSnapshot]]
	trades *Chan[Trade]

	onOrder func(OrderSnapshot, AccountEvent)
	onSync  func(uint64)
}

// NewReconciler creates the reconciler for one account. Diagnostics are
// shared across the owning client; the inbox blocks when full because the
// feeding router is an owned goroutine, never the foreign thread.
func NewReconciler(logger *zap.Logger, account AccountID, diags *Chan[Diagnostic]) *Reconciler {
	return &Reconciler{
		logger:   logger,
		account:  account,
		inbox:    NewChan[AccountEvent]("reconciler_"+string(account), 1024, OverflowBlock),
		diags:    diags,
		orders:   newOrdersContainer(),
		balances: make(map[string]Balance),
		trades:   NewChan[Trade]("trades_"+string(account), 1024, OverflowDropOldest),
	}
}

// Inbox is where routed venue events for this account are delivered.
func (r *Reconciler) Inbox() *Chan[AccountEvent] { return r.inbox }

// Trades is the post-deduplication fill stream for analytics consumers.
func (r *Reconciler) Trades() *Chan[Trade] { return r.trades }

// SetOrderHook installs the per-order resolution hook used by clients to
// complete pending submit/cancel calls. Must be set before Run.
func (r *Reconciler) SetOrderHook(h func(OrderSnapshot, AccountEvent)) { r.onOrder = h }

// SetSnapshotHook installs the full-resync hook. Must be set before Run.
func (r *Reconciler) SetSnapshotHook(h func(uint64)) { r.onSync = h }

// Run consumes the inbox until ctx is done. It is the single event-apply
// loop for this account.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("reconciler: started", zap.String("account", string(r.account)))
	for {
		ev, err := r.inbox.Recv(ctx)
		if err != nil {
			// Wakes producers blocked on a full inbox so shutdown cannot
			// park them forever.
			r.inbox.Close()
			r.logger.Info("reconciler: stopped", zap.String("account", string(r.account)), zap.Error(err))
			return
		}
		r.Apply(ev)
	}
}

// Apply folds one event into account state and, when anything changed,
// publishes a fresh immutable snapshot copy to all subscribers.
func (r *Reconciler) Apply(ev AccountEvent) {
	var (
		changed  bool
		hookSnap *OrderSnapshot
		syncSeq  uint64
		synced   bool
	)

	r.mu.Lock()
	switch e := ev.(type) {
	case SnapshotEvent:
		if e.Seq <= r.venueSeq {
			d := newDiagnostic(DiagStaleSnapshot, "resync discarded")
			d.Account = r.account
			d.Count = e.Seq
			emitDiagnostic(r.diags, d)
			break
		}
		r.venueSeq = e.Seq
		r.synced = true
		r.balances = make(map[string]Balance, len(e.Balances))
		for _, b := range e.Balances {
			r.balances[b.Asset] = b
		}
		r.orders.replaceAll(e.Orders)
		changed = true
		synced = true
		syncSeq = e.Seq

	case OrderUpdateEvent:
		snap, applied, diag := r.orders.applyUpdate(e)
		if diag != nil {
			emitDiagnostic(r.diags, *diag)
		}
		if applied {
			changed = true
			hookSnap = &snap
		}

	case TradeEvent:
		snap, applied, diag := r.orders.applyTrade(e)
		if diag != nil {
			emitDiagnostic(r.diags, *diag)
		}
		if applied {
			changed = true
			hookSnap = &snap
			_ = r.trades.Send(Trade{
				TradeID:       e.TradeID,
				ClientOrderID: e.ClientOrderID,
				Account:       e.Account,
				Instrument:    e.Instrument,
				Side:          e.Side,
				Price:         e.Price,
				Quantity:      e.Quantity,
				Fee:           e.Fee,
				FeeAsset:      e.FeeAsset,
				Timestamp:     e.Timestamp,
			})
		}

	case BalanceUpdateEvent:
		b := r.balances[e.Asset]
		b.Asset = e.Asset
		b.Available = b.Available.Add(e.Delta)
		if b.Available.IsNegative() {
			d := newDiagnostic(DiagNegativeBalanceClamped, e.Asset+" available "+b.Available.String())
			d.Account = r.account
			emitDiagnostic(r.diags, d)
			b.Available = decimal.Zero
		}
		b.Total = b.Available.Add(b.Locked)
		r.balances[e.Asset] = b
		changed = true

	default:
		r.logger.Error("reconciler: unexpected event", zap.String("kind", ev.EventKind().String()))
		emitDiagnostic(r.diags, newDiagnostic(DiagUnknownPayload, ev.EventKind().String()))
	}

	if changed {
		r.publishLocked()
	}
	r.mu.Unlock()

	if hookSnap != nil && r.onOrder != nil {
		r.onOrder(*hookSnap, ev)
	}
	if synced && r.onSync != nil {
		r.onSync(syncSeq)
	}
}

// SubmitLocal registers the PendingNew snapshot atomically with request
// submission, before the venue sees anything.
func (r *Reconciler) SubmitLocal(req OrderRequest) (OrderSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, err := r.orders.submit(req, time.Now().UTC())
	if err != nil {
		return OrderSnapshot{}, err
	}
	r.publishLocked()
	return snap, nil
}

// publishLocked bumps the snapshot sequence and fans a deep copy out to every
// subscriber. Caller holds r.mu.
func (r *Reconciler) publishLocked() {
	r.seq++
	snap := AccountSnapshot{
		Account:    r.account,
		Seq:        r.seq,
		Balances:   make(map[string]Balance, len(r.balances)),
		OpenOrders: r.orders.open(),
	}
	for asset, b := range r.balances {
		snap.Balances[asset] = b
	}
	r.latest = newEnvelope(r.seq, snap)

	r.subsMu.Lock()
	subs := make([]*Chan[Envelope[AccountSnapshot]], len(r.subs))
	copy(subs, r.subs)
	r.subsMu.Unlock()

	for _, sub := range subs {
		_ = sub.Send(newEnvelope(r.seq, snap.Clone()))
	}
}

// Subscribe returns a drop-oldest stream of snapshot envelopes. A slow
// subscriber loses intermediate snapshots, never the latest state for long.
func (r *Reconciler) Subscribe() *Chan[Envelope[AccountSnapshot]] {
	sub := NewChan[Envelope[AccountSnapshot]]("snapshots_"+string(r.account), 16, OverflowDropOldest)
	r.subsMu.Lock()
	r.subs = append(r.subs, sub)
	r.subsMu.Unlock()
	return sub
}

// Snapshot returns the latest published envelope.
func (r *Reconciler) Snapshot() Envelope[AccountSnapshot] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest.Seq == 0 {
		return newEnvelope(0, AccountSnapshot{
			Account:    r.account,
			Balances:   map[string]Balance{},
			OpenOrders: map[ClientOrderID]OrderSnapshot{},
		})
	}
	return Envelope[AccountSnapshot]{
		Seq:       r.latest.Seq,
		Timestamp: r.latest.Timestamp,
		Payload:   r.latest.Payload.Clone(),
	}
}

// Order returns the last known snapshot for id, terminal states included.
func (r *Reconciler) Order(id ClientOrderID) (OrderSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders.get(id)
}

// OpenOrders returns copies of all non-terminal orders.
func (r *Reconciler) OpenOrders() []OrderSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	open := r.orders.open()
	result := make([]OrderSnapshot, 0, len(open))
	for _, snap := range open {
		result = append(result, snap)
	}
	return result
}

// Balances returns copies of all tracked balances.
func (r *Reconciler) Balances() []Balance {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]Balance, 0, len(r.balances))
	for _, b := range r.balances {
		result = append(result, b)
	}
	return result
}

// Synced reports whether a venue full resync was applied since start.
func (r *Reconciler) Synced() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.synced
}
