package execution

import "context"

// Client is the polymorphic execution facade implemented by the mock venue,
// the native callback bridge and the partial websocket variant. Every
// operation is fallible at the capability level: a variant without a
// capability returns a typed NotImplemented error instead of fabricating
// data. Operations honour ctx deadlines; on expiry the request may still be
// in flight at the venue and its late events are applied when they arrive.
type Client interface {
	// SubmitOrder registers the order locally (PendingNew) and forwards it to
	// the venue, returning the snapshot after the first acknowledgment.
	// It is never forwarded for an id whose local snapshot is terminal.
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderSnapshot, error)

	// CancelOrder requests cancellation of the referenced order. It is
	// rejected locally without a venue call when the order is already
	// terminal; otherwise the snapshot stays unchanged until the venue
	// confirms.
	CancelOrder(ctx context.Context, account AccountID, id ClientOrderID) (OrderSnapshot, error)

	// FetchOpenOrders returns copies of all non-terminal orders.
	FetchOpenOrders(ctx context.Context, account AccountID) ([]OrderSnapshot, error)

	// FetchBalances returns copies of all known balances.
	FetchBalances(ctx context.Context, account AccountID) ([]Balance, error)

	// AccountStream subscribes to versioned immutable account snapshots.
	AccountStream(account AccountID) (*Chan[Envelope[AccountSnapshot]], error)

	// TradeStream subscribes to post-deduplication fills.
	TradeStream(account AccountID) (*Chan[Trade], error)

	// Diagnostics is the advisory stream shared by all pipeline stages of
	// this client.
	Diagnostics() *Chan[Diagnostic]

	IsReady() bool
	Ready() chan bool
	Close() error
}
