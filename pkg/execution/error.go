package execution

// ErrorKind classifies every error returned by a Client operation.
// Connectivity errors are retryable by the caller, Rejected errors are not
// without changing the request, NotImplemented marks a capability gap of the
// concrete client variant, Internal marks a bridge or parsing defect.
type ErrorKind uint8

const (
	ErrorKindConnectivity ErrorKind = iota
	ErrorKindRejected
	ErrorKindNotImplemented
	ErrorKindInternal

	errorKindConnectivityStr   = "connectivity"
	errorKindRejectedStr       = "rejected"
	errorKindNotImplementedStr = "notImplemented"
	errorKindInternalStr       = "internal"
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindConnectivity:
		return errorKindConnectivityStr
	case ErrorKindRejected:
		return errorKindRejectedStr
	case ErrorKindNotImplemented:
		return errorKindNotImplementedStr
	case ErrorKindInternal:
		return errorKindInternalStr
	}
	return "unknown"
}

// ExecError is the typed error returned by every Client operation.
type ExecError struct {
	Kind   ErrorKind
	Op     string
	Reason string
	Err    error
}

func (e *ExecError) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry the same request unchanged.
func (e *ExecError) Retryable() bool {
	return e.Kind == ErrorKindConnectivity
}

var (
	ErrTimeout            = &ExecError{Kind: ErrorKindConnectivity, Reason: "deadline exceeded"}
	ErrSessionClosed      = &ExecError{Kind: ErrorKindConnectivity, Reason: "session closed"}
	ErrNotImplemented     = &ExecError{Kind: ErrorKindNotImplemented, Reason: "operation not supported by this client"}
	ErrDuplicateClient    = &ExecError{Kind: ErrorKindRejected, Reason: orderRejectDuplicate}
	ErrOrderNotFound      = &ExecError{Kind: ErrorKindRejected, Reason: orderRejectNotFound}
	ErrOrderTerminal      = &ExecError{Kind: ErrorKindRejected, Reason: orderRejectTerminal}
	ErrBadQuantity        = &ExecError{Kind: ErrorKindRejected, Reason: orderRejectBadQuantity}
	ErrBadPrice           = &ExecError{Kind: ErrorKindRejected, Reason: orderRejectBadPrice}
	ErrExceedsLimit       = &ExecError{Kind: ErrorKindRejected, Reason: orderRejectExceedsLimit}
	ErrTradingNotStarted  = &ExecError{Kind: ErrorKindRejected, Reason: orderRejectTradingNotStarted}
	ErrUnknownInstrument  = &ExecError{Kind: ErrorKindRejected, Reason: orderRejectUnknownSymbol}
	ErrUnknownAccount     = &ExecError{Kind: ErrorKindRejected, Reason: orderRejectUnknownAccount}
	ErrInsufficientFunds  = &ExecError{Kind: ErrorKindRejected, Reason: orderRejectInsufficientFunds}
	ErrRejectedByVenue    = &ExecError{Kind: ErrorKindRejected, Reason: "rejectedByVenue"}
	ErrInternalParse      = &ExecError{Kind: ErrorKindInternal, Reason: "payload parse failure"}
)

// nolint: varcheck, deadcode, unused
const (
	orderRejectExceedsLimit      = "orderExceedsLimit"
	orderRejectNotFound          = "orderNotFound"
	orderRejectDuplicate         = "duplicateOrder"
	orderRejectTerminal          = "orderAlreadyTerminal"
	orderRejectBadSide           = "badSide"
	orderRejectBadType           = "badType"
	orderRejectBadTimeInForce    = "badTimeInForce"
	orderRejectBadQuantity       = "badQuantity"
	orderRejectBadPrice          = "badPrice"
	orderRejectUnknownUser       = "unknownUser"
	orderRejectUnknownSymbol     = "unknownSymbol"
	orderRejectUnknownAccount    = "unknownAccount"
	orderRejectPermissionDeny    = "permissionDenied"
	orderRejectInsufficientFunds = "insufficientFunds"
	orderRejectExchangeClosed    = "exchangeClosed"
	orderRejectTradingNotStarted = "tradingNotStarted"
	orderRejectSymbolExpired     = "symbolExpired"
)

var rejectUnMapping = map[string]*ExecError{
	orderRejectDuplicate:         ErrDuplicateClient,
	orderRejectNotFound:          ErrOrderNotFound,
	orderRejectTerminal:          ErrOrderTerminal,
	orderRejectBadQuantity:       ErrBadQuantity,
	orderRejectBadPrice:          ErrBadPrice,
	orderRejectExceedsLimit:      ErrExceedsLimit,
	orderRejectTradingNotStarted: ErrTradingNotStarted,
	orderRejectUnknownSymbol:     ErrUnknownInstrument,
	orderRejectUnknownAccount:    ErrUnknownAccount,
	orderRejectInsufficientFunds: ErrInsufficientFunds,
}

// getErrorByReject maps a venue reject-reason code onto a typed error.
// Unknown codes still come back as Rejected so the caller never retries them
// blindly.
func getErrorByReject(code string) *ExecError {
	if e, ok := rejectUnMapping[code]; ok {
		return e
	}
	return &ExecError{Kind: ErrorKindRejected, Reason: code}
}

func connectivityError(op string, err error) *ExecError {
	return &ExecError{Kind: ErrorKindConnectivity, Op: op, Err: err}
}

func internalError(op string, err error) *ExecError {
	return &ExecError{Kind: ErrorKindInternal, Op: op, Err: err}
}
