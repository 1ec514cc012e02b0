package execution

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var diagnosticCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "execgate_diagnostics_total",
	Help: "Advisory diagnostic events by kind",
}, []string{"kind"})

func init() {
	prometheus.MustRegister(diagnosticCounters)
}

// DiagnosticKind classifies advisory pipeline events. They are observability
// signals, never control flow.
type DiagnosticKind uint8

const (
	DiagMalformedEvent DiagnosticKind = iota
	DiagQuantityOverrun
	DiagNegativeBalanceClamped
	DiagDroppedEvents
	DiagStaleSnapshot
	DiagTerminalUpdateIgnored
	DiagUnknownPayload

	diagMalformedEventStr         = "malformedEvent"
	diagQuantityOverrunStr        = "quantityOverrunDetected"
	diagNegativeBalanceClampedStr = "negativeBalanceClamped"
	diagDroppedEventsStr          = "droppedEvents"
	diagStaleSnapshotStr          = "staleSnapshot"
	diagTerminalUpdateIgnoredStr  = "terminalUpdateIgnored"
	diagUnknownPayloadStr         = "unknownPayload"
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagMalformedEvent:
		return diagMalformedEventStr
	case DiagQuantityOverrun:
		return diagQuantityOverrunStr
	case DiagNegativeBalanceClamped:
		return diagNegativeBalanceClampedStr
	case DiagDroppedEvents:
		return diagDroppedEventsStr
	case DiagStaleSnapshot:
		return diagStaleSnapshotStr
	case DiagTerminalUpdateIgnored:
		return diagTerminalUpdateIgnoredStr
	case DiagUnknownPayload:
		return diagUnknownPayloadStr
	}
	return "unknown"
}

// Diagnostic is an advisory event emitted on its own channel.
type Diagnostic struct {
	Kind          DiagnosticKind
	Account       AccountID
	ClientOrderID ClientOrderID
	Detail        string
	Count         uint64
	Timestamp     time.Time
}

func newDiagnostic(kind DiagnosticKind, detail string) Diagnostic {
	diagnosticCounters.WithLabelValues(kind.String()).Inc()
	return Diagnostic{Kind: kind, Detail: detail, Timestamp: time.Now().UTC()}
}

// emitDiagnostic pushes d without ever blocking; the diagnostics channel is
// drop-oldest so a slow consumer cannot stall the pipeline.
func emitDiagnostic(ch *Chan[Diagnostic], d Diagnostic) {
	if ch == nil {
		return
	}
	_ = ch.Send(d)
}
