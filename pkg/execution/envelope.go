package execution

import "time"

// Envelope attaches a monotonic sequence and timestamp to a payload handed to
// subscribers. Seq is the authoritative order between two envelopes of the
// same source, not the delivery order.
type Envelope[T any] struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Payload   T         `json:"payload"`
}

func newEnvelope[T any](seq uint64, payload T) Envelope[T] {
	return Envelope[T]{Seq: seq, Timestamp: time.Now().UTC(), Payload: payload}
}
