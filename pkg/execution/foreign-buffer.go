package execution

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var bufferDoubleRelease = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "execgate_foreign_buffer_double_release_total",
	Help: "Redundant releases of foreign-owned buffers, absorbed",
})

func init() {
	prometheus.MustRegister(bufferDoubleRelease)
}

// ForeignBuffer wraps a venue-owned memory region crossing the foreign
// boundary. The bridge owns it for the duration of one parse call and must
// release it exactly once via the venue's designated free operation, on every
// exit path, and never retain it past the callback's synchronous extent.
type ForeignBuffer struct {
	free     func()
	released uint32
}

func NewForeignBuffer(free func()) *ForeignBuffer {
	return &ForeignBuffer{free: free}
}

// Release invokes the venue free operation. The first call wins; redundant
// calls are absorbed and counted instead of corrupting the foreign heap.
func (b *ForeignBuffer) Release() {
	if b == nil {
		return
	}
	if !atomic.CompareAndSwapUint32(&b.released, 0, 1) {
		bufferDoubleRelease.Inc()
		return
	}
	if b.free != nil {
		b.free()
	}
}

// Released reports whether the buffer was already returned to the venue.
func (b *ForeignBuffer) Released() bool {
	return atomic.LoadUint32(&b.released) == 1
}
