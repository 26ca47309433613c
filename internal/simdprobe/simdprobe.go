// Package simdprobe computes a process-wide, immutable capability bitset
// once, on first use, mirroring a one-shot SIMD capability probe. The
// bitset is derived from runtime.GOARCH alone; the CPU itself is not
// queried. The L1 kernel in pkg/metric reads it to pick a wide (unrolled)
// or scalar loop body, not to emit actual vector instructions.
package simdprobe

import (
	"runtime"
	"sync"
)

// Capabilities is an immutable snapshot of the lane widths this process may
// exploit with an unrolled loop body.
type Capabilities struct {
	SSE    bool
	SSE2   bool
	AVX    bool
	AVX2   bool
	AVX512 bool
}

// WideLanes returns the widest unrolled-loop lane count this snapshot
// supports; pkg/metric uses it to pick between a wide and a scalar kernel
// body.
func (c Capabilities) WideLanes() int {
	switch {
	case c.AVX512:
		return 16
	case c.AVX2, c.AVX:
		return 8
	case c.SSE2, c.SSE:
		return 4
	default:
		return 1
	}
}

var (
	once  sync.Once
	snap  Capabilities
)

// Probe returns the process-wide capability snapshot, computing it on first
// call and reusing it thereafter.
func Probe() Capabilities {
	once.Do(func() {
		snap = detect()
	})
	return snap
}

// detect has no access to cpuid from the standard library alone, so it
// decides by architecture: on amd64 it reports SSE through AVX2 without
// checking that the processor has them, and on every other architecture,
// arm64 included, it reports no capability, which selects the scalar loop.
func detect() Capabilities {
	switch runtime.GOARCH {
	case "amd64":
		return Capabilities{SSE: true, SSE2: true, AVX: true, AVX2: true}
	case "arm64":
		return Capabilities{SSE: false, SSE2: false}
	default:
		return Capabilities{}
	}
}
