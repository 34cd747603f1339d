// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import "code.hybscloud.com/iobuf"

// BufferFactory is the pluggable allocation strategy a dynamic Buffer grows
// through. Spec.md's Non-goals exclude "custom memory allocators" generally
// but explicitly carve out "a pluggable buffer factory" — this is that seam.
type BufferFactory interface {
	// NewBuffer returns a freshly zeroed []byte of at least capacity bytes.
	NewBuffer(capacity int) []byte
}

// plainFactory always allocates with make, the fallback for capacities
// outside the tiered pool's range or when a pool is momentarily exhausted.
type plainFactory struct{}

func (plainFactory) NewBuffer(capacity int) []byte { return make([]byte, capacity) }

// Tier selection: single source of truth mapping a requested capacity to
// the size-tier (and therefore pool) that serves it.
//
// Single source of truth — capacity → tier:
//   - <= 512 B     → Micro  — protocol frames, small messages
//   - <= 2 KiB     → Small  — typical network packets
//   - <= 8 KiB     → Medium — stream buffers, large packets
//   - <= 32 KiB    → Big    — TLS records, stream chunks
//   - above 32 KiB → no pooled tier, falls back to plainFactory
//
// Sizes follow code.hybscloud.com/iobuf's power-of-4 tier hierarchy; only
// the tiers a pipeline Buffer realistically needs are pooled here.
type tier uint8

const (
	tierMicro tier = iota
	tierSmall
	tierMedium
	tierBig
	tierNone
)

func tierFor(capacity int) tier {
	switch {
	case capacity <= 512:
		return tierMicro
	case capacity <= 2*1024:
		return tierSmall
	case capacity <= 8*1024:
		return tierMedium
	case capacity <= 32*1024:
		return tierBig
	default:
		return tierNone
	}
}

// pooledBufferFactory services NewBuffer from code.hybscloud.com/iobuf's
// lock-free bounded pools, one per tier, falling back to a plain heap
// allocation above the largest pooled tier or when a pool is exhausted.
// iox.ErrWouldBlock from Pool.Get means exactly "pool empty" and is never
// surfaced to callers — it just means "allocate normally this time."
type pooledBufferFactory struct {
	micro  *iobuf.BoundedPool[iobuf.MicroBuffer]
	small  *iobuf.BoundedPool[iobuf.SmallBuffer]
	medium *iobuf.BoundedPool[iobuf.MediumBuffer]
	big    *iobuf.BoundedPool[iobuf.BigBuffer]
}

// newPooledBufferFactory builds the default factory with a modest capacity
// per tier; a connection-heavy process can construct its own larger pools
// and install them via WithBufferFactory.
func newPooledBufferFactory() *pooledBufferFactory {
	f := &pooledBufferFactory{
		micro:  iobuf.NewMicroBufferPool(256),
		small:  iobuf.NewSmallBufferPool(256),
		medium: iobuf.NewMediumBufferPool(64),
		big:    iobuf.NewBigBufferPool(16),
	}
	f.micro.Fill(iobuf.NewMicroBuffer)
	f.small.Fill(iobuf.NewSmallBuffer)
	f.medium.Fill(iobuf.NewMediumBuffer)
	f.big.Fill(iobuf.NewBigBuffer)
	return f
}

func (f *pooledBufferFactory) NewBuffer(capacity int) []byte {
	switch tierFor(capacity) {
	case tierMicro:
		if idx, err := f.micro.Get(); err == nil {
			buf := f.micro.Value(idx)
			return buf[:]
		}
	case tierSmall:
		if idx, err := f.small.Get(); err == nil {
			buf := f.small.Value(idx)
			return buf[:]
		}
	case tierMedium:
		if idx, err := f.medium.Get(); err == nil {
			buf := f.medium.Value(idx)
			return buf[:]
		}
	case tierBig:
		if idx, err := f.big.Get(); err == nil {
			buf := f.big.Value(idx)
			return buf[:]
		}
	}
	return make([]byte, capacity)
}

// DefaultBufferFactory is the tiered, pool-backed factory NewHeapBuffer uses
// unless WithBufferFactory overrides it.
var DefaultBufferFactory BufferFactory = newPooledBufferFactory()
