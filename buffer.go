// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipeline provides the core of an asynchronous, per-connection
// handler pipeline: a doubly-linked chain of user-supplied stages that
// cooperatively process inbound bytes/messages arriving from a transport and
// outbound bytes/messages travelling back out, plus the index-based mutable
// Buffer abstraction the stages read and write.
//
// Semantics and design:
//   - The pipeline sequences inbound and outbound events through a linear,
//     dynamically-editable chain of HandlerContext nodes (pipeline.go,
//     context.go).
//   - Adjacent contexts pinned to different Executors exchange data only
//     through a Bridge (bridge.go); a context never reaches into a
//     neighboring context's local buffer directly.
//   - Buffer (this file and buffer_views.go) is a small set of variants —
//     heap, external, slice, duplicate, the empty singleton — behind one
//     interface, in the spirit of flat option/variant structs rather than a
//     deep class hierarchy.
//   - Non-blocking first: code.hybscloud.com/iox's ErrWouldBlock (as
//     re-exported by lfq) is used as a control-flow signal on the bridge
//     exchange queue, as the teacher's framer package uses it on its
//     transports.
//
// No wire format is defined by this package; codecs layered above define
// framing.
package pipeline

import (
	"encoding/binary"
	"io"
)

// Buffer is an owning-or-viewing container of bytes with reader/writer
// cursors satisfying 0 <= ReaderIndex() <= WriterIndex() <= Capacity().
//
// Implementations: a growable heap-backed buffer, a fixed external view over
// memory the caller owns, a slice (independent indices over a window) and a
// duplicate (independent indices over the whole range). See buffer_views.go.
type Buffer interface {
	// Capacity returns the total addressable bytes. Heap buffers may grow;
	// external and view buffers never do.
	Capacity() int
	ReaderIndex() int
	WriterIndex() int
	// SetIndex repositions both cursors atomically, enforcing
	// 0 <= r <= w <= Capacity().
	SetIndex(r, w int) error
	ReadableBytes() int
	WritableBytes() int
	ByteOrder() binary.ByteOrder

	// Absolute accessors never move a cursor. Get* requires index+size <=
	// WriterIndex(); Set* requires index+size <= Capacity(), growing a
	// dynamic buffer if needed.
	GetByte(index int) (byte, error)
	SetByte(index int, v byte) error
	GetUint16(index int) (uint16, error)
	SetUint16(index int, v uint16) error
	GetInt16(index int) (int16, error)
	SetInt16(index int, v int16) error
	GetUint32(index int) (uint32, error)
	SetUint32(index int, v uint32) error
	GetInt32(index int) (int32, error)
	SetInt32(index int, v int32) error
	GetUint64(index int) (uint64, error)
	SetUint64(index int, v uint64) error
	GetInt64(index int) (int64, error)
	SetInt64(index int, v int64) error

	// Relative accessors advance the corresponding cursor.
	ReadByte() (byte, error)
	WriteByte(v byte) error
	ReadUint16() (uint16, error)
	WriteUint16(v uint16) error
	ReadInt16() (int16, error)
	WriteInt16(v int16) error
	ReadUint32() (uint32, error)
	WriteUint32(v uint32) error
	ReadInt32() (int32, error)
	WriteInt32(v int32) error
	ReadUint64() (uint64, error)
	WriteUint64(v uint64) error
	ReadInt64() (int64, error)
	WriteInt64(v int64) error

	// Bulk transfers.
	GetBytes(index int, dst []byte) (int, error)
	SetBytes(index int, src []byte) (int, error)
	ReadBytes(dst []byte) (int, error)
	WriteBytes(src []byte) (int, error)
	// SetBytesFrom reads up to length bytes from r into the buffer at index
	// without moving any cursor. Per open question (b) in spec.md §9: if r
	// returns fewer bytes than requested, SetBytesFrom writes exactly the
	// returned count, advances nothing else, and returns that count.
	SetBytesFrom(index int, r io.Reader, length int) (int, error)
	// GetBytesTo writes up to length readable bytes starting at index to w,
	// honoring io.Writer's own capacity: it writes at most the amount w
	// accepts in one Write call and returns the actual count written.
	GetBytesTo(index int, w io.Writer, length int) (int, error)
	// GetBytesToBuffer copies length bytes starting at index into dst,
	// advancing dst's writer index (see DESIGN.md open question (a)).
	GetBytesToBuffer(index int, dst Buffer, length int) (int, error)
	// WriteTo drains all readable bytes to w, advancing ReaderIndex as it goes.
	WriteTo(w io.Writer) (int64, error)
	// ReadFrom appends to the buffer from r until r returns an error,
	// growing a dynamic buffer as needed.
	ReadFrom(r io.Reader) (int64, error)

	// Slice returns a view sharing storage over [index, index+length) with
	// its own indices initialized to (0, length). A zero-length slice
	// returns the canonical empty buffer; slicing the full capacity is
	// indistinguishable from a duplicate with indices (0, capacity).
	Slice(index, length int) (Buffer, error)
	// Duplicate returns a view sharing storage over the whole range, with
	// indices copied from this buffer at the time of the call and
	// thereafter independent of it.
	Duplicate() Buffer
	// Copy returns a new, owning buffer holding a copy of [index, index+length).
	Copy(index, length int) (Buffer, error)

	// DiscardReadBytes moves [ReaderIndex(), WriterIndex()) to offset 0,
	// setting ReaderIndex to 0 and decreasing WriterIndex by the discarded count.
	DiscardReadBytes()

	// HasArray reports whether Array/ArrayOffset are usable; false for
	// external (direct) buffers.
	HasArray() bool
	Array() ([]byte, error)
	ArrayOffset() (int, error)
	// NioBuffer exposes a shared-memory window [index, index+length) for
	// scatter/gather style interop. The returned slice aliases the buffer's
	// storage; mutating it mutates the buffer.
	NioBuffer(index, length int) ([]byte, error)
}

// Empty returns the canonical, immutable, zero-capacity Buffer singleton.
// It is initialize-once, read-only thereafter — the only other process-wide
// state the core implies besides the loopback-interface cache a concrete
// transport would keep (spec.md §9).
func Empty() Buffer { return emptySingleton }

// NewHeapBuffer returns a growable buffer backed by the configured
// BufferFactory (DefaultBufferFactory unless WithBufferFactory is supplied),
// with capacity rounded up to the factory's nearest tier.
func NewHeapBuffer(capacity int, opts ...BufferOption) Buffer {
	o := defaultBufferOptions
	for _, fn := range opts {
		fn(&o)
	}
	data := o.Factory.NewBuffer(capacity)
	return &byteBuffer{data: data, order: o.ByteOrder, dynamic: true, factory: o.Factory, arrayOK: true}
}

// NewExternalBuffer wraps externally-owned memory as a fixed-capacity view.
// Writes that would exceed len(data) fail with a BoundsError rather than
// reallocating — external buffers are never dynamic.
func NewExternalBuffer(data []byte, opts ...BufferOption) Buffer {
	o := defaultBufferOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &byteBuffer{data: data, order: o.ByteOrder, dynamic: false, arrayOK: false}
}
