// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline_test

import (
	"bytes"
	"testing"

	"code.hybscloud.com/pipeline"
)

func TestHeapBufferReadWriteRoundTrip(t *testing.T) {
	b := pipeline.NewHeapBuffer(4)
	if err := b.WriteByte(0x7f); err != nil {
		t.Fatalf("WriteByte: %v", err)
	}
	if err := b.WriteUint32(0x01020304); err != nil {
		t.Fatalf("WriteUint32: %v", err)
	}
	if got := b.ReadableBytes(); got != 5 {
		t.Fatalf("ReadableBytes = %d, want 5", got)
	}
	v, err := b.ReadByte()
	if err != nil || v != 0x7f {
		t.Fatalf("ReadByte = %d, %v, want 0x7f, nil", v, err)
	}
	u, err := b.ReadUint32()
	if err != nil || u != 0x01020304 {
		t.Fatalf("ReadUint32 = %x, %v, want 0x01020304, nil", u, err)
	}
	if got := b.ReadableBytes(); got != 0 {
		t.Fatalf("ReadableBytes after full read = %d, want 0", got)
	}
}

func TestHeapBufferGrowsPastInitialCapacity(t *testing.T) {
	b := pipeline.NewHeapBuffer(2, pipeline.WithPlainAllocator())
	payload := bytes.Repeat([]byte{0xab}, 256)
	n, err := b.WriteBytes(payload)
	if err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("WriteBytes wrote %d, want %d", n, len(payload))
	}
	if b.Capacity() < len(payload) {
		t.Fatalf("Capacity %d did not grow to cover %d bytes written", b.Capacity(), len(payload))
	}
	out := make([]byte, len(payload))
	if _, err := b.ReadBytes(out); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("round-tripped bytes mismatch")
	}
}

func TestExternalBufferDoesNotGrow(t *testing.T) {
	b := pipeline.NewExternalBuffer(make([]byte, 4))
	if err := b.SetIndex(0, 4); err != nil {
		t.Fatalf("SetIndex: %v", err)
	}
	if err := b.WriteByte(1); err == nil {
		t.Fatalf("WriteByte past fixed capacity succeeded, want BoundsError")
	}
}

// Index invariant: 0 <= ReaderIndex() <= WriterIndex() <= Capacity() must
// hold after every mutating call, including ones rejected for being
// out of bounds.
func TestIndexInvariantHoldsAfterRejectedWrite(t *testing.T) {
	b := pipeline.NewExternalBuffer(make([]byte, 4))
	_, _ = b.WriteBytes([]byte{1, 2, 3, 4})
	before := [2]int{b.ReaderIndex(), b.WriterIndex()}
	if err := b.SetByte(10, 1); err == nil {
		t.Fatalf("SetByte out of range succeeded, want BoundsError")
	}
	after := [2]int{b.ReaderIndex(), b.WriterIndex()}
	if before != after {
		t.Fatalf("cursors moved on a rejected call: before=%v after=%v", before, after)
	}
	if b.ReaderIndex() < 0 || b.ReaderIndex() > b.WriterIndex() || b.WriterIndex() > b.Capacity() {
		t.Fatalf("index invariant violated: r=%d w=%d cap=%d", b.ReaderIndex(), b.WriterIndex(), b.Capacity())
	}
}

func TestDiscardReadBytesIsNoOpWithNothingRead(t *testing.T) {
	b := pipeline.NewHeapBuffer(8)
	_, _ = b.WriteBytes([]byte{1, 2, 3})
	before := [2]int{b.ReaderIndex(), b.WriterIndex()}
	b.DiscardReadBytes()
	after := [2]int{b.ReaderIndex(), b.WriterIndex()}
	if before != after {
		t.Fatalf("DiscardReadBytes moved cursors with nothing read: before=%v after=%v", before, after)
	}
}

func TestDiscardReadBytesCompactsReadPrefix(t *testing.T) {
	b := pipeline.NewHeapBuffer(8)
	_, _ = b.WriteBytes([]byte{1, 2, 3, 4})
	out := make([]byte, 2)
	_, _ = b.ReadBytes(out)
	b.DiscardReadBytes()
	if b.ReaderIndex() != 0 {
		t.Fatalf("ReaderIndex after DiscardReadBytes = %d, want 0", b.ReaderIndex())
	}
	if b.ReadableBytes() != 2 {
		t.Fatalf("ReadableBytes after DiscardReadBytes = %d, want 2", b.ReadableBytes())
	}
	rest := make([]byte, 2)
	_, _ = b.ReadBytes(rest)
	if !bytes.Equal(rest, []byte{3, 4}) {
		t.Fatalf("remaining bytes = %v, want [3 4]", rest)
	}
}

func TestSliceIsIndependentOfParentCursors(t *testing.T) {
	b := pipeline.NewHeapBuffer(8)
	_, _ = b.WriteBytes([]byte{1, 2, 3, 4, 5, 6})
	view, err := b.Slice(2, 3)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if view.ReaderIndex() != 0 || view.WriterIndex() != 3 {
		t.Fatalf("slice indices = (%d,%d), want (0,3)", view.ReaderIndex(), view.WriterIndex())
	}
	// advancing the parent's cursors must not move the slice's.
	_, _ = b.ReadByte()
	if view.ReaderIndex() != 0 {
		t.Fatalf("slice ReaderIndex moved after parent read: %d", view.ReaderIndex())
	}
	got, err := view.GetByte(0)
	if err != nil || got != 3 {
		t.Fatalf("view.GetByte(0) = %d, %v, want 3, nil", got, err)
	}
}

func TestSliceZeroLengthReturnsEmptySingleton(t *testing.T) {
	b := pipeline.NewHeapBuffer(4)
	view, err := b.Slice(0, 0)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if view.Capacity() != 0 {
		t.Fatalf("zero-length slice capacity = %d, want 0", view.Capacity())
	}
}

func TestDuplicateSharesStorageButNotCursors(t *testing.T) {
	b := pipeline.NewHeapBuffer(8)
	_, _ = b.WriteBytes([]byte{1, 2, 3, 4})
	dup := b.Duplicate()
	_, _ = dup.ReadByte()
	if b.ReaderIndex() != 0 {
		t.Fatalf("parent ReaderIndex moved after duplicate read: %d", b.ReaderIndex())
	}
	// storage is shared: a write through the parent is visible via the duplicate.
	if err := b.SetByte(3, 0xff); err != nil {
		t.Fatalf("SetByte: %v", err)
	}
	v, err := dup.GetByte(3)
	if err != nil || v != 0xff {
		t.Fatalf("dup.GetByte(3) = %d, %v, want 0xff, nil", v, err)
	}
}

func TestCopyIsFullyIndependent(t *testing.T) {
	b := pipeline.NewHeapBuffer(8)
	_, _ = b.WriteBytes([]byte{1, 2, 3, 4})
	cp, err := b.Copy(0, 4)
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if err := b.SetByte(0, 0xff); err != nil {
		t.Fatalf("SetByte: %v", err)
	}
	v, err := cp.GetByte(0)
	if err != nil || v != 1 {
		t.Fatalf("cp.GetByte(0) = %d, %v, want 1, nil (copy must not alias parent storage)", v, err)
	}
}

func TestEmptySingletonIsZeroCapacityAndShared(t *testing.T) {
	a, b := pipeline.Empty(), pipeline.Empty()
	if a.Capacity() != 0 {
		t.Fatalf("Empty().Capacity() = %d, want 0", a.Capacity())
	}
	if a != b {
		t.Fatalf("Empty() returned distinct instances, want the same singleton")
	}
}

func TestGetBytesToBufferAdvancesDestinationWriterIndex(t *testing.T) {
	src := pipeline.NewHeapBuffer(8)
	_, _ = src.WriteBytes([]byte{1, 2, 3, 4})
	dst := pipeline.NewHeapBuffer(8)
	n, err := src.GetBytesToBuffer(0, dst, 4)
	if err != nil {
		t.Fatalf("GetBytesToBuffer: %v", err)
	}
	if n != 4 {
		t.Fatalf("GetBytesToBuffer returned %d, want 4", n)
	}
	if dst.WriterIndex() != 4 {
		t.Fatalf("dst.WriterIndex() = %d, want 4 (open question (a): destination cursor advances)", dst.WriterIndex())
	}
	// src's own cursors are untouched: it is an absolute accessor.
	if src.ReaderIndex() != 0 {
		t.Fatalf("src.ReaderIndex() = %d, want 0", src.ReaderIndex())
	}
}

type shortReader struct{ n int }

func (r *shortReader) Read(p []byte) (int, error) {
	if r.n == 0 {
		return 0, nil
	}
	k := r.n
	if k > len(p) {
		k = len(p)
	}
	for i := 0; i < k; i++ {
		p[i] = 0x42
	}
	r.n -= k
	return k, nil
}

func TestSetBytesFromWritesExactlyWhatWasRead(t *testing.T) {
	b := pipeline.NewHeapBuffer(8)
	r := &shortReader{n: 2}
	n, err := b.SetBytesFrom(0, r, 5)
	if err != nil {
		t.Fatalf("SetBytesFrom: %v", err)
	}
	if n != 2 {
		t.Fatalf("SetBytesFrom returned %d, want 2 (open question (b))", n)
	}
	if b.ReaderIndex() != 0 || b.WriterIndex() != 0 {
		t.Fatalf("SetBytesFrom moved cursors: r=%d w=%d, want 0,0 (absolute accessor)", b.ReaderIndex(), b.WriterIndex())
	}
}

func TestByteOrderDefaultsToBigEndian(t *testing.T) {
	b := pipeline.NewHeapBuffer(4)
	_ = b.WriteUint16(0x0102)
	raw := make([]byte, 2)
	_, _ = b.GetBytes(0, raw)
	if raw[0] != 0x01 || raw[1] != 0x02 {
		t.Fatalf("default byte order wrote %v, want big-endian [1 2]", raw)
	}
}
