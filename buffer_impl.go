// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"encoding/binary"
	"io"
)

// byteBuffer is the single concrete type backing every Buffer variant
// (heap, external, slice, duplicate, copy). Which variant it represents is
// carried entirely in its fields rather than a type hierarchy: dynamic
// controls whether writes past capacity grow the backing array, and
// arrayOK controls whether Array()/ArrayOffset() are exposed.
type byteBuffer struct {
	data      []byte
	readerIdx int
	writerIdx int
	order     binary.ByteOrder
	dynamic   bool
	factory   BufferFactory
	arrayOK   bool
}

func (b *byteBuffer) Capacity() int        { return len(b.data) }
func (b *byteBuffer) ReaderIndex() int     { return b.readerIdx }
func (b *byteBuffer) WriterIndex() int     { return b.writerIdx }
func (b *byteBuffer) ReadableBytes() int   { return b.writerIdx - b.readerIdx }
func (b *byteBuffer) WritableBytes() int   { return len(b.data) - b.writerIdx }
func (b *byteBuffer) ByteOrder() binary.ByteOrder { return b.order }

func (b *byteBuffer) SetIndex(r, w int) error {
	if r < 0 || w < r || w > len(b.data) {
		return &BoundsError{Op: "setIndex", Index: r, Length: w - r, Capacity: len(b.data)}
	}
	b.readerIdx, b.writerIdx = r, w
	return nil
}

func (b *byteBuffer) checkGet(op string, index, size int) error {
	if index < 0 || size < 0 || index+size > b.writerIdx {
		return &BoundsError{Op: op, Index: index, Length: size, Capacity: b.writerIdx}
	}
	return nil
}

// ensureWritable grows a dynamic buffer so [0, through) is addressable,
// doubling capacity (the same policy bytes.Buffer uses) until it is, or
// fails for a fixed/external buffer.
func (b *byteBuffer) ensureWritable(op string, through int) error {
	if through <= len(b.data) {
		return nil
	}
	if !b.dynamic {
		return &BoundsError{Op: op, Index: through, Length: 0, Capacity: len(b.data)}
	}
	newCap := len(b.data)
	if newCap == 0 {
		newCap = 64
	}
	for newCap < through {
		newCap *= 2
	}
	var grown []byte
	if b.factory != nil {
		grown = b.factory.NewBuffer(newCap)
	} else {
		grown = make([]byte, newCap)
	}
	copy(grown, b.data)
	b.data = grown
	return nil
}

func (b *byteBuffer) checkSet(op string, index, size int) error {
	if index < 0 || size < 0 {
		return &BoundsError{Op: op, Index: index, Length: size, Capacity: len(b.data)}
	}
	return b.ensureWritable(op, index+size)
}

// --- absolute accessors ---

func (b *byteBuffer) GetByte(index int) (byte, error) {
	if err := b.checkGet("getByte", index, 1); err != nil {
		return 0, err
	}
	return b.data[index], nil
}

func (b *byteBuffer) SetByte(index int, v byte) error {
	if err := b.checkSet("setByte", index, 1); err != nil {
		return err
	}
	b.data[index] = v
	return nil
}

func (b *byteBuffer) GetUint16(index int) (uint16, error) {
	if err := b.checkGet("getUint16", index, 2); err != nil {
		return 0, err
	}
	return b.order.Uint16(b.data[index : index+2]), nil
}

func (b *byteBuffer) SetUint16(index int, v uint16) error {
	if err := b.checkSet("setUint16", index, 2); err != nil {
		return err
	}
	b.order.PutUint16(b.data[index:index+2], v)
	return nil
}

func (b *byteBuffer) GetInt16(index int) (int16, error) {
	v, err := b.GetUint16(index)
	return int16(v), err
}

func (b *byteBuffer) SetInt16(index int, v int16) error { return b.SetUint16(index, uint16(v)) }

func (b *byteBuffer) GetUint32(index int) (uint32, error) {
	if err := b.checkGet("getUint32", index, 4); err != nil {
		return 0, err
	}
	return b.order.Uint32(b.data[index : index+4]), nil
}

func (b *byteBuffer) SetUint32(index int, v uint32) error {
	if err := b.checkSet("setUint32", index, 4); err != nil {
		return err
	}
	b.order.PutUint32(b.data[index:index+4], v)
	return nil
}

func (b *byteBuffer) GetInt32(index int) (int32, error) {
	v, err := b.GetUint32(index)
	return int32(v), err
}

func (b *byteBuffer) SetInt32(index int, v int32) error { return b.SetUint32(index, uint32(v)) }

func (b *byteBuffer) GetUint64(index int) (uint64, error) {
	if err := b.checkGet("getUint64", index, 8); err != nil {
		return 0, err
	}
	return b.order.Uint64(b.data[index : index+8]), nil
}

func (b *byteBuffer) SetUint64(index int, v uint64) error {
	if err := b.checkSet("setUint64", index, 8); err != nil {
		return err
	}
	b.order.PutUint64(b.data[index:index+8], v)
	return nil
}

func (b *byteBuffer) GetInt64(index int) (int64, error) {
	v, err := b.GetUint64(index)
	return int64(v), err
}

func (b *byteBuffer) SetInt64(index int, v int64) error { return b.SetUint64(index, uint64(v)) }

// --- relative accessors ---

func (b *byteBuffer) ReadByte() (byte, error) {
	v, err := b.GetByte(b.readerIdx)
	if err != nil {
		return 0, err
	}
	b.readerIdx++
	return v, nil
}

func (b *byteBuffer) WriteByte(v byte) error {
	if err := b.SetByte(b.writerIdx, v); err != nil {
		return err
	}
	b.writerIdx++
	return nil
}

func (b *byteBuffer) ReadUint16() (uint16, error) {
	v, err := b.GetUint16(b.readerIdx)
	if err != nil {
		return 0, err
	}
	b.readerIdx += 2
	return v, nil
}

func (b *byteBuffer) WriteUint16(v uint16) error {
	if err := b.SetUint16(b.writerIdx, v); err != nil {
		return err
	}
	b.writerIdx += 2
	return nil
}

func (b *byteBuffer) ReadInt16() (int16, error) {
	v, err := b.ReadUint16()
	return int16(v), err
}

func (b *byteBuffer) WriteInt16(v int16) error { return b.WriteUint16(uint16(v)) }

func (b *byteBuffer) ReadUint32() (uint32, error) {
	v, err := b.GetUint32(b.readerIdx)
	if err != nil {
		return 0, err
	}
	b.readerIdx += 4
	return v, nil
}

func (b *byteBuffer) WriteUint32(v uint32) error {
	if err := b.SetUint32(b.writerIdx, v); err != nil {
		return err
	}
	b.writerIdx += 4
	return nil
}

func (b *byteBuffer) ReadInt32() (int32, error) {
	v, err := b.ReadUint32()
	return int32(v), err
}

func (b *byteBuffer) WriteInt32(v int32) error { return b.WriteUint32(uint32(v)) }

func (b *byteBuffer) ReadUint64() (uint64, error) {
	v, err := b.GetUint64(b.readerIdx)
	if err != nil {
		return 0, err
	}
	b.readerIdx += 8
	return v, nil
}

func (b *byteBuffer) WriteUint64(v uint64) error {
	if err := b.SetUint64(b.writerIdx, v); err != nil {
		return err
	}
	b.writerIdx += 8
	return nil
}

func (b *byteBuffer) ReadInt64() (int64, error) {
	v, err := b.ReadUint64()
	return int64(v), err
}

func (b *byteBuffer) WriteInt64(v int64) error { return b.WriteUint64(uint64(v)) }

// --- bulk transfers ---

func (b *byteBuffer) GetBytes(index int, dst []byte) (int, error) {
	if err := b.checkGet("getBytes", index, len(dst)); err != nil {
		return 0, err
	}
	return copy(dst, b.data[index:index+len(dst)]), nil
}

func (b *byteBuffer) SetBytes(index int, src []byte) (int, error) {
	if err := b.checkSet("setBytes", index, len(src)); err != nil {
		return 0, err
	}
	return copy(b.data[index:index+len(src)], src), nil
}

func (b *byteBuffer) ReadBytes(dst []byte) (int, error) {
	n, err := b.GetBytes(b.readerIdx, dst)
	if err != nil {
		return 0, err
	}
	b.readerIdx += n
	return n, nil
}

func (b *byteBuffer) WriteBytes(src []byte) (int, error) {
	n, err := b.SetBytes(b.writerIdx, src)
	if err != nil {
		return 0, err
	}
	b.writerIdx += n
	return n, nil
}

func (b *byteBuffer) SetBytesFrom(index int, r io.Reader, length int) (int, error) {
	if err := b.checkSet("setBytesFrom", index, length); err != nil {
		return 0, err
	}
	n, err := r.Read(b.data[index : index+length])
	if n <= 0 && err == nil {
		err = io.ErrNoProgress
	}
	return n, err
}

func (b *byteBuffer) GetBytesTo(index int, w io.Writer, length int) (int, error) {
	if err := b.checkGet("getBytesTo", index, length); err != nil {
		return 0, err
	}
	return w.Write(b.data[index : index+length])
}

func (b *byteBuffer) GetBytesToBuffer(index int, dst Buffer, length int) (int, error) {
	if err := b.checkGet("getBytesToBuffer", index, length); err != nil {
		return 0, err
	}
	return dst.WriteBytes(b.data[index : index+length])
}

func (b *byteBuffer) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for b.ReadableBytes() > 0 {
		n, err := w.Write(b.data[b.readerIdx:b.writerIdx])
		if n > 0 {
			b.readerIdx += n
			total += int64(n)
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

func (b *byteBuffer) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	for {
		if err := b.ensureWritable("readFrom", b.writerIdx+1); err != nil {
			return total, err
		}
		n, err := r.Read(b.data[b.writerIdx:])
		if n > 0 {
			b.writerIdx += n
			total += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
	}
}

func (b *byteBuffer) DiscardReadBytes() {
	if b.readerIdx == 0 {
		return
	}
	copy(b.data, b.data[b.readerIdx:b.writerIdx])
	b.writerIdx -= b.readerIdx
	b.readerIdx = 0
}

func (b *byteBuffer) HasArray() bool { return b.arrayOK }

func (b *byteBuffer) Array() ([]byte, error) {
	if !b.arrayOK {
		return nil, &NoBufferError{Context: "buffer", Kind: "backing array"}
	}
	return b.data, nil
}

func (b *byteBuffer) ArrayOffset() (int, error) {
	if !b.arrayOK {
		return 0, &NoBufferError{Context: "buffer", Kind: "backing array"}
	}
	return 0, nil
}

func (b *byteBuffer) NioBuffer(index, length int) ([]byte, error) {
	if index < 0 || length < 0 || index+length > len(b.data) {
		return nil, &BoundsError{Op: "nioBuffer", Index: index, Length: length, Capacity: len(b.data)}
	}
	return b.data[index : index+length : index+length], nil
}
