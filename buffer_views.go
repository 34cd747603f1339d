// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import "encoding/binary"

// emptySingleton is the canonical zero-capacity buffer. It is read-only
// process-wide state initialized once here, matching spec.md §9's
// "the only process-wide state implied by the core is the empty-buffer
// singleton ... both are initialize-once, read-only thereafter."
var emptySingleton Buffer = &byteBuffer{
	data:    []byte{},
	order:   binary.BigEndian,
	dynamic: false,
	arrayOK: true,
}

func (b *byteBuffer) Slice(index, length int) (Buffer, error) {
	if index < 0 || length < 0 || index+length > len(b.data) {
		return nil, &BoundsError{Op: "slice", Index: index, Length: length, Capacity: len(b.data)}
	}
	if length == 0 {
		return emptySingleton, nil
	}
	// Three-index slicing caps the view's own capacity growth from
	// accidentally reaching into the parent's trailing storage.
	window := b.data[index : index+length : index+length]
	return &byteBuffer{data: window, readerIdx: 0, writerIdx: length, order: b.order, dynamic: false, arrayOK: b.arrayOK}, nil
}

func (b *byteBuffer) Duplicate() Buffer {
	return &byteBuffer{
		data:      b.data,
		readerIdx: b.readerIdx,
		writerIdx: b.writerIdx,
		order:     b.order,
		dynamic:   false,
		arrayOK:   b.arrayOK,
	}
}

func (b *byteBuffer) Copy(index, length int) (Buffer, error) {
	if index < 0 || length < 0 || index+length > len(b.data) {
		return nil, &BoundsError{Op: "copy", Index: index, Length: length, Capacity: len(b.data)}
	}
	out := make([]byte, length)
	copy(out, b.data[index:index+length])
	return &byteBuffer{data: out, readerIdx: 0, writerIdx: length, order: b.order, dynamic: false, arrayOK: true}, nil
}
