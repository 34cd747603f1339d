// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

// HolderKind discriminates the two forms a BufferHolder can take.
type HolderKind uint8

const (
	// KindNone means the owning context declared no buffer on this side.
	KindNone HolderKind = iota
	// KindBytes means the holder carries a Buffer (stream form).
	KindBytes
	// KindMessages means the holder carries a MessageQueue.
	KindMessages
)

// BufferHolder is the tagged union described in spec §3: a stage declares
// exactly one form per direction, never both.
type BufferHolder struct {
	Kind     HolderKind
	Bytes    Buffer
	Messages *MessageQueue
}

// NewByteBufferHolder wraps buf as a stream-form holder.
func NewByteBufferHolder(buf Buffer) BufferHolder {
	return BufferHolder{Kind: KindBytes, Bytes: buf}
}

// NewMessageBufferHolder wraps an empty message queue as a queue-form holder.
func NewMessageBufferHolder() BufferHolder {
	return BufferHolder{Kind: KindMessages, Messages: NewMessageQueue()}
}

// MessageQueue is a simple unbounded FIFO of arbitrary messages backing the
// queue form of BufferHolder. It is local to one context and is never
// touched from another goroutine directly — cross-executor handoff always
// goes through a MessageBridge (see bridge.go).
type MessageQueue struct {
	items []any
}

// NewMessageQueue returns an empty queue.
func NewMessageQueue() *MessageQueue { return &MessageQueue{} }

// Len reports the number of queued messages.
func (q *MessageQueue) Len() int { return len(q.items) }

// Push appends a message.
func (q *MessageQueue) Push(msg any) { q.items = append(q.items, msg) }

// PushAll appends a batch of messages in order.
func (q *MessageQueue) PushAll(msgs []any) { q.items = append(q.items, msgs...) }

// Pop removes and returns the oldest message, or (nil, false) if empty.
func (q *MessageQueue) Pop() (any, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	msg := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return msg, true
}

// Drain removes and returns every queued message, in order, and empties the queue.
func (q *MessageQueue) Drain() []any {
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}
