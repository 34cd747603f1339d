// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import "code.hybscloud.com/lfq"

// A Bridge decouples production and consumption of adjacent-context data
// when the two contexts are pinned to different executors, so neither side
// ever mutates the other's local buffer directly. fill always runs on the
// producer's executor; flush always runs on the consumer's executor. The
// exchange queue is the only structure either side touches across threads.
//
// Bridges are created lazily on first cross-executor handoff between two
// adjacent contexts (see HandlerContext.bridgeTo) and live as long as both
// contexts coexist in the pipeline.

// StreamBridge hands byte chunks from a producer's local outbound/inbound
// byte buffer to a consumer's, one chunk per fill/flush round trip.
type StreamBridge struct {
	exchange *lfq.SPSC[[]byte]
	retry    retryPolicy
}

// newStreamBridge allocates the lock-free exchange queue backing a
// StreamBridge. Capacity is small: at most one outstanding chunk is ever
// queued per fill before the consumer drains it. retry governs how fill
// behaves when that queue is momentarily full; flush never waits.
func newStreamBridge(retry retryPolicy) *StreamBridge {
	return &StreamBridge{exchange: lfq.NewSPSC[[]byte](8), retry: retry}
}

// fill copies every readable byte out of src into a freshly allocated chunk,
// enqueues it on the exchange queue, then consumes those bytes from src and
// compacts it. No-op if src has no readable bytes. If the queue stays full
// under the retry policy, fill returns the would-block error and leaves src
// unchanged, so a later fill hands over the same bytes. Must be called only
// from the producer's executor.
func (b *StreamBridge) fill(src Buffer) error {
	n := src.ReadableBytes()
	if n == 0 {
		return nil
	}
	chunk := make([]byte, n)
	if _, err := src.GetBytes(src.ReaderIndex(), chunk); err != nil {
		return err
	}
	for {
		err := b.exchange.Enqueue(&chunk)
		if err == nil {
			break
		}
		if !lfq.IsWouldBlock(err) {
			return err
		}
		if !b.retry.waitOnceOnWouldBlock() {
			return err
		}
	}
	if err := src.SetIndex(src.ReaderIndex()+n, src.WriterIndex()); err != nil {
		return err
	}
	src.DiscardReadBytes()
	return nil
}

// flush drains every chunk currently on the exchange queue into dst, in
// FIFO order, stopping as soon as the queue reports empty (ErrWouldBlock is
// not retried here: unlike fill's full queue, an empty queue is the normal
// terminal case, not backpressure to wait out). Must be called only from
// the consumer's executor.
func (b *StreamBridge) flush(dst Buffer) error {
	for {
		chunk, err := b.exchange.Dequeue()
		if err != nil {
			if lfq.IsWouldBlock(err) {
				return nil
			}
			return err
		}
		if _, err := dst.WriteBytes(*chunk); err != nil {
			return err
		}
	}
}

// FillHolder runs fill against holder's byte buffer, failing if holder is
// not the byte-buffer form. HandlerContext only ever pairs a StreamBridge
// with a KindBytes holder, so this mismatch should never occur outside a
// programming error.
func (b *StreamBridge) FillHolder(holder BufferHolder) error {
	if holder.Kind != KindBytes {
		return &NoBufferError{Context: "bridge", Kind: "byte buffer"}
	}
	return b.fill(holder.Bytes)
}

// FlushHolder runs flush against holder's byte buffer.
func (b *StreamBridge) FlushHolder(holder BufferHolder) error {
	if holder.Kind != KindBytes {
		return &NoBufferError{Context: "bridge", Kind: "byte buffer"}
	}
	return b.flush(holder.Bytes)
}

// MessageBridge hands batches of arbitrary messages from a producer's local
// outbound/inbound message queue to a consumer's.
type MessageBridge struct {
	exchange *lfq.SPSC[[]any]
	retry    retryPolicy
}

func newMessageBridge(retry retryPolicy) *MessageBridge {
	return &MessageBridge{exchange: lfq.NewSPSC[[]any](8), retry: retry}
}

// fill atomically snapshots src's queued messages into a batch and enqueues
// it. No-op if src is empty. If the queue stays full under the retry policy,
// the batch is put back at the front of src and the would-block error is
// returned. Must be called only from the producer's executor.
func (b *MessageBridge) fill(src *MessageQueue) error {
	batch := src.Drain()
	if len(batch) == 0 {
		return nil
	}
	for {
		err := b.exchange.Enqueue(&batch)
		if err == nil {
			return nil
		}
		if !lfq.IsWouldBlock(err) {
			return err
		}
		if !b.retry.waitOnceOnWouldBlock() {
			src.items = append(batch, src.items...)
			return err
		}
	}
}

// flush drains every batch on the exchange queue into dst, preserving
// message order within and across batches, stopping as soon as the queue
// reports empty (see StreamBridge.flush on why that case isn't retried).
// Must be called only from the consumer's executor.
func (b *MessageBridge) flush(dst *MessageQueue) error {
	for {
		batch, err := b.exchange.Dequeue()
		if err != nil {
			if lfq.IsWouldBlock(err) {
				return nil
			}
			return err
		}
		dst.PushAll(*batch)
	}
}

// FillHolder runs fill against holder's message queue.
func (b *MessageBridge) FillHolder(holder BufferHolder) error {
	if holder.Kind != KindMessages {
		return &NoBufferError{Context: "bridge", Kind: "message queue"}
	}
	return b.fill(holder.Messages)
}

// FlushHolder runs flush against holder's message queue.
func (b *MessageBridge) FlushHolder(holder BufferHolder) error {
	if holder.Kind != KindMessages {
		return &NoBufferError{Context: "bridge", Kind: "message queue"}
	}
	return b.flush(holder.Messages)
}

// holderBridge is the common shape HandlerContext drives regardless of
// whether the underlying exchange carries bytes or messages.
type holderBridge interface {
	FillHolder(holder BufferHolder) error
	FlushHolder(holder BufferHolder) error
}

// newBridgeFor returns the bridge flavor matching holder's kind, or nil for
// KindNone (no cross-executor handoff is ever needed for a side a handler
// didn't declare). retry governs the bridge's behavior when its exchange
// queue is momentarily full; see PipelineOptions.BridgeRetry.
func newBridgeFor(holder BufferHolder, retry retryPolicy) holderBridge {
	switch holder.Kind {
	case KindBytes:
		return newStreamBridge(retry)
	case KindMessages:
		return newMessageBridge(retry)
	default:
		return nil
	}
}
