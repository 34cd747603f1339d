// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import "sync"

// Future is the completion handle returned by outbound pipeline operations
// (bind/connect/disconnect/close/deregister/flush/write). It is fulfilled
// exactly once, either by the transport-facing tail handler or by the
// pipeline itself on ClosedChannelError/HandlerException.
type Future interface {
	// Done is closed when the operation completes, successfully or not.
	Done() <-chan struct{}
	// Err returns the completion error, or nil on success. Err must only be
	// read after Done is closed.
	Err() error
}

// promise is the fulfillment side of a Future, held by whichever component
// (transport handler or pipeline) is responsible for completing it.
type promise struct {
	once sync.Once
	done chan struct{}
	err  error
}

// NewFuture returns a (Future, complete) pair: complete(err) fulfills the
// future exactly once; subsequent calls are no-ops.
func NewFuture() (Future, func(err error)) {
	p := &promise{done: make(chan struct{})}
	return p, func(err error) {
		p.once.Do(func() {
			p.err = err
			close(p.done)
		})
	}
}

func (p *promise) Done() <-chan struct{} { return p.done }

func (p *promise) Err() error { return p.err }

// CompleteFuture fulfills f with err. It is exported for OperationHandler
// implementations outside this package (a transport-facing sink, a test
// harness) that received a bare Future from the pipeline and need to
// complete it after performing the actual I/O. Returns false if f did not
// originate from NewFuture and so cannot be completed this way.
func CompleteFuture(f Future, err error) bool {
	p, ok := f.(*promise)
	if !ok {
		return false
	}
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
	return true
}
