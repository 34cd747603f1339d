// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"bytes"
	"runtime"
	"strconv"
	"sync/atomic"
)

// Executor pins a context to single-threaded scheduling. SerialExecutor's
// Submit never runs task synchronously on the caller's goroutine, while
// InlineExecutor's always does; InEventLoop tells a caller
// whether it is already running on the executor's own goroutine, so dispatch
// helpers can decide between running inline and submitting.
type Executor interface {
	Submit(task func())
	InEventLoop() bool
}

// SerialExecutor is a single goroutine draining a task channel in order.
// It is the default Executor a Pipeline assigns to a context that is not
// registered with one explicitly.
type SerialExecutor struct {
	tasks  chan func()
	goroID atomic.Int64
	done   chan struct{}
}

// NewSerialExecutor starts the backing goroutine and returns the executor.
func NewSerialExecutor() *SerialExecutor {
	e := &SerialExecutor{
		tasks: make(chan func(), 256),
		done:  make(chan struct{}),
	}
	e.goroID.Store(-1)
	go e.run()
	return e
}

func (e *SerialExecutor) run() {
	e.goroID.Store(currentGoroutineID())
	defer close(e.done)
	for task := range e.tasks {
		task()
	}
}

// Submit enqueues task to run on the executor's goroutine, in order relative
// to every other task submitted to this executor.
func (e *SerialExecutor) Submit(task func()) {
	e.tasks <- task
}

// InEventLoop reports whether the caller is running on this executor's own
// goroutine.
func (e *SerialExecutor) InEventLoop() bool {
	return currentGoroutineID() == e.goroID.Load()
}

// Close stops accepting new tasks and waits for the goroutine to drain and
// exit. Pending tasks already queued still run before Close returns.
func (e *SerialExecutor) Close() {
	close(e.tasks)
	<-e.done
}

// InlineExecutor runs every submitted task synchronously on the calling
// goroutine and always reports InEventLoop true, so dispatch helpers never
// defer work to a background goroutine. Pipeline tests and embedded
// harnesses that need deterministic, synchronous propagation use this in
// place of SerialExecutor.
type InlineExecutor struct{}

// Submit runs task immediately.
func (InlineExecutor) Submit(task func()) { task() }

// InEventLoop always returns true.
func (InlineExecutor) InEventLoop() bool { return true }

// currentGoroutineID extracts the calling goroutine's runtime id from its
// stack trace header ("goroutine 123 [running]:"). It is only ever called at
// executor submit/inEventLoop boundaries, never on the buffer/bridge hot
// path, so the cost of one small Stack call is acceptable.
func currentGoroutineID() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if idx := bytes.IndexByte(buf, ' '); idx >= 0 {
		buf = buf[:idx]
	}
	id, err := strconv.ParseInt(string(buf), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
