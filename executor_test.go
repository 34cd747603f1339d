// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline_test

import (
	"sync/atomic"
	"testing"
	"time"

	"code.hybscloud.com/pipeline"
)

func TestInlineExecutorRunsSynchronously(t *testing.T) {
	ex := pipeline.InlineExecutor{}
	if !ex.InEventLoop() {
		t.Fatalf("InlineExecutor.InEventLoop() = false, want true")
	}
	ran := false
	ex.Submit(func() { ran = true })
	if !ran {
		t.Fatalf("Submit did not run task synchronously")
	}
}

func TestSerialExecutorRunsTasksInOrder(t *testing.T) {
	ex := pipeline.NewSerialExecutor()
	defer ex.Close()

	var order []int32
	done := make(chan struct{})
	var n int32
	for i := 0; i < 5; i++ {
		i := int32(i)
		ex.Submit(func() {
			order = append(order, i)
			if atomic.AddInt32(&n, 1) == 5 {
				close(done)
			}
		})
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("tasks did not all run within timeout")
	}
	for i, v := range order {
		if v != int32(i) {
			t.Fatalf("order[%d] = %d, want %d: tasks ran out of submission order", i, v, i)
		}
	}
}

func TestSerialExecutorInEventLoopFromItsOwnGoroutine(t *testing.T) {
	ex := pipeline.NewSerialExecutor()
	defer ex.Close()

	if ex.InEventLoop() {
		t.Fatalf("InEventLoop() from the test goroutine = true, want false")
	}
	result := make(chan bool, 1)
	ex.Submit(func() { result <- ex.InEventLoop() })
	select {
	case got := <-result:
		if !got {
			t.Fatalf("InEventLoop() from within a submitted task = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatalf("task never ran")
	}
}
