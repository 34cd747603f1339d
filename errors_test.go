// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline_test

import (
	"errors"
	"strings"
	"testing"

	"code.hybscloud.com/pipeline"
)

func TestTooLongFrameErrorUnwrapsToErrTooLong(t *testing.T) {
	err := &pipeline.TooLongFrameError{MaxLength: 64}
	if !errors.Is(err, pipeline.ErrTooLong) {
		t.Fatalf("errors.Is(err, ErrTooLong) = false, want true")
	}
}

func TestHandlerExceptionUnwrapsToCause(t *testing.T) {
	cause := errors.New("boom")
	err := &pipeline.HandlerException{Context: "h", Event: "flush", Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false, want true")
	}
}

func TestPipelineErrorUnwrapsToCause(t *testing.T) {
	cause := errors.New("bad holder")
	err := &pipeline.PipelineError{Context: "h", Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false, want true")
	}
}

func TestBoundsErrorMessageMentionsOp(t *testing.T) {
	err := &pipeline.BoundsError{Op: "getByte", Index: 5, Length: 1, Capacity: 3}
	if got := err.Error(); !strings.Contains(got, "getByte") {
		t.Fatalf("Error() = %q, want it to mention op getByte", got)
	}
}
