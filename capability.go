// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

// Capability is a tagged bit identifying which direction(s) of pipeline
// traffic a handler participates in. The capability set of a context is
// computed once, at registration, from type assertions against the Handler
// interfaces in handler.go (CapState, CapOperation) and from the buffer
// holders the handler returns (CapInbound, CapOutbound) — never by repeated
// instanceof-style checks during dispatch.
type Capability uint8

const (
	// CapState marks a handler that receives channel lifecycle events
	// (registered/unregistered/active/inactive/inboundBufferUpdated).
	CapState Capability = 1 << iota
	// CapInbound marks a handler that owns a local inbound buffer.
	CapInbound
	// CapOutbound marks a handler that owns a local outbound buffer.
	CapOutbound
	// CapOperation marks a handler that participates in outbound operations
	// (bind/connect/disconnect/close/deregister/flush/write).
	CapOperation
)

// Has reports whether the set contains cap.
func (s Capability) Has(cap Capability) bool { return s&cap != 0 }

// capabilitiesOf inspects h against StateHandler and OperationHandler,
// the two capabilities a type assertion can decide on its own (each adds
// methods beyond plain Handler). CapInbound/CapOutbound are decided
// afterward, by whether NewInboundBuffer/NewOutboundBuffer actually
// returned a non-KindNone holder (see Pipeline.newContext) — InboundHandler
// and OutboundHandler alone can't distinguish "owns a buffer" from "doesn't",
// since a handler can implement InboundBufferUpdated without ever being
// asked to receive it.
func capabilitiesOf(h any) Capability {
	var s Capability
	if _, ok := h.(StateHandler); ok {
		s |= CapState
	}
	if _, ok := h.(OperationHandler); ok {
		s |= CapOperation
	}
	return s
}
