package contracts

import (
	"context"
)

// Endpoint is a request handler with an introspectable signature.
// Contract layers are Endpoints themselves, so a decorated handler can be registered,
// invoked and walked exactly like an undecorated one.
type Endpoint interface {
	Signature() Signature
	Invoke(ctx context.Context, call *Call) (any, error)
}

// Unwrapper is implemented by every Endpoint that wraps another one.
// Foreign wrappers (logging, auth, ...) must implement it and keep the signature of the
// endpoint they wrap, otherwise the chain can not be introspected.
type Unwrapper interface {
	Unwrap() Endpoint
}

// Call carries the state of one invocation through a chain.
// A Call must not be reused across invocations.
type Call struct {
	Args Args
	old  *Old
}

// NewCall starts a new invocation with the given arguments.
func NewCall(args Args) *Call {
	if args == nil {
		args = Args{}
	}

	return &Call{Args: args}
}

// Old returns the OLD container of the call, or nil if no snapshot has run yet.
func (c *Call) Old() *Old {
	return c.old
}

func (c *Call) oldOrNew() *Old {
	if c.old == nil {
		c.old = newOld()
	}

	return c.old
}

// HandlerFunc is the business logic at the core of a chain.
type HandlerFunc func(ctx context.Context, args Args) (any, error)

// Handler is the terminal Endpoint of a chain.
type Handler struct {
	signature Signature
	fn        HandlerFunc
}

// Handle builds a terminal Endpoint from fn, bound to the arguments described by signature.
func Handle(signature Signature, fn HandlerFunc) *Handler {
	return &Handler{signature: signature, fn: fn}
}

// Signature returns the declared parameters of the handler.
func (h *Handler) Signature() Signature {
	return h.signature
}

// Invoke runs the handler with the call's arguments.
func (h *Handler) Invoke(ctx context.Context, call *Call) (any, error) {
	return h.fn(ctx, call.Args)
}

// Run invokes ep once with args on a fresh Call.
func Run(ctx context.Context, ep Endpoint, args Args) (any, error) {
	return ep.Invoke(ctx, NewCall(args))
}
