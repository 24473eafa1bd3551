package contracts

import (
	"context"
)

// Decorator wraps an Endpoint into a contract layer. Decorators are created with Require,
// Snapshot and Ensure and applied with Decorate.
type Decorator interface {
	apply(inner Endpoint, c *Checker) (Endpoint, error)
}

type decoratorFunc func(inner Endpoint, c *Checker) (Endpoint, error)

func (f decoratorFunc) apply(inner Endpoint, c *Checker) (Endpoint, error) {
	return f(inner, c)
}

// Require declares a precondition. The condition may declare any parameter of the
// endpoint but neither ResultParam nor OldParam.
func Require(cond Condition, opts ...Option) Decorator {
	return decoratorFunc(func(inner Endpoint, c *Checker) (Endpoint, error) {
		const op = "require"

		s, err := applyOptions(op, opts)
		if err != nil {
			return nil, err
		}
		if s.disabledSet {
			return nil, newConfigError(op, ErrOptionNotApplicable, "Disabled")
		}
		if err := validateCondition(op, cond, inner.Signature(), false); err != nil {
			return nil, err
		}

		code := s.statusCode

		return &RequireLayer{
			inner:   inner,
			cond:    cond,
			checker: c,
			meta: Metadata{
				Kind:        KindPrecondition,
				Description: s.description,
				StatusCode:  &code,
				Enforced:    s.enforced,
				Documented:  s.documented,
				Text:        cond.Text(),
			},
		}, nil
	})
}

// Snapshot declares a capture whose value is stored in the OLD container under name before
// the inner endpoint runs. The capture may declare any parameter of the endpoint but neither
// ResultParam nor OldParam.
func Snapshot(capture Condition, name string, opts ...Option) Decorator {
	return decoratorFunc(func(inner Endpoint, c *Checker) (Endpoint, error) {
		const op = "snapshot"

		if name == "" {
			return nil, newConfigError(op, ErrEmptySnapshotName, "")
		}

		s, err := applyOptions(op, opts)
		if err != nil {
			return nil, err
		}
		switch {
		case s.statusCodeSet:
			return nil, newConfigError(op, ErrOptionNotApplicable, "StatusCode on snapshot %q", name)
		case s.notEnforced:
			return nil, newConfigError(op, ErrOptionNotApplicable, "NotEnforced on snapshot %q, use Disabled", name)
		case s.description != nil:
			return nil, newConfigError(op, ErrOptionNotApplicable, "Description on snapshot %q", name)
		}
		if err := validateCondition(op, capture, inner.Signature(), false); err != nil {
			return nil, err
		}

		return &SnapshotLayer{
			inner:   inner,
			cond:    capture,
			name:    name,
			checker: c,
			meta: SnapshotMetadata{
				Name:       name,
				Enabled:    s.enabled,
				Documented: s.documented,
				Text:       capture.Text(),
			},
		}, nil
	})
}

// Ensure declares a postcondition. Besides the parameters of the endpoint, the condition may
// declare ResultParam to see the handler result and OldParam to see the OLD container.
func Ensure(cond Condition, opts ...Option) Decorator {
	return decoratorFunc(func(inner Endpoint, c *Checker) (Endpoint, error) {
		const op = "ensure"

		s, err := applyOptions(op, opts)
		if err != nil {
			return nil, err
		}
		if s.statusCodeSet {
			return nil, newConfigError(op, ErrStatusCodeOnPostcondition, "")
		}
		if s.disabledSet {
			return nil, newConfigError(op, ErrOptionNotApplicable, "Disabled")
		}
		if err := validateCondition(op, cond, inner.Signature(), true); err != nil {
			return nil, err
		}

		return &EnsureLayer{
			inner:   inner,
			cond:    cond,
			checker: c,
			meta: Metadata{
				Kind:        KindPostcondition,
				Description: s.description,
				Enforced:    s.enforced,
				Documented:  s.documented,
				Text:        cond.Text(),
			},
		}, nil
	})
}

func validateCondition(op string, cond Condition, sig Signature, allowReserved bool) error {
	if !cond.valid() {
		return newConfigError(op, ErrNilCondition, "")
	}

	for _, name := range cond.params {
		isReserved := name == ResultParam || name == OldParam
		switch {
		case isReserved && allowReserved:
			continue
		case sig.Has(name):
			continue
		case isReserved:
			return newConfigError(op, ErrReservedParameter, "%q", name)
		default:
			return newConfigError(op, ErrUnknownParameter, "%q, endpoint has %v", name, sig.Names())
		}
	}

	return nil
}

// RequireLayer is the Endpoint produced by Require.
type RequireLayer struct {
	inner   Endpoint
	cond    Condition
	meta    Metadata
	checker *Checker
}

// Signature returns the signature of the wrapped endpoint.
func (l *RequireLayer) Signature() Signature { return l.inner.Signature() }

// Unwrap returns the wrapped endpoint.
func (l *RequireLayer) Unwrap() Endpoint { return l.inner }

// Metadata returns the static description of the precondition.
func (l *RequireLayer) Metadata() Metadata { return l.meta }

// Invoke evaluates the precondition and delegates to the wrapped endpoint if it holds.
// A failed precondition returns a *PreconditionError without calling the wrapped endpoint.
func (l *RequireLayer) Invoke(ctx context.Context, call *Call) (any, error) {
	if !l.meta.Enforced {
		return l.inner.Invoke(ctx, call)
	}

	holds, err := l.checker.check(ctx, l.meta, l.cond, bindingsFor(l.cond, call.Args, nil, nil))
	if err != nil {
		return nil, err
	}

	if !holds {
		violation := &PreconditionError{StatusCode: *l.meta.StatusCode, Text: l.meta.Text}
		if l.meta.Description != nil {
			violation.Description = *l.meta.Description
		}

		if err := l.checker.violated(ctx, violation); err != nil {
			return nil, err
		}
	}

	return l.inner.Invoke(ctx, call)
}

// SnapshotLayer is the Endpoint produced by Snapshot.
type SnapshotLayer struct {
	inner   Endpoint
	cond    Condition
	name    string
	meta    SnapshotMetadata
	checker *Checker
}

// Signature returns the signature of the wrapped endpoint.
func (l *SnapshotLayer) Signature() Signature { return l.inner.Signature() }

// Unwrap returns the wrapped endpoint.
func (l *SnapshotLayer) Unwrap() Endpoint { return l.inner }

// Metadata returns the static description of the snapshot.
func (l *SnapshotLayer) Metadata() SnapshotMetadata { return l.meta }

// Invoke captures the snapshot into the call's OLD container, then delegates.
func (l *SnapshotLayer) Invoke(ctx context.Context, call *Call) (any, error) {
	if !l.meta.Enabled {
		return l.inner.Invoke(ctx, call)
	}

	value, err := l.checker.capture(ctx, l.meta, l.cond, bindingsFor(l.cond, call.Args, nil, nil))
	if err != nil {
		return nil, err
	}

	if err := call.oldOrNew().set(l.name, value); err != nil {
		return nil, newConfigError("snapshot", err, "%q", l.name)
	}

	return l.inner.Invoke(ctx, call)
}

// EnsureLayer is the Endpoint produced by Ensure.
type EnsureLayer struct {
	inner   Endpoint
	cond    Condition
	meta    Metadata
	checker *Checker
}

// Signature returns the signature of the wrapped endpoint.
func (l *EnsureLayer) Signature() Signature { return l.inner.Signature() }

// Unwrap returns the wrapped endpoint.
func (l *EnsureLayer) Unwrap() Endpoint { return l.inner }

// Metadata returns the static description of the postcondition.
func (l *EnsureLayer) Metadata() Metadata { return l.meta }

// Invoke delegates to the wrapped endpoint and evaluates the postcondition on its result.
// A failed postcondition returns a *PostconditionError instead of the result.
func (l *EnsureLayer) Invoke(ctx context.Context, call *Call) (any, error) {
	result, err := l.inner.Invoke(ctx, call)
	if err != nil || !l.meta.Enforced {
		return result, err
	}

	if l.cond.declares(OldParam) && call.Old() == nil {
		return nil, newConfigError("ensure", ErrMissingSnapshot, "no snapshot ran before this call")
	}

	holds, err := l.checker.check(ctx, l.meta, l.cond, bindingsFor(l.cond, call.Args, result, call.Old()))
	if err != nil {
		return nil, err
	}

	if !holds {
		violation := &PostconditionError{Text: l.meta.Text}
		if l.meta.Description != nil {
			violation.Description = *l.meta.Description
		}

		if err := l.checker.violated(ctx, violation); err != nil {
			return nil, err
		}
	}

	return result, nil
}
