package contracts

import (
	"context"
	"errors"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"
)

// Outcome is the resolved value of an asynchronous condition.
type Outcome struct {
	Value any
	Err   error
}

// Future delivers exactly one Outcome of an asynchronous condition.
type Future <-chan Outcome

// Resolved returns a Future that is already resolved with value.
func Resolved(value any) Future {
	ch := make(chan Outcome, 1)
	ch <- Outcome{Value: value}
	close(ch)

	return ch
}

// Go runs fn on its own goroutine and returns a Future for its result.
// A panic in fn resolves the Future with a *PanicError, which the evaluator re-panics on the
// goroutine awaiting the condition, so async conditions panic where sync ones do.
func Go(fn func() (any, error)) Future {
	ch := make(chan Outcome, 1)

	go func() {
		defer close(ch)
		defer func() {
			if p := recover(); p != nil {
				ch <- Outcome{Err: &PanicError{Value: p, Stack: debug.Stack()}}
			}
		}()

		value, err := fn()
		ch <- Outcome{Value: value, Err: err}
	}()

	return ch
}

// SyncFunc evaluates a condition and returns its value directly.
type SyncFunc func(ctx context.Context, b Bindings) (any, error)

// AsyncFunc starts evaluating a condition and returns a Future for its value.
type AsyncFunc func(ctx context.Context, b Bindings) Future

type conditionKind uint8

const (
	syncCondition conditionKind = iota + 1
	asyncCondition
)

// Condition is a predicate (for require/ensure) or a capture function (for snapshot).
// It is either synchronous or asynchronous, and it declares up front which named
// arguments it consumes; only those are visible through its Bindings.
type Condition struct {
	kind   conditionKind
	sync   SyncFunc
	async  AsyncFunc
	params []string
	text   string
}

// Sync declares a synchronous condition that consumes params.
func Sync(fn SyncFunc, params ...string) Condition {
	if fn == nil {
		return Condition{}
	}

	return Condition{kind: syncCondition, sync: fn, params: params, text: funcName(fn)}
}

// Async declares an asynchronous condition that consumes params.
// The evaluator waits for the returned Future or for the call's context to end.
func Async(fn AsyncFunc, params ...string) Condition {
	if fn == nil {
		return Condition{}
	}

	return Condition{kind: asyncCondition, async: fn, params: params, text: funcName(fn)}
}

// Predicate declares a synchronous boolean condition that can not fail.
func Predicate(fn func(b Bindings) bool, params ...string) Condition {
	if fn == nil {
		return Condition{}
	}

	c := Sync(func(_ context.Context, b Bindings) (any, error) {
		return fn(b), nil
	}, params...)
	c.text = funcName(fn)

	return c
}

// WithText returns a copy of c documented with the given text instead of its function name.
func (c Condition) WithText(text string) Condition {
	c.text = text
	return c
}

// Params returns the declared parameter names.
func (c Condition) Params() []string {
	return append([]string(nil), c.params...)
}

// Text returns the human-readable form of the condition used in the schema.
func (c Condition) Text() string {
	return c.text
}

// IsAsync reports whether the condition resolves through a Future.
func (c Condition) IsAsync() bool {
	return c.kind == asyncCondition
}

func (c Condition) valid() bool {
	return c.kind == syncCondition && c.sync != nil || c.kind == asyncCondition && c.async != nil
}

func (c Condition) declares(name string) bool {
	for _, p := range c.params {
		if p == name {
			return true
		}
	}

	return false
}

// evaluate runs the condition and resolves it to a value. Errors returned by the
// condition itself are passed through untouched.
func evaluate(ctx context.Context, c Condition, b Bindings) (any, error) {
	if c.kind == syncCondition {
		return c.sync(ctx, b)
	}

	future := c.async(ctx, b)
	if future == nil {
		return nil, ErrNilFuture
	}

	select {
	case outcome, ok := <-future:
		if !ok {
			return nil, ErrFutureClosed
		}

		var panicErr *PanicError
		if errors.As(outcome.Err, &panicErr) {
			panic(panicErr)
		}

		return outcome.Value, outcome.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Bindings is the view a condition has of one call: its declared arguments and,
// for postconditions, the handler result and the OLD container when declared.
type Bindings struct {
	args   Args
	result any
	old    *Old
}

// NewBindings builds Bindings directly, which is useful for testing conditions in isolation.
func NewBindings(args Args, result any, old *Old) Bindings {
	return Bindings{args: args, result: result, old: old}
}

func bindingsFor(c Condition, args Args, result any, old *Old) Bindings {
	b := Bindings{args: args.pick(c.params)}
	if c.declares(ResultParam) {
		b.result = result
	}
	if c.declares(OldParam) {
		b.old = old
	}

	return b
}

// Arg returns the named argument, or nil if it was not declared or not supplied.
func (b Bindings) Arg(name string) any {
	return b.args[name]
}

// Lookup returns the named argument and whether it is present.
func (b Bindings) Lookup(name string) (any, bool) {
	v, ok := b.args[name]
	return v, ok
}

// Args returns a copy of the visible arguments.
func (b Bindings) Args() Args {
	cp := make(Args, len(b.args))
	for k, v := range b.args {
		cp[k] = v
	}

	return cp
}

// Result returns the handler result. It is nil unless the condition declared ResultParam.
func (b Bindings) Result() any {
	return b.result
}

// Old returns the OLD container. It is nil unless the condition declared OldParam.
func (b Bindings) Old() *Old {
	return b.old
}

// Arg returns the named argument of b converted to T, or the zero value of T.
func Arg[T any](b Bindings, name string) T {
	v, _ := b.Arg(name).(T)
	return v
}

// Result returns the handler result of b converted to T, or the zero value of T.
func Result[T any](b Bindings) T {
	v, _ := b.Result().(T)
	return v
}

// Truthy reports whether v counts as a satisfied condition: nil, false, numeric zero
// and empty strings, slices, maps and arrays are falsy, everything else is truthy.
func Truthy(v any) bool {
	if v == nil {
		return false
	}

	if b, ok := v.(bool); ok {
		return b
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface, reflect.Func:
		return !rv.IsNil()
	default:
		return true
	}
}

func funcName(fn any) string {
	pc := reflect.ValueOf(fn).Pointer()
	f := runtime.FuncForPC(pc)
	if f == nil {
		return ""
	}

	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	return strings.TrimSuffix(name, "-fm")
}
