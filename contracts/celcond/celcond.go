// Package celcond builds contract conditions from CEL expressions.
//
// Every declared parameter becomes a CEL variable of dynamic type. Postconditions may
// declare contracts.ResultParam and contracts.OldParam; OLD is exposed as a map from
// snapshot name to captured value, so `OLD.count == size(result)` works as expected.
// The expression source is used as the condition text in the schema.
package celcond

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/endpoint-contracts-go/contracts"
)

var (
	// ErrCompile is returned when an expression does not compile.
	ErrCompile = errors.New("celcond: expression does not compile")
	// ErrNotBoolean is returned when a predicate expression can never evaluate to a bool.
	ErrNotBoolean = errors.New("celcond: predicate expression is not boolean")
)

const (
	defaultCostLimit              = 10000
	defaultInterruptCheckFrequency = 100
)

// Compiler compiles expressions into contract conditions and caches the compiled programs.
// It is safe for concurrent use.
type Compiler struct {
	costLimit uint64
	prgCache  map[string]cel.Program
	mu        sync.RWMutex
}

// Option defines a functional option for configuring a Compiler.
type Option func(*Compiler) error

// WithCostLimit sets the evaluation cost limit of every compiled program.
func WithCostLimit(limit uint64) Option {
	return func(c *Compiler) error {
		if limit == 0 {
			return errors.New("celcond: cost limit must be positive")
		}

		c.costLimit = limit

		return nil
	}
}

// NewCompiler creates a Compiler.
func NewCompiler(options ...Option) (*Compiler, error) {
	c := &Compiler{
		costLimit: defaultCostLimit,
		prgCache:  make(map[string]cel.Program),
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Predicate compiles expr into a condition for Require or Ensure.
func (c *Compiler) Predicate(expr string, params ...string) (contracts.Condition, error) {
	return c.condition(expr, params, true)
}

// Capture compiles expr into a capture function for Snapshot. The expression may return any value.
func (c *Compiler) Capture(expr string, params ...string) (contracts.Condition, error) {
	return c.condition(expr, params, false)
}

// MustPredicate is like Predicate but panics if expr does not compile.
func (c *Compiler) MustPredicate(expr string, params ...string) contracts.Condition {
	cond, err := c.Predicate(expr, params...)
	if err != nil {
		panic(err)
	}

	return cond
}

// MustCapture is like Capture but panics if expr does not compile.
func (c *Compiler) MustCapture(expr string, params ...string) contracts.Condition {
	cond, err := c.Capture(expr, params...)
	if err != nil {
		panic(err)
	}

	return cond
}

func (c *Compiler) condition(expr string, params []string, predicate bool) (contracts.Condition, error) {
	prg, err := c.program(expr, params, predicate)
	if err != nil {
		return contracts.Condition{}, err
	}

	eval := func(ctx context.Context, b contracts.Bindings) (any, error) {
		out, _, err := prg.ContextEval(ctx, activation(params, b))
		if err != nil {
			return nil, fmt.Errorf("celcond: eval %q: %w", expr, err)
		}

		return out.Value(), nil
	}

	return contracts.Sync(eval, params...).WithText(expr), nil
}

func (c *Compiler) program(expr string, params []string, predicate bool) (cel.Program, error) {
	key := cacheKey(expr, params, predicate)

	c.mu.RLock()
	prg, hit := c.prgCache[key]
	c.mu.RUnlock()

	if hit {
		return prg, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prg, hit = c.prgCache[key]; hit {
		return prg, nil
	}

	vars := make([]cel.EnvOption, 0, len(params))
	for _, name := range params {
		vars = append(vars, cel.Variable(name, cel.DynType))
	}

	env, err := cel.NewEnv(vars...)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrCompile, expr, err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrCompile, expr, issues.Err())
	}

	if predicate && !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
		return nil, fmt.Errorf("%w: %q yields %s", ErrNotBoolean, expr, ast.OutputType())
	}

	prg, err = env.Program(ast,
		cel.InterruptCheckFrequency(defaultInterruptCheckFrequency),
		cel.CostLimit(c.costLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrCompile, expr, err)
	}

	c.prgCache[key] = prg

	return prg, nil
}

// CachedPrograms returns the number of compiled programs held by c.
func (c *Compiler) CachedPrograms() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.prgCache)
}

func cacheKey(expr string, params []string, predicate bool) string {
	sorted := append([]string(nil), params...)
	sort.Strings(sorted)

	return fmt.Sprintf("%t|%s|%s", predicate, strings.Join(sorted, ","), expr)
}

func activation(params []string, b contracts.Bindings) map[string]any {
	vars := make(map[string]any, len(params))

	for _, name := range params {
		switch name {
		case contracts.ResultParam:
			vars[name] = toCEL(b.Result())
		case contracts.OldParam:
			old := b.Old()
			snapshots := make(map[string]any, old.Len())
			for _, slot := range old.Names() {
				snapshots[slot] = toCEL(old.Value(slot))
			}
			vars[name] = snapshots
		default:
			vars[name] = toCEL(b.Arg(name))
		}
	}

	return vars
}

// toCEL passes scalars through and turns everything else into its JSON shape, so structs
// are addressed by their JSON field names.
func toCEL(v any) any {
	switch v.(type) {
	case nil, bool, string, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	}

	raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v)
	if err != nil {
		return v
	}

	var shaped any
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &shaped); err != nil {
		return v
	}

	return shaped
}
