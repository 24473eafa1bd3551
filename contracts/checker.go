package contracts

import (
	"context"
	"errors"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Checker decorates endpoints with contracts and evaluates them at runtime.
// It owns the enforcement mode and the observability hooks; a Checker is safe for
// concurrent use once constructed.
type Checker struct {
	mode             Mode
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
	violationLimiter *rate.Limiter
}

// CheckerOption defines a functional option for configuring a Checker.
type CheckerOption func(*Checker) error

// NewChecker creates a Checker in Enforced mode, configured by options.
func NewChecker(options ...CheckerOption) (*Checker, error) {
	c := &Checker{mode: Enforced}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// WithMode sets the enforcement mode.
func WithMode(mode Mode) CheckerOption {
	return func(c *Checker) error {
		parsed, err := ParseMode(string(mode))
		if err != nil {
			return err
		}

		c.mode = parsed

		return nil
	}
}

// WithLogger sets the logger for the Checker.
// Debug level: failed preconditions and captured snapshots
// Warn level: violations observed in Observed mode
// Error level: failed postconditions and condition errors.
func WithLogger(logger Logger) CheckerOption {
	return func(c *Checker) error {
		c.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Checker.
// It takes precedence over the plain Logger.
func WithContextualLogger(logger ContextualLogger) CheckerOption {
	return func(c *Checker) error {
		c.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Checker.
func WithMetrics(collector MetricsCollector) CheckerOption {
	return func(c *Checker) error {
		c.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Checker.
func WithTracing(collector TracingCollector) CheckerOption {
	return func(c *Checker) error {
		c.tracingCollector = collector
		return nil
	}
}

// WithViolationLogLimit limits how many observed violations per second are logged.
// Violations over the limit are still counted in the metrics.
func WithViolationLogLimit(perSecond float64, burst int) CheckerOption {
	return func(c *Checker) error {
		if perSecond <= 0 || burst <= 0 {
			return ErrInvalidRateLimit
		}

		c.violationLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)

		return nil
	}
}

// Mode returns the enforcement mode of the Checker.
func (c *Checker) Mode() Mode {
	return c.mode
}

var defaultChecker = &Checker{mode: Enforced}

// Decorate wraps ep with decorators using an enforcing Checker without observability.
func Decorate(ep Endpoint, decorators ...Decorator) (Endpoint, error) {
	return defaultChecker.Decorate(ep, decorators...)
}

// MustDecorate is like Decorate but panics on a configuration error.
func MustDecorate(ep Endpoint, decorators ...Decorator) Endpoint {
	return defaultChecker.MustDecorate(ep, decorators...)
}

// Decorate wraps ep with decorators, listed outermost first, and validates the resulting chain.
// Every mistake that can be detected without running the chain is returned as a *ConfigError.
func (c *Checker) Decorate(ep Endpoint, decorators ...Decorator) (Endpoint, error) {
	if ep == nil {
		return nil, newConfigError("decorate", ErrNilEndpoint, "")
	}

	outer := ep
	for i := len(decorators) - 1; i >= 0; i-- {
		if decorators[i] == nil {
			return nil, newConfigError("decorate", ErrNilCondition, "decorator %d is nil", i)
		}

		next, err := decorators[i].apply(outer, c)
		if err != nil {
			return nil, err
		}

		outer = next
	}

	if err := validateChain(outer); err != nil {
		return nil, err
	}

	c.logInfo(context.Background(), logMsgDecorated, "layers", len(decorators))

	return outer, nil
}

// MustDecorate is like Decorate but panics on a configuration error.
func (c *Checker) MustDecorate(ep Endpoint, decorators ...Decorator) Endpoint {
	decorated, err := c.Decorate(ep, decorators...)
	if err != nil {
		panic(err)
	}

	return decorated
}

// validateChain checks the rules that need the whole chain: unique snapshot names and a
// snapshot for every enforced postcondition that reads OLD.
func validateChain(ep Endpoint) error {
	snapshots := make(map[string]struct{})
	enabledSnapshots := 0
	readsOld := false

	err := Walk(ep, func(e Endpoint) error {
		switch layer := e.(type) {
		case *SnapshotLayer:
			if _, exists := snapshots[layer.name]; exists {
				return newConfigError("snapshot", ErrDuplicateSnapshot, "%q", layer.name)
			}
			snapshots[layer.name] = struct{}{}
			if layer.meta.Enabled {
				enabledSnapshots++
			}
		case *EnsureLayer:
			if layer.meta.Enforced && layer.cond.declares(OldParam) {
				readsOld = true
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	if readsOld && enabledSnapshots == 0 {
		return newConfigError("ensure", ErrMissingSnapshot, "")
	}

	return nil
}

// check evaluates a require or ensure condition and reports whether it holds.
func (c *Checker) check(ctx context.Context, meta Metadata, cond Condition, b Bindings) (bool, error) {
	spanAttrs := map[string]string{AttrText: meta.Text, AttrMode: string(c.mode)}
	if meta.Description != nil {
		spanAttrs[AttrDescription] = *meta.Description
	}

	ctx, span := c.startSpan(ctx, meta.Kind, spanAttrs)
	start := time.Now()

	value, err := evaluate(ctx, cond, b)
	duration := time.Since(start)

	if err != nil {
		c.recordCheck(ctx, meta.Kind, StatusError, duration)
		c.finishSpan(span, StatusError, map[string]string{AttrError: err.Error()})
		c.logError(ctx, logMsgConditionError, err, AttrKind, string(meta.Kind), AttrText, meta.Text)

		return false, err
	}

	status := StatusPassed
	holds := Truthy(value)
	if !holds {
		status = StatusFailed
	}

	c.recordCheck(ctx, meta.Kind, status, duration)
	c.finishSpan(span, status, nil)

	return holds, nil
}

// capture evaluates a snapshot capture function.
func (c *Checker) capture(ctx context.Context, meta SnapshotMetadata, cond Condition, b Bindings) (any, error) {
	ctx, span := c.startSpan(ctx, KindSnapshot, map[string]string{AttrSnapshot: meta.Name, AttrText: meta.Text})
	start := time.Now()

	value, err := evaluate(ctx, cond, b)
	duration := time.Since(start)

	if err != nil {
		c.recordCheck(ctx, KindSnapshot, StatusError, duration)
		c.finishSpan(span, StatusError, map[string]string{AttrError: err.Error()})
		c.logError(ctx, logMsgConditionError, err, AttrKind, string(KindSnapshot), AttrSnapshot, meta.Name)

		return nil, err
	}

	c.recordCheck(ctx, KindSnapshot, StatusCaptured, duration)
	c.finishSpan(span, StatusCaptured, nil)
	c.logDebug(ctx, logMsgSnapshotCaptured, AttrSnapshot, meta.Name, AttrDurationMS, toMilliseconds(duration))

	return value, nil
}

// violated decides what a failed contract does to the call: in Enforced mode the violation
// is returned, in Observed mode it is logged and nil is returned.
func (c *Checker) violated(ctx context.Context, violation error) error {
	var pre *PreconditionError
	isPre := errors.As(violation, &pre)

	if c.mode == Observed {
		if c.violationLimiter == nil || c.violationLimiter.Allow() {
			c.logWarn(ctx, logMsgObservedViolation, AttrError, violation.Error())
		}

		return nil
	}

	if isPre {
		c.logDebug(ctx, logMsgPreconditionFailed, AttrStatusCode, strconv.Itoa(pre.StatusCode), AttrError, violation.Error())
		return violation
	}

	c.logError(ctx, logMsgPostconditionFailed, violation)

	return violation
}

