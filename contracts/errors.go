package contracts

import (
	"errors"
	"fmt"
)

// Configuration errors. They are returned wrapped in a *ConfigError, so both errors.Is
// against the sentinel and errors.As against *ConfigError work.
var (
	ErrNilEndpoint               = errors.New("nil endpoint supplied")
	ErrNilCondition              = errors.New("nil condition supplied")
	ErrNilFuture                 = errors.New("async condition returned a nil future")
	ErrFutureClosed              = errors.New("async condition closed its future without an outcome")
	ErrEmptySnapshotName         = errors.New("empty snapshot name supplied")
	ErrDuplicateSnapshot         = errors.New("duplicate snapshot name")
	ErrMissingSnapshot           = errors.New("postcondition reads OLD but the chain has no enabled snapshot")
	ErrUnknownParameter          = errors.New("condition declares a parameter the endpoint does not have")
	ErrReservedParameter         = errors.New("reserved parameter is not allowed here")
	ErrInvalidStatusCode         = errors.New("failure status code must be within 400..599")
	ErrStatusCodeOnPostcondition = errors.New("a failure status code can only be set on a precondition")
	ErrOpaqueEndpoint            = errors.New("endpoint in the chain can not be introspected")
	ErrSignatureMismatch         = errors.New("wrapper does not preserve the signature of the wrapped endpoint")
	ErrOptionNotApplicable       = errors.New("option does not apply to this kind of contract")
	ErrInvalidMode               = errors.New("invalid enforcement mode")
	ErrInvalidRateLimit          = errors.New("violation log limit must be positive")
)

// ConfigError reports a mistake in how contracts were declared or composed.
// It is distinct from a contract violation: it means the service is wired wrongly,
// and it is raised at decoration time whenever the mistake is detectable there.
type ConfigError struct {
	Op  string
	Err error
}

func newConfigError(op string, err error, format string, args ...any) *ConfigError {
	if format == "" {
		return &ConfigError{Op: op, Err: err}
	}

	return &ConfigError{Op: op, Err: fmt.Errorf("%w: "+format, append([]any{err}, args...)...)}
}

func (e *ConfigError) Error() string {
	return "contracts: invalid configuration in " + e.Op + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// PreconditionError is returned by a require layer whose condition did not hold.
// It is client-attributable; the router turns it into a response with StatusCode.
type PreconditionError struct {
	StatusCode  int
	Description string
	Text        string
}

func (e *PreconditionError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("pre-condition violated (%d): %s", e.StatusCode, e.Text)
	}

	return fmt.Sprintf("pre-condition violated (%d): %s", e.StatusCode, e.Description)
}

// Detail is the client-facing message, empty when the contract has no description.
func (e *PreconditionError) Detail() string {
	if e.Description == "" {
		return ""
	}

	return "Pre-condition violated: " + e.Description
}

// PostconditionError is returned by an ensure layer whose condition did not hold after the
// handler ran. It signals a defect in the service itself, never a client mistake.
type PostconditionError struct {
	Description string
	Text        string
}

func (e *PostconditionError) Error() string {
	if e.Description == "" {
		return "post-condition violated: " + e.Text
	}

	return "post-condition violated: " + e.Description
}

// Detail is the diagnostic message, empty when the contract has no description.
func (e *PostconditionError) Detail() string {
	if e.Description == "" {
		return ""
	}

	return "Post-condition violated: " + e.Description
}

// IsViolation reports whether err is a precondition or postcondition violation.
func IsViolation(err error) bool {
	var pre *PreconditionError
	var post *PostconditionError

	return errors.As(err, &pre) || errors.As(err, &post)
}

// PanicError is a panic recovered from a function run by Go.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("async condition panicked: %v\n%s", e.Value, e.Stack)
}
