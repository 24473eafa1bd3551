package contracts

import (
	"fmt"
)

// DefaultPreconditionStatus is the response status of a failed precondition without StatusCode.
const DefaultPreconditionStatus = 422

type settings struct {
	statusCode    int
	statusCodeSet bool
	description   *string
	enforced      bool
	enabled       bool
	documented    bool
	disabledSet   bool
	notEnforced   bool
}

func defaultSettings() settings {
	return settings{
		statusCode: DefaultPreconditionStatus,
		enforced:   true,
		enabled:    true,
		documented: true,
	}
}

// Option configures a single require, snapshot or ensure contract.
type Option func(*settings) error

// StatusCode sets the response status of a failed precondition. It must be within 400..599.
func StatusCode(code int) Option {
	return func(s *settings) error {
		if code < 400 || code > 599 {
			return fmt.Errorf("%w: got %d", ErrInvalidStatusCode, code)
		}

		s.statusCode = code
		s.statusCodeSet = true

		return nil
	}
}

// Description sets the human-readable description shown in the schema and in violation errors.
func Description(description string) Option {
	return func(s *settings) error {
		s.description = &description
		return nil
	}
}

// NotEnforced keeps the contract in the documentation but never evaluates it.
func NotEnforced() Option {
	return func(s *settings) error {
		s.enforced = false
		s.notEnforced = true

		return nil
	}
}

// Disabled turns a snapshot off at runtime. It stays in the documentation.
func Disabled() Option {
	return func(s *settings) error {
		s.enabled = false
		s.disabledSet = true

		return nil
	}
}

// Undocumented leaves the contract out of the schema.
func Undocumented() Option {
	return func(s *settings) error {
		s.documented = false
		return nil
	}
}

func applyOptions(op string, opts []Option) (settings, error) {
	s := defaultSettings()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&s); err != nil {
			return s, newConfigError(op, err, "")
		}
	}

	return s, nil
}
