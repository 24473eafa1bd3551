package contracts

import (
	"fmt"
	"os"
	"strings"
)

// EnvMode is the environment variable read by ModeFromEnv.
const EnvMode = "CONTRACTS_MODE"

// Mode selects what happens when a contract does not hold.
type Mode string

const (
	// Enforced rejects failed preconditions and turns failed postconditions into errors.
	Enforced Mode = "enforced"
	// Observed evaluates every contract but only logs and counts failures; responses are unaltered.
	Observed Mode = "observed"
)

// ParseMode parses s case-insensitively. An empty string means Enforced.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Enforced:
		return Enforced, nil
	case Observed:
		return Observed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// ModeFromEnv parses the environment variable key, for example EnvMode.
func ModeFromEnv(key string) (Mode, error) {
	return ParseMode(os.Getenv(key))
}

func (m Mode) String() string {
	return string(m)
}
