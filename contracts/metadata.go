package contracts

import (
	"fmt"
)

// Kind is the kind of a contract.
type Kind string

// Contract kinds.
const (
	KindPrecondition  Kind = "precondition"
	KindPostcondition Kind = "postcondition"
	KindSnapshot      Kind = "snapshot"
)

// Metadata is the static description of a require or ensure contract.
// Description and StatusCode are nil when absent; StatusCode is only ever set on preconditions.
type Metadata struct {
	Kind        Kind
	Description *string
	StatusCode  *int
	Enforced    bool
	Documented  bool
	Text        string
}

// SnapshotMetadata is the static description of a snapshot.
type SnapshotMetadata struct {
	Name       string
	Enabled    bool
	Documented bool
	Text       string
}

// Contracts is everything documented on one chain, in decoration order (outermost first).
type Contracts struct {
	Contracts []Metadata
	Snapshots []SnapshotMetadata
}

// Empty reports whether nothing is documented.
func (c Contracts) Empty() bool {
	return len(c.Contracts) == 0 && len(c.Snapshots) == 0
}

// Walk visits every endpoint of the chain starting at ep, outermost first, ending at the
// terminal *Handler. It fails with ErrOpaqueEndpoint on an endpoint it can not see through
// and with ErrSignatureMismatch on a wrapper whose signature differs from its inner one.
// Returning a non-nil error from fn stops the walk.
func Walk(ep Endpoint, fn func(Endpoint) error) error {
	for depth := 0; ; depth++ {
		if ep == nil {
			return newConfigError("walk", ErrNilEndpoint, "at depth %d", depth)
		}

		if err := fn(ep); err != nil {
			return err
		}

		if _, ok := ep.(*Handler); ok {
			return nil
		}

		unwrapper, ok := ep.(Unwrapper)
		if !ok {
			return newConfigError("walk", ErrOpaqueEndpoint, "%T at depth %d", ep, depth)
		}

		inner := unwrapper.Unwrap()
		if inner == nil {
			return newConfigError("walk", ErrNilEndpoint, "%T at depth %d wraps nothing", ep, depth)
		}

		if !ep.Signature().Equal(inner.Signature()) {
			return newConfigError("walk", ErrSignatureMismatch, "%T at depth %d", ep, depth)
		}

		ep = inner
	}
}

// Inspect collects the documented contracts and snapshots of the chain starting at ep.
func Inspect(ep Endpoint) (Contracts, error) {
	var found Contracts

	err := Walk(ep, func(e Endpoint) error {
		switch layer := e.(type) {
		case *RequireLayer:
			if layer.meta.Documented {
				found.Contracts = append(found.Contracts, layer.Metadata())
			}
		case *EnsureLayer:
			if layer.meta.Documented {
				found.Contracts = append(found.Contracts, layer.Metadata())
			}
		case *SnapshotLayer:
			if layer.meta.Documented {
				found.Snapshots = append(found.Snapshots, layer.Metadata())
			}
		}

		return nil
	})
	if err != nil {
		return Contracts{}, err
	}

	return found, nil
}

// String renders m the way it appears in logs.
func (m Metadata) String() string {
	desc := m.Text
	if m.Description != nil {
		desc = *m.Description
	}

	if m.StatusCode != nil {
		return fmt.Sprintf("%s(%d): %s", m.Kind, *m.StatusCode, desc)
	}

	return fmt.Sprintf("%s: %s", m.Kind, desc)
}
