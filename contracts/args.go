package contracts

import (
	"sort"
)

const (
	// ResultParam is the reserved parameter name under which a postcondition receives the handler result.
	ResultParam = "result"
	// OldParam is the reserved parameter name under which a postcondition receives the OLD container.
	OldParam = "OLD"
)

// Args holds the named arguments of one endpoint call, as bound from the request.
type Args map[string]any

func (a Args) pick(names []string) Args {
	picked := make(Args, len(names))
	for _, name := range names {
		if v, ok := a[name]; ok {
			picked[name] = v
		}
	}

	return picked
}

// Old is the per-call container of snapshot values captured before the handler ran.
// Each slot is written exactly once; postconditions only read it.
type Old struct {
	values map[string]any
}

func newOld() *Old {
	return &Old{values: make(map[string]any)}
}

func (o *Old) set(name string, value any) error {
	if _, exists := o.values[name]; exists {
		return ErrDuplicateSnapshot
	}

	o.values[name] = value

	return nil
}

// Get returns the value captured under name.
func (o *Old) Get(name string) (any, bool) {
	if o == nil {
		return nil, false
	}

	v, ok := o.values[name]

	return v, ok
}

// Value returns the value captured under name, or nil.
func (o *Old) Value(name string) any {
	v, _ := o.Get(name)
	return v
}

// Names returns the captured snapshot names in sorted order.
func (o *Old) Names() []string {
	if o == nil {
		return nil
	}

	names := make([]string, 0, len(o.values))
	for name := range o.values {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Len returns the number of captured snapshots.
func (o *Old) Len() int {
	if o == nil {
		return 0
	}

	return len(o.values)
}

// OldValue returns the snapshot captured under name converted to T, or the zero value of T.
func OldValue[T any](o *Old, name string) T {
	v, _ := o.Value(name).(T)
	return v
}
