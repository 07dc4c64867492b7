package bounds

import "fmt"

// StateKind says how much is known about the state type.
type StateKind int

const (
	// StateFree means any state type works; operations stay generic in S.
	StateFree StateKind = iota
	// StateConcrete pins S to a single type.
	StateConcrete
	// StateCapability keeps S generic, constrained by an interface.
	StateCapability
)

// State is the inferred state binding of a container.
type State struct {
	Kind StateKind
	Type string // concrete type or capability interface, empty when free
}

func (s State) String() string {
	switch s.Kind {
	case StateConcrete:
		return s.Type
	case StateCapability:
		return "S " + s.Type
	default:
		return "S any"
	}
}

// Constraint is the Go constraint text for the S type parameter.
func (s State) Constraint() string {
	if s.Kind == StateCapability {
		return s.Type
	}
	return "any"
}

// unify merges two requirements on the same state. A concrete type wins over
// a capability; the compiler checks that it actually implements it.
func unify(a, b State) (State, error) {
	switch {
	case a.Kind == StateFree:
		return b, nil
	case b.Kind == StateFree:
		return a, nil
	case a.Kind == b.Kind:
		if a.Type != b.Type {
			return a, fmt.Errorf("state %s conflicts with %s", a, b)
		}
		return a, nil
	case a.Kind == StateConcrete:
		return a, nil
	default:
		return b, nil
	}
}
