package schema

// Package schema defines the declaration model the generator works on:
// containers (records and unions), their fields and variants, type
// references, and the raw annotations attached to each element.

// ContainerKind tells records from unions.
type ContainerKind int

const (
	KindRecord ContainerKind = iota
	KindUnion
)

func (k ContainerKind) String() string {
	if k == KindUnion {
		return "union"
	}
	return "record"
}

// Mode decides whether a field threads the state.
type Mode int

const (
	Stateful Mode = iota
	Stateless
)

func (m Mode) String() string {
	if m == Stateless {
		return "stateless"
	}
	return "stateful"
}

// Omission decides whether a field appears on the wire.
type Omission int

const (
	Include Omission = iota
	SkipWithDefault
)

func (o Omission) String() string {
	if o == SkipWithDefault {
		return "skip"
	}
	return "include"
}

// Style is the payload shape of a union variant.
type Style int

const (
	StyleUnit Style = iota
	StyleNewtype
	StyleNamed
	StyleTuple
)

func (s Style) String() string {
	switch s {
	case StyleUnit:
		return "unit"
	case StyleNewtype:
		return "newtype"
	case StyleTuple:
		return "tuple"
	default:
		return "named"
	}
}

// MarkerKind is the container-level recursion marker.
type MarkerKind int

const (
	MarkerNone MarkerKind = iota
	// MarkerState pins the state to one concrete type (state=T).
	MarkerState
	// MarkerCapability keeps the state generic, constrained by an interface (state_implements=C).
	MarkerCapability
)

// Marker carries the type expression given to state= or state_implements=.
type Marker struct {
	Kind MarkerKind
	Type string
}

// TypeParam is a declared type parameter and its constraint text.
type TypeParam struct {
	Name       string
	Constraint string
}

// Container is a record or a union.
type Container struct {
	Name        string
	Kind        ContainerKind
	Params      []TypeParam
	Fields      []Field   // records
	Variants    []Variant // unions
	Annotations []Annotation

	// Set by resolution.
	Mode        Mode
	Transparent bool
	Marker      Marker
	Resolved    bool
}

// Field is a record or variant field.
type Field struct {
	Name        string
	Type        Type
	Annotations []Annotation

	// Set by resolution.
	Key      string
	Mode     Mode
	Omission Omission
}

// Variant is one member of a union.
type Variant struct {
	Name string
	// Pointer is true when *Name, not Name, implements the union interface.
	Pointer     bool
	Style       Style
	Fields      []Field
	Annotations []Annotation

	// Set by resolution.
	Mode Mode
}

// WireKey returns the resolved wire key, or the declared name before resolution.
func (f *Field) WireKey() string {
	if f.Key != "" {
		return f.Key
	}
	return f.Name
}

// Included returns the fields that appear on the wire, in declared order.
func Included(fields []Field) []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.Omission == Include {
			out = append(out, f)
		}
	}
	return out
}

// ParamNames returns the declared parameter names in order.
func (c *Container) ParamNames() []string {
	names := make([]string, len(c.Params))
	for i, p := range c.Params {
		names[i] = p.Name
	}
	return names
}

// Impl is a hand-written implementation of both protocols found on a named type.
type Impl struct {
	Type  string
	State string // the state type expression the methods accept
}

// Catalog is one generation batch: the containers to generate plus the
// hand-written implementations visible to them.
type Catalog struct {
	Package    string
	Containers []*Container
	Impls      map[string]Impl
}

// Lookup returns the container named name.
func (c *Catalog) Lookup(name string) *Container {
	for _, ct := range c.Containers {
		if ct.Name == name {
			return ct
		}
	}
	return nil
}
