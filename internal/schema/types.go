package schema

import (
	"strings"
)

// TypeKind identifies a Type node.
type TypeKind int

const (
	TypeBasic TypeKind = iota
	TypeNamed
	TypeParamRef
	TypePointer
	TypeSlice
	TypeArray
	TypeMap
	TypeOpaque
)

// Type is a reference to a Go type as written in a declaration.
// String renders it back as Go source.
type Type interface {
	Kind() TypeKind
	String() string
}

// Basic is a predeclared type such as int or string.
type Basic struct{ Name string }

func (*Basic) Kind() TypeKind    { return TypeBasic }
func (b *Basic) String() string { return b.Name }

// Named is a defined type, possibly from another package, possibly instantiated.
type Named struct {
	Pkg  string // package qualifier as written, empty for local types
	Name string
	Args []Type
	// Underlying is the declared underlying type for local types, nil otherwise.
	Underlying Type
}

func (*Named) Kind() TypeKind { return TypeNamed }

func (n *Named) String() string {
	var b strings.Builder
	if n.Pkg != "" {
		b.WriteString(n.Pkg)
		b.WriteByte('.')
	}
	b.WriteString(n.Name)
	if len(n.Args) > 0 {
		b.WriteByte('[')
		for i, a := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteByte(']')
	}
	return b.String()
}

// Local reports whether the type is declared in the package being generated.
func (n *Named) Local() bool { return n.Pkg == "" }

// Param is a reference to one of the container's type parameters.
type Param struct{ Name string }

func (*Param) Kind() TypeKind    { return TypeParamRef }
func (p *Param) String() string { return p.Name }

// Pointer is *Elem.
type Pointer struct{ Elem Type }

func (*Pointer) Kind() TypeKind    { return TypePointer }
func (p *Pointer) String() string { return "*" + p.Elem.String() }

// Slice is []Elem.
type Slice struct{ Elem Type }

func (*Slice) Kind() TypeKind    { return TypeSlice }
func (s *Slice) String() string { return "[]" + s.Elem.String() }

// Array is [Len]Elem; Len is the length expression as written.
type Array struct {
	Len  string
	Elem Type
}

func (*Array) Kind() TypeKind    { return TypeArray }
func (a *Array) String() string { return "[" + a.Len + "]" + a.Elem.String() }

// Map is map[Key]Elem.
type Map struct{ Key, Elem Type }

func (*Map) Kind() TypeKind { return TypeMap }
func (m *Map) String() string {
	return "map[" + m.Key.String() + "]" + m.Elem.String()
}

// Opaque is any other type expression (func, chan, interface, anonymous
// struct); it is always encoded plainly.
type Opaque struct{ Expr string }

func (*Opaque) Kind() TypeKind    { return TypeOpaque }
func (o *Opaque) String() string { return o.Expr }

// Subst replaces type parameter references by the types in args.
func Subst(t Type, args map[string]Type) Type {
	switch x := t.(type) {
	case *Param:
		if a, ok := args[x.Name]; ok {
			return a
		}
		return x
	case *Named:
		if len(x.Args) == 0 {
			return x
		}
		out := &Named{Pkg: x.Pkg, Name: x.Name, Underlying: x.Underlying}
		for _, a := range x.Args {
			out.Args = append(out.Args, Subst(a, args))
		}
		return out
	case *Pointer:
		return &Pointer{Elem: Subst(x.Elem, args)}
	case *Slice:
		return &Slice{Elem: Subst(x.Elem, args)}
	case *Array:
		return &Array{Len: x.Len, Elem: Subst(x.Elem, args)}
	case *Map:
		return &Map{Key: Subst(x.Key, args), Elem: Subst(x.Elem, args)}
	}
	return t
}

// StringKeyed reports whether t can key a record on the wire: a string or
// a type whose underlying type is string.
func StringKeyed(t Type) bool {
	switch x := t.(type) {
	case *Basic:
		return x.Name == "string"
	case *Named:
		if x.Underlying != nil {
			return StringKeyed(x.Underlying)
		}
	}
	return false
}
