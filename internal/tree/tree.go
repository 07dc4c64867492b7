// Package tree holds the ordered, format-neutral value tree that every
// format encodes into and decodes from.
package tree

import (
	"fmt"
)

// Kind identifies the shape of a Node.
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindRecord
	KindSeq
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindRecord:
		return "record"
	case KindSeq:
		return "sequence"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Node is one value. Record fields keep wire order and duplicates.
type Node struct {
	Kind Kind
	// Value is the scalar. On encode it is whatever was handed to
	// Sink.Encode, which may itself be a composite Go value.
	Value  any
	Fields []Field
	Items  []*Node
	// Raw is the format-native form a decoder attached, if any.
	Raw any
}

// Field is a record entry.
type Field struct {
	Key   string
	Value *Node
}

// Describe names the node's shape for error messages.
func (n *Node) Describe() string {
	if n == nil {
		return "nothing"
	}
	if n.Kind == KindScalar {
		switch n.Value.(type) {
		case string:
			return "string"
		case bool:
			return "bool"
		case nil:
			return "null"
		default:
			return fmt.Sprintf("scalar %T", n.Value)
		}
	}
	return n.Kind.String()
}

// Depth returns the nesting depth of n; scalars and nulls have depth 0.
func (n *Node) Depth() int {
	d := 0
	switch n.Kind {
	case KindRecord:
		for _, f := range n.Fields {
			if c := f.Value.Depth() + 1; c > d {
				d = c
			}
		}
		if d == 0 {
			d = 1
		}
	case KindSeq:
		for _, it := range n.Items {
			if c := it.Depth() + 1; c > d {
				d = c
			}
		}
		if d == 0 {
			d = 1
		}
	}
	return d
}
