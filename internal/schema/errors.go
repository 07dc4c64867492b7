package schema

import (
	"fmt"
	"strings"
)

// SchemaError is a build-time error tied to one declaration element.
type SchemaError struct {
	Element    string // e.g. "Example.First" or "Shape/Circle"
	Annotation string // offending annotation text, if any
	Detail     string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("schema error")
	if e.Element != "" {
		b.WriteString(" in ")
		b.WriteString(e.Element)
	}
	if e.Annotation != "" {
		fmt.Fprintf(&b, " (annotation %q)", e.Annotation)
	}
	b.WriteString(": ")
	b.WriteString(e.Detail)
	return b.String()
}

// RecursionError reports a container whose constraint inference does not
// terminate because it reaches itself through its fields.
type RecursionError struct {
	Container string
	Cycle     []string // container names from Container back to Container
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("recursive container %s (%s): add //statecodec:state=T or //statecodec:state_implements=C to break the cycle",
		e.Container, strings.Join(e.Cycle, " -> "))
}
