// Package gen renders Go source for the state-threading encode and decode
// operations of a resolved, inferred batch of containers.
package gen

import (
	"bytes"
	"fmt"
	"go/format"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/reoring/statecodec/internal/bounds"
	"github.com/reoring/statecodec/internal/schema"
)

// Header starts every generated file.
const Header = "// Code generated by statecodec; DO NOT EDIT."

// RuntimePath is the import path generated code depends on.
const RuntimePath = "github.com/reoring/statecodec"

// File is one output file.
type File struct {
	Package string
	// BuildTags, when set, is written as a //go:build line.
	BuildTags string
	Catalog   *schema.Catalog
	Bounds    *bounds.Set
}

// RenderFile emits the operations for every container of f in declared
// order and gofmt's the result.
func RenderFile(f File) ([]byte, error) {
	if f.Package == "" {
		return nil, fmt.Errorf("gen: package name is required")
	}
	e := &emitter{set: f.Bounds}
	e.line(Header)
	e.line("")
	if f.BuildTags != "" {
		e.line("//go:build %s", f.BuildTags)
		e.line("")
	}
	e.line("package %s", f.Package)
	e.line("")
	e.line("import (")
	e.line("\tstatecodec %q", RuntimePath)
	e.line(")")
	for _, c := range f.Catalog.Containers {
		r := f.Bounds.Get(c.Name)
		if r == nil {
			return nil, fmt.Errorf("gen: no bounds for container %s", c.Name)
		}
		e.line("")
		if err := e.container(r); err != nil {
			return nil, err
		}
		Logger().Debug("rendered container",
			zap.String("container", c.Name),
			zap.Bool("methods", r.Methods()),
		)
	}
	out, err := format.Source(e.buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("gen: formatting generated source: %w\n%s", err, e.buf.Bytes())
	}
	return out, nil
}

type emitter struct {
	buf bytes.Buffer
	set *bounds.Set
	n   int
}

func (e *emitter) line(format string, args ...any) {
	if len(args) > 0 {
		fmt.Fprintf(&e.buf, format, args...)
	} else {
		e.buf.WriteString(format)
	}
	e.buf.WriteByte('\n')
}

func (e *emitter) fresh(prefix string) string {
	e.n++
	return prefix + strconv.Itoa(e.n)
}

// scope is the per-container naming context.
type scope struct {
	res *bounds.Result
	// state is the state type as written in signatures: a type parameter
	// name, or the concrete type.
	state string
	// stateParam is empty when the state is concrete.
	stateParam string
	ptrs       map[string]string
}

func newScope(r *bounds.Result) *scope {
	sc := &scope{res: r, ptrs: map[string]string{}}
	used := map[string]bool{}
	for _, p := range r.Container.Params {
		used[p.Name] = true
	}
	unique := func(name string) string {
		for used[name] {
			name += "_"
		}
		used[name] = true
		return name
	}
	if r.State.Kind == bounds.StateConcrete {
		sc.state = r.State.Type
	} else {
		sc.stateParam = unique("S")
		sc.state = sc.stateParam
	}
	for _, p := range r.ThreadedParams() {
		sc.ptrs[p] = unique("P" + p)
	}
	return sc
}

// typeParams renders the bracketed type parameter list, or "".
func (sc *scope) typeParams() string {
	var ps []string
	if sc.stateParam != "" {
		ps = append(ps, sc.stateParam+" "+sc.res.State.Constraint())
	}
	for _, p := range sc.res.Container.Params {
		ps = append(ps, p.Name+" "+p.Constraint)
	}
	for _, p := range sc.res.ThreadedParams() {
		ps = append(ps, fmt.Sprintf("%s statecodec.Ptr[%s, %s]", sc.ptrs[p], p, sc.state))
	}
	if len(ps) == 0 {
		return ""
	}
	return "[" + strings.Join(ps, ", ") + "]"
}

// selfType is the container type instantiated with its own parameters.
func (sc *scope) selfType() string {
	c := sc.res.Container
	if len(c.Params) == 0 {
		return c.Name
	}
	return c.Name + "[" + strings.Join(c.ParamNames(), ", ") + "]"
}

func encodeName(name string) string { return "Encode" + name + "State" }
func decodeName(name string) string { return "Decode" + name + "State" }

// inst renders the instantiation of callee's generated functions at a call
// site in sc with the given type arguments.
func (e *emitter) inst(sc *scope, target string, args []schema.Type) string {
	cr := e.set.Get(target)
	var out []string
	if cr.State.Kind != bounds.StateConcrete {
		out = append(out, sc.state)
	}
	for _, a := range args {
		out = append(out, a.String())
	}
	for i, p := range cr.Container.Params {
		if !cr.Threaded(p.Name) {
			continue
		}
		if pr, ok := args[i].(*schema.Param); ok {
			out = append(out, sc.ptrs[pr.Name])
		} else {
			out = append(out, "*"+args[i].String())
		}
	}
	if len(out) == 0 {
		return ""
	}
	return "[" + strings.Join(out, ", ") + "]"
}

func (e *emitter) container(r *bounds.Result) error {
	sc := newScope(r)
	c := r.Container
	switch {
	case c.Kind == schema.KindUnion:
		e.unionEncode(sc)
		e.line("")
		e.unionDecode(sc)
	case r.Methods():
		e.line("// EncodeState encodes v, handing state to every stateful field.")
		e.n = 0
		e.line("func (v *%s) EncodeState(state %s, sink statecodec.Sink) error {", c.Name, sc.state)
		e.recordEncodeBody(sc)
		e.line("}")
		e.line("")
		e.line("// DecodeState decodes into v, handing state to every stateful field.")
		e.line("// v is left unchanged on error.")
		e.n = 0
		e.line("func (v *%s) DecodeState(state %s, src statecodec.Source) error {", c.Name, sc.state)
		e.recordDecodeBody(sc)
		e.line("}")
	default:
		e.line("// %s encodes v, handing state to every stateful field.", encodeName(c.Name))
		e.n = 0
		e.line("func %s%s(v *%s, state %s, sink statecodec.Sink) error {", encodeName(c.Name), sc.typeParams(), sc.selfType(), sc.state)
		e.recordEncodeBody(sc)
		e.line("}")
		e.line("")
		e.line("// %s decodes into v, handing state to every stateful field.", decodeName(c.Name))
		e.line("// v is left unchanged on error.")
		e.n = 0
		e.line("func %s%s(v *%s, state %s, src statecodec.Source) error {", decodeName(c.Name), sc.typeParams(), sc.selfType(), sc.state)
		e.recordDecodeBody(sc)
		e.line("}")
	}
	return nil
}
