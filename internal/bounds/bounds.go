// Package bounds infers, for every container of a batch, the state binding,
// the minimal set of type parameters that must implement the state
// protocols, and a dispatch plan per field.
//
// A stateful field is followed to the narrowest type that needs the state:
// through pointers, slices, arrays and string-keyed map values, into type
// parameters, hand-written implementations and other containers of the
// batch. Reaching a container that is still being inferred is a
// RecursionError. A container that pins its state with a marker is never
// expanded by its callers: its constraints are taken as declared, so a cycle
// through it terminates regardless of declaration order.
package bounds

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/reoring/statecodec/internal/schema"
)

// Constraint is one inferred requirement. Param constraints become
// PT statecodec.Ptr[T, S] type parameters; the others are checked by the
// compiler at the call site and are listed for inspection only.
type Constraint struct {
	Subject string
	Param   bool
	Bound   string
}

// Result is the inference outcome for one container.
type Result struct {
	Container   *schema.Container
	State       State
	Constraints []Constraint
	// Coarse is set when a recursion marker disabled per-field inference.
	Coarse bool
	// Fields is aligned with Container.Fields; skipped fields have no plan.
	Fields []*Plan
	// Variants is aligned with Container.Variants and their fields.
	Variants [][]*Plan
}

// Methods reports whether the container gets EncodeState/DecodeState
// methods rather than generic functions.
func (r *Result) Methods() bool {
	c := r.Container
	return c.Kind == schema.KindRecord && len(c.Params) == 0 && r.State.Kind == StateConcrete
}

// Threaded reports whether type parameter name is constrained.
func (r *Result) Threaded(name string) bool {
	for _, c := range r.Constraints {
		if c.Param && c.Subject == name {
			return true
		}
	}
	return false
}

// ThreadedParams returns the constrained type parameters in declared order.
func (r *Result) ThreadedParams() []string {
	var out []string
	for _, p := range r.Container.Params {
		if r.Threaded(p.Name) {
			out = append(out, p.Name)
		}
	}
	return out
}

func (r *Result) addParam(name string) {
	if r.Threaded(name) {
		return
	}
	r.Constraints = append(r.Constraints, Constraint{Subject: name, Param: true, Bound: "statecodec.Ptr[" + name + ", S]"})
}

func (r *Result) require(subject, bound string) {
	for _, c := range r.Constraints {
		if c.Subject == subject {
			return
		}
	}
	r.Constraints = append(r.Constraints, Constraint{Subject: subject, Bound: bound})
}

// Set holds the results of one batch in declared order.
type Set struct {
	Order   []string
	Results map[string]*Result
}

// Get returns the result for container name, nil if it is not in the batch.
func (s *Set) Get(name string) *Result { return s.Results[name] }

// Infer runs inference over every container of a resolved catalog.
func Infer(cat *schema.Catalog) (*Set, error) {
	in := &inferer{
		cat:    cat,
		byName: make(map[string]*schema.Container, len(cat.Containers)),
		done:   make(map[string]*Result, len(cat.Containers)),
	}
	for _, c := range cat.Containers {
		if !c.Resolved {
			return nil, fmt.Errorf("bounds: container %s is not resolved", c.Name)
		}
		in.byName[c.Name] = c
	}
	set := &Set{Results: make(map[string]*Result, len(cat.Containers))}
	for _, c := range cat.Containers {
		if _, err := in.infer(c.Name); err != nil {
			return nil, err
		}
	}
	// Marked containers are planned last: every caller only needs their
	// pinned state, so their fields see the rest of the batch settled.
	for _, name := range in.pinned {
		if err := in.planAll(in.done[name]); err != nil {
			return nil, err
		}
	}
	for _, c := range cat.Containers {
		r := in.done[c.Name]
		set.Order = append(set.Order, c.Name)
		set.Results[c.Name] = r
		Logger().Debug("inferred bounds",
			zap.String("container", c.Name),
			zap.String("state", r.State.String()),
			zap.Bool("coarse", r.Coarse),
			zap.Strings("threaded", r.ThreadedParams()),
		)
	}
	return set, nil
}

type inferer struct {
	cat    *schema.Catalog
	byName map[string]*schema.Container
	done   map[string]*Result
	stack  []string
	pinned []string
}

func (in *inferer) infer(name string) (*Result, error) {
	if r, ok := in.done[name]; ok {
		return r, nil
	}
	if i := slices.Index(in.stack, name); i >= 0 {
		cycle := append(slices.Clone(in.stack[i:]), name)
		return nil, &schema.RecursionError{Container: name, Cycle: cycle}
	}
	c := in.byName[name]
	r := &Result{Container: c}

	if c.Marker.Kind != schema.MarkerNone {
		r.Coarse = true
		r.State = State{Kind: StateConcrete, Type: c.Marker.Type}
		if c.Marker.Kind == schema.MarkerCapability {
			r.State.Kind = StateCapability
		}
		for _, p := range c.Params {
			r.addParam(p.Name)
		}
		in.done[name] = r
		in.pinned = append(in.pinned, name)
		return r, nil
	}

	in.stack = append(in.stack, name)
	err := in.planAll(r)
	in.stack = in.stack[:len(in.stack)-1]
	if err != nil {
		return nil, err
	}
	in.done[name] = r
	return r, nil
}

func (in *inferer) planAll(r *Result) error {
	c := r.Container
	switch c.Kind {
	case schema.KindRecord:
		plans, err := in.planFields(r, c.Name, c.Fields)
		if err != nil {
			return err
		}
		r.Fields = plans
	case schema.KindUnion:
		for _, v := range c.Variants {
			plans, err := in.planFields(r, c.Name+"/"+v.Name, v.Fields)
			if err != nil {
				return err
			}
			r.Variants = append(r.Variants, plans)
		}
	}
	return nil
}

func (in *inferer) planFields(r *Result, element string, fields []schema.Field) ([]*Plan, error) {
	plans := make([]*Plan, len(fields))
	for i, f := range fields {
		if f.Omission == schema.SkipWithDefault {
			continue
		}
		if f.Mode == schema.Stateless {
			plans[i] = plain(f.Type)
			continue
		}
		p, err := in.walk(r, f.Type, element+"."+f.Name)
		if err != nil {
			return nil, err
		}
		plans[i] = p
	}
	return plans, nil
}

func (in *inferer) walk(r *Result, t schema.Type, element string) (*Plan, error) {
	switch x := t.(type) {
	case *schema.Param:
		r.addParam(x.Name)
		return &Plan{Kind: PlanParam, Type: t, Param: x.Name}, nil
	case *schema.Pointer:
		return in.wrap(r, PlanPointer, t, x.Elem, element)
	case *schema.Slice:
		return in.wrap(r, PlanSlice, t, x.Elem, element)
	case *schema.Array:
		return in.wrap(r, PlanArray, t, x.Elem, element)
	case *schema.Map:
		p, err := in.wrap(r, PlanMap, t, x.Elem, element)
		if err != nil || p.Kind == PlanPlain {
			return p, err
		}
		if !schema.StringKeyed(x.Key) {
			return nil, &schema.SchemaError{
				Element: element,
				Detail:  fmt.Sprintf("map key %s must be string based for the state to reach its values; mark the field stateless", x.Key),
			}
		}
		return p, nil
	case *schema.Named:
		if !x.Local() {
			return plain(t), nil
		}
		if callee := in.byName[x.Name]; callee != nil {
			return in.call(r, callee, x, element)
		}
		if impl, ok := in.cat.Impls[x.Name]; ok && len(x.Args) == 0 {
			return in.useImpl(r, impl, t, element)
		}
	}
	return plain(t), nil
}

func (in *inferer) wrap(r *Result, kind PlanKind, t, elem schema.Type, element string) (*Plan, error) {
	ep, err := in.walk(r, elem, element)
	if err != nil {
		return nil, err
	}
	if !ep.Threaded() {
		return plain(t), nil
	}
	return &Plan{Kind: kind, Type: t, Elem: ep}, nil
}

// bind folds the state required by a callee into r. It reports dynamic when
// r keeps a capability state and the callee needs a concrete one, which only
// a run-time assertion can bridge.
func (in *inferer) bind(r *Result, need State, element string) (dynamic bool, err error) {
	if r.Coarse {
		switch {
		case need.Kind == StateFree:
			return false, nil
		case r.State.Kind == StateCapability && need.Kind == StateConcrete:
			return true, nil
		}
		merged, err := unify(r.State, need)
		if err != nil || merged != r.State {
			return false, &schema.SchemaError{
				Element: element,
				Detail:  fmt.Sprintf("requires state %s but the container pins %s", need, r.State),
			}
		}
		return false, nil
	}
	merged, err := unify(r.State, need)
	if err != nil {
		return false, &schema.SchemaError{Element: element, Detail: err.Error()}
	}
	r.State = merged
	return false, nil
}

func (in *inferer) useImpl(r *Result, impl schema.Impl, t schema.Type, element string) (*Plan, error) {
	dynamic, err := in.bind(r, State{Kind: StateConcrete, Type: impl.State}, element)
	if err != nil {
		return nil, err
	}
	r.require(t.String(), "statecodec.Codec["+impl.State+"]")
	if dynamic {
		return &Plan{Kind: PlanDynamic, Type: t}, nil
	}
	return &Plan{Kind: PlanMethod, Type: t}, nil
}

func (in *inferer) call(r *Result, callee *schema.Container, t *schema.Named, element string) (*Plan, error) {
	if len(t.Args) != len(callee.Params) {
		return nil, &schema.SchemaError{
			Element: element,
			Detail:  fmt.Sprintf("%s takes %d type arguments, got %d", callee.Name, len(callee.Params), len(t.Args)),
		}
	}
	cr, err := in.infer(callee.Name)
	if err != nil {
		return nil, err
	}
	dynamic, err := in.bind(r, cr.State, element)
	if err != nil {
		return nil, err
	}
	if dynamic {
		if !cr.Methods() {
			return nil, &schema.SchemaError{
				Element: element,
				Detail:  fmt.Sprintf("%s needs state %s and cannot be reached from capability %s", callee.Name, cr.State.Type, r.State.Type),
			}
		}
		return &Plan{Kind: PlanDynamic, Type: t}, nil
	}
	for i, p := range callee.Params {
		if !cr.Threaded(p.Name) {
			continue
		}
		if err := in.satisfy(r, t.Args[i], element); err != nil {
			return nil, err
		}
	}
	if cr.Methods() {
		return &Plan{Kind: PlanMethod, Type: t}, nil
	}
	kind := PlanRecord
	if callee.Kind == schema.KindUnion {
		kind = PlanUnion
	}
	return &Plan{Kind: kind, Type: t, Target: callee.Name, Args: t.Args}, nil
}

// satisfy checks that arg can stand for a threaded type parameter, which
// needs *arg to have both methods.
func (in *inferer) satisfy(r *Result, arg schema.Type, element string) error {
	switch x := arg.(type) {
	case *schema.Param:
		r.addParam(x.Name)
		return nil
	case *schema.Named:
		if x.Local() && len(x.Args) == 0 {
			var need *State
			if impl, ok := in.cat.Impls[x.Name]; ok {
				need = &State{Kind: StateConcrete, Type: impl.State}
				r.require(x.String(), "statecodec.Codec["+impl.State+"]")
			} else if callee := in.byName[x.Name]; callee != nil {
				cr, err := in.infer(callee.Name)
				if err != nil {
					return err
				}
				if cr.Methods() {
					need = &cr.State
				}
			}
			if need != nil {
				dynamic, err := in.bind(r, *need, element)
				if err != nil {
					return err
				}
				if !dynamic {
					return nil
				}
			}
		}
	}
	return &schema.SchemaError{
		Element: element,
		Detail:  fmt.Sprintf("type argument %s is used in a stateful position but *%s does not implement the state protocols", arg, arg),
	}
}
