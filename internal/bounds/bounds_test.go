package bounds_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reoring/statecodec/internal/bounds"
	"github.com/reoring/statecodec/internal/resolve"
	"github.com/reoring/statecodec/internal/schema"
)

var (
	intT     = &schema.Basic{Name: "int"}
	stringT  = &schema.Basic{Name: "string"}
	counterT = &schema.Named{Name: "Counter"}
)

func param(name string) *schema.Param { return &schema.Param{Name: name} }

func named(name string, args ...schema.Type) *schema.Named {
	return &schema.Named{Name: name, Args: args}
}

func fld(name string, t schema.Type, tag string) schema.Field {
	f := schema.Field{Name: name, Type: t}
	if tag != "" {
		f.Annotations = []schema.Annotation{{Level: schema.LevelField, Text: tag}}
	}
	return f
}

func rec(name, directive string, params []string, fields ...schema.Field) *schema.Container {
	c := &schema.Container{Name: name, Kind: schema.KindRecord, Fields: fields}
	for _, p := range params {
		c.Params = append(c.Params, schema.TypeParam{Name: p, Constraint: "any"})
	}
	if directive != "" {
		c.Annotations = []schema.Annotation{{Level: schema.LevelContainer, Text: directive}}
	}
	return c
}

func infer(t *testing.T, impls map[string]schema.Impl, containers ...*schema.Container) (*bounds.Set, error) {
	t.Helper()
	if impls == nil {
		impls = map[string]schema.Impl{"Counter": {Type: "Counter", State: "*Recorder"}}
	}
	cat, err := resolve.Catalog(&schema.Catalog{Package: "p", Containers: containers, Impls: impls})
	require.NoError(t, err)
	return bounds.Infer(cat)
}

func TestConcreteStateFromImpls(t *testing.T) {
	set, err := infer(t, nil, rec("Example", "", nil, fld("First", counterT, ""), fld("Second", counterT, "")))
	require.NoError(t, err)
	r := set.Get("Example")
	require.Equal(t, bounds.State{Kind: bounds.StateConcrete, Type: "*Recorder"}, r.State)
	require.True(t, r.Methods())
	require.Equal(t, bounds.PlanMethod, r.Fields[0].Kind)
	require.Equal(t, bounds.PlanMethod, r.Fields[1].Kind)
	require.Len(t, r.Constraints, 1, "constraints are deduplicated")
	require.Equal(t, "Counter", r.Constraints[0].Subject)
}

func TestFreeStateForPlainRecord(t *testing.T) {
	set, err := infer(t, nil, rec("Plain", "", nil, fld("A", intT, ""), fld("B", &schema.Slice{Elem: stringT}, "")))
	require.NoError(t, err)
	r := set.Get("Plain")
	require.Equal(t, bounds.StateFree, r.State.Kind)
	require.False(t, r.Methods())
	require.Equal(t, bounds.PlanPlain, r.Fields[0].Kind)
	require.Equal(t, bounds.PlanPlain, r.Fields[1].Kind, "plain subtrees collapse")
	require.Empty(t, r.Constraints)
}

func TestOnlyStatefulParamsAreConstrained(t *testing.T) {
	set, err := infer(t, nil, rec("Pair", "", []string{"T", "U", "V"},
		fld("Left", param("T"), ""),
		fld("Right", param("U"), "stateless"),
		fld("Hidden", param("V"), "skip"),
	))
	require.NoError(t, err)
	r := set.Get("Pair")
	require.Equal(t, []string{"T"}, r.ThreadedParams())
	require.Equal(t, bounds.PlanParam, r.Fields[0].Kind)
	require.Equal(t, bounds.PlanPlain, r.Fields[1].Kind)
	require.Nil(t, r.Fields[2])
}

func TestNarrowestExpansion(t *testing.T) {
	set, err := infer(t, nil, rec("Bag", "", []string{"T"},
		fld("Items", &schema.Slice{Elem: &schema.Pointer{Elem: param("T")}}, ""),
		fld("ByName", &schema.Map{Key: stringT, Elem: counterT}, ""),
		fld("Fixed", &schema.Array{Len: "2", Elem: param("T")}, ""),
		fld("IntKeyed", &schema.Map{Key: intT, Elem: stringT}, ""),
	))
	require.NoError(t, err)
	r := set.Get("Bag")
	items := r.Fields[0]
	require.Equal(t, bounds.PlanSlice, items.Kind)
	require.Equal(t, bounds.PlanPointer, items.Elem.Kind)
	require.Equal(t, bounds.PlanParam, items.Elem.Elem.Kind)
	require.Equal(t, bounds.PlanMap, r.Fields[1].Kind)
	require.Equal(t, bounds.PlanMethod, r.Fields[1].Elem.Kind)
	require.Equal(t, bounds.PlanArray, r.Fields[2].Kind)
	require.Equal(t, bounds.PlanPlain, r.Fields[3].Kind)
	require.Equal(t, bounds.StateConcrete, r.State.Kind)
}

func TestNonStringMapKeyInThreadedPosition(t *testing.T) {
	_, err := infer(t, nil, rec("Bad", "", nil, fld("M", &schema.Map{Key: intT, Elem: counterT}, "")))
	var se *schema.SchemaError
	require.True(t, errors.As(err, &se), "got %v", err)
	require.Equal(t, "Bad.M", se.Element)
}

func TestRecursionWithoutMarker(t *testing.T) {
	_, err := infer(t, nil, rec("Node", "", nil, fld("Next", &schema.Pointer{Elem: named("Node")}, "")))
	var re *schema.RecursionError
	require.True(t, errors.As(err, &re), "got %v", err)
	require.Equal(t, []string{"Node", "Node"}, re.Cycle)
}

func TestMutualRecursionWithoutMarker(t *testing.T) {
	_, err := infer(t, nil,
		rec("A", "", nil, fld("B", named("B"), "")),
		rec("B", "", nil, fld("A", &schema.Slice{Elem: named("A")}, "")),
	)
	var re *schema.RecursionError
	require.True(t, errors.As(err, &re), "got %v", err)
	require.Equal(t, []string{"A", "B", "A"}, re.Cycle)
}

func TestStatelessRecursionNeedsNoMarker(t *testing.T) {
	set, err := infer(t, nil, rec("Node", "", nil, fld("Next", &schema.Pointer{Elem: named("Node")}, "stateless")))
	require.NoError(t, err)
	require.Equal(t, bounds.PlanPlain, set.Get("Node").Fields[0].Kind)
}

func TestMarkerBreaksRecursion(t *testing.T) {
	set, err := infer(t, nil, rec("Tree", "state=*Recorder", []string{"T"},
		fld("Value", param("T"), "stateless"),
		fld("Count", counterT, ""),
		fld("Kids", &schema.Slice{Elem: named("Tree", param("T"))}, ""),
	))
	require.NoError(t, err)
	r := set.Get("Tree")
	require.True(t, r.Coarse)
	require.Equal(t, bounds.State{Kind: bounds.StateConcrete, Type: "*Recorder"}, r.State)
	require.Equal(t, []string{"T"}, r.ThreadedParams(), "a marker constrains every declared parameter")
	require.Equal(t, bounds.PlanPlain, r.Fields[0].Kind)
	require.Equal(t, bounds.PlanSlice, r.Fields[2].Kind)
	require.Equal(t, bounds.PlanRecord, r.Fields[2].Elem.Kind)
	require.Equal(t, "Tree", r.Fields[2].Elem.Target)
}

func TestMarkerBreaksRecursionInAnyDeclarationOrder(t *testing.T) {
	build := func() (x, y *schema.Container) {
		x = rec("X", "state=*Recorder", nil, fld("Y", &schema.Pointer{Elem: named("Y")}, ""), fld("N", counterT, ""))
		y = rec("Y", "", nil, fld("X", &schema.Pointer{Elem: named("X")}, ""))
		return x, y
	}
	for _, order := range []string{"XY", "YX"} {
		t.Run(order, func(t *testing.T) {
			x, y := build()
			cs := []*schema.Container{x, y}
			if order == "YX" {
				cs = []*schema.Container{y, x}
			}
			set, err := infer(t, nil, cs...)
			require.NoError(t, err)
			require.Equal(t, []string{order[:1], order[1:]}, set.Order)
			rx, ry := set.Get("X"), set.Get("Y")
			require.True(t, rx.Coarse)
			require.Equal(t, bounds.PlanPointer, rx.Fields[0].Kind)
			require.Equal(t, bounds.PlanMethod, rx.Fields[0].Elem.Kind)
			require.Equal(t, bounds.State{Kind: bounds.StateConcrete, Type: "*Recorder"}, ry.State)
			require.True(t, ry.Methods())
			require.Equal(t, bounds.PlanMethod, ry.Fields[0].Elem.Kind)
		})
	}
}

func TestCycleBehindMarkerIsReported(t *testing.T) {
	for _, marked := range []string{"first", "last"} {
		t.Run(marked, func(t *testing.T) {
			m := rec("M", "state=*Recorder", nil, fld("A", named("A"), ""))
			a := rec("A", "", nil, fld("B", &schema.Slice{Elem: named("B")}, ""))
			b := rec("B", "", nil, fld("A", &schema.Pointer{Elem: named("A")}, ""), fld("M", &schema.Pointer{Elem: named("M")}, ""))
			cs := []*schema.Container{m, a, b}
			if marked == "last" {
				cs = []*schema.Container{a, b, m}
			}
			_, err := infer(t, nil, cs...)
			var re *schema.RecursionError
			require.True(t, errors.As(err, &re), "got %v", err)
			require.Equal(t, []string{"A", "B", "A"}, re.Cycle)
		})
	}
}

func TestMarkerOnNonGenericRecursiveRecord(t *testing.T) {
	set, err := infer(t, nil,
		rec("List", "state=*Recorder", nil, fld("Head", counterT, ""), fld("Tail", &schema.Pointer{Elem: named("List")}, "")),
		rec("Holder", "", nil, fld("L", named("List"), "")),
	)
	require.NoError(t, err)
	require.True(t, set.Get("List").Methods())
	require.Equal(t, bounds.PlanPointer, set.Get("List").Fields[1].Kind)
	require.Equal(t, bounds.PlanMethod, set.Get("List").Fields[1].Elem.Kind)
	require.Equal(t, bounds.StateConcrete, set.Get("Holder").State.Kind)
}

func TestCapabilityMarkerUsesDynamicDispatch(t *testing.T) {
	set, err := infer(t, nil, rec("Log", "state_implements=Logger", nil, fld("C", counterT, "")))
	require.NoError(t, err)
	r := set.Get("Log")
	require.Equal(t, bounds.State{Kind: bounds.StateCapability, Type: "Logger"}, r.State)
	require.Equal(t, bounds.PlanDynamic, r.Fields[0].Kind)
	require.False(t, r.Methods())
}

func TestCapabilityPropagatesToCallers(t *testing.T) {
	set, err := infer(t, nil,
		rec("Log", "state_implements=Logger", nil, fld("N", intT, "")),
		rec("Outer", "", nil, fld("L", named("Log"), "")),
	)
	require.NoError(t, err)
	require.Equal(t, bounds.State{Kind: bounds.StateCapability, Type: "Logger"}, set.Get("Outer").State)
	require.Equal(t, bounds.PlanRecord, set.Get("Outer").Fields[0].Kind)
}

func TestConflictingStates(t *testing.T) {
	impls := map[string]schema.Impl{
		"Counter": {Type: "Counter", State: "*Recorder"},
		"Clock":   {Type: "Clock", State: "*Timer"},
	}
	_, err := infer(t, impls, rec("Mixed", "", nil, fld("C", counterT, ""), fld("T", named("Clock"), "")))
	var se *schema.SchemaError
	require.True(t, errors.As(err, &se), "got %v", err)

	_, err = infer(t, impls, rec("Pinned", "state=*Timer", nil, fld("C", counterT, "")))
	require.True(t, errors.As(err, &se), "got %v", err)
}

func TestTypeArgumentSubstitution(t *testing.T) {
	box := rec("Box", "", []string{"T", "U"}, fld("Value", param("T"), ""), fld("Note", param("U"), "stateless"))

	set, err := infer(t, nil, box, rec("Holder", "", nil, fld("B", named("Box", counterT, intT), "")))
	require.NoError(t, err)
	h := set.Get("Holder")
	require.Equal(t, bounds.StateConcrete, h.State.Kind)
	require.Equal(t, bounds.PlanRecord, h.Fields[0].Kind)
	require.Len(t, h.Fields[0].Args, 2)

	set, err = infer(t, nil, box, rec("Generic", "", []string{"X"}, fld("B", named("Box", param("X"), param("X")), "")))
	require.NoError(t, err)
	require.Equal(t, []string{"X"}, set.Get("Generic").ThreadedParams())
}

func TestUnsatisfiableTypeArgument(t *testing.T) {
	box := rec("Box", "", []string{"T"}, fld("Value", param("T"), ""))
	_, err := infer(t, nil, box, rec("Holder", "", nil, fld("B", named("Box", intT), "")))
	var se *schema.SchemaError
	require.True(t, errors.As(err, &se), "got %v", err)
	require.Equal(t, "Holder.B", se.Element)

	_, err = infer(t, nil, box, rec("Holder", "", nil, fld("B", named("Box", intT), "stateless")))
	require.NoError(t, err, "stateless fields never need the protocols")
}

func TestCompositeTypeArgumentIsRejected(t *testing.T) {
	args := map[string]schema.Type{
		"nested box": named("Box", param("T")),
		"slice":      &schema.Slice{Elem: param("T")},
		"pointer":    &schema.Pointer{Elem: counterT},
	}
	for name, arg := range args {
		t.Run(name, func(t *testing.T) {
			box := rec("Box", "", []string{"T"}, fld("Value", param("T"), ""))
			outer := rec("Outer", "", []string{"T"}, fld("B", named("Box", arg), ""))
			_, err := infer(t, nil, box, outer)
			var se *schema.SchemaError
			require.True(t, errors.As(err, &se), "got %v", err)
			require.Equal(t, "Outer.B", se.Element)
		})
	}

	// a non-generic record with methods can stand in for T
	box := rec("Box", "", []string{"T"}, fld("Value", param("T"), ""))
	leaf := rec("Leaf", "", nil, fld("N", counterT, ""))
	set, err := infer(t, nil, box, leaf, rec("Outer", "", nil, fld("B", named("Box", named("Leaf")), "")))
	require.NoError(t, err)
	require.Equal(t, bounds.PlanRecord, set.Get("Outer").Fields[0].Kind)
}

func TestUnionPlans(t *testing.T) {
	shape := &schema.Container{
		Name: "Shape",
		Kind: schema.KindUnion,
		Variants: []schema.Variant{
			{Name: "Circle", Style: schema.StyleNamed, Fields: []schema.Field{fld("R", counterT, "")},
				Annotations: []schema.Annotation{{Level: schema.LevelVariant, Text: "stateless"}}},
			{Name: "Point", Style: schema.StyleUnit},
			{Name: "Tagged", Style: schema.StyleNamed, Fields: []schema.Field{fld("Label", stringT, ""), fld("Hits", counterT, "stateful")},
				Annotations: []schema.Annotation{{Level: schema.LevelVariant, Text: "stateless"}}},
		},
	}
	set, err := infer(t, nil, shape, rec("Canvas", "", nil, fld("Shapes", &schema.Slice{Elem: named("Shape")}, "")))
	require.NoError(t, err)
	r := set.Get("Shape")
	require.Equal(t, bounds.PlanPlain, r.Variants[0][0].Kind)
	require.Empty(t, r.Variants[1])
	require.Equal(t, bounds.PlanPlain, r.Variants[2][0].Kind)
	require.Equal(t, bounds.PlanMethod, r.Variants[2][1].Kind)
	require.Equal(t, bounds.StateConcrete, r.State.Kind)

	c := set.Get("Canvas")
	require.Equal(t, bounds.PlanSlice, c.Fields[0].Kind)
	require.Equal(t, bounds.PlanUnion, c.Fields[0].Elem.Kind)
}

func TestArityMismatch(t *testing.T) {
	box := rec("Box", "", []string{"T"}, fld("Value", param("T"), ""))
	_, err := infer(t, nil, box, rec("Holder", "", nil, fld("B", named("Box"), "")))
	var se *schema.SchemaError
	require.True(t, errors.As(err, &se), "got %v", err)
}

func TestRejectsUnresolvedCatalog(t *testing.T) {
	_, err := bounds.Infer(&schema.Catalog{Containers: []*schema.Container{rec("A", "", nil)}})
	require.Error(t, err)
}
