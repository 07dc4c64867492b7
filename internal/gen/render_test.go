package gen

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/reoring/statecodec/internal/bounds"
	"github.com/reoring/statecodec/internal/resolve"
	"github.com/reoring/statecodec/internal/schema"
)

func ann(level schema.Level, text string) []schema.Annotation {
	return []schema.Annotation{{Level: level, Text: text}}
}

func mustRender(t *testing.T, containers ...*schema.Container) string {
	t.Helper()
	cat, err := resolve.Catalog(&schema.Catalog{
		Package:    "foo",
		Containers: containers,
		Impls:      map[string]schema.Impl{"Counter": {Type: "Counter", State: "*Recorder"}},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	set, err := bounds.Infer(cat)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	out, err := RenderFile(File{Package: "foo", Catalog: cat, Bounds: set})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if _, err := parser.ParseFile(token.NewFileSet(), "gen.go", out, parser.AllErrors); err != nil {
		t.Fatalf("generated code does not parse: %v\n%s", err, out)
	}
	return string(out)
}

func wantContains(t *testing.T, code string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(code, p) {
			t.Fatalf("generated code lacks %q:\n%s", p, code)
		}
	}
}

var counter = &schema.Named{Name: "Counter"}

func TestRenderFile_RequiresPackage(t *testing.T) {
	if _, err := RenderFile(File{}); err == nil {
		t.Fatalf("expected error without package")
	}
}

func TestRenderFile_MethodsForConcreteRecord(t *testing.T) {
	code := mustRender(t, &schema.Container{
		Name: "Example",
		Kind: schema.KindRecord,
		Fields: []schema.Field{
			{Name: "First", Type: counter, Annotations: ann(schema.LevelField, "rename=first")},
			{Name: "Second", Type: counter},
			{Name: "Note", Type: &schema.Basic{Name: "string"}, Annotations: ann(schema.LevelField, "stateless")},
			{Name: "Cache", Type: &schema.Basic{Name: "int"}, Annotations: ann(schema.LevelField, "skip")},
		},
	})
	wantContains(t, code,
		Header,
		"func (v *Example) EncodeState(state *Recorder, sink statecodec.Sink) error",
		"func (v *Example) DecodeState(state *Recorder, src statecodec.Source) error",
		`v.First.EncodeState(state, rec1.Field("first"))`,
		`rec1.Field("Note").Encode(v.Note)`,
		`statecodec.DuplicateField("first")`,
		`statecodec.MissingField("Second")`,
		"var seen2 [3]bool",
		"*v = out",
	)
	if strings.Contains(code, "Cache") {
		t.Fatalf("skipped field must not be generated:\n%s", code)
	}
}

func TestRenderFile_GenericConstraints(t *testing.T) {
	code := mustRender(t, &schema.Container{
		Name:   "Pair",
		Kind:   schema.KindRecord,
		Params: []schema.TypeParam{{Name: "T", Constraint: "any"}, {Name: "U", Constraint: "comparable"}},
		Fields: []schema.Field{
			{Name: "Left", Type: &schema.Slice{Elem: &schema.Param{Name: "T"}}},
			{Name: "Right", Type: &schema.Param{Name: "U"}, Annotations: ann(schema.LevelField, "stateless")},
		},
	})
	wantContains(t, code,
		"func EncodePairState[S any, T any, U comparable, PT statecodec.Ptr[T, S]](v *Pair[T, U], state S, sink statecodec.Sink) error",
		"func DecodePairState[S any, T any, U comparable, PT statecodec.Ptr[T, S]](v *Pair[T, U], state S, src statecodec.Source) error",
		"PT(&v.Left[i",
		"make([]T, 0,",
	)
	if strings.Contains(code, "PU") {
		t.Fatalf("stateless parameter must not be constrained:\n%s", code)
	}
}

func TestRenderFile_CoarseRecursiveRecord(t *testing.T) {
	code := mustRender(t, &schema.Container{
		Name:        "Tree",
		Kind:        schema.KindRecord,
		Params:      []schema.TypeParam{{Name: "T", Constraint: "any"}},
		Annotations: ann(schema.LevelContainer, "state=*Recorder"),
		Fields: []schema.Field{
			{Name: "Value", Type: &schema.Param{Name: "T"}},
			{Name: "Kids", Type: &schema.Slice{Elem: &schema.Named{Name: "Tree", Args: []schema.Type{&schema.Param{Name: "T"}}}}},
		},
	})
	wantContains(t, code,
		"func EncodeTreeState[T any, PT statecodec.Ptr[T, *Recorder]](v *Tree[T], state *Recorder, sink statecodec.Sink) error",
		"EncodeTreeState[T, PT](&v.Kids[i",
		"DecodeTreeState[T, PT](&x",
	)
}

func TestRenderFile_InstantiatesCallees(t *testing.T) {
	box := &schema.Container{
		Name:   "Box",
		Kind:   schema.KindRecord,
		Params: []schema.TypeParam{{Name: "T", Constraint: "any"}},
		Fields: []schema.Field{{Name: "Value", Type: &schema.Param{Name: "T"}}},
	}
	holder := &schema.Container{
		Name: "Holder",
		Kind: schema.KindRecord,
		Fields: []schema.Field{
			{Name: "B", Type: &schema.Named{Name: "Box", Args: []schema.Type{counter}}},
			{Name: "ByName", Type: &schema.Map{Key: &schema.Basic{Name: "string"}, Elem: &schema.Pointer{Elem: counter}}},
		},
	}
	code := mustRender(t, box, holder)
	wantContains(t, code,
		"EncodeBoxState[*Recorder, Counter, *Counter](&v.B, state, rec1.Field(\"B\"))",
		"func (v *Holder) EncodeState(state *Recorder, sink statecodec.Sink) error",
		"statecodec.SortedKeys(v.ByName)",
		"= new(Counter)",
	)
}

func TestRenderFile_Union(t *testing.T) {
	shape := &schema.Container{
		Name: "Shape",
		Kind: schema.KindUnion,
		Variants: []schema.Variant{
			{Name: "Circle", Pointer: true, Style: schema.StyleNamed, Annotations: ann(schema.LevelVariant, "stateless"),
				Fields: []schema.Field{{Name: "Radius", Type: &schema.Basic{Name: "float64"}}}},
			{Name: "Point", Style: schema.StyleUnit},
			{Name: "Pair", Style: schema.StyleTuple,
				Fields: []schema.Field{{Name: "A", Type: counter}, {Name: "B", Type: &schema.Basic{Name: "int"}, Annotations: ann(schema.LevelField, "stateless")}}},
			{Name: "Wrapped", Style: schema.StyleNewtype, Fields: []schema.Field{{Name: "C", Type: counter}}},
		},
	}
	code := mustRender(t, shape)
	wantContains(t, code,
		"func EncodeShapeState(v Shape, state *Recorder, sink statecodec.Sink) error",
		"func DecodeShapeState(v *Shape, state *Recorder, src statecodec.Source) error",
		"switch x := v.(type) {",
		"case *Circle:",
		`return sink.UnitVariant("Shape", "Point")`,
		`var statecodecShapeVariants = []string{"Circle", "Point", "Pair", "Wrapped"}`,
		`statecodec.UnknownVariant("Shape", tag, statecodecShapeVariants)`,
		`statecodec.InvalidLength(2,`,
		`x.C.EncodeState(state, payload)`,
		"*v = &out",
		"*v = Point{}",
		"case Point, *Point:",
		"case *Pair:",
		"case *Wrapped:",
		"return EncodeShapeState(*x, state, sink)",
	)
	if strings.Contains(code, "case Circle") {
		t.Fatalf("pointer-receiver variant should only match *Circle:\n%s", code)
	}
}

func TestRenderFile_UnitOnlyUnion(t *testing.T) {
	code := mustRender(t, &schema.Container{
		Name:     "Color",
		Kind:     schema.KindUnion,
		Variants: []schema.Variant{{Name: "Red", Style: schema.StyleUnit}, {Name: "Blue", Style: schema.StyleUnit}},
	})
	wantContains(t, code,
		"func EncodeColorState[S any](v Color, state S, sink statecodec.Sink) error",
		"switch v.(type) {",
		"case Red, *Red:",
	)
}

func TestRenderFile_MultiLevelPointer(t *testing.T) {
	deep := &schema.Container{
		Name: "Deep",
		Kind: schema.KindRecord,
		Fields: []schema.Field{
			{Name: "PP", Type: &schema.Pointer{Elem: &schema.Pointer{Elem: counter}}},
			{Name: "P", Type: &schema.Pointer{Elem: counter}},
		},
	}
	code := mustRender(t, deep)
	wantContains(t, code,
		"(*v.PP).EncodeState(state, ",
		"(*out.PP).DecodeState(state, ",
		"*out.PP = new(Counter)",
		"out.PP = new(*Counter)",
		"v.P.EncodeState(state, ",
	)
	if strings.Contains(code, "*v.PP.EncodeState") || strings.Contains(code, "*out.PP.DecodeState") {
		t.Fatalf("method call on a double pointer must be parenthesized:\n%s", code)
	}
}

func TestRenderFile_Transparent(t *testing.T) {
	code := mustRender(t, &schema.Container{
		Name:        "Wrapper",
		Kind:        schema.KindRecord,
		Annotations: ann(schema.LevelContainer, "transparent"),
		Fields:      []schema.Field{{Name: "Inner", Type: counter}},
	})
	wantContains(t, code,
		"v.Inner.EncodeState(state, sink)",
		"out.Inner.DecodeState(state, src)",
	)
	if strings.Contains(code, "Record(") {
		t.Fatalf("transparent record must not open a record:\n%s", code)
	}
}

func TestRenderFile_Dynamic(t *testing.T) {
	code := mustRender(t, &schema.Container{
		Name:        "Log",
		Kind:        schema.KindRecord,
		Annotations: ann(schema.LevelContainer, "state_implements=Logger"),
		Fields:      []schema.Field{{Name: "C", Type: counter}},
	})
	wantContains(t, code,
		"func EncodeLogState[S Logger](v *Log, state S, sink statecodec.Sink) error",
		"statecodec.EncodeDynamic(&v.C, state,",
		"statecodec.DecodeDynamic(&out.C, state,",
	)
}

func TestRenderFile_BuildTags(t *testing.T) {
	cat := &schema.Catalog{Package: "foo"}
	out, err := RenderFile(File{Package: "foo", BuildTags: "!nostate", Catalog: cat, Bounds: &bounds.Set{}})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(string(out), "//go:build !nostate") {
		t.Fatalf("missing build constraint:\n%s", out)
	}
}
