package schema_test

import (
	"errors"
	"testing"

	"github.com/reoring/statecodec/internal/schema"
)

func TestParseAnnotation(t *testing.T) {
	cases := []struct {
		name  string
		level schema.Level
		text  string
		want  []schema.Option
		ok    bool
	}{
		{"empty", schema.LevelField, "  ", nil, true},
		{"flags", schema.LevelField, "stateless, skip", []schema.Option{{Name: "stateless"}, {Name: "skip"}}, true},
		{"value", schema.LevelField, "rename = id", []schema.Option{{Name: "rename", Value: "id", HasValue: true}}, true},
		{"container marker", schema.LevelContainer, "state=*Recorder", []schema.Option{{Name: "state", Value: "*Recorder", HasValue: true}}, true},
		{"variant tuple", schema.LevelVariant, "tuple,stateless", []schema.Option{{Name: "tuple"}, {Name: "stateless"}}, true},
		{"unknown", schema.LevelField, "recursive", nil, false},
		{"wrong level", schema.LevelField, "transparent", nil, false},
		{"missing value", schema.LevelField, "rename", nil, false},
		{"empty value", schema.LevelContainer, "state=", nil, false},
		{"flag with value", schema.LevelField, "skip=true", nil, false},
		{"empty option", schema.LevelField, "skip,,stateless", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := schema.ParseAnnotation(tc.level, "T.F", tc.text)
			if !tc.ok {
				var se *schema.SchemaError
				if !errors.As(err, &se) {
					t.Fatalf("expected SchemaError, got %v", err)
				}
				if se.Element != "T.F" {
					t.Fatalf("element=%q", se.Element)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("option %d: got %+v want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestTypeString(t *testing.T) {
	typ := &schema.Map{
		Key: &schema.Basic{Name: "string"},
		Elem: &schema.Slice{Elem: &schema.Pointer{Elem: &schema.Named{
			Pkg:  "pkg",
			Name: "Box",
			Args: []schema.Type{&schema.Param{Name: "T"}, &schema.Array{Len: "4", Elem: &schema.Basic{Name: "int"}}},
		}}},
	}
	if got := typ.String(); got != "map[string][]*pkg.Box[T, [4]int]" {
		t.Fatalf("got %s", got)
	}
}

func TestSubst(t *testing.T) {
	typ := &schema.Slice{Elem: &schema.Named{Name: "Box", Args: []schema.Type{&schema.Param{Name: "T"}}}}
	got := schema.Subst(typ, map[string]schema.Type{"T": &schema.Named{Name: "Counter"}})
	if got.String() != "[]Box[Counter]" {
		t.Fatalf("got %s", got)
	}
	if typ.String() != "[]Box[T]" {
		t.Fatalf("input mutated: %s", typ)
	}
}

func TestStringKeyed(t *testing.T) {
	if !schema.StringKeyed(&schema.Basic{Name: "string"}) {
		t.Fatalf("string must key records")
	}
	if !schema.StringKeyed(&schema.Named{Name: "ID", Underlying: &schema.Basic{Name: "string"}}) {
		t.Fatalf("named string must key records")
	}
	if schema.StringKeyed(&schema.Basic{Name: "int"}) {
		t.Fatalf("int must not key records")
	}
}

func TestRecursionErrorMessage(t *testing.T) {
	err := &schema.RecursionError{Container: "Tree", Cycle: []string{"Tree", "Forest", "Tree"}}
	want := "recursive container Tree (Tree -> Forest -> Tree): add //statecodec:state=T or //statecodec:state_implements=C to break the cycle"
	if err.Error() != want {
		t.Fatalf("got %q", err.Error())
	}
}
