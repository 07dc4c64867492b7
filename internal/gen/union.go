package gen

import (
	"strconv"
	"strings"

	"github.com/reoring/statecodec/internal/schema"
)

func itoa(i int) string { return strconv.Itoa(i) }

func variantsVar(union string) string { return "statecodec" + union + "Variants" }

func memberType(v schema.Variant) string {
	if v.Pointer {
		return "*" + v.Name
	}
	return v.Name
}

// unionEncode writes the variant tag by declared name, then the payload.
func (e *emitter) unionEncode(sc *scope) {
	c := sc.res.Container
	name := encodeName(c.Name)
	e.line("// %s encodes the variant held by v, handing state to every stateful field.", name)
	e.n = 0
	e.line("func %s%s(v %s, state %s, sink statecodec.Sink) error {", name, sc.typeParams(), c.Name, sc.state)
	bind := false
	var addressed []schema.Variant
	for _, v := range c.Variants {
		if v.Style == schema.StyleUnit {
			continue
		}
		if len(included(v.Fields)) > 0 {
			bind = true
		}
		if !v.Pointer {
			addressed = append(addressed, v)
			bind = true
		}
	}
	if bind {
		e.line("switch x := v.(type) {")
	} else {
		e.line("switch v.(type) {")
	}
	e.line("case nil:")
	e.line("return statecodec.NilUnion(%s)", quote(c.Name))
	for vi, v := range c.Variants {
		plans := sc.res.Variants[vi]
		tag := quote(v.Name)
		path := []string{tag}
		if v.Style == schema.StyleUnit {
			if v.Pointer {
				e.line("case *%s:", v.Name)
			} else {
				e.line("case %s, *%s:", v.Name, v.Name)
			}
			e.line("return sink.UnitVariant(%s, %s)", quote(c.Name), tag)
			continue
		}
		e.line("case %s:", memberType(v))
		e.line("payload, err := sink.Variant(%s, %s)", quote(c.Name), tag)
		e.line("if err != nil {")
		e.line("return err")
		e.line("}")
		switch v.Style {
		case schema.StyleNewtype:
			i := included(v.Fields)[0]
			e.encodeValue(sc, plans[i], fieldLoc("x", v.Fields[i].Name), "payload", path)
		case schema.StyleTuple:
			e.encodeTuple(sc, v.Fields, plans, "x", "payload", path)
		default:
			e.encodeFields(sc, v.Name, v.Fields, plans, "x", "payload", path)
		}
		e.line("return nil")
	}
	// A value receiver puts *V in the union too; it encodes as the value.
	for _, v := range addressed {
		e.line("case *%s:", v.Name)
		e.line("if x == nil {")
		e.line("return statecodec.NilUnion(%s)", quote(c.Name))
		e.line("}")
		e.line("return %s(*x, state, sink)", name)
	}
	e.line("}")
	e.line("return statecodec.UnknownMember(%s, v)", quote(c.Name))
	e.line("}")
}

// unionDecode reads the tag, rejects unknown ones, and decodes the payload
// into a fresh variant value that is stored in v only on success.
func (e *emitter) unionDecode(sc *scope) {
	c := sc.res.Container
	name := decodeName(c.Name)
	list := make([]string, len(c.Variants))
	for i, v := range c.Variants {
		list[i] = quote(v.Name)
	}
	e.line("var %s = []string{%s}", variantsVar(c.Name), strings.Join(list, ", "))
	e.line("")
	e.line("// %s decodes a variant into v, handing state to every stateful field.", name)
	e.line("// v is left unchanged on error.")
	e.n = 0
	e.line("func %s%s(v *%s, state %s, src statecodec.Source) error {", name, sc.typeParams(), c.Name, sc.state)
	if len(c.Variants) == 0 {
		e.line("tag, _, err := src.Variant(%s)", quote(c.Name))
	} else {
		e.line("tag, payload, err := src.Variant(%s)", quote(c.Name))
	}
	e.line("if err != nil {")
	e.line("return err")
	e.line("}")
	e.line("switch tag {")
	for vi, v := range c.Variants {
		plans := sc.res.Variants[vi]
		tag := quote(v.Name)
		path := []string{tag}
		e.line("case %s:", tag)
		if v.Style == schema.StyleUnit {
			e.check("statecodec.ExpectUnit("+quote(c.Name)+", "+tag+", payload)", nil)
			if v.Pointer {
				e.line("*v = &%s{}", v.Name)
			} else {
				e.line("*v = %s{}", v.Name)
			}
			e.line("return nil")
			continue
		}
		e.line("if payload == nil {")
		e.line("return statecodec.MissingPayload(%s, %s)", quote(c.Name), tag)
		e.line("}")
		e.line("var out %s", v.Name)
		switch v.Style {
		case schema.StyleNewtype:
			i := included(v.Fields)[0]
			e.decodeValue(sc, plans[i], fieldLoc("out", v.Fields[i].Name), "payload", path)
		case schema.StyleTuple:
			e.decodeTuple(sc, v.Fields, plans, "out", "payload", path)
		default:
			e.decodeFields(sc, v.Name, v.Fields, plans, "out", "payload", path)
		}
		if v.Pointer {
			e.line("*v = &out")
		} else {
			e.line("*v = out")
		}
		e.line("return nil")
	}
	e.line("}")
	e.line("return statecodec.UnknownVariant(%s, tag, %s)", quote(c.Name), variantsVar(c.Name))
	e.line("}")
}
