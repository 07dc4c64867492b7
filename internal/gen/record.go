package gen

import (
	"github.com/reoring/statecodec/internal/bounds"
	"github.com/reoring/statecodec/internal/schema"
)

func included(fields []schema.Field) []int {
	var idx []int
	for i, f := range fields {
		if f.Omission == schema.Include {
			idx = append(idx, i)
		}
	}
	return idx
}

func (e *emitter) recordEncodeBody(sc *scope) {
	c := sc.res.Container
	if c.Transparent {
		i := included(c.Fields)[0]
		e.encodeValue(sc, sc.res.Fields[i], fieldLoc("v", c.Fields[i].Name), "sink", nil)
		e.line("return nil")
		return
	}
	e.encodeFields(sc, c.Name, c.Fields, sc.res.Fields, "v", "sink", nil)
	e.line("return nil")
}

func (e *emitter) recordDecodeBody(sc *scope) {
	c := sc.res.Container
	e.line("var out %s", sc.selfType())
	if c.Transparent {
		i := included(c.Fields)[0]
		e.decodeValue(sc, sc.res.Fields[i], fieldLoc("out", c.Fields[i].Name), "src", nil)
	} else {
		e.decodeFields(sc, c.Name, c.Fields, sc.res.Fields, "out", "src", nil)
	}
	e.line("*v = out")
	e.line("return nil")
}

// encodeFields writes the included fields of base as a record in declared order.
func (e *emitter) encodeFields(sc *scope, name string, fields []schema.Field, plans []*bounds.Plan, base, sink string, path []string) {
	inc := included(fields)
	rec := e.fresh("rec")
	e.line("%s, err := %s.Record(%s, %d)", rec, sink, quote(name), len(inc))
	e.line("if err != nil {")
	e.fail(path)
	e.line("}")
	for _, i := range inc {
		f := fields[i]
		key := quote(f.Key)
		e.encodeValue(sc, plans[i], fieldLoc(base, f.Name), rec+".Field("+key+")", extend(path, key))
	}
	e.check(rec+".End()", path)
}

// decodeFields reads a record into base, matching entries by wire key in
// wire order. Unknown keys are ignored; duplicate and missing keys fail.
func (e *emitter) decodeFields(sc *scope, name string, fields []schema.Field, plans []*bounds.Plan, base, src string, path []string) {
	inc := included(fields)
	rec := e.fresh("rec")
	e.line("%s, err := %s.Record(%s)", rec, src, quote(name))
	e.line("if err != nil {")
	e.fail(path)
	e.line("}")
	if len(inc) == 0 {
		e.line("for {")
		e.line("_, _, ok, err := %s.Next()", rec)
		e.line("if err != nil {")
		e.fail(path)
		e.line("}")
		e.line("if !ok {")
		e.line("break")
		e.line("}")
		e.line("}")
		return
	}
	seen, key, val := e.fresh("seen"), e.fresh("key"), e.fresh("val")
	e.line("var %s [%d]bool", seen, len(inc))
	e.line("for {")
	e.line("%s, %s, ok, err := %s.Next()", key, val, rec)
	e.line("if err != nil {")
	e.fail(path)
	e.line("}")
	e.line("if !ok {")
	e.line("break")
	e.line("}")
	e.line("switch %s {", key)
	for j, i := range inc {
		f := fields[i]
		k := quote(f.Key)
		e.line("case %s:", k)
		e.line("if %s[%d] {", seen, j)
		e.line("return %s", at("statecodec.DuplicateField("+k+")", path))
		e.line("}")
		e.line("%s[%d] = true", seen, j)
		e.decodeValue(sc, plans[i], fieldLoc(base, f.Name), val, extend(path, k))
	}
	e.line("}")
	e.line("}")
	for j, i := range inc {
		e.line("if !%s[%d] {", seen, j)
		e.line("return %s", at("statecodec.MissingField("+quote(fields[i].Key)+")", path))
		e.line("}")
	}
}

// encodeTuple writes the included fields of base positionally.
func (e *emitter) encodeTuple(sc *scope, fields []schema.Field, plans []*bounds.Plan, base, sink string, path []string) {
	inc := included(fields)
	seq := e.fresh("seq")
	e.line("%s, err := %s.Seq(%d)", seq, sink, len(inc))
	e.line("if err != nil {")
	e.fail(path)
	e.line("}")
	for pos, i := range inc {
		e.encodeValue(sc, plans[i], fieldLoc(base, fields[i].Name), seq+".Elem()", extend(path, itoa(pos)))
	}
	e.check(seq+".End()", path)
}

func (e *emitter) decodeTuple(sc *scope, fields []schema.Field, plans []*bounds.Plan, base, src string, path []string) {
	inc := included(fields)
	seq := e.fresh("seq")
	e.line("%s, err := %s.Seq()", seq, src)
	e.line("if err != nil {")
	e.fail(path)
	e.line("}")
	e.line("if %s.Len() != %d {", seq, len(inc))
	e.line("return %s", at("statecodec.InvalidLength("+itoa(len(inc))+", "+seq+".Len())", path))
	e.line("}")
	for pos, i := range inc {
		el := e.fresh("el")
		e.line("%s, _, err := %s.Next()", el, seq)
		e.line("if err != nil {")
		e.fail(extend(path, itoa(pos)))
		e.line("}")
		e.decodeValue(sc, plans[i], fieldLoc(base, fields[i].Name), el, extend(path, itoa(pos)))
	}
}
