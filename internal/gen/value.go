package gen

import (
	"strconv"
	"strings"

	"github.com/reoring/statecodec/internal/bounds"
	"github.com/reoring/statecodec/internal/schema"
)

// loc is an addressable value: val reads it, ptr takes its address.
type loc struct{ val, ptr string }

func fieldLoc(base, name string) loc {
	return loc{val: base + "." + name, ptr: "&" + base + "." + name}
}

func varLoc(name string) loc { return loc{val: name, ptr: "&" + name} }

// recv is the expression to call methods on. Selectors bind tighter than
// a dereference, so a dereferenced address is parenthesized.
func (l loc) recv() string {
	if !strings.HasPrefix(l.val, "*") {
		return l.val
	}
	if strings.HasPrefix(l.ptr, "*") {
		return "(" + l.ptr + ")"
	}
	return l.ptr
}

func (l loc) deref() loc { return loc{val: "*" + l.val, ptr: l.val} }

// index renders l.val[i], parenthesizing a dereference.
func (l loc) index(i string) loc {
	v := l.val
	if strings.HasPrefix(v, "*") {
		v = "(" + v + ")"
	}
	return loc{val: v + "[" + i + "]", ptr: "&" + v + "[" + i + "]"}
}

func extend(path []string, seg string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, seg)
}

// at wraps an error expression with its location.
func at(expr string, path []string) string {
	if len(path) == 0 {
		return expr
	}
	return "statecodec.At(" + expr + ", " + strings.Join(path, ", ") + ")"
}

func (e *emitter) fail(path []string) {
	e.line("return %s", at("err", path))
}

func (e *emitter) check(call string, path []string) {
	e.line("if err := %s; err != nil {", call)
	e.fail(path)
	e.line("}")
}

// keyToString renders a map key as its wire key; keyFromString converts back.
func keyToString(key schema.Type, k string) string {
	if b, ok := key.(*schema.Basic); ok && b.Name == "string" {
		return k
	}
	return "string(" + k + ")"
}

func keyFromString(key schema.Type, k string) string {
	if b, ok := key.(*schema.Basic); ok && b.Name == "string" {
		return k
	}
	return key.String() + "(" + k + ")"
}

func (e *emitter) encodeValue(sc *scope, p *bounds.Plan, l loc, sink string, path []string) {
	switch p.Kind {
	case bounds.PlanPlain:
		e.check(sink+".Encode("+l.val+")", path)
	case bounds.PlanMethod:
		e.check(l.recv()+".EncodeState(state, "+sink+")", path)
	case bounds.PlanDynamic:
		e.check("statecodec.EncodeDynamic("+l.ptr+", state, "+sink+")", path)
	case bounds.PlanParam:
		e.check(sc.ptrs[p.Param]+"("+l.ptr+").EncodeState(state, "+sink+")", path)
	case bounds.PlanRecord:
		e.check(encodeName(p.Target)+e.inst(sc, p.Target, p.Args)+"("+l.ptr+", state, "+sink+")", path)
	case bounds.PlanUnion:
		e.check(encodeName(p.Target)+e.inst(sc, p.Target, p.Args)+"("+l.val+", state, "+sink+")", path)
	case bounds.PlanPointer:
		e.line("if %s == nil {", l.val)
		e.check(sink+".Null()", path)
		e.line("} else {")
		e.encodeValue(sc, p.Elem, l.deref(), sink, path)
		e.line("}")
	case bounds.PlanSlice:
		e.line("if %s == nil {", l.val)
		e.check(sink+".Null()", path)
		e.line("} else {")
		e.encodeSeq(sc, p, l, sink, path)
		e.line("}")
	case bounds.PlanArray:
		e.encodeSeq(sc, p, l, sink, path)
	case bounds.PlanMap:
		key := p.Type.(*schema.Map).Key
		rec, k, x := e.fresh("rec"), e.fresh("k"), e.fresh("x")
		e.line("if %s == nil {", l.val)
		e.check(sink+".Null()", path)
		e.line("} else {")
		e.line("%s, err := %s.Record(\"\", len(%s))", rec, sink, l.val)
		e.line("if err != nil {")
		e.fail(path)
		e.line("}")
		e.line("for _, %s := range statecodec.SortedKeys(%s) {", k, l.val)
		e.line("%s := %s", x, l.index(k).val)
		wire := keyToString(key, k)
		e.encodeValue(sc, p.Elem, varLoc(x), rec+".Field("+wire+")", extend(path, wire))
		e.line("}")
		e.check(rec+".End()", path)
		e.line("}")
	}
}

func (e *emitter) encodeSeq(sc *scope, p *bounds.Plan, l loc, sink string, path []string) {
	seq, i := e.fresh("seq"), e.fresh("i")
	e.line("%s, err := %s.Seq(len(%s))", seq, sink, l.val)
	e.line("if err != nil {")
	e.fail(path)
	e.line("}")
	e.line("for %s := range %s {", i, l.val)
	e.encodeValue(sc, p.Elem, l.index(i), seq+".Elem()", extend(path, i))
	e.line("}")
	e.check(seq+".End()", path)
}

func (e *emitter) decodeValue(sc *scope, p *bounds.Plan, l loc, src string, path []string) {
	switch p.Kind {
	case bounds.PlanPlain:
		e.check(src+".Decode("+l.ptr+")", path)
	case bounds.PlanMethod:
		e.check(l.recv()+".DecodeState(state, "+src+")", path)
	case bounds.PlanDynamic:
		e.check("statecodec.DecodeDynamic("+l.ptr+", state, "+src+")", path)
	case bounds.PlanParam:
		e.check(sc.ptrs[p.Param]+"("+l.ptr+").DecodeState(state, "+src+")", path)
	case bounds.PlanRecord, bounds.PlanUnion:
		e.check(decodeName(p.Target)+e.inst(sc, p.Target, p.Args)+"("+l.ptr+", state, "+src+")", path)
	case bounds.PlanPointer:
		e.ifNotNull(src, path)
		e.line("%s = new(%s)", l.val, p.Type.(*schema.Pointer).Elem)
		e.decodeValue(sc, p.Elem, l.deref(), src, path)
		e.line("}")
	case bounds.PlanSlice:
		seq, xs, i, el, x := e.fresh("seq"), e.fresh("xs"), e.fresh("i"), e.fresh("el"), e.fresh("x")
		e.ifNotNull(src, path)
		e.line("%s, err := %s.Seq()", seq, src)
		e.line("if err != nil {")
		e.fail(path)
		e.line("}")
		e.line("%s := make(%s, 0, %s.Len())", xs, p.Type, seq)
		e.line("for %s := 0; ; %s++ {", i, i)
		e.line("%s, ok, err := %s.Next()", el, seq)
		e.line("if err != nil {")
		e.fail(extend(path, i))
		e.line("}")
		e.line("if !ok {")
		e.line("break")
		e.line("}")
		e.line("var %s %s", x, p.Type.(*schema.Slice).Elem)
		e.decodeValue(sc, p.Elem, varLoc(x), el, extend(path, i))
		e.line("%s = append(%s, %s)", xs, xs, x)
		e.line("}")
		e.line("%s = %s", l.val, xs)
		e.line("}")
	case bounds.PlanArray:
		seq, i, el := e.fresh("seq"), e.fresh("i"), e.fresh("el")
		e.line("%s, err := %s.Seq()", seq, src)
		e.line("if err != nil {")
		e.fail(path)
		e.line("}")
		e.line("if %s.Len() != len(%s) {", seq, l.val)
		e.line("return %s", at("statecodec.InvalidLength(len("+l.val+"), "+seq+".Len())", path))
		e.line("}")
		e.line("for %s := 0; %s < len(%s); %s++ {", i, i, l.val, i)
		e.line("%s, _, err := %s.Next()", el, seq)
		e.line("if err != nil {")
		e.fail(extend(path, i))
		e.line("}")
		e.decodeValue(sc, p.Elem, l.index(i), el, extend(path, i))
		e.line("}")
	case bounds.PlanMap:
		mt := p.Type.(*schema.Map)
		rec, m, k, mv, x := e.fresh("rec"), e.fresh("m"), e.fresh("k"), e.fresh("mv"), e.fresh("x")
		e.ifNotNull(src, path)
		e.line("%s, err := %s.Record(\"\")", rec, src)
		e.line("if err != nil {")
		e.fail(path)
		e.line("}")
		e.line("%s := make(%s)", m, mt)
		e.line("for {")
		e.line("%s, %s, ok, err := %s.Next()", k, mv, rec)
		e.line("if err != nil {")
		e.fail(path)
		e.line("}")
		e.line("if !ok {")
		e.line("break")
		e.line("}")
		gk := keyFromString(mt.Key, k)
		e.line("if _, dup := %s[%s]; dup {", m, gk)
		e.line("return %s", at("statecodec.DuplicateField("+k+")", path))
		e.line("}")
		e.line("var %s %s", x, mt.Elem)
		e.decodeValue(sc, p.Elem, varLoc(x), mv, extend(path, k))
		e.line("%s[%s] = %s", m, gk, x)
		e.line("}")
		e.line("%s = %s", l.val, m)
		e.line("}")
	}
}

// ifNotNull opens a block entered only when src holds a value.
func (e *emitter) ifNotNull(src string, path []string) {
	e.line("if null, err := %s.IsNull(); err != nil {", src)
	e.fail(path)
	e.line("} else if !null {")
}

func quote(s string) string { return strconv.Quote(s) }
