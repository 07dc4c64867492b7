// Package load reads a Go package from source and builds the schema
// catalog the generator works on: the containers selected by directives
// or by name, and the hand-written EncodeState/DecodeState pairs that
// fields may refer to.
//
// Containers are selected with doc-comment directives:
//
//	//statecodec:generate
//	//statecodec:state=*Recorder
//	type Tree struct { ... }
//
//	//statecodec:union
//	//statecodec:variant Circle stateless
//	//statecodec:variant Point
//	type Shape interface{ isShape() }
//
// Field options come from the struct tag named by Options.Tag.
package load

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/reoring/statecodec/internal/schema"
)

// DirectivePrefix starts every doc-comment directive.
const DirectivePrefix = "//statecodec:"

// DefaultTag is the struct tag key read when Options.Tag is empty.
const DefaultTag = "state"

// Options controls which declarations are loaded.
type Options struct {
	// Types, when set, selects containers by name instead of by directive.
	Types []string
	// Tag is the struct tag key holding field options.
	Tag string
	// Exclude lists file base names to ignore, typically the previous output.
	Exclude []string
}

// Dir parses the non-test Go files of dir and builds a catalog.
func Dir(dir string, opt Options) (*schema.Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load: reading %s: %w", dir, err)
	}
	fset := token.NewFileSet()
	var files []*ast.File
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		if slices.Contains(opt.Exclude, name) {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("load: no Go files in %s", dir)
	}
	Logger().Debug("parsed package", zap.String("dir", dir), zap.Int("files", len(files)))
	return Files(files, opt)
}

// Source parses a single file held in memory.
func Source(filename string, src []byte, opt Options) (*schema.Catalog, error) {
	f, err := parser.ParseFile(token.NewFileSet(), filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return Files([]*ast.File{f}, opt)
}

// decl is one type declaration with the doc comment that applies to it.
type decl struct {
	spec *ast.TypeSpec
	doc  *ast.CommentGroup
}

type loader struct {
	opt   Options
	decls map[string]decl
	order []string
	// pointerReceiver holds "Type.Method" for methods declared on *Type.
	pointerReceiver map[string]bool
	halves          map[string]int
}

// Files builds a catalog from parsed files of one package. Declaration
// order across files follows the order of files.
func Files(files []*ast.File, opt Options) (*schema.Catalog, error) {
	if opt.Tag == "" {
		opt.Tag = DefaultTag
	}
	l := &loader{
		opt:             opt,
		decls:           map[string]decl{},
		pointerReceiver: map[string]bool{},
		halves:          map[string]int{},
	}
	pkg := ""
	for _, f := range files {
		if pkg == "" {
			pkg = f.Name.Name
		} else if f.Name.Name != pkg {
			return nil, fmt.Errorf("load: files of packages %s and %s mixed", pkg, f.Name.Name)
		}
		l.collect(f)
	}

	selected, err := l.selection()
	if err != nil {
		return nil, err
	}
	cat := &schema.Catalog{Package: pkg, Impls: map[string]schema.Impl{}}
	batch := map[string]bool{}
	for _, name := range selected {
		c, err := l.container(name)
		if err != nil {
			return nil, err
		}
		cat.Containers = append(cat.Containers, c)
		batch[name] = true
	}
	for _, f := range files {
		l.impls(f, batch, cat.Impls)
	}
	Logger().Debug("loaded catalog",
		zap.String("package", pkg),
		zap.Int("containers", len(cat.Containers)),
		zap.Int("impls", len(cat.Impls)),
	)
	return cat, nil
}

func (l *loader) collect(f *ast.File) {
	for _, d := range f.Decls {
		if fd, ok := d.(*ast.FuncDecl); ok && fd.Recv != nil && len(fd.Recv.List) == 1 {
			if recv, pointer := receiver(fd.Recv.List[0].Type); recv != "" && pointer {
				l.pointerReceiver[recv+"."+fd.Name.Name] = true
			}
			continue
		}
		gd, ok := d.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, s := range gd.Specs {
			ts := s.(*ast.TypeSpec)
			doc := ts.Doc
			if doc == nil && len(gd.Specs) == 1 {
				doc = gd.Doc
			}
			l.decls[ts.Name.Name] = decl{spec: ts, doc: doc}
			l.order = append(l.order, ts.Name.Name)
		}
	}
}

func (l *loader) selection() ([]string, error) {
	if len(l.opt.Types) > 0 {
		for _, name := range l.opt.Types {
			if _, ok := l.decls[name]; !ok {
				return nil, fmt.Errorf("load: type %s not found", name)
			}
		}
		return l.opt.Types, nil
	}
	var out []string
	for _, name := range l.order {
		if len(directives(l.decls[name].doc)) > 0 {
			out = append(out, name)
		}
	}
	return out, nil
}

// directives returns the text after the prefix of every directive line.
func directives(doc *ast.CommentGroup) []string {
	if doc == nil {
		return nil
	}
	var out []string
	for _, c := range doc.List {
		if rest, ok := strings.CutPrefix(c.Text, DirectivePrefix); ok {
			out = append(out, strings.TrimSpace(rest))
		}
	}
	return out
}

type variantDirective struct {
	name string
	opts string
}

func (l *loader) container(name string) (*schema.Container, error) {
	d := l.decls[name]
	c := &schema.Container{Name: name, Params: typeParams(d.spec.TypeParams)}
	union := false
	var variants []variantDirective
	for _, text := range directives(d.doc) {
		switch {
		case text == "union":
			union = true
		case strings.HasPrefix(text, "variant ") || text == "variant":
			parts := strings.Fields(text)
			if len(parts) < 2 || len(parts) > 3 {
				return nil, &schema.SchemaError{Element: name, Annotation: text, Detail: "expected variant NAME [options]"}
			}
			vd := variantDirective{name: parts[1]}
			if len(parts) == 3 {
				vd.opts = parts[2]
			}
			variants = append(variants, vd)
		case text != "":
			c.Annotations = append(c.Annotations, schema.Annotation{Level: schema.LevelContainer, Text: text})
		}
	}
	params := paramSet(c.Params)

	switch t := d.spec.Type.(type) {
	case *ast.StructType:
		if union || len(variants) > 0 {
			return nil, &schema.SchemaError{Element: name, Detail: "union directives require an interface type"}
		}
		c.Kind = schema.KindRecord
		fields, err := l.fields(name, t, params)
		if err != nil {
			return nil, err
		}
		c.Fields = fields
	case *ast.InterfaceType:
		if !union {
			return nil, &schema.SchemaError{Element: name, Detail: "interface types need //statecodec:union"}
		}
		c.Kind = schema.KindUnion
		marker := markerMethod(t)
		for _, vd := range variants {
			v, err := l.variant(name, vd, marker)
			if err != nil {
				return nil, err
			}
			c.Variants = append(c.Variants, v)
		}
	default:
		return nil, &schema.SchemaError{Element: name, Detail: "only struct and interface types can be generated"}
	}
	return c, nil
}

func (l *loader) variant(union string, vd variantDirective, marker string) (schema.Variant, error) {
	element := union + "/" + vd.name
	v := schema.Variant{Name: vd.name}
	if vd.opts != "" {
		v.Annotations = []schema.Annotation{{Level: schema.LevelVariant, Text: vd.opts}}
	}
	opts, err := schema.ParseAll(schema.LevelVariant, element, v.Annotations)
	if err != nil {
		return v, err
	}
	d, ok := l.decls[vd.name]
	if !ok {
		return v, &schema.SchemaError{Element: element, Detail: fmt.Sprintf("variant type %s not found", vd.name)}
	}
	st, ok := d.spec.Type.(*ast.StructType)
	if !ok || d.spec.TypeParams != nil {
		return v, &schema.SchemaError{Element: element, Detail: "variant types must be non-generic structs"}
	}
	v.Fields, err = l.fields(element, st, nil)
	if err != nil {
		return v, err
	}
	v.Style = schema.StyleNamed
	if len(v.Fields) == 0 {
		v.Style = schema.StyleUnit
	}
	for _, o := range opts {
		switch o.Name {
		case "tuple":
			v.Style = schema.StyleTuple
		case "newtype":
			v.Style = schema.StyleNewtype
		case "pointer":
			v.Pointer = true
		}
	}
	if marker != "" && l.pointerReceiver[vd.name+"."+marker] {
		v.Pointer = true
	}
	return v, nil
}

func (l *loader) fields(element string, st *ast.StructType, params map[string]bool) ([]schema.Field, error) {
	var out []schema.Field
	for _, f := range st.Fields.List {
		var text string
		if f.Tag != nil {
			tag := reflect.StructTag(strings.Trim(f.Tag.Value, "`"))
			text = tag.Get(l.opt.Tag)
		}
		typ := l.typeOf(f.Type, params)
		names := make([]string, 0, len(f.Names))
		for _, n := range f.Names {
			names = append(names, n.Name)
		}
		if len(names) == 0 {
			names = append(names, embeddedName(f.Type))
		}
		for _, n := range names {
			if n == "_" {
				continue
			}
			field := schema.Field{Name: n, Type: typ}
			if text != "" {
				field.Annotations = []schema.Annotation{{Level: schema.LevelField, Text: text}}
			}
			out = append(out, field)
		}
	}
	return out, nil
}

func embeddedName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return embeddedName(t.X)
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.IndexExpr:
		return embeddedName(t.X)
	case *ast.IndexListExpr:
		return embeddedName(t.X)
	case *ast.Ident:
		return t.Name
	}
	return types.ExprString(expr)
}

func typeParams(list *ast.FieldList) []schema.TypeParam {
	if list == nil {
		return nil
	}
	var out []schema.TypeParam
	for _, f := range list.List {
		constraint := types.ExprString(f.Type)
		for _, n := range f.Names {
			out = append(out, schema.TypeParam{Name: n.Name, Constraint: constraint})
		}
	}
	return out
}

func paramSet(ps []schema.TypeParam) map[string]bool {
	set := make(map[string]bool, len(ps))
	for _, p := range ps {
		set[p.Name] = true
	}
	return set
}

// markerMethod returns the first method the union interface declares.
func markerMethod(it *ast.InterfaceType) string {
	if it.Methods == nil {
		return ""
	}
	for _, m := range it.Methods.List {
		if _, ok := m.Type.(*ast.FuncType); ok && len(m.Names) > 0 {
			return m.Names[0].Name
		}
	}
	return ""
}

var predeclared = map[string]bool{
	"bool": true, "string": true, "error": true, "any": true, "byte": true, "rune": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"float32": true, "float64": true, "complex64": true, "complex128": true,
}

func (l *loader) typeOf(expr ast.Expr, params map[string]bool) schema.Type {
	switch t := expr.(type) {
	case *ast.Ident:
		if params[t.Name] {
			return &schema.Param{Name: t.Name}
		}
		if predeclared[t.Name] {
			return &schema.Basic{Name: t.Name}
		}
		return &schema.Named{Name: t.Name, Underlying: l.underlying(t.Name)}
	case *ast.SelectorExpr:
		if pkg, ok := t.X.(*ast.Ident); ok {
			return &schema.Named{Pkg: pkg.Name, Name: t.Sel.Name}
		}
	case *ast.ParenExpr:
		return l.typeOf(t.X, params)
	case *ast.StarExpr:
		return &schema.Pointer{Elem: l.typeOf(t.X, params)}
	case *ast.ArrayType:
		if t.Len == nil {
			return &schema.Slice{Elem: l.typeOf(t.Elt, params)}
		}
		if _, ok := t.Len.(*ast.Ellipsis); !ok {
			return &schema.Array{Len: types.ExprString(t.Len), Elem: l.typeOf(t.Elt, params)}
		}
	case *ast.MapType:
		return &schema.Map{Key: l.typeOf(t.Key, params), Elem: l.typeOf(t.Value, params)}
	case *ast.IndexExpr:
		return l.instance(t.X, []ast.Expr{t.Index}, params, expr)
	case *ast.IndexListExpr:
		return l.instance(t.X, t.Indices, params, expr)
	}
	return &schema.Opaque{Expr: types.ExprString(expr)}
}

func (l *loader) instance(base ast.Expr, args []ast.Expr, params map[string]bool, expr ast.Expr) schema.Type {
	n, ok := l.typeOf(base, params).(*schema.Named)
	if !ok {
		return &schema.Opaque{Expr: types.ExprString(expr)}
	}
	for _, a := range args {
		n.Args = append(n.Args, l.typeOf(a, params))
	}
	return n
}

// underlying resolves the underlying type of a local named type one level
// deep when it is predeclared, which is all map key checks need.
func (l *loader) underlying(name string) schema.Type {
	d, ok := l.decls[name]
	if !ok || d.spec.TypeParams != nil {
		return nil
	}
	if id, ok := d.spec.Type.(*ast.Ident); ok && predeclared[id.Name] {
		return &schema.Basic{Name: id.Name}
	}
	return nil
}

// impls records every non-generic local type that declares both
// EncodeState and DecodeState with the same state type and is not itself
// part of the batch.
func (l *loader) impls(f *ast.File, batch map[string]bool, out map[string]schema.Impl) {
	for _, d := range f.Decls {
		fd, ok := d.(*ast.FuncDecl)
		if !ok || fd.Recv == nil || len(fd.Recv.List) != 1 {
			continue
		}
		recv, _ := receiver(fd.Recv.List[0].Type)
		if recv == "" || batch[recv] || (fd.Name.Name != "EncodeState" && fd.Name.Name != "DecodeState") {
			continue
		}
		params := fd.Type.Params.List
		if len(params) != 2 {
			continue
		}
		state := types.ExprString(params[0].Type)
		key := recv + "\x00" + state
		l.halves[key] |= half(fd.Name.Name)
		if l.halves[key] == encodeHalf|decodeHalf {
			out[recv] = schema.Impl{Type: recv, State: state}
			Logger().Debug("found implementation", zap.String("type", recv), zap.String("state", state))
		}
	}
}

const (
	encodeHalf = 1 << iota
	decodeHalf
)

func half(method string) int {
	if method == "EncodeState" {
		return encodeHalf
	}
	return decodeHalf
}

// receiver returns the receiver's type name; generic receivers yield "".
func receiver(expr ast.Expr) (name string, pointer bool) {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr, pointer = star.X, true
	}
	if id, ok := expr.(*ast.Ident); ok {
		return id.Name, pointer
	}
	return "", false
}

// SortedImpls lists the impl type names of cat in order.
func SortedImpls(cat *schema.Catalog) []string {
	return slices.Sorted(maps.Keys(cat.Impls))
}
