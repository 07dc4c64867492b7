// Package resolve computes the effective mode, wire key and omission of
// every field and variant. It returns resolved copies and never mutates
// its input.
package resolve

import (
	"fmt"

	"github.com/reoring/statecodec/internal/schema"
)

// Catalog resolves every container of cat.
func Catalog(cat *schema.Catalog) (*schema.Catalog, error) {
	out := &schema.Catalog{Package: cat.Package, Impls: cat.Impls}
	for _, c := range cat.Containers {
		rc, err := Container(c)
		if err != nil {
			return nil, err
		}
		out.Containers = append(out.Containers, rc)
	}
	return out, nil
}

// Container resolves one container.
//
// Mode precedence is field, then variant, then container, then Stateful.
func Container(c *schema.Container) (*schema.Container, error) {
	rc := *c
	rc.Fields = nil
	rc.Variants = nil

	opts, err := schema.ParseAll(schema.LevelContainer, c.Name, c.Annotations)
	if err != nil {
		return nil, err
	}
	mode, err := modeOf(c.Name, c.Annotations, opts)
	if err != nil {
		return nil, err
	}
	rc.Mode = schema.Stateful
	if mode != nil {
		rc.Mode = *mode
	}
	rc.Transparent = false
	rc.Marker = schema.Marker{}
	for _, o := range opts {
		switch o.Name {
		case "transparent":
			rc.Transparent = true
		case "state", "state_implements":
			if rc.Marker.Kind != schema.MarkerNone {
				return nil, &schema.SchemaError{
					Element:    c.Name,
					Annotation: o.String(),
					Detail:     "at most one of state= and state_implements= may be given, once",
				}
			}
			rc.Marker = schema.Marker{Kind: schema.MarkerState, Type: o.Value}
			if o.Name == "state_implements" {
				rc.Marker.Kind = schema.MarkerCapability
			}
		}
	}

	switch c.Kind {
	case schema.KindRecord:
		rc.Fields, err = fields(c.Name, c.Fields, rc.Mode)
		if err != nil {
			return nil, err
		}
		if rc.Transparent {
			if n := len(schema.Included(rc.Fields)); n != 1 {
				return nil, &schema.SchemaError{
					Element:    c.Name,
					Annotation: "transparent",
					Detail:     fmt.Sprintf("transparent record must have exactly one included field, has %d", n),
				}
			}
		}
	case schema.KindUnion:
		if rc.Transparent {
			return nil, &schema.SchemaError{Element: c.Name, Annotation: "transparent", Detail: "unions cannot be transparent"}
		}
		if len(c.Params) > 0 {
			return nil, &schema.SchemaError{Element: c.Name, Detail: "generic unions are not supported"}
		}
		seen := make(map[string]bool, len(c.Variants))
		for _, v := range c.Variants {
			if seen[v.Name] {
				return nil, &schema.SchemaError{Element: c.Name, Detail: fmt.Sprintf("variant %s declared twice", v.Name)}
			}
			seen[v.Name] = true
			rv, err := variant(c.Name, v, rc.Mode)
			if err != nil {
				return nil, err
			}
			rc.Variants = append(rc.Variants, rv)
		}
	}
	rc.Resolved = true
	return &rc, nil
}

func variant(union string, v schema.Variant, def schema.Mode) (schema.Variant, error) {
	element := union + "/" + v.Name
	rv := v
	opts, err := schema.ParseAll(schema.LevelVariant, element, v.Annotations)
	if err != nil {
		return rv, err
	}
	mode, err := modeOf(element, v.Annotations, opts)
	if err != nil {
		return rv, err
	}
	rv.Mode = def
	if mode != nil {
		rv.Mode = *mode
	}
	rv.Fields, err = fields(element, v.Fields, rv.Mode)
	if err != nil {
		return rv, err
	}
	inc := len(schema.Included(rv.Fields))
	switch v.Style {
	case schema.StyleUnit:
		if len(v.Fields) != 0 {
			return rv, &schema.SchemaError{Element: element, Detail: "unit variant cannot have fields"}
		}
	case schema.StyleNewtype:
		if inc != 1 {
			return rv, &schema.SchemaError{
				Element: element,
				Detail:  fmt.Sprintf("newtype variant must have exactly one included field, has %d", inc),
			}
		}
	}
	return rv, nil
}

func fields(element string, in []schema.Field, def schema.Mode) ([]schema.Field, error) {
	out := make([]schema.Field, 0, len(in))
	keys := make(map[string]string, len(in))
	for _, f := range in {
		rf, err := field(element+"."+f.Name, f, def)
		if err != nil {
			return nil, err
		}
		if rf.Omission == schema.Include {
			if prev, dup := keys[rf.Key]; dup {
				return nil, &schema.SchemaError{
					Element: element + "." + f.Name,
					Detail:  fmt.Sprintf("wire key %q already used by field %s", rf.Key, prev),
				}
			}
			keys[rf.Key] = f.Name
		}
		out = append(out, rf)
	}
	return out, nil
}

func field(element string, f schema.Field, def schema.Mode) (schema.Field, error) {
	rf := f
	opts, err := schema.ParseAll(schema.LevelField, element, f.Annotations)
	if err != nil {
		return rf, err
	}
	mode, err := modeOf(element, f.Annotations, opts)
	if err != nil {
		return rf, err
	}
	rf.Mode = def
	if mode != nil {
		rf.Mode = *mode
	}
	rf.Key = f.Name
	rf.Omission = schema.Include
	renamed := false
	for _, o := range opts {
		switch o.Name {
		case "rename":
			if renamed {
				return rf, &schema.SchemaError{Element: element, Annotation: o.String(), Detail: "rename given more than once"}
			}
			renamed = true
			rf.Key = o.Value
		case "skip":
			rf.Omission = schema.SkipWithDefault
		}
	}
	if renamed && rf.Omission == schema.SkipWithDefault {
		return rf, &schema.SchemaError{Element: element, Annotation: joinText(f.Annotations), Detail: "a skipped field cannot be renamed"}
	}
	return rf, nil
}

// modeOf returns the explicit mode among opts, nil when none is given.
func modeOf(element string, anns []schema.Annotation, opts []schema.Option) (*schema.Mode, error) {
	var m *schema.Mode
	for _, o := range opts {
		var next schema.Mode
		switch o.Name {
		case "stateless":
			next = schema.Stateless
		case "stateful":
			next = schema.Stateful
		default:
			continue
		}
		if m != nil && *m != next {
			return nil, &schema.SchemaError{Element: element, Annotation: joinText(anns), Detail: "both stateless and stateful given"}
		}
		m = &next
	}
	return m, nil
}

func joinText(anns []schema.Annotation) string {
	s := ""
	for i, a := range anns {
		if i > 0 {
			s += ","
		}
		s += a.Text
	}
	return s
}
