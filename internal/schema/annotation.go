package schema

import (
	"fmt"
	"strings"
)

// Level is where an annotation is attached.
type Level int

const (
	LevelContainer Level = iota
	LevelVariant
	LevelField
)

func (l Level) String() string {
	switch l {
	case LevelContainer:
		return "container"
	case LevelVariant:
		return "variant"
	default:
		return "field"
	}
}

// Annotation is the raw option text attached to an element, e.g.
// "stateless,rename=id" from a struct tag or "state=*Recorder" from a directive.
type Annotation struct {
	Level Level
	Text  string
}

// Option is one parsed annotation option.
type Option struct {
	Name     string
	Value    string
	HasValue bool
}

func (o Option) String() string {
	if o.HasValue {
		return o.Name + "=" + o.Value
	}
	return o.Name
}

// option arity per level: true takes a value, false is a flag.
var options = map[Level]map[string]bool{
	LevelContainer: {
		"stateless":        false,
		"stateful":         false,
		"transparent":      false,
		"generate":         false,
		"state":            true,
		"state_implements": true,
	},
	LevelVariant: {
		"stateless": false,
		"stateful":  false,
		"tuple":     false,
		"newtype":   false,
		"pointer":   false,
	},
	LevelField: {
		"stateless": false,
		"stateful":  false,
		"skip":      false,
		"rename":    true,
	},
}

// ParseAnnotation parses a comma separated option list for an element at
// level. Empty text yields no options. Whitespace around names and values
// is ignored; values cannot contain commas.
func ParseAnnotation(level Level, element, text string) ([]Option, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	known := options[level]
	var out []Option
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, &SchemaError{Element: element, Annotation: text, Detail: "empty option"}
		}
		opt := Option{Name: part}
		if i := strings.IndexByte(part, '='); i >= 0 {
			opt = Option{
				Name:     strings.TrimSpace(part[:i]),
				Value:    strings.TrimSpace(part[i+1:]),
				HasValue: true,
			}
		}
		wantsValue, ok := known[opt.Name]
		if !ok {
			return nil, &SchemaError{
				Element:    element,
				Annotation: text,
				Detail:     fmt.Sprintf("unknown %s option %q", level, opt.Name),
			}
		}
		switch {
		case wantsValue && !opt.HasValue:
			return nil, &SchemaError{Element: element, Annotation: text, Detail: fmt.Sprintf("option %q requires a value", opt.Name)}
		case wantsValue && opt.Value == "":
			return nil, &SchemaError{Element: element, Annotation: text, Detail: fmt.Sprintf("option %q has an empty value", opt.Name)}
		case !wantsValue && opt.HasValue:
			return nil, &SchemaError{Element: element, Annotation: text, Detail: fmt.Sprintf("option %q does not take a value", opt.Name)}
		}
		out = append(out, opt)
	}
	return out, nil
}

// ParseAll parses every annotation of one element and concatenates the options.
func ParseAll(level Level, element string, anns []Annotation) ([]Option, error) {
	var out []Option
	for _, a := range anns {
		opts, err := ParseAnnotation(level, element, a.Text)
		if err != nil {
			return nil, err
		}
		out = append(out, opts...)
	}
	return out, nil
}
