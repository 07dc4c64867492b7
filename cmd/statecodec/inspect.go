package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/reoring/statecodec/internal/bounds"
	"github.com/reoring/statecodec/internal/load"
	"github.com/reoring/statecodec/internal/schema"
)

func inspectCmd(args []string) {
	var format string
	cfg, log := setup("inspect", args, false, func(fs *flag.FlagSet) {
		fs.StringVar(&format, "format", "yaml", "output format: yaml or json")
	})
	defer log.Sync() //nolint:errcheck
	if len(cfg.Dirs) != 1 {
		fatalf("inspect takes one directory, got %d", len(cfg.Dirs))
	}
	a, err := analyze(cfg, cfg.Dirs[0])
	if err != nil {
		fatalf("inspect: %v", err)
	}
	if err := writeView(os.Stdout, format, buildView(a)); err != nil {
		fatalf("inspect: %v", err)
	}
}

// view is the resolved, inferred picture of one package.
type view struct {
	Package    string          `yaml:"package" json:"package"`
	Impls      []implView      `yaml:"impls,omitempty" json:"impls,omitempty"`
	Containers []containerView `yaml:"containers" json:"containers"`
}

type implView struct {
	Type  string `yaml:"type" json:"type"`
	State string `yaml:"state" json:"state"`
}

type containerView struct {
	Name        string        `yaml:"name" json:"name"`
	Kind        string        `yaml:"kind" json:"kind"`
	Form        string        `yaml:"form" json:"form"`
	State       string        `yaml:"state" json:"state"`
	Coarse      bool          `yaml:"coarse,omitempty" json:"coarse,omitempty"`
	Transparent bool          `yaml:"transparent,omitempty" json:"transparent,omitempty"`
	Constraints []string      `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Fields      []fieldView   `yaml:"fields,omitempty" json:"fields,omitempty"`
	Variants    []variantView `yaml:"variants,omitempty" json:"variants,omitempty"`
}

type variantView struct {
	Name    string      `yaml:"name" json:"name"`
	Style   string      `yaml:"style" json:"style"`
	Mode    string      `yaml:"mode" json:"mode"`
	Pointer bool        `yaml:"pointer,omitempty" json:"pointer,omitempty"`
	Fields  []fieldView `yaml:"fields,omitempty" json:"fields,omitempty"`
}

type fieldView struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
	Key  string `yaml:"key,omitempty" json:"key,omitempty"`
	Mode string `yaml:"mode" json:"mode"`
	Plan string `yaml:"plan" json:"plan"`
}

func buildView(a *analysis) view {
	v := view{Package: a.catalog.Package}
	for _, name := range load.SortedImpls(a.catalog) {
		impl := a.catalog.Impls[name]
		v.Impls = append(v.Impls, implView{Type: impl.Type, State: impl.State})
	}
	for _, name := range a.bounds.Order {
		r := a.bounds.Get(name)
		c := r.Container
		cv := containerView{
			Name:        c.Name,
			Kind:        c.Kind.String(),
			Form:        "functions",
			State:       r.State.String(),
			Coarse:      r.Coarse,
			Transparent: c.Transparent,
		}
		if r.Methods() {
			cv.Form = "methods"
		}
		for _, k := range r.Constraints {
			cv.Constraints = append(cv.Constraints, k.Subject+": "+k.Bound)
		}
		cv.Fields = fieldViews(c.Fields, r.Fields)
		for i, vr := range c.Variants {
			cv.Variants = append(cv.Variants, variantView{
				Name:    vr.Name,
				Style:   vr.Style.String(),
				Mode:    vr.Mode.String(),
				Pointer: vr.Pointer,
				Fields:  fieldViews(vr.Fields, r.Variants[i]),
			})
		}
		v.Containers = append(v.Containers, cv)
	}
	return v
}

func fieldViews(fields []schema.Field, plans []*bounds.Plan) []fieldView {
	var out []fieldView
	for i, f := range fields {
		fv := fieldView{Name: f.Name, Type: f.Type.String(), Mode: f.Mode.String(), Plan: describePlan(plans[i])}
		if f.Omission == schema.Include {
			fv.Key = f.Key
		}
		out = append(out, fv)
	}
	return out
}

// describePlan renders a plan as e.g. "slice(param T)".
func describePlan(p *bounds.Plan) string {
	if p == nil {
		return "skip"
	}
	switch p.Kind {
	case bounds.PlanParam:
		return "param " + p.Param
	case bounds.PlanRecord, bounds.PlanUnion:
		args := make([]string, len(p.Args))
		for i, a := range p.Args {
			args[i] = a.String()
		}
		if len(args) == 0 {
			return p.Kind.String() + " " + p.Target
		}
		return p.Kind.String() + " " + p.Target + "[" + strings.Join(args, ", ") + "]"
	case bounds.PlanPointer, bounds.PlanSlice, bounds.PlanArray, bounds.PlanMap:
		return p.Kind.String() + "(" + describePlan(p.Elem) + ")"
	}
	return p.Kind.String()
}

func writeView(w io.Writer, format string, v view) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case "yaml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
		_, err := w.Write(buf.Bytes())
		return err
	}
	return fmt.Errorf("unknown format %q, want yaml or json", format)
}
