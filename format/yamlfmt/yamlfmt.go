// Package yamlfmt is the YAML format, backed by gopkg.in/yaml.v3.
package yamlfmt

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	statecodec "github.com/reoring/statecodec"
	"github.com/reoring/statecodec/internal/tree"
)

// Options tunes the YAML format.
type Options struct {
	Indent   int // spaces per level on Encode, default 2
	MaxDepth int
}

// Format implements statecodec.Format for YAML.
type Format struct {
	opt Options
}

var _ statecodec.Format = (*Format)(nil)

func New() *Format { return &Format{opt: Options{Indent: 2}} }

func NewWithOptions(opt Options) *Format {
	if opt.Indent <= 0 {
		opt.Indent = 2
	}
	return &Format{opt: opt}
}

func (*Format) Name() string { return "yaml" }

func (f *Format) Encode(fn func(statecodec.Sink) error) ([]byte, error) {
	var root tree.Node
	if err := fn(tree.NewSink(&root)); err != nil {
		return nil, err
	}
	yn, err := toYAML(&root)
	if err != nil {
		return nil, formatError(statecodec.PhaseEncode, err)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(f.opt.Indent)
	if err := enc.Encode(yn); err != nil {
		return nil, formatError(statecodec.PhaseEncode, err)
	}
	if err := enc.Close(); err != nil {
		return nil, formatError(statecodec.PhaseEncode, err)
	}
	return buf.Bytes(), nil
}

func (f *Format) Decode(data []byte, fn func(statecodec.Source) error) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return formatError(statecodec.PhaseDecode, err)
	}
	root, err := fromYAML(&doc)
	if err != nil {
		return formatError(statecodec.PhaseDecode, err)
	}
	if f.opt.MaxDepth > 0 && root.Depth() > f.opt.MaxDepth {
		return formatError(statecodec.PhaseDecode, fmt.Errorf("max depth %d exceeded", f.opt.MaxDepth))
	}
	return fn(tree.NewSource(root, decodeLeaf))
}

func decodeLeaf(n *tree.Node, dst any) error {
	yn, ok := n.Raw.(*yaml.Node)
	if !ok {
		return fmt.Errorf("yaml: node carries no source representation")
	}
	return yn.Decode(dst)
}

func toYAML(n *tree.Node) (*yaml.Node, error) {
	switch n.Kind {
	case tree.KindNull:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case tree.KindScalar:
		var yn yaml.Node
		if err := yn.Encode(n.Value); err != nil {
			return nil, err
		}
		return &yn, nil
	case tree.KindRecord:
		yn := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, fl := range n.Fields {
			v, err := toYAML(fl.Value)
			if err != nil {
				return nil, err
			}
			key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fl.Key}
			yn.Content = append(yn.Content, key, v)
		}
		return yn, nil
	case tree.KindSeq:
		yn := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, it := range n.Items {
			v, err := toYAML(it)
			if err != nil {
				return nil, err
			}
			yn.Content = append(yn.Content, v)
		}
		return yn, nil
	}
	return nil, fmt.Errorf("yaml: unknown node kind %v", n.Kind)
}

func fromYAML(yn *yaml.Node) (*tree.Node, error) {
	switch yn.Kind {
	case yaml.DocumentNode:
		if len(yn.Content) == 0 {
			return &tree.Node{Kind: tree.KindNull, Raw: yn}, nil
		}
		return fromYAML(yn.Content[0])
	case yaml.AliasNode:
		return fromYAML(yn.Alias)
	case yaml.ScalarNode:
		if yn.Tag == "!!null" {
			return &tree.Node{Kind: tree.KindNull, Raw: yn}, nil
		}
		var v any
		if err := yn.Decode(&v); err != nil {
			return nil, err
		}
		return &tree.Node{Kind: tree.KindScalar, Value: v, Raw: yn}, nil
	case yaml.MappingNode:
		n := &tree.Node{Kind: tree.KindRecord, Raw: yn}
		for i := 0; i+1 < len(yn.Content); i += 2 {
			k, v := yn.Content[i], yn.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("yaml: line %d: non-scalar mapping key", k.Line)
			}
			child, err := fromYAML(v)
			if err != nil {
				return nil, err
			}
			n.Fields = append(n.Fields, tree.Field{Key: k.Value, Value: child})
		}
		return n, nil
	case yaml.SequenceNode:
		n := &tree.Node{Kind: tree.KindSeq, Raw: yn}
		for _, c := range yn.Content {
			child, err := fromYAML(c)
			if err != nil {
				return nil, err
			}
			n.Items = append(n.Items, child)
		}
		return n, nil
	}
	return nil, fmt.Errorf("yaml: line %d: unsupported node kind %v", yn.Line, yn.Kind)
}

func formatError(phase statecodec.Phase, err error) error {
	return statecodec.NewError(phase, statecodec.KindFormat).
		Detail("yaml").
		Cause(err).
		Build()
}
