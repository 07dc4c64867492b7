// Package cborfmt is the CBOR format, backed by fxamacker/cbor.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2): the same value
// always produces the same bytes, and record keys come out sorted rather
// than in declared order.
package cborfmt

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/fxamacker/cbor/v2"

	statecodec "github.com/reoring/statecodec"
	"github.com/reoring/statecodec/internal/tree"
)

var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encOptions := cbor.CoreDetEncOptions()
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("cborfmt: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = decOptions(0).DecMode()
	if err != nil {
		panic("cborfmt: CBOR decoder initialization failed: " + err.Error())
	}
}

// decOptions picks map[string]any for untyped maps, since records only ever
// have text keys, and rejects duplicate map keys on the wire.
func decOptions(maxDepth int) cbor.DecOptions {
	opts := cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}
	if maxDepth > 0 {
		// fxamacker/cbor accepts 4..65535.
		opts.MaxNestedLevels = max(maxDepth, 4)
	}
	return opts
}

// Options tunes the CBOR format.
type Options struct {
	MaxDepth int
}

// Format implements statecodec.Format for CBOR.
type Format struct {
	dm cbor.DecMode
}

var _ statecodec.Format = (*Format)(nil)

func New() *Format { return &Format{dm: decMode} }

func NewWithOptions(opt Options) (*Format, error) {
	if opt.MaxDepth <= 0 {
		return New(), nil
	}
	dm, err := decOptions(opt.MaxDepth).DecMode()
	if err != nil {
		return nil, fmt.Errorf("cborfmt: %w", err)
	}
	return &Format{dm: dm}, nil
}

func (*Format) Name() string { return "cbor" }

func (f *Format) Encode(fn func(statecodec.Sink) error) ([]byte, error) {
	var root tree.Node
	if err := fn(tree.NewSink(&root)); err != nil {
		return nil, err
	}
	data, err := encMode.Marshal(toNative(&root))
	if err != nil {
		return nil, formatError(statecodec.PhaseEncode, err)
	}
	return data, nil
}

func (f *Format) Decode(data []byte, fn func(statecodec.Source) error) error {
	var v any
	if err := f.dm.Unmarshal(data, &v); err != nil {
		var dup *cbor.DupMapKeyError
		if errors.As(err, &dup) {
			return statecodec.NewError(statecodec.PhaseDecode, statecodec.KindDuplicateField).
				Value(dup.Key).
				Detail("duplicate field %v", dup.Key).
				Cause(err).
				Build()
		}
		return formatError(statecodec.PhaseDecode, err)
	}
	return fn(tree.NewSource(fromNative(v), f.decodeLeaf))
}

// decodeLeaf round-trips the native value through CBOR so dst sees the
// same type rules as a direct cbor.Unmarshal.
func (f *Format) decodeLeaf(n *tree.Node, dst any) error {
	data, err := encMode.Marshal(n.Raw)
	if err != nil {
		return err
	}
	return f.dm.Unmarshal(data, dst)
}

func toNative(n *tree.Node) any {
	switch n.Kind {
	case tree.KindScalar:
		return n.Value
	case tree.KindRecord:
		m := make(map[string]any, len(n.Fields))
		for _, fl := range n.Fields {
			m[fl.Key] = toNative(fl.Value)
		}
		return m
	case tree.KindSeq:
		s := make([]any, len(n.Items))
		for i, it := range n.Items {
			s[i] = toNative(it)
		}
		return s
	}
	return nil
}

func fromNative(v any) *tree.Node {
	switch x := v.(type) {
	case nil:
		return &tree.Node{Kind: tree.KindNull}
	case map[string]any:
		n := &tree.Node{Kind: tree.KindRecord, Raw: x}
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			n.Fields = append(n.Fields, tree.Field{Key: k, Value: fromNative(x[k])})
		}
		return n
	case []any:
		n := &tree.Node{Kind: tree.KindSeq, Raw: x}
		for _, it := range x {
			n.Items = append(n.Items, fromNative(it))
		}
		return n
	default:
		return &tree.Node{Kind: tree.KindScalar, Value: x, Raw: x}
	}
}

func formatError(phase statecodec.Phase, err error) error {
	return statecodec.NewError(phase, statecodec.KindFormat).
		Detail("cbor").
		Cause(err).
		Build()
}
