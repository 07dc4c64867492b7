// Package jsonfmt is the JSON format, backed by goccy/go-json.
package jsonfmt

import (
	"bytes"
	"fmt"
	"io"

	j "github.com/goccy/go-json"
	"github.com/tidwall/jsonc"

	statecodec "github.com/reoring/statecodec"
	eng "github.com/reoring/statecodec/internal/engine"
	"github.com/reoring/statecodec/internal/tree"
)

// Options bounds what Decode accepts. Zero values mean unlimited.
type Options struct {
	MaxDepth int
	MaxBytes int64
	// Indent, when set, pretty-prints Encode output with this indent string.
	Indent string
	// Comments lets Decode accept JSONC: comments and trailing commas are
	// stripped before parsing.
	Comments bool
}

// Format implements statecodec.Format for JSON.
type Format struct {
	opt Options
}

var _ statecodec.Format = (*Format)(nil)

func New() *Format { return &Format{} }

func NewWithOptions(opt Options) *Format { return &Format{opt: opt} }

func (*Format) Name() string { return "json" }

func (f *Format) Encode(fn func(statecodec.Sink) error) ([]byte, error) {
	var root tree.Node
	if err := fn(tree.NewSink(&root)); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeNode(&buf, &root); err != nil {
		return nil, formatError(statecodec.PhaseEncode, err)
	}
	if f.opt.Indent == "" {
		return buf.Bytes(), nil
	}
	var out bytes.Buffer
	if err := j.Indent(&out, buf.Bytes(), "", f.opt.Indent); err != nil {
		return nil, formatError(statecodec.PhaseEncode, err)
	}
	return out.Bytes(), nil
}

func (f *Format) Decode(data []byte, fn func(statecodec.Source) error) error {
	if f.opt.MaxBytes > 0 && int64(len(data)) > f.opt.MaxBytes {
		return statecodec.NewError(statecodec.PhaseDecode, statecodec.KindFormat).
			Detail("input of %d bytes exceeds limit of %d", len(data), f.opt.MaxBytes).
			Build()
	}
	if f.opt.Comments {
		data = jsonc.ToJSON(data)
	}
	ts := eng.WrapWithEnforcement(NewBytes(data), eng.EnforceOptions{MaxDepth: f.opt.MaxDepth})
	root, err := eng.BuildTree(ts)
	if err != nil {
		return formatError(statecodec.PhaseDecode, err)
	}
	if _, err := ts.NextToken(); err != io.EOF {
		if err == nil {
			err = fmt.Errorf("trailing data after top-level value")
		}
		return formatError(statecodec.PhaseDecode, err)
	}
	return fn(tree.NewSource(root, decodeLeaf))
}

// decodeLeaf re-renders the subtree and hands it to go-json, so plain
// values see exactly the JSON they were written as.
func decodeLeaf(n *tree.Node, dst any) error {
	var buf bytes.Buffer
	if err := writeNode(&buf, n); err != nil {
		return err
	}
	return j.Unmarshal(buf.Bytes(), dst)
}

func formatError(phase statecodec.Phase, err error) error {
	return statecodec.NewError(phase, statecodec.KindFormat).
		Detail("json").
		Cause(err).
		Build()
}
