package jsonfmt

import (
	"bytes"

	j "github.com/goccy/go-json"

	eng "github.com/reoring/statecodec/internal/engine"
	"github.com/reoring/statecodec/internal/tree"
)

// writeNode renders n as JSON, keeping record entries in tree order.
func writeNode(buf *bytes.Buffer, n *tree.Node) error {
	switch n.Kind {
	case tree.KindNull:
		buf.WriteString("null")
	case tree.KindScalar:
		if num, ok := n.Value.(eng.Number); ok {
			buf.WriteString(string(num))
			return nil
		}
		b, err := j.Marshal(n.Value)
		if err != nil {
			return err
		}
		buf.Write(b)
	case tree.KindRecord:
		buf.WriteByte('{')
		for i, f := range n.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := j.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := writeNode(buf, f.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case tree.KindSeq:
		buf.WriteByte('[')
		for i, it := range n.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeNode(buf, it); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}
	return nil
}
