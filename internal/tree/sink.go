package tree

import (
	statecodec "github.com/reoring/statecodec"
)

// NewSink returns a Sink that fills root.
func NewSink(root *Node) statecodec.Sink { return &sink{n: root} }

type sink struct{ n *Node }

func (s *sink) Encode(v any) error {
	s.n.Kind = KindScalar
	s.n.Value = v
	return nil
}

func (s *sink) Null() error {
	s.n.Kind = KindNull
	return nil
}

func (s *sink) Record(_ string, n int) (statecodec.RecordSink, error) {
	s.n.Kind = KindRecord
	s.n.Fields = make([]Field, 0, n)
	return &recordSink{n: s.n}, nil
}

func (s *sink) Seq(n int) (statecodec.SeqSink, error) {
	s.n.Kind = KindSeq
	s.n.Items = make([]*Node, 0, n)
	return &seqSink{n: s.n}, nil
}

// Variant writes the externally tagged form {variant: payload}.
func (s *sink) Variant(_, variant string) (statecodec.Sink, error) {
	child := &Node{}
	s.n.Kind = KindRecord
	s.n.Fields = []Field{{Key: variant, Value: child}}
	return &sink{n: child}, nil
}

// UnitVariant writes the bare tag.
func (s *sink) UnitVariant(_, variant string) error {
	s.n.Kind = KindScalar
	s.n.Value = variant
	return nil
}

type recordSink struct{ n *Node }

func (r *recordSink) Field(key string) statecodec.Sink {
	child := &Node{}
	r.n.Fields = append(r.n.Fields, Field{Key: key, Value: child})
	return &sink{n: child}
}

func (r *recordSink) End() error { return nil }

type seqSink struct{ n *Node }

func (q *seqSink) Elem() statecodec.Sink {
	child := &Node{}
	q.n.Items = append(q.n.Items, child)
	return &sink{n: child}
}

func (q *seqSink) End() error { return nil }
