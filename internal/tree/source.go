package tree

import (
	"errors"

	statecodec "github.com/reoring/statecodec"
)

// LeafDecoder decodes n into dst with a format's plain decoder.
type LeafDecoder func(n *Node, dst any) error

// NewSource returns a Source reading n. leaf handles Source.Decode.
func NewSource(n *Node, leaf LeafDecoder) statecodec.Source {
	return &source{n: n, leaf: leaf}
}

type source struct {
	n    *Node
	leaf LeafDecoder
}

func (s *source) Decode(dst any) error {
	if err := s.leaf(s.n, dst); err != nil {
		var se *statecodec.Error
		if errors.As(err, &se) {
			return err
		}
		return statecodec.NewError(statecodec.PhaseDecode, statecodec.KindInvalidType).
			Detail("cannot decode %s into %T", s.n.Describe(), dst).
			Cause(err).
			Build()
	}
	return nil
}

func (s *source) IsNull() (bool, error) { return s.n.Kind == KindNull, nil }

func (s *source) Record(name string) (statecodec.RecordSource, error) {
	if s.n.Kind != KindRecord {
		return nil, mismatch("record", name, s.n)
	}
	return &recordSource{n: s.n, leaf: s.leaf}, nil
}

func (s *source) Seq() (statecodec.SeqSource, error) {
	if s.n.Kind != KindSeq {
		return nil, mismatch("sequence", "", s.n)
	}
	return &seqSource{n: s.n, leaf: s.leaf}, nil
}

func (s *source) Variant(union string) (string, statecodec.Source, error) {
	switch s.n.Kind {
	case KindScalar:
		if tag, ok := s.n.Value.(string); ok {
			return tag, nil, nil
		}
	case KindRecord:
		if len(s.n.Fields) == 1 {
			f := s.n.Fields[0]
			return f.Key, &source{n: f.Value, leaf: s.leaf}, nil
		}
		return "", nil, statecodec.NewError(statecodec.PhaseDecode, statecodec.KindInvalidType).
			Detail("variant of %s must be a map with exactly one entry, got %d entries", union, len(s.n.Fields)).
			Build()
	}
	return "", nil, mismatch("variant", union, s.n)
}

type recordSource struct {
	n    *Node
	leaf LeafDecoder
	i    int
}

func (r *recordSource) Next() (string, statecodec.Source, bool, error) {
	if r.i >= len(r.n.Fields) {
		return "", nil, false, nil
	}
	f := r.n.Fields[r.i]
	r.i++
	return f.Key, &source{n: f.Value, leaf: r.leaf}, true, nil
}

type seqSource struct {
	n    *Node
	leaf LeafDecoder
	i    int
}

func (q *seqSource) Next() (statecodec.Source, bool, error) {
	if q.i >= len(q.n.Items) {
		return nil, false, nil
	}
	it := q.n.Items[q.i]
	q.i++
	return &source{n: it, leaf: q.leaf}, true, nil
}

func (q *seqSource) Len() int { return len(q.n.Items) }

func mismatch(want, name string, n *Node) error {
	b := statecodec.NewError(statecodec.PhaseDecode, statecodec.KindInvalidType)
	if name != "" {
		return b.Detail("expected %s %s, got %s", want, name, n.Describe()).Build()
	}
	return b.Detail("expected %s, got %s", want, n.Describe()).Build()
}
