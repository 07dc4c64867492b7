package cborfmt_test

import (
	"bytes"
	"errors"
	"testing"

	statecodec "github.com/reoring/statecodec"
	"github.com/reoring/statecodec/format/cborfmt"
)

type entry struct {
	Key   string
	Count uint32
	Items []string
}

func (e *entry) EncodeState(_ int, sink statecodec.Sink) error {
	rec, err := sink.Record("entry", 3)
	if err != nil {
		return err
	}
	_ = rec.Field("key").Encode(e.Key)
	_ = rec.Field("count").Encode(e.Count)
	seq, err := rec.Field("items").Seq(len(e.Items))
	if err != nil {
		return err
	}
	for _, it := range e.Items {
		_ = seq.Elem().Encode(it)
	}
	_ = seq.End()
	return rec.End()
}

func (e *entry) DecodeState(_ int, src statecodec.Source) error {
	rec, err := src.Record("entry")
	if err != nil {
		return err
	}
	var out entry
	for {
		key, val, ok, err := rec.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		switch key {
		case "key":
			err = val.Decode(&out.Key)
		case "count":
			err = val.Decode(&out.Count)
		case "items":
			var seq statecodec.SeqSource
			if seq, err = val.Seq(); err != nil {
				break
			}
			for {
				el, ok, nerr := seq.Next()
				if nerr != nil || !ok {
					err = nerr
					break
				}
				var s string
				if err = el.Decode(&s); err != nil {
					break
				}
				out.Items = append(out.Items, s)
			}
		}
		if err != nil {
			return statecodec.At(err, key)
		}
	}
	*e = out
	return nil
}

func TestRoundTripDeterministic(t *testing.T) {
	f := cborfmt.New()
	in := entry{Key: "k", Count: 42, Items: []string{"a", "b"}}
	first, err := statecodec.Marshal(f, &in, 0)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := statecodec.Marshal(f, &in, 0)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("encoding is not deterministic")
	}
	var out entry
	if err := statecodec.Unmarshal(f, first, &out, 0); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Key != "k" || out.Count != 42 || len(out.Items) != 2 || out.Items[1] != "b" {
		t.Fatalf("unexpected value: %+v", out)
	}
}

func TestDecodeDuplicateMapKey(t *testing.T) {
	// {"key": "a", "key": "b"}
	data := []byte{0xa2, 0x63, 'k', 'e', 'y', 0x61, 'a', 0x63, 'k', 'e', 'y', 0x61, 'b'}
	var out entry
	err := statecodec.Unmarshal(cborfmt.New(), data, &out, 0)
	if !errors.Is(err, statecodec.ErrDuplicateField) {
		t.Fatalf("expected duplicate_field, got %v", err)
	}
}

func TestDecodeNotARecord(t *testing.T) {
	data := []byte{0x61, 'x'}
	var out entry
	err := statecodec.Unmarshal(cborfmt.New(), data, &out, 0)
	if !errors.Is(err, statecodec.ErrInvalidType) {
		t.Fatalf("expected invalid_type, got %v", err)
	}
}

func TestNewWithOptionsDepth(t *testing.T) {
	f, err := cborfmt.NewWithOptions(cborfmt.Options{MaxDepth: 4})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	// [[[[[1]]]]]
	data := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	var out entry
	err = statecodec.Unmarshal(f, data, &out, 0)
	if !errors.Is(err, statecodec.ErrFormat) {
		t.Fatalf("expected depth failure, got %v", err)
	}
}
