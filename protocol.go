package statecodec

import (
	"cmp"
	"slices"
)

// Encoder is implemented by values that encode themselves while handing the
// caller's state to every nested value that asks for it.
type Encoder[S any] interface {
	EncodeState(state S, sink Sink) error
}

// Decoder is the decoding counterpart of Encoder. Implementations must leave
// the receiver untouched when they return an error.
type Decoder[S any] interface {
	DecodeState(state S, src Source) error
}

// Codec combines both directions.
type Codec[S any] interface {
	Encoder[S]
	Decoder[S]
}

// Ptr is the constraint generated generic operations place on a threaded
// type parameter T: the pointer type PT must implement Codec[S].
//
//	func EncodeBoxState[S any, T any, PT statecodec.Ptr[T, S]](v *Box[T], state S, sink statecodec.Sink) error
type Ptr[T, S any] interface {
	*T
	Codec[S]
}

// EncodeDynamic encodes v through its Encoder[S] implementation, checked at
// run time. Generated code uses it where the state type is only known to
// satisfy a capability and the value's implementation is for a concrete type.
func EncodeDynamic[S any](v any, state S, sink Sink) error {
	enc, ok := v.(Encoder[S])
	if !ok {
		return NewError(PhaseEncode, KindInvalidType).
			Detail("%T does not implement Encoder[%T]", v, state).
			Build()
	}
	return enc.EncodeState(state, sink)
}

// DecodeDynamic is the decoding counterpart of EncodeDynamic. v must be a pointer.
func DecodeDynamic[S any](v any, state S, src Source) error {
	dec, ok := v.(Decoder[S])
	if !ok {
		return NewError(PhaseDecode, KindInvalidType).
			Detail("%T does not implement Decoder[%T]", v, state).
			Build()
	}
	return dec.DecodeState(state, src)
}

// SortedKeys returns the keys of m in ascending order so string-keyed maps
// encode deterministically.
func SortedKeys[M ~map[K]V, K cmp.Ordered, V any](m M) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
