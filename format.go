package statecodec

// Format turns Sink calls into bytes and bytes into a Source.
// Implementations live under format/.
type Format interface {
	Name() string
	Encode(fn func(Sink) error) ([]byte, error)
	Decode(data []byte, fn func(Source) error) error
}

// Marshal encodes v in format f, threading state through every stateful field.
func Marshal[S any](f Format, v Encoder[S], state S) ([]byte, error) {
	return f.Encode(func(sink Sink) error {
		return v.EncodeState(state, sink)
	})
}

// Unmarshal decodes data in format f into v, threading state through every
// stateful field. v is left unchanged on error.
func Unmarshal[S any](f Format, data []byte, v Decoder[S], state S) error {
	return f.Decode(data, func(src Source) error {
		return v.DecodeState(state, src)
	})
}

// EncodeFunc adapts a generated encode function for a value that has no
// methods of its own, such as a generic record or a union.
func EncodeFunc[S, T any](v T, state S, fn func(T, S, Sink) error) func(Sink) error {
	return func(sink Sink) error { return fn(v, state, sink) }
}

// DecodeFunc adapts a generated decode function.
func DecodeFunc[S, T any](v *T, state S, fn func(*T, S, Source) error) func(Source) error {
	return func(src Source) error { return fn(v, state, src) }
}
