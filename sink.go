package statecodec

// Sink receives one value. Generated encode operations call exactly one
// method on every Sink they are handed.
type Sink interface {
	// Encode writes v with the format's plain encoder.
	Encode(v any) error
	// Null writes an absent value (nil pointer, slice or map).
	Null() error
	// Record starts a keyed record with n fields. name is the Go type name
	// and may be empty for maps.
	Record(name string, n int) (RecordSink, error)
	// Seq starts a sequence of n elements.
	Seq(n int) (SeqSink, error)
	// Variant writes the tag of a data-carrying union variant and returns
	// the sink for its payload.
	Variant(union, variant string) (Sink, error)
	// UnitVariant writes a union variant without payload.
	UnitVariant(union, variant string) error
}

// RecordSink hands out one Sink per field, in the order fields are written.
type RecordSink interface {
	Field(key string) Sink
	End() error
}

// SeqSink hands out one Sink per element.
type SeqSink interface {
	Elem() Sink
	End() error
}

// Source yields one value.
type Source interface {
	// Decode reads the value with the format's plain decoder into dst, a pointer.
	Decode(dst any) error
	// IsNull reports whether the value is absent.
	IsNull() (bool, error)
	// Record opens a keyed record. Keys come back in wire order.
	Record(name string) (RecordSource, error)
	// Seq opens a sequence.
	Seq() (SeqSource, error)
	// Variant reads a union tag. payload is nil when the tag was written
	// in unit form.
	Variant(union string) (tag string, payload Source, err error)
}

// RecordSource iterates the entries of a record. ok is false after the last entry.
// Duplicate keys are reported as they appear on the wire.
type RecordSource interface {
	Next() (key string, val Source, ok bool, err error)
}

// SeqSource iterates the elements of a sequence.
type SeqSource interface {
	Next() (elem Source, ok bool, err error)
	Len() int
}
