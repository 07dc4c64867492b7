// Package statecodec provides encode and decode operations that carry a
// caller-owned state value through every nested field.
//
// A type opts in with struct tags and doc-comment directives, and the
// statecodec command generates the operations:
//
//	//statecodec:generate
//	type Example struct {
//		First  CounterValue `state:"rename=first"`
//		Second CounterValue `state:"rename=second"`
//		Note   string       `state:"stateless"`
//	}
//
// Stateful fields are encoded through their own EncodeState/DecodeState
// methods and receive the same state value; stateless fields go through the
// format's plain encoder. Generic containers get generic operations whose
// type parameters are constrained only where a parameter actually reaches a
// stateful position:
//
//	data, err := statecodec.Marshal(jsonfmt.New(), &ex, recorder)
//	err = statecodec.Unmarshal(jsonfmt.New(), data, &out, recorder)
//
// The package holds the protocols (Encoder, Decoder, Codec, Ptr), the
// visitor interfaces formats implement (Sink, Source), and the runtime
// errors generated code returns. Generation itself lives under internal/
// and cmd/statecodec.
//
// The state is handed down unchanged through one call tree and is never
// copied or synchronized. A state shared between goroutines must be safe
// for concurrent use on its own.
package statecodec
