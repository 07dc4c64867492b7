package bounds

import "github.com/reoring/statecodec/internal/schema"

// PlanKind selects how generated code encodes or decodes one value.
type PlanKind int

const (
	// PlanPlain goes through Sink.Encode and Source.Decode.
	PlanPlain PlanKind = iota
	// PlanMethod calls the value's own EncodeState/DecodeState.
	PlanMethod
	// PlanDynamic calls the value's methods through a run-time assertion.
	PlanDynamic
	// PlanParam calls through the pointer constraint of a type parameter.
	PlanParam
	// PlanRecord calls the generated functions of a generic or state-generic record.
	PlanRecord
	// PlanUnion calls the generated functions of a union.
	PlanUnion
	PlanPointer
	PlanSlice
	PlanArray
	PlanMap
)

var planNames = [...]string{"plain", "method", "dynamic", "param", "record", "union", "pointer", "slice", "array", "map"}

func (k PlanKind) String() string {
	if int(k) < len(planNames) {
		return planNames[k]
	}
	return "unknown"
}

// Plan is the dispatch tree for one field. Composite nodes appear only
// where some element below them threads the state.
type Plan struct {
	Kind PlanKind
	Type schema.Type
	Elem *Plan

	// PlanRecord and PlanUnion.
	Target string
	Args   []schema.Type

	// PlanParam.
	Param string
}

// Threaded reports whether any node of p hands the state on.
func (p *Plan) Threaded() bool { return p != nil && p.Kind != PlanPlain }

func plain(t schema.Type) *Plan { return &Plan{Kind: PlanPlain, Type: t} }
