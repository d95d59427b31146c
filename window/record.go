// Package window holds the router's data model (spec.md §3): the
// window record exchanged between queue-sink, queue-source, and the
// two routers, and the closed tagged variant of record kinds.
package window

// Kind is a closed tagged variant (spec.md §9: "implement as a sum
// type ... rather than class inheritance").
type Kind uint8

const (
	Data Kind = iota
	WeightReport
	Kill
)

func (k Kind) String() string {
	switch k {
	case Data:
		return "DATA"
	case WeightReport:
		return "WEIGHT_REPORT"
	case Kill:
		return "KILL"
	default:
		return "UNKNOWN"
	}
}

// Record is a variable-length window record (spec.md §3). Payload and
// Size are only meaningful for Data; Weight/HasWeight are set only by
// WithWeight (the routers carry the in-flight footer on the wire via
// transport.SendWeight/RecvWeight and do not set them);
// ChildID/WeightValue are only meaningful for WeightReport.
//
// Size is a count of payload items (spec.md §3: "size = count of
// payload items"), not a byte length — a nominal window carries
// exactly W items, W*itemSize bytes.
type Record struct {
	Kind    Kind
	Index   uint32
	Size    uint32
	Payload []byte

	HasWeight bool
	Weight    uint32

	ChildID     int
	WeightValue uint32
}

// NewData builds a DATA record from a raw payload, deriving Size as
// the item count (len(payload)/itemSize) rather than a byte length.
func NewData(index uint32, payload []byte, itemSize int) *Record {
	return &Record{Kind: Data, Index: index, Size: uint32(len(payload) / itemSize), Payload: payload}
}

func NewKill() *Record {
	return &Record{Kind: Kill}
}

func NewWeightReport(childID int, weight uint32) *Record {
	return &Record{Kind: WeightReport, ChildID: childID, WeightValue: weight}
}

// WithWeight attaches a footer weight value (a child's in-flight count)
// to the record.
func (r *Record) WithWeight(w uint32) *Record {
	r.HasWeight = true
	r.Weight = w
	return r
}
