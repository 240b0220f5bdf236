// ABOUTME: Decides which persisted blobs a mutation has to rewrite
// ABOUTME: Order and mapping are flushed independently to avoid redundant writes

package favorites

// Op identifies a mutation for the flush policy.
type Op int

const (
	OpUpsert Op = iota
	OpRemove
	OpMove
)

func (o Op) String() string {
	switch o {
	case OpUpsert:
		return "upsert"
	case OpRemove:
		return "remove"
	case OpMove:
		return "move"
	default:
		return "unknown"
	}
}

// Flush names the blobs that must be written.
type Flush struct {
	Order   bool
	Mapping bool
}

// Any reports whether anything needs writing.
func (f Flush) Any() bool {
	return f.Order || f.Mapping
}

// FlushNeeded returns the writes required after op. isNew only matters for
// OpUpsert.
func FlushNeeded(op Op, isNew bool) Flush {
	switch op {
	case OpUpsert:
		return Flush{Order: isNew, Mapping: true}
	case OpRemove:
		return Flush{Order: true, Mapping: true}
	case OpMove:
		return Flush{Order: true}
	default:
		return Flush{}
	}
}
