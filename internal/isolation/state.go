package isolation

// State is a phase of one isolation cycle.
type State int

const (
	Normal State = iota
	Isolating
	Framed
	Rendered
	Restoring
	Skipped
)

func (s State) String() string {
	switch s {
	case Normal:
		return "NORMAL"
	case Isolating:
		return "ISOLATING"
	case Framed:
		return "FRAMED"
	case Rendered:
		return "RENDERED"
	case Restoring:
		return "RESTORING"
	case Skipped:
		return "SKIPPED"
	}
	return "UNKNOWN"
}

// Snapshot is the visibility state captured before a cycle mutates the document.
// Layers is indexed by layer index, Items by page item index of Layer.
// Both may be shorter than the document when capture was interrupted; only
// captured entries are restored.
type Snapshot struct {
	Layers []bool
	Layer  int
	Items  []bool
}
