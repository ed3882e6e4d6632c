package dispatch

import (
	"io"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/scratch"
)

// DefaultOriginalName names uploads that arrive without a usable file name.
const DefaultOriginalName = "uploaded.jar"

// UnitRequest asks for one class to be decompiled.
type UnitRequest struct {
	RequestID string
	Data      []byte
	Mode      string
	// ClassName is an optional dotted name hint.
	ClassName string
}

// ArchiveRequest asks for a jar or zip to be decompiled into a source
// archive.
type ArchiveRequest struct {
	RequestID    string
	Source       io.Reader
	OriginalName string
	Mode         string
	// Target, when set, limits output to the unit with exactly this
	// qualified name.
	Target string
}

// UnitResult is the outcome of a UnitRequest. OK is false with an empty
// Source when the engine ran but produced nothing.
type UnitResult struct {
	OK        bool      `json:"ok"`
	Mode      engine.ID `json:"mode"`
	ClassName string    `json:"className"`
	Source    string    `json:"source"`
}

// ArchiveResult points at a finished archive in a scratch workspace. The
// caller streams Path and must call Close afterwards.
type ArchiveResult struct {
	Name     string
	Path     string
	Mode     engine.ID
	Entries  int
	Location string

	workspace *scratch.Workspace
}

// Close releases the archive and its workspace.
func (r *ArchiveResult) Close() {
	if r != nil && r.workspace != nil {
		r.workspace.Close()
	}
}

// State is a step in a request's lifecycle.
type State string

const (
	StateReceived            State = "received"
	StateModeNormalized      State = "mode_normalized"
	StateAvailabilityChecked State = "availability_checked"
	StateRejected            State = "rejected"
	StateDispatched          State = "dispatched"
	StateCompleted           State = "completed"
	StateFailed              State = "failed"
)
