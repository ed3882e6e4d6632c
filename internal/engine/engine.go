// Package engine defines the contract every decompiler backend is adapted
// to: decompile one unit from bytes, or stream every unit of an archive
// into a Sink.
package engine

import (
	"context"
	"strings"
)

// ID names an engine. IDs are always lowercase.
type ID string

// Known embedded engines.
const (
	CFR     ID = "cfr"
	Procyon ID = "procyon"
	JADX    ID = "jadx"
	Outline ID = "outline"
)

// Normalize trims and lowercases a mode string.
func Normalize(mode string) ID {
	return ID(strings.ToLower(strings.TrimSpace(mode)))
}

func (id ID) String() string {
	return string(id)
}

// Unit is one decompiled compilation unit.
type Unit struct {
	QualifiedName string
	Source        string
}

// EntryPath maps a.b.C to a/b/C.java.
func (u Unit) EntryPath() string {
	return strings.ReplaceAll(u.QualifiedName, ".", "/") + ".java"
}

// Sink receives decompiled units. Implementations must be safe for
// concurrent use; engines with worker pools push from many goroutines.
type Sink interface {
	Push(unit Unit) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(unit Unit) error

func (f SinkFunc) Push(unit Unit) error {
	return f(unit)
}

// Adapter is implemented once per embedded engine.
type Adapter interface {
	ID() ID
	// Available reports whether the engine's binding can be resolved right
	// now. It must not panic.
	Available() bool
	// DecompileUnit decompiles one class. hint is an optional dotted name;
	// a hint that does not match data is ignored.
	DecompileUnit(ctx context.Context, data []byte, hint string) (string, error)
	// DecompileArchive pushes every unit of the archive at archivePath into
	// sink, or only the unit whose qualified name equals target when target
	// is non-empty. Failing units become placeholders.
	DecompileArchive(ctx context.Context, archivePath string, sink Sink, target string) error
}

// Target is the dispatch decision for one request: an Embedded engine or an
// External tool.
type Target interface {
	TargetID() ID
	isTarget()
}

// Embedded selects an in-process adapter.
type Embedded struct {
	Engine ID
}

// External selects a tool from the external tool table.
type External struct {
	Tool ID
}

func (e Embedded) TargetID() ID { return e.Engine }
func (Embedded) isTarget()      {}
func (e External) TargetID() ID { return e.Tool }
func (External) isTarget()      {}

// Resolve maps a normalized mode to a Target. Known embedded ids win; every
// other id is treated as an external tool id.
func Resolve(mode ID, embedded func(ID) bool) Target {
	if embedded != nil && embedded(mode) {
		return Embedded{Engine: mode}
	}
	return External{Tool: mode}
}
