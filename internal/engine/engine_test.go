package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/classfile/classfiletest"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	for _, in := range []string{"CFR", "cfr", "Cfr", "  cFr \n"} {
		assert.Equal(t, engine.CFR, engine.Normalize(in), in)
	}
	assert.Equal(t, engine.ID(""), engine.Normalize("   "))
}

func TestEntryPath(t *testing.T) {
	assert.Equal(t, "a/B.java", engine.Unit{QualifiedName: "a.B"}.EntryPath())
	assert.Equal(t, "Top.java", engine.Unit{QualifiedName: "Top"}.EntryPath())
	assert.Equal(t, "com/x/Outer$1.java", engine.Unit{QualifiedName: "com.x.Outer$1"}.EntryPath())
}

func TestResolve(t *testing.T) {
	embedded := func(id engine.ID) bool { return id == engine.CFR }

	switch target := engine.Resolve(engine.CFR, embedded).(type) {
	case engine.Embedded:
		assert.Equal(t, engine.CFR, target.Engine)
	default:
		t.Fatalf("unexpected target %T", target)
	}

	switch target := engine.Resolve("fernflower", embedded).(type) {
	case engine.External:
		assert.Equal(t, engine.ID("fernflower"), target.Tool)
	default:
		t.Fatalf("unexpected target %T", target)
	}

	_, ok := engine.Resolve(engine.CFR, nil).(engine.External)
	assert.True(t, ok)
}

func TestPlaceholder(t *testing.T) {
	unit := engine.Placeholder("a.B", engine.CFR, errors.New("bad opcode */ here\nsecond line"))
	assert.Equal(t, "a.B", unit.QualifiedName)
	assert.True(t, strings.HasPrefix(unit.Source, "/*\n"))
	assert.True(t, strings.HasSuffix(unit.Source, " */\n"))
	assert.Contains(t, unit.Source, "a.B")
	assert.Contains(t, unit.Source, "second line")
	assert.Equal(t, 1, strings.Count(unit.Source, "*/"))
}

func TestUnitName(t *testing.T) {
	name, fromBytes, ok := engine.UnitName(classfiletest.Simple("p/Real"), "p.Wrong")
	assert.True(t, ok)
	assert.True(t, fromBytes)
	assert.Equal(t, "p.Real", name)

	name, fromBytes, ok = engine.UnitName([]byte("junk"), "p.Hint")
	assert.True(t, ok)
	assert.False(t, fromBytes)
	assert.Equal(t, "p.Hint", name)

	_, _, ok = engine.UnitName([]byte("junk"), "")
	assert.False(t, ok)
}

func TestErrors(t *testing.T) {
	var err error = &engine.UnavailableError{Mode: "jadx", Advice: "install it"}
	assert.True(t, errors.Is(err, engine.ErrModeUnavailable))

	var unavailable *engine.UnavailableError
	assert.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "install it", unavailable.Advice)

	err = &engine.ToolError{Tool: "jad", ExitCode: 3, Err: engine.ErrToolFailed}
	assert.True(t, errors.Is(err, engine.ErrToolFailed))
	assert.Contains(t, err.Error(), "exit code 3")

	assert.True(t, errors.Is(engine.Failure(engine.CFR, errors.New("boom")), engine.ErrEngineFailure))
	assert.NoError(t, engine.Failure(engine.CFR, nil))
}

func TestProbe(t *testing.T) {
	assert.True(t, engine.Probe(func() bool { return true }))
	assert.False(t, engine.Probe(func() bool { panic("no library") }))
	assert.False(t, engine.Probe(nil))

	err := engine.Guard(engine.JADX, func() error { panic("segv") })
	assert.True(t, errors.Is(err, engine.ErrEngineFailure))
	assert.NoError(t, engine.Guard(engine.JADX, func() error { return nil }))
}

type stubAdapter struct {
	id engine.ID
}

func (s stubAdapter) ID() engine.ID   { return s.id }
func (s stubAdapter) Available() bool { return true }
func (s stubAdapter) DecompileUnit(context.Context, []byte, string) (string, error) {
	return "", nil
}
func (s stubAdapter) DecompileArchive(context.Context, string, engine.Sink, string) error {
	return nil
}

func TestRegistry(t *testing.T) {
	r := engine.NewRegistry(stubAdapter{engine.Outline}, stubAdapter{engine.CFR})
	assert.Equal(t, []engine.ID{engine.CFR, engine.Outline}, r.IDs())
	assert.True(t, r.Has(engine.CFR))
	assert.False(t, r.Has(engine.JADX))

	a, ok := r.Get(engine.Outline)
	assert.True(t, ok)
	assert.Equal(t, engine.Outline, a.ID())

	_, isEmbedded := engine.Resolve(engine.Normalize("CFR"), r.Has).(engine.Embedded)
	assert.True(t, isEmbedded)
}
