package procyon_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/classfile"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/classfile/classfiletest"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine/procyon"
)

type fakeDecompiler struct {
	requested []string
}

func (f *fakeDecompiler) Decompile(_ context.Context, name string, loader procyon.TypeLoader, w io.Writer) error {
	f.requested = append(f.requested, name)
	data, ok := loader.TryLoad(name)
	if !ok {
		return fmt.Errorf("type %s not found", name)
	}
	if strings.HasSuffix(name, "Boom") {
		panic("stack overflow in transformer")
	}
	cf, err := classfile.Parse(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "public class %s {}\n", cf.SimpleName())
	return err
}

type listSink struct {
	units []engine.Unit
}

func (s *listSink) Push(u engine.Unit) error {
	s.units = append(s.units, u)
	return nil
}

func TestAvailable(t *testing.T) {
	t.Cleanup(func() { procyon.Register(nil) })

	a := procyon.New(nil)
	assert.Equal(t, engine.Procyon, a.ID())
	assert.False(t, a.Available())
	procyon.Register(&fakeDecompiler{})
	assert.True(t, a.Available())
}

func TestDecompileUnit_HintFallback(t *testing.T) {
	fake := &fakeDecompiler{}
	a := procyon.New(fake)

	src, err := a.DecompileUnit(context.Background(), classfiletest.Simple("p/Real"), "p.Wrong")
	require.NoError(t, err)
	assert.Equal(t, "public class Real {}\n", src)
	assert.Equal(t, []string{"p/Real"}, fake.requested)

	src, err = a.DecompileUnit(context.Background(), classfiletest.Simple("Top"), "")
	require.NoError(t, err)
	assert.Equal(t, "public class Top {}\n", src)

	_, err = a.DecompileUnit(context.Background(), []byte("junk"), "")
	assert.True(t, errors.Is(err, engine.ErrEngineFailure))
}

func TestDecompileArchive(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "in.jar")
	require.NoError(t, classfiletest.WriteJar(jar, map[string][]byte{
		"a/B.class":    classfiletest.Simple("a/B"),
		"a/Boom.class": classfiletest.Simple("a/Boom"),
		"a/Bad.class":  []byte("broken"),
	}))
	a := procyon.New(&fakeDecompiler{})

	sink := &listSink{}
	require.NoError(t, a.DecompileArchive(context.Background(), jar, sink, ""))
	require.Len(t, sink.units, 3)

	got := map[string]string{}
	for _, u := range sink.units {
		got[u.QualifiedName] = u.Source
	}
	assert.Equal(t, "public class B {}\n", got["a.B"])
	assert.Contains(t, got["a.Boom"], "panic: stack overflow in transformer")
	assert.True(t, strings.HasPrefix(got["a.Bad"], "/*\n"))

	sink = &listSink{}
	require.NoError(t, a.DecompileArchive(context.Background(), jar, sink, "a.B"))
	require.Len(t, sink.units, 1)
	assert.Equal(t, "a.B", sink.units[0].QualifiedName)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink = &listSink{}
	assert.ErrorIs(t, a.DecompileArchive(ctx, jar, sink, ""), context.Canceled)
	assert.Empty(t, sink.units)
}

func TestTypeLoaders(t *testing.T) {
	l := procyon.NewArrayTypeLoader("a/B", []byte{1})
	data, ok := l.TryLoad("a/B")
	assert.True(t, ok)
	assert.Equal(t, []byte{1}, data)
	_, ok = l.TryLoad("a/C")
	assert.False(t, ok)
}
