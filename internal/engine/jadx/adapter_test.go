package jadx_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/archive"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/classfile"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/classfile/classfiletest"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine/jadx"
)

type fakeClass struct {
	name string
	data []byte
}

func (c fakeClass) FullName() string { return c.name }

func (c fakeClass) Code() (string, error) {
	cf, err := classfile.Parse(c.data)
	if err != nil {
		return "", err
	}
	return "class " + cf.SimpleName() + " {}\n", nil
}

type fakeProject struct {
	classes []jadx.Class
	closed  *atomic.Bool
}

func (p fakeProject) Classes() []jadx.Class { return p.classes }
func (p fakeProject) Close() error {
	p.closed.Store(true)
	return nil
}

// fakeDecompiler loads single class files by their bytes and archives by
// entry name, the way JADX names classes.
type fakeDecompiler struct {
	closed atomic.Bool
	args   jadx.Args
}

func (f *fakeDecompiler) Load(_ context.Context, args jadx.Args) (jadx.Project, error) {
	f.args = args
	input := args.Inputs[0]
	if strings.HasSuffix(input, ".class") {
		data, err := os.ReadFile(input)
		if err != nil {
			return nil, err
		}
		name, err := classfile.ReadName(data)
		if err != nil {
			return nil, fmt.Errorf("cannot load %s: %w", input, err)
		}
		return fakeProject{classes: []jadx.Class{fakeClass{classfile.InternalToQualified(name), data}}, closed: &f.closed}, nil
	}
	r, err := archive.OpenReader(input)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var classes []jadx.Class
	for _, c := range r.Classes() {
		data, err := c.ReadAll()
		if err != nil {
			return nil, err
		}
		classes = append(classes, fakeClass{c.QualifiedName, data})
	}
	return fakeProject{classes: classes, closed: &f.closed}, nil
}

type collectSink struct {
	mu    sync.Mutex
	units map[string]string
}

func (s *collectSink) Push(u engine.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.units == nil {
		s.units = map[string]string{}
	}
	s.units[u.QualifiedName] = u.Source
	return nil
}

func TestAvailable(t *testing.T) {
	t.Cleanup(func() { jadx.Register(nil) })

	a := jadx.New(nil, 2, "")
	assert.Equal(t, engine.JADX, a.ID())
	assert.False(t, a.Available())
	jadx.Register(&fakeDecompiler{})
	assert.True(t, a.Available())
}

func TestDecompileUnit(t *testing.T) {
	fake := &fakeDecompiler{}
	a := jadx.New(fake, 3, t.TempDir())

	src, err := a.DecompileUnit(context.Background(), classfiletest.Simple("p/Real"), "p.Wrong")
	require.NoError(t, err)
	assert.Equal(t, "// Class: p.Real\nclass Real {}\n", src)
	assert.Equal(t, 3, fake.args.Threads)
	assert.True(t, fake.args.SkipResources)
	assert.True(t, fake.closed.Load())

	_, err = a.DecompileUnit(context.Background(), []byte("junk"), "")
	assert.True(t, errors.Is(err, engine.ErrEngineFailure))
}

func TestDecompileArchive(t *testing.T) {
	entries := map[string][]byte{}
	for i := 0; i < 40; i++ {
		entries[fmt.Sprintf("q/C%02d.class", i)] = classfiletest.Simple(fmt.Sprintf("q/C%02d", i))
	}
	entries["q/C07.class"] = []byte("broken")
	jar := filepath.Join(t.TempDir(), "in.jar")
	require.NoError(t, classfiletest.WriteJar(jar, entries))

	fake := &fakeDecompiler{}
	a := jadx.New(fake, 4, "")

	sink := &collectSink{}
	require.NoError(t, a.DecompileArchive(context.Background(), jar, sink, ""))
	require.Len(t, sink.units, 40)
	assert.Equal(t, "class C00 {}\n", sink.units["q.C00"])
	assert.True(t, strings.HasPrefix(sink.units["q.C07"], "/*\n"))
	assert.True(t, fake.closed.Load())

	sink = &collectSink{}
	require.NoError(t, a.DecompileArchive(context.Background(), jar, sink, "q.C12"))
	assert.Equal(t, map[string]string{"q.C12": "class C12 {}\n"}, sink.units)

	err := a.DecompileArchive(context.Background(), filepath.Join(t.TempDir(), "none.jar"), &collectSink{}, "")
	assert.True(t, errors.Is(err, engine.ErrEngineFailure))
}

type brokenClass struct{ name string }

func (c brokenClass) FullName() string { return c.name }

func (brokenClass) Code() (string, error) { return "", errors.New("codegen exploded") }

type brokenDecompiler struct{ closed atomic.Bool }

func (d *brokenDecompiler) Load(context.Context, jadx.Args) (jadx.Project, error) {
	return fakeProject{classes: []jadx.Class{brokenClass{"p.Real"}}, closed: &d.closed}, nil
}

func TestDecompileUnit_CodeFailure(t *testing.T) {
	d := &brokenDecompiler{}
	a := jadx.New(d, 1, t.TempDir())

	_, err := a.DecompileUnit(context.Background(), classfiletest.Simple("p/Real"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrEngineFailure))
	assert.Contains(t, err.Error(), "codegen exploded")
	assert.True(t, d.closed.Load())
}
