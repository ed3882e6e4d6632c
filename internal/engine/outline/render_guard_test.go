package outline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/classfile"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/classfile/classfiletest"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
)

// panicOn renders normally except for the named class, where it panics.
func panicOn(internalName string) func([]byte) (string, error) {
	return func(data []byte) (string, error) {
		if name, err := classfile.ReadName(data); err == nil && name == internalName {
			panic("descriptor table corrupted")
		}
		return Render(data)
	}
}

func TestDecompileArchive_RenderPanicBecomesPlaceholder(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "in.jar")
	require.NoError(t, classfiletest.WriteJar(jar, map[string][]byte{
		"a/A.class": classfiletest.Simple("a/A"),
		"a/B.class": classfiletest.Simple("a/B"),
		"a/C.class": classfiletest.Simple("a/C"),
	}))

	a := New(2)
	a.render = panicOn("a/B")

	var mu sync.Mutex
	units := map[string]string{}
	err := a.DecompileArchive(context.Background(), jar, engine.SinkFunc(func(u engine.Unit) error {
		mu.Lock()
		defer mu.Unlock()
		units[u.QualifiedName] = u.Source
		return nil
	}), "")
	require.NoError(t, err)

	require.Len(t, units, 3)
	assert.True(t, strings.HasPrefix(units["a.B"], "/*\n"))
	assert.Contains(t, units["a.B"], "panic: descriptor table corrupted")
	assert.Contains(t, units["a.A"], "class A")
	assert.Contains(t, units["a.C"], "class C")
}

func TestDecompileUnit_RenderPanic(t *testing.T) {
	a := New(1)
	a.render = panicOn("a/B")

	_, err := a.DecompileUnit(context.Background(), classfiletest.Simple("a/B"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrEngineFailure))
	assert.Contains(t, err.Error(), "panic: descriptor table corrupted")
}
