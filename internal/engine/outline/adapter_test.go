package outline_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/classfile"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/classfile/classfiletest"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine/outline"
)

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

func TestRender(t *testing.T) {
	data := classfiletest.New("com/example/Widget").
		Super("com/example/Base").
		Interface("java/lang/Runnable").
		Field(classfile.AccPrivate|classfile.AccStatic|classfile.AccFinal, "COUNT", "J").
		Method(classfile.AccPublic, "<init>", "(I)V").
		Method(classfile.AccPublic|classfile.AccVarargs, "join", "([Ljava/lang/String;)Ljava/lang/String;").
		Method(classfile.AccPublic|classfile.AccNative, "peek", "()I").
		Method(classfile.AccStatic, "<clinit>", "()V").
		Method(classfile.AccPublic|classfile.AccSynthetic, "access$000", "()V").
		Bytes()

	src, err := outline.Render(data)
	require.NoError(t, err)

	assert.Contains(t, src, "package com.example;\n")
	assert.Contains(t, src, "public class Widget extends com.example.Base implements Runnable {")
	assert.Contains(t, src, "private static final long COUNT;")
	assert.Contains(t, src, "public Widget(int arg0) { /* compiled code */ }")
	assert.Contains(t, src, "public String join(String... arg0) { /* compiled code */ }")
	assert.Contains(t, src, "public native int peek();")
	assert.Contains(t, src, "static { /* compiled code */ }")
	assert.NotContains(t, src, "access$000")
	assert.True(t, strings.HasSuffix(src, "}\n"))
}

func TestRender_Interface(t *testing.T) {
	data := classfiletest.New("api/Shape").
		Access(classfile.AccPublic|classfile.AccInterface|classfile.AccAbstract).
		Interface("java/io/Serializable").
		Method(classfile.AccPublic|classfile.AccAbstract, "area", "()D").
		Method(classfile.AccPublic, "describe", "()Ljava/lang/String;").
		Bytes()

	src, err := outline.Render(data)
	require.NoError(t, err)
	assert.Contains(t, src, "public interface Shape extends java.io.Serializable {")
	assert.Contains(t, src, "double area();")
	assert.Contains(t, src, "default String describe() { /* compiled code */ }")
}

func TestDecompileUnit(t *testing.T) {
	a := outline.New(2)
	assert.Equal(t, engine.Outline, a.ID())
	assert.True(t, a.Available())

	src, err := a.DecompileUnit(context.Background(), classfiletest.Simple("p/Real"), "p.Wrong")
	require.NoError(t, err)
	assert.Contains(t, src, "public class Real {")

	_, err = a.DecompileUnit(context.Background(), []byte("garbage"), "")
	assert.True(t, errors.Is(err, engine.ErrEngineFailure))
}

func writeJar(t *testing.T, n int, corrupt int) string {
	t.Helper()
	entries := map[string][]byte{}
	for i := 0; i < n; i++ {
		internal := fmt.Sprintf("pkg/C%03d", i)
		data := classfiletest.Simple(internal)
		if i == corrupt {
			data = []byte("not a class file")
		}
		entries[internal+".class"] = data
	}
	path := filepath.Join(t.TempDir(), "in.jar")
	require.NoError(t, classfiletest.WriteJar(path, entries))
	return path
}

func TestDecompileArchive_PlaceholderForCorruptUnit(t *testing.T) {
	jar := writeJar(t, 100, 57)
	sink := &collectSink{}

	require.NoError(t, outline.New(8).DecompileArchive(context.Background(), jar, sink, ""))
	require.Len(t, sink.units, 100)

	placeholders := 0
	for name, src := range sink.units {
		if strings.HasPrefix(src, "/*\n") {
			placeholders++
			assert.Equal(t, "pkg.C057", name)
			assert.Contains(t, src, "not a class file")
			continue
		}
		assert.Contains(t, src, "package pkg;")
	}
	assert.Equal(t, 1, placeholders)
}

func TestDecompileArchive_Target(t *testing.T) {
	jar := writeJar(t, 10, -1)

	sink := &collectSink{}
	require.NoError(t, outline.New(4).DecompileArchive(context.Background(), jar, sink, "pkg.C003"))
	require.Len(t, sink.units, 1)
	assert.Contains(t, sink.units["pkg.C003"], "class C003")

	sink = &collectSink{}
	require.NoError(t, outline.New(4).DecompileArchive(context.Background(), jar, sink, "C003"))
	assert.Empty(t, sink.units)
}

func TestDecompileArchive_Errors(t *testing.T) {
	err := outline.New(1).DecompileArchive(context.Background(), filepath.Join(t.TempDir(), "none.jar"), &collectSink{}, "")
	assert.True(t, errors.Is(err, engine.ErrEngineFailure))

	jar := writeJar(t, 20, -1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &collectSink{}
	err = outline.New(1).DecompileArchive(ctx, jar, sink, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.units)

	failing := engine.SinkFunc(func(engine.Unit) error { return errors.New("disk full") })
	err = outline.New(2).DecompileArchive(context.Background(), jar, failing, "")
	assert.EqualError(t, err, "disk full")
}
