package dispatch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/artifact"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/capability"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/classfile/classfiletest"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/cmdrunner"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine/cfr"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine/outline"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/external"
)

// silentDriver runs without producing output or failures.
type silentDriver struct {
	err error
}

func (d silentDriver) Analyse(context.Context, []string, cfr.OutputSink) error {
	return d.err
}

type fixture struct {
	svc         *Service
	scratchRoot string
	store       *artifact.MemoryStore
}

func newFixture(t *testing.T, cfrDriver cfr.Driver) fixture {
	t.Helper()
	scratchRoot := t.TempDir()
	table, err := external.NewTable(nil)
	require.NoError(t, err)

	runner := cmdrunner.NewCommandsRunner()
	tools := external.New(table, runner, external.Options{ToolsDir: t.TempDir(), ScratchRoot: scratchRoot})
	registry := engine.NewRegistry(outline.New(4))
	if cfrDriver != nil {
		registry.Register(cfr.New(cfrDriver, scratchRoot))
	} else {
		registry.Register(cfr.New(nil, scratchRoot))
	}
	detector := capability.NewDetector(registry, tools, runner, capability.Options{DefaultMode: engine.Outline})
	store := artifact.NewMemoryStore()

	svc := NewService(registry, tools, detector, store, Options{
		DefaultMode:      engine.Outline,
		ScratchRoot:      scratchRoot,
		CompressionLevel: 1,
	})
	return fixture{svc: svc, scratchRoot: scratchRoot, store: store}
}

func (f fixture) assertScratchEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.scratchRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func jarBytes(t *testing.T, classes ...string) []byte {
	t.Helper()
	entries := map[string][]byte{}
	for _, c := range classes {
		entries[c+".class"] = classfiletest.Simple(c)
	}
	p := filepath.Join(t.TempDir(), "in.jar")
	require.NoError(t, classfiletest.WriteJar(p, entries))
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return data
}

func TestDecompileUnit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	data := classfiletest.Simple("p/Real")

	res, err := f.svc.DecompileUnit(ctx, UnitRequest{Data: data})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, engine.Outline, res.Mode)
	assert.Equal(t, "p.Real", res.ClassName)
	assert.Contains(t, res.Source, "public class Real {")

	res, err = f.svc.DecompileUnit(ctx, UnitRequest{Data: data, Mode: " OUTLINE ", ClassName: "p.Wrong"})
	require.NoError(t, err)
	assert.Equal(t, engine.Outline, res.Mode)
	assert.Equal(t, "p.Wrong", res.ClassName)
	assert.Contains(t, res.Source, "public class Real {", "source comes from the bytes, not the hint")

	_, err = f.svc.DecompileUnit(ctx, UnitRequest{Mode: "outline"})
	assert.True(t, errors.Is(err, engine.ErrInvalidInput))
}

func TestDecompileUnit_ModeCaseInsensitive(t *testing.T) {
	f := newFixture(t, silentDriver{})
	for _, mode := range []string{"CFR", "cfr", "Cfr"} {
		res, err := f.svc.DecompileUnit(context.Background(), UnitRequest{Data: classfiletest.Simple("a/B"), Mode: mode})
		require.NoError(t, err, mode)
		assert.Equal(t, engine.CFR, res.Mode)
	}
}

func TestDecompileUnit_Unavailable(t *testing.T) {
	f := newFixture(t, nil)

	for _, mode := range []string{"cfr", "jd", "no-such-engine"} {
		_, err := f.svc.DecompileUnit(context.Background(), UnitRequest{Data: classfiletest.Simple("a/B"), Mode: mode})
		require.Error(t, err)
		assert.True(t, errors.Is(err, engine.ErrModeUnavailable), mode)

		var unavailable *engine.UnavailableError
		require.True(t, errors.As(err, &unavailable))
		assert.Equal(t, engine.Normalize(mode), unavailable.Mode)
		assert.Contains(t, unavailable.Advice, "(outline)")
	}
}

func TestDecompileUnit_SoftFailure(t *testing.T) {
	f := newFixture(t, silentDriver{})

	res, err := f.svc.DecompileUnit(context.Background(), UnitRequest{Data: classfiletest.Simple("a/B"), Mode: "cfr"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Empty(t, res.Source)
	assert.Equal(t, "a.B", res.ClassName)
}

func TestDecompileUnit_HardFailure(t *testing.T) {
	f := newFixture(t, silentDriver{err: errors.New("bytecode too new")})

	_, err := f.svc.DecompileUnit(context.Background(), UnitRequest{Data: classfiletest.Simple("a/B"), Mode: "cfr"})
	assert.True(t, errors.Is(err, engine.ErrEngineFailure))
	f.assertScratchEmpty(t)
}

func TestDecompileArchive(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.DecompileArchive(context.Background(), ArchiveRequest{
		RequestID:    "req-1",
		Source:       bytes.NewReader(jarBytes(t, "a/B", "a/C", "Top")),
		OriginalName: "app.jar",
	})
	require.NoError(t, err)

	assert.Equal(t, "app.jar-outline-decompiled.zip", res.Name)
	assert.Equal(t, engine.Outline, res.Mode)
	assert.Equal(t, 3, res.Entries)
	assert.Equal(t, "memory://req-1/app.jar-outline-decompiled.zip", res.Location)

	zr, err := zip.OpenReader(res.Path)
	require.NoError(t, err)
	var names []string
	for _, file := range zr.File {
		names = append(names, file.Name)
	}
	zr.Close()
	assert.ElementsMatch(t, []string{"a/B.java", "a/C.java", "Top.java"}, names)

	published, err := f.store.List(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"app.jar-outline-decompiled.zip"}, published)

	res.Close()
	_, err = os.Stat(res.Path)
	assert.True(t, os.IsNotExist(err))
	f.assertScratchEmpty(t)
}

func TestDecompileArchive_Target(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.DecompileArchive(context.Background(), ArchiveRequest{
		Source: bytes.NewReader(jarBytes(t, "a/B", "a/C")),
		Target: "a.C",
	})
	require.NoError(t, err)
	defer res.Close()

	assert.Equal(t, "uploaded.jar-outline-decompiled.zip", res.Name)
	assert.Equal(t, 1, res.Entries)
}

func TestDecompileArchive_UnavailableCreatesNothing(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.DecompileArchive(context.Background(), ArchiveRequest{
		Source:       bytes.NewReader(jarBytes(t, "a/B")),
		OriginalName: "app.jar",
		Mode:         "Fernflower",
	})
	assert.Nil(t, res)
	var unavailable *engine.UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, engine.ID("fernflower"), unavailable.Mode)
	f.assertScratchEmpty(t)
}

func TestDecompileArchive_Failures(t *testing.T) {
	f := newFixture(t, silentDriver{err: errors.New("corrupt constant pool")})
	ctx := context.Background()

	_, err := f.svc.DecompileArchive(ctx, ArchiveRequest{Source: strings.NewReader("not a zip")})
	assert.True(t, errors.Is(err, engine.ErrInvalidInput))

	_, err = f.svc.DecompileArchive(ctx, ArchiveRequest{Source: strings.NewReader("")})
	assert.True(t, errors.Is(err, engine.ErrInvalidInput))

	_, err = f.svc.DecompileArchive(ctx, ArchiveRequest{})
	assert.True(t, errors.Is(err, engine.ErrInvalidInput))

	_, err = f.svc.DecompileArchive(ctx, ArchiveRequest{Source: bytes.NewReader(jarBytes(t, "a/B")), Mode: "cfr"})
	assert.True(t, errors.Is(err, engine.ErrEngineFailure))

	f.assertScratchEmpty(t)
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"":                  "uploaded.jar",
		"   ":               "uploaded.jar",
		"app.jar":           "app.jar",
		"../../etc/passwd":  "passwd",
		`C:\builds\lib.jar`: "lib.jar",
		"dir/":              "dir",
		"we\"ird\n.jar":     "we_ird_.jar",
		"..":                "uploaded.jar",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeName(in), in)
	}
	assert.Equal(t, "app.jar-jd-decompiled.zip", ArchiveName("/tmp/app.jar", "jd"))
}

func TestPublishedArchives(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.DecompileArchive(ctx, ArchiveRequest{
		RequestID:    "req-published",
		Source:       bytes.NewReader(jarBytes(t, "a/B")),
		OriginalName: "app.jar",
	})
	require.NoError(t, err)
	res.Close()

	list, err := f.svc.PublishedArchives(ctx, "req-published")
	require.NoError(t, err)
	assert.Equal(t, []PublishedArchive{{
		Name:     "app.jar-outline-decompiled.zip",
		Location: "memory://req-published/app.jar-outline-decompiled.zip",
	}}, list)

	data, err := f.svc.FetchPublished(ctx, "req-published", "app.jar-outline-decompiled.zip")
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "a/B.java", zr.File[0].Name)

	_, err = f.svc.PublishedArchives(ctx, "req-unknown")
	assert.ErrorIs(t, err, artifact.ErrNotFound)
	_, err = f.svc.FetchPublished(ctx, "req-published", "other.zip")
	assert.ErrorIs(t, err, artifact.ErrNotFound)

	noStore := NewService(engine.NewRegistry(outline.New(1)), nil, nil, nil, Options{})
	_, err = noStore.PublishedArchives(ctx, "req-published")
	assert.ErrorIs(t, err, artifact.ErrNotFound)
	_, err = noStore.FetchPublished(ctx, "req-published", "x.zip")
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}
