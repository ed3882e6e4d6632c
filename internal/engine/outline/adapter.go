// Package outline is the built-in engine. It needs no native library and
// reconstructs declarations (package, class header, fields, constructors,
// methods) but never method bodies.
package outline

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/archive"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
	"github.com/CloudNativeWorks/elchi-decompiler/pkg/helper"
	"github.com/CloudNativeWorks/elchi-decompiler/pkg/logger"
)

type Adapter struct {
	workers int
	render  func(data []byte) (string, error)
	logger  *logger.Logger
}

// New returns the outline adapter with a pool of workers goroutines for
// archives. workers <= 0 uses GOMAXPROCS.
func New(workers int) *Adapter {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Adapter{
		workers: workers,
		render:  Render,
		logger:  logger.NewLogger("engine.outline"),
	}
}

func (a *Adapter) ID() engine.ID {
	return engine.Outline
}

func (a *Adapter) Available() bool {
	return true
}

func (a *Adapter) DecompileUnit(ctx context.Context, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return a.outline(data)
}

// outline renders data and reports parse errors and panics as engine
// failures.
func (a *Adapter) outline(data []byte) (string, error) {
	var src string
	err := engine.Guard(engine.Outline, func() error {
		var err error
		src, err = a.render(data)
		return err
	})
	if err != nil && !errors.Is(err, engine.ErrEngineFailure) {
		err = engine.Failure(engine.Outline, err)
	}
	return src, err
}

func (a *Adapter) DecompileArchive(ctx context.Context, archivePath string, sink engine.Sink, target string) error {
	r, err := archive.OpenReader(archivePath)
	if err != nil {
		return engine.Failure(engine.Outline, err)
	}
	defer r.Close()

	entries := r.Select(target)
	a.logger.WithFields(logger.Fields{
		"archive": archivePath,
		"units":   len(entries),
		"workers": a.workers,
	}).Debug("Outlining archive")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for _, entry := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() (err error) {
			defer helper.RecoverToError(a.logger, "outline-worker", &err)
			if err := gctx.Err(); err != nil {
				return err
			}
			return sink.Push(a.outlineEntry(entry))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (a *Adapter) outlineEntry(entry archive.ClassEntry) engine.Unit {
	data, err := entry.ReadAll()
	if err != nil {
		a.logger.WithFields(logger.Fields{"unit": entry.QualifiedName}).WithError(err).Warn("Failed to read class entry")
		return engine.Placeholder(entry.QualifiedName, engine.Outline, err)
	}
	src, err := a.outline(data)
	if err != nil {
		a.logger.WithFields(logger.Fields{"unit": entry.QualifiedName}).WithError(err).Warn("Failed to outline class")
		return engine.Placeholder(entry.QualifiedName, engine.Outline, err)
	}
	return engine.Unit{QualifiedName: entry.QualifiedName, Source: src}
}
