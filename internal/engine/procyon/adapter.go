package procyon

import (
	"context"
	"errors"
	"strings"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/archive"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/classfile"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
	"github.com/CloudNativeWorks/elchi-decompiler/pkg/logger"
)

var errNoDecompiler = errors.New("no Procyon binding registered")

type Adapter struct {
	decompiler Decompiler
	logger     *logger.Logger
}

// New returns a Procyon adapter. A nil decompiler resolves the Register'ed
// binding on every call.
func New(d Decompiler) *Adapter {
	return &Adapter{decompiler: d, logger: logger.NewLogger("engine.procyon")}
}

func (a *Adapter) resolve() Decompiler {
	if a.decompiler != nil {
		return a.decompiler
	}
	return registeredDecompiler()
}

func (a *Adapter) ID() engine.ID {
	return engine.Procyon
}

func (a *Adapter) Available() bool {
	return engine.Probe(func() bool {
		d := a.resolve()
		if d == nil {
			return false
		}
		if c, ok := d.(Checker); ok {
			return c.Ready()
		}
		return true
	})
}

func (a *Adapter) DecompileUnit(ctx context.Context, data []byte, hint string) (string, error) {
	d := a.resolve()
	if d == nil {
		return "", engine.Failure(engine.Procyon, errNoDecompiler)
	}
	name, _, ok := engine.UnitName(data, hint)
	if !ok {
		return "", engine.Failure(engine.Procyon, errors.New("cannot determine class name"))
	}
	internal := internalName(name)

	var out strings.Builder
	err := engine.Guard(engine.Procyon, func() error {
		return d.Decompile(ctx, internal, NewArrayTypeLoader(internal, data), &out)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", engine.Failure(engine.Procyon, err)
	}
	return out.String(), nil
}

// DecompileArchive decompiles units one after another; a TypeLoader is not
// shared between goroutines.
func (a *Adapter) DecompileArchive(ctx context.Context, archivePath string, sink engine.Sink, target string) error {
	d := a.resolve()
	if d == nil {
		return engine.Failure(engine.Procyon, errNoDecompiler)
	}
	r, err := archive.OpenReader(archivePath)
	if err != nil {
		return engine.Failure(engine.Procyon, err)
	}
	defer r.Close()

	loader := NewArchiveTypeLoader(r)
	for _, entry := range r.Select(target) {
		if err := ctx.Err(); err != nil {
			return err
		}

		var out strings.Builder
		err := engine.Guard(engine.Procyon, func() error {
			return d.Decompile(ctx, internalName(entry.QualifiedName), loader, &out)
		})
		unit := engine.Unit{QualifiedName: entry.QualifiedName, Source: out.String()}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			a.logger.WithFields(logger.Fields{"unit": entry.QualifiedName}).WithError(err).Warn("Procyon failed on unit")
			unit = engine.Placeholder(entry.QualifiedName, engine.Procyon, err)
		}
		if err := sink.Push(unit); err != nil {
			return err
		}
	}
	return nil
}

func internalName(qualified string) string {
	return classfile.QualifiedToInternal(qualified)
}
