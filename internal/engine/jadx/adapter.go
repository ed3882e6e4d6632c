package jadx

import (
	"context"
	"errors"
	"fmt"
	"path"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/archive"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/classfile"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/scratch"
	"github.com/CloudNativeWorks/elchi-decompiler/pkg/helper"
	"github.com/CloudNativeWorks/elchi-decompiler/pkg/logger"
)

var errNoDecompiler = errors.New("no JADX binding registered")

type Adapter struct {
	decompiler  Decompiler
	threads     int
	scratchRoot string
	logger      *logger.Logger
}

// New returns a JADX adapter. A nil decompiler resolves the Register'ed
// binding on every call. threads <= 0 uses GOMAXPROCS.
func New(d Decompiler, threads int, scratchRoot string) *Adapter {
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	return &Adapter{
		decompiler:  d,
		threads:     threads,
		scratchRoot: scratchRoot,
		logger:      logger.NewLogger("engine.jadx"),
	}
}

func (a *Adapter) resolve() Decompiler {
	if a.decompiler != nil {
		return a.decompiler
	}
	return registeredDecompiler()
}

func (a *Adapter) ID() engine.ID {
	return engine.JADX
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

func (a *Adapter) load(ctx context.Context, d Decompiler, input string) (Project, error) {
	var project Project
	err := engine.Guard(engine.JADX, func() error {
		var err error
		project, err = d.Load(ctx, Args{Inputs: []string{input}, Threads: a.threads, SkipResources: true})
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, engine.Failure(engine.JADX, err)
	}
	if project == nil {
		return nil, engine.Failure(engine.JADX, errors.New("load returned no project"))
	}
	return project, nil
}

func (a *Adapter) DecompileUnit(ctx context.Context, data []byte, hint string) (string, error) {
	d := a.resolve()
	if d == nil {
		return "", engine.Failure(engine.JADX, errNoDecompiler)
	}
	name, _, ok := engine.UnitName(data, hint)
	if !ok {
		name = "Unit"
	}

	ws, err := scratch.New(a.scratchRoot)
	if err != nil {
		return "", engine.Failure(engine.JADX, err)
	}
	defer ws.Close()

	input, err := ws.WriteFile(path.Base(classfile.QualifiedToInternal(name))+".class", data)
	if err != nil {
		return "", engine.Failure(engine.JADX, err)
	}

	project, err := a.load(ctx, d, input)
	if err != nil {
		return "", err
	}
	defer project.Close()

	var b strings.Builder
	for _, cls := range project.Classes() {
		var code string
		err := engine.Guard(engine.JADX, func() error {
			var err error
			code, err = cls.Code()
			return err
		})
		if err != nil {
			if errors.Is(err, engine.ErrEngineFailure) {
				return "", err
			}
			return "", engine.Failure(engine.JADX, err)
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "// Class: %s\n", cls.FullName())
		b.WriteString(code)
	}
	return b.String(), nil
}

func (a *Adapter) DecompileArchive(ctx context.Context, archivePath string, sink engine.Sink, target string) error {
	d := a.resolve()
	if d == nil {
		return engine.Failure(engine.JADX, errNoDecompiler)
	}
	project, err := a.load(ctx, d, archivePath)
	if err != nil {
		return err
	}
	defer project.Close()

	var classes []Class
	for _, cls := range project.Classes() {
		if archive.MatchTarget(cls.FullName(), target) {
			classes = append(classes, cls)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.threads)
	for _, cls := range classes {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() (err error) {
			defer helper.RecoverToError(a.logger, "jadx-worker", &err)
			if err := gctx.Err(); err != nil {
				return err
			}
			return sink.Push(a.codeUnit(cls))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (a *Adapter) codeUnit(cls Class) engine.Unit {
	name := cls.FullName()
	var code string
	err := engine.Guard(engine.JADX, func() error {
		var err error
		code, err = cls.Code()
		return err
	})
	if err != nil {
		a.logger.WithFields(logger.Fields{"unit": name}).WithError(err).Warn("JADX failed on unit")
		return engine.Placeholder(name, engine.JADX, err)
	}
	return engine.Unit{QualifiedName: name, Source: code}
}
