package cfr

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/archive"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/classfile"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/scratch"
	"github.com/CloudNativeWorks/elchi-decompiler/pkg/logger"
)

var errNoDriver = errors.New("no CFR driver registered")

type Adapter struct {
	driver      Driver
	scratchRoot string
	logger      *logger.Logger
}

// New returns a CFR adapter. A nil driver resolves the Register'ed binding on
// every call. Single units are staged under scratchRoot.
func New(driver Driver, scratchRoot string) *Adapter {
	return &Adapter{
		driver:      driver,
		scratchRoot: scratchRoot,
		logger:      logger.NewLogger("engine.cfr"),
	}
}

func (a *Adapter) resolve() Driver {
	if a.driver != nil {
		return a.driver
	}
	return registeredDriver()
}

func (a *Adapter) ID() engine.ID {
	return engine.CFR
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
		return "", engine.Failure(engine.CFR, errNoDriver)
	}

	name, _, ok := engine.UnitName(data, hint)
	if !ok {
		name = "Unit"
	}

	ws, err := scratch.New(a.scratchRoot)
	if err != nil {
		return "", engine.Failure(engine.CFR, err)
	}
	defer ws.Close()

	classPath, err := ws.WriteFile(path.Base(classfile.QualifiedToInternal(name))+".class", data)
	if err != nil {
		return "", engine.Failure(engine.CFR, err)
	}

	collector := &unitCollector{}
	err = engine.Guard(engine.CFR, func() error {
		return d.Analyse(ctx, []string{classPath}, collector)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", engine.Failure(engine.CFR, err)
	}
	if collector.b.Len() == 0 && collector.failure != nil {
		return "", engine.Failure(engine.CFR, collector.failure)
	}
	return collector.b.String(), nil
}

func (a *Adapter) DecompileArchive(ctx context.Context, archivePath string, sink engine.Sink, target string) error {
	d := a.resolve()
	if d == nil {
		return engine.Failure(engine.CFR, errNoDriver)
	}

	out := &archiveSink{ctx: ctx, sink: sink, target: target, logger: a.logger}
	err := engine.Guard(engine.CFR, func() error {
		return d.Analyse(ctx, []string{archivePath}, out)
	})
	if sinkErr := out.err(); sinkErr != nil {
		return sinkErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return engine.Failure(engine.CFR, err)
	}
	a.logger.WithFields(logger.Fields{"archive": archivePath, "units": out.pushed}).Debug("CFR finished archive")
	return nil
}

type unitCollector struct {
	b       strings.Builder
	failure error
}

func (c *unitCollector) Decompiled(d Decompiled) error {
	if c.b.Len() > 0 {
		c.b.WriteString("\n")
	}
	fmt.Fprintf(&c.b, "/* Package: %s Class: %s */\n", d.Package, d.Class)
	c.b.WriteString(d.Java)
	return nil
}

func (c *unitCollector) Failed(f Failure) error {
	if c.failure == nil {
		c.failure = f.Err
	}
	return nil
}

// archiveSink forwards CFR callbacks to the engine sink. The first push
// error stops the driver and is reported as-is.
type archiveSink struct {
	ctx    context.Context
	sink   engine.Sink
	target string
	logger *logger.Logger

	mu       sync.Mutex
	firstErr error
	pushed   int
	unnamed  int
}

func (s *archiveSink) push(u engine.Unit) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if !archive.MatchTarget(u.QualifiedName, s.target) {
		return nil
	}
	if err := s.sink.Push(u); err != nil {
		s.mu.Lock()
		if s.firstErr == nil {
			s.firstErr = err
		}
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	s.pushed++
	s.mu.Unlock()
	return nil
}

func (s *archiveSink) Decompiled(d Decompiled) error {
	return s.push(engine.Unit{QualifiedName: d.QualifiedName(), Source: d.Java})
}

func (s *archiveSink) Failed(f Failure) error {
	name := s.failureName(f.Path)
	s.logger.WithFields(logger.Fields{"unit": name}).WithError(f.Err).Warn("CFR failed on unit")
	return s.push(engine.Placeholder(name, engine.CFR, f.Err))
}

// failureName derives the unit name of a failed path. Failures without a
// usable path get unknown.FailedUnitN so the placeholder still has a name.
func (s *archiveSink) failureName(p string) string {
	name := strings.TrimSpace(p)
	if strings.HasSuffix(name, ".class") {
		name = classfile.InternalToQualified(strings.TrimSuffix(strings.TrimPrefix(name, "/"), ".class"))
	}
	if name != "" {
		return name
	}
	s.mu.Lock()
	s.unnamed++
	n := s.unnamed
	s.mu.Unlock()
	return fmt.Sprintf("unknown.FailedUnit%d", n)
}

func (s *archiveSink) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}
