// Package dispatch routes decompilation requests to the engine a mode names
// and normalizes what comes back.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/archive"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/artifact"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/capability"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/external"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/scratch"
	"github.com/CloudNativeWorks/elchi-decompiler/pkg/logger"
)

type Options struct {
	DefaultMode      engine.ID
	ScratchRoot      string
	CompressionLevel int
}

type Service struct {
	registry *engine.Registry
	tools    *external.Adapter
	detector *capability.Detector
	store    artifact.Store
	opts     Options
	logger   *logger.Logger
}

// NewService wires the orchestrator. tools and store may be nil.
func NewService(registry *engine.Registry, tools *external.Adapter, detector *capability.Detector, store artifact.Store, opts Options) *Service {
	if opts.DefaultMode == "" {
		opts.DefaultMode = engine.Outline
	}
	return &Service{
		registry: registry,
		tools:    tools,
		detector: detector,
		store:    store,
		opts:     opts,
		logger:   logger.NewLogger("dispatch"),
	}
}

// Detector exposes the capability detector the service checks against.
func (s *Service) Detector() *capability.Detector {
	return s.detector
}

func (s *Service) transition(log *logrus.Entry, state State, fields logger.Fields) {
	log.WithField("state", state).WithFields(fields).Debug("Request state changed")
}

// normalizeMode lowercases mode and falls back to the default mode.
func (s *Service) normalizeMode(mode string) engine.ID {
	id := engine.Normalize(mode)
	if id == "" {
		id = engine.Normalize(string(s.opts.DefaultMode))
	}
	return id
}

func (s *Service) checkAvailability(ctx context.Context, mode engine.ID) error {
	if s.detector.IsAvailable(ctx, string(mode)) {
		return nil
	}
	return &engine.UnavailableError{Mode: mode, Advice: s.detector.Advice(mode)}
}

func requestID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}

// DecompileUnit decompiles one class with the requested mode.
func (s *Service) DecompileUnit(ctx context.Context, req UnitRequest) (*UnitResult, error) {
	log := s.logger.WithFields(logger.Fields{"request_id": requestID(req.RequestID)})
	s.transition(log, StateReceived, logger.Fields{"bytes": len(req.Data)})

	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: class bytes are required", engine.ErrInvalidInput)
	}

	mode := s.normalizeMode(req.Mode)
	s.transition(log, StateModeNormalized, logger.Fields{"mode": mode})

	if err := s.checkAvailability(ctx, mode); err != nil {
		s.transition(log, StateRejected, logger.Fields{"mode": mode})
		return nil, err
	}
	s.transition(log, StateAvailabilityChecked, logger.Fields{"mode": mode})

	hint := strings.TrimSpace(req.ClassName)
	className := hint
	if className == "" {
		if name, _, ok := engine.UnitName(req.Data, ""); ok {
			className = name
		}
	}

	s.transition(log, StateDispatched, logger.Fields{"mode": mode})
	var (
		source string
		err    error
	)
	switch target := engine.Resolve(mode, s.registry.Has).(type) {
	case engine.Embedded:
		adapter, _ := s.registry.Get(target.Engine)
		source, err = adapter.DecompileUnit(ctx, req.Data, hint)
	case engine.External:
		if s.tools == nil {
			err = fmt.Errorf("%w: %s", engine.ErrToolNotInstalled, target.Tool)
			break
		}
		source, err = s.tools.DecompileUnit(ctx, req.Data, target.Tool)
	}
	if err != nil {
		s.transition(log, StateFailed, logger.Fields{"mode": mode, "error": err.Error()})
		return nil, err
	}

	result := &UnitResult{
		OK:        strings.TrimSpace(source) != "",
		Mode:      mode,
		ClassName: className,
		Source:    source,
	}
	if !result.OK {
		result.Source = ""
	}
	s.transition(log, StateCompleted, logger.Fields{"mode": mode, "ok": result.OK})
	return result, nil
}

// DecompileArchive decompiles every unit of the uploaded archive (or only
// the target unit) into a new zip. On error nothing is left on disk.
func (s *Service) DecompileArchive(ctx context.Context, req ArchiveRequest) (_ *ArchiveResult, err error) {
	id := requestID(req.RequestID)
	log := s.logger.WithFields(logger.Fields{"request_id": id})
	s.transition(log, StateReceived, logger.Fields{"name": req.OriginalName})

	if req.Source == nil {
		return nil, fmt.Errorf("%w: archive is required", engine.ErrInvalidInput)
	}

	mode := s.normalizeMode(req.Mode)
	s.transition(log, StateModeNormalized, logger.Fields{"mode": mode})

	if err := s.checkAvailability(ctx, mode); err != nil {
		s.transition(log, StateRejected, logger.Fields{"mode": mode})
		return nil, err
	}
	s.transition(log, StateAvailabilityChecked, logger.Fields{"mode": mode})

	ws, err := scratch.New(s.opts.ScratchRoot)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			ws.Close()
			s.transition(log, StateFailed, logger.Fields{"mode": mode, "error": err.Error()})
		}
	}()

	original := SanitizeName(req.OriginalName)
	inputPath, written, err := ws.Spool(ctx, path.Join("input", original), req.Source)
	if err != nil {
		return nil, err
	}
	if written == 0 {
		return nil, fmt.Errorf("%w: archive is empty", engine.ErrInvalidInput)
	}
	if _, err := archive.ClassEntries(inputPath); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrInvalidInput, err)
	}

	name := ArchiveName(original, mode)
	out, err := ws.File(path.Join("output", name))
	if err != nil {
		return nil, err
	}
	writer := archive.NewWriter(out, s.opts.CompressionLevel)

	s.transition(log, StateDispatched, logger.Fields{"mode": mode, "target": req.Target})
	runErr := s.dispatchArchive(ctx, ws, mode, inputPath, writer, req.Target)
	closeErr := writer.Close()
	fileErr := out.Close()
	if err := errors.Join(runErr, closeErr, fileErr); err != nil {
		if runErr != nil {
			return nil, runErr
		}
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}

	result := &ArchiveResult{
		Name:      name,
		Path:      out.Name(),
		Mode:      mode,
		Entries:   writer.Count(),
		workspace: ws,
	}
	if s.store != nil {
		location, err := artifact.Publish(ctx, s.store, id, result.Path)
		if err != nil {
			log.WithError(err).Warn("Failed to publish archive")
		} else {
			result.Location = location
		}
	}
	s.transition(log, StateCompleted, logger.Fields{"mode": mode, "entries": result.Entries})
	return result, nil
}

func (s *Service) dispatchArchive(ctx context.Context, ws *scratch.Workspace, mode engine.ID, inputPath string, sink engine.Sink, target string) error {
	switch t := engine.Resolve(mode, s.registry.Has).(type) {
	case engine.Embedded:
		adapter, _ := s.registry.Get(t.Engine)
		return adapter.DecompileArchive(ctx, inputPath, sink, target)
	case engine.External:
		if s.tools == nil {
			return fmt.Errorf("%w: %s", engine.ErrToolNotInstalled, t.Tool)
		}
		outDir, err := ws.Dir("tool-out")
		if err != nil {
			return err
		}
		return s.tools.DecompileArchive(ctx, inputPath, outDir, t.Tool, sink, target)
	}
	return fmt.Errorf("unsupported target for mode %s", mode)
}

// SanitizeName reduces an upload name to a safe base name.
func SanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '"' {
			return '_'
		}
		return r
	}, name)
	switch name {
	case "", ".", "..", "/":
		return DefaultOriginalName
	}
	return name
}

// ArchiveName is <original>-<mode>-decompiled.zip.
func ArchiveName(original string, mode engine.ID) string {
	return fmt.Sprintf("%s-%s-decompiled.zip", SanitizeName(original), mode)
}
