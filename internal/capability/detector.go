// Package capability answers which decompilation modes the current
// deployment can serve. Nothing is cached: every question is answered from
// the adapters and the tools directory as they are right now.
package capability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/cmdrunner"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/external"
	"github.com/CloudNativeWorks/elchi-decompiler/pkg/logger"
)

const defaultProbeTimeout = 5 * time.Second

// Availability maps every known mode to whether it is usable.
type Availability map[engine.ID]bool

type Options struct {
	JavaPath     string
	ProbeTimeout time.Duration
	DefaultMode  engine.ID
}

type Detector struct {
	registry *engine.Registry
	tools    *external.Adapter
	runner   cmdrunner.CommandRunner
	opts     Options
	logger   *logger.Logger
}

// NewDetector builds a detector over the embedded registry and the external
// tool adapter. tools may be nil when no external tools are configured.
func NewDetector(registry *engine.Registry, tools *external.Adapter, runner cmdrunner.CommandRunner, opts Options) *Detector {
	if opts.JavaPath == "" {
		opts.JavaPath = "java"
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = engine.Outline
	}
	return &Detector{
		registry: registry,
		tools:    tools,
		runner:   runner,
		opts:     opts,
		logger:   logger.NewLogger("capability"),
	}
}

// Modes lists every mode the detector knows about: embedded engines, tool
// ids and tool aliases.
func (d *Detector) Modes() []engine.ID {
	seen := map[engine.ID]struct{}{}
	var modes []engine.ID
	add := func(id engine.ID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			modes = append(modes, id)
		}
	}
	for _, id := range d.registry.IDs() {
		add(id)
	}
	if d.tools != nil {
		for _, id := range d.tools.Table().IDs() {
			add(id)
		}
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	return modes
}

// IsEmbedded reports whether mode names a registered in-process engine.
func (d *Detector) IsEmbedded(mode engine.ID) bool {
	return d.registry.Has(mode)
}

// IsAvailable reports whether mode can be served now. mode is matched
// case-insensitively. Unknown modes are unavailable.
func (d *Detector) IsAvailable(ctx context.Context, mode string) bool {
	return d.available(ctx, engine.Normalize(mode))
}

func (d *Detector) available(_ context.Context, id engine.ID) bool {
	switch target := engine.Resolve(id, d.registry.Has).(type) {
	case engine.Embedded:
		a, _ := d.registry.Get(target.Engine)
		return a.Available()
	case engine.External:
		return d.tools != nil && d.tools.Installed(target.Tool)
	}
	return false
}

// DetectAvailability computes availability for every known mode.
func (d *Detector) DetectAvailability(ctx context.Context) Availability {
	modes := d.Modes()
	out := make(Availability, len(modes))
	for _, id := range modes {
		out[id] = d.available(ctx, id)
	}
	d.logger.WithFields(logger.Fields{"modes": len(out)}).Debug("Availability detected")
	return out
}

// RuntimeAvailable reports whether a Java runtime answers "java -version"
// within the probe timeout. Dispatch does not depend on it.
func (d *Detector) RuntimeAvailable(ctx context.Context) bool {
	if d.runner == nil {
		return false
	}
	return d.runner.Probe(ctx, d.opts.ProbeTimeout, d.opts.JavaPath, "-version")
}

// Advice tells a client how to get mode working.
func (d *Detector) Advice(mode engine.ID) string {
	toolsDir := "the tools directory"
	if d.tools != nil && d.tools.ToolsDir() != "" {
		toolsDir = d.tools.ToolsDir()
	}
	return fmt.Sprintf("place the tool under %s or use a known default mode (%s)", toolsDir, d.opts.DefaultMode)
}
