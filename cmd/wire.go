package cmd

import (
	"fmt"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/artifact"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/capability"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/cmdrunner"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/config"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/dispatch"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine/cfr"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine/jadx"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine/outline"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine/procyon"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/external"
)

// newService wires the dispatch service from cfg. withStore controls
// whether archives are published to object storage.
func newService(cfg *config.Config, withStore bool) (*dispatch.Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	e := cfg.Engines

	registry := engine.NewRegistry(
		outline.New(e.Workers),
		cfr.New(nil, e.ScratchDir),
		procyon.New(nil),
		jadx.New(nil, e.JadxThreads, e.ScratchDir),
	)

	table, err := external.NewTable(cfg.Tools)
	if err != nil {
		return nil, fmt.Errorf("invalid tool table: %w", err)
	}
	runner := cmdrunner.NewCommandsRunner()
	tools := external.New(table, runner, external.Options{
		ToolsDir:    e.ToolsDir,
		JavaPath:    e.JavaPath,
		ScratchRoot: e.ScratchDir,
		Timeout:     e.ToolTimeout,
	})

	defaultMode := engine.Normalize(e.DefaultMode)
	detector := capability.NewDetector(registry, tools, runner, capability.Options{
		JavaPath:     e.JavaPath,
		ProbeTimeout: e.ProbeTimeout,
		DefaultMode:  defaultMode,
	})

	var store artifact.Store
	if withStore && cfg.Artifacts.S3.Enabled() {
		s3, err := artifact.NewS3Store(cfg.Artifacts.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to create artifact store: %w", err)
		}
		store = s3
	}

	return dispatch.NewService(registry, tools, detector, store, dispatch.Options{
		DefaultMode:      defaultMode,
		ScratchRoot:      e.ScratchDir,
		CompressionLevel: e.CompressionLevel,
	}), nil
}
