package external

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/archive"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/classfile"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/cmdrunner"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/scratch"
	"github.com/CloudNativeWorks/elchi-decompiler/pkg/logger"
)

// DefaultTimeout bounds a tool run when Options.Timeout is not set.
const DefaultTimeout = 2 * time.Minute

// Options configures the adapter.
type Options struct {
	ToolsDir    string
	JavaPath    string
	ScratchRoot string
	Timeout     time.Duration
}

// Handle is a resolved, installed tool.
type Handle struct {
	Tool ToolSpec
	Path string
}

type Adapter struct {
	table  *Table
	runner cmdrunner.CommandRunner
	opts   Options
	logger *logger.Logger

	mu       sync.Mutex
	breakers map[engine.ID]*gobreaker.CircuitBreaker
}

func New(table *Table, runner cmdrunner.CommandRunner, opts Options) *Adapter {
	if opts.JavaPath == "" {
		opts.JavaPath = "java"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Adapter{
		table:    table,
		runner:   runner,
		opts:     opts,
		logger:   logger.NewLogger("external"),
		breakers: map[engine.ID]*gobreaker.CircuitBreaker{},
	}
}

// Table returns the tool table the adapter resolves against.
func (a *Adapter) Table() *Table {
	return a.table
}

// ToolsDir returns the directory tool files are looked up in.
func (a *Adapter) ToolsDir() string {
	return a.opts.ToolsDir
}

// Resolve maps a tool id or alias to an installed tool. The tools directory
// is checked on every call.
func (a *Adapter) Resolve(id engine.ID) (Handle, error) {
	spec, ok := a.table.Lookup(id)
	if !ok {
		return Handle{}, fmt.Errorf("%w: unknown tool %q", engine.ErrToolNotInstalled, id)
	}
	p := filepath.Join(a.opts.ToolsDir, spec.File)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return Handle{}, fmt.Errorf("%w: %s (expected %s)", engine.ErrToolNotInstalled, spec.ID, p)
	}
	return Handle{Tool: spec, Path: p}, nil
}

// Installed reports whether id resolves to a tool file.
func (a *Adapter) Installed(id engine.ID) bool {
	_, err := a.Resolve(id)
	return err == nil
}

// DecompileUnit runs the tool on a single class and returns the first source
// it produced. An empty result with a nil error means the tool ran but
// produced nothing.
func (a *Adapter) DecompileUnit(ctx context.Context, data []byte, toolID engine.ID) (string, error) {
	h, err := a.Resolve(toolID)
	if err != nil {
		return "", err
	}

	ws, err := scratch.New(a.opts.ScratchRoot)
	if err != nil {
		return "", err
	}
	defer ws.Close()

	name, _, ok := engine.UnitName(data, "")
	if !ok {
		name = "Unit"
	}
	input, err := ws.WriteFile(path.Base(classfile.QualifiedToInternal(name))+".class", data)
	if err != nil {
		return "", err
	}
	outDir, err := ws.Dir("out")
	if err != nil {
		return "", err
	}

	if err := a.run(ctx, h, input, outDir); err != nil {
		return "", err
	}

	units, err := discover(outDir, h.Tool.Output)
	if err != nil {
		return "", fmt.Errorf("failed to read %s output: %w", h.Tool.ID, err)
	}
	if len(units) == 0 {
		a.logger.WithFields(logger.Fields{"tool": h.Tool.ID}).Warn("Tool produced no sources")
		return "", nil
	}
	return units[0].Source, nil
}

// DecompileArchive runs the tool on the archive at archivePath with outDir as
// its output directory, then pushes every recovered source matched by target
// into sink.
func (a *Adapter) DecompileArchive(ctx context.Context, archivePath, outDir string, toolID engine.ID, sink engine.Sink, target string) error {
	h, err := a.Resolve(toolID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := a.run(ctx, h, archivePath, outDir); err != nil {
		return err
	}

	units, err := discover(outDir, h.Tool.Output)
	if err != nil {
		return fmt.Errorf("failed to read %s output: %w", h.Tool.ID, err)
	}
	pushed := 0
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !archive.MatchTarget(u.QualifiedName, target) {
			continue
		}
		if err := sink.Push(u); err != nil {
			return err
		}
		pushed++
	}
	a.logger.WithFields(logger.Fields{"tool": h.Tool.ID, "units": pushed}).Debug("Collected tool output")
	return nil
}

func (a *Adapter) invocation(h Handle, input, output string) cmdrunner.Invocation {
	args := h.Tool.expandArgs(input, output)
	if h.Tool.Launcher == LauncherJavaJar {
		return cmdrunner.Invocation{
			Name:    a.opts.JavaPath,
			Args:    append([]string{"-jar", h.Path}, args...),
			Timeout: a.opts.Timeout,
		}
	}
	return cmdrunner.Invocation{Name: h.Path, Args: args, Timeout: a.opts.Timeout}
}

// run executes the tool once. No retries: a failed run is reported as is.
func (a *Adapter) run(ctx context.Context, h Handle, input, output string) error {
	inv := a.invocation(h, input, output)
	log := a.logger.WithFields(logger.Fields{"tool": h.Tool.ID, "timeout": inv.Timeout.String()})
	log.Debug("Running external tool")

	raw, err := a.breaker(h.Tool.ID).Execute(func() (interface{}, error) {
		return a.runner.Exec(ctx, inv)
	})
	res, _ := raw.(*cmdrunner.Result)

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &engine.ToolError{
			Tool: h.Tool.ID,
			Err:  fmt.Errorf("%w: tool temporarily disabled after repeated launch failures", engine.ErrToolFailed),
		}
	case err != nil && ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, cmdrunner.ErrTimeout):
		return &engine.ToolError{
			Tool:   h.Tool.ID,
			Output: outputOf(res),
			Err:    fmt.Errorf("%w after %v", engine.ErrToolTimeout, inv.Timeout),
		}
	case err != nil:
		return &engine.ToolError{
			Tool: h.Tool.ID,
			Err:  fmt.Errorf("%w: %v", engine.ErrToolFailed, err),
		}
	case res == nil:
		return &engine.ToolError{Tool: h.Tool.ID, Err: fmt.Errorf("%w: no result", engine.ErrToolFailed)}
	}

	if res.ExitCode != 0 {
		log.WithFields(logger.Fields{"exit_code": res.ExitCode}).Warn("External tool failed")
		return &engine.ToolError{
			Tool:     h.Tool.ID,
			ExitCode: res.ExitCode,
			Output:   outputOf(res),
			Err:      engine.ErrToolFailed,
		}
	}
	log.WithFields(logger.Fields{"duration": res.Duration.String()}).Debug("External tool finished")
	return nil
}

func outputOf(res *cmdrunner.Result) string {
	if res == nil {
		return ""
	}
	return string(res.Output)
}

// breaker returns the tool's circuit breaker. Only launch failures and
// timeouts count; a non-zero exit depends on the input, not the tool.
func (a *Adapter) breaker(id engine.ID) *gobreaker.CircuitBreaker {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cb, ok := a.breakers[id]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "tool-" + string(id),
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			a.logger.Warnf("Circuit breaker %s changed from %v to %v", name, from, to)
		},
	})
	a.breakers[id] = cb
	return cb
}
