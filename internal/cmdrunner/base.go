package cmdrunner

import (
	"context"
	"errors"
	"time"

	"github.com/CloudNativeWorks/elchi-decompiler/pkg/logger"
)

// ErrTimeout is returned when a command outlives its Invocation.Timeout.
// The whole process group has been killed by the time it is returned.
var ErrTimeout = errors.New("command timed out")

// defaultOutputLimit caps captured combined output per command.
const defaultOutputLimit = 256 * 1024

type CommandRunner interface {
	Exec(ctx context.Context, inv Invocation) (*Result, error)
	Probe(ctx context.Context, timeout time.Duration, cmd string, args ...string) bool
}

// Invocation describes one child process.
type Invocation struct {
	Name    string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// Result is what is known about a process that was started. A non-zero
// ExitCode is not an error at this layer; callers decide what it means.
type Result struct {
	ExitCode  int
	Output    []byte
	Truncated bool
	Duration  time.Duration
}

type CommandsRunner struct {
	logger      *logger.Logger
	outputLimit int
}

func NewCommandsRunner() *CommandsRunner {
	return &CommandsRunner{
		logger:      logger.NewLogger("command_runner"),
		outputLimit: defaultOutputLimit,
	}
}

var _ CommandRunner = (*CommandsRunner)(nil)
