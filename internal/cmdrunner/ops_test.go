package cmdrunner

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExec_CapturesCombinedOutputAndExitCode(t *testing.T) {
	requireShell(t)
	r := NewCommandsRunner()

	res, err := r.Exec(context.Background(), Invocation{
		Name: "sh",
		Args: []string{"-c", "echo out; echo err 1>&2; exit 3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, string(res.Output), "out")
	assert.Contains(t, string(res.Output), "err")
}

func TestExec_Timeout(t *testing.T) {
	requireShell(t)
	r := NewCommandsRunner()

	start := time.Now()
	_, err := r.Exec(context.Background(), Invocation{
		Name:    "sh",
		Args:    []string{"-c", "sleep 30 & wait"},
		Timeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Less(t, time.Since(start), 10*time.Second, "process group should be killed promptly")
}

func TestExec_ParentCancel(t *testing.T) {
	requireShell(t)
	r := NewCommandsRunner()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := r.Exec(ctx, Invocation{Name: "sh", Args: []string{"-c", "sleep 30"}, Timeout: time.Minute})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestExec_LaunchFailure(t *testing.T) {
	r := NewCommandsRunner()

	_, err := r.Exec(context.Background(), Invocation{Name: "/nonexistent/definitely-not-a-binary"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command error")
}

func TestExec_RequiresName(t *testing.T) {
	_, err := NewCommandsRunner().Exec(context.Background(), Invocation{})
	assert.Error(t, err)
}

func TestProbe(t *testing.T) {
	requireShell(t)
	r := NewCommandsRunner()

	assert.True(t, r.Probe(context.Background(), time.Second, "sh", "-c", "exit 0"))
	assert.False(t, r.Probe(context.Background(), time.Second, "sh", "-c", "exit 1"))
	assert.False(t, r.Probe(context.Background(), time.Second, "/nonexistent/java", "-version"))
}

func TestLimitedBuffer(t *testing.T) {
	b := &limitedBuffer{max: 5}
	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = b.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "abcde", string(b.Bytes()))
	assert.True(t, b.truncated)

	_, _ = b.Write([]byte(strings.Repeat("x", 10)))
	assert.Equal(t, "abcde", string(b.Bytes()))
}
