//go:build !unix

package cmdrunner

import "os/exec"

// configureProcessGroup keeps exec's default cancellation (kill the direct
// child) on platforms without process groups.
func configureProcessGroup(c *exec.Cmd) {}
