//go:build !unix

package runner

import "os/exec"

// killProcessGroup is a no-op where process groups are unavailable; the
// default cancel kills the direct child and WaitDelay bounds the wait for
// its output.
func killProcessGroup(cmd *exec.Cmd) {}
