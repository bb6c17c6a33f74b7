package host

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

// Platform returns the operating system name, e.g. "linux", "darwin" or
// "windows".
func Platform() string {
	return runtime.GOOS
}

// commandRunner runs a command and reports its exit error, if any
type commandRunner func(name string, args ...string) error

func runCommand(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// IsAdmin reports whether the process runs with elevated rights. Platforms
// without an elevation concept always report true.
func IsAdmin() (bool, error) {
	return isAdmin(runtime.GOOS, runCommand)
}

func isAdmin(goos string, run commandRunner) (bool, error) {
	if goos != "windows" {
		return true, nil
	}

	// "net session" only succeeds in an elevated shell
	err := run("net", "session")
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("privilege check failed: %w", err)
}
