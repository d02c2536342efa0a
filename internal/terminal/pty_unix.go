//go:build !windows
// +build !windows

package terminal

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// startPTY starts cmd attached to a new pseudo-terminal.
func startPTY(cmd *exec.Cmd) (io.ReadWriteCloser, error) {
	f, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("pty start failed: %w", err)
	}
	return f, nil
}

// startPTYWithShell starts the given shell binary with args attached to a
// new pseudo-terminal.
func startPTYWithShell(shell string, args []string) (io.ReadWriteCloser, error) {
	cmd := exec.Command(shell, args...)
	f, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("pty start failed for %s: %w", shell, err)
	}
	return f, nil
}

// resizePTY updates the pseudo-terminal's window size.
func resizePTY(ptmx io.ReadWriteCloser, cols, rows uint16) error {
	f, ok := ptmx.(*os.File)
	if !ok {
		return fmt.Errorf("invalid pty type")
	}
	return pty.Setsize(f, &pty.Winsize{Cols: cols, Rows: rows})
}
