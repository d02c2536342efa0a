//go:build windows
// +build windows

package terminal

import (
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"

	"github.com/UserExistsError/conpty"
)

// This file is the Windows half of the startPTY/startPTYWithShell/resizePTY
// contract that pty_unix.go implements with creack/pty; both sides back the
// same io.ReadWriteCloser the bridge in session.go reads from, so the bridge
// does not need to know which one is live.

// commandLine joins a binary and its arguments the way cmd.exe expects them
// on its command line, since ConPty takes a single string rather than an
// argv slice.
func commandLine(path string, args []string) string {
	if len(args) == 0 {
		return path
	}
	return path + " " + strings.Join(args, " ")
}

// startPTY starts cmd attached to a new ConPTY session. exec.Cmd.Args[0] is
// conventionally the program name, so it is skipped in favor of cmd.Path.
// Only cmd.Path and cmd.Args are used: cmd.Dir and cmd.Env are not applied
// to the ConPTY session.
func startPTY(cmd *exec.Cmd) (io.ReadWriteCloser, error) {
	line := commandLine(cmd.Path, cmd.Args[1:])
	log.Printf("[PTY] starting ConPTY session: %s", line)

	cpty, err := conpty.Start(line)
	if err != nil {
		return nil, fmt.Errorf("conpty start failed for %s: %w", line, err)
	}
	return cpty, nil
}

// startPTYWithShell starts the given shell binary with args attached to a
// new ConPTY session.
func startPTYWithShell(shell string, args []string) (io.ReadWriteCloser, error) {
	line := commandLine(shell, args)

	cpty, err := conpty.Start(line)
	if err != nil {
		return nil, fmt.Errorf("conpty start failed for %s: %w", line, err)
	}
	return cpty, nil
}

// resizePTY updates the ConPTY session's window size.
func resizePTY(ptmx io.ReadWriteCloser, cols, rows uint16) error {
	cpty, ok := ptmx.(*conpty.ConPty)
	if !ok {
		return fmt.Errorf("invalid pty type")
	}
	return cpty.Resize(int(cols), int(rows))
}
