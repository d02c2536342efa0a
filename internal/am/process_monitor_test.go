package am

import (
	"runtime"
	"testing"
)

func TestProcessTableTracksAndSnapshots(t *testing.T) {
	pt := newProcessTable()

	pt.track(&ProcessInfo{PID: 100, ConvID: "conv-100", Provider: "claude"})
	pt.track(&ProcessInfo{PID: 200, ConvID: "conv-200", Provider: "copilot"})

	if !pt.has(100) {
		t.Error("expected pid 100 to be tracked")
	}

	snap := pt.snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected snapshot of 2 processes, got %d", len(snap))
	}
	snap[100].Provider = "mutated"
	if pt.procs[100].Provider == "mutated" {
		t.Error("snapshot should be a copy, not a view into the live table")
	}
}

func TestProcessTableReapDropsDeadPIDs(t *testing.T) {
	pt := newProcessTable()
	pt.track(&ProcessInfo{PID: 1, ConvID: "conv-1"})
	pt.track(&ProcessInfo{PID: 2, ConvID: "conv-2"})

	ended := pt.reap(map[int]bool{1: true})

	if len(ended) != 1 || ended[0].PID != 2 {
		t.Fatalf("expected pid 2 to be reaped, got %+v", ended)
	}
	if pt.has(2) {
		t.Error("reaped pid should no longer be tracked")
	}
	if !pt.has(1) {
		t.Error("pid present in the alive set should remain tracked")
	}
}

func TestProcessTableTouchUpdatesLastSeen(t *testing.T) {
	pt := newProcessTable()
	pt.track(&ProcessInfo{PID: 1})
	before := pt.procs[1].LastSeen

	pt.touch(1)

	if pt.procs[1].LastSeen.Before(before) {
		t.Error("touch should never move LastSeen backwards")
	}
}

func TestProcessTableTouchUnknownPIDIsNoop(t *testing.T) {
	pt := newProcessTable()
	pt.touch(999) // must not panic on an untracked pid
	if pt.has(999) {
		t.Error("touching an unknown pid should not create an entry")
	}
}

func TestParseProcessLinePSAuxFormat(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("parseProcessLine dispatches to the ps aux parser only on non-Windows platforms")
	}

	line := "user      4821  0.3  0.5 123456 98765 pts/3    Sl+  10:00   0:03 claude --model opus"
	pid, cmdLine := parseProcessLine(line)

	if pid != 4821 {
		t.Errorf("expected pid 4821, got %d", pid)
	}
	if cmdLine != "claude --model opus" {
		t.Errorf("expected trailing command line 'claude --model opus', got %q", cmdLine)
	}
}

func TestProcessListCommandNeverNil(t *testing.T) {
	if got := processListCommand(); got == nil {
		t.Fatal("processListCommand should never return nil")
	}
}

func TestParseTasklistLineExtractsImageAndPID(t *testing.T) {
	line := `"claude.exe","4821","Console","1","45,216 K","Running","DESKTOP\user","0:00:03","N/A"`

	pid, image := parseTasklistLine(line)
	if pid != 4821 {
		t.Errorf("expected pid 4821, got %d", pid)
	}
	if image != "claude.exe" {
		t.Errorf("expected image 'claude.exe', got %q", image)
	}
}

func TestParseTasklistLineRejectsMalformedRow(t *testing.T) {
	pid, image := parseTasklistLine("not,a,valid,tasklist,row")
	if pid != 0 || image != "" {
		t.Errorf("expected zero values for malformed row, got pid=%d image=%q", pid, image)
	}
}
