// Package am provides process monitoring for LLM CLI detection.
package am

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/forgeterm/terminal/internal/llm"
)

// ProcessInfo tracks an active LLM process.
type ProcessInfo struct {
	PID         int       `json:"pid"`
	ConvID      string    `json:"convId"`
	Provider    string    `json:"provider"`
	CommandLine string    `json:"commandLine"`
	StartTime   time.Time `json:"startTime"`
	LastSeen    time.Time `json:"lastSeen"`
}

// processTable is the single owning container for the PIDs this monitor has
// matched to an LLM CLI, mirroring ConversationRegistry/SessionRegistry:
// every read or mutation goes through its methods rather than a bare map
// guarded ad hoc at each call site.
type processTable struct {
	mu    sync.RWMutex
	procs map[int]*ProcessInfo
}

func newProcessTable() *processTable {
	return &processTable{procs: make(map[int]*ProcessInfo)}
}

func (t *processTable) has(pid int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.procs[pid]
	return ok
}

func (t *processTable) track(info *ProcessInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.procs[info.PID] = info
}

func (t *processTable) touch(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if info, ok := t.procs[pid]; ok {
		info.LastSeen = time.Now()
	}
}

// reap drops every tracked PID absent from alive and returns their
// ProcessInfo so the caller can announce them as ended.
func (t *processTable) reap(alive map[int]bool) []*ProcessInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ended []*ProcessInfo
	for pid, info := range t.procs {
		if !alive[pid] {
			ended = append(ended, info)
			delete(t.procs, pid)
		}
	}
	return ended
}

func (t *processTable) snapshot() map[int]*ProcessInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[int]*ProcessInfo, len(t.procs))
	for k, v := range t.procs {
		result[k] = v
	}
	return result
}

// ProcessMonitor scans for LLM processes (Layer 3).
type ProcessMonitor struct {
	detector      *llm.Detector
	checkInterval time.Duration
	procs         *processTable
	amDir         string
}

// NewProcessMonitor creates a new process monitor.
func NewProcessMonitor(detector *llm.Detector, amDir string) *ProcessMonitor {
	return &ProcessMonitor{
		detector:      detector,
		checkInterval: 2 * time.Second,
		procs:         newProcessTable(),
		amDir:         amDir,
	}
}

// Start begins process monitoring.
func (pm *ProcessMonitor) Start(ctx context.Context) {
	log.Printf("[Process Layer 3] Starting process monitor (interval: %v)", pm.checkInterval)
	runHeartbeatLoop(ctx, 3, pm.checkInterval, pm.scanProcesses)
	log.Printf("[Process Layer 3] Shutting down")
}

// processListCommand returns the OS command used to enumerate running
// processes along with their full command line, which differs by platform:
// `ps aux` has no Windows equivalent, so tasklist's verbose CSV form stands
// in there.
func processListCommand() *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.Command("tasklist", "/v", "/fo", "csv", "/nh")
	}
	return exec.Command("ps", "aux")
}

func (pm *ProcessMonitor) scanProcesses() {
	output, err := processListCommand().Output()
	if err != nil {
		return
	}

	alive := make(map[int]bool)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	if runtime.GOOS != "windows" {
		scanner.Scan() // skip the ps aux header line
	}

	for scanner.Scan() {
		line := scanner.Text()
		lowerLine := strings.ToLower(line)

		if !strings.Contains(lowerLine, "copilot") &&
			!strings.Contains(lowerLine, "claude") &&
			!strings.Contains(lowerLine, "aider") {
			continue
		}

		pid, cmdLine := parseProcessLine(line)
		if pid <= 0 {
			continue
		}
		alive[pid] = true
		pm.handleProcess(pid, cmdLine)
	}

	for _, info := range pm.procs.reap(alive) {
		log.Printf("[Process Layer 3] Process ended: PID=%d, ConvID=%s", info.PID, info.ConvID)
		EventBus.Publish(&LayerEvent{
			Type:      EventLLMEnd,
			Layer:     3,
			ConvID:    info.ConvID,
			Timestamp: time.Now(),
		})
	}
}

func (pm *ProcessMonitor) handleProcess(pid int, cmdLine string) {
	if pm.procs.has(pid) {
		pm.procs.touch(pid)
		return
	}

	detected := pm.detector.DetectCommand(cmdLine)
	if !detected.Detected {
		return
	}

	convID := fmt.Sprintf("conv-proc-%d-%d", pid, time.Now().Unix())

	info := &ProcessInfo{
		PID:         pid,
		ConvID:      convID,
		Provider:    string(detected.Provider),
		CommandLine: cmdLine,
		StartTime:   time.Now(),
		LastSeen:    time.Now(),
	}
	pm.procs.track(info)

	log.Printf("[Process Layer 3] New LLM process: PID=%d, Provider=%s", pid, detected.Provider)

	EventBus.Publish(&LayerEvent{
		Type:      EventLLMStart,
		Layer:     3,
		ConvID:    convID,
		Provider:  string(detected.Provider),
		Timestamp: time.Now(),
		Metadata: map[string]interface{}{
			"pid":         pid,
			"commandLine": cmdLine,
		},
	})
}

// parseProcessLine extracts a PID and full command line from a `ps aux` row.
// Windows rows go through parseTasklistLine instead.
func parseProcessLine(line string) (int, string) {
	if runtime.GOOS == "windows" {
		return parseTasklistLine(line)
	}

	fields := strings.Fields(line)
	if len(fields) < 11 {
		return 0, ""
	}

	var pid int
	fmt.Sscanf(fields[1], "%d", &pid)
	cmdLine := strings.Join(fields[10:], " ")
	return pid, cmdLine
}

// parseTasklistLine extracts a PID and image name from one quoted CSV row of
// `tasklist /v /fo csv`. tasklist doesn't expose a full command line, so the
// image name is the best provider-detection signal available on Windows.
func parseTasklistLine(line string) (int, string) {
	fields := strings.Split(line, "\",\"")
	if len(fields) < 2 {
		return 0, ""
	}

	imageName := strings.Trim(fields[0], "\"")
	pidField := strings.Trim(fields[1], "\"")

	var pid int
	if _, err := fmt.Sscanf(pidField, "%d", &pid); err != nil {
		return 0, ""
	}
	return pid, imageName
}

// GetActiveProcesses returns currently tracked LLM processes.
func (pm *ProcessMonitor) GetActiveProcesses() map[int]*ProcessInfo {
	return pm.procs.snapshot()
}
