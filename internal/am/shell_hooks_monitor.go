// Package am provides shell hooks monitoring for Layer 2.
package am

import (
	"context"
	"log"
	"time"
)

// ShellHooksMonitor is Layer 2: it has no work of its own to poll for (shell
// hook activity arrives as HTTP calls from the installed rc snippet, handled
// elsewhere), so its only job is proving to the health monitor that the
// layer is alive.
type ShellHooksMonitor struct {
	heartbeatInterval time.Duration
}

// NewShellHooksMonitor creates a new shell hooks monitor.
func NewShellHooksMonitor() *ShellHooksMonitor {
	return &ShellHooksMonitor{
		heartbeatInterval: 10 * time.Second,
	}
}

// Start begins shell hooks monitoring.
func (shm *ShellHooksMonitor) Start(ctx context.Context) {
	log.Printf("[Shell Layer 2] Starting shell hooks monitor")
	runHeartbeatLoop(ctx, 2, shm.heartbeatInterval, nil)
	log.Printf("[Shell Layer 2] Shutting down")
}
