// Package am provides health monitoring for the AM system.
package am

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Layer and overall health states. A layer starts UNKNOWN, becomes HEALTHY
// on its first heartbeat, and degrades the longer it goes silent.
const (
	StatusUnknown  = "UNKNOWN"
	StatusHealthy  = "HEALTHY"
	StatusDegraded = "DEGRADED"
	StatusFailed   = "FAILED"
	StatusCritical = "CRITICAL"
	StatusWarning  = "WARNING"
)

// LayerStatus represents the status of a single layer.
type LayerStatus struct {
	LayerID       int       `json:"layerId"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	EventCount    int64     `json:"eventCount"`
}

// HealthMetrics tracks overall system metrics.
type HealthMetrics struct {
	TotalEventsProcessed   int64     `json:"totalEventsProcessed"`
	ActiveConversations    int       `json:"activeConversations"`
	LayersOperational      int       `json:"layersOperational"`
	LayersTotal            int       `json:"layersTotal"`
	UptimeSeconds          int64     `json:"uptimeSeconds"`
	LastFullScan           time.Time `json:"lastFullScan"`
	ConversationsStarted   int64     `json:"conversationsStarted"`
	ConversationsCompleted int64     `json:"conversationsCompleted"`
	ConversationsValidated int       `json:"conversationsValidated"`
	ConversationsCorrupted int       `json:"conversationsCorrupted"`
	LastValidationTime     time.Time `json:"lastValidationTime"`
	ValidationErrors       []string  `json:"validationErrors,omitempty"`
}

// ContentValidation represents validation results for conversation content.
type ContentValidation struct {
	TotalFiles     int      `json:"totalFiles"`
	ValidFiles     int      `json:"validFiles"`
	CorruptedFiles int      `json:"corruptedFiles"`
	Errors         []string `json:"errors,omitempty"`
}

// SystemHealth represents the complete health status.
type SystemHealth struct {
	Layers     []*LayerStatus     `json:"layers"`
	Metrics    *HealthMetrics     `json:"metrics"`
	Status     string             `json:"status"`
	Validation *ContentValidation `json:"validation,omitempty"`
}

// layerNames gives the human-readable name for each monitored layer, used
// to seed HealthMonitor's table at startup.
var layerNames = map[int]string{
	1: "PTY Interceptor",
	2: "Shell Hooks",
	3: "Process Monitor",
	4: "FS Watcher",
	5: "Health Monitor",
}

const selfLayerID = 5

// HealthMonitor tracks the health of all AM layers (Layer 5), by
// subscribing to every LayerEvent published on the bus and periodically
// sweeping for layers that have gone quiet.
type HealthMonitor struct {
	layers         map[int]*LayerStatus
	mutex          sync.RWMutex
	alertThreshold time.Duration
	metrics        *HealthMetrics
	startTime      time.Time
}

// NewHealthMonitor creates a new health monitor.
func NewHealthMonitor() *HealthMonitor {
	hm := &HealthMonitor{
		layers:         make(map[int]*LayerStatus, len(layerNames)),
		alertThreshold: 30 * time.Second,
		metrics:        &HealthMetrics{},
		startTime:      time.Now(),
	}

	for id, name := range layerNames {
		status := StatusUnknown
		heartbeat := time.Time{}
		if id == selfLayerID {
			status = StatusHealthy
			heartbeat = time.Now()
		}
		hm.layers[id] = &LayerStatus{LayerID: id, Name: name, Status: status, LastHeartbeat: heartbeat}
	}

	return hm
}

// Start begins health monitoring.
func (hm *HealthMonitor) Start(ctx context.Context) {
	log.Printf("[Health Layer 5] Starting health monitor")

	EventBus.Subscribe(hm.handleLayerEvent)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Health Layer 5] Shutting down")
			return
		case <-ticker.C:
			hm.performHealthCheck()
		}
	}
}

func (hm *HealthMonitor) handleLayerEvent(event *LayerEvent) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	if layer, exists := hm.layers[event.Layer]; exists {
		layer.LastHeartbeat = time.Now()
		layer.EventCount++
		if layer.Status != StatusHealthy {
			layer.Status = StatusHealthy
			log.Printf("[Health Monitor] layer %d (%s) recovered to HEALTHY", event.Layer, layer.Name)
		}
	}

	hm.metrics.TotalEventsProcessed++

	switch event.Type {
	case EventLLMStart:
		hm.metrics.ConversationsStarted++
		hm.metrics.ActiveConversations++
	case EventLLMEnd:
		hm.metrics.ConversationsCompleted++
		if hm.metrics.ActiveConversations > 0 {
			hm.metrics.ActiveConversations--
		}
	}
}

// performHealthCheck ages out layers that have stopped heartbeating and
// recomputes the aggregate operational count.
func (hm *HealthMonitor) performHealthCheck() {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	now := time.Now()
	operationalCount := 0

	for layerID, status := range hm.layers {
		if layerID == selfLayerID {
			operationalCount++
			continue
		}

		if status.Status == StatusUnknown {
			continue
		}

		silentFor := now.Sub(status.LastHeartbeat)
		switch {
		case silentFor > 2*hm.alertThreshold && status.Status == StatusDegraded:
			status.Status = StatusFailed
			log.Printf("[Health Monitor] layer %d (%s) FAILED: silent for %s", layerID, status.Name, silentFor.Round(time.Second))
		case silentFor > hm.alertThreshold && status.Status == StatusHealthy:
			status.Status = StatusDegraded
			log.Printf("[Health Monitor] layer %d (%s) DEGRADED: silent for %s", layerID, status.Name, silentFor.Round(time.Second))
		}

		if status.Status == StatusHealthy {
			operationalCount++
		}
	}

	hm.metrics.LayersOperational = operationalCount
	hm.metrics.LayersTotal = len(hm.layers)
	hm.metrics.LastFullScan = now
	hm.metrics.UptimeSeconds = int64(now.Sub(hm.startTime).Seconds())

	hm.layers[selfLayerID].LastHeartbeat = now
	hm.layers[selfLayerID].EventCount++
}

// GetSystemHealth returns the current system health.
func (hm *HealthMonitor) GetSystemHealth() *SystemHealth {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()

	layers := make([]*LayerStatus, 0, len(hm.layers))
	for i := 1; i <= len(hm.layers); i++ {
		if status, exists := hm.layers[i]; exists {
			layers = append(layers, status)
		}
	}

	return &SystemHealth{
		Layers:  layers,
		Metrics: hm.metrics,
		Status:  hm.computeOverallStatus(),
	}
}

// GetLayerStatus returns status for a specific layer.
func (hm *HealthMonitor) GetLayerStatus(layerID int) *LayerStatus {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()
	return hm.layers[layerID]
}

// GetMetrics returns current metrics.
func (hm *HealthMonitor) GetMetrics() *HealthMetrics {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()
	return hm.metrics
}

// computeOverallStatus folds every non-self layer's state into one of
// HEALTHY, WARNING, DEGRADED, or CRITICAL. Must be called with hm.mutex held.
func (hm *HealthMonitor) computeOverallStatus() string {
	operational := 0
	total := 0

	for layerID, status := range hm.layers {
		if layerID == selfLayerID {
			continue
		}
		total++
		if status.Status == StatusHealthy {
			operational++
		}
	}

	switch {
	case operational == 0:
		return StatusCritical
	case operational == 1:
		return StatusDegraded
	case operational < total:
		return StatusWarning
	default:
		return StatusHealthy
	}
}

// ExportHealthReport writes health data to a file.
func (hm *HealthMonitor) ExportHealthReport(path string) error {
	health := hm.GetSystemHealth()
	data, err := json.MarshalIndent(health, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RecordPTYHeartbeat records a heartbeat from Layer 1.
func (hm *HealthMonitor) RecordPTYHeartbeat() {
	EventBus.Publish(&LayerEvent{Type: EventHeartbeat, Layer: 1, Timestamp: time.Now()})
}

// RecordShellHooksHeartbeat records a heartbeat for Layer 2 (Shell Hooks).
func (hm *HealthMonitor) RecordShellHooksHeartbeat() {
	EventBus.Publish(&LayerEvent{Type: EventHeartbeat, Layer: 2, Timestamp: time.Now()})
}

// ansiArtifacts flags leftover escape/CSI fragments that capture.go's
// cleaning should have already stripped; their presence in a saved
// conversation file means the capture was corrupted.
var ansiArtifacts = regexp.MustCompile(`\[\??[0-9;]*[a-zA-Z]|\x1b`)

// ValidateConversationContent checks if a conversation file has valid, clean content.
func ValidateConversationContent(filePath string) (bool, string) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return false, "failed to read file: " + err.Error()
	}

	var conv struct {
		Turns []struct {
			Content string `json:"content"`
		} `json:"turns"`
	}

	if err := json.Unmarshal(data, &conv); err != nil {
		return false, "failed to parse JSON: " + err.Error()
	}

	if len(conv.Turns) == 0 {
		return false, "no conversation turns found"
	}

	for i, turn := range conv.Turns {
		if turn.Content == "" {
			continue
		}
		if ansiArtifacts.MatchString(turn.Content) {
			return false, "turn " + strconv.Itoa(i) + " contains ANSI artifacts"
		}
	}

	totalContent := 0
	for _, turn := range conv.Turns {
		totalContent += len(strings.TrimSpace(turn.Content))
	}
	if totalContent < 10 {
		return false, "insufficient content (less than 10 characters)"
	}

	return true, ""
}

// maxValidationErrors bounds how many validation error strings are kept in
// HealthMetrics, so a directory full of corrupted files can't grow the
// in-memory health report without bound.
const maxValidationErrors = 5

// ValidateAllConversations scans all conversation files and returns validation results.
func (hm *HealthMonitor) ValidateAllConversations(amDir string) *ContentValidation {
	validation := &ContentValidation{Errors: make([]string, 0)}

	files, err := filepath.Glob(filepath.Join(amDir, "llm-conv-*.json"))
	if err != nil {
		validation.Errors = append(validation.Errors, "failed to list files: "+err.Error())
		return validation
	}

	validation.TotalFiles = len(files)
	for _, file := range files {
		if valid, errMsg := ValidateConversationContent(file); valid {
			validation.ValidFiles++
		} else {
			validation.CorruptedFiles++
			validation.Errors = append(validation.Errors, filepath.Base(file)+": "+errMsg)
		}
	}

	hm.mutex.Lock()
	hm.metrics.ConversationsValidated = validation.ValidFiles
	hm.metrics.ConversationsCorrupted = validation.CorruptedFiles
	hm.metrics.LastValidationTime = time.Now()
	if len(validation.Errors) > maxValidationErrors {
		hm.metrics.ValidationErrors = validation.Errors[:maxValidationErrors]
	} else {
		hm.metrics.ValidationErrors = validation.Errors
	}
	hm.mutex.Unlock()

	log.Printf("[Health Monitor] validated %d files: %d clean, %d corrupted",
		validation.TotalFiles, validation.ValidFiles, validation.CorruptedFiles)

	return validation
}
