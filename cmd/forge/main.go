package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/forgeterm/terminal/internal/am"
	"github.com/forgeterm/terminal/internal/llm"
	"github.com/forgeterm/terminal/internal/sessions"
	"github.com/forgeterm/terminal/internal/storage"
	"github.com/forgeterm/terminal/internal/terminal"
)

// Preferred ports to try, in order.
var preferredPorts = []int{8333, 8080, 9000, 3000, 3333}

func main() {
	if err := storage.EnsureDirectories(); err != nil {
		log.Printf("[Forge] Warning: failed to ensure directories: %v", err)
	}

	go am.CleanupOldLogs()
	amSystem := am.InitSystem(am.DefaultAMDir())
	if err := amSystem.Start(); err != nil {
		log.Printf("[AM] Failed to start AM system: %v", err)
	}

	termHandler := terminal.NewHandler(amSystem)
	http.HandleFunc("/ws", termHandler.HandleWebSocket)

	// WSL detection API - lets the client discover distros before it picks a
	// shell= query value for /ws.
	http.HandleFunc("/api/wsl/detect", handleWSLDetect)

	// Sessions API - persist tab state across refreshes.
	http.HandleFunc("/api/sessions", handleSessions)

	// AM (Artificial Memory) API - session logging and recovery.
	http.HandleFunc("/api/am/enable", handleAMEnable)
	http.HandleFunc("/api/am/log", handleAMLog)
	http.HandleFunc("/api/am/check", handleAMCheck)
	http.HandleFunc("/api/am/check/enhanced", func(w http.ResponseWriter, r *http.Request) {
		handleAMCheckEnhanced(w, r)
	})
	http.HandleFunc("/api/am/check/grouped", func(w http.ResponseWriter, r *http.Request) {
		handleAMCheckGrouped(w, r)
	})
	http.HandleFunc("/api/am/content/", handleAMContent)
	http.HandleFunc("/api/am/archive/", handleAMArchive)
	http.HandleFunc("/api/am/cleanup", handleAMCleanup)
	http.HandleFunc("/api/am/install-hooks", handleAMInstallHooks)
	http.HandleFunc("/api/am/llm/conversations/", handleAMLLMConversations)
	http.HandleFunc("/api/am/health", handleAMHealth)
	http.HandleFunc("/api/am/conversations", handleAMActiveConversations)
	http.HandleFunc("/api/am/apply-hooks", handleAMApplyHooks)
	http.HandleFunc("/api/am/hook", handleAMHook)
	http.HandleFunc("/api/am/restore-hooks", handleAMRestoreHooks)

	addr, listener, err := findAvailablePort()
	if err != nil {
		log.Fatalf("Failed to find available port: %v", err)
	}

	log.Printf("Forge Terminal starting at http://%s", addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-stop
		log.Println("Shutting down Forge...")
		os.Exit(0)
	}()

	if os.Getenv("NO_BROWSER") == "" {
		go openBrowser("http://" + addr)
	}

	log.Fatal(http.Serve(listener, nil))
}

// sessionRegistry returns the running AM system's session-log registry.
// It panics if called before InitSystem, which main always calls first.
func sessionRegistry() *am.SessionRegistry {
	return am.GetSystem().SessionRegistry()
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	}
	if cmd != nil {
		_ = cmd.Start()
	}
}

func handleWSLDetect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if runtime.GOOS != "windows" {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"available": false,
			"reason":    "Not running on Windows",
		})
		return
	}

	cmd := exec.Command("wsl", "--list", "--quiet")
	hideWindow(cmd)
	output, err := cmd.Output()
	if err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"available": false,
			"reason":    "WSL not installed or not available",
		})
		return
	}

	distros := []string{}
	lines := strings.Split(string(bytes.ReplaceAll(output, []byte{0}, []byte{})), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			distros = append(distros, line)
		}
	}

	if len(distros) == 0 {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"available": false,
			"reason":    "No WSL distributions installed",
		})
		return
	}

	username := ""
	userCmd := exec.Command("wsl", "-d", distros[0], "-e", "whoami")
	hideWindow(userCmd)
	userOutput, err := userCmd.Output()
	if err == nil {
		username = strings.TrimSpace(string(userOutput))
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"available":   true,
		"distros":     distros,
		"defaultUser": username,
		"defaultHome": "/home/" + username,
	})
}

// findAvailablePort tries preferred ports in order and returns the first available one.
func findAvailablePort() (string, net.Listener, error) {
	for _, port := range preferredPorts {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			return addr, listener, nil
		}
		log.Printf("Port %d unavailable, trying next...", port)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("no available ports: %w", err)
	}
	addr := listener.Addr().String()
	log.Printf("Using OS-assigned port: %s", addr)
	return addr, listener, nil
}

func handleSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		blob, err := sessions.Load()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if blob == nil {
			w.Write([]byte("{}"))
			return
		}
		w.Write(blob)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := sessions.Save(body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func handleAMEnable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	var req am.EnableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logger, err := sessionRegistry().Get(req.TabID, req.TabName, req.Workspace)
	if err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	if req.Enabled {
		if err := logger.Enable(); err != nil {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
		log.Printf("[AM] Logging enabled for tab %s", req.TabID)
	} else {
		if err := logger.Disable(); err != nil {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
		log.Printf("[AM] Logging disabled for tab %s", req.TabID)
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"enabled": req.Enabled,
		"logPath": logger.GetLogPath(),
	})
}

func handleAMLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	var req am.AppendLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logger, err := sessionRegistry().Get(req.TabID, req.TabName, req.Workspace)
	if err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	if err := logger.Log(req.EntryType, req.Content); err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	var convID string
	if req.TriggerAM {
		amSystem := am.GetSystem()
		if amSystem == nil {
			log.Printf("[AM API] AM system not initialized, skipping conversation trigger")
		} else {
			llmLogger := amSystem.GetLLMLogger(req.TabID)
			provider := inferLLMProvider(req.LLMProvider, req.Content)
			cmdType := inferLLMType(req.LLMType)

			detected := &llm.DetectedCommand{
				Provider: provider,
				Type:     cmdType,
				Prompt:   req.Description,
				RawInput: req.Content,
				Detected: true,
			}

			convID = llmLogger.StartConversation(detected)
			log.Printf("[AM API] Started conversation %s for tab %s (provider=%s type=%s)", convID, req.TabID, provider, cmdType)
		}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":        true,
		"conversationId": convID,
	})
}

// inferLLMProvider determines the LLM provider from an explicit field or,
// failing that, by matching the command text against known CLI names.
func inferLLMProvider(explicit string, command string) llm.Provider {
	switch strings.ToLower(explicit) {
	case "copilot", "github-copilot":
		return llm.ProviderGitHubCopilot
	case "claude":
		return llm.ProviderClaude
	case "aider":
		return llm.ProviderAider
	}

	lower := strings.ToLower(command)
	if strings.Contains(lower, "copilot") || strings.Contains(lower, "gh copilot") {
		return llm.ProviderGitHubCopilot
	}
	if strings.Contains(lower, "claude") {
		return llm.ProviderClaude
	}
	if strings.Contains(lower, "aider") {
		return llm.ProviderAider
	}

	return llm.ProviderUnknown
}

func inferLLMType(explicit string) llm.CommandType {
	switch strings.ToLower(explicit) {
	case "chat":
		return llm.CommandChat
	case "suggest":
		return llm.CommandSuggest
	case "explain":
		return llm.CommandExplain
	case "code":
		return llm.CommandCode
	}
	return llm.CommandChat
}

func handleAMCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	sessionsList, err := am.CheckForRecoverableSessions()
	if err != nil {
		json.NewEncoder(w).Encode(am.RecoveryInfo{
			HasRecoverable: false,
			Sessions:       []am.SessionInfo{},
		})
		return
	}

	json.NewEncoder(w).Encode(am.RecoveryInfo{
		HasRecoverable: len(sessionsList) > 0,
		Sessions:       sessionsList,
	})
}

// handleAMCheckEnhancedCore contains the core logic for enhanced session recovery.
func handleAMCheckEnhancedCore(sessionsList []am.SessionInfo) am.RecoveryInfo {
	return am.RecoveryInfo{
		HasRecoverable: len(sessionsList) > 0,
		Sessions:       sessionsList,
	}
}

// handleAMCheckEnhanced returns session recovery info with enhanced context
// (workspace, commands, etc). The variadic sessionsOverride parameter lets
// tests inject a fixed session list instead of hitting the filesystem.
func handleAMCheckEnhanced(w http.ResponseWriter, r *http.Request, sessionsOverride ...[]am.SessionInfo) am.RecoveryInfo {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return am.RecoveryInfo{}
	}

	w.Header().Set("Content-Type", "application/json")

	var sessionsList []am.SessionInfo
	if len(sessionsOverride) > 0 && sessionsOverride[0] != nil {
		sessionsList = sessionsOverride[0]
	} else {
		var err error
		sessionsList, err = am.CheckForRecoverableSessions()
		if err != nil {
			sessionsList = []am.SessionInfo{}
		}
	}

	result := handleAMCheckEnhancedCore(sessionsList)
	json.NewEncoder(w).Encode(result)
	return result
}

// handleAMCheckGroupedCore contains the core logic for grouped session recovery.
func handleAMCheckGroupedCore(sessionsList []am.SessionInfo) am.RecoveryInfoGrouped {
	groups := am.GroupSessionsByWorkspace(sessionsList)
	return am.RecoveryInfoGrouped{
		HasRecoverable: len(sessionsList) > 0,
		Groups:         groups,
		TotalSessions:  len(sessionsList),
	}
}

// handleAMCheckGrouped returns session recovery info grouped by workspace.
func handleAMCheckGrouped(w http.ResponseWriter, r *http.Request, sessionsOverride ...[]am.SessionInfo) am.RecoveryInfoGrouped {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return am.RecoveryInfoGrouped{}
	}

	w.Header().Set("Content-Type", "application/json")

	var sessionsList []am.SessionInfo
	if len(sessionsOverride) > 0 && sessionsOverride[0] != nil {
		sessionsList = sessionsOverride[0]
	} else {
		var err error
		sessionsList, err = am.CheckForRecoverableSessions()
		if err != nil {
			sessionsList = []am.SessionInfo{}
		}
	}

	result := handleAMCheckGroupedCore(sessionsList)
	json.NewEncoder(w).Encode(result)
	return result
}

func handleAMContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	tabID := strings.TrimPrefix(r.URL.Path, "/api/am/content/")
	if tabID == "" {
		http.Error(w, "Tab ID required", http.StatusBadRequest)
		return
	}

	content, err := am.GetLogContent(tabID)
	if err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"content": content,
	})
}

func handleAMArchive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	tabID := strings.TrimPrefix(r.URL.Path, "/api/am/archive/")
	if tabID == "" {
		http.Error(w, "Tab ID required", http.StatusBadRequest)
		return
	}

	if err := am.ArchiveLog(tabID); err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	sessionRegistry().Remove(tabID)
	if system := am.GetSystem(); system != nil {
		system.RemoveLLMLogger(tabID)
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
	})
}

func handleAMCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := am.CleanupOldLogs(); err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
	})
}

// handleAMInstallHooks writes a helper script to the user's ~/.forge and returns its path and contents.
func handleAMInstallHooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	path, content, err := am.InstallShellHooks()
	if err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"path":    path,
		"content": content,
	})
}

// handleAMApplyHooks appends hook snippets to the user's shell rc when requested.
func handleAMApplyHooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	var req struct {
		Shell   string `json:"shell"`
		Preview bool   `json:"preview"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	if req.Preview {
		snippet := am.GetSnippet(req.Shell)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"snippet": snippet,
		})
		return
	}

	path, backup, err := am.ApplyShellHooks(req.Shell)
	if err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"path":    path,
		"backup":  backup,
	})
}

// handleAMHook receives hook POSTs from user shells and marks Layer 2 healthy when seen.
func handleAMHook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	am.EventBus.Publish(&am.LayerEvent{
		Type:      am.EventHookInstalled,
		Layer:     2,
		Timestamp: time.Now(),
		Metadata:  payload,
	})

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
	})
}

// handleAMRestoreHooks restores a backup file over the target profile.
func handleAMRestoreHooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	var req struct {
		Backup string `json:"backup"`
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	if req.Backup == "" || !strings.Contains(req.Backup, ".forge-backup-") {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "invalid backup path",
		})
		return
	}

	if _, err := os.Stat(req.Backup); err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "backup not found",
		})
		return
	}

	b, err := os.ReadFile(req.Backup)
	if err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	if err := os.WriteFile(req.Target, b, 0644); err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"restored": req.Target,
	})
}

func handleAMLLMConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	pathParts := strings.Split(r.URL.Path, "/")
	if len(pathParts) < 5 {
		http.Error(w, "Tab ID required", http.StatusBadRequest)
		return
	}
	tabID := pathParts[len(pathParts)-1]

	system := am.GetSystem()
	if system == nil {
		http.Error(w, "AM system not initialized", http.StatusServiceUnavailable)
		return
	}
	conversations := system.GetLLMLogger(tabID).GetConversations()

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":       true,
		"conversations": conversations,
		"count":         len(conversations),
	})
}

func handleAMHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	system := am.GetSystem()
	if system == nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "NOT_INITIALIZED",
		})
		return
	}

	health := system.GetHealth()
	json.NewEncoder(w).Encode(health)
}

func handleAMActiveConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	system := am.GetSystem()
	if system == nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"active": map[string]interface{}{},
			"count":  0,
		})
		return
	}

	convs := system.GetActiveConversations()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"active": convs,
		"count":  len(convs),
	})
}
