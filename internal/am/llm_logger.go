// Package am provides LLM conversation logging.
package am

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgeterm/terminal/internal/llm"
)

// ConversationTurn represents a single exchange in an LLM conversation.
type ConversationTurn struct {
	Role            string    `json:"role"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	Provider        string    `json:"provider"`
	Raw             string    `json:"raw,omitempty"`             // Raw PTY data for debugging
	CaptureMethod   string    `json:"captureMethod,omitempty"`   // "pty_input", "pty_output"
	ParseConfidence float64   `json:"parseConfidence,omitempty"` // 0.0-1.0 for output parsing
}

// ConversationRecovery holds recovery metadata for a conversation.
type ConversationRecovery struct {
	LastSavedTurn          int    `json:"lastSavedTurn"`
	InProgressTurn         *int   `json:"inProgressTurn,omitempty"`
	CanRestore             bool   `json:"canRestore"`
	SuggestedRestorePrompt string `json:"suggestedRestorePrompt,omitempty"`
}

// ConversationMetadata holds context about where the conversation happened.
type ConversationMetadata struct {
	WorkingDirectory string `json:"workingDirectory,omitempty"`
	GitBranch        string `json:"gitBranch,omitempty"`
	ShellType        string `json:"shellType,omitempty"`
}

// LLMConversation represents a complete LLM conversation session.
type LLMConversation struct {
	ConversationID string                `json:"conversationId"`
	TabID          string                `json:"tabId"`
	Provider       string                `json:"provider"`
	CommandType    string                `json:"commandType"`
	StartTime      time.Time             `json:"startTime"`
	EndTime        time.Time             `json:"endTime,omitempty"`
	Turns          []ConversationTurn    `json:"turns"`
	Complete       bool                  `json:"complete"`
	AutoRespond    bool                  `json:"autoRespond"`
	Metadata       *ConversationMetadata `json:"metadata,omitempty"`
	Recovery       *ConversationRecovery `json:"recovery,omitempty"`
}

// LLMLogger accumulates the raw PTY bytes for a single tab into discrete
// conversation turns. A tab owns exactly one LLMLogger, handed out by a
// ConversationRegistry; the logger itself never reaches across tabs.
type LLMLogger struct {
	mu              sync.Mutex
	tabID           string
	conversations   map[string]*LLMConversation
	activeConvID    string
	outputBuffer    string
	inputBuffer     string
	lastOutputTime  time.Time
	lastInputTime   time.Time
	amDir           string
	autoRespond     bool
	onLowConfidence func(raw string) // notified when an assistant turn parses below confidence threshold
}

// SetAutoRespond updates the auto-respond flag for the logger.
func (l *LLMLogger) SetAutoRespond(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.autoRespond = enabled
}

// IsAutoRespond returns whether auto-respond is enabled.
func (l *LLMLogger) IsAutoRespond() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.autoRespond
}

// SetLowConfidenceCallback sets the callback invoked when FlushOutput parses
// an assistant turn below the confidence threshold.
func (l *LLMLogger) SetLowConfidenceCallback(callback func(raw string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onLowConfidence = callback
}

// lowConfidenceThreshold is the ParseAssistantOutput score below which a
// captured assistant turn is flagged as possibly corrupted or truncated.
const lowConfidenceThreshold = 0.8

// StartConversation begins tracking a new LLM conversation for this tab and
// returns its generated id. If the detected command carried an inline
// prompt (a one-shot invocation), that prompt becomes the first user turn.
func (l *LLMLogger) StartConversation(detected *llm.DetectedCommand) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	convID := "conv-" + uuid.NewString()

	conv := &LLMConversation{
		ConversationID: convID,
		TabID:          l.tabID,
		Provider:       string(detected.Provider),
		CommandType:    string(detected.Type),
		StartTime:      time.Now(),
		Turns:          []ConversationTurn{},
		Complete:       false,
	}

	if detected.Prompt != "" {
		conv.Turns = append(conv.Turns, ConversationTurn{
			Role:      "user",
			Content:   detected.Prompt,
			Timestamp: time.Now(),
			Provider:  string(detected.Provider),
		})
	}

	l.conversations[convID] = conv
	l.activeConvID = convID
	l.outputBuffer = ""
	l.lastOutputTime = time.Now()

	l.saveConversation(conv)

	EventBus.Publish(&LayerEvent{
		Type:      EventLLMStart,
		Layer:     1,
		TabID:     l.tabID,
		ConvID:    convID,
		Provider:  string(detected.Provider),
		Timestamp: time.Now(),
	})

	log.Printf("[LLM Logger] tab %s started conversation %s (provider=%s)", l.tabID, convID, detected.Provider)
	return convID
}

// AddOutput accumulates LLM output.
func (l *LLMLogger) AddOutput(rawOutput string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.activeConvID == "" {
		return
	}

	l.outputBuffer += rawOutput
	l.lastOutputTime = time.Now()
}

// AddUserInput captures user keystrokes typed while a conversation is
// active (e.g. a follow-up prompt inside a CLI's TUI, not just the initial
// invocation). A turn is flushed as soon as the input contains a carriage
// return or newline, since that is the PTY's signal the user pressed Enter.
func (l *LLMLogger) AddUserInput(rawInput string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.activeConvID == "" {
		return
	}

	l.inputBuffer += rawInput
	l.lastInputTime = time.Now()

	if strings.ContainsAny(rawInput, "\r\n") {
		l.flushUserInputLocked()
	}
}

// flushUserInputLocked processes accumulated user input and adds as a turn.
// Must be called with lock held.
func (l *LLMLogger) flushUserInputLocked() {
	raw := l.inputBuffer
	l.inputBuffer = ""

	if raw == "" {
		return
	}

	conv, exists := l.conversations[l.activeConvID]
	if !exists {
		return
	}

	cleaned := CleanUserInput(raw)
	if cleaned == "" {
		return
	}

	conv.Turns = append(conv.Turns, ConversationTurn{
		Role:          "user",
		Content:       cleaned,
		Timestamp:     time.Now(),
		Provider:      conv.Provider,
		Raw:           raw,
		CaptureMethod: "pty_input",
	})

	if conv.Recovery == nil {
		conv.Recovery = &ConversationRecovery{}
	}
	conv.Recovery.LastSavedTurn = len(conv.Turns) - 1
	conv.Recovery.CanRestore = true
	conv.Recovery.SuggestedRestorePrompt = "Continue from: " + truncate(cleaned, 100)

	l.saveConversation(conv)
}

// truncate shortens a string to at most maxLen runes, appending an ellipsis
// marker when it had to cut.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// FlushOutput parses the accumulated output buffer and, if anything
// survives cleaning, appends it as an assistant turn.
func (l *LLMLogger) FlushOutput() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.activeConvID == "" || l.outputBuffer == "" {
		return
	}

	conv, exists := l.conversations[l.activeConvID]
	if !exists {
		return
	}

	raw := l.outputBuffer
	l.outputBuffer = ""

	cleaned, confidence := ParseAssistantOutput(raw, conv.Provider)
	if cleaned == "" {
		return
	}

	if confidence < lowConfidenceThreshold {
		log.Printf("[LLM Logger] tab %s: low parse confidence (%.2f) on assistant turn", l.tabID, confidence)
		if l.autoRespond && l.onLowConfidence != nil {
			l.onLowConfidence(raw)
		}
	}

	conv.Turns = append(conv.Turns, ConversationTurn{
		Role:            "assistant",
		Content:         cleaned,
		Timestamp:       time.Now(),
		Provider:        conv.Provider,
		Raw:             raw,
		CaptureMethod:   "pty_output",
		ParseConfidence: confidence,
	})

	l.saveConversation(conv)
}

// EndConversation flushes any pending output and marks the active
// conversation complete.
func (l *LLMLogger) EndConversation() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.activeConvID == "" {
		return
	}

	conv, exists := l.conversations[l.activeConvID]
	if !exists {
		l.activeConvID = ""
		return
	}

	if l.outputBuffer != "" {
		if cleaned, confidence := ParseAssistantOutput(l.outputBuffer, conv.Provider); cleaned != "" {
			conv.Turns = append(conv.Turns, ConversationTurn{
				Role:            "assistant",
				Content:         cleaned,
				Timestamp:       time.Now(),
				Provider:        conv.Provider,
				Raw:             l.outputBuffer,
				CaptureMethod:   "pty_output",
				ParseConfidence: confidence,
			})
		}
		l.outputBuffer = ""
	}

	conv.Complete = true
	conv.EndTime = time.Now()
	l.saveConversation(conv)

	EventBus.Publish(&LayerEvent{
		Type:      EventLLMEnd,
		Layer:     1,
		TabID:     l.tabID,
		ConvID:    l.activeConvID,
		Timestamp: time.Now(),
	})

	log.Printf("[LLM Logger] tab %s ended conversation %s (turns=%d)", l.tabID, l.activeConvID, len(conv.Turns))
	l.activeConvID = ""
}

// ShouldFlushOutput checks if output buffer should be flushed.
func (l *LLMLogger) ShouldFlushOutput(threshold time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.outputBuffer == "" || l.activeConvID == "" {
		return false
	}
	return time.Since(l.lastOutputTime) > threshold
}

// GetActiveConversationID returns the current active conversation ID.
func (l *LLMLogger) GetActiveConversationID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeConvID
}

// GetConversations returns all conversations for this tab.
func (l *LLMLogger) GetConversations() []*LLMConversation {
	l.mu.Lock()
	defer l.mu.Unlock()

	convs := make([]*LLMConversation, 0, len(l.conversations))
	for _, conv := range l.conversations {
		convs = append(convs, conv)
	}
	return convs
}

// saveConversation persists a conversation to disk, writing to a temp path
// and renaming into place so a reader never observes a partial write.
func (l *LLMLogger) saveConversation(conv *LLMConversation) {
	if l.amDir == "" {
		return
	}

	if err := os.MkdirAll(l.amDir, 0755); err != nil {
		log.Printf("[LLM Logger] failed to create AM dir: %v", err)
		return
	}

	filename := fmt.Sprintf("llm-conv-%s-%s.json", l.tabID, conv.ConversationID)
	filePath := filepath.Join(l.amDir, filename)

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		log.Printf("[LLM Logger] failed to marshal conversation: %v", err)
		return
	}

	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		log.Printf("[LLM Logger] failed to write conversation: %v", err)
		return
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		log.Printf("[LLM Logger] failed to finalize conversation file: %v", err)
		os.Remove(tmpPath)
	}
}
