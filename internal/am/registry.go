package am

import "sync"

// ConversationRegistry is the single owning container for the per-tab LLM
// loggers that used to live behind a package-level map. It is created
// alongside a System and torn down with it, so a restarted system never
// inherits a stale tab's conversation state.
type ConversationRegistry struct {
	mu      sync.RWMutex
	amDir   string
	loggers map[string]*LLMLogger
}

func newConversationRegistry(amDir string) *ConversationRegistry {
	return &ConversationRegistry{
		amDir:   amDir,
		loggers: make(map[string]*LLMLogger),
	}
}

// loggerFor returns the logger for a tab, creating one on first use.
func (r *ConversationRegistry) loggerFor(tabID string) *LLMLogger {
	r.mu.Lock()
	defer r.mu.Unlock()

	if logger, ok := r.loggers[tabID]; ok {
		return logger
	}

	logger := &LLMLogger{
		tabID:         tabID,
		conversations: make(map[string]*LLMConversation),
		amDir:         r.amDir,
	}
	r.loggers[tabID] = logger
	return logger
}

// remove drops a tab's logger, e.g. once its session log has been archived.
func (r *ConversationRegistry) remove(tabID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.loggers, tabID)
}

// activeConversations snapshots the in-flight conversation for every
// registered tab, keyed by conversation id.
func (r *ConversationRegistry) activeConversations() map[string]*LLMConversation {
	r.mu.RLock()
	loggers := make([]*LLMLogger, 0, len(r.loggers))
	for _, logger := range r.loggers {
		loggers = append(loggers, logger)
	}
	r.mu.RUnlock()

	active := make(map[string]*LLMConversation, len(loggers))
	for _, logger := range loggers {
		logger.mu.Lock()
		if logger.activeConvID != "" {
			if conv, ok := logger.conversations[logger.activeConvID]; ok {
				active[logger.activeConvID] = conv
			}
		}
		logger.mu.Unlock()
	}
	return active
}

// SessionRegistry is the single owning container for the per-tab session
// loggers (the crash-recovery markdown logs), mirroring ConversationRegistry.
type SessionRegistry struct {
	mu      sync.Mutex
	loggers map[string]*Logger
}

func newSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		loggers: make(map[string]*Logger),
	}
}

// Get returns the session logger for a tab, creating one if needed.
func (r *SessionRegistry) Get(tabID, tabName, workspace string) (*Logger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if logger, ok := r.loggers[tabID]; ok {
		return logger, nil
	}

	logger, err := NewLogger(tabID, tabName, workspace)
	if err != nil {
		return nil, err
	}

	r.loggers[tabID] = logger
	return logger, nil
}

// Remove drops a tab's session logger, e.g. once its log has been archived.
func (r *SessionRegistry) Remove(tabID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.loggers, tabID)
}
