package am

import (
	"path/filepath"
	"sync"
	"testing"
)

func TestConversationRegistryReusesLoggerPerTab(t *testing.T) {
	reg := newConversationRegistry(filepath.Join(t.TempDir(), "am"))

	first := reg.loggerFor("tab-a")
	second := reg.loggerFor("tab-a")
	if first != second {
		t.Error("expected the same tab id to resolve to the same LLMLogger instance")
	}

	other := reg.loggerFor("tab-b")
	if other == first {
		t.Error("expected a different tab id to resolve to a different LLMLogger instance")
	}
}

func TestConversationRegistryRemoveForgetsLogger(t *testing.T) {
	reg := newConversationRegistry(filepath.Join(t.TempDir(), "am"))

	first := reg.loggerFor("tab-gone")
	reg.remove("tab-gone")
	second := reg.loggerFor("tab-gone")

	if first == second {
		t.Error("expected remove to evict the logger so a later loggerFor call creates a fresh one")
	}
}

func TestConversationRegistryActiveConversationsOnlyIncludesInFlight(t *testing.T) {
	reg := newConversationRegistry(filepath.Join(t.TempDir(), "am"))

	idle := reg.loggerFor("tab-idle")
	_ = idle

	active := reg.loggerFor("tab-active")
	active.conversations["conv-1"] = &LLMConversation{ConversationID: "conv-1", TabID: "tab-active"}
	active.activeConvID = "conv-1"

	result := reg.activeConversations()
	if len(result) != 1 {
		t.Fatalf("expected exactly 1 active conversation, got %d", len(result))
	}
	if _, ok := result["conv-1"]; !ok {
		t.Error("expected conv-1 to be reported as active")
	}
}

func TestConversationRegistryIsSafeForConcurrentAccess(t *testing.T) {
	reg := newConversationRegistry(filepath.Join(t.TempDir(), "am"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.loggerFor("tab-shared")
		}()
	}
	wg.Wait()

	if len(reg.loggers) != 1 {
		t.Errorf("expected concurrent loggerFor calls for the same tab to settle on 1 logger, got %d", len(reg.loggers))
	}
}
