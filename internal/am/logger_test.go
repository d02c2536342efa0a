package am

import (
	"strings"
	"testing"
	"time"
)

func TestSessionInfoCarriesWorkspaceContext(t *testing.T) {
	info := SessionInfo{
		TabID:           "tab-aider-1",
		TabName:         "Refactor",
		Workspace:       "/srv/repo",
		FilePath:        "/srv/repo/.forge/am/session.md",
		FileName:        "session-tab-aider-1.md",
		LastUpdated:     time.Now(),
		Content:         "body",
		LastCommand:     "go test ./...",
		Provider:        "claude",
		ActiveCount:     2,
		DurationMinutes: 42,
		SessionID:       "sess-deadbeef",
	}

	cases := map[string]struct {
		got, want interface{}
	}{
		"TabName":         {info.TabName, "Refactor"},
		"Workspace":       {info.Workspace, "/srv/repo"},
		"LastCommand":     {info.LastCommand, "go test ./..."},
		"Provider":        {info.Provider, "claude"},
		"ActiveCount":     {info.ActiveCount, 2},
		"DurationMinutes": {info.DurationMinutes, 42},
		"SessionID":       {info.SessionID, "sess-deadbeef"},
	}
	for field, c := range cases {
		if c.got != c.want {
			t.Errorf("%s: got %v, want %v", field, c.got, c.want)
		}
	}
}

func TestExtractLastCommandReturnsMostRecent(t *testing.T) {
	entries := []LogEntry{
		{Timestamp: time.Now().Add(-3 * time.Minute), Type: EntryUserInput, Content: "ls"},
		{Timestamp: time.Now().Add(-2 * time.Minute), Type: EntryCommandExecuted, Content: "go vet ./..."},
		{Timestamp: time.Now().Add(-1 * time.Minute), Type: EntryAgentOutput, Content: "no issues"},
	}

	if got := extractLastCommand(entries); got != "go vet ./..." {
		t.Errorf("expected last command 'go vet ./...', got %q", got)
	}
}

func TestExtractLastCommandNoEntries(t *testing.T) {
	if got := extractLastCommand(nil); got != "" {
		t.Errorf("expected empty string for nil entries, got %q", got)
	}
}

func TestExtractLastCommandNoneExecuted(t *testing.T) {
	entries := []LogEntry{{Timestamp: time.Now(), Type: EntryAgentOutput, Content: "just output"}}
	if got := extractLastCommand(entries); got != "" {
		t.Errorf("expected empty string when no COMMAND_EXECUTED entry exists, got %q", got)
	}
}

func TestCalculateSessionDurationRoundsToMinutes(t *testing.T) {
	start := time.Now().Add(-42 * time.Minute)
	end := time.Now()

	if d := calculateSessionDuration(start, end); d < 41 || d > 43 {
		t.Errorf("expected duration near 42 minutes, got %d", d)
	}
}

func TestCalculateSessionDurationSubMinuteFloorsToZero(t *testing.T) {
	start := time.Now()
	end := start.Add(20 * time.Second)

	if d := calculateSessionDuration(start, end); d != 0 {
		t.Errorf("expected sub-minute duration to floor to 0, got %d", d)
	}
}

func TestExtractConversationCountCountsStarts(t *testing.T) {
	entries := []LogEntry{
		{Type: "LLM_START", Content: `{"conversationId": "conv-a"}`},
		{Type: "LLM_START", Content: `{"conversationId": "conv-b"}`},
		{Type: "LLM_END", Content: `{"conversationId": "conv-a"}`},
	}

	if got := extractConversationCount(entries); got != 2 {
		t.Errorf("expected 2 started conversations, got %d", got)
	}
}

func TestExtractConversationCountNoStarts(t *testing.T) {
	entries := []LogEntry{{Type: EntryAgentOutput, Content: "nothing relevant"}}
	if got := extractConversationCount(entries); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestGenerateSessionIDIsStableAndDistinctPerTab(t *testing.T) {
	workspace := "/srv/repo"

	a1 := generateSessionID("tab-a", workspace)
	a2 := generateSessionID("tab-a", workspace)
	if a1 != a2 {
		t.Errorf("expected deterministic session id, got %q then %q", a1, a2)
	}

	b := generateSessionID("tab-b", workspace)
	if a1 == b {
		t.Error("expected different tabs to produce different session ids")
	}
	if a1 == "" {
		t.Error("session id should not be empty")
	}
}

func TestSessionInfoFromLogExtractsContext(t *testing.T) {
	log := &SessionLog{
		TabID:       "tab-7",
		TabName:     "Debug",
		Workspace:   "/srv/app",
		StartTime:   time.Now().Add(-20 * time.Minute),
		LastUpdated: time.Now(),
		Entries: []LogEntry{
			{Type: EntryUserInput, Content: "trying aider again"},
			{Type: EntryCommandExecuted, Content: "aider --yes"},
			{Type: "LLM_START", Content: "conv-1"},
		},
	}

	info, err := sessionInfoFromLog(log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.TabName != "Debug" {
		t.Errorf("TabName: got %q", info.TabName)
	}
	if info.Workspace != "/srv/app" {
		t.Errorf("Workspace: got %q", info.Workspace)
	}
	if info.LastCommand != "aider --yes" {
		t.Errorf("LastCommand: got %q", info.LastCommand)
	}
	if info.DurationMinutes < 19 || info.DurationMinutes > 21 {
		t.Errorf("DurationMinutes: got %d, want ~20", info.DurationMinutes)
	}
	if info.ActiveCount != 1 {
		t.Errorf("ActiveCount: got %d, want 1", info.ActiveCount)
	}
	if info.SessionID == "" {
		t.Error("expected a non-empty session id")
	}
}

func TestSessionInfoFromLogDetectsProviderMention(t *testing.T) {
	log := &SessionLog{
		TabID:       "tab-1",
		TabName:     "Main",
		Workspace:   "/srv/app",
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
		Entries: []LogEntry{
			{Type: EntryUserInput, Content: "let's try claude for this one"},
		},
	}

	info, err := sessionInfoFromLog(log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Provider != "claude" {
		t.Errorf("expected provider 'claude', got %q", info.Provider)
	}
}

func TestSessionInfoFromLogRejectsNil(t *testing.T) {
	if _, err := sessionInfoFromLog(nil); err == nil {
		t.Error("expected an error for a nil session log")
	}
}

func TestGroupSessionsByWorkspaceBucketsCorrectly(t *testing.T) {
	sessions := []SessionInfo{
		{TabID: "tab-1", Workspace: "/repo/one", LastUpdated: time.Now().Add(-10 * time.Minute), Provider: "copilot"},
		{TabID: "tab-2", Workspace: "/repo/one", LastUpdated: time.Now().Add(-5 * time.Minute), Provider: "aider"},
		{TabID: "tab-3", Workspace: "/repo/two", LastUpdated: time.Now(), Provider: "claude"},
	}

	groups := GroupSessionsByWorkspace(sessions)
	if len(groups) != 2 {
		t.Fatalf("expected 2 workspace groups, got %d", len(groups))
	}

	byWorkspace := make(map[string]SessionGroup, len(groups))
	for _, g := range groups {
		byWorkspace[g.Workspace] = g
	}

	if g, ok := byWorkspace["/repo/one"]; !ok || len(g.Sessions) != 2 {
		t.Errorf("expected /repo/one to have 2 sessions, got %+v", g)
	}
	if g, ok := byWorkspace["/repo/two"]; !ok || len(g.Sessions) != 1 {
		t.Errorf("expected /repo/two to have 1 session, got %+v", g)
	}
}

func TestGroupSessionsByWorkspacePicksMostRecentAsLatest(t *testing.T) {
	sessions := []SessionInfo{
		{TabID: "tab-old", Workspace: "/repo", LastUpdated: time.Now().Add(-30 * time.Minute)},
		{TabID: "tab-new", Workspace: "/repo", LastUpdated: time.Now()},
	}

	groups := GroupSessionsByWorkspace(sessions)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].Latest.TabID != "tab-new" {
		t.Errorf("expected latest session to be tab-new, got %s", groups[0].Latest.TabID)
	}
}

func TestParseSessionLogContentRoundTripsGeneratedMarkdown(t *testing.T) {
	logger, err := NewLogger("tab-rt", "Roundtrip", "/srv/roundtrip")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.session.Entries = append(logger.session.Entries,
		LogEntry{Timestamp: time.Now(), Type: EntryUserInput, Content: "go build ./..."},
		LogEntry{Timestamp: time.Now(), Type: EntryCommandExecuted, Content: "go build ./..."},
	)
	markdown := logger.generateMarkdown()

	parsed, err := parseSessionLogContent(markdown)
	if err != nil {
		t.Fatalf("parseSessionLogContent: %v", err)
	}
	if parsed.TabID != "tab-rt" {
		t.Errorf("TabID: got %q", parsed.TabID)
	}
	if parsed.TabName != "Roundtrip" {
		t.Errorf("TabName: got %q", parsed.TabName)
	}
	if parsed.Workspace != "/srv/roundtrip" {
		t.Errorf("Workspace: got %q", parsed.Workspace)
	}
	if len(parsed.Entries) < 2 {
		t.Errorf("expected at least 2 parsed entries, got %d", len(parsed.Entries))
	}
}

func TestParseSessionLogContentRejectsTooShortInput(t *testing.T) {
	if _, err := parseSessionLogContent("not a log"); err == nil {
		t.Error("expected an error for malformed/too-short content")
	}
}

func TestExtractWorkspaceNameSanitizesPath(t *testing.T) {
	if got := extractWorkspaceName("/home/dev/My Cool Project/", ""); got != "my-cool-project" {
		t.Errorf("expected sanitized name 'my-cool-project', got %q", got)
	}
}

func TestExtractWorkspaceNameFallsBackToTabName(t *testing.T) {
	if got := extractWorkspaceName("", "Ops Console"); got != "ops-console" {
		t.Errorf("expected fallback to tab name, got %q", got)
	}
}

func TestExtractWorkspaceNameDefaultsToUnknown(t *testing.T) {
	if got := extractWorkspaceName("", ""); got != "unknown" {
		t.Errorf("expected 'unknown' fallback, got %q", got)
	}
}

func TestExtractWorkspaceNameTruncatesLongNames(t *testing.T) {
	long := strings.Repeat("a", 60)
	got := extractWorkspaceName(long, "")
	if len(got) > 30 {
		t.Errorf("expected name truncated to 30 chars, got length %d", len(got))
	}
}

func TestLoggerEnableWritesSessionStartedEntry(t *testing.T) {
	logger, err := NewLogger("tab-enable", "Enable", "/srv/enable")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	if err := logger.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if !logger.IsEnabled() {
		t.Error("expected logger to report enabled after Enable")
	}
	if len(logger.session.Entries) != 1 || logger.session.Entries[0].Type != EntrySessionStarted {
		t.Errorf("expected a single SESSION_STARTED entry, got %+v", logger.session.Entries)
	}
}

func TestLoggerDisableIsIdempotentWhenNeverEnabled(t *testing.T) {
	logger, err := NewLogger("tab-idle", "Idle", "/srv/idle")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	if err := logger.Disable(); err != nil {
		t.Fatalf("Disable on a never-enabled logger should be a no-op, got error: %v", err)
	}
	if logger.IsEnabled() {
		t.Error("expected logger to remain disabled")
	}
}

func TestSessionRegistryReusesLoggerPerTab(t *testing.T) {
	reg := newSessionRegistry()

	first, err := reg.Get("tab-shared", "Shared", "/srv/shared")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := reg.Get("tab-shared", "Shared", "/srv/shared")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first != second {
		t.Error("expected the same tab id to resolve to the same Logger instance")
	}
}

func TestSessionRegistryRemoveForgetsLogger(t *testing.T) {
	reg := newSessionRegistry()

	first, err := reg.Get("tab-gone", "Gone", "/srv/gone")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	reg.Remove("tab-gone")

	second, err := reg.Get("tab-gone", "Gone", "/srv/gone")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first == second {
		t.Error("expected Remove to evict the logger so a later Get creates a fresh one")
	}
}
