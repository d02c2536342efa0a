package llm

import "testing"

func TestDetectCommand(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
		provider Provider
		cmdType  CommandType
		prompt   string
	}{
		{"copilot", true, ProviderGitHubCopilot, CommandChat, ""},
		{"claude", true, ProviderClaude, CommandChat, ""},
		{"aider", true, ProviderAider, CommandChat, ""},
		{"copilot --help", false, ProviderUnknown, CommandUnknown, ""},
		{"gh copilot", false, ProviderUnknown, CommandUnknown, ""},
		{"ls -la", false, ProviderUnknown, CommandUnknown, ""},
		{"cd /home", false, ProviderUnknown, CommandUnknown, ""},
		{"  copilot  ", true, ProviderGitHubCopilot, CommandChat, ""},
		{"  claude  ", true, ProviderClaude, CommandChat, ""},
		{`gh copilot suggest "list all files"`, true, ProviderGitHubCopilot, CommandSuggest, "list all files"},
		{"gh copilot explain 'what does grep do'", true, ProviderGitHubCopilot, CommandExplain, "what does grep do"},
		{"gh copilot find the biggest file", true, ProviderGitHubCopilot, CommandSuggest, "find the biggest file"},
		{"claude summarize this repo", true, ProviderClaude, CommandChat, "summarize this repo"},
		{"aider fix the failing test", true, ProviderAider, CommandCode, "fix the failing test"},
		{"", false, ProviderUnknown, CommandUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := DetectCommand(tt.input)
			if result.Detected != tt.expected {
				t.Errorf("DetectCommand(%q).Detected = %v, want %v",
					tt.input, result.Detected, tt.expected)
			}
			if result.Detected && result.Provider != tt.provider {
				t.Errorf("DetectCommand(%q).Provider = %v, want %v",
					tt.input, result.Provider, tt.provider)
			}
			if result.Detected && result.Type != tt.cmdType {
				t.Errorf("DetectCommand(%q).Type = %v, want %v",
					tt.input, result.Type, tt.cmdType)
			}
			if result.Detected && result.Prompt != tt.prompt {
				t.Errorf("DetectCommand(%q).Prompt = %q, want %q",
					tt.input, result.Prompt, tt.prompt)
			}
		})
	}
}

func TestDetectorMethodMatchesPackageFunction(t *testing.T) {
	d := NewDetector()
	for _, input := range []string{"claude", "gh copilot suggest hello", "ls -la"} {
		want := DetectCommand(input)
		got := d.DetectCommand(input)
		if got.Detected != want.Detected || got.Provider != want.Provider {
			t.Errorf("Detector.DetectCommand(%q) = %+v, want %+v", input, got, want)
		}
	}
}

func TestIsLLMCommand(t *testing.T) {
	if !IsLLMCommand("claude") {
		t.Error("expected claude to be detected as an LLM command")
	}
	if IsLLMCommand("git status") {
		t.Error("did not expect git status to be detected as an LLM command")
	}
}
