// Package llm provides LLM command detection and conversation tracking for AI CLI tools.
package llm

import (
	"regexp"
	"strings"
)

// Provider represents an LLM CLI provider.
type Provider string

const (
	ProviderGitHubCopilot Provider = "github-copilot"
	ProviderClaude        Provider = "claude"
	ProviderAider         Provider = "aider"
	ProviderUnknown       Provider = "unknown"
)

// CommandType represents the type of LLM command.
type CommandType string

const (
	CommandChat    CommandType = "chat"
	CommandSuggest CommandType = "suggest"
	CommandExplain CommandType = "explain"
	CommandCode    CommandType = "code"
	CommandUnknown CommandType = "unknown"
)

// DetectedCommand represents a detected LLM command.
type DetectedCommand struct {
	Provider Provider
	Type     CommandType
	Prompt   string
	RawInput string
	Detected bool
}

var (
	// Interactive TUI launches: user types just the bare command name.
	copilotPattern = regexp.MustCompile(`^copilot\s*$`)
	claudePattern  = regexp.MustCompile(`^claude\s*$`)
	aiderPattern   = regexp.MustCompile(`^aider\s*$`)

	// One-shot forms that carry an inline prompt.
	ghCopilotSuggestPattern = regexp.MustCompile(`^gh\s+copilot\s+suggest\s+(.+)$`)
	ghCopilotExplainPattern = regexp.MustCompile(`^gh\s+copilot\s+explain\s+(.+)$`)
	ghCopilotLegacyPattern  = regexp.MustCompile(`^gh\s+copilot\s+(.+)$`)
	claudeOneShotPattern    = regexp.MustCompile(`^claude\s+(.+)$`)
	aiderOneShotPattern     = regexp.MustCompile(`^aider\s+(.+)$`)
)

// unquote strips one layer of matched surrounding single or double quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// DetectCommand analyzes a trimmed shell input line to determine whether it
// launches or drives one of the supported LLM CLIs.
func DetectCommand(input string) *DetectedCommand {
	trimmed := strings.TrimSpace(input)

	if trimmed == "" {
		return &DetectedCommand{Provider: ProviderUnknown, Type: CommandUnknown, RawInput: input, Detected: false}
	}

	if copilotPattern.MatchString(trimmed) {
		return &DetectedCommand{
			Provider: ProviderGitHubCopilot,
			Type:     CommandChat,
			RawInput: input,
			Detected: true,
		}
	}

	if claudePattern.MatchString(trimmed) {
		return &DetectedCommand{
			Provider: ProviderClaude,
			Type:     CommandChat,
			RawInput: input,
			Detected: true,
		}
	}

	if aiderPattern.MatchString(trimmed) {
		return &DetectedCommand{
			Provider: ProviderAider,
			Type:     CommandChat,
			RawInput: input,
			Detected: true,
		}
	}

	if m := ghCopilotSuggestPattern.FindStringSubmatch(trimmed); m != nil {
		return &DetectedCommand{
			Provider: ProviderGitHubCopilot,
			Type:     CommandSuggest,
			Prompt:   unquote(strings.TrimSpace(m[1])),
			RawInput: input,
			Detected: true,
		}
	}

	if m := ghCopilotExplainPattern.FindStringSubmatch(trimmed); m != nil {
		return &DetectedCommand{
			Provider: ProviderGitHubCopilot,
			Type:     CommandExplain,
			Prompt:   unquote(strings.TrimSpace(m[1])),
			RawInput: input,
			Detected: true,
		}
	}

	if m := ghCopilotLegacyPattern.FindStringSubmatch(trimmed); m != nil {
		return &DetectedCommand{
			Provider: ProviderGitHubCopilot,
			Type:     CommandSuggest,
			Prompt:   unquote(strings.TrimSpace(m[1])),
			RawInput: input,
			Detected: true,
		}
	}

	if m := claudeOneShotPattern.FindStringSubmatch(trimmed); m != nil {
		return &DetectedCommand{
			Provider: ProviderClaude,
			Type:     CommandChat,
			Prompt:   unquote(strings.TrimSpace(m[1])),
			RawInput: input,
			Detected: true,
		}
	}

	if m := aiderOneShotPattern.FindStringSubmatch(trimmed); m != nil {
		return &DetectedCommand{
			Provider: ProviderAider,
			Type:     CommandCode,
			Prompt:   unquote(strings.TrimSpace(m[1])),
			RawInput: input,
			Detected: true,
		}
	}

	return &DetectedCommand{
		Provider: ProviderUnknown,
		Type:     CommandUnknown,
		RawInput: input,
		Detected: false,
	}
}

// IsLLMCommand is a convenience check for whether input is an LLM command.
func IsLLMCommand(input string) bool {
	return DetectCommand(input).Detected
}

// Detector wraps DetectCommand as a method so callers that hold state (the
// process monitor) can be built against an interface-shaped value instead of
// a bare package function.
type Detector struct{}

// NewDetector returns a stateless Detector. The classifier itself has no
// fields; the wrapper exists purely so callers can depend on a type.
func NewDetector() *Detector {
	return &Detector{}
}

// DetectCommand classifies a command line the same way the package function does.
func (d *Detector) DetectCommand(input string) *DetectedCommand {
	return DetectCommand(input)
}
