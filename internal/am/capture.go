package am

import (
	"regexp"
	"strings"
)

// captureANSIPattern matches CSI/OSC/charset/keypad/cursor-save/line-op
// escape sequences plus OSC hyperlinks and scroll-region commands. It is
// deliberately broader than health_monitor.go's ansiArtifacts detector,
// which only needs to flag corruption rather than strip it.
var captureANSIPattern = regexp.MustCompile(
	"\x1b\\]8;;[^\x07\x1b]*(?:\x07|\x1b\\\\)" + // OSC 8 hyperlinks
		"|\x1b\\][^\x07\x1b]*(?:\x07|\x1b\\\\)" + // other OSC sequences
		"|\x1b\\[[0-9;?]*[a-zA-Z]" + // CSI sequences (cursor, color, scroll region, etc.)
		"|\x1b[()][AB012]" + // charset selection
		"|\x1b[=>]" + // keypad mode
		"|\x1b[78]" + // cursor save/restore
		"|\x1b[MDEHc]", // line/index ops, reset
)

var clearScreenPattern = regexp.MustCompile(`\x1b\[[0-9;]*2J`)

// stripControlBytes keeps tab, carriage return, and newline; every other
// byte below 0x20 (and 0x7f) is stripped.
func stripControlBytes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\t' || r == '\r' || r == '\n' {
			b.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CleanUserInput strips escape sequences and control bytes from raw
// keystroke/input bytes, leaving plain text suitable for a conversation turn.
func CleanUserInput(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := captureANSIPattern.ReplaceAllString(raw, "")
	cleaned = stripControlBytes(cleaned)
	cleaned = strings.ReplaceAll(cleaned, "\r\n", "\n")
	cleaned = strings.TrimRight(cleaned, "\r\n")
	return cleaned
}

// providerFooters lists known trailing-line noise per provider. A match as
// the last non-empty line signals the captured output was likely truncated
// mid-response.
var providerFooters = map[string][]*regexp.Regexp{
	"github-copilot": {
		regexp.MustCompile(`^Ctrl\+c Exit$`),
		regexp.MustCompile(`^Remaining requests: \d+%?$`),
	},
	"claude": {
		regexp.MustCompile(`^Remaining requests: \d+%?$`),
		regexp.MustCompile(`^\?\s*for shortcuts$`),
	},
	"aider": {
		regexp.MustCompile(`^Tokens: .*$`),
		regexp.MustCompile(`^Remaining requests: \d+%?$`),
	},
}

var genericFooters = []*regexp.Regexp{
	regexp.MustCompile(`^Ctrl\+c Exit$`),
	regexp.MustCompile(`^Remaining requests: \d+%?$`),
}

func footersFor(provider string) []*regexp.Regexp {
	if fs, ok := providerFooters[provider]; ok {
		return fs
	}
	return genericFooters
}

// collapseSpinnerLines removes consecutive duplicate lines, which is how
// spinner/progress animation frames appear once the underlying bytes are
// rendered as lines.
func collapseSpinnerLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if i > 0 && line == lines[i-1] {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func isFooterLine(line, provider string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	for _, re := range footersFor(provider) {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}

// ParseAssistantOutput cleans raw assistant-output bytes and returns the
// cleaned text along with a confidence score in [0, 1] reflecting how
// likely the text is a faithful capture rather than a corrupted or
// truncated fragment.
func ParseAssistantOutput(raw string, provider string) (string, float64) {
	if raw == "" {
		return "", 0
	}

	confidence := 1.0

	totalLen := len(raw)
	var ansiByteCount int
	for _, m := range captureANSIPattern.FindAllString(raw, -1) {
		ansiByteCount += len(m)
	}

	hadClearScreen := clearScreenPattern.MatchString(raw)

	cleaned := captureANSIPattern.ReplaceAllString(raw, "")
	cleaned = stripControlBytes(cleaned)
	cleaned = collapseSpinnerLines(cleaned)

	if hadClearScreen {
		if idx := strings.LastIndex(raw, "\x1b[2J"); idx >= 0 {
			tail := captureANSIPattern.ReplaceAllString(raw[idx:], "")
			tail = stripControlBytes(tail)
			cleaned = collapseSpinnerLines(tail)
		}
	}

	footerLast := isFooterLine(lastNonEmptyLine(cleaned), provider)
	if footerLast {
		lines := strings.Split(cleaned, "\n")
		for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
			lines = lines[:len(lines)-1]
		}
		if len(lines) > 0 && isFooterLine(lines[len(lines)-1], provider) {
			lines = lines[:len(lines)-1]
		}
		cleaned = strings.Join(lines, "\n")
	}

	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return "", 0
	}

	if hadClearScreen {
		confidence *= 0.6
	}
	if totalLen > 0 && float64(ansiByteCount)/float64(totalLen) > 0.3 {
		confidence *= 0.8
	}
	if len(cleaned) < 20 {
		confidence *= 0.7
	}
	if footerLast {
		confidence *= 0.9
	}

	if confidence < 0 {
		confidence = 0
	}

	return cleaned, confidence
}
