package terminal

import (
	"regexp"
	"strings"
)

// promptPatterns match known shell prompt shapes, each with exactly one
// capture group holding the directory portion of the prompt.
var promptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`PS ([A-Za-z]:\\[^>]*)>\s*$`),               // PowerShell: PS X:\...>
	regexp.MustCompile(`^([A-Za-z]:\\[^>]*)>\s*$`),                 // CMD: X:\...>
	regexp.MustCompile(`[\w.-]+@[\w.-]+:([^\s$#]+)[$#]\s*$`),       // bash: user@host:path$|#
	regexp.MustCompile(`(~(?:/[^\s$]*)?)\$\s*$`),                   // short form: ~/path$
}

// ExtractCWD scans the last handful of non-empty lines of recent output for
// a recognized prompt shape and returns the directory it names, or "" if
// none matched.
func ExtractCWD(recentOutput string) string {
	lines := strings.Split(recentOutput, "\n")

	nonEmpty := make([]string, 0, len(lines))
	for _, l := range lines {
		trimmed := strings.TrimRight(l, "\r")
		if strings.TrimSpace(trimmed) != "" {
			nonEmpty = append(nonEmpty, trimmed)
		}
	}

	limit := 5
	start := 0
	if len(nonEmpty) > limit {
		start = len(nonEmpty) - limit
	}

	for i := len(nonEmpty) - 1; i >= start; i-- {
		line := nonEmpty[i]
		for _, re := range promptPatterns {
			if m := re.FindStringSubmatch(line); m != nil {
				return m[1]
			}
		}
	}
	return ""
}

// CDCommand builds the shell-appropriate command to restore a working
// directory after reconnect.
func CDCommand(shell, dir string) string {
	if dir == "" {
		return ""
	}
	switch shell {
	case "cmd":
		return `cd /d "` + dir + `"` + "\r"
	case "powershell":
		return `cd "` + dir + `"` + "\r"
	default:
		return "cd " + escapeBashPath(dir) + "\r"
	}
}

// escapeBashPath leaves a tilde-prefixed path unquoted (so the shell expands
// it) but escapes embedded spaces.
func escapeBashPath(dir string) string {
	return strings.ReplaceAll(dir, " ", "\\ ")
}
