package artifact

import (
	"regexp"
	"strings"
)

// CI workspace prefixes, stripped in order. Each pattern tolerates both
// slash styles and an optional Windows drive letter.
var ciPrefixes = []*regexp.Regexp{
	// GitHub hosted runner: /home/runner/work/<org>/<repo>/
	regexp.MustCompile(`(?i)^(?:[a-z]:)?[\\/]home[\\/]runner[\\/]work[\\/][^\\/]+[\\/][^\\/]+[\\/]`),
	// GitHub container action workspace: /github/workspace/
	regexp.MustCompile(`(?i)^(?:[a-z]:)?[\\/]github[\\/]workspace[\\/]`),
	// GitLab CI builds dir: /builds/<group>/<project>/
	regexp.MustCompile(`(?i)^(?:[a-z]:)?[\\/]builds[\\/][^\\/]+[\\/][^\\/]+[\\/]`),
}

// NormalizePath turns a tool-reported path into a repo-relative
// slash-separated path. Returns ok=false when the path cannot be made
// repo-relative (absolute with no known CI prefix).
func NormalizePath(p string) (string, bool) {
	if p == "" {
		return "", false
	}

	if !isRooted(p) {
		return strings.ReplaceAll(p, `\`, "/"), true
	}

	for _, re := range ciPrefixes {
		loc := re.FindStringIndex(p)
		if loc == nil {
			continue
		}
		rest := strings.ReplaceAll(p[loc[1]:], `\`, "/")
		if isRooted(rest) || rest == "" {
			return "", false
		}
		return rest, true
	}

	return "", false
}

// isRooted reports whether p is absolute or drive-letter-rooted.
func isRooted(p string) bool {
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) {
		return true
	}
	if len(p) >= 2 && p[1] == ':' {
		c := p[0]
		return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	}
	return false
}

// NormalizeSeverityNum maps a tool's numeric severity to a level.
func NormalizeSeverityNum(n int) string {
	switch {
	case n >= 2:
		return "error"
	case n == 1:
		return "warning"
	default:
		return "info"
	}
}

// NormalizeSeverity maps a tool's severity string to a level.
// Unknown values, including SARIF's note/info/none, map to info.
func NormalizeSeverity(s string) string {
	switch strings.ToLower(s) {
	case "error", "err", "e", "fatal":
		return "error"
	case "warning", "warn", "w":
		return "warning"
	default:
		return "info"
	}
}
