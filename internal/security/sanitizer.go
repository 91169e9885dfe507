package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wfkit/wf/internal/errors"
)

const (
	maxCommandLength = 2000
	maxVariableName  = 64
	maxVariableValue = 1024
	maxPathLength    = 256
)

var (
	whitespaceRun   = regexp.MustCompile(`\s+`)
	variableNamePat = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	sensitivePrefixes = []string{
		"/etc/", "/var/", "/sys/", "/proc/", "/dev/", "/boot/", "/root/",
	}
)

// SanitizeCommand cleans command text before it is stored: NUL bytes are
// removed, shell metacharacters with suspicious local usage are
// backslash-escaped, and whitespace runs collapse to one space. The
// function is idempotent: sanitizing its own output changes nothing.
func SanitizeCommand(command string) (string, error) {
	sanitized := strings.ReplaceAll(command, "\x00", "")
	sanitized = escapeSuspiciousMetachars(sanitized)
	sanitized = strings.TrimSpace(whitespaceRun.ReplaceAllString(sanitized, " "))

	if len(sanitized) > maxCommandLength {
		return "", errors.New(errors.ErrSecurity,
			"Command too long after sanitization",
			fmt.Sprintf("Keep commands under %d characters", maxCommandLength))
	}
	return sanitized, nil
}

// escapeSuspiciousMetachars backslash-escapes shell metacharacters outside
// quotes when a one-character lookahead judges the usage suspicious.
// Already-escaped characters are left alone, which is what makes
// SanitizeCommand idempotent.
func escapeSuspiciousMetachars(command string) string {
	var b strings.Builder
	b.Grow(len(command))

	runes := []rune(command)
	inSingle, inDouble, escaped := false, false, false

	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if escaped {
			escaped = false
			b.WriteRune(ch)
			continue
		}
		var next rune
		hasNext := i+1 < len(runes)
		if hasNext {
			next = runes[i+1]
		}

		switch {
		case ch == '\\':
			escaped = true
			b.WriteRune(ch)
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
			b.WriteRune(ch)
		case ch == '"' && !inSingle:
			inDouble = !inDouble
			b.WriteRune(ch)
		case !inSingle && !inDouble && strings.ContainsRune(";|&$`()<>", ch):
			if ch == '&' && hasNext && next == '&' {
				b.WriteString("&&")
				i++
				continue
			}
			if suspiciousMetachar(ch, next, hasNext) {
				b.WriteRune('\\')
			}
			b.WriteRune(ch)
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// suspiciousMetachar judges one metacharacter by its immediate successor:
// doubled semicolons, a pipe into something command-shaped, a single
// backgrounding ampersand, command substitution, and any backtick.
func suspiciousMetachar(ch, next rune, hasNext bool) bool {
	switch ch {
	case ';':
		return hasNext && next == ';'
	case '|':
		return hasNext && (next == ' ' || isAlpha(next))
	case '&':
		return !hasNext || next != '&'
	case '$':
		return hasNext && next == '('
	case '`':
		return true
	}
	// Redirections are left for the checker to judge.
	return false
}

func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// SanitizeVariableName validates a variable name: letters, digits, and
// underscores only, not starting with a digit, at most 64 characters.
func SanitizeVariableName(name string) (string, error) {
	if !variableNamePat.MatchString(name) {
		return "", errors.New(errors.ErrSecurity,
			fmt.Sprintf("Invalid variable name: %s", name),
			"Variable names must start with a letter or underscore and contain only letters, digits, and underscores")
	}
	if len(name) > maxVariableName {
		return "", errors.New(errors.ErrSecurity,
			"Variable name too long",
			fmt.Sprintf("Keep variable names under %d characters", maxVariableName))
	}
	return name, nil
}

// SanitizeVariableValue cleans a variable value: NUL bytes removed,
// newlines escaped so a value cannot smuggle extra commands into resolved
// text, at most 1024 characters.
func SanitizeVariableValue(value string) (string, error) {
	sanitized := strings.ReplaceAll(value, "\x00", "")
	sanitized = strings.ReplaceAll(sanitized, "\n", "\\n")
	sanitized = strings.ReplaceAll(sanitized, "\r", "\\r")

	if len(sanitized) > maxVariableValue {
		return "", errors.New(errors.ErrSecurity,
			"Variable value too long",
			fmt.Sprintf("Keep variable values under %d characters", maxVariableValue))
	}
	return sanitized, nil
}

// SanitizePath validates a user-supplied file path: no traversal
// sequences, no sensitive system prefixes, doubled separators collapsed,
// at most 256 characters.
func SanitizePath(path string) (string, error) {
	sanitized := strings.ReplaceAll(path, "\x00", "")

	if strings.Contains(sanitized, "..") {
		return "", errors.New(errors.ErrSecurity,
			"Path contains directory traversal sequences",
			"Use a path without '..' segments")
	}
	for _, prefix := range sensitivePrefixes {
		if strings.HasPrefix(sanitized, prefix) {
			return "", errors.New(errors.ErrSecurity,
				fmt.Sprintf("Access to sensitive directory not allowed: %s", prefix),
				"Choose a location outside system directories")
		}
	}
	sanitized = strings.ReplaceAll(sanitized, "//", "/")

	if len(sanitized) > maxPathLength {
		return "", errors.New(errors.ErrSecurity,
			"File path too long",
			fmt.Sprintf("Keep paths under %d characters", maxPathLength))
	}
	return sanitized, nil
}
