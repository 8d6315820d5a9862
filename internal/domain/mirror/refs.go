package mirror

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseRepositoryRef splits "owner/name".
func ParseRepositoryRef(ref string) (string, string, error) {
	parts := strings.Split(strings.TrimSpace(ref), "/")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", Validationf("invalid repository format, expected 'owner/name', got %q", ref)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

func FormatRepositoryRef(owner string, name string) string {
	return owner + "/" + name
}

// FormatIssueRef renders "owner/name#number".
func FormatIssueRef(owner string, name string, number int) string {
	return fmt.Sprintf("%s/%s#%d", owner, name, number)
}

// ParseIssueNumber validates a user-supplied issue number.
func ParseIssueNumber(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return 0, Validationf("issue number must be a positive integer, got %q", raw)
	}
	return value, nil
}

// ParseCommentID validates a user-supplied comment id.
func ParseCommentID(raw string) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || value <= 0 {
		return 0, Validationf("comment id must be a positive integer, got %q", raw)
	}
	return value, nil
}
