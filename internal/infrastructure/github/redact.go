package github

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
)

const secretMask = "********"

// maxLoggedBody caps how much of a body ends up in one log record.
const maxLoggedBody = 16 << 10

var secretKeys = map[string]struct{}{
	"token":         {},
	"password":      {},
	"secret":        {},
	"authorization": {},
	"key":           {},
}

func isSecretKey(name string) bool {
	_, ok := secretKeys[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// redactHeaders flattens h and masks secret-named headers.
func redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if isSecretKey(name) {
			out[name] = secretMask
			continue
		}
		out[name] = strings.Join(h.Values(name), ", ")
	}
	return out
}

// redactBody masks secret-named keys at any depth of a JSON document. Non-JSON bodies
// are returned as truncated text.
func redactBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return truncate(string(body))
	}
	return redactValue(doc)
}

func redactValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for key, inner := range v {
			if isSecretKey(key) {
				v[key] = secretMask
				continue
			}
			v[key] = redactValue(inner)
		}
		return v
	case []any:
		for i, inner := range v {
			v[i] = redactValue(inner)
		}
		return v
	default:
		return v
	}
}

func truncate(s string) string {
	if len(s) <= maxLoggedBody {
		return s
	}
	return s[:maxLoggedBody] + "...(truncated)"
}
