package llmextract

import (
	"encoding/json"
	"strings"
)

// ParseOutput turns raw model output into a single JSON object carrying a
// non-empty main_content string.
//
// A surrounding Markdown code fence is ignored. An array of objects is merged:
// main_content values are joined with blank lines and other keys keep their
// first value. Elements flagged with "error": true are skipped.
func ParseOutput(raw string) (map[string]any, error) {
	text := stripFences(raw)
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, &DecodeError{Raw: raw, Err: err}
	}
	var obj map[string]any
	switch t := v.(type) {
	case map[string]any:
		obj = t
	case []any:
		obj = mergeObjects(t)
	default:
		return nil, ErrNoMainContent
	}
	content, _ := obj[ContentKey].(string)
	if strings.TrimSpace(content) == "" {
		return nil, ErrNoMainContent
	}
	return obj, nil
}

func mergeObjects(items []any) map[string]any {
	merged := map[string]any{}
	var parts []string
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if failed, _ := m["error"].(bool); failed {
			continue
		}
		for k, val := range m {
			if k == ContentKey {
				continue
			}
			if _, exists := merged[k]; !exists {
				merged[k] = val
			}
		}
		if s, ok := m[ContentKey].(string); ok && strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	if len(parts) > 0 {
		merged[ContentKey] = strings.Join(parts, "\n\n")
	}
	return merged
}

// stripFences removes a leading ```/```json line and a trailing ``` line.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
