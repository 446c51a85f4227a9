// Package parsers turns loosely formatted model output into the narrow
// shapes the agents consume. Parsing is defensive: malformed output degrades
// to an empty value rather than an error wherever the caller can recover.
package parsers

import (
	"encoding/json"
	"fmt"
	"strings"

	logx "github.com/waffles-copilot/server/pkg/logger"
)

// NASentinel is returned by routing models when nothing matches.
const NASentinel = "NA"

// basic safety limit to avoid pathological model output
const maxContentLen = 128 * 1024 // 128KB

// ParseBool interprets a yes/no completion. Anything containing "yes"
// (case-insensitive) is true; everything else, including junk, is false.
func ParseBool(content string) bool {
	return strings.Contains(strings.ToLower(content), "yes")
}

// ParseQuestionList parses a completion expected to be a JSON array of
// question strings. On any failure it returns an empty list.
func ParseQuestionList(content string) []string {
	raw := extractJSON(content, '[', ']')
	if raw == "" {
		logx.Warn().Str("component", "parsers").Msg("no JSON array found in question list output")
		return []string{}
	}

	var questions []string
	if err := json.Unmarshal([]byte(raw), &questions); err != nil {
		// tolerate arrays of non-string values
		var items []any
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			logx.Warn().Err(err).Str("component", "parsers").Msg("question list output is not a JSON array")
			return []string{}
		}
		questions = make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				questions = append(questions, s)
			}
		}
	}
	return questions
}

// ParseChoices parses a routing completion shaped like
// {"choice": [...names...]} or {"name": [...]}. The second return is false
// when the model answered with the NA sentinel or nothing usable.
func ParseChoices(content string) ([]string, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || len(trimmed) > maxContentLen {
		return nil, false
	}
	if strings.EqualFold(trimmed, NASentinel) {
		return nil, false
	}

	raw := extractJSON(content, '{', '}')
	if raw == "" {
		return nil, false
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		logx.Warn().Err(err).Str("component", "parsers").Msg("routing output is not a JSON object")
		return nil, false
	}

	for _, key := range []string{"choice", "name"} {
		val, ok := payload[key]
		if !ok {
			continue
		}
		switch v := val.(type) {
		case string:
			if strings.EqualFold(strings.TrimSpace(v), NASentinel) || strings.TrimSpace(v) == "" {
				return nil, false
			}
			return []string{strings.TrimSpace(v)}, true
		case []any:
			names := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					names = append(names, strings.TrimSpace(s))
				}
			}
			if len(names) == 0 {
				return nil, false
			}
			return names, true
		}
	}
	return nil, false
}

// ParseStringMap parses an extraction completion into a flat string map.
// Non-string values are stringified; nested values are dropped.
func ParseStringMap(content string) (map[string]string, error) {
	raw := extractJSON(content, '{', '}')
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in extraction output")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal extraction output: %w", err)
	}

	result := make(map[string]string, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case string:
			result[k] = val
		case float64, bool:
			result[k] = fmt.Sprint(val)
		case nil:
			result[k] = ""
		default:
			logx.Warn().Str("component", "parsers").Str("key", k).Msg("dropping non-scalar extraction value")
		}
	}
	return result, nil
}

// ActionItemDraft is one extracted action item before an ID is assigned.
type ActionItemDraft struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

// ParseActionItems parses a completion expected to be a JSON array of
// {summary, description} objects.
func ParseActionItems(content string) ([]ActionItemDraft, error) {
	raw := extractJSON(content, '[', ']')
	if raw == "" {
		return nil, fmt.Errorf("no JSON array in action item output")
	}
	var items []ActionItemDraft
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("unmarshal action items: %w", err)
	}
	drafts := items[:0]
	for _, item := range items {
		if strings.TrimSpace(item.Summary) == "" {
			continue
		}
		drafts = append(drafts, item)
	}
	return drafts, nil
}

// extractJSON strips markdown fences and returns the outermost open..close
// span, or "" when none exists.
func extractJSON(content string, open, close byte) string {
	content = strings.TrimSpace(content)
	if len(content) > maxContentLen {
		content = content[:maxContentLen]
	}
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx >= 0 {
			content = content[:idx]
		}
	}

	start := strings.IndexByte(content, open)
	end := strings.LastIndexByte(content, close)
	if start < 0 || end < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}
