package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// NormalizationError means model output could not be coerced to JSON.
// Raw carries the offending content for logging; it is never parsed again.
type NormalizationError struct {
	Reason string
	Raw    string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize: %s", e.Reason)
}

var reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)

// Normalize strips markdown fencing and stray prose from a model completion
// and coerces it into a JSON array of mapping-typed records.
//
// Ordered attempts, first success wins:
//  1. fenced "```json" block  -> slice between first bracket and last bracket
//  2. generic "```" fence     -> drop first and last line
//  3. otherwise               -> slice between earliest opening and latest
//     closing bracket
//
// Trailing commas before a closing brace/bracket are removed, a bare object
// is wrapped into a one-element array, and a single parsed object becomes a
// one-element array. An empty array is "no data", not an error.
func Normalize(raw string) ([]map[string]any, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return nil, &NormalizationError{Reason: "empty content", Raw: raw}
	}

	switch {
	case strings.HasPrefix(content, "```json"):
		content = sliceBrackets(content)
	case strings.HasPrefix(content, "```") && strings.HasSuffix(content, "```"):
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	default:
		// leading emoji / prose before the JSON body
		content = sliceBrackets(content)
	}

	content = strings.TrimSpace(content)
	content = reTrailingComma.ReplaceAllString(content, "$1")

	var parsed any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		// a bare object followed by junk sometimes parses once wrapped
		if strings.HasPrefix(content, "{") && !strings.HasPrefix(content, "[") {
			if err2 := json.Unmarshal([]byte("["+content+"]"), &parsed); err2 != nil {
				return nil, &NormalizationError{Reason: err.Error(), Raw: raw}
			}
		} else {
			return nil, &NormalizationError{Reason: err.Error(), Raw: raw}
		}
	}

	switch v := parsed.(type) {
	case []any:
		records := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				records = append(records, m)
			}
		}
		return records, nil
	case map[string]any:
		return []map[string]any{v}, nil
	default:
		return nil, &NormalizationError{Reason: fmt.Sprintf("unexpected JSON kind %T", parsed), Raw: raw}
	}
}

// sliceBrackets cuts the substring between the earliest opening bracket and
// the latest closing bracket. Returns the input unchanged when no bracket
// pair is found; the subsequent parse reports the real problem.
func sliceBrackets(s string) string {
	start := -1
	for i, r := range s {
		if r == '[' || r == '{' {
			start = i
			break
		}
	}
	if start == -1 {
		return s
	}
	end := strings.LastIndexAny(s, "]}")
	if end <= start {
		return s
	}
	return s[start : end+1]
}
