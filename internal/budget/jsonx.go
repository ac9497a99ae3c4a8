package budget

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Language models wrap JSON in prose, tags or markdown fences. The helpers
// here recover the payload with a cascade of strategies instead of failing
// on the first malformed response.

var (
	jsonTagRe    = regexp.MustCompile(`(?s)<json>(.*?)</json>`)
	reasoningRe  = regexp.MustCompile(`(?s)<reasoning>(.*?)</reasoning>`)
	fenceRe      = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	flatObjectRe = regexp.MustCompile(`(?s)\{[^{}]*\}`)
)

// ReasoningBlock returns the model's reasoning section, if present.
func ReasoningBlock(s string) string {
	if m := reasoningRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// RecoverObject extracts a flat JSON object from a model response and
// unmarshals it into v. Strategies, in order: first brace-delimited object,
// then the response with markdown fences stripped.
func RecoverObject(s string, v any) bool {
	if m := flatObjectRe.FindString(s); m != "" {
		if json.Unmarshal([]byte(m), v) == nil {
			return true
		}
	}

	clean := stripFences(s)
	return json.Unmarshal([]byte(clean), v) == nil
}

// RecoverStructure extracts a nested JSON object from a model response and
// unmarshals it into v. Strategies, in order: <json> tags, markdown fence,
// then brace balancing from the first opening brace.
func RecoverStructure(s string, v any) bool {
	if m := jsonTagRe.FindStringSubmatch(s); m != nil {
		if json.Unmarshal([]byte(strings.TrimSpace(m[1])), v) == nil {
			return true
		}
	}

	if m := fenceRe.FindStringSubmatch(s); m != nil {
		if json.Unmarshal([]byte(strings.TrimSpace(m[1])), v) == nil {
			return true
		}
	}

	if m := balancedObject(s); m != "" {
		if json.Unmarshal([]byte(m), v) == nil {
			return true
		}
	}

	return false
}

// balancedObject returns the first brace-balanced object in s, tracking
// nesting depth so nested objects do not truncate the match.
func balancedObject(s string) string {
	start := -1
	depth := 0
	for i, c := range s {
		switch c {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				candidate := s[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate
				}
				start = -1
			}
		}
	}
	return ""
}

// stripFences removes markdown code fence lines from a response.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
