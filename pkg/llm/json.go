package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// thinkTagPattern matches <think>...</think> tags that some models emit at
// the start of a response.
var thinkTagPattern = regexp.MustCompile(`(?s)^[\s]*<think>.*?</think>[\s]*`)

// fencedBlockPattern matches markdown code fences, with or without a
// language tag.
var fencedBlockPattern = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

// Extraction is the result of recovering a structured payload from raw model
// output. When Parsed is false, Content holds the cleaned raw text so the
// caller can decide what to do with it.
type Extraction struct {
	Content string
	Parsed  bool
}

// Extract recovers the JSON object embedded in a model response. Responses
// arrive in every shape models produce: bare objects, objects wrapped in
// prose or code fences, objects with // and /* */ comments inside them, or
// several objects concatenated. Strategies run from strict to permissive and
// the first syntactically valid object wins, so a well-formed full document
// is never passed over in favor of a smaller fragment later in the text.
func Extract(raw string) Extraction {
	cleaned := thinkTagPattern.ReplaceAllString(raw, "")
	cleaned = stripComments(cleaned)

	// Fenced code block.
	for _, match := range fencedBlockPattern.FindAllStringSubmatch(cleaned, -1) {
		if candidate, ok := validObject(match[1]); ok {
			return Extraction{Content: candidate, Parsed: true}
		}
	}

	// Greedy span, first { to last }.
	first := strings.IndexByte(cleaned, '{')
	last := strings.LastIndexByte(cleaned, '}')
	if first >= 0 && last > first {
		if candidate, ok := validObject(cleaned[first : last+1]); ok {
			return Extraction{Content: candidate, Parsed: true}
		}
	}

	// First balanced object. Handles trailing or concatenated objects where
	// the greedy span spans more than one.
	if span, ok := extractBalancedObject(cleaned); ok {
		if candidate, ok := validObject(span); ok {
			return Extraction{Content: candidate, Parsed: true}
		}
	}

	// The whole text.
	if candidate, ok := validObject(cleaned); ok {
		return Extraction{Content: candidate, Parsed: true}
	}

	// Line-by-line: from each line opening a brace, extend the window a line
	// at a time until something parses.
	lines := strings.Split(cleaned, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "{") {
			continue
		}
		for j := i; j < len(lines); j++ {
			if candidate, ok := validObject(strings.Join(lines[i:j+1], "\n")); ok {
				return Extraction{Content: candidate, Parsed: true}
			}
		}
	}

	return Extraction{Content: strings.TrimSpace(cleaned), Parsed: false}
}

// validObject reports whether s trims to a syntactically valid JSON object.
func validObject(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") {
		return "", false
	}
	if !json.Valid([]byte(trimmed)) {
		return "", false
	}
	return trimmed, true
}

// stripComments removes // line comments and /* */ block comments outside of
// string literals. Comment markers inside strings (URLs in particular) are
// left alone.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			b.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			i++
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// extractBalancedObject finds the first balanced top-level object by walking
// brace depth. Braces inside string literals do not count.
func extractBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}

		if c == '\\' && inString {
			escaped = true
			continue
		}

		if c == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		if c == '{' {
			depth++
		} else if c == '}' {
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// ParseResponse extracts the JSON object from a model response and
// unmarshals it into the target type.
func ParseResponse[T any](response string) (T, error) {
	var result T

	extraction := Extract(response)
	if !extraction.Parsed {
		return result, fmt.Errorf("no valid JSON object found in response")
	}

	if err := json.Unmarshal([]byte(extraction.Content), &result); err != nil {
		return result, fmt.Errorf("unmarshal extracted JSON: %w", err)
	}

	return result, nil
}
