package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// Precompiled fence patterns
var (
	// firstFence..lastFence, greedy so hallucinated inner fences stay inside.
	fenceBlockRegex = regexp.MustCompile("(?s)```[ \t]*(?:json|JSON|json5)?[ \t]*\r?\n?(.*)```")
	fenceMarkRegex  = regexp.MustCompile("```[ \t]*(?:json|JSON|json5)?")
)

// Clean strips markdown fences, a byte order mark and surrounding whitespace.
// Strategies that work on "cleaned text" receive its output.
func Clean(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = fenceMarkRegex.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// decodeStrict decodes exactly one JSON value, keeping numbers as json.Number.
func decodeStrict(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}

// ExtractBoundary locates the first '{' or '[' (whichever comes first) and
// decodes the span up to the last matching closer. If that span does not
// decode, the balanced closer for the opening bracket is tried instead.
func ExtractBoundary(text string) (any, error) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return nil, ErrNoJSON
	}
	open := text[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}

	end := strings.LastIndexByte(text, closer)
	if end < start {
		return nil, fmt.Errorf("%w: no closing %q", ErrNoJSON, closer)
	}
	v, err := decodeStrict(text[start : end+1])
	if err == nil {
		return v, nil
	}

	if balanced := findMatchingBracket(text, start, open, closer); balanced > 0 && balanced != end {
		if v, berr := decodeStrict(text[start : balanced+1]); berr == nil {
			return v, nil
		}
	}
	return nil, err
}

// findMatchingBracket returns the index of the bracket closing the one at
// start, skipping brackets inside strings, or -1.
func findMatchingBracket(s string, start int, open, closer byte) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == closer:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ExtractFence decodes the interior of a markdown code block, spanning from
// the first fence to the last one.
func ExtractFence(text string) (any, error) {
	m := fenceBlockRegex.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("%w: no fenced block", ErrNoJSON)
	}
	inner := strings.TrimSpace(fenceMarkRegex.ReplaceAllString(m[1], ""))
	if inner == "" {
		return nil, fmt.Errorf("%w: empty fenced block", ErrNoJSON)
	}
	return decodeStrict(inner)
}

// DecodeLenient decodes text with the JSON5 grammar, which accepts trailing
// commas, single quoted strings and unquoted keys. The json5 scanner panics
// on some prose (e.g. "Sure:"); that is reported as an error.
func DecodeLenient(text string) (v any, err error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoJSON
	}
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("lenient decode: %v", r)
		}
	}()
	if err := json5.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// SanitizeControl escapes raw control characters inside string literals and
// drops those outside strings, leaving the whitespace the grammar allows.
func SanitizeControl(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inString := false
	var quote byte
	escaped := false

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if escaped {
			b.WriteByte(ch)
			escaped = false
			continue
		}
		if inString {
			switch {
			case ch == '\\':
				escaped = true
				b.WriteByte(ch)
			case ch == quote:
				inString = false
				b.WriteByte(ch)
			case ch == '\n':
				b.WriteString(`\n`)
			case ch == '\r':
				if i+1 < len(text) && text[i+1] == '\n' {
					i++
				}
				b.WriteString(`\n`)
			case ch == '\t':
				b.WriteString(`\t`)
			case ch < 0x20 || ch == 0x7f:
				fmt.Fprintf(&b, `\u%04x`, ch)
			default:
				b.WriteByte(ch)
			}
			continue
		}
		switch {
		case ch == '"' || ch == '\'':
			inString = true
			quote = ch
			b.WriteByte(ch)
		case ch == '\n' || ch == '\r' || ch == '\t':
			b.WriteByte(ch)
		case ch < 0x20 || ch == 0x7f:
			// dropped
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// DecodeSanitized sanitizes control characters and retries the lenient decoder.
func DecodeSanitized(text string) (any, error) {
	return DecodeLenient(SanitizeControl(text))
}

// DecodeStrict is a standards-strict decode of the whole text.
func DecodeStrict(text string) (any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoJSON
	}
	return decodeStrict(text)
}
