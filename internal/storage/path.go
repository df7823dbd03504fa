package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Path is a parsed config address, one element per object key.
type Path []string

// ParsePath parses dotted paths with optional bracket quoting:
//
//	settings.prefix
//	settings["1234"].prefix
//	modules.autorespond.global["hello.*"]
func ParsePath(s string) (Path, error) {
	var p Path
	i := 0
	expectSegment := true

	for i < len(s) {
		switch s[i] {
		case '.':
			if expectSegment {
				return nil, fmt.Errorf("empty segment at offset %d", i)
			}
			expectSegment = true
			i++

		case '[':
			key, n, err := parseBracket(s[i:])
			if err != nil {
				return nil, err
			}
			if key == "" {
				return nil, fmt.Errorf("empty key at offset %d", i)
			}
			p = append(p, key)
			expectSegment = false
			i += n

		default:
			if !expectSegment {
				return nil, fmt.Errorf("unexpected %q at offset %d", s[i], i)
			}
			j := i
			for j < len(s) && s[j] != '.' && s[j] != '[' {
				if s[j] == ']' {
					return nil, fmt.Errorf("unexpected ']' at offset %d", j)
				}
				j++
			}
			p = append(p, s[i:j])
			expectSegment = false
			i = j
		}
	}

	if len(p) == 0 || expectSegment {
		return nil, fmt.Errorf("invalid path %q", s)
	}
	return p, nil
}

// parseBracket reads `["key"]`, `['key']` or `[key]` from the start of s and
// returns the key and the number of bytes consumed.
func parseBracket(s string) (string, int, error) {
	if len(s) < 3 {
		return "", 0, fmt.Errorf("unterminated bracket in %q", s)
	}

	switch s[1] {
	case '"':
		end := 2
		for end < len(s) && s[end] != '"' {
			if s[end] == '\\' {
				end++
			}
			end++
		}
		if end+1 >= len(s) || s[end+1] != ']' {
			return "", 0, fmt.Errorf("unterminated bracket in %q", s)
		}
		key, err := strconv.Unquote(s[1 : end+1])
		if err != nil {
			return "", 0, fmt.Errorf("bad quoted key %s: %w", s[1:end+1], err)
		}
		return key, end + 2, nil

	case '\'':
		end := strings.Index(s[2:], "']")
		if end < 0 {
			return "", 0, fmt.Errorf("unterminated bracket in %q", s)
		}
		return s[2 : 2+end], end + 4, nil

	default:
		end := strings.IndexByte(s, ']')
		if end <= 1 {
			return "", 0, fmt.Errorf("unterminated bracket in %q", s)
		}
		return s[1:end], end + 1, nil
	}
}

// Keys builds a path string from raw keys, quoting any key that would not
// survive ParsePath as a bare segment.
func Keys(keys ...string) string {
	var b strings.Builder
	for i, k := range keys {
		if isBareKey(k) {
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(k)
			continue
		}
		b.WriteByte('[')
		b.WriteString(strconv.Quote(k))
		b.WriteByte(']')
	}
	return b.String()
}

func isBareKey(k string) bool {
	return k != "" && !strings.ContainsAny(k, `.[]"'`)
}

func (p Path) String() string {
	return Keys(p...)
}

// Join returns p extended by key without aliasing p's backing array.
func (p Path) Join(keys ...string) Path {
	out := make(Path, 0, len(p)+len(keys))
	out = append(out, p...)
	return append(out, keys...)
}

// gjsonPath renders p for reads.
func (p Path) gjsonPath() string {
	parts := make([]string, len(p))
	for i, k := range p {
		parts[i] = gjson.Escape(k)
	}
	return strings.Join(parts, ".")
}

// sjsonPath renders p for writes. All-digit keys are forced to be object
// keys, otherwise sjson would create arrays for them.
func (p Path) sjsonPath() string {
	parts := make([]string, len(p))
	for i, k := range p {
		switch {
		case isDigits(k):
			parts[i] = ":" + k
		default:
			esc := gjson.Escape(k)
			if strings.HasPrefix(esc, ":") {
				esc = `\` + esc
			}
			parts[i] = esc
		}
	}
	return strings.Join(parts, ".")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
