package parser

import "strings"

// maxPayloadBytes bounds the input handed to the tokenizer. Listing pages
// are tens of kilobytes; anything past this is a runaway response.
const maxPayloadBytes = 8 << 20

// quotedStrings scans s and returns the contents of every double-quoted
// segment, honoring backslash escapes. This replaces splitting on raw
// commas, which breaks as soon as a quoted field contains one.
func quotedStrings(s string) []string {
	var (
		out     []string
		sb      strings.Builder
		inQuote bool
		escaped bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inQuote {
			if c == '"' {
				inQuote = true
				sb.Reset()
			}
			continue
		}
		if escaped {
			sb.WriteByte(c)
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			inQuote = false
			out = append(out, sb.String())
		default:
			sb.WriteByte(c)
		}
	}
	return out
}

// bracketGroups returns the contents of every innermost [...] group in s,
// in order of appearance. Brackets inside quoted strings are ignored, so a
// field value like "fund [A]" does not confuse the scan.
func bracketGroups(s string) []string {
	var (
		out     []string
		starts  []int  // open-bracket positions
		nested  []bool // whether a bracket closed inside this level
		inQuote bool
		escaped bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inQuote = false
			}
			continue
		}
		switch c {
		case '"':
			inQuote = true
		case '[':
			starts = append(starts, i)
			nested = append(nested, false)
		case ']':
			if len(starts) == 0 {
				continue
			}
			start := starts[len(starts)-1]
			isInnermost := !nested[len(nested)-1]
			starts = starts[:len(starts)-1]
			nested = nested[:len(nested)-1]
			if isInnermost {
				out = append(out, s[start+1:i])
			}
			if len(nested) > 0 {
				nested[len(nested)-1] = true
			}
		}
	}
	return out
}

// excerpt trims a payload down to something loggable.
func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
