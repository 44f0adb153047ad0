package normalize

import "strings"

// ZoneType classifies a markup region inside PR text
type ZoneType string

const (
	// ZoneCodeFence is the content of a ``` fenced block
	ZoneCodeFence ZoneType = "code_fence"
	// ZoneCodeInline is the content between single backticks
	ZoneCodeInline ZoneType = "code_inline"
	// ZoneQuote is the content of a line starting with '>'
	ZoneQuote ZoneType = "quote"
)

// ZoneSpan is a byte range [Start,End) into the scanned string
type ZoneSpan struct {
	Type       ZoneType
	Start, End int
}

// DetectZones returns the markup regions of s: fenced code between ```
// pairs, inline code between single backticks outside fences, and quoted
// lines starting with '>'. Span bounds exclude the delimiters themselves.
// An unterminated fence is ignored rather than swallowing the rest of the
// text. Fence spans always satisfy Start >= 3 and End+3 <= len(s)
func DetectZones(s string) []ZoneSpan {
	if s == "" {
		return nil
	}

	fences := fenceSpans(s)
	spans := append([]ZoneSpan(nil), fences...)

	inFence := func(pos int) bool {
		for _, z := range fences {
			if pos >= z.Start-3 && pos < z.End+3 {
				return true
			}
		}
		return false
	}

	// inline code, skipping ticks that belong to a fence
	for i := 0; i < len(s); i++ {
		if s[i] != '`' || inFence(i) {
			continue
		}
		j := strings.IndexByte(s[i+1:], '`')
		if j < 0 {
			break
		}
		j += i + 1
		if inFence(j) {
			i = j
			continue
		}
		if i+1 < j {
			spans = append(spans, ZoneSpan{Type: ZoneCodeInline, Start: i + 1, End: j})
		}
		i = j
	}

	// quoted lines, '>' after optional indentation
	for start := 0; start < len(s); {
		end := strings.IndexByte(s[start:], '\n')
		if end < 0 {
			end = len(s)
		} else {
			end += start
		}
		i := start
		for i < end && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i < end && s[i] == '>' {
			qs := i + 1
			for qs < end && s[qs] == ' ' {
				qs++
			}
			if qs < end {
				spans = append(spans, ZoneSpan{Type: ZoneQuote, Start: qs, End: end})
			}
		}
		start = end + 1
	}

	return spans
}

// fenceSpans scans left to right for ``` pairs. Spans come back ordered and
// non-overlapping, content only
func fenceSpans(s string) []ZoneSpan {
	var out []ZoneSpan
	for i := 0; ; {
		open := strings.Index(s[i:], "```")
		if open < 0 {
			return out
		}
		open += i
		closing := strings.Index(s[open+3:], "```")
		if closing < 0 {
			return out
		}
		closing += open + 3
		if open+3 < closing {
			out = append(out, ZoneSpan{Type: ZoneCodeFence, Start: open + 3, End: closing})
		}
		i = closing + 3
	}
}
