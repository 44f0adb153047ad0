// Package normalize provides a deterministic text cleaner for PR titles,
// bodies, and intent summaries before they reach the database, prompts,
// or the embedding provider
// Pipeline order
// 1 Control-char sanitize (NUL, C0 except newline and tab, DEL, C1)
// 2 UTF-8 repair drop invalid bytes
// 3 Unicode NFKC normalization
// 4 Remove zero-width and other format chars that break tokenizers
// 5 Width fold fullwidth forms to ASCII
// 6 Collapse whitespace runs, preserving single line breaks
package normalize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// pool of fresh transformer chains
var chainPool = sync.Pool{
	New: func() any {
		// order matters and mirrors the documented pipeline
		return transform.Chain(
			norm.NFKC,
			runes.Remove(runes.In(unicode.Cf)), // strip format chars ZWJ ZWNJ FEFF etc
			width.Fold,                         // map fullwidth forms to ASCII
		)
	},
}

// Text returns the cleaned form of s following the pipeline described above
func Text(s string) string {
	if s == "" {
		return ""
	}

	s = Sanitize(s)

	s = strings.ToValidUTF8(s, "")

	tr := chainPool.Get().(transform.Transformer)
	ns, _, _ := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)

	return collapseSpaces(ns)
}

// EmbedInput cleans s for the embedding provider, which rejects empty
// strings; anything that cleans down to nothing becomes a single space
func EmbedInput(s string) string {
	if t := Text(s); t != "" {
		return t
	}
	return " "
}

// collapseSpaces converts whitespace runs to a single ASCII space, but preserves line breaks.
// Runs that contain any newline are collapsed to a single newline. Leading/trailing spaces/newlines are trimmed
func collapseSpaces(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inWS := false
	sawNL := false
	flush := func() {
		if !inWS {
			return
		}
		if sawNL {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
		inWS = false
		sawNL = false
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWS = true
			if r == '\n' || r == '\r' {
				sawNL = true
			}
			continue
		}
		flush()
		b.WriteRune(r)
	}
	flush()
	out := b.String()
	// Trim both spaces and newlines on edges
	out = strings.Trim(out, " \n\t\r")
	return out
}
