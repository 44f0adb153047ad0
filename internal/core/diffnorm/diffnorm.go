// Package diffnorm canonicalises unified diffs so equal changes hash equally
// Pipeline order
// 1 Split the diff on "diff --git " file boundaries
// 2 Per file keep the destination path (the token after b/)
// 3 Drop index / --- / +++ / @@ metadata lines
// 4 Trim content lines and drop the ones left empty
// 5 Sort files by path and join
// Reordering files or touching metadata never changes the result;
// any change to added, removed, or context content does
package diffnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

const fileBoundary = "diff --git "

// Normalise returns the canonical form of a raw unified diff
func Normalise(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	sections := strings.Split(raw, fileBoundary)
	files := make([]fileSection, 0, len(sections))
	for _, sec := range sections {
		if strings.TrimSpace(sec) == "" {
			continue
		}
		files = append(files, normaliseSection(sec))
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].path < files[j].path })

	var b strings.Builder
	b.Grow(len(raw) / 2)
	for i, f := range files {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.path)
		for _, line := range f.lines {
			b.WriteByte('\n')
			b.WriteString(line)
		}
	}
	return b.String()
}

// Hash is the SHA-256 hex digest of the normalised diff
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(Normalise(raw)))
	return hex.EncodeToString(sum[:])
}

type fileSection struct {
	path  string
	lines []string
}

func normaliseSection(sec string) fileSection {
	lines := strings.Split(sec, "\n")

	// header is the "a/old b/new" remainder of the boundary line
	path := destPath(lines[0])

	kept := make([]string, 0, len(lines))
	for _, line := range lines[1:] {
		if isMetadata(line) {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}
	return fileSection{path: path, lines: kept}
}

// destPath extracts the destination path from a "a/x b/x" header remainder.
// A rename keeps the b/ side so the hash follows the file's new identity
func destPath(header string) string {
	if i := strings.LastIndex(header, " b/"); i >= 0 {
		return strings.TrimSpace(header[i+3:])
	}
	return strings.TrimSpace(header)
}

func isMetadata(line string) bool {
	return strings.HasPrefix(line, "index ") ||
		strings.HasPrefix(line, "--- ") ||
		strings.HasPrefix(line, "+++ ") ||
		strings.HasPrefix(line, "@@") ||
		line == "---" || line == "+++"
}
