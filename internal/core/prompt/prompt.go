// Package prompt builds the chat prompts for intent extraction, pairwise
// verification, and group ranking. Verify and rank prompts are budget aware:
// overhead (system + preamble + output reserve) is costed first, then PR
// summaries are degraded in stages until the prompt fits
// 1 full summaries
// 2 bodies cut to 500 chars, file lists to 20 entries
// 3 drop PRs from the end, noting how many were omitted
// 4 floor: the first two PRs with aggressive truncation, even if over budget
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"dupehound/internal/core/normalize"
)

const (
	bodyCut   = 500
	filesCut  = 20
	bodyFloor = 200
	filesCut2 = 10
)

// PR carries the fields a prompt may include
type PR struct {
	Number        int
	Title         string
	Body          string
	Author        string
	FilePaths     []string
	IntentSummary string
}

// Budget bounds one prompt. Count estimates tokens for a string; when nil a
// chars/4 heuristic is used
type Budget struct {
	MaxTokens     int
	OutputReserve int
	Count         func(string) int
}

// Built is a finished prompt plus how many PRs were dropped to fit
type Built struct {
	System  string
	User    string
	Omitted int
}

const intentSystem = `You analyze GitHub pull requests. Summarize the intent of the change in two or three sentences: the problem it solves and the approach taken. Reply with the summary only, no preamble.`

const verifySystem = `You compare two pull requests from the same repository and decide whether they are duplicates, meaning they solve the same problem or overlap substantially. Reply with JSON only, shaped exactly as {"isDuplicate": boolean, "confidence": number from 0 to 1, "relationship": "exact_duplicate" | "near_duplicate" | "related", "rationale": string}.`

const rankSystem = `You rank pull requests that implement the same change, deciding which one should be kept. For every PR reply with one element in a JSON array shaped exactly as {"prNumber": number, "score": number from 0 to 100, "rationale": string} where score is code quality (0 to 50) plus completeness (0 to 50). Reply with the JSON array only.`

// Intent asks for a concise description of what one PR is trying to do
func Intent(pr PR) Built {
	var b strings.Builder
	b.WriteString("Describe the intent of this pull request.\n\n")
	writePR(&b, pr, 0, 0, false)
	return Built{System: intentSystem, User: b.String()}
}

// Verify asks whether two PRs duplicate each other, degrading detail to fit
func Verify(a, b PR, budget Budget) Built {
	const preamble = "Are these two pull requests duplicates?\n\n"
	out := fit(verifySystem, preamble, []PR{a, b}, budget, 2)
	return out
}

// Rank asks for a quality score per member of one duplicate group.
// At least the first two PRs always survive
func Rank(prs []PR, budget Budget) Built {
	const preamble = "These pull requests implement the same change. Score each one.\n\n"
	return fit(rankSystem, preamble, prs, budget, 2)
}

func (g Budget) count(s string) int {
	if g.Count != nil {
		return g.Count(s)
	}
	return len(s) / 4
}

// fit renders prs under the budget using the degradation ladder
func fit(system, preamble string, prs []PR, budget Budget, floor int) Built {
	if floor > len(prs) {
		floor = len(prs)
	}
	remaining := budget.MaxTokens - budget.OutputReserve - budget.count(system) - budget.count(preamble)

	if budget.MaxTokens <= 0 {
		// no budget given: emit stage-2 summaries as a safe default
		return Built{System: system, User: preamble + render(prs, bodyCut, filesCut)}
	}

	if user := render(prs, 0, 0); budget.count(user) <= remaining {
		return Built{System: system, User: preamble + user}
	}

	if user := render(prs, bodyCut, filesCut); budget.count(user) <= remaining {
		return Built{System: system, User: preamble + user}
	}

	for n := len(prs) - 1; n > floor; n-- {
		user := render(prs[:n], bodyCut, filesCut)
		user += fmt.Sprintf("\n(%d additional PRs omitted to fit the context window)\n", len(prs)-n)
		if budget.count(user) <= remaining {
			return Built{System: system, User: preamble + user, Omitted: len(prs) - n}
		}
	}

	user := render(prs[:floor], bodyFloor, filesCut2)
	omitted := len(prs) - floor
	if omitted > 0 {
		user += fmt.Sprintf("\n(%d additional PRs omitted to fit the context window)\n", omitted)
	}
	return Built{System: system, User: preamble + user, Omitted: omitted}
}

// render writes one summary block per PR. bodyMax/filesMax of zero means no cut
func render(prs []PR, bodyMax, filesMax int) string {
	var b strings.Builder
	for i, pr := range prs {
		if i > 0 {
			b.WriteByte('\n')
		}
		writePR(&b, pr, bodyMax, filesMax, true)
	}
	return b.String()
}

func writePR(b *strings.Builder, pr PR, bodyMax, filesMax int, withIntent bool) {
	fmt.Fprintf(b, "PR #%d: %s\n", pr.Number, pr.Title)
	if pr.Author != "" {
		fmt.Fprintf(b, "Author: %s\n", pr.Author)
	}

	files := pr.FilePaths
	trimmed := 0
	if filesMax > 0 && len(files) > filesMax {
		trimmed = len(files) - filesMax
		files = files[:filesMax]
	}
	if len(files) > 0 {
		fmt.Fprintf(b, "Files (%d): %s", len(pr.FilePaths), strings.Join(files, ", "))
		if trimmed > 0 {
			fmt.Fprintf(b, " … %d more", trimmed)
		}
		b.WriteByte('\n')
	}

	if withIntent && pr.IntentSummary != "" {
		fmt.Fprintf(b, "Intent: %s\n", pr.IntentSummary)
	}

	if body := cut(strings.TrimSpace(proseBody(pr.Body)), bodyMax); body != "" {
		fmt.Fprintf(b, "Body: %s\n", body)
	}
}

// proseBody collapses fenced code blocks to a marker. PR bodies often open
// with a stack trace or diff dump, and without this the excerpt cut would
// spend its whole budget on code instead of the description
func proseBody(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	var b strings.Builder
	last := 0
	for _, z := range normalize.DetectZones(s) {
		if z.Type != normalize.ZoneCodeFence {
			continue
		}
		start, end := z.Start-3, z.End+3 // spans exclude the backticks
		if start < last {
			continue
		}
		b.WriteString(s[last:start])
		b.WriteString("[code omitted]")
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

// cut truncates s to max bytes on a rune boundary; max of zero means no cut
func cut(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "…"
}
