// Package structural provides deterministic measurement and repair of text
// structure. Language models cannot reliably count paragraphs, bullets, or
// letters, so exact measurements are computed here and injected into every
// prompt that must reason about structure, and final repairs are applied
// mechanically rather than generatively.
package structural

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	paragraphSplit  = regexp.MustCompile(`\n\s*\n`)
	sentenceSplit   = regexp.MustCompile(`[.!?]+`)
	bulletLine      = regexp.MustCompile(`(?m)^\s*[-*+]\s`)
	numberedLine    = regexp.MustCompile(`(?m)^\s*\d+[.)]\s`)
	placeholderExpr = regexp.MustCompile(`\[[\w\s]+\]`)
	highlightExpr   = regexp.MustCompile(`\*{1,2}[^*\n]+\*{1,2}`)
	headerLine      = regexp.MustCompile(`(?m)^#{1,6}\s+.+`)
	jsonLikeExpr    = regexp.MustCompile(`[\{\[][\s\S]*[\}\]]`)
)

// Measurement holds exact structural properties of a text. It is derived,
// recomputed on demand, and never mutated.
type Measurement struct {
	ParagraphCount      int
	WordCount           int
	SentenceCount       int
	BulletCount         int
	PlaceholderCount    int
	Placeholders        []string // First five, for prompt display
	HighlightCount      int
	StartsWithQuote     bool
	EndsWithQuote       bool
	AllUppercase        bool
	AllLowercase        bool
	AllCapsWordCount    int
	FirstLinePreview    string
	LastLinePreview     string
	ParagraphFirstWords []string
	HasPostscript       bool
	HasSixStarSeparator bool
	HasJSON             bool
	HasComma            bool
	LetterFrequencies   map[rune]int
	SectionHeaderCount  int
}

// Analyze computes the structural measurement of a text
func Analyze(text string) Measurement {
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return Measurement{LetterFrequencies: map[rune]int{}}
	}

	paragraphs := SplitParagraphs(stripped)
	words := strings.Fields(stripped)

	sentenceCount := 0
	for _, s := range sentenceSplit.Split(stripped, -1) {
		if strings.TrimSpace(s) != "" {
			sentenceCount++
		}
	}

	placeholders := placeholderExpr.FindAllString(stripped, -1)
	display := placeholders
	if len(display) > 5 {
		display = display[:5]
	}

	runes := []rune(stripped)
	firstRune := runes[0]
	lastRune := runes[len(runes)-1]

	allUpper, allLower := caseFlags(stripped)

	allCapsWords := 0
	for _, w := range words {
		if isAllCapsWord(w) {
			allCapsWords++
		}
	}

	lines := strings.Split(stripped, "\n")
	firstLine := strings.TrimSpace(lines[0])
	lastLine := strings.TrimSpace(lines[len(lines)-1])

	var firstWords []string
	for _, p := range paragraphs {
		if pw := strings.Fields(p); len(pw) > 0 {
			firstWords = append(firstWords, pw[0])
		}
	}

	freq := make(map[rune]int)
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) {
			freq[r]++
		}
	}

	lower := strings.ToLower(stripped)

	return Measurement{
		ParagraphCount:      len(paragraphs),
		WordCount:           len(words),
		SentenceCount:       sentenceCount,
		BulletCount:         len(bulletLine.FindAllString(stripped, -1)) + len(numberedLine.FindAllString(stripped, -1)),
		PlaceholderCount:    len(placeholders),
		Placeholders:        display,
		HighlightCount:      len(highlightExpr.FindAllString(stripped, -1)),
		StartsWithQuote:     isOpeningQuote(firstRune),
		EndsWithQuote:       isClosingQuote(lastRune),
		AllUppercase:        allUpper,
		AllLowercase:        allLower,
		AllCapsWordCount:    allCapsWords,
		FirstLinePreview:    preview(firstLine, 80),
		LastLinePreview:     preview(lastLine, 80),
		ParagraphFirstWords: firstWords,
		HasPostscript:       strings.Contains(lower, "p.s.") || strings.Contains(lower, "p.p.s."),
		HasSixStarSeparator: strings.Contains(stripped, "******"),
		HasJSON:             jsonLikeExpr.MatchString(stripped),
		HasComma:            strings.Contains(stripped, ","),
		LetterFrequencies:   freq,
		SectionHeaderCount:  len(headerLine.FindAllString(stripped, -1)),
	}
}

// SplitParagraphs splits a text into blank-line-separated paragraphs
func SplitParagraphs(text string) []string {
	var paragraphs []string
	for _, p := range paragraphSplit.Split(strings.TrimSpace(text), -1) {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}

// FormatForPrompt renders a measurement as exact figures for prompt injection
func FormatForPrompt(m Measurement) string {
	var b strings.Builder
	b.WriteString("STRUCTURAL MEASUREMENTS (programmatic, exact):\n")
	fmt.Fprintf(&b, "  Paragraphs: %d\n", m.ParagraphCount)
	fmt.Fprintf(&b, "  Words: %d\n", m.WordCount)
	fmt.Fprintf(&b, "  Sentences: %d\n", m.SentenceCount)
	fmt.Fprintf(&b, "  Bullet/list items: %d\n", m.BulletCount)
	fmt.Fprintf(&b, "  Square-bracket placeholders: %d\n", m.PlaceholderCount)
	if len(m.Placeholders) > 0 {
		fmt.Fprintf(&b, "    Found: %s\n", strings.Join(m.Placeholders, ", "))
	}
	fmt.Fprintf(&b, "  Highlighted sections (*text*): %d\n", m.HighlightCount)
	fmt.Fprintf(&b, "  Starts with quotation mark: %s\n", yesNo(m.StartsWithQuote))
	fmt.Fprintf(&b, "  Ends with quotation mark: %s\n", yesNo(m.EndsWithQuote))
	fmt.Fprintf(&b, "  All uppercase: %s\n", yesNo(m.AllUppercase))
	fmt.Fprintf(&b, "  All lowercase: %s\n", yesNo(m.AllLowercase))
	fmt.Fprintf(&b, "  ALL-CAPS words: %d\n", m.AllCapsWordCount)
	fmt.Fprintf(&b, "  Has postscript (P.S.): %s\n", yesNo(m.HasPostscript))
	fmt.Fprintf(&b, "  Has ****** separator: %s\n", yesNo(m.HasSixStarSeparator))
	fmt.Fprintf(&b, "  Contains JSON: %s\n", yesNo(m.HasJSON))
	fmt.Fprintf(&b, "  Contains commas: %s\n", yesNo(m.HasComma))
	fmt.Fprintf(&b, "  First line: %q\n", m.FirstLinePreview)
	fmt.Fprintf(&b, "  Last line: %q", m.LastLinePreview)
	for i, word := range m.ParagraphFirstWords {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, "\n  Paragraph %d first word: %q", i+1, word)
	}
	if m.SectionHeaderCount > 0 {
		fmt.Fprintf(&b, "\n  Section headers (## style): %d", m.SectionHeaderCount)
	}
	if len(m.LetterFrequencies) > 0 {
		letters := make([]rune, 0, len(m.LetterFrequencies))
		for r := range m.LetterFrequencies {
			letters = append(letters, r)
		}
		sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
		parts := make([]string, 0, len(letters))
		for _, r := range letters {
			parts = append(parts, fmt.Sprintf("%c=%d", r, m.LetterFrequencies[r]))
		}
		fmt.Fprintf(&b, "\n  Letter frequencies: %s", strings.Join(parts, ", "))
	}
	return b.String()
}

// FormatDelta renders only the structural properties that changed between
// two measurements, making degradation immediately visible to the arbiter
func FormatDelta(draft, refined Measurement) string {
	type countCheck struct {
		label string
		d, r  int
	}
	type boolCheck struct {
		label string
		d, r  bool
	}

	counts := []countCheck{
		{"Paragraphs", draft.ParagraphCount, refined.ParagraphCount},
		{"Words", draft.WordCount, refined.WordCount},
		{"Sentences", draft.SentenceCount, refined.SentenceCount},
		{"Bullet/list items", draft.BulletCount, refined.BulletCount},
		{"Square-bracket placeholders", draft.PlaceholderCount, refined.PlaceholderCount},
		{"Highlighted sections", draft.HighlightCount, refined.HighlightCount},
		{"ALL-CAPS words", draft.AllCapsWordCount, refined.AllCapsWordCount},
		{"Section headers", draft.SectionHeaderCount, refined.SectionHeaderCount},
	}
	bools := []boolCheck{
		{"Starts with quotation mark", draft.StartsWithQuote, refined.StartsWithQuote},
		{"Ends with quotation mark", draft.EndsWithQuote, refined.EndsWithQuote},
		{"All uppercase", draft.AllUppercase, refined.AllUppercase},
		{"All lowercase", draft.AllLowercase, refined.AllLowercase},
		{"Has postscript (P.S.)", draft.HasPostscript, refined.HasPostscript},
		{"Has ****** separator", draft.HasSixStarSeparator, refined.HasSixStarSeparator},
		{"Contains commas", draft.HasComma, refined.HasComma},
	}

	var changes []string
	for _, c := range counts {
		if c.d != c.r {
			direction := "DECREASED"
			if c.r > c.d {
				direction = "INCREASED"
			}
			changes = append(changes, fmt.Sprintf("  %s: %d -> %d (%s)", c.label, c.d, c.r, direction))
		}
	}
	for _, c := range bools {
		if c.d != c.r {
			changes = append(changes, fmt.Sprintf("  %s: %s -> %s (CHANGED)", c.label, yesNo(c.d), yesNo(c.r)))
		}
	}

	if len(changes) == 0 {
		return "STRUCTURAL DELTA: No structural changes detected."
	}
	return "STRUCTURAL DELTA (draft -> refined):\n" + strings.Join(changes, "\n")
}

func caseFlags(text string) (allUpper, allLower bool) {
	hasAlpha := false
	allUpper, allLower = true, true
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		hasAlpha = true
		if !unicode.IsUpper(r) {
			allUpper = false
		}
		if !unicode.IsLower(r) {
			allLower = false
		}
	}
	if !hasAlpha {
		return false, false
	}
	return allUpper, allLower
}

func isAllCapsWord(w string) bool {
	hasLetter := false
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
		hasLetter = true
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return hasLetter
}

func isOpeningQuote(r rune) bool {
	return r == '"' || r == '\'' || r == '“'
}

func isClosingQuote(r rune) bool {
	return r == '"' || r == '\'' || r == '”'
}

func preview(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
