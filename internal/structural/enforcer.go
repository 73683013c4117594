package structural

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"thinktwice/internal/model"
)

// wordNumbers maps spelled-out numbers for requirement parsing
var wordNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12,
}

// ordinals maps ordinal words for "the second paragraph" phrasing
var ordinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
}

var (
	wordPattern   = "one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve"
	numGroup      = `\b(\d+|` + wordPattern + `)\b`
	blockTerms    = `(?:paragraph|section|part)s?`
	bulletTerms   = `(?:bullet|list)\s*(?:point|item)?s?`
	separatorLine = regexp.MustCompile(`^[\*\-=~_]{3,}$`)
	bulletPrefix  = regexp.MustCompile(`^(\s*(?:[-*•]|\d+[.)]) )`)
	bulletMatch   = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)]) `)
	sentenceBound = regexp.MustCompile(`(?:[.!?])\s+`)
)

var paragraphPatterns = compileRequirementPatterns([]string{
	`exactly\s+` + numGroup + `\s+` + blockTerms,
	`in\s+` + numGroup + `\s+` + blockTerms,
	`contain\s+` + numGroup + `\s+` + blockTerms,
	`into\s+` + numGroup + `\s+` + blockTerms,
	`have\s+` + numGroup + `\s+` + blockTerms,
	numGroup + `\s+` + blockTerms,
})

var bulletPatterns = compileRequirementPatterns([]string{
	`exactly\s+` + numGroup + `\s+` + bulletTerms,
	`contain\s+` + numGroup + `\s+` + bulletTerms,
	numGroup + `\s+` + bulletTerms,
})

var (
	firstWordByNumber = regexp.MustCompile(`(?i)paragraph\s+(\d+)\s+(?:must|should|has\s+to)\s+start\s+with\s+(?:the\s+)?word\s+["']?(\w+)["']?`)
	firstWordOrdinal  = regexp.MustCompile(`(?i)(?:the\s+)?(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth)\s+paragraph.*?start\s+with\s+(?:the\s+)?word\s+["']?(\w+)["']?`)
	firstWordLast     = regexp.MustCompile(`(?i)(?:the\s+)?last\s+paragraph.*?start\s+with\s+(?:the\s+)?word\s+["']?(\w+)["']?`)
	startPhrasePats   = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:response|answer|output)\s+(?:must|should|has\s+to)\s+(?:begin|start)\s+with\s+["']([^"']+)["']`),
		regexp.MustCompile(`(?i)(?:begin|start)\s+(?:your\s+)?(?:response|answer|output)\s+with\s+["']([^"']+)["']`),
	}
	constrainedAnswer = regexp.MustCompile(`(?i)my answer is (?:yes|no|maybe)`)
	wordYes           = regexp.MustCompile(`\byes\b`)
	wordNo            = regexp.MustCompile(`\bno\b`)
)

func compileRequirementPatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

// Enforcer applies deterministic structural repairs parsed from natural
// language requirements in the prompt and constraints. Extraction is
// heuristic: when phrasing is ambiguous the enforcer does nothing rather
// than risk an over-eager rewrite.
type Enforcer struct {
	logger *zap.Logger
}

// NewEnforcer creates an enforcer
func NewEnforcer(logger *zap.Logger) *Enforcer {
	return &Enforcer{logger: logger}
}

// Enforce parses structural requirements from the original prompt and
// constraint descriptions and applies safe deterministic fixes. Each repair
// re-verifies its own postcondition and reverts when the target still is
// not met, so the result never has a wrong count the input did not have.
func (e *Enforcer) Enforce(text string, constraints []model.Constraint, originalPrompt string) string {
	var descriptions []string
	for _, c := range constraints {
		descriptions = append(descriptions, c.Description)
	}
	// Raw text keeps the casing of quoted words and phrases intact so that
	// what gets prepended matches what was asked for. Count extraction works
	// on the lowered form.
	raw := originalPrompt + " " + strings.Join(descriptions, " ")
	lowered := strings.ToLower(raw)

	// Order matters: prepending a start phrase shifts paragraph structure,
	// and first-word repair needs a stable paragraph count.
	result := e.enforceStartPhrase(text, raw)
	result = e.enforceParagraphCount(result, lowered)
	result = e.enforceFirstWords(result, raw)
	result = e.enforceBulletCount(result, lowered)
	return result
}

// parseNumber reads a digit string or spelled-out number
func parseNumber(s string) (int, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	n, ok := wordNumbers[s]
	return n, ok
}

func extractRequirement(text string, patterns []*regexp.Regexp) (int, bool) {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			if n, ok := parseNumber(m[1]); ok && n > 0 {
				return n, true
			}
		}
	}
	return 0, false
}

// --- Paragraph count ---

func (e *Enforcer) enforceParagraphCount(text, requirements string) string {
	expected, ok := extractRequirement(requirements, paragraphPatterns)
	if !ok {
		return text
	}

	paragraphs := SplitParagraphs(text)
	current := len(paragraphs)
	if current == expected {
		return text
	}

	e.logger.Info("paragraph enforcement",
		zap.Int("current", current),
		zap.Int("expected", expected),
	)

	if current > expected {
		paragraphs = mergeParagraphs(paragraphs, expected)
	} else {
		paragraphs = splitParagraphs(paragraphs, expected)
	}

	result := strings.Join(paragraphs, "\n\n")

	// Postcondition: re-count and revert on mismatch
	if len(SplitParagraphs(result)) != expected {
		e.logger.Warn("paragraph enforcement missed target, reverting",
			zap.Int("expected", expected),
		)
		return text
	}
	return result
}

// mergeParagraphs reduces the paragraph count: separator-only blocks are
// absorbed into the preceding paragraph first, then the shortest adjacent
// pairs are merged
func mergeParagraphs(paragraphs []string, expected int) []string {
	var collapsed []string
	for _, p := range paragraphs {
		if separatorLine.MatchString(strings.TrimSpace(p)) && len(collapsed) > 0 {
			collapsed[len(collapsed)-1] += "\n" + p
		} else {
			collapsed = append(collapsed, p)
		}
	}
	paragraphs = collapsed

	for len(paragraphs) > expected {
		minCombined := -1
		minIdx := 0
		for i := 0; i < len(paragraphs)-1; i++ {
			combined := len(paragraphs[i]) + len(paragraphs[i+1])
			if minCombined < 0 || combined < minCombined {
				minCombined = combined
				minIdx = i
			}
		}
		paragraphs[minIdx] = paragraphs[minIdx] + " " + paragraphs[minIdx+1]
		paragraphs = append(paragraphs[:minIdx+1], paragraphs[minIdx+2:]...)
	}
	return paragraphs
}

// splitParagraphs raises the paragraph count by splitting the longest
// paragraph at a sentence boundary
func splitParagraphs(paragraphs []string, expected int) []string {
	for len(paragraphs) < expected {
		maxLen, maxIdx := 0, 0
		for i, p := range paragraphs {
			if len(p) > maxLen {
				maxLen = len(p)
				maxIdx = i
			}
		}
		sentences := splitSentences(paragraphs[maxIdx])
		if len(sentences) < 2 {
			break
		}
		mid := len(sentences) / 2
		head := strings.Join(sentences[:mid], " ")
		tail := strings.Join(sentences[mid:], " ")

		paragraphs[maxIdx] = head
		paragraphs = append(paragraphs, "")
		copy(paragraphs[maxIdx+2:], paragraphs[maxIdx+1:])
		paragraphs[maxIdx+1] = tail
	}
	return paragraphs
}

// splitSentences splits a paragraph at sentence-ending punctuation,
// keeping the punctuation with the preceding sentence
func splitSentences(p string) []string {
	var sentences []string
	rest := p
	for {
		loc := sentenceBound.FindStringIndex(rest)
		if loc == nil {
			break
		}
		// Index of the whitespace after the terminator
		termEnd := loc[0] + 1
		sentences = append(sentences, strings.TrimSpace(rest[:termEnd]))
		rest = rest[loc[1]:]
	}
	if trimmed := strings.TrimSpace(rest); trimmed != "" {
		sentences = append(sentences, trimmed)
	}
	return sentences
}

// --- Nth paragraph first word ---

func (e *Enforcer) enforceFirstWords(text, requirements string) string {
	paragraphs := SplitParagraphs(text)
	reqs := extractFirstWordRequirements(requirements, len(paragraphs))
	if len(reqs) == 0 {
		return text
	}

	changed := false
	for _, r := range reqs {
		if r.paragraph < 1 || r.paragraph > len(paragraphs) {
			continue
		}
		idx := r.paragraph - 1
		words := strings.Fields(paragraphs[idx])
		if len(words) == 0 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(words[0]), r.word) {
			continue
		}
		paragraphs[idx] = r.word + " " + paragraphs[idx]
		changed = true
		e.logger.Info("first-word enforcement",
			zap.Int("paragraph", r.paragraph),
			zap.String("word", r.word),
		)
	}

	if !changed {
		return text
	}
	return strings.Join(paragraphs, "\n\n")
}

type firstWordRequirement struct {
	paragraph int
	word      string
}

func extractFirstWordRequirements(text string, numParagraphs int) []firstWordRequirement {
	var reqs []firstWordRequirement

	for _, m := range firstWordByNumber.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			reqs = append(reqs, firstWordRequirement{paragraph: n, word: m[2]})
		}
	}
	for _, m := range firstWordOrdinal.FindAllStringSubmatch(text, -1) {
		if n, ok := ordinals[strings.ToLower(m[1])]; ok {
			reqs = append(reqs, firstWordRequirement{paragraph: n, word: m[2]})
		}
	}
	if numParagraphs > 0 {
		for _, m := range firstWordLast.FindAllStringSubmatch(text, -1) {
			reqs = append(reqs, firstWordRequirement{paragraph: numParagraphs, word: m[1]})
		}
	}
	return reqs
}

// --- Bullet/list count ---

func (e *Enforcer) enforceBulletCount(text, requirements string) string {
	expected, ok := extractRequirement(requirements, bulletPatterns)
	if !ok {
		return text
	}

	lines := strings.Split(text, "\n")
	indices := bulletLineIndices(lines)
	current := len(indices)
	if current == expected {
		return text
	}

	e.logger.Info("bullet enforcement",
		zap.Int("current", current),
		zap.Int("expected", expected),
	)

	if current > expected {
		// Drop excess bullets from the end
		for len(indices) > expected {
			removeIdx := indices[len(indices)-1]
			indices = indices[:len(indices)-1]
			lines = append(lines[:removeIdx], lines[removeIdx+1:]...)
		}
	} else {
		lines = splitBullets(lines, expected)
	}

	result := strings.Join(lines, "\n")

	// Postcondition: re-count and revert on mismatch
	if len(bulletLineIndices(strings.Split(result, "\n"))) != expected {
		e.logger.Warn("bullet enforcement missed target, reverting",
			zap.Int("expected", expected),
		)
		return text
	}
	return result
}

func bulletLineIndices(lines []string) []int {
	var indices []int
	for i, line := range lines {
		if bulletMatch.MatchString(line) {
			indices = append(indices, i)
		}
	}
	return indices
}

// splitBullets raises the bullet count by splitting the longest item at a
// sentence boundary, reusing its prefix
func splitBullets(lines []string, expected int) []string {
	for {
		indices := bulletLineIndices(lines)
		if len(indices) >= expected || len(indices) == 0 {
			break
		}

		maxLen, lineIdx := 0, -1
		for _, li := range indices {
			if len(lines[li]) > maxLen {
				maxLen = len(lines[li])
				lineIdx = li
			}
		}
		if lineIdx < 0 {
			break
		}

		m := bulletPrefix.FindString(lines[lineIdx])
		if m == "" {
			break
		}
		content := lines[lineIdx][len(m):]
		sentences := splitSentences(content)
		if len(sentences) < 2 {
			break
		}
		mid := len(sentences) / 2

		lines[lineIdx] = m + strings.Join(sentences[:mid], " ")
		newLine := m + strings.Join(sentences[mid:], " ")
		lines = append(lines, "")
		copy(lines[lineIdx+2:], lines[lineIdx+1:])
		lines[lineIdx+1] = newLine
	}
	return lines
}

// --- Required start phrase ---

func (e *Enforcer) enforceStartPhrase(text, requirements string) string {
	if result := e.enforceConstrainedAnswer(text, requirements); result != text {
		return result
	}

	var required string
	for _, p := range startPhrasePats {
		if m := p.FindStringSubmatch(requirements); m != nil {
			required = m[1]
			break
		}
	}
	if required == "" {
		return text
	}

	stripped := strings.TrimSpace(text)
	if strings.HasPrefix(strings.ToLower(stripped), strings.ToLower(required)) {
		return text
	}

	e.logger.Info("start-phrase enforcement", zap.String("phrase", preview(required, 40)))
	return required + "\n\n" + text
}

// enforceConstrainedAnswer handles prompts that demand the response open
// with "My answer is yes/no/maybe", inferring the answer from the text
func (e *Enforcer) enforceConstrainedAnswer(text, requirements string) string {
	if !constrainedAnswer.MatchString(requirements) {
		return text
	}

	stripped := strings.ToLower(strings.TrimSpace(text))
	for _, phrase := range []string{"my answer is yes", "my answer is no", "my answer is maybe"} {
		if strings.HasPrefix(stripped, phrase) {
			return text
		}
	}

	answer := "maybe"
	lower := strings.ToLower(text)
	hasYes := wordYes.MatchString(lower)
	hasNo := wordNo.MatchString(lower)
	switch {
	case hasYes && !hasNo:
		answer = "yes"
	case hasNo && !hasYes:
		answer = "no"
	}

	prefix := fmt.Sprintf("My answer is %s.", answer)
	e.logger.Info("constrained-answer enforcement", zap.String("prefix", prefix))
	return prefix + "\n\n" + text
}
