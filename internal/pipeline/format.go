package pipeline

import (
	"fmt"
	"strings"

	"thinktwice/internal/model"
)

// formatConstraints renders constraints as one line each for prompt
// insertion, including the verifiability tag
func formatConstraints(constraints []model.Constraint) string {
	lines := make([]string, 0, len(constraints))
	for _, c := range constraints {
		tag := "(subjective)"
		if c.Verifiable {
			tag = "(verifiable)"
		}
		lines = append(lines, fmt.Sprintf("[%s] (%s) [%s] %s %s",
			c.ID, strings.ToUpper(string(c.Priority)), c.Type, c.Description, tag))
	}
	return strings.Join(lines, "\n")
}

// formatConstraintsShort renders constraints without the type and
// verifiability tags, for prompts that only need ID, priority, and text
func formatConstraintsShort(constraints []model.Constraint) string {
	lines := make([]string, 0, len(constraints))
	for _, c := range constraints {
		lines = append(lines, fmt.Sprintf("[%s] (%s) %s",
			c.ID, strings.ToUpper(string(c.Priority)), c.Description))
	}
	return strings.Join(lines, "\n")
}

// formatVerifications renders combined verification verdicts one line each
func formatVerifications(verifications []model.VerificationResult) string {
	if len(verifications) == 0 {
		return "No verification results available."
	}
	lines := make([]string, 0, len(verifications))
	for _, v := range verifications {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			v.ClaimID, strings.ToUpper(string(v.CombinedVerdict)), v.Claim))
	}
	return strings.Join(lines, "\n")
}

// formatEvaluations renders per-constraint critique verdicts with feedback
func formatEvaluations(evaluations []model.ConstraintEvaluation) string {
	if len(evaluations) == 0 {
		return "No constraint evaluations available."
	}
	lines := make([]string, 0, len(evaluations))
	for _, ev := range evaluations {
		line := fmt.Sprintf("[%s] %s (confidence=%d)", ev.ConstraintID, ev.Verdict, ev.Confidence)
		if ev.Feedback != "" {
			line += ": " + ev.Feedback
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// formatList renders a plain string list as bulleted lines, or the given
// placeholder when empty
func formatList(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}

// truncate shortens a string for log and summary fields
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
