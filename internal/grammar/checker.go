// Package grammar flags recurring English mistakes made by Brazilian
// Portuguese speakers using pattern rules, and renders the feedback in
// Portuguese for the learner.
package grammar

import (
	"fmt"
	"regexp"
	"strings"
)

const maxIssues = 5

type Issue struct {
	Rule       string `json:"rule"`
	Category   string `json:"category"`
	Original   string `json:"original,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

type rule struct {
	pattern    *regexp.Regexp
	suggestion string
	message    string
}

var brazilianCommonErrors = []rule{
	{
		pattern:    regexp.MustCompile(`(?i)\b(make|making|made)\s+(the\s+|my\s+)?homework\b`),
		suggestion: "do homework",
		message:    `Use "do" with homework, not "make"`,
	},
	{
		pattern:    regexp.MustCompile(`(?i)\bhave\s+\d+\s+years(\s+old)?\b`),
		suggestion: "be X years old",
		message:    `Use "I am X years old" not "I have X years"`,
	},
	{
		pattern:    regexp.MustCompile(`(?i)\b(is|are)\s+a\s+lot\s+of\s+people\b`),
		suggestion: "there are a lot of people",
		message:    `Use "there are" for existence, not just "are"`,
	},
	{
		pattern:    regexp.MustCompile(`(?i)\bpeople\s+is\b`),
		suggestion: "people are",
		message:    `"People" is plural in English, use "people are"`,
	},
	{
		pattern:    regexp.MustCompile(`(?i)\bmore\s+(better|worse|bigger|smaller|easier|harder)\b`),
		suggestion: "better",
		message:    `Comparatives do not take "more": say "better", not "more better"`,
	},
	{
		pattern:    regexp.MustCompile(`(?i)\bdidn'?t\s+(went|saw|ate|drank|took|made|did|said|bought|thought|came|got|knew|told|wrote)\b`),
		suggestion: "didn't + base verb",
		message:    `After "didn't" use the base form: "didn't go", not "didn't went"`,
	},
	{
		pattern:    regexp.MustCompile(`(?i)\bexplain\s+me\b`),
		suggestion: "explain to me",
		message:    `"Explain" needs "to": say "explain to me"`,
	},
	{
		pattern:    regexp.MustCompile(`(?i)\b(am|is|are)\s+agree\b`),
		suggestion: "agree",
		message:    `"Agree" is a verb: say "I agree", not "I am agree"`,
	},
}

// Check scans text against the rule set and returns at most five issues, in
// rule order.
func Check(text string) []Issue {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var issues []Issue
	for _, r := range brazilianCommonErrors {
		match := r.pattern.FindString(text)
		if match == "" {
			continue
		}
		issues = append(issues, Issue{
			Rule:       r.message,
			Category:   "Brazilian Common Error",
			Original:   strings.TrimSpace(match),
			Suggestion: r.suggestion,
		})
		if len(issues) == maxIssues {
			break
		}
	}
	return issues
}

// FormatCorrectionsPortuguese renders issues as the learner-facing correction
// block, numbered, in Portuguese.
func FormatCorrectionsPortuguese(issues []Issue) string {
	if len(issues) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("📝 **Correções e Dicas:**\n")
	for i, issue := range issues {
		b.WriteString(fmt.Sprintf("\n%d. **%s**: ", i+1, translateCategory(issue.Category)))
		if issue.Original != "" {
			fmt.Fprintf(&b, "Você escreveu %q", issue.Original)
			if issue.Suggestion != "" {
				fmt.Fprintf(&b, ", o correto seria %q", issue.Suggestion)
			}
		}
		fmt.Fprintf(&b, "\n   💡 %s\n", issue.Rule)
	}
	return b.String()
}

func translateCategory(category string) string {
	switch category {
	case "Grammar":
		return "Gramática"
	case "Spelling":
		return "Ortografia"
	case "Punctuation":
		return "Pontuação"
	case "Style":
		return "Estilo"
	case "Brazilian Common Error":
		return "Erro Comum de Brasileiros"
	default:
		return "Gramática"
	}
}
