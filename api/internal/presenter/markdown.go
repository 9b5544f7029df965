package presenter

import (
	"fmt"
	"strings"
)

// Markdown renders v as GitHub-flavoured Markdown: safety first, then the header, then the checklist.
func (v View) Markdown() string {
	var b strings.Builder
	g := v.Guide

	if v.HasSafetyWarnings() {
		b.WriteString("> **Safety First**\n>\n")
		for _, w := range g.SafetyWarnings {
			fmt.Fprintf(&b, "> - %s\n", mdEscape(w))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "# %s\n\n", mdEscape(g.ItemName))
	if m := g.Model(); m != "" {
		fmt.Fprintf(&b, "Model: `%s`\n\n", strings.ReplaceAll(oneLine(m), "`", "'"))
	}
	fmt.Fprintf(&b, "**Difficulty:** %s\n\n", g.DifficultyLevel)
	fmt.Fprintf(&b, "%s\n\n", mdEscape(g.DamageAnalysis))
	fmt.Fprintf(&b, "**Est. Time:** %s\n\n", mdEscape(g.EstimatedTime))
	if len(g.ToolsRequired) > 0 {
		b.WriteString("**Tools Needed:** ")
		for i, t := range g.ToolsRequired {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(mdEscape(t))
		}
		b.WriteString("\n\n")
	}

	b.WriteString("## Repair Checklist\n\n")
	for _, s := range v.Steps {
		mark := " "
		if s.Done {
			mark = "x"
		}
		fmt.Fprintf(&b, "- [%s] **Step %d: %s**  \n  %s\n", mark, s.StepNumber, mdEscape(s.Action), mdEscape(s.Explanation))
	}

	fmt.Fprintf(&b, "\n---\n\n**%s** %s\n", v.Copy.Title, v.Copy.Subtitle)
	return b.String()
}

var mdReplacer = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", `\`+"`",
	"[", `\[`,
	"<", "&lt;",
)

// mdEscape keeps model text on one line and inert, so it cannot open new blocks or list items.
func mdEscape(s string) string {
	return mdReplacer.Replace(oneLine(s))
}

// oneLine collapses every whitespace run, newlines included, into a single space.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
