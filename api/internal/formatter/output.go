package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"snap-to-spec/api/internal/presenter"
	"snap-to-spec/api/internal/session"
)

// Formats lists the accepted --output values.
var Formats = []string{"human", "json", "yaml", "markdown"}

// Display writes snap in the requested format.
func Display(w io.Writer, snap session.Snapshot, format string) error {
	switch strings.ToLower(format) {
	case "json":
		return displayJSON(w, snap)
	case "yaml":
		return displayYAML(w, snap)
	case "markdown", "md":
		if snap.Data == nil {
			displayHuman(w, snap)
			return nil
		}
		_, err := io.WriteString(w, presenter.NewView(*snap.Data, nil).Markdown())
		return err
	case "human", "":
		displayHuman(w, snap)
		return nil
	}
	return fmt.Errorf("unknown output format %q (use %s)", format, strings.Join(Formats, ", "))
}

func displayJSON(w io.Writer, snap session.Snapshot) error {
	output, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

func displayYAML(w io.Writer, snap session.Snapshot) error {
	output, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = w.Write(output)
	return err
}

func displayHuman(w io.Writer, snap session.Snapshot) {
	if snap.Data == nil {
		msg := "no guide"
		if snap.Error != nil {
			msg = *snap.Error
		}
		color.New(color.FgRed, color.Bold).Fprintf(w, "❌ %s\n", msg)
		return
	}

	v := presenter.NewView(*snap.Data, nil)
	g := v.Guide
	red := color.New(color.FgRed, color.Bold)
	cyan := color.New(color.FgCyan, color.Bold)
	white := color.New(color.FgWhite, color.Bold)

	fmt.Fprintln(w)
	if v.HasSafetyWarnings() {
		red.Fprintln(w, "⚠️  SAFETY FIRST:")
		for _, s := range g.SafetyWarnings {
			fmt.Fprintf(w, "   • %s\n", s)
		}
		fmt.Fprintln(w)
	}

	white.Fprintf(w, "🔧 %s", g.ItemName)
	if m := g.Model(); m != "" {
		fmt.Fprintf(w, "  %s", color.HiBlackString("Model: "+m))
	}
	fmt.Fprintln(w)
	badgeColor(v.Badge).Fprintf(w, "📊 DIFFICULTY: %s\n\n", strings.ToUpper(string(v.Badge.Level)))
	fmt.Fprintf(w, "   %s\n\n", g.DamageAnalysis)
	fmt.Fprintf(w, "⏱  Est. Time: %s\n", g.EstimatedTime)
	if len(g.ToolsRequired) > 0 {
		fmt.Fprintf(w, "🧰 Tools: %s\n", color.CyanString(strings.Join(g.ToolsRequired, ", ")))
	}
	fmt.Fprintln(w)

	cyan.Fprintln(w, "🛠  REPAIR CHECKLIST:")
	for _, s := range v.Steps {
		fmt.Fprintf(w, "   [ ] Step %d: %s\n", s.StepNumber, s.Action)
		fmt.Fprintf(w, "       %s\n", s.Explanation)
	}

	fmt.Fprintln(w, strings.Repeat("─", 80))
	fmt.Fprintf(w, "💡 %s\n", color.HiBlackString("Run with -o json, -o yaml or -o markdown for machine-readable output"))
}

// badgeColor mirrors the difficulty badge palette on a terminal.
func badgeColor(b presenter.Badge) *color.Color {
	switch b.Color {
	case "emerald":
		return color.New(color.FgGreen, color.Bold)
	case "yellow":
		return color.New(color.FgYellow, color.Bold)
	case "orange":
		return color.New(color.FgHiRed)
	case "red":
		return color.New(color.FgRed, color.Bold)
	}
	return color.New(color.FgWhite)
}
