package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"snap-to-spec/api/internal/presenter"
	"snap-to-spec/api/internal/util"
)

// Telegram caps messages at 4096 characters.
const maxMessage = 3900

const (
	loadingText = "🔍 Analyzing the photo…"
	busyText    = "⏳ Still analyzing the previous photo."
	idleText    = "📷 Send a photo of the next broken item."
	expiredText = "This guide is no longer active. Send a new photo."
	stepsPerRow = 5
)

func badgeEmoji(b presenter.Badge) string {
	switch b.Color {
	case "emerald":
		return "🟢"
	case "yellow":
		return "🟡"
	case "orange":
		return "🟠"
	case "red":
		return "🔴"
	}
	return "⚪"
}

// Caps on single model-written fields, applied before escaping so entities stay balanced.
const (
	maxAnalysis = 1200
	maxField    = 600
)

// guideText renders a guide for Telegram's legacy Markdown: safety first, header, checklist.
// Steps that do not fit in one message are dropped whole and the reader is pointed to Export.
func guideText(v presenter.View) string {
	var head strings.Builder
	g := v.Guide

	if v.HasSafetyWarnings() {
		head.WriteString("⚠️ *Safety First*\n")
		for _, w := range g.SafetyWarnings {
			head.WriteString("• " + escCap(w, maxField) + "\n")
		}
		head.WriteString("\n")
	}

	head.WriteString("*" + escCap(g.ItemName, maxField) + "*\n")
	if m := g.Model(); m != "" {
		head.WriteString("Model: " + escCap(m, maxField) + "\n")
	}
	fmt.Fprintf(&head, "%s %s\n\n", badgeEmoji(v.Badge), strings.ToUpper(string(v.Badge.Level)))
	head.WriteString(escCap(g.DamageAnalysis, maxAnalysis) + "\n\n")
	head.WriteString("⏱ Est. Time: " + escCap(g.EstimatedTime, maxField) + "\n")
	if len(g.ToolsRequired) > 0 {
		head.WriteString("🔧 Tools: " + escCap(strings.Join(g.ToolsRequired, ", "), maxField) + "\n")
	}
	head.WriteString("\n*Repair Checklist*\n")

	steps := make([]string, len(v.Steps))
	for i, s := range v.Steps {
		box := "⬜"
		if s.Done {
			box = "✅"
		}
		steps[i] = fmt.Sprintf("%s *%d. %s*\n%s\n", box, s.StepNumber, escCap(s.Action, maxField), escCap(s.Explanation, maxField))
	}

	footer := fmt.Sprintf("\n_%s_ %s", esc(v.Copy.Title), esc(v.Copy.Subtitle))

	size := head.Len() + len(footer)
	for _, st := range steps {
		size += len(st)
	}
	shown := len(steps)
	if size > maxMessage {
		size = head.Len() + len(footer) + len(moreStepsNote(len(steps)))
		shown = 0
		for shown < len(steps) && size+len(steps[shown]) <= maxMessage {
			size += len(steps[shown])
			shown++
		}
	}

	var b strings.Builder
	b.WriteString(head.String())
	for _, st := range steps[:shown] {
		b.WriteString(st)
	}
	if shown < len(steps) {
		b.WriteString(moreStepsNote(len(steps) - shown))
	}
	b.WriteString(footer)
	return b.String()
}

func moreStepsNote(n int) string {
	if n == 1 {
		return "… 1 more step. Tap 📄 Export for the full guide.\n"
	}
	return fmt.Sprintf("… %d more steps. Tap 📄 Export for the full guide.\n", n)
}

func failureText(msg string) string {
	return "❌ " + esc(msg)
}

// guideKeyboard has one toggle per step, then Export and New scan.
func guideKeyboard(v presenter.View) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, s := range v.Steps {
		label := fmt.Sprintf("⬜ %d", s.StepNumber)
		if s.Done {
			label = fmt.Sprintf("✅ %d", s.StepNumber)
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d", cbStep, s.StepNumber)))
		if len(row) == stepsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📄 Export", cbExport),
		tgbotapi.NewInlineKeyboardButtonData("📷 New scan", cbReset),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func failureKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔁 Retry", cbRetry),
		tgbotapi.NewInlineKeyboardButtonData("📷 New scan", cbReset),
	))
}

// escCap truncates raw model text to max bytes, then escapes it.
func escCap(s string, max int) string {
	return esc(util.Truncate(s, max))
}

// light escaping for legacy Markdown
func esc(s string) string {
	s = strings.ReplaceAll(s, "`", "'")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "[", "\\[")
	return s
}

// plainText undoes esc and drops the Markdown markers, for resending without a parse mode.
func plainText(s string) string {
	var b strings.Builder
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '*' || r == '_':
		default:
			b.WriteRune(r)
		}
	}
	return util.Truncate(b.String(), maxMessage)
}
