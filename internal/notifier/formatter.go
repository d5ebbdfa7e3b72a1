package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"PriceForecaster/internal/model"
	"PriceForecaster/internal/recorder"
)

// maxIssueLines caps how many skipped instruments a summary lists.
const maxIssueLines = 10

// FormatRunSummary formats a finished run into a Telegram message.
func FormatRunSummary(rec *recorder.RunRecord, issues []model.InstrumentIssue) string {
	var b strings.Builder

	icon := "✅"
	if rec.Status != recorder.StatusSucceeded {
		icon = "❌"
	}
	b.WriteString(fmt.Sprintf("%s <b>Forecast run</b> | %s\n\n", icon, html.EscapeString(rec.RunID)))
	b.WriteString(fmt.Sprintf("Status: %s\n", rec.Status))
	if rec.ErrorKind != "" {
		b.WriteString(fmt.Sprintf("Error: %s %s\n", rec.ErrorKind, html.EscapeString(rec.ErrorMessage)))
	}
	b.WriteString(fmt.Sprintf("Instruments: %d requested, %d fetched\n", rec.Instruments, rec.Fetched))
	b.WriteString(fmt.Sprintf("Rows: %d normalized, %d forecast\n", rec.NormalizedRows, rec.ForecastRows))
	b.WriteString(fmt.Sprintf("Charts: %d\n", rec.Charts))
	if d := rec.FinishedAt.Sub(rec.StartedAt); d > 0 {
		b.WriteString(fmt.Sprintf("Duration: %s\n", d.Round(100*time.Millisecond)))
	}

	if len(issues) > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ <b>Skipped (%d):</b>\n", len(issues)))
		for i, is := range issues {
			if i == maxIssueLines {
				b.WriteString(fmt.Sprintf("  … and %d more\n", len(issues)-maxIssueLines))
				break
			}
			b.WriteString(fmt.Sprintf("  %s [%s] %s\n", html.EscapeString(is.Instrument), is.Stage, is.Kind))
		}
	}
	return b.String()
}

// FormatStatus describes the last recorded run, if any.
func FormatStatus(rec *recorder.RunRecord) string {
	if rec == nil {
		return "📦 No runs recorded yet."
	}
	var b strings.Builder
	b.WriteString("📦 <b>Last run</b>\n\n")
	b.WriteString(fmt.Sprintf("Run: %s\n", html.EscapeString(rec.RunID)))
	b.WriteString(fmt.Sprintf("Status: %s\n", rec.Status))
	if rec.ErrorKind != "" {
		b.WriteString(fmt.Sprintf("Error: %s\n", rec.ErrorKind))
	}
	b.WriteString(fmt.Sprintf("Started: %s\n", rec.StartedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Charts: %d of %d instruments\n", rec.Charts, rec.Instruments))
	return b.String()
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	return "<b>Commands</b>\n/run - start a forecast run now\n/status - show the last run\n/help - this message"
}
