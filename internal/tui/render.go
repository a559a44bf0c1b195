package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/orange/internal/models"
	"github.com/fentz26/orange/internal/session"
)

var stateColors = map[models.SessionState]lipgloss.Color{
	models.StateIdle:         mutedColor,
	models.StateListening:    cyanColor,
	models.StateTranscribing: secondaryColor,
	models.StatePlanning:     secondaryColor,
	models.StateConfirming:   warningColor,
	models.StateExecuting:    primaryColor,
	models.StateVerifying:    primaryColor,
	models.StateDone:         successColor,
	models.StateFailed:       errorColor,
	models.StateCanceled:     mutedColor,
}

// formatState renders the session state as a badge.
func formatState(state models.SessionState) string {
	if state == "" {
		state = models.StateIdle
	}
	color, ok := stateColors[state]
	if !ok {
		color = mutedColor
	}
	return lipgloss.NewStyle().
		Foreground(fgColor).
		Background(color).
		Bold(true).
		Padding(0, 1).
		Render(strings.ToUpper(string(state)))
}

func renderSession(snap session.Snapshot) string {
	var b strings.Builder
	label := lipgloss.NewStyle().Foreground(mutedColor)

	if snap.ID != "" {
		b.WriteString(label.Render(" Session  ") + shortID(snap.ID) + "\n")
	}
	switch {
	case snap.Transcript != "":
		b.WriteString(label.Render(" Heard    ") + fmt.Sprintf("%q", snap.Transcript) + "\n")
	case snap.PartialTranscript != "":
		b.WriteString(label.Render(" Hearing  ") + helpStyle.Render(snap.PartialTranscript+"…") + "\n")
	}
	if snap.StatusText != "" {
		b.WriteString(label.Render(" Status   ") + snap.StatusText + "\n")
	}
	if snap.Reason != "" && snap.State == models.StateFailed {
		b.WriteString(label.Render(" Reason   ") + lipgloss.NewStyle().Foreground(errorColor).Render(snap.Reason) + "\n")
	}

	if snap.Plan != nil {
		b.WriteString("\n" + renderPlan(snap.Plan))
	}
	if len(snap.Prompts) > 0 {
		b.WriteString("\n" + renderPrompts(snap.Prompts) + "\n")
	}
	if snap.Result != nil {
		b.WriteString("\n" + renderResult(snap.Result, snap.Verification))
	}
	return b.String()
}

// renderPlan lists the plan's actions in order.
func renderPlan(plan *models.ActionPlan) string {
	var b strings.Builder
	head := fmt.Sprintf(" Plan  risk:%s  confidence:%.2f", plan.RiskLevel, plan.Confidence)
	b.WriteString(lipgloss.NewStyle().Foreground(secondaryColor).Bold(true).Render(head) + "\n")
	if plan.Summary != "" {
		b.WriteString("   " + plan.Summary + "\n")
	}
	for i, a := range plan.Actions {
		line := fmt.Sprintf("   %d. %-16s %s", i+1, a.Kind.Normalize(), describeAction(a))
		if a.Destructive {
			line += lipgloss.NewStyle().Foreground(errorColor).Render("  [destructive]")
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func describeAction(a models.AgentAction) string {
	switch a.Kind.Normalize() {
	case models.KindType:
		return fmt.Sprintf("%q", truncate(a.Text, 40))
	case models.KindKeyCombo:
		return a.KeyCombo
	case models.KindOpenApp:
		if a.AppBundleID != "" {
			return a.AppBundleID
		}
		return a.Target
	case models.KindRunScript:
		return truncate(strings.ReplaceAll(a.Text, "\n", " "), 40)
	case models.KindWait:
		return fmt.Sprintf("%dms", a.TimeoutMs)
	}
	return a.Target
}

// renderPrompts shows pending confirmations.
func renderPrompts(prompts []models.SafetyPrompt) string {
	var lines []string
	warn := lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	for _, p := range prompts {
		lines = append(lines, warn.Render("⚠ "+p.Title)+helpStyle.Render("  ("+string(p.ApprovalMode)+")"))
		lines = append(lines, "  "+p.Message)
	}
	return promptBoxStyle.Render(strings.Join(lines, "\n"))
}

func renderResult(r *models.ExecutionResult, v *models.VerifyResponse) string {
	var b strings.Builder
	color := successColor
	switch r.Status {
	case models.ExecutionFailure:
		color = errorColor
	case models.ExecutionPartial:
		color = warningColor
	}
	b.WriteString(lipgloss.NewStyle().Foreground(color).Bold(true).
		Render(fmt.Sprintf(" Result  %s  %d completed", r.Status, len(r.CompletedActions))) + "\n")
	if r.FailedActionID != "" {
		b.WriteString(fmt.Sprintf("   failed at %s: %s\n", r.FailedActionID, r.Reason))
	}
	if r.RecoverySuggestion != "" {
		b.WriteString(helpStyle.Render("   "+r.RecoverySuggestion) + "\n")
	}
	if v != nil {
		line := fmt.Sprintf(" Verify  %s", v.Status)
		if v.Reason != "" {
			line += "  " + v.Reason
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// renderEvents builds the event log from planner events and decisions.
func renderEvents(events []models.StreamEvent, trail []models.SafetyDecisionRecord) string {
	if len(events) == 0 && len(trail) == 0 {
		return helpStyle.Render("  No events yet")
	}
	var lines []string
	for _, e := range events {
		line := fmt.Sprintf("  %-10s %s", e.Event, e.Message)
		if e.Progress != nil {
			line += fmt.Sprintf(" (%d%%)", *e.Progress)
		}
		if e.Severity == "error" {
			line = lipgloss.NewStyle().Foreground(errorColor).Render(line)
		}
		lines = append(lines, line)
	}
	for _, d := range trail {
		lines = append(lines, fmt.Sprintf("  %-10s %s %s", "decision", d.Category, d.Decision))
	}
	return strings.Join(lines, "\n")
}

func renderDecisions(decisions []models.SafetyDecisionRecord) string {
	if len(decisions) == 0 {
		return helpStyle.Render("  No safety decisions recorded") + "\n"
	}
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(" Decisions") + helpStyle.Render("  (Esc to go back)") + "\n")
	for _, d := range decisions {
		color := successColor
		if d.Decision == models.DecisionDenied {
			color = errorColor
		}
		b.WriteString(fmt.Sprintf("  %s  %-8s %-12s %-12s %s\n",
			d.Timestamp.Local().Format("15:04:05"),
			shortID(d.SessionID),
			d.Category,
			lipgloss.NewStyle().Foreground(color).Render(string(d.Decision)),
			d.ApprovalMode))
	}
	return b.String()
}

func renderHistory(sessions []models.SessionRecord) string {
	if len(sessions) == 0 {
		return helpStyle.Render("  No sessions yet") + "\n"
	}
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(" History") + helpStyle.Render("  (Esc to go back)") + "\n")
	for _, s := range sessions {
		b.WriteString(fmt.Sprintf("  %s  %-8s %-10s %s\n",
			s.UpdatedAt.Local().Format("01-02 15:04"),
			shortID(s.ID),
			s.State,
			truncate(s.Transcript, 50)))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
