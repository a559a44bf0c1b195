package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/orange/internal/controlplane"
	"github.com/fentz26/orange/internal/models"
	"github.com/fentz26/orange/internal/session"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Drive the daemon's voice session",
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := newClient().Session(cmd.Context())
		if err != nil {
			return err
		}
		printSnapshot(snap)
		return nil
	},
}

var sessionBeginCmd = &cobra.Command{
	Use:   "begin",
	Short: "Start recording a spoken command",
	RunE:  sessionAction((*controlplane.Client).Begin),
}

var sessionStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop recording, then plan and run the command",
	RunE:  sessionAction((*controlplane.Client).Stop),
}

var sessionConfirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Approve the pending prompts and run the plan",
	RunE:  sessionAction((*controlplane.Client).Confirm),
}

var sessionCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the current command",
	RunE:  sessionAction((*controlplane.Client).Cancel),
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Start over with a new, idle session",
	RunE:  sessionAction((*controlplane.Client).Reset),
}

var sessionSayCmd = &cobra.Command{
	Use:   "say [text]",
	Short: "Push recognized speech into the active recording",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newClient().Transcript(cmd.Context(), strings.Join(args, " "), sayFinal)
	},
}

var sayFinal bool

func init() {
	sessionCmd.AddCommand(sessionStatusCmd, sessionBeginCmd, sessionStopCmd, sessionConfirmCmd,
		sessionCancelCmd, sessionResetCmd, sessionSayCmd)

	sessionSayCmd.Flags().BoolVar(&sayFinal, "final", false, "Mark the text as the final transcript")
}

func newClient() *controlplane.Client {
	return controlplane.NewClient(apiAddr)
}

type actionFunc func(*controlplane.Client, context.Context) (session.Snapshot, error)

func sessionAction(fn actionFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		snap, err := fn(newClient(), cmd.Context())
		if snap.ID != "" {
			printSnapshot(snap)
		}
		return err
	}
}

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
)

func stateStyle(state models.SessionState) lipgloss.Style {
	switch state {
	case models.StateDone:
		return okStyle
	case models.StateFailed:
		return errStyle
	case models.StateConfirming, models.StateCanceled:
		return warnStyle
	}
	return lipgloss.NewStyle().Bold(true)
}

func printSnapshot(snap session.Snapshot) {
	fmt.Printf("%s %s  %s\n", labelStyle.Render("Session:"), snap.ID, stateStyle(snap.State).Render(string(snap.State)))
	if snap.Transcript != "" {
		fmt.Printf("%s %q\n", labelStyle.Render("Heard:  "), snap.Transcript)
	} else if snap.PartialTranscript != "" {
		fmt.Printf("%s %q…\n", labelStyle.Render("Hearing:"), snap.PartialTranscript)
	}
	if snap.StatusText != "" {
		fmt.Printf("%s %s\n", labelStyle.Render("Status: "), snap.StatusText)
	}
	if snap.Reason != "" {
		fmt.Printf("%s %s\n", labelStyle.Render("Reason: "), snap.Reason)
	}

	if p := snap.Plan; p != nil {
		fmt.Printf("\nPlan (risk %s, confidence %.2f)\n", p.RiskLevel, p.Confidence)
		for i, a := range p.Actions {
			detail := a.Target
			switch a.Kind.Normalize() {
			case models.KindType, models.KindRunScript:
				detail = a.Text
			case models.KindKeyCombo:
				detail = a.KeyCombo
			case models.KindOpenApp:
				if a.AppBundleID != "" {
					detail = a.AppBundleID
				}
			}
			fmt.Printf("  %d. %-16s %s\n", i+1, a.Kind.Normalize(), truncate(strings.ReplaceAll(detail, "\n", " "), 60))
		}
	}

	if len(snap.Prompts) > 0 {
		fmt.Println()
		for _, p := range snap.Prompts {
			fmt.Printf("%s %s (%s)\n  %s\n", warnStyle.Render("⚠"), p.Title, p.ApprovalMode, p.Message)
		}
	}

	if r := snap.Result; r != nil {
		fmt.Printf("\nResult: %s, %d action(s) completed\n", r.Status, len(r.CompletedActions))
		if r.FailedActionID != "" {
			fmt.Printf("  failed at %s: %s\n", r.FailedActionID, r.Reason)
		}
		if r.RecoverySuggestion != "" {
			fmt.Printf("  %s\n", r.RecoverySuggestion)
		}
	}
	if v := snap.Verification; v != nil {
		fmt.Printf("Verify: %s %s\n", v.Status, v.Reason)
	}
	if snap.NeedsCredential {
		fmt.Fprintln(os.Stderr, "The planner has no usable API key. Run `orange provider validate --key <key>` to check one.")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
