package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fentz26/orange/internal/models"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recorded safety decisions",
	RunE:  runAudit,
}

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "List recent sessions, or show one with its action runs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

var (
	auditSession string
	auditLimit   int
	historyLimit int
)

func init() {
	auditCmd.Flags().StringVar(&auditSession, "session", "", "Only decisions for this session id")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum rows to show")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum sessions to list")
}

func runAudit(cmd *cobra.Command, args []string) error {
	decisions, err := newClient().Decisions(cmd.Context(), auditSession, auditLimit)
	if err != nil {
		return err
	}
	if len(decisions) == 0 {
		fmt.Println("No decisions recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSESSION\tCATEGORY\tDECISION\tMODE\tINPUTS")
	for _, d := range decisions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Timestamp.Local().Format("2006-01-02 15:04:05"),
			truncateID(d.SessionID),
			d.Category,
			d.Decision,
			d.ApprovalMode,
			truncateID(d.InputsHash),
		)
	}
	return w.Flush()
}

func runHistory(cmd *cobra.Command, args []string) error {
	client := newClient()
	if len(args) == 1 {
		detail, err := client.SessionDetail(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		s := detail.Session
		fmt.Printf("Session:    %s\n", s.ID)
		fmt.Printf("State:      %s\n", s.State)
		fmt.Printf("Transcript: %q\n", s.Transcript)
		if s.RiskLevel != "" {
			fmt.Printf("Risk:       %s\n", s.RiskLevel)
		}
		if s.Reason != "" {
			fmt.Printf("Reason:     %s\n", s.Reason)
		}
		fmt.Printf("Updated:    %s\n", s.UpdatedAt.Local().Format("2006-01-02 15:04:05"))

		if len(detail.Runs) > 0 {
			fmt.Println()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ACTION\tKIND\tSTATUS\tLATENCY\tERROR")
			for _, r := range detail.Runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%s\n", r.ActionID, r.Kind, r.Status, r.LatencyMs, r.ErrorCode)
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
		if len(detail.Telemetry) > 0 {
			fmt.Println()
			return printTelemetry(os.Stdout, detail.Telemetry)
		}
		return nil
	}

	sessions, err := client.Sessions(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUPDATED\tSTATE\tRISK\tTRANSCRIPT")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncateID(s.ID),
			s.UpdatedAt.Local().Format("01-02 15:04"),
			s.State,
			s.RiskLevel,
			truncate(s.Transcript, 50),
		)
	}
	return w.Flush()
}

// printTelemetry lists a session's stage events in the order they were emitted.
func printTelemetry(out io.Writer, events []models.TelemetryEvent) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tSTATUS\tLATENCY\tERROR")
	for _, ev := range events {
		latency := "-"
		if ev.LatencyMs != nil {
			latency = fmt.Sprintf("%dms", *ev.LatencyMs)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ev.Stage, ev.Status, latency, ev.ErrorCode)
	}
	return w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
