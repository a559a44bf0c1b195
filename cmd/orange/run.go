package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fentz26/orange/internal/models"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [command]",
	Short: "Plan and run a typed command",
	Long: `Sends the text as if it had been spoken. When the plan needs confirmation
the prompts are shown and you are asked before anything runs.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

func runCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client := newClient()

	snap, err := client.Command(ctx, strings.Join(args, " "))
	if snap.ID != "" {
		printSnapshot(snap)
	}
	if err != nil || snap.State != models.StateConfirming {
		return err
	}

	fmt.Print("\nProceed? [y/N] ")
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))

	if answer != "y" && answer != "yes" {
		_, err = client.Cancel(ctx)
		if err == nil {
			fmt.Println("Canceled.")
		}
		return err
	}

	snap, err = client.Confirm(ctx)
	fmt.Println()
	if snap.ID != "" {
		printSnapshot(snap)
	}
	return err
}
