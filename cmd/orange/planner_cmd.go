package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fentz26/orange/internal/models"
	"github.com/fentz26/orange/internal/planner"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// These commands talk to the planner sidecar directly; the daemon need not run.

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Inspect the planner's model provider",
}

var providerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show provider configuration and health",
	RunE:  runProviderStatus,
}

var providerValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a provider API key",
	RunE:  runProviderValidate,
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show which model serves which app",
	RunE:  runModels,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate [command]",
	Short: "Dry-run planning for a command without screen context",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSimulate,
}

var (
	providerName string
	providerKey  string
	simulateApp  string
	simulateJSON bool
)

func init() {
	providerCmd.AddCommand(providerStatusCmd, providerValidateCmd)

	providerValidateCmd.Flags().StringVar(&providerName, "provider", "anthropic", "Provider name")
	providerValidateCmd.Flags().StringVar(&providerKey, "key", "", "API key to validate (default: $ORANGE_PROVIDER_KEY)")

	simulateCmd.Flags().StringVar(&simulateApp, "app", "", "Frontmost app name to assume")
	simulateCmd.Flags().BoolVar(&simulateJSON, "json", false, "Print the raw response")
}

func newPlanner() *planner.Client {
	return planner.NewClient(cfg.Planner.URL, cfg.Planner.Timeout)
}

func runProviderStatus(cmd *cobra.Command, args []string) error {
	st, err := newPlanner().ProviderStatus(cmd.Context())
	if err != nil {
		return err
	}

	health := okStyle.Render("healthy")
	if !st.Health {
		health = errStyle.Render("unhealthy")
	}
	key := okStyle.Render("configured")
	if !st.KeyConfigured {
		key = warnStyle.Render("missing")
	}
	fmt.Printf("Provider:      %s (%s)\n", st.Provider, health)
	fmt.Printf("API key:       %s\n", key)
	fmt.Printf("Simple model:  %s\n", st.ModelSimple)
	fmt.Printf("Complex model: %s\n", st.ModelComplex)
	return nil
}

func runProviderValidate(cmd *cobra.Command, args []string) error {
	key := providerKey
	if key == "" {
		key = strings.TrimSpace(os.Getenv("ORANGE_PROVIDER_KEY"))
	}
	if key == "" {
		return fmt.Errorf("no key given: pass --key or set ORANGE_PROVIDER_KEY")
	}

	resp, err := newPlanner().ValidateProvider(cmd.Context(), models.ProviderValidateRequest{
		Provider: providerName,
		APIKey:   key,
	})
	if err != nil {
		return err
	}
	if !resp.Valid {
		return fmt.Errorf("%s key rejected: %s", resp.Provider, resp.Reason)
	}
	fmt.Printf("%s %s key is valid", okStyle.Render("✓"), resp.Provider)
	if resp.AccountHint != "" {
		fmt.Printf(" (%s)", resp.AccountHint)
	}
	fmt.Println()
	return nil
}

func runModels(cmd *cobra.Command, args []string) error {
	resp, err := newPlanner().Models(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "APP\tMODEL\tREASON")
	for _, r := range resp.Routing {
		app := r.App
		if app == "" {
			app = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", app, r.Model, r.Reason)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(resp.FeatureFlags) > 0 {
		names := make([]string, 0, len(resp.FeatureFlags))
		for k := range resp.FeatureFlags {
			names = append(names, k)
		}
		sort.Strings(names)
		fmt.Println("\nFeature flags:")
		for _, k := range names {
			fmt.Printf("  %s=%s\n", k, resp.FeatureFlags[k])
		}
	}
	return nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	resp, err := newPlanner().Simulate(cmd.Context(), models.PlanSimulationRequest{
		SchemaVersion: models.SchemaVersion,
		SessionID:     uuid.New().String(),
		Transcript:    strings.Join(args, " "),
		App:           models.AppMetadata{Name: simulateApp},
		Preferences: &models.PlannerPreferences{
			PreferredModel: cfg.Planner.PreferredModel,
			Locale:         cfg.Planner.Locale,
			LowLatency:     cfg.Planner.LowLatency,
		},
	})
	if err != nil {
		return err
	}

	if simulateJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	valid := okStyle.Render("valid")
	if !resp.IsValid {
		valid = errStyle.Render("invalid")
	}
	fmt.Printf("Plan:         %s\n", valid)
	fmt.Printf("Summary:      %s\n", resp.Summary)
	fmt.Printf("Actions:      %d\n", resp.ProposedActionsCount)
	fmt.Printf("Risk:         %s\n", resp.RiskLevel)
	fmt.Printf("Confirmation: %t\n", resp.RequiresConfirmation)
	for _, e := range resp.ParseErrors {
		fmt.Printf("  %s %s\n", errStyle.Render("✗"), e)
	}
	if resp.RecoveryGuidance != "" {
		fmt.Printf("Guidance:     %s\n", resp.RecoveryGuidance)
	}
	return nil
}
