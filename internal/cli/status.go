package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stackguard/internal/resilience"
)

var showMetrics bool

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show rate limit, circuit breaker and provider status",
	Long: `Status reports the state of the analysis pipeline for this process:
the AI provider, the circuit breaker guarding it, and the user's remaining scans.

Example:
  stackguard status --user alice
  stackguard status --metrics`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&showMetrics, "metrics", false, "print collected metrics")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	orch, _ := newOrchestrator(cfg, nil)
	out := cmd.OutOrStdout()

	provider := orch.ProviderName()
	if provider == "" {
		provider = "disabled (rule-based only)"
	}
	fmt.Fprintf(out, "AI provider:      %s\n", provider)

	breaker := orch.CircuitBreakerStatus()
	fmt.Fprintf(out, "Circuit breaker:  %s (failures: %d)\n", breaker.State, breaker.Failures)
	if breaker.State != resilience.CircuitClosed && breaker.SinceLastFailure > 0 {
		fmt.Fprintf(out, "                  last failure %s ago\n", breaker.SinceLastFailure.Round(time.Second))
	}

	rl := orch.RateLimitStatus(userID)
	switch {
	case !cfg.RateLimit.Enabled:
		fmt.Fprintf(out, "Rate limit:       disabled\n")
	case rl.Allowed:
		fmt.Fprintf(out, "Rate limit:       %d of %d scans left per %s\n", rl.Remaining, cfg.RateLimit.MaxScans, cfg.RateLimit.Window)
	default:
		fmt.Fprintf(out, "Rate limit:       exhausted, resets in %s\n", rl.ResetIn.Round(time.Second))
	}

	if showMetrics {
		fmt.Fprintln(out)
		return orch.Metrics().WriteText(out)
	}
	return nil
}
