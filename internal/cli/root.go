package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/stackguard/internal/analysis"
	"github.com/ppiankov/stackguard/internal/logging"
	"github.com/ppiankov/stackguard/internal/model"
	"github.com/ppiankov/stackguard/internal/stack"
)

// Version is set at build time
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
	userID  string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "stackguard",
	Short: "Stackguard - supplement quality scoring and stack interaction checks",
	Long: `Stackguard scores supplement products for ingredient quality, bioavailability,
dosage, purity and value, and checks them against everything you already take
for known interactions and nutrient upper limits.

Scores come from a rule-based engine, optionally explained by an AI provider.
When the provider is unavailable the rule-based result is returned unchanged.

Stackguard is informational only. It is not medical advice.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of Stackguard.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "stackguard %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.stackguard/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "user id for rate limiting and stack lookup")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(dir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match STACKGUARD_*, e.g.
	// STACKGUARD_LLM_PROVIDER for llm.provider
	viper.SetEnvPrefix("STACKGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindConfigKeys(model.DefaultConfig())

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// bindConfigKeys registers every config key with viper so AutomaticEnv can
// resolve nested keys that appear in no config file.
func bindConfigKeys(defaults *model.Config) {
	settings := map[string]any{
		"rate_limit.enabled":                 defaults.RateLimit.Enabled,
		"rate_limit.max_scans":               defaults.RateLimit.MaxScans,
		"rate_limit.window":                  defaults.RateLimit.Window,
		"cache.enabled":                      defaults.Cache.Enabled,
		"cache.max_entries":                  defaults.Cache.MaxEntries,
		"cache.ttl":                          defaults.Cache.TTL,
		"cache.dir":                          defaults.Cache.Dir,
		"breaker.failure_threshold":          defaults.Breaker.FailureThreshold,
		"breaker.reset_timeout":              defaults.Breaker.ResetTimeout,
		"retry.max_retries":                  defaults.Retry.MaxRetries,
		"retry.base_delay":                   defaults.Retry.BaseDelay,
		"retry.max_delay":                    defaults.Retry.MaxDelay,
		"retry.multiplier":                   defaults.Retry.Multiplier,
		"retry.jitter":                       defaults.Retry.Jitter,
		"retry.attempt_timeout":              defaults.Retry.AttemptTimeout,
		"llm.provider":                       defaults.LLM.Provider,
		"llm.model":                          defaults.LLM.Model,
		"llm.classify_model":                 defaults.LLM.ClassifyModel,
		"llm.api_key":                        defaults.LLM.APIKey,
		"llm.base_url":                       defaults.LLM.BaseURL,
		"llm.timeout":                        defaults.LLM.Timeout,
		"llm.max_tokens":                     defaults.LLM.MaxTokens,
		"llm.classify_top_n":                 defaults.LLM.ClassifyTopN,
		"llm.http_proxy":                     defaults.LLM.HTTPProxy,
		"llm.https_proxy":                    defaults.LLM.HTTPSProxy,
		"interaction.endpoint":               defaults.Interaction.Endpoint,
		"interaction.call_timeout":           defaults.Interaction.CallTimeout,
		"interaction.requests_per_second":    defaults.Interaction.RequestsPerSecond,
		"interaction.burst":                  defaults.Interaction.Burst,
		"interaction.continue_on_rate_limit": defaults.Interaction.ContinueOnRateLimit,
		"lookup.base_url":                    defaults.Lookup.BaseURL,
		"lookup.catalog_file":                defaults.Lookup.CatalogFile,
		"lookup.timeout":                     defaults.Lookup.Timeout,
		"lookup.user_agent":                  defaults.Lookup.UserAgent,
		"stack.db_path":                      defaults.Stack.DBPath,
		"concurrency.workers":                defaults.Concurrency.Workers,
		"logging.level":                      defaults.Logging.Level,
		"logging.json":                       defaults.Logging.JSON,
	}
	for key, value := range settings {
		viper.SetDefault(key, value)
	}
}

// loadConfig resolves the layered configuration and fills API keys from
// the provider-specific environment variables.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	applyProviderEnv(&cfg.LLM)
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func applyProviderEnv(llmCfg *model.LLMConfig) {
	switch strings.ToLower(llmCfg.Provider) {
	case "openai":
		if llmCfg.APIKey == "" {
			llmCfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if llmCfg.APIKey == "" {
			llmCfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "huggingface", "hf":
		if llmCfg.APIKey == "" {
			llmCfg.APIKey = os.Getenv("HUGGINGFACE_API_KEY")
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && llmCfg.BaseURL == "" {
			llmCfg.BaseURL = baseURL
		}
	}
}

// openStackStore opens the SQLite stack database. With mustExist set, a
// missing database yields a nil store and no error.
func openStackStore(cfg *model.Config, mustExist bool) (stack.Store, error) {
	if mustExist {
		if _, err := os.Stat(cfg.Stack.DBPath); errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
	}
	store, err := stack.NewSQLiteStore(cfg.Stack.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open stack database: %w", err)
	}
	return store, nil
}

// newOrchestrator builds the analysis pipeline for a command
func newOrchestrator(cfg *model.Config, stacks stack.Store) (*analysis.Orchestrator, *slog.Logger) {
	logger := logging.New(cfg.Logging)
	return analysis.New(cfg, analysis.Dependencies{Stacks: stacks, Logger: logger}), logger
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".stackguard"), nil
}
