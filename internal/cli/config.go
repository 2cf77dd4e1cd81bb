package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/riskiq/internal/domain"
)

// providerKeyEnv names the conventional API key variable of each provider,
// used when inference.apiKey is unset.
var providerKeyEnv = map[string][]string{
	"huggingface": {"HUGGINGFACE_API_KEY", "HF_API_TOKEN"},
	"hf":          {"HUGGINGFACE_API_KEY", "HF_API_TOKEN"},
	"openai":      {"OPENAI_API_KEY"},
	"gemini":      {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// loadConfig resolves the configuration. Precedence, highest first:
// RISKIQ_* environment, config file, tier defaults.
func loadConfig(v *viper.Viper) (*domain.Config, error) {
	cfg := domain.DefaultConfig()
	if domain.Tier(strings.ToLower(v.GetString("tier"))) == domain.TierPro {
		cfg = domain.ProConfig()
	}

	if err := registerDefaults(v, cfg); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Inference.APIKey == "" {
		for _, name := range providerKeyEnv[strings.ToLower(cfg.Inference.Provider)] {
			if key := os.Getenv(name); key != "" {
				cfg.Inference.APIKey = key
				break
			}
		}
	}
	return cfg, nil
}

// registerDefaults makes every config key known to viper so that
// AutomaticEnv can override keys absent from the config file.
func registerDefaults(v *viper.Viper, cfg *domain.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to decode defaults: %w", err)
	}
	setDefaults(v, "", tree)
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for key, val := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// redacted returns a copy safe to print.
func redacted(cfg *domain.Config) *domain.Config {
	out := *cfg
	if out.Inference.APIKey != "" {
		out.Inference.APIKey = "********"
	}
	if out.Repository.PostgresPassword != "" {
		out.Repository.PostgresPassword = "********"
	}
	if out.Cache.RedisPassword != "" {
		out.Cache.RedisPassword = "********"
	}
	if out.EventBus.NATSToken != "" {
		out.EventBus.NATSToken = "********"
	}
	return &out
}

func (a *app) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage RiskIQ configuration",
		Long: `Manage RiskIQ configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. Environment variables (RISKIQ_*, e.g. RISKIQ_SERVER_PORT)
2. Config file (~/.riskiq/config.yaml)
3. Tier defaults (RISKIQ_TIER=pro selects Postgres, Redis and NATS)`,
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(a.v)
			if err != nil {
				return err
			}

			if file := a.v.ConfigFileUsed(); file != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", file)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found (using defaults)\n\n")
			}

			data, err := yaml.Marshal(redacted(cfg))
			if err != nil {
				return fmt.Errorf("error marshaling config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("error finding home directory: %w", err)
				}
				path = filepath.Join(home, ".riskiq", "config.yaml")
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("error creating config directory: %w", err)
			}

			data, err := yaml.Marshal(domain.DefaultConfig())
			if err != nil {
				return fmt.Errorf("error marshaling config: %w", err)
			}
			header := "# RiskIQ configuration\n" +
				"# Environment variables (RISKIQ_*) override these values.\n" +
				"# Prefer HUGGINGFACE_API_KEY / OPENAI_API_KEY / GEMINI_API_KEY over inference.apiKey.\n\n"
			if err := os.WriteFile(path, append([]byte(header), data...), 0o600); err != nil {
				return fmt.Errorf("error writing config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created default configuration: %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(show, initCmd)
	return cmd
}
