package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	v          = viper.New()
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:          "linker",
	Short:        "Cluster entity mentions and link them to a knowledge base",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initConfig()
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "YAML config file")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	flags.String("strategy", string(model.StrategyNastyLinker), "assignment strategy (bottom_up, majority, nasty_linker)")
	flags.String("reranking-mode", string(model.RerankingNone), "reranking mode (none, mention, entity, full)")
	flags.Float64("mention-threshold", 0.8, "retention threshold for mention-mention edges")
	flags.Float64("entity-threshold", 0.5, "retention threshold for mention-entity edges")
	flags.Float64("assignment-threshold", 0.75, "acceptance threshold for cluster assignments")
	flags.String("aggregation", "", "candidate score aggregation (mean, max), empty for the strategy default")
	flags.Float64("margin", 0.05, "nasty_linker margin between the best and second candidate")
	flags.Int("top-k", 10, "candidates per mention kept for reranking")
	flags.Int("workers", 0, "assignment workers, 0 for one per CPU")

	flags.String("scorer", "none", "second-pass scorer (none, embedding, http)")
	flags.String("scorer-model", "", "huggingface model for the embedding scorer")
	flags.String("scorer-url", "", "origin of the cross-encoder service for the http scorer")
	flags.Duration("scorer-timeout", 0, "request timeout of the http scorer")
}

// initConfig binds flags, the config file and LINKER_* environment variables.
// Precedence: flags > environment > config file > defaults.
func initConfig() error {
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return helper.NewError("read config", err)
		}
	}

	// E.g. LINKER_MENTION_THRESHOLD maps to "mention_threshold"
	v.SetEnvPrefix("LINKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	defaults := model.DefaultThresholdConfig()
	v.SetDefault("strategy", string(defaults.Strategy))
	v.SetDefault("reranking_mode", string(defaults.RerankingMode))
	v.SetDefault("mention_threshold", defaults.MentionThreshold)
	v.SetDefault("entity_threshold", defaults.EntityThreshold)
	v.SetDefault("assignment_threshold", defaults.AssignmentThreshold)
	v.SetDefault("aggregation", string(defaults.Aggregation))
	v.SetDefault("margin", defaults.Margin)
	v.SetDefault("top_k", defaults.TopK)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("scorer.kind", "none")
	v.SetDefault("scorer.model", "")
	v.SetDefault("scorer.url", "")
	v.SetDefault("scorer.timeout", "30s")

	flags := rootCmd.PersistentFlags()
	bindings := map[string]string{
		"strategy":             "strategy",
		"reranking_mode":       "reranking-mode",
		"mention_threshold":    "mention-threshold",
		"entity_threshold":     "entity-threshold",
		"assignment_threshold": "assignment-threshold",
		"aggregation":          "aggregation",
		"margin":               "margin",
		"top_k":                "top-k",
		"workers":              "workers",
		"scorer.kind":          "scorer",
		"scorer.model":         "scorer-model",
		"scorer.url":           "scorer-url",
		"scorer.timeout":       "scorer-timeout",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return helper.NewError(fmt.Sprintf("bind flag %s", flag), err)
		}
	}

	return nil
}

// thresholdConfig decodes the bound settings and validates them.
func thresholdConfig() (model.ThresholdConfig, error) {
	var config model.ThresholdConfig
	if err := v.Unmarshal(&config); err != nil {
		return config, helper.NewError("decode config", err)
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}
	return helper.NewLogger(os.Stderr, level)
}

func parseRunID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, helper.NewConfigurationError("run", fmt.Sprintf("invalid run id %q", s))
	}
	return id, nil
}
