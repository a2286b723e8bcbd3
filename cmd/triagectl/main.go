package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"medtriage/internal/config"
	"medtriage/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "triagectl",
	Short: "Operate the emergency triage assessment service",
	Long: `triagectl runs single assessments and checks the service's dependencies:
model access on Bedrock, the Postgres instance and the local audit log.

Configuration comes from .env, an optional YAML file and the environment.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "info"
		if verbose {
			level = "debug"
		}
		var err error
		logger, err = logging.New(config.LoggingConfig{Level: level, Development: true})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (default: $TRIAGE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	assessCmd.Flags().StringVarP(&assessFile, "file", "f", "", "Request JSON file (default: stdin)")
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "Number of entries to show")
	checkModelsCmd.Flags().IntVar(&probeLimit, "parallel", 4, "Concurrent probe calls")

	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(checkModelsCmd)
	rootCmd.AddCommand(checkDBCmd)
	rootCmd.AddCommand(agentSchemaCmd)
	rootCmd.AddCommand(auditCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
