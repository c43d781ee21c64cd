package cmd

import (
	"github.com/spf13/cobra"
)

var (
	configFile string
	dbURL      string
)

const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "fieldbridge",
	Short:   "FieldBridge rule-based schema translation engine",
	Long:    `FieldBridge translates records between schemas using declarative rule sets with filters, field mappings, defaults, and rule dependencies.`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "rule catalog database URL (sqlite://path or postgres://...)")
}

func Execute() error {
	return rootCmd.Execute()
}
