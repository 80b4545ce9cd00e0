package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sophialabs/clientmock/internal/app"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "clientmock",
		Short: "clientmock - rule-driven HTTP mock server",
		Long: `clientmock serves canned HTTP responses selected by declarative rules.
Rules are read from YAML files under the root directory. The last matching
rule wins and successive responses are returned in order.`,
		SilenceUsage: true,
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./clientmock.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
}

// loadConfig reads the config file and environment, then lets the flags
// named in bindings (config key to flag name) override them when set.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (app.Config, error) {
	v, err := app.NewViper(cfgFile)
	if err != nil {
		return app.Config{}, err
	}
	for key, name := range bindings {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return app.Config{}, fmt.Errorf("failed to bind flag %q: %w", name, err)
			}
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
	return app.ConfigFromViper(v)
}
