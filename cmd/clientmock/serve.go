package main

import (
	"github.com/spf13/cobra"

	"github.com/sophialabs/clientmock/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock server",
	Long: `Starts the mock server.

The server will:
  - Load rules from the root directory and reload them on change
  - Expose the admin API at /__admin/
  - Answer every other request from the registered rules`,
	RunE: runServe,
}

var serveBindings = map[string]string{
	"port":         "port",
	"root_dir":     "root",
	"debug":        "debug",
	"default_host": "default-host",
	"log.level":    "log-level",
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "override server port")
	serveCmd.Flags().StringP("root", "r", "", "override rules root directory")
	serveCmd.Flags().Bool("debug", false, "trace every request, not only unmatched ones")
	serveCmd.Flags().String("default-host", "", "absolute URL joined into rules whose url starts with /")
	serveCmd.Flags().String("log-level", "", "log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, serveBindings)
	if err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	return a.Run(cmd.Context())
}
