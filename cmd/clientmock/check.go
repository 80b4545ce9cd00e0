package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sophialabs/clientmock/internal/app"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate rule files without serving",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringP("root", "r", "", "override rules root directory")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, map[string]string{"root_dir": "root"})
	if err != nil {
		return err
	}
	cfg.LogLevel = "error"

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	report, err := a.Check(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, p := range report.Problems {
		fmt.Fprintf(out, "%s (%s): %v\n", p.ID, p.SourceFile, p.Err)
	}
	if len(report.Problems) > 0 {
		return fmt.Errorf("%d of %d rules failed to compile", len(report.Problems), len(report.Problems)+report.Compiled)
	}
	fmt.Fprintf(out, "ok: %d rules compiled\n", report.Compiled)
	return nil
}
