package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cutpilot/cutpilot-agent/internal/export"
)

var edlTitle string

var edlCmd = &cobra.Command{
	Use:   "edl <output-dir>",
	Short: "Write the configured track as a CMX3600 edit decision list",
	Args:  cobra.ExactArgs(1),
	RunE:  runEDL,
}

func init() {
	edlCmd.Flags().StringVar(&edlTitle, "title", "", "List title and file name (default: sequence name)")
}

func runEDL(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	if err := export.ValidateOutputDir(dir); err != nil {
		return err
	}

	a, err := setup(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	resp, err := a.agent.ExportEDL(ctx, dir, edlTitle)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d events at %g fps to %s\n", resp.EventCount, resp.FrameRate, resp.OutputPath)
	return nil
}
