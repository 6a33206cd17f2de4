package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foxlau/github-stars-manager/internal/metrics"
	"github.com/foxlau/github-stars-manager/internal/remover"
	"github.com/foxlau/github-stars-manager/internal/report"
)

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [startIndex] [endIndex]",
		Short: "Unstar a range of repositories from the report",
		Long: "Unstar every repository of the report whose index lies in [startIndex, endIndex].\n" +
			"startIndex defaults to 1 and endIndex to the last record; non-numeric values use the default.",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(cmd, root, ParseRange(args))
		},
	}
}

// ParseRange reads the optional start and end arguments. A value without a
// leading number, or zero, falls back to the default for its position.
func ParseRange(args []string) report.Range {
	r := report.FullRange()
	if len(args) > 0 {
		if n, ok := report.LeadingInt(args[0]); ok && n != 0 {
			r.Start = n
		}
	}
	if len(args) > 1 {
		if n, ok := report.LeadingInt(args[1]); ok && n != 0 {
			r.End = n
		}
	}
	return r
}

func runRemove(cmd *cobra.Command, root *RootOptions, rng report.Range) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	logger := newLogger(cmd)

	text, err := report.ReadFile(cfg.ReportPath)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	stars, err := newStars(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	r := remover.New(stars, logger, remover.WithDelay(cfg.UnstarDelay), remover.WithMetrics(m))
	_, err = r.RemoveRange(cmd.Context(), text, rng)
	return finish(logger, cfg, m, err)
}
