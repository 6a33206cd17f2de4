package cli

import (
	"github.com/spf13/cobra"

	"github.com/foxlau/github-stars-manager/internal/collector"
	"github.com/foxlau/github-stars-manager/internal/metrics"
)

// NewListCommand creates the list command.
func NewListCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Save all starred repositories to the report",
		Long:  "Fetch every page of your starred repositories and rewrite the report with one numbered block per repository.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, root)
		},
	}
}

func runList(cmd *cobra.Command, root *RootOptions) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	logger := newLogger(cmd)

	stars, err := newStars(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	_, err = collector.New(stars, logger, collector.WithMetrics(m)).CollectFile(cmd.Context(), cfg.ReportPath)
	return finish(logger, cfg, m, err)
}
