// Package cli implements the stars command line.
package cli

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"github.com/foxlau/github-stars-manager/internal/config"
	"github.com/foxlau/github-stars-manager/internal/gh"
	"github.com/foxlau/github-stars-manager/internal/metrics"
)

// RootOptions holds flags shared by every subcommand.
type RootOptions struct {
	ConfigPath string
	ReportPath string
}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "stars",
		Short:         "Manage your GitHub stars in bulk",
		Long:          "stars saves every repository you starred to a text report and unstars ranges of it.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.ReportPath, "report", "", "Report file (default stars.txt)")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))

	return cmd
}

// load reads the configuration and applies flag overrides.
func (o *RootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.ReportPath != "" {
		cfg.ReportPath = o.ReportPath
	}
	return cfg, nil
}

func newStars(ctx context.Context, cfg *config.Config) (*gh.Stars, error) {
	client, err := gh.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return gh.NewStars(client, cfg.PerPage), nil
}

func newLogger(cmd *cobra.Command) *log.Logger {
	return log.New(cmd.OutOrStdout(), "", 0)
}

// finish writes the metrics textfile without masking runErr.
func finish(logger *log.Logger, cfg *config.Config, m *metrics.Metrics, runErr error) error {
	if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
		if runErr != nil {
			logger.Printf("write metrics: %v", err)
			return runErr
		}
		return err
	}
	return runErr
}
