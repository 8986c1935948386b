package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/imagerank/internal/wire"
)

// ProgressCmd returns the progress command.
func ProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show convergence metrics for the current catalog",
		Long: `Report the composite progress score and its four components —
coverage, confidence, boundary gap, and top-K stability — along with
a human-readable quality label and whether the portfolio is ready to
export.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := wire.SessionService().Progress(context.Background())
			if err != nil {
				return err
			}

			readiness := color.New(color.FgYellow).Sprint("not ready")
			if report.PortfolioReady {
				readiness = color.New(color.FgGreen).Sprint("ready")
			}

			fmt.Printf("progress:    %.1f%% (%s)\n", report.Progress, qualityColor(report.Quality))
			fmt.Printf("portfolio:   %s\n", readiness)
			fmt.Printf("coverage:    %.1f%%\n", report.Coverage*100)
			fmt.Printf("confidence:  %.1f%%\n", report.Confidence*100)
			fmt.Printf("boundary:    %.1f rating points\n", report.BoundaryGap)
			fmt.Printf("stability:   %.1f%%\n", report.Stability*100)
			return nil
		},
	}
	return cmd
}

func qualityColor(label string) string {
	switch label {
	case "excellent":
		return color.New(color.FgHiGreen).Sprint(label)
	case "very good", "good":
		return color.New(color.FgGreen).Sprint(label)
	case "fair":
		return color.New(color.FgYellow).Sprint(label)
	default:
		return color.New(color.FgRed).Sprint(label)
	}
}
