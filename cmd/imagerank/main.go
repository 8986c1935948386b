package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/imagerank/internal/cli"
	"github.com/example/imagerank/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "imagerank",
		Short:   "imagerank - Bayesian pairwise rating over a local image set",
		Version: version.String(),
		Long: `imagerank content-addresses the images under a directory, then runs
a pairwise-comparison loop that converges a Bayesian-flavored Elo
rating for each image toward a stable top-K ranking.`,
	}

	rootCmd.AddCommand(cli.ScanCmd())
	rootCmd.AddCommand(cli.PairCmd())
	rootCmd.AddCommand(cli.ChooseCmd())
	rootCmd.AddCommand(cli.ProgressCmd())
	rootCmd.AddCommand(cli.ResetCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
