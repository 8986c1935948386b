package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/imagerank/internal/wire"
)

// ScanCmd returns the scan command.
func ScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <directory>",
		Short: "Set the catalog root and register its images",
		Long: `Walk <directory>, content-address every supported image file by its
SHA-256 digest, and register each newly-discovered digest with the
rating store at its initial posterior.

Rescanning an unchanged directory reuses cached digests rather than
rehashing every file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := wire.CatalogService().SetRoot(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s catalog root set: %d image(s) registered\n",
				color.New(color.FgGreen).Sprint("✓"), resp.ImageCount)
			return nil
		},
	}
	return cmd
}
