package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/imagerank/internal/ports/primary"
	"github.com/example/imagerank/internal/wire"
)

// PairCmd returns the pair command.
func PairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Show the next pair of images to compare",
		Long: `Select the next pair of images per the rating engine's scheduling
policy and print the round number and both digests.

Fails with NoDirectorySet if scan has never been run, or
NotEnoughImages if the catalog has fewer than two eligible images.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, err := wire.SessionService().NextPair(context.Background())
			if err != nil {
				if tag := coreErrorTag(err); tag == primary.TagNoDirectorySet {
					fmt.Println(color.New(color.FgYellow).Sprint("no catalog root set yet — run `imagerank scan <directory>` first"))
					return nil
				}
				return err
			}
			fmt.Printf("round %d\n", pair.Round)
			fmt.Printf("  %s left:  %s\n", color.New(color.FgCyan).Sprint("◀"), pair.Left.Digest)
			fmt.Printf("  %s right: %s\n", color.New(color.FgCyan).Sprint("▶"), pair.Right.Digest)
			return nil
		},
	}
	return cmd
}
