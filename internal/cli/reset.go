package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/imagerank/internal/wire"
)

// ResetCmd returns the reset command.
func ResetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear all ratings, the choice log, and the round counter",
		Long: `Reset every image's posterior to its initial state, wipe the
append-only choice log, and zero the round counter. The catalog's
digest-to-path mapping is unaffected: re-running pair will rebuild
ratings from scratch against the same image set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				fmt.Print("This clears every rating and the full choice history. Continue? [y/N]: ")
				var response string
				fmt.Scanln(&response)
				if response != "y" && response != "Y" {
					fmt.Println("Aborted")
					return nil
				}
			}

			if err := wire.SessionService().Reset(context.Background()); err != nil {
				return err
			}
			fmt.Printf("%s all ratings reset\n", color.New(color.FgGreen).Sprint("✓"))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation prompt")
	return cmd
}
