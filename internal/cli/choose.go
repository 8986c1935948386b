package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/imagerank/internal/ports/primary"
	"github.com/example/imagerank/internal/wire"
)

// ChooseCmd returns the choose command.
func ChooseCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "choose <round> <left-digest> <right-digest> <left|right|skip>",
		Short: "Record the human's verdict on a shown pair",
		Long: `Commit a LEFT/RIGHT/SKIP outcome for the pair shown at <round>,
updating both images' posteriors atomically and advancing the round
counter by one.

Fails with StaleRound if <round> no longer matches the current round
(another choice already committed), or DigestMismatch if --strict is
set and the pair does not match the most recent pair command's output.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			round, err := parseRound(args[0])
			if err != nil {
				return err
			}
			outcome, err := parseOutcome(args[3])
			if err != nil {
				return err
			}

			resp, err := wire.SessionService().RecordChoice(context.Background(), round, args[1], args[2], outcome, strict)
			if err != nil {
				return err
			}
			fmt.Printf("%s recorded, next round is %d\n", color.New(color.FgGreen).Sprint("✓"), resp.NextRound)
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "require the pair to match the most recent `pair` command's output")
	return cmd
}

func parseRound(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n < 0 {
		return 0, fmt.Errorf("invalid round %q", s)
	}
	return n, nil
}

func parseOutcome(s string) (primary.ChoiceOutcome, error) {
	switch s {
	case "left":
		return primary.ChoiceLeft, nil
	case "right":
		return primary.ChoiceRight, nil
	case "skip":
		return primary.ChoiceSkip, nil
	default:
		return "", fmt.Errorf("outcome must be one of left, right, skip, got %q", s)
	}
}
