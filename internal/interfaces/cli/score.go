package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/turtacn/Synastry-Intelligence/internal/application/compatibility"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/synastry"
)

func NewScoreCmd() *cobra.Command {
	minorCap := -1
	cmd := &cobra.Command{
		Use:   "score <chart-a.json> <chart-b.json>",
		Short: "Score the compatibility of two natal charts",
		Long: "Reads two chart files (\"-\" for stdin) and prints the synastry aspects,\n" +
			"element and modality balance, the 0-100 score and the derived insights.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, args, minorCap)
		},
	}
	cmd.Flags().IntVar(&minorCap, "minor-cap", -1, "max minor aspects scored (default from config)")
	return cmd
}

func runScore(cmd *cobra.Command, args []string, minorCapOverride int) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	res, err := scoreFiles(cmd, cliCtx, args[0], args[1], minorCapOverride)
	if err != nil {
		return err
	}
	if cliCtx.OutputFormat == "json" {
		return printJSON(cmd, res)
	}
	renderResult(cmd.OutOrStdout(), res)
	return nil
}

// scoreFiles runs the in-process scoring pipeline; nothing is stored.  A
// negative minorCapOverride keeps the configured cap.
func scoreFiles(cmd *cobra.Command, cliCtx *CLIContext, pathA, pathB string, minorCapOverride int) (*synastry.Result, error) {
	a, err := readChart(cmd, pathA)
	if err != nil {
		return nil, err
	}
	b, err := readChart(cmd, pathB)
	if err != nil {
		return nil, err
	}

	minorCap := cliCtx.Config.Scoring.MinorAspectCap
	if minorCapOverride >= 0 {
		minorCap = minorCapOverride
	}
	svc := compatibility.NewService(
		compatibility.Config{MinorAspectCap: minorCap},
		compatibility.Deps{Logger: cliCtx.Logger},
	)

	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()
	return svc.Score(ctx, a, b)
}
