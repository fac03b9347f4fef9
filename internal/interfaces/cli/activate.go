package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/Synastry-Intelligence/internal/domain/transit"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

type activateOptions struct {
	transitsA string
	transitsB string
	date      string
}

func NewActivateCmd() *cobra.Command {
	opts := &activateOptions{}
	cmd := &cobra.Command{
		Use:   "activate <chart-a.json> <chart-b.json>",
		Short: "Show which synastry aspects a day's transits activate",
		Long: "Scores the two charts, then matches each person's transit list (a JSON\n" +
			"array of transit aspects) against the synastry aspects and rates the day.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActivate(cmd, opts, args)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.transitsA, "transits-a", "", "transit list of person A (JSON file)")
	f.StringVar(&opts.transitsB, "transits-b", "", "transit list of person B (JSON file)")
	f.StringVar(&opts.date, "date", "", "day the transits cover, YYYY-MM-DD (default today, UTC)")
	_ = cmd.MarkFlagRequired("transits-a")
	_ = cmd.MarkFlagRequired("transits-b")
	return cmd
}

func readTransits(cmd *cobra.Command, path string) ([]transit.Aspect, error) {
	out := []transit.Aspect{}
	if err := readJSONFile(cmd, path, &out); err != nil {
		return nil, err
	}
	if err := transit.ValidateAll(out); err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeTransitsInvalid, "transits in %s", path)
	}
	return out, nil
}

func runActivate(cmd *cobra.Command, opts *activateOptions, args []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	day := time.Now().UTC().Truncate(24 * time.Hour)
	if opts.date != "" {
		day, err = time.Parse("2006-01-02", opts.date)
		if err != nil {
			return errors.Newf(errors.ErrCodeValidation, "date %q is not YYYY-MM-DD", opts.date)
		}
	}

	tA, err := readTransits(cmd, opts.transitsA)
	if err != nil {
		return err
	}
	tB, err := readTransits(cmd, opts.transitsB)
	if err != nil {
		return err
	}
	res, err := scoreFiles(cmd, cliCtx, args[0], args[1], -1)
	if err != nil {
		return err
	}

	out := &transit.DailyActivation{
		ChartAID:   res.ChartAID,
		ChartBID:   res.ChartBID,
		Date:       day,
		Activation: transit.Match(res.Aspects, tA, tB),
	}
	cliCtx.Logger.Debug("activation matched",
		logging.Int("triggered", len(out.Triggered)),
		logging.String("energy", string(out.Energy)),
	)
	if cliCtx.OutputFormat == "json" {
		return printJSON(cmd, out)
	}
	renderActivation(cmd.OutOrStdout(), out)
	return nil
}
