package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/Synastry-Intelligence/internal/domain/chart"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/synastry"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/transit"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

// readJSONFile decodes path into dst; "-" reads stdin.
func readJSONFile(cmd *cobra.Command, path string, dst interface{}) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, errors.ErrCodeBadRequest, "open %s", path)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrapf(err, errors.ErrCodeBadRequest, "decode %s", path)
	}
	return nil
}

func readChart(cmd *cobra.Command, path string) (*chart.Chart, error) {
	var c chart.Chart
	if err := readJSONFile(cmd, path, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func printJSON(cmd *cobra.Command, data interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

func colorizeScore(score int) string {
	s := fmt.Sprintf("%d/100", score)
	switch {
	case score >= 70:
		return color.GreenString(s)
	case score >= 45:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

func colorizeEnergy(e transit.EnergyRating) string {
	switch e {
	case transit.EnergyHarmonious:
		return color.GreenString(string(e))
	case transit.EnergyChallenging:
		return color.RedString(string(e))
	case transit.EnergyIntense:
		return color.MagentaString(string(e))
	default:
		return color.CyanString(string(e))
	}
}

func renderResult(w io.Writer, res *synastry.Result) {
	fmt.Fprintf(w, "\n=== Compatibility %s x %s ===\n\n", nameOr(res.ChartAID, "A"), nameOr(res.ChartBID, "B"))
	fmt.Fprintf(w, "Score: %s\n", colorizeScore(res.Score))
	fmt.Fprintf(w, "Elements: %.1f (%s)   Modalities: %.1f (%s)\n\n",
		res.ElementCompatibility.Overall, res.ElementCompatibility.Description,
		res.ModalityCompatibility.Overall, res.ModalityCompatibility.Description)

	if len(res.Aspects) > 0 {
		t := newTable(w, "Planet A", "Planet B", "Aspect", "Orb", "Strength", "Tone")
		for _, a := range res.Aspects {
			tone := string(a.Polarity())
			if a.IsHarmonious {
				tone = color.GreenString(tone)
			} else if a.Polarity() == synastry.Challenging {
				tone = color.RedString(tone)
			}
			t.Append([]string{
				string(a.PlanetA),
				string(a.PlanetB),
				string(a.Type),
				fmt.Sprintf("%.2f°", a.Orb),
				fmt.Sprintf("%.2f", a.Strength),
				tone,
			})
		}
		t.Render()
	} else {
		fmt.Fprintln(w, "No aspects within orb.")
	}

	bt := newTable(w, "Bucket", "A", "B", "Balance")
	for _, e := range chart.Elements {
		b := res.ElementCompatibility.Buckets[e]
		bt.Append([]string{string(e), fmt.Sprint(b.CountA), fmt.Sprint(b.CountB), fmt.Sprintf("%.0f", b.Score)})
	}
	for _, m := range chart.Modalities {
		b := res.ModalityCompatibility.Buckets[m]
		bt.Append([]string{string(m), fmt.Sprint(b.CountA), fmt.Sprint(b.CountB), fmt.Sprintf("%.0f", b.Score)})
	}
	fmt.Fprintln(w)
	bt.Render()

	renderList(w, "Strengths", res.Strengths)
	renderList(w, "Challenges", res.Challenges)
	renderList(w, "Recommendations", res.Recommendations)
	if res.Breakdown.DroppedMinor > 0 {
		fmt.Fprintf(w, "\n%d minor aspects beyond the cap were not scored.\n", res.Breakdown.DroppedMinor)
	}
}

func renderActivation(w io.Writer, a *transit.DailyActivation) {
	fmt.Fprintf(w, "\n=== Activation %s x %s on %s ===\n\n", nameOr(a.ChartAID, "A"), nameOr(a.ChartBID, "B"), a.Date.Format("2006-01-02"))
	fmt.Fprintf(w, "Overall energy: %s\n\n", colorizeEnergy(a.Energy))
	if len(a.Triggered) == 0 {
		fmt.Fprintln(w, "No synastry aspects are activated today.")
		return
	}
	t := newTable(w, "Aspect", "Intensity", "Transits", "Theme")
	for _, tr := range a.Triggered {
		sa := tr.SynastryAspect
		t.Append([]string{
			fmt.Sprintf("%s %s %s", sa.PlanetA, sa.Type, sa.PlanetB),
			fmt.Sprintf("%d/100", tr.Intensity),
			fmt.Sprint(len(tr.TriggeringTransits)),
			tr.Theme,
		})
	}
	t.Render()
	for _, tr := range a.Triggered {
		fmt.Fprintf(w, "- %s\n", tr.Advice)
	}
}

func renderList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n%s\n", color.New(color.Bold).Sprint(title), strings.Repeat("-", len(title)))
	for _, it := range items {
		fmt.Fprintf(w, "- %s\n", it)
	}
}

func nameOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
