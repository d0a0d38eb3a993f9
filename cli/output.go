package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"go.viam.com/edgeplan/reconstruction"
	"go.viam.com/edgeplan/vision/tuning"
)

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// infof prints a message prefixed with a bold cyan "Info: ".
func infof(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.Bold, color.FgCyan).Fprint(w, "Info: ")
	printf(w, format, a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.Bold, color.FgYellow).Fprint(w, "Warning: ")
	printf(w, format, a...)
}

// parseKnobs reads a "min max" line.
func parseKnobs(line string) (tuning.Knobs, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return tuning.Knobs{}, errors.Errorf("expected `min max`, got %q", line)
	}
	lo, err := strconv.Atoi(fields[0])
	if err != nil {
		return tuning.Knobs{}, errors.Wrap(err, "min")
	}
	hi, err := strconv.Atoi(fields[1])
	if err != nil {
		return tuning.Knobs{}, errors.Wrap(err, "max")
	}
	return tuning.Knobs{Min: lo, Max: hi}, nil
}

// pairTable renders one row per reconstructed pair followed by the mean and median point counts.
func pairTable(pairs []*reconstruction.PairResult) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Pair", "Candidates", "Good", "Essential", "Pose", "Points", "Labelled", "Discarded"})
	counts := make([]float64, 0, len(pairs))
	for _, pr := range pairs {
		t.AppendRow(table.Row{
			pr.Pair.String(), pr.Candidates, pr.GoodMatches, pr.EssentialInliers,
			pr.PoseInliers, len(pr.Points), len(pr.Labelled()), pr.Discarded,
		})
		counts = append(counts, float64(len(pr.Points)))
	}
	if len(counts) > 0 {
		// both only fail on empty input
		mean, _ := stats.Mean(counts)
		median, _ := stats.Median(counts)
		t.AppendFooter(table.Row{"", "", "", "", "mean / median", fmt.Sprintf("%.1f / %.1f", mean, median)})
	}
	return t.Render()
}
