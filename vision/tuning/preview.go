package tuning

import (
	"context"
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// LabelHistogram plots the distribution of the point labels with the two knobs drawn as
// vertical lines and saves it to path. The image format follows the path extension.
func LabelHistogram(labels []uint8, knobs Knobs, path string) error {
	if len(labels) == 0 {
		return errors.New("no labels to plot")
	}
	values := make(plotter.Values, len(labels))
	for i, l := range labels {
		values[i] = float64(l)
	}
	p := plot.New()
	p.Title.Text = "label distribution"
	p.X.Label.Text = "label"
	p.Y.Label.Text = "points"

	hist, err := plotter.NewHist(values, 64)
	if err != nil {
		return err
	}
	p.Add(hist)

	maxCount := 0.
	for _, b := range hist.Bins {
		if b.Weight > maxCount {
			maxCount = b.Weight
		}
	}
	for i, v := range []int{knobs.Min, knobs.Max} {
		knob, err := plotter.NewLine(plotter.XYs{{X: float64(v), Y: 0}, {X: float64(v), Y: maxCount}})
		if err != nil {
			return err
		}
		knob.LineStyle.Width = vg.Points(2)
		knob.LineStyle.Color = color.RGBA{R: uint8(255 * i), B: uint8(255 * (1 - i)), A: 255}
		p.Add(knob)
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// CountInRange returns the number of labels within [knobs.Min, knobs.Max].
func CountInRange(labels []uint8, knobs Knobs) int {
	count := 0
	for _, l := range labels {
		if int(l) >= knobs.Min && int(l) <= knobs.Max {
			count++
		}
	}
	return count
}

// HistogramRedraw returns a RedrawFunc that re-plots the label histogram at path after every
// change and reports the number of labels between the knobs.
func HistogramRedraw(labels []uint8, path string, report func(inRange int)) RedrawFunc {
	return func(ctx context.Context, knobs Knobs) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if report != nil {
			report(CountInRange(labels, knobs))
		}
		return LabelHistogram(labels, knobs, path)
	}
}
