package metrics

import (
	"image/color"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var seriesColors = []color.RGBA{
	{R: 20, G: 80, B: 200, A: 255},
	{R: 200, G: 30, B: 30, A: 255},
	{R: 40, G: 120, B: 40, A: 255},
	{R: 120, G: 120, B: 120, A: 255},
}

// PlotSeries writes a PNG (or any format gonum/plot infers from the file
// extension) with one line per named series, step on the x axis.
func PlotSeries(path, title string, events []Event, names ...string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "step"
	p.Y.Label.Text = "value"
	p.Add(plotter.NewGrid())

	plotted := 0
	for i, name := range names {
		xys := make(plotter.XYs, 0, len(events))
		for _, e := range events {
			if e.Name == name {
				xys = append(xys, plotter.XY{X: float64(e.Step), Y: e.Value})
			}
		}
		if len(xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrapf(err, "series %s", name)
		}
		line.Color = seriesColors[i%len(seriesColors)]
		line.Width = vg.Points(1.2)
		p.Add(line)
		p.Legend.Add(name, line)
		plotted++
	}
	if plotted == 0 {
		return errors.Errorf("no events for series %v", names)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "mkdir %s", dir)
		}
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}
