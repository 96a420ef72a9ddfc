// Package chart renders dashboard series as PNG line charts.
//
// Charts are deliberately plain: one colored line with point markers per
// series, a grid, a legend and an optional dashed horizontal target line.
// Non-finite points are dropped before plotting, which is how undefined
// ratios are skipped.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// ErrNoData is returned when no series has a plottable point.
var ErrNoData = errors.New("chart: no data to plot")

// Point is one x/y pair.
type Point struct {
	X, Y float64
}

// Series is a named line.
type Series struct {
	Name   string
	Points []Point
}

// Options controls titles and size.
type Options struct {
	Title  string
	XLabel string
	YLabel string

	// Target draws a dashed horizontal line when HasTarget is set.
	HasTarget   bool
	Target      float64
	TargetLabel string

	Width  vg.Length
	Height vg.Length
}

const (
	defaultWidth  = 8 * vg.Inch
	defaultHeight = 4 * vg.Inch
)

// LinePNG renders series as a PNG image.
func LinePNG(series []Series, opts Options) ([]byte, error) {
	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	plotted := 0
	for i, s := range series {
		xys := finite(s.Points)
		if len(xys) == 0 {
			continue
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, fmt.Errorf("chart: series %q: %w", s.Name, err)
		}
		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(0)

		p.Add(line, points)
		if s.Name != "" {
			p.Legend.Add(s.Name, line, points)
		}
		plotted++
	}
	if plotted == 0 {
		return nil, ErrNoData
	}

	if opts.HasTarget {
		target := opts.Target
		fn := plotter.NewFunction(func(float64) float64 { return target })
		fn.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
		fn.Width = vg.Points(1.5)
		p.Add(fn)
		if p.Y.Max < target {
			p.Y.Max = target
		}
		if p.Y.Min > target {
			p.Y.Min = target
		}
		label := opts.TargetLabel
		if label == "" {
			label = fmt.Sprintf("%g target", target)
		}
		p.Legend.Add(label, fn)
	}

	width, height := opts.Width, opts.Height
	if width == 0 {
		width = defaultWidth
	}
	if height == 0 {
		height = defaultHeight
	}

	w, err := p.WriterTo(width, height, "png")
	if err != nil {
		return nil, fmt.Errorf("chart: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("chart: %w", err)
	}
	return buf.Bytes(), nil
}

func finite(points []Point) plotter.XYs {
	xys := make(plotter.XYs, 0, len(points))
	for _, pt := range points {
		if math.IsNaN(pt.X) || math.IsInf(pt.X, 0) || math.IsNaN(pt.Y) || math.IsInf(pt.Y, 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: pt.X, Y: pt.Y})
	}
	return xys
}

// DecimalYear maps a date onto a fractional year axis (2021-07-02 ~ 2021.5).
func DecimalYear(t time.Time) float64 {
	start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	return float64(t.Year()) + t.Sub(start).Hours()/end.Sub(start).Hours()
}
