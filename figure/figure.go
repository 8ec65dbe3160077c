// Package figure renders regression results with gonum/plot.
package figure

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Curve is a labeled sequence of points.
type Curve struct {
	Label string
	X, Y  []float64
}

func (c Curve) xys() (plotter.XYs, error) {
	if len(c.X) != len(c.Y) {
		return nil, fmt.Errorf("curve %q: %d x values, %d y values",
			c.Label, len(c.X), len(c.Y))
	}
	pts := make(plotter.XYs, len(c.X))
	for i := range pts {
		pts[i].X = c.X[i]
		pts[i].Y = c.Y[i]
	}
	return pts, nil
}

// Fit is a regression result along one axis: the mean and the
// standard deviation at each X.
type Fit struct {
	Label string
	X     []float64
	Mean  []float64
	Std   []float64
}

// Figure is a plot with a running color index.
type Figure struct {
	*plot.Plot
	ncolor int
}

// New returns an empty figure.
func New(title, xlabel, ylabel string) *Figure {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	return &Figure{Plot: p}
}

func (f *Figure) color() color.Color {
	c := plotutil.Color(f.ncolor)
	f.ncolor++
	return c
}

// Line adds a curve as a line.
func (f *Figure) Line(c Curve) error {
	pts, err := c.xys()
	if err != nil {
		return err
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = f.color()
	f.Add(line)
	if c.Label != "" {
		f.Legend.Add(c.Label, line)
	}
	return nil
}

// Band adds the mean of a fit as a line over the shaded ±2σ band.
func (f *Figure) Band(fit Fit) error {
	n := len(fit.X)
	if len(fit.Mean) != n || len(fit.Std) != n {
		return fmt.Errorf("fit %q: inconsistent lengths", fit.Label)
	}
	if n == 0 {
		return nil
	}
	// The band polygon runs along the upper bound and back along
	// the lower one.
	band := make(plotter.XYs, 2*n)
	for i := 0; i != n; i++ {
		band[i].X = fit.X[i]
		band[i].Y = fit.Mean[i] + 2*fit.Std[i]
		band[2*n-1-i].X = fit.X[i]
		band[2*n-1-i].Y = fit.Mean[i] - 2*fit.Std[i]
	}
	poly, err := plotter.NewPolygon(band)
	if err != nil {
		return err
	}
	c := f.color()
	r, g, b, _ := c.RGBA()
	poly.Color = color.NRGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 64}
	poly.LineStyle.Width = 0
	f.Add(poly)

	mean, err := Curve{X: fit.X, Y: fit.Mean}.xys()
	if err != nil {
		return err
	}
	line, err := plotter.NewLine(mean)
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = c
	f.Add(line)
	if fit.Label != "" {
		f.Legend.Add(fit.Label, line, poly)
	}
	return nil
}

// Scatter adds points as glyphs of the given shape.
func (f *Figure) Scatter(c Curve, shape draw.GlyphDrawer) error {
	pts, err := c.xys()
	if err != nil {
		return err
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	s.GlyphStyle.Shape = shape
	s.GlyphStyle.Color = f.color()
	s.GlyphStyle.Radius = vg.Points(2.5)
	f.Add(s)
	if c.Label != "" {
		f.Legend.Add(c.Label, s)
	}
	return nil
}

// Save writes the figure; the format follows the extension of path.
func (f *Figure) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return f.Plot.Save(8*vg.Inch, 5*vg.Inch, path)
}

// Regression draws the truth, the fit with its band, the
// measurements and the inducing inputs. Any part may be empty.
func Regression(title, xlabel, ylabel string, truth Curve, fits []Fit, data Curve, inducing []float64) (*Figure, error) {
	f := New(title, xlabel, ylabel)
	if len(truth.X) > 0 {
		if err := f.Line(truth); err != nil {
			return nil, err
		}
	}
	for _, fit := range fits {
		if err := f.Band(fit); err != nil {
			return nil, err
		}
	}
	if len(data.X) > 0 {
		if err := f.Scatter(data, draw.CircleGlyph{}); err != nil {
			return nil, err
		}
	}
	if len(inducing) > 0 {
		// Inducing inputs sit on the bottom of the plot.
		ys := make([]float64, len(inducing))
		lo := f.Y.Min
		for i := range ys {
			ys[i] = lo
		}
		err := f.Scatter(Curve{Label: "inducing", X: inducing, Y: ys}, draw.CrossGlyph{})
		if err != nil {
			return nil, err
		}
	}
	f.Legend.Top = true
	return f, nil
}

// Series draws time traces.
func Series(title, xlabel, ylabel string, curves ...Curve) (*Figure, error) {
	f := New(title, xlabel, ylabel)
	for _, c := range curves {
		if err := f.Line(c); err != nil {
			return nil, err
		}
	}
	return f, nil
}
