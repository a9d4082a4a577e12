package visualization

import (
	"bytes"
	"image"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// dpi of exported figures. At 72 dpi one point is one pixel.
const dpi = 72

// Plotter builds image figures and exports them to PNG.
type Plotter struct {
	// Scale multiplies the image size to give the figure size.
	Scale float64
	// Padding is the space between figures in a grid.
	Padding vg.Length
}

// NewPlotter returns a plotter exporting figures at image size.
func NewPlotter() *Plotter {
	return &Plotter{Scale: 1, Padding: vg.Points(4)}
}

// Figure is an image plot together with the image size it was built from.
type Figure struct {
	Plot          *plot.Plot
	Width, Height int
}

// PlotImage returns a figure showing img with hidden axes.
func (p *Plotter) PlotImage(img image.Image, title string) *Figure {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	fig := plot.New()
	fig.Title.Text = title
	fig.HideAxes()
	fig.X.Min, fig.X.Max = 0, float64(w)
	fig.Y.Min, fig.Y.Max = 0, float64(h)
	fig.Add(plotter.NewImage(img, 0, 0, float64(w), float64(h)))
	return &Figure{Plot: fig, Width: w, Height: h}
}

// Export renders a single figure to PNG.
func (p *Plotter) Export(fig *Figure) ([]byte, error) {
	return p.ExportGrid([][]*Figure{{fig}})
}

// ExportGrid renders rows of figures into one PNG. Every row must have the same number of
// figures; tiles are sized by the largest figure.
func (p *Plotter) ExportGrid(rows [][]*Figure) ([]byte, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.New("cannot export an empty grid")
	}
	cols := len(rows[0])
	var tileW, tileH int
	plots := make([][]*plot.Plot, len(rows))
	for i, row := range rows {
		if len(row) != cols {
			return nil, errors.Errorf("grid row %d has %d figures, expected %d", i, len(row), cols)
		}
		plots[i] = make([]*plot.Plot, cols)
		for j, fig := range row {
			if fig == nil {
				return nil, errors.Errorf("grid cell (%d, %d) is empty", i, j)
			}
			plots[i][j] = fig.Plot
			tileW = max(tileW, fig.Width)
			tileH = max(tileH, fig.Height)
		}
	}

	scale := p.Scale
	if scale <= 0 {
		scale = 1
	}
	width := vg.Points(scale*float64(tileW*cols)) + vg.Length(cols-1)*p.Padding
	height := vg.Points(scale*float64(tileH*len(rows))) + vg.Length(len(rows)-1)*p.Padding

	canvas := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(dpi))
	dc := draw.New(canvas)
	tiles := draw.Tiles{Rows: len(rows), Cols: cols, PadX: p.Padding, PadY: p.Padding}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		for j := range plots[i] {
			plots[i][j].Draw(canvases[i][j])
		}
	}

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "cannot encode figure")
	}
	return buf.Bytes(), nil
}
