// Package charts renders static PNG charts of spikes, days and group profiles
package charts

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mrcode/glucose-spikes/internal/models"
)

// ErrNoData is returned when there is nothing to draw
var ErrNoData = errors.New("insufficient data for chart")

const (
	marginLeft   = 70.0
	marginRight  = 30.0
	marginTop    = 50.0
	marginBottom = 60.0

	titleSize = 18
	labelSize = 12
)

// Palette for series that have no configured colour
const (
	colorSecond   = "#f97316" // Orange
	colorBaseline = "#808080" // Gray
	colorGrid     = "#e5e7eb" // Gray-200
	colorText     = "#1f2937" // Gray-800
)

// Renderer draws charts using the output settings
type Renderer struct {
	width, height int
	line          color.Color
	spike         color.Color
	meal          color.Color
	target        color.Color
	low, high     float64
	dir           string
	font          *truetype.Font
	logger        *slog.Logger
}

// New creates a renderer. Charts are written under out.ChartDir, or the
// working directory when it is empty.
func New(out models.OutputConfig, analysis models.AnalysisConfig, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("loading font: %w", err)
	}
	return &Renderer{
		width:  out.ChartWidth,
		height: out.ChartHeight,
		line:   parseHexColor(out.ColorLine),
		spike:  parseHexColor(out.ColorSpike),
		meal:   parseHexColor(out.ColorMeal),
		target: parseHexColor(out.ColorTarget),
		low:    analysis.TargetLow,
		high:   analysis.TargetHigh,
		dir:    out.ChartDir,
		font:   f,
		logger: logger.With("component", "charts"),
	}, nil
}

// Save writes img as a PNG named name in the chart directory and returns the
// full path
func (r *Renderer) Save(img image.Image, name string) (string, error) {
	dir := r.dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := gg.SavePNG(path, img); err != nil {
		return "", fmt.Errorf("saving chart: %w", err)
	}
	r.logger.Debug("chart saved", "path", path)
	return path, nil
}

// setFont selects the Go Regular face at size
func (r *Renderer) setFont(dc *gg.Context, size float64) {
	dc.SetFontFace(truetype.NewFace(r.font, &truetype.Options{Size: size}))
}

// frame maps data coordinates onto the plot area of a context
type frame struct {
	dc                       *gg.Context
	left, top, right, bottom float64
	xMin, xMax, yMin, yMax   float64
}

func (r *Renderer) newFrame(xMin, xMax, yMin, yMax float64) *frame {
	if xMax <= xMin {
		xMax = xMin + 1
	}
	if yMax <= yMin {
		yMax = yMin + 1
	}

	dc := gg.NewContext(r.width, r.height)
	dc.SetColor(color.White)
	dc.Clear()

	return &frame{
		dc:     dc,
		left:   marginLeft,
		top:    marginTop,
		right:  float64(r.width) - marginRight,
		bottom: float64(r.height) - marginBottom,
		xMin:   xMin, xMax: xMax,
		yMin: yMin, yMax: yMax,
	}
}

func (f *frame) px(x float64) float64 {
	return f.left + (x-f.xMin)/(f.xMax-f.xMin)*(f.right-f.left)
}

func (f *frame) py(y float64) float64 {
	return f.bottom - (y-f.yMin)/(f.yMax-f.yMin)*(f.bottom-f.top)
}

// band fills the horizontal strip between two y values
func (f *frame) band(y1, y2 float64, c color.Color) {
	top := f.py(math.Min(math.Max(y2, f.yMin), f.yMax))
	bottom := f.py(math.Min(math.Max(y1, f.yMin), f.yMax))
	f.dc.SetColor(c)
	f.dc.DrawRectangle(f.left, top, f.right-f.left, bottom-top)
	f.dc.Fill()
}

// span fills the vertical strip between two x values
func (f *frame) span(x1, x2 float64, c color.Color) {
	f.dc.SetColor(c)
	f.dc.DrawRectangle(f.px(x1), f.top, f.px(x2)-f.px(x1), f.bottom-f.top)
	f.dc.Fill()
}

// hline draws a dashed horizontal reference line
func (f *frame) hline(y float64, c color.Color) {
	f.dc.Push()
	defer f.dc.Pop()
	f.dc.SetColor(c)
	f.dc.SetLineWidth(1)
	f.dc.SetDash(6, 4)
	f.dc.DrawLine(f.left, f.py(y), f.right, f.py(y))
	f.dc.Stroke()
}

// polyline strokes the series
func (f *frame) polyline(x, y []float64, c color.Color, width float64) {
	if len(x) == 0 {
		return
	}
	f.dc.SetColor(c)
	f.dc.SetLineWidth(width)
	f.dc.MoveTo(f.px(x[0]), f.py(y[0]))
	for i := 1; i < len(x); i++ {
		f.dc.LineTo(f.px(x[i]), f.py(y[i]))
	}
	f.dc.Stroke()
}

// area fills between the series and a reference, above the reference only
func (f *frame) area(x, y []float64, reference float64, c color.Color) {
	if len(x) < 2 {
		return
	}
	f.dc.SetColor(c)
	f.dc.MoveTo(f.px(x[0]), f.py(reference))
	for i := range x {
		f.dc.LineTo(f.px(x[i]), f.py(math.Max(y[i], reference)))
	}
	f.dc.LineTo(f.px(x[len(x)-1]), f.py(reference))
	f.dc.ClosePath()
	f.dc.Fill()
}

// envelope fills between a lower and an upper series
func (f *frame) envelope(x, lower, upper []float64, c color.Color) {
	if len(x) < 2 {
		return
	}
	f.dc.SetColor(c)
	f.dc.MoveTo(f.px(x[0]), f.py(upper[0]))
	for i := 1; i < len(x); i++ {
		f.dc.LineTo(f.px(x[i]), f.py(upper[i]))
	}
	for i := len(x) - 1; i >= 0; i-- {
		f.dc.LineTo(f.px(x[i]), f.py(lower[i]))
	}
	f.dc.ClosePath()
	f.dc.Fill()
}

// dot draws a filled marker
func (f *frame) dot(x, y, radius float64, c color.Color) {
	f.dc.SetColor(c)
	f.dc.DrawCircle(f.px(x), f.py(y), radius)
	f.dc.Fill()
}

// marker draws an upward pointer whose tip sits on the bottom axis at x
func (f *frame) marker(x, size float64, c color.Color) {
	ox := f.px(x)
	oy := f.bottom - size/2
	w := size * 0.5

	f.dc.SetColor(c)
	f.dc.NewSubPath()
	f.dc.MoveTo(ox, oy-size/2)
	f.dc.LineTo(ox+w/2, oy)
	f.dc.LineTo(ox+w/6, oy)
	f.dc.LineTo(ox+w/6, oy+size/2)
	f.dc.LineTo(ox-w/6, oy+size/2)
	f.dc.LineTo(ox-w/6, oy)
	f.dc.LineTo(ox-w/2, oy)
	f.dc.ClosePath()
	f.dc.Fill()
}

// axes draws the grid, tick labels and titles. xLabel formats x tick values.
func (r *Renderer) axes(f *frame, title, xTitle, yTitle string, xTicks []float64, xLabel func(float64) string) {
	dc := f.dc
	grid := parseHexColor(colorGrid)
	text := parseHexColor(colorText)

	r.setFont(dc, labelSize)
	dc.SetLineWidth(1)

	for _, v := range niceTicks(f.yMin, f.yMax, 6) {
		dc.SetColor(grid)
		dc.DrawLine(f.left, f.py(v), f.right, f.py(v))
		dc.Stroke()
		dc.SetColor(text)
		dc.DrawStringAnchored(formatTick(v), f.left-8, f.py(v), 1, 0.5)
	}
	for _, v := range xTicks {
		dc.SetColor(grid)
		dc.DrawLine(f.px(v), f.top, f.px(v), f.bottom)
		dc.Stroke()
		dc.SetColor(text)
		dc.DrawStringAnchored(xLabel(v), f.px(v), f.bottom+16, 0.5, 0.5)
	}

	dc.SetColor(text)
	dc.DrawRectangle(f.left, f.top, f.right-f.left, f.bottom-f.top)
	dc.Stroke()

	dc.DrawStringAnchored(xTitle, (f.left+f.right)/2, f.bottom+40, 0.5, 0.5)
	dc.Push()
	dc.RotateAbout(gg.Radians(-90), 18, (f.top+f.bottom)/2)
	dc.DrawStringAnchored(yTitle, 18, (f.top+f.bottom)/2, 0.5, 0.5)
	dc.Pop()

	r.setFont(dc, titleSize)
	dc.DrawStringAnchored(title, float64(r.width)/2, f.top/2, 0.5, 0.5)
}

// legend draws coloured labels in the top right corner of the plot area
func (r *Renderer) legend(f *frame, items []legendItem) {
	r.setFont(f.dc, labelSize)
	y := f.top + 14
	for _, it := range items {
		w, _ := f.dc.MeasureString(it.label)
		x := f.right - 12 - w
		f.dc.SetColor(it.color)
		f.dc.DrawRectangle(x-18, y-5, 12, 10)
		f.dc.Fill()
		f.dc.SetColor(parseHexColor(colorText))
		f.dc.DrawStringAnchored(it.label, x, y, 0, 0.5)
		y += 18
	}
}

type legendItem struct {
	label string
	color color.Color
}

// niceTicks returns round tick values covering [lo, hi]
func niceTicks(lo, hi float64, count int) []float64 {
	if hi <= lo || count < 1 {
		return []float64{lo}
	}
	raw := (hi - lo) / float64(count)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	step := mag
	for _, m := range []float64{1, 2, 5, 10} {
		if m*mag >= raw {
			step = m * mag
			break
		}
	}

	var ticks []float64
	for v := math.Ceil(lo/step) * step; v <= hi+step*1e-9; v += step {
		ticks = append(ticks, v)
	}
	return ticks
}

func formatTick(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2g", v)
}

// fade returns c with the given opacity
func fade(c color.Color, alpha float64) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(alpha * 255)}
}

// parseHexColor parses a #rrggbb colour; anything else is black
func parseHexColor(hex string) color.Color {
	var r, g, b uint8
	if len(hex) == 7 && hex[0] == '#' {
		_, _ = fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// slug turns a description into a file name fragment
func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "group"
	}
	return b.String()
}

func minutesBetween(from, to time.Time) float64 {
	return to.Sub(from).Minutes()
}
