package chart

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cheminsight/cheminsight/internal/api"
	"github.com/cheminsight/cheminsight/internal/config"
	"github.com/cheminsight/cheminsight/internal/dashboard"
	lru "github.com/hashicorp/golang-lru/v2"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"go.uber.org/zap"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no data to chart")

type Kind string

const (
	KindDistribution Kind = "distribution"
	KindPie          Kind = "pie"
	KindTrends       Kind = "trends"
)

// ParseKind accepts the names used on the command line.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindDistribution, "bar":
		return KindDistribution, nil
	case KindPie:
		return KindPie, nil
	case KindTrends, "trend":
		return KindTrends, nil
	default:
		return "", fmt.Errorf("unknown chart %q (want distribution, pie or trends)", s)
	}
}

// FileName is the name a chart of this kind is exported under.
func (k Kind) FileName() string {
	switch k {
	case KindPie:
		return "distribution_pie.png"
	case KindTrends:
		return "trends.png"
	default:
		return "distribution.png"
	}
}

var trendColors = map[string]drawing.Color{
	"Flowrate":    gochart.ColorBlue,
	"Pressure":    gochart.ColorRed,
	"Temperature": gochart.ColorGreen,
}

// Renderer draws dashboard charts as PNG. Records never change once
// uploaded, so images are cached by record id.
type Renderer struct {
	width  int
	height int
	window int
	cache  *lru.Cache[string, []byte]
	logger *zap.Logger
}

func NewRenderer(cfg config.ChartConfig, window int, logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("chart cache size must be positive")
	}
	cache, err := lru.New[string, []byte](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart cache: %w", err)
	}
	if window <= 0 {
		window = dashboard.DefaultTrendWindow
	}
	return &Renderer{
		width:  cfg.Width,
		height: cfg.Height,
		window: window,
		cache:  cache,
		logger: logger,
	}, nil
}

// Render draws a chart of the given kind for the history, newest first.
func (r *Renderer) Render(kind Kind, records []api.UploadRecord) ([]byte, error) {
	latest, ok := dashboard.SelectLatest(records)
	if !ok {
		return nil, ErrNoData
	}

	key := r.cacheKey(kind, records)
	if key != "" {
		if img, ok := r.cache.Get(key); ok {
			return img, nil
		}
	}

	var (
		img []byte
		err error
	)
	switch kind {
	case KindDistribution:
		img, err = r.distribution(latest.Filename, seriesOf(latest))
	case KindPie:
		img, err = r.pie(latest.Filename, seriesOf(latest))
	case KindTrends:
		img, err = r.trends(dashboard.Trends(records, r.window))
	default:
		return nil, fmt.Errorf("unknown chart kind %q", kind)
	}
	if err != nil {
		return nil, err
	}

	if key != "" {
		r.cache.Add(key, img)
	}
	r.logger.Debug("chart rendered", zap.String("kind", string(kind)), zap.Int("bytes", len(img)))
	return img, nil
}

// Cached is the number of images held in the cache.
func (r *Renderer) Cached() int {
	return r.cache.Len()
}

func (r *Renderer) cacheKey(kind Kind, records []api.UploadRecord) string {
	n := 1
	if kind == KindTrends {
		n = r.window
		if n > len(records) {
			n = len(records)
		}
	}
	ids := make([]string, 0, n)
	for _, rec := range records[:n] {
		if rec.ID == "" {
			return ""
		}
		ids = append(ids, string(rec.ID))
	}
	return string(kind) + ":" + strings.Join(ids, ",")
}

func seriesOf(rec api.UploadRecord) dashboard.ChartSeries {
	return dashboard.ChartSeries{
		Labels: rec.Summary.TypeDistribution.Labels(),
		Values: rec.Summary.TypeDistribution.Values(),
	}
}

func (r *Renderer) distribution(title string, s dashboard.ChartSeries) ([]byte, error) {
	if len(s.Values) == 0 {
		return nil, ErrNoData
	}

	maxValue := 0.0
	bars := make([]gochart.Value, len(s.Values))
	for i, v := range s.Values {
		bars[i] = gochart.Value{Value: v, Label: s.Labels[i]}
		maxValue = math.Max(maxValue, v)
	}
	if maxValue <= 0 {
		maxValue = 1
	}

	bc := gochart.BarChart{
		Title:      "Equipment Type Distribution: " + title,
		Width:      r.width,
		Height:     r.height,
		BarWidth:   barWidth(r.width, len(bars)),
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis:      gochart.YAxis{Range: &gochart.ContinuousRange{Min: 0, Max: maxValue * 1.1}},
		Bars:       bars,
	}

	var buf bytes.Buffer
	if err := bc.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render distribution chart: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) pie(title string, s dashboard.ChartSeries) ([]byte, error) {
	if s.Total() <= 0 {
		return nil, ErrNoData
	}

	values := make([]gochart.Value, 0, len(s.Values))
	for i, v := range s.Values {
		if v <= 0 {
			continue
		}
		values = append(values, gochart.Value{
			Value: v,
			Label: fmt.Sprintf("%s (%.1f%%)", s.Labels[i], s.Percent(i)),
		})
	}

	pc := gochart.PieChart{
		Title:  "Equipment Type Distribution: " + title,
		Width:  r.width,
		Height: r.height,
		Values: values,
	}

	var buf bytes.Buffer
	if err := pc.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render pie chart: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) trends(t dashboard.TrendSeries) ([]byte, error) {
	n := t.Len()
	if n == 0 {
		return nil, ErrNoData
	}

	minY, maxY := math.Inf(1), math.Inf(-1)
	var series []gochart.Series
	for _, line := range []struct {
		name   string
		values []dashboard.DisplayValue
	}{
		{"Flowrate", t.Flowrate},
		{"Pressure", t.Pressure},
		{"Temperature", t.Temperature},
	} {
		var xs, ys []float64
		for i, v := range line.values {
			if !v.Numeric {
				continue
			}
			xs = append(xs, float64(i+1))
			ys = append(ys, v.Number)
			minY = math.Min(minY, v.Number)
			maxY = math.Max(maxY, v.Number)
		}
		if len(xs) == 0 {
			continue
		}
		col := trendColors[line.name]
		series = append(series, gochart.ContinuousSeries{
			Name:    line.name,
			XValues: xs,
			YValues: ys,
			Style: gochart.Style{
				StrokeColor: col,
				StrokeWidth: 2,
				DotColor:    col,
				DotWidth:    4,
			},
		})
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}

	if minY == maxY {
		minY, maxY = minY-1, maxY+1
	}
	maxX := float64(n)
	if n == 1 {
		maxX = 2
	}
	ticks := make([]gochart.Tick, n)
	for i, label := range t.Labels {
		ticks[i] = gochart.Tick{Value: float64(i + 1), Label: label}
	}

	ch := gochart.Chart{
		Title:      "Recent Upload Trends",
		Width:      r.width,
		Height:     r.height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      gochart.XAxis{Name: "Upload", Ticks: ticks, Range: &gochart.ContinuousRange{Min: 1, Max: maxX}},
		YAxis:      gochart.YAxis{Range: &gochart.ContinuousRange{Min: minY, Max: maxY}},
		Series:     series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render trends chart: %w", err)
	}
	return buf.Bytes(), nil
}

func barWidth(width, bars int) int {
	if bars == 0 {
		return 0
	}
	w := (width - 64) / (bars * 2)
	switch {
	case w < 8:
		return 8
	case w > 80:
		return 80
	default:
		return w
	}
}
