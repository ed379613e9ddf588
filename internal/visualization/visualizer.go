// Package visualization renders trade aggregates as interactive HTML charts.
package visualization

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/rs/zerolog"

	"black-heatmap/internal/config"
	"black-heatmap/internal/observability"
	"black-heatmap/internal/spreadsheet"
	"black-heatmap/internal/table"
)

// DefaultAssetsHost serves the echarts runtime over the network.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

const (
	defaultDir        = "output/visualizations"
	defaultMaxRows    = 100
	defaultTopN       = 20
	defaultDirectHost = "assets/"
)

var scriptTag = regexp.MustCompile(`<script[^>]*\ssrc="([^"]+)"[^>]*>\s*</script>`)

// Options configures a Visualizer.
type Options struct {
	Dir string

	// Assets is one of config.AssetsCDN, config.AssetsInline or
	// config.AssetsDirectory.
	Assets     string
	AssetsHost string
	// AssetsDir holds local copies of the echarts runtime for the inline and
	// directory modes.
	AssetsDir string

	MaxRows int
	TopN    int
	Theme   string
	Now     func() time.Time

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// OptionsFromConfig maps application settings to Options.
func OptionsFromConfig(cfg config.AppConfig, logger zerolog.Logger, metrics *observability.Metrics) Options {
	return Options{
		Dir:        cfg.ChartDir,
		Assets:     cfg.ChartAssets,
		AssetsHost: cfg.ChartAssetsHost,
		AssetsDir:  cfg.ChartAssetsDir,
		MaxRows:    cfg.HeatmapMaxRows,
		TopN:       cfg.RankingTopN,
		Logger:     logger,
		Metrics:    metrics,
	}
}

// Visualizer writes charts into one output directory.
type Visualizer struct {
	opts   Options
	logger zerolog.Logger
}

// renderer is satisfied by every go-echarts chart and page.
type renderer interface {
	Render(w io.Writer) error
}

// New creates a Visualizer, filling unset options with defaults.
func New(o Options) *Visualizer {
	if o.Dir == "" {
		o.Dir = defaultDir
	}
	if o.Assets == "" {
		o.Assets = config.AssetsCDN
	}
	if o.AssetsHost == "" {
		o.AssetsHost = DefaultAssetsHost
		if o.Assets == config.AssetsDirectory {
			o.AssetsHost = defaultDirectHost
		}
	}
	if o.MaxRows <= 0 {
		o.MaxRows = defaultMaxRows
	}
	if o.TopN <= 0 {
		o.TopN = defaultTopN
	}
	if o.Theme == "" {
		o.Theme = types.ThemeWesteros
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &Visualizer{
		opts:   o,
		logger: o.Logger.With().Str("component", "visualization").Logger(),
	}
}

// Dir returns the output directory.
func (v *Visualizer) Dir() string { return v.opts.Dir }

// CreateAll renders every chart that has data. Keys name the chart; values
// are file paths, empty when rendering failed.
func (v *Visualizer) CreateAll(h1, h4, daily *table.Table) map[string]string {
	v.logger.Info().Msg("rendering charts")
	out := map[string]string{}

	if !h1.Empty() {
		out["heatmap_1h"] = v.Heatmap(h1, "1시간 단위 거래금액 히트맵", "1h")
	}
	if !h4.Empty() {
		out["heatmap_4h"] = v.Heatmap(h4, "4시간 단위 거래금액 히트맵", "4h")
		out["timeline"] = v.Timeline(h4, "시간대별 거래 추이")
		out["ranking"] = v.Ranking(h4, v.opts.TopN, "상위 거래자 순위")
	}
	if !daily.Empty() {
		out["market_share"] = v.MarketShare(daily, "마켓별 거래 비중")
		out["daily_pattern"] = v.Dashboard(daily, "일별 거래 패턴 분석")
	}

	v.logger.Info().Int("charts", len(out)).Msg("charts rendered")
	return out
}

// init returns the common page initialization for a chart.
func (v *Visualizer) init(title, width, height string) opts.Initialization {
	return opts.Initialization{
		PageTitle:  title,
		Theme:      v.opts.Theme,
		Width:      width,
		Height:     height,
		AssetsHost: v.opts.AssetsHost,
	}
}

// write renders r to {dir}/{kind}_{timestamp}.html and returns the path.
// Failures are logged and yield "".
func (v *Visualizer) write(kind string, r renderer) string {
	path, err := v.writeFile(kind, r)
	v.opts.Metrics.RecordChart(kind, err == nil)
	if err != nil {
		v.logger.Error().Err(err).Str("chart", kind).Msg("chart render failed")
		return ""
	}
	v.logger.Info().Str("chart", kind).Str("path", path).Msg("chart saved")
	return path
}

func (v *Visualizer) writeFile(kind string, r renderer) (string, error) {
	if err := os.MkdirAll(v.opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create chart directory: %w", err)
	}

	var buf bytes.Buffer
	if err := r.Render(&buf); err != nil {
		return "", fmt.Errorf("render %s: %w", kind, err)
	}

	html := buf.Bytes()
	switch v.opts.Assets {
	case config.AssetsInline:
		html = v.inlineAssets(html)
	case config.AssetsDirectory:
		v.copyAssets(html)
	}

	path := spreadsheet.TimestampedName(v.opts.Dir, kind, "html", v.opts.Now())
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// assetName returns the path of a script below the assets host.
func (v *Visualizer) assetName(src string) (string, bool) {
	if !strings.HasPrefix(src, v.opts.AssetsHost) {
		return "", false
	}
	name := strings.TrimPrefix(src, v.opts.AssetsHost)
	if name == "" || strings.Contains(name, "..") {
		return "", false
	}
	return name, true
}

// inlineAssets replaces script references with the content of the local
// copies in AssetsDir. Missing files keep their network reference.
func (v *Visualizer) inlineAssets(html []byte) []byte {
	return scriptTag.ReplaceAllFunc(html, func(tag []byte) []byte {
		src := string(scriptTag.FindSubmatch(tag)[1])
		name, ok := v.assetName(src)
		if !ok {
			return tag
		}
		js, err := os.ReadFile(filepath.Join(v.opts.AssetsDir, filepath.FromSlash(name)))
		if err != nil {
			v.logger.Warn().Err(err).Str("asset", name).Msg("asset not available locally, keeping link")
			return tag
		}
		var b bytes.Buffer
		b.WriteString("<script>\n")
		b.Write(js)
		b.WriteString("\n</script>")
		return b.Bytes()
	})
}

// copyAssets places the scripts referenced by html next to the chart so the
// relative host resolves.
func (v *Visualizer) copyAssets(html []byte) {
	if strings.Contains(v.opts.AssetsHost, "://") {
		return
	}
	for _, m := range scriptTag.FindAllSubmatch(html, -1) {
		name, ok := v.assetName(string(m[1]))
		if !ok {
			continue
		}
		dst := filepath.Join(v.opts.Dir, filepath.FromSlash(v.opts.AssetsHost), filepath.FromSlash(name))
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		if err := copyFile(filepath.Join(v.opts.AssetsDir, filepath.FromSlash(name)), dst); err != nil {
			v.logger.Warn().Err(err).Str("asset", name).Msg("asset copy failed")
		}
	}
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

var errNoData = errors.New("no data")
