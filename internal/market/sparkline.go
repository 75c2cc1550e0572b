package market

import (
	"fmt"
	"math"
	"strings"

	"github.com/stockdeck/stockdeck/pkg/models"
)

// SparklineConfig holds rendering parameters for the stock page chart.
type SparklineConfig struct {
	Width     int    // SVG width in pixels (default: 640)
	Height    int    // SVG height in pixels (default: 240)
	Margin    int    // uniform margin (default: 10)
	LineColor string // series stroke; defaults by direction when empty
	FillColor string // area fill under the line (default: derived)
	BgColor   string // background color (default: transparent)
	Title     string // optional title text
}

// DefaultSparklineConfig returns sensible defaults for the dashboard.
func DefaultSparklineConfig() SparklineConfig {
	return SparklineConfig{
		Width:  640,
		Height: 240,
		Margin: 10,
	}
}

// Sparkline renders the close series of the candles as an SVG line
// chart with a soft area fill. Rising series draw green, falling red.
func Sparkline(candles []models.OHLCV, cfg SparklineConfig) string {
	if cfg.Width == 0 {
		cfg = DefaultSparklineConfig()
	}

	closes := make([]float64, 0, len(candles))
	for _, c := range candles {
		if c.Close != 0 && !math.IsNaN(c.Close) {
			closes = append(closes, c.Close)
		}
	}
	if len(closes) < 2 {
		return emptySVG(cfg, "No price data")
	}

	minV, maxV := closes[0], closes[0]
	for _, v := range closes {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	vRange := maxV - minV
	if vRange < 0.001 {
		vRange = 1
	}
	minV -= vRange * 0.05
	maxV += vRange * 0.05
	vRange = maxV - minV

	line := cfg.LineColor
	fill := cfg.FillColor
	if line == "" {
		if closes[len(closes)-1] >= closes[0] {
			line, fill = "#26a69a", "rgba(38,166,154,0.12)"
		} else {
			line, fill = "#ef5350", "rgba(239,83,80,0.12)"
		}
	}
	if fill == "" {
		fill = "none"
	}

	m := cfg.Margin
	pw := cfg.Width - 2*m
	ph := cfg.Height - 2*m

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height))
	if cfg.BgColor != "" {
		sb.WriteString(fmt.Sprintf(`<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`,
			cfg.Width, cfg.Height, cfg.BgColor))
	}
	if cfg.Title != "" {
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" font-size="12" fill="#666">%s</text>`,
			m, m+4, escapeXML(cfg.Title)))
	}

	var pathParts []string
	for i, v := range closes {
		x := float64(m) + float64(i)*float64(pw)/float64(len(closes)-1)
		ratio := (v - minV) / vRange
		y := float64(m+ph) - ratio*float64(ph)
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		pathParts = append(pathParts, fmt.Sprintf("%s%.1f,%.1f", cmd, x, y))
	}
	path := strings.Join(pathParts, " ")

	// Closed area under the line.
	if fill != "none" {
		sb.WriteString(fmt.Sprintf(`<path d="%s L%d,%d L%d,%d Z" fill="%s" stroke="none"/>`,
			path, m+pw, m+ph, m, m+ph, fill))
	}
	sb.WriteString(fmt.Sprintf(`<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round"/>`,
		path, line))

	sb.WriteString("</svg>")
	return sb.String()
}

func emptySVG(cfg SparklineConfig, msg string) string {
	if cfg.Width == 0 {
		cfg.Width = 400
	}
	if cfg.Height == 0 {
		cfg.Height = 160
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="%d" height="%d" fill="#f5f5f5"/><text x="%d" y="%d" text-anchor="middle" fill="#999" font-size="14">%s</text></svg>`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height, cfg.Width/2, cfg.Height/2, escapeXML(msg))
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
