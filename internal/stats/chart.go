package stats

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

const (
	defaultChartWidth  = 80
	minBarWidth        = 10
	defaultChartPoints = 20
)

// RenderBarChart writes a horizontal text bar chart for the given points.
// At most limit points are drawn; width <= 0 autodetects the terminal.
func RenderBarChart(w io.Writer, title string, points []ChartPoint, width, limit int) error {
	if len(points) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = defaultChartPoints
	}
	if len(points) > limit {
		points = points[:limit]
	}
	if width <= 0 {
		width = autoChartWidth()
	}

	labelWidth := 0
	maxValue := 0.0
	for _, p := range points {
		if l := utf8.RuneCountInString(p.Label); l > labelWidth {
			labelWidth = l
		}
		if p.Value > maxValue {
			maxValue = p.Value
		}
	}
	if maxValue <= 0 {
		maxValue = 1
	}
	valueWidth := len(formatChartValue(maxValue))
	barWidth := width - labelWidth - valueWidth - 3
	if barWidth < minBarWidth {
		barWidth = minBarWidth
	}

	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	for _, p := range points {
		bar := int(p.Value / maxValue * float64(barWidth))
		if bar < 1 && p.Value > 0 {
			bar = 1
		}
		_, err := fmt.Fprintf(w, "%-*s %*s %s\n",
			labelWidth, p.Label,
			valueWidth, formatChartValue(p.Value),
			strings.Repeat("█", bar))
		if err != nil {
			return err
		}
	}
	return nil
}

func formatChartValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}

func autoChartWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return defaultChartWidth
}
