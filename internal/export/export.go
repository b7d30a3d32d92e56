// Package export writes result sets to CSV or aligned plain-text
// files in a configurable directory.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/qlogstats/qlogstats/internal/model"
)

// Format selects the output file format.
type Format string

const (
	FormatCSV Format = "csv"
	FormatTXT Format = "txt"
)

// ParseFormat validates a format name from config or a CLI flag.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatTXT:
		return FormatTXT, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv or txt)", s)
	}
}

// Write stores rs under dir as "<name>_<timestamp>.<format>" and
// returns the path of the written file. The file appears atomically:
// it is assembled in a temp file and renamed into place.
func Write(dir, name string, format Format, rs *model.ResultSet) (string, error) {
	return write(dir, name, format, rs, time.Now())
}

func write(dir, name string, format Format, rs *model.ResultSet, now time.Time) (string, error) {
	if rs == nil {
		return "", fmt.Errorf("nothing to export")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.%s", name, now.Format("20060102_150405"), format))

	tmpFile, err := os.CreateTemp(dir, "export-*."+string(format))
	if err != nil {
		return "", fmt.Errorf("failed to create temp export: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	switch format {
	case FormatCSV:
		err = writeCSV(tmpFile, rs)
	case FormatTXT:
		err = writeTXT(tmpFile, rs)
	default:
		err = fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		_ = tmpFile.Close()
		return "", err
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close export: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

func writeCSV(f *os.File, rs *model.ResultSet) error {
	w := csv.NewWriter(f)
	header := make([]string, len(rs.Columns))
	for i, col := range rs.Columns {
		header[i] = col.Label
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}
	record := make([]string, len(rs.Columns))
	for _, row := range rs.Rows {
		for i, col := range rs.Columns {
			record[i] = formatCell(row[col.Key])
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush export: %w", err)
	}
	return nil
}

func writeTXT(f *os.File, rs *model.ResultSet) error {
	return RenderTable(f, rs)
}

// RenderTable writes rs as an aligned plain-text table.
func RenderTable(w io.Writer, rs *model.ResultSet) error {
	widths := make([]int, len(rs.Columns))
	for i, col := range rs.Columns {
		widths[i] = runewidth.StringWidth(col.Label)
	}
	cells := make([][]string, len(rs.Rows))
	for r, row := range rs.Rows {
		cells[r] = make([]string, len(rs.Columns))
		for i, col := range rs.Columns {
			s := formatCell(row[col.Key])
			cells[r][i] = s
			if w := runewidth.StringWidth(s); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for i, col := range rs.Columns {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(runewidth.FillRight(col.Label, widths[i]))
	}
	b.WriteByte('\n')
	for i := range rs.Columns {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(strings.Repeat("-", widths[i]))
	}
	b.WriteByte('\n')
	for _, record := range cells {
		for i, s := range record {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(runewidth.FillRight(s, widths[i]))
		}
		b.WriteByte('\n')
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}
