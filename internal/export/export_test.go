package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/qlogstats/qlogstats/internal/model"
)

func sampleResultSet() *model.ResultSet {
	return &model.ResultSet{
		Columns: []model.Column{
			{Key: "band", Label: "Band", Type: model.ColumnString},
			{Key: "count", Label: "QSOs", Type: model.ColumnInteger},
		},
		Rows: []model.Row{
			{"band": "20m", "count": int64(3)},
			{"band": "40m", "count": int64(1)},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	stamp := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	path, err := write(dir, "by_band", FormatCSV, sampleResultSet(), stamp)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != "by_band_20240301_123045.csv" {
		t.Fatalf("unexpected file name %q", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	want := "Band,QSOs\n20m,3\n40m,1\n"
	if string(data) != want {
		t.Fatalf("unexpected CSV:\n%q\nwant:\n%q", data, want)
	}
}

func TestWriteTXTAligned(t *testing.T) {
	dir := t.TempDir()
	rs := sampleResultSet()
	rs.Rows = append(rs.Rows, model.Row{"band": "longband", "count": int64(12)})
	path, err := Write(dir, "by_band", FormatTXT, rs)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header, rule and 3 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Band    ") {
		t.Fatalf("header not padded to widest cell: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "--------") {
		t.Fatalf("unexpected rule line: %q", lines[1])
	}
	if !strings.HasPrefix(lines[4], "longband  12") {
		t.Fatalf("unexpected widest row: %q", lines[4])
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if _, err := Write(dir, "by_band", FormatCSV, sampleResultSet()); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single export file, got %d entries", len(entries))
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(" CSV "); err != nil || f != FormatCSV {
		t.Fatalf("expected csv, got %v %v", f, err)
	}
	if _, err := ParseFormat("xlsx"); err == nil {
		t.Fatalf("expected rejection of unknown format")
	}
}

func TestWriteNilResultSet(t *testing.T) {
	if _, err := Write(t.TempDir(), "by_band", FormatCSV, nil); err == nil {
		t.Fatalf("expected error for nil result set")
	}
}
