package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/qlogstats/qlogstats/internal/model"
)

const fixtureSchema = `CREATE TABLE contacts (
	id INTEGER PRIMARY KEY,
	callsign TEXT,
	start_time TEXT,
	band TEXT,
	mode TEXT,
	country TEXT,
	dxcc INTEGER,
	freq REAL,
	k_index INTEGER,
	a_index INTEGER,
	sfi INTEGER,
	qsl_sdate TEXT,
	qsl_rdate TEXT
);`

func seedLogbook(t *testing.T, inserts []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qlog.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if _, err := db.Exec(fixtureSchema); err != nil {
		t.Fatalf("create fixture schema: %v", err)
	}
	for _, stmt := range inserts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed fixture: %v", err)
		}
	}
	return path
}

func TestOpenMissingPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.db"))
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestOpenRejectsForeignSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE sessions (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("create foreign schema: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close fixture db: %v", err)
	}

	if _, err := Open(path); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestQueryScansTypedColumns(t *testing.T) {
	path := seedLogbook(t, []string{
		`INSERT INTO contacts (callsign, start_time, band, mode, country, freq)
		 VALUES ('DL1ABC', '2024-03-01 12:00:00', '20m', 'CW', 'Germany', 14.05)`,
		`INSERT INTO contacts (callsign, start_time, band, mode, country, freq)
		 VALUES ('OK2XYZ', '2024-03-02 13:00:00', '20m', 'SSB', 'Czech Republic', 14.2)`,
	})
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	columns := []model.Column{
		{Key: "band", Label: "Band", Type: model.ColumnString},
		{Key: "count", Label: "QSOs", Type: model.ColumnInteger},
	}
	rs, err := st.Query(context.Background(),
		`SELECT band, COUNT(*) AS count FROM contacts GROUP BY band`, nil, columns)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rs.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rs.Rows))
	}
	if rs.Rows[0]["band"] != "20m" {
		t.Fatalf("unexpected band value: %v", rs.Rows[0]["band"])
	}
	count, ok := rs.Rows[0]["count"].(int64)
	if !ok || count != 2 {
		t.Fatalf("expected int64 count 2, got %T %v", rs.Rows[0]["count"], rs.Rows[0]["count"])
	}
	for _, row := range rs.Rows {
		if len(row) != len(columns) {
			t.Fatalf("row keys do not match metadata: %v", row)
		}
	}
}

func TestDistinctAndTotals(t *testing.T) {
	path := seedLogbook(t, []string{
		`INSERT INTO contacts (callsign, start_time, band, mode, country)
		 VALUES ('DL1ABC', '2024-03-01 12:00:00', '20m', 'CW', 'Germany')`,
		`INSERT INTO contacts (callsign, start_time, band, mode, country)
		 VALUES ('OK2XYZ', '2024-04-01 12:00:00', '40m', 'SSB', 'Czech Republic')`,
		`INSERT INTO contacts (callsign, start_time, band, mode, country)
		 VALUES ('F5XYZ', '2024-05-01 12:00:00', '20m', 'CW', 'France')`,
	})
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	bands, err := st.Bands(ctx)
	if err != nil {
		t.Fatalf("bands: %v", err)
	}
	if len(bands) != 2 || bands[0] != "20m" || bands[1] != "40m" {
		t.Fatalf("unexpected bands: %v", bands)
	}

	total, err := st.TotalContacts(ctx, model.DateRange{}, model.Filters{Band: "20m"})
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 contacts on 20m, got %d", total)
	}

	min, max, err := st.DateRange(ctx)
	if err != nil {
		t.Fatalf("date range: %v", err)
	}
	if min != "2024-03-01" || max != "2024-05-01" {
		t.Fatalf("unexpected date range: %s..%s", min, max)
	}
}
