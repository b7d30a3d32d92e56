package stats

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qlogstats/qlogstats/internal/model"
	"github.com/qlogstats/qlogstats/internal/query"
	"github.com/qlogstats/qlogstats/internal/store"
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
	qsl_rdate TEXT,
	qsl_sent TEXT,
	qsl_rcvd TEXT,
	lotw_qsl_rcvd TEXT,
	eqsl_qsl_rcvd TEXT
);`

type fixtureQSO struct {
	callsign string
	start    string
	band     string
	mode     string
	country  string
}

func seedEngine(t *testing.T, qsos []fixtureQSO) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qlog.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	if _, err := db.Exec(fixtureSchema); err != nil {
		t.Fatalf("create fixture schema: %v", err)
	}
	for _, q := range qsos {
		_, err := db.Exec(
			`INSERT INTO contacts (callsign, start_time, band, mode, country) VALUES (?, ?, ?, ?, ?)`,
			q.callsign, q.start, q.band, q.mode, q.country)
		if err != nil {
			t.Fatalf("seed fixture: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close fixture db: %v", err)
	}

	st, err := store.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return NewEngine(st)
}

func TestRunByBand(t *testing.T) {
	engine := seedEngine(t, []fixtureQSO{
		{"DL1ABC", "2024-03-01 12:00:00", "20m", "CW", "Germany"},
		{"OK2XYZ", "2024-03-02 13:00:00", "20m", "SSB", "Czech Republic"},
		{"F5XYZ", "2024-03-03 14:00:00", "20m", "CW", "France"},
		{"G4ABC", "2024-03-04 15:00:00", "40m", "CW", "England"},
	})

	rs, err := engine.Run(context.Background(), query.Request{Statistic: "by_band"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rs.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rs.Rows))
	}
	if rs.Rows[0]["band"] != "20m" || rs.Rows[0]["count"] != int64(3) {
		t.Fatalf("unexpected first row: %v", rs.Rows[0])
	}
	if rs.Rows[1]["band"] != "40m" || rs.Rows[1]["count"] != int64(1) {
		t.Fatalf("unexpected second row: %v", rs.Rows[1])
	}
}

func TestRunTieBreakIsDeterministic(t *testing.T) {
	engine := seedEngine(t, []fixtureQSO{
		{"DL1ABC", "2024-03-01 12:00:00", "40m", "CW", "Germany"},
		{"OK2XYZ", "2024-03-02 13:00:00", "20m", "SSB", "Czech Republic"},
	})
	rs, err := engine.Run(context.Background(), query.Request{Statistic: "by_band"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Equal counts sort by band name ascending.
	if rs.Rows[0]["band"] != "20m" || rs.Rows[1]["band"] != "40m" {
		t.Fatalf("unexpected tie-break order: %v", rs.Rows)
	}
}

func TestRunUnknownStatistic(t *testing.T) {
	engine := seedEngine(t, nil)
	_, err := engine.Run(context.Background(), query.Request{Statistic: "by_moon_phase"})
	if !errors.Is(err, ErrUnknownStatistic) {
		t.Fatalf("expected ErrUnknownStatistic, got %v", err)
	}
}

func TestRunInvalidConditionNeverReachesStore(t *testing.T) {
	engine := seedEngine(t, nil)
	req := query.Request{
		Statistic:  "by_band",
		Conditions: query.And(query.Condition{Field: "evil", Op: query.OpEqual, Values: []string{"x"}}),
	}
	_, err := engine.Run(context.Background(), req)
	if !errors.Is(err, query.ErrInvalidCondition) {
		t.Fatalf("expected ErrInvalidCondition, got %v", err)
	}
	if errors.Is(err, store.ErrQueryFailed) {
		t.Fatalf("invalid condition reached the store: %v", err)
	}
}

func TestRunSpecialCallsigns(t *testing.T) {
	engine := seedEngine(t, []fixtureQSO{
		{"DL75DARC", "2024-03-01 12:00:00", "20m", "CW", "Germany"},
		{"DL0AB", "2024-03-02 13:00:00", "40m", "SSB", "Germany"},
		{"DR1A", "2024-03-03 14:00:00", "20m", "CW", "Germany"},
		{"DL1ABC", "2024-03-04 15:00:00", "20m", "CW", "Germany"},
		{"DL0XY/P", "2024-03-05 16:00:00", "20m", "CW", "Germany"},
	})
	rs, err := engine.Run(context.Background(), query.Request{Statistic: "special_callsigns"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rs.Rows) != 3 {
		t.Fatalf("expected 3 special rows, got %d: %v", len(rs.Rows), rs.Rows)
	}
	reasons := map[string]string{}
	for _, row := range rs.Rows {
		reasons[row["callsign"].(string)] = row["reason"].(string)
	}
	want := map[string]string{"DL75DARC": "anniversary", "DL0AB": "club", "DR1A": "event"}
	for call, reason := range want {
		if reasons[call] != reason {
			t.Fatalf("expected %s reason %q, got %q", call, reason, reasons[call])
		}
	}
	if _, ok := rs.Column("reason"); !ok {
		t.Fatalf("expected derived reason column in metadata")
	}
}

func TestRunByCallsignAnnotates(t *testing.T) {
	engine := seedEngine(t, []fixtureQSO{
		{"DL0AB", "2024-03-01 12:00:00", "20m", "CW", "Germany"},
		{"DL0AB", "2024-03-02 13:00:00", "20m", "CW", "Germany"},
		{"K3AB", "2024-03-03 14:00:00", "40m", "SSB", "USA"},
	})
	rs, err := engine.Run(context.Background(), query.Request{Statistic: "by_callsign"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rs.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rs.Rows))
	}
	if rs.Rows[0]["callsign"] != "DL0AB" || rs.Rows[0]["special"] != "club" {
		t.Fatalf("unexpected first row: %v", rs.Rows[0])
	}
	if rs.Rows[1]["callsign"] != "K3AB" || rs.Rows[1]["special"] != "" {
		t.Fatalf("unexpected second row: %v", rs.Rows[1])
	}
}

func TestDrillDown(t *testing.T) {
	engine := seedEngine(t, []fixtureQSO{
		{"DL1ABC", "2024-03-01 12:00:00", "20m", "CW", "Germany"},
		{"OK2XYZ", "2024-03-02 13:00:00", "40m", "SSB", "Czech Republic"},
	})
	rs, err := engine.DrillDown(context.Background(), query.Request{Statistic: "by_band"}, "20m")
	if err != nil {
		t.Fatalf("drill down: %v", err)
	}
	if len(rs.Rows) != 1 || rs.Rows[0]["callsign"] != "DL1ABC" {
		t.Fatalf("unexpected drill-down rows: %v", rs.Rows)
	}

	// Ungrouped statistics cannot drill down.
	if _, err := engine.DrillDown(context.Background(), query.Request{Statistic: "top_days"}, "2024-03-01"); err == nil {
		t.Fatalf("expected drill-down rejection for top_days")
	}
}

func TestSearch(t *testing.T) {
	engine := seedEngine(t, []fixtureQSO{
		{"DL1ABC", "2024-03-01 12:00:00", "20m", "CW", "Germany"},
		{"OK2ABC", "2024-03-02 13:00:00", "40m", "SSB", "Czech Republic"},
		{"F5XYZ", "2024-03-03 14:00:00", "20m", "CW", "France"},
	})
	rs, err := engine.Search(context.Background(), "abc", false, query.Request{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(rs.Rows) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(rs.Rows))
	}

	rs, err = engine.Search(context.Background(), "DL", true, query.Request{})
	if err != nil {
		t.Fatalf("prefix search: %v", err)
	}
	if len(rs.Rows) != 1 || rs.Rows[0]["callsign"] != "DL1ABC" {
		t.Fatalf("unexpected prefix matches: %v", rs.Rows)
	}
}

func TestRegistryCoversAllKinds(t *testing.T) {
	registry := NewRegistry()
	for _, id := range []string{
		"by_country", "by_band", "by_mode", "by_year", "by_month",
		"by_weekday", "by_day", "by_hour", "by_callsign",
		"top_days", "flop_days", "propagation", "special_callsigns",
		"qsl_sent", "qsl_received", "qsl_requested", "qsl_queued",
		"lotw_received", "eqsl_received",
	} {
		if _, ok := registry.Lookup(id); !ok {
			t.Fatalf("missing descriptor %q", id)
		}
	}
}

func TestRunQSLStates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qlog.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	if _, err := db.Exec(fixtureSchema); err != nil {
		t.Fatalf("create fixture schema: %v", err)
	}
	inserts := []struct {
		callsign, sent, rcvd string
	}{
		{"DL1ABC", "Y", "R"},
		{"OK2XYZ", "Q", ""},
		{"F5XYZ", "", ""},
	}
	for i, ins := range inserts {
		_, err := db.Exec(
			`INSERT INTO contacts (callsign, start_time, band, mode, country, qsl_sent, qsl_rcvd)
			 VALUES (?, ?, '20m', 'CW', 'Germany', ?, ?)`,
			ins.callsign, fmt.Sprintf("2024-03-%02d 12:00:00", i+1), ins.sent, ins.rcvd)
		if err != nil {
			t.Fatalf("seed fixture: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close fixture db: %v", err)
	}
	st, err := store.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	engine := NewEngine(st)

	rs, err := engine.Run(context.Background(), query.Request{Statistic: "qsl_requested"})
	if err != nil {
		t.Fatalf("run qsl_requested: %v", err)
	}
	if len(rs.Rows) != 1 || rs.Rows[0]["callsign"] != "DL1ABC" {
		t.Fatalf("unexpected requested rows: %v", rs.Rows)
	}

	rs, err = engine.Run(context.Background(), query.Request{Statistic: "qsl_queued"})
	if err != nil {
		t.Fatalf("run qsl_queued: %v", err)
	}
	if len(rs.Rows) != 1 || rs.Rows[0]["callsign"] != "OK2XYZ" {
		t.Fatalf("unexpected queued rows: %v", rs.Rows)
	}
}

func TestChartPoints(t *testing.T) {
	registry := NewRegistry()
	desc, _ := registry.Lookup("by_band")
	rs := &model.ResultSet{
		Columns: desc.Columns,
		Rows: []model.Row{
			{"band": "20m", "count": int64(3)},
			{"band": "40m", "count": int64(1)},
		},
	}
	points := ChartPoints(desc, rs)
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Label != "20m" || points[0].Value != 3 {
		t.Fatalf("unexpected point: %+v", points[0])
	}

	special, _ := registry.Lookup("special_callsigns")
	if got := ChartPoints(special, rs); got != nil {
		t.Fatalf("expected nil points for non-chartable statistic")
	}
}

func TestRenderBarChart(t *testing.T) {
	points := []ChartPoint{
		{Label: "20m", Value: 30},
		{Label: "40m", Value: 15},
	}
	var buf bytes.Buffer
	if err := RenderBarChart(&buf, "QSOs by band", points, 40, 0); err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected title plus 2 bars, got %d lines: %q", len(lines), buf.String())
	}
	if lines[0] != "QSOs by band" {
		t.Fatalf("unexpected title line: %q", lines[0])
	}
	first := strings.Count(lines[1], "█")
	second := strings.Count(lines[2], "█")
	if first <= second || second < 1 {
		t.Fatalf("expected proportional bars, got %d and %d", first, second)
	}
}

func TestRunPropagation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qlog.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	if _, err := db.Exec(fixtureSchema); err != nil {
		t.Fatalf("create fixture schema: %v", err)
	}
	for i, sfi := range []int{100, 120, 140} {
		_, err := db.Exec(
			`INSERT INTO contacts (callsign, start_time, band, mode, country, k_index, a_index, sfi)
			 VALUES ('DL1ABC', ?, '20m', 'CW', 'Germany', 2, 5, ?)`,
			fmt.Sprintf("2024-03-%02d 12:00:00", i+1), sfi)
		if err != nil {
			t.Fatalf("seed fixture: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close fixture db: %v", err)
	}
	st, err := store.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	rs, err := NewEngine(st).Run(context.Background(), query.Request{Statistic: "propagation"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rs.Rows) != 1 {
		t.Fatalf("expected 1 monthly row, got %d", len(rs.Rows))
	}
	row := rs.Rows[0]
	if row["month"] != "2024-03" {
		t.Fatalf("unexpected month: %v", row["month"])
	}
	if row["sfi"] != float64(120) {
		t.Fatalf("expected averaged SFI 120, got %v", row["sfi"])
	}
}
