// Package store handles read-only SQLite access to the logbook.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/qlogstats/qlogstats/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrStorageUnavailable marks a missing or unreadable logbook database.
var ErrStorageUnavailable = errors.New("logbook unavailable")

// ErrQueryFailed marks an unexpected storage failure executing a
// well-formed statement.
var ErrQueryFailed = errors.New("query failed")

// Store wraps read-only SQLite access to the QLog contacts table.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the logbook strictly read-only. It fails with
// ErrStorageUnavailable when the file is missing or does not carry the
// expected contacts schema.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStorageUnavailable, path)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	store := &Store{db: db, path: path}
	if err := store.verifySchema(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on verification failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the logbook path this store was opened with.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) verifySchema() error {
	var name string
	err := s.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'contacts'`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s is not a logbook database (no contacts table)",
			ErrStorageUnavailable, s.path)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Query executes a parameterized SELECT and scans the rows into typed
// scalars according to the declared column metadata. Statement failures
// wrap ErrQueryFailed; they indicate storage trouble, never builder
// output, which is validated upstream.
func (s *Store) Query(ctx context.Context, sqlText string, params []any, columns []model.Column) (*model.ResultSet, error) {
	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	result := &model.ResultSet{Columns: columns}
	dest := make([]any, len(columns))
	raw := make([]any, len(columns))
	for i := range raw {
		dest[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
		}
		row := make(model.Row, len(columns))
		for i, col := range columns {
			row[col.Key] = convertScalar(raw[i], col.Type)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return result, nil
}

// convertScalar normalizes driver values to the column's declared type.
func convertScalar(value any, typ model.ColumnType) any {
	if value == nil {
		switch typ {
		case model.ColumnInteger:
			return int64(0)
		case model.ColumnFloat:
			return float64(0)
		default:
			return ""
		}
	}
	switch typ {
	case model.ColumnInteger:
		switch v := value.(type) {
		case int64:
			return v
		case float64:
			return int64(v)
		case string:
			return parseInt(v)
		case []byte:
			return parseInt(string(v))
		}
	case model.ColumnFloat:
		switch v := value.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		case string:
			return parseFloat(v)
		case []byte:
			return parseFloat(string(v))
		}
	case model.ColumnDate, model.ColumnString:
		switch v := value.(type) {
		case string:
			return v
		case []byte:
			return string(v)
		case time.Time:
			return v.Format("2006-01-02")
		case int64:
			return fmt.Sprintf("%d", v)
		case float64:
			return fmt.Sprintf("%g", v)
		}
	}
	return fmt.Sprintf("%v", value)
}

func parseInt(s string) int64 {
	var n int64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0
	}
	return n
}

func parseFloat(s string) float64 {
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
		return 0
	}
	return f
}

// DateRange returns the first and last QSO dates in the logbook.
func (s *Store) DateRange(ctx context.Context) (min, max string, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(DATE(MIN(start_time)), ''), COALESCE(DATE(MAX(start_time)), '')
		 FROM contacts WHERE start_time IS NOT NULL`).Scan(&min, &max)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return min, max, nil
}

// TotalContacts counts QSOs matching the given filters.
func (s *Store) TotalContacts(ctx context.Context, dates model.DateRange, filters model.Filters) (int64, error) {
	if err := dates.Validate(); err != nil {
		return 0, err
	}
	clauses := []string{"1=1"}
	var params []any
	if dates.From != nil {
		clauses = append(clauses, "start_time >= ?")
		params = append(params, dates.From.Format("2006-01-02"))
	}
	if dates.To != nil {
		clauses = append(clauses, "start_time <= ?")
		params = append(params, dates.To.Format("2006-01-02")+" 23:59:59")
	}
	if filters.Band != "" {
		clauses = append(clauses, "band = ?")
		params = append(params, filters.Band)
	}
	if filters.Mode != "" {
		clauses = append(clauses, "mode = ?")
		params = append(params, filters.Mode)
	}
	if filters.Country != "" {
		clauses = append(clauses, "country = ?")
		params = append(params, filters.Country)
	}
	query := "SELECT COUNT(*) FROM contacts WHERE " + strings.Join(clauses, " AND ")
	var count int64
	if err := s.db.QueryRowContext(ctx, query, params...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return count, nil
}

// Bands lists the distinct bands present in the logbook.
func (s *Store) Bands(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "band")
}

// Modes lists the distinct modes present in the logbook.
func (s *Store) Modes(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "mode")
}

// Countries lists the distinct countries present in the logbook.
func (s *Store) Countries(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "country")
}

func (s *Store) distinct(ctx context.Context, column string) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT %s FROM contacts WHERE %s IS NOT NULL AND %s != '' ORDER BY %s`,
		column, column, column, column)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return values, nil
}
