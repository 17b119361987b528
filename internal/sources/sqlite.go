package sources

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
	"unicode"

	_ "modernc.org/sqlite"

	apierrors "seriesdash/internal/errors"
	"seriesdash/internal/series"
)

// OpenSQLite opens a read-only handle on a SQLite file. The caller owns
// the handle and must close it.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// SQLiteSource reads every row of one table. It borrows a connection from
// the handle for the duration of a single Load.
type SQLiteSource struct {
	name  string
	db    *sql.DB
	table string
	shape Shape
}

// NewSQLiteSource validates table and returns a source over db.
func NewSQLiteSource(name string, db *sql.DB, table string, shape Shape) (*SQLiteSource, error) {
	if !validIdentifier(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return &SQLiteSource{name: name, db: db, table: table, shape: shape}, nil
}

// Name returns the dataset name
func (s *SQLiteSource) Name() string { return s.name }

// Load runs SELECT * on the table. NULL cells become missing.
func (s *SQLiteSource) Load(ctx context.Context) (series.Table, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return series.Table{}, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `SELECT * FROM "`+s.table+`"`)
	if err != nil {
		return series.Table{}, apierrors.NewStorageError("failed to query "+s.table, err).
			WithContext("dataset", s.name)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return series.Table{}, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []series.Row
	cells := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range cells {
		ptrs[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return series.Table{}, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(series.Row, len(columns))
		for i, col := range columns {
			row[col] = sqlValue(cells[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return series.Table{}, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return s.shape.apply(series.NewTable(columns, out)), nil
}

// sqlValue maps a scanned driver value to a text cell. Numbers keep their
// shortest text so the pipeline parses them like any file source.
func sqlValue(v any) series.Value {
	switch x := v.(type) {
	case nil:
		return series.Missing()
	case []byte:
		if len(x) == 0 {
			return series.Missing()
		}
		return series.String(string(x))
	case string:
		if x == "" {
			return series.Missing()
		}
		return series.String(x)
	case int64:
		return series.String(strconv.FormatInt(x, 10))
	case float64:
		return series.String(strconv.FormatFloat(x, 'f', -1, 64))
	case bool:
		return series.String(strconv.FormatBool(x))
	case time.Time:
		return series.Date(x)
	default:
		return series.String(fmt.Sprint(x))
	}
}

// validIdentifier accepts letters, digits and underscores, not starting
// with a digit.
func validIdentifier(s string) bool {
	if s == "" || len(s) > 128 {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case unicode.IsDigit(r) && i > 0:
		default:
			return false
		}
	}
	return true
}
