package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

var stagingColumns = []string{
	"barcode", "price", "stock", "name", "description", "batch_id", "staged_at",
}

// BulkLoader streams a delimited product file into catalog_staging under a
// single batch ID using the COPY protocol.
//
// The input schema is fixed: one header line (skipped), then five ordered
// fields per row: barcode, price, stock, name, description. Fully empty
// rows are ignored; any other malformed row aborts the batch, because the
// load phase is all-or-nothing.
type BulkLoader struct {
	db  DB
	log *slog.Logger
}

// NewBulkLoader creates a loader bound to the run's connection.
func NewBulkLoader(db DB, log *slog.Logger) *BulkLoader {
	if log == nil {
		log = slog.Default()
	}
	return &BulkLoader{db: db, log: log}
}

// Load stages the file's rows under batchID and returns the number of rows
// staged. Any rows left from a previous attempt of the same batch are
// deleted first, so retrying a failed batch cannot duplicate staged data.
func (l *BulkLoader) Load(ctx context.Context, batchID, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &InputError{Path: path, Err: err}
	}
	defer f.Close()

	tag, err := l.db.Exec(ctx, `DELETE FROM catalog_staging WHERE batch_id = $1`, batchID)
	if err != nil {
		return 0, &LoadError{BatchID: batchID, Err: fmt.Errorf("clear prior staging rows: %w", err)}
	}
	if tag.RowsAffected() > 0 {
		l.log.Info("cleared staging rows from prior attempt",
			"batch_id", batchID,
			"rows", tag.RowsAffected(),
		)
	}

	r := csv.NewReader(sanitizeInput(f))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	// Header line is fixed by contract; skip without matching.
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return 0, &InputError{Path: path, Err: errors.New("empty file")}
		}
		return 0, &InputError{Path: path, Err: fmt.Errorf("read header: %w", err)}
	}

	src := &stagingSource{
		reader:   r,
		batchID:  batchID,
		stagedAt: time.Now().UTC(),
		line:     1,
	}

	if _, err := l.db.CopyFrom(ctx, pgx.Identifier{"catalog_staging"}, stagingColumns, src); err != nil {
		if src.rowErr != nil {
			return 0, &InputError{Path: path, Err: src.rowErr}
		}
		return 0, &LoadError{BatchID: batchID, Err: err}
	}

	var count int64
	row := l.db.QueryRow(ctx, `SELECT count(*) FROM catalog_staging WHERE batch_id = $1`, batchID)
	if err := row.Scan(&count); err != nil {
		return 0, &LoadError{BatchID: batchID, Err: fmt.Errorf("count staged rows: %w", err)}
	}

	return count, nil
}

// stagingSource adapts the CSV stream to pgx.CopyFromSource, parsing and
// validating one row at a time so memory stays constant regardless of file
// size.
type stagingSource struct {
	reader   *csv.Reader
	batchID  string
	stagedAt time.Time
	line     int
	values   []any
	rowErr   error
}

func (s *stagingSource) Next() bool {
	if s.rowErr != nil {
		return false
	}

	for {
		rec, err := s.reader.Read()
		s.line++
		if err == io.EOF {
			return false
		}
		if err != nil {
			s.rowErr = fmt.Errorf("line %d: %w", s.line, err)
			return false
		}

		if isEmptyRow(rec) {
			continue
		}

		values, err := parseStagingRow(rec, s.batchID, s.stagedAt)
		if err != nil {
			s.rowErr = fmt.Errorf("line %d: %w", s.line, err)
			return false
		}
		s.values = values
		return true
	}
}

func (s *stagingSource) Values() ([]any, error) { return s.values, nil }

func (s *stagingSource) Err() error { return s.rowErr }

// parseStagingRow validates one data row and builds the COPY values in
// stagingColumns order.
func parseStagingRow(rec []string, batchID string, stagedAt time.Time) ([]any, error) {
	if len(rec) < 5 {
		return nil, fmt.Errorf("expected 5 columns, got %d", len(rec))
	}

	barcode := strings.TrimSpace(rec[0])
	if barcode == "" {
		return nil, errors.New("empty barcode")
	}

	price, err := parsePrice(rec[1])
	if err != nil {
		return nil, fmt.Errorf("price %q: %w", rec[1], err)
	}

	stock, err := parseStock(rec[2])
	if err != nil {
		return nil, fmt.Errorf("stock %q: %w", rec[2], err)
	}

	name := strings.TrimSpace(rec[3])

	var description pgtype.Text
	if d := strings.TrimSpace(rec[4]); d != "" {
		description = pgtype.Text{String: d, Valid: true}
	}

	return []any{barcode, price, stock, name, description, batchID, stagedAt}, nil
}

// parsePrice parses a non-negative decimal with at most two fractional
// digits into a pgtype.Numeric.
func parsePrice(s string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return pgtype.Numeric{}, errors.New("not a decimal")
	}
	if d.IsNegative() {
		return pgtype.Numeric{}, errors.New("negative")
	}
	if d.Exponent() < -2 {
		return pgtype.Numeric{}, errors.New("more than two fractional digits")
	}

	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}, err
	}
	return n, nil
}

// parseStock parses a non-negative integer quantity.
func parseStock(s string) (int32, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, errors.New("not an integer")
	}
	if v < 0 {
		return 0, errors.New("negative")
	}
	return int32(v), nil
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
