package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/pkg/filesystem"
	"github.com/doeshing/shai-ops/internal/ports"
)

// timestamps are stored in a fixed-width UTC layout so text ordering is
// chronological ordering
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore persists history in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// DefaultSQLitePath returns ~/.shai/history/history.db.
func DefaultSQLitePath() string {
	return filesystem.StatePath("history", "history.db")
}

// NewSQLiteStore creates (or opens) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultSQLitePath()
	}
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			id             TEXT PRIMARY KEY,
			session_id     TEXT NOT NULL DEFAULT '',
			user_input     TEXT NOT NULL,
			command        TEXT NOT NULL,
			success        INTEGER NOT NULL,
			output         TEXT,
			error          TEXT,
			execution_time REAL NOT NULL DEFAULT 0,
			risk_level     TEXT NOT NULL DEFAULT '',
			timestamp      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_history_timestamp
			ON history(timestamp);
	`)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append inserts a new record.
func (s *SQLiteStore) Append(ctx context.Context, record domain.HistoryRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO history
		(id, session_id, user_input, command, success, output, error, execution_time, risk_level, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.SessionID,
		record.UserInput,
		record.Command,
		boolToInt(record.Success),
		nullString(record.Output),
		nullString(record.Error),
		record.ExecutionTime,
		string(record.RiskLevel),
		record.Timestamp.UTC().Format(storedTimeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("inserting history record: %w", err)
	}
	return record.ID, nil
}

// Query returns one page of records, newest first.
func (s *SQLiteStore) Query(ctx context.Context, query domain.HistoryQuery) (domain.HistoryPage, error) {
	query = query.Normalize()

	where := ""
	var args []interface{}
	if query.Search != "" {
		pattern := "%" + escapeLike(query.Search) + "%"
		where = ` WHERE user_input LIKE ? ESCAPE '\' OR command LIKE ? ESCAPE '\'`
		args = append(args, pattern, pattern)
	}

	var page domain.HistoryPage
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM history"+where, args...).Scan(&page.Total); err != nil {
		return domain.HistoryPage{}, fmt.Errorf("counting history: %w", err)
	}

	builder := strings.Builder{}
	builder.WriteString(`SELECT id, session_id, user_input, command, success, output, error, execution_time, risk_level, timestamp FROM history`)
	builder.WriteString(where)
	builder.WriteString(" ORDER BY timestamp DESC, rowid DESC LIMIT ? OFFSET ?")
	args = append(args, query.PageSize, query.Offset())

	rows, err := s.db.QueryContext(ctx, builder.String(), args...)
	if err != nil {
		return domain.HistoryPage{}, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return domain.HistoryPage{}, err
		}
		page.Items = append(page.Items, rec)
	}
	return page, rows.Err()
}

// Delete removes one record and reports whether it existed.
func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM history WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("deleting history record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear deletes all history entries.
func (s *SQLiteStore) Clear(ctx context.Context) (bool, error) {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM history"); err != nil {
		return false, fmt.Errorf("clearing history: %w", err)
	}
	return true, nil
}

// ExportJSON writes every record to dest as JSONL, newest first.
func (s *SQLiteStore) ExportJSON(ctx context.Context, dest string) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, user_input, command, success, output, error, execution_time, risk_level, timestamp
		FROM history ORDER BY timestamp DESC, rowid DESC`)
	if err != nil {
		return err
	}
	defer rows.Close()

	file, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return err
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// PruneOlderThan removes entries older than N days and returns how many went.
func (s *SQLiteStore) PruneOlderThan(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -days).UTC().Format(storedTimeLayout)
	res, err := s.db.ExecContext(ctx, "DELETE FROM history WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Path returns the sqlite database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (domain.HistoryRecord, error) {
	var (
		rec     domain.HistoryRecord
		success int
		output  sql.NullString
		errText sql.NullString
		risk    string
		ts      string
	)
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.UserInput, &rec.Command, &success, &output, &errText, &rec.ExecutionTime, &risk, &ts); err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("scanning history row: %w", err)
	}
	rec.Success = success == 1
	rec.RiskLevel = domain.RiskLevel(risk)
	if output.Valid {
		rec.Output = &output.String
	}
	if errText.Valid {
		rec.Error = &errText.String
	}
	t, err := time.Parse(storedTimeLayout, ts)
	if err != nil {
		return domain.HistoryRecord{}, errors.New("history row has malformed timestamp " + ts)
	}
	rec.Timestamp = t
	return rec, nil
}

func escapeLike(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(value)
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var (
	_ ports.HistoryStore      = (*SQLiteStore)(nil)
	_ ports.HistoryMaintainer = (*SQLiteStore)(nil)
)
