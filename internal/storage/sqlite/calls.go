package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/co-gci/pkg/logger"
)

// CallStorage handles storage of radio call records
type CallStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewCallStorage creates a new SQLite call storage
func NewCallStorage(db *sql.DB, log *logger.Logger) *CallStorage {
	storage := &CallStorage{
		db:     db,
		logger: log.Named("sqlite-calls"),
	}

	// Initialize database
	if err := storage.initDB(); err != nil {
		storage.logger.Error("Failed to initialize call storage", logger.Error(err))
	}

	return storage
}

// initDB initializes the database tables
func (s *CallStorage) initDB() error {
	// Create calls table
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pilot TEXT NOT NULL,
			frequency TEXT NOT NULL,
			request_kind TEXT NOT NULL,
			transcript TEXT,
			reply_script TEXT,
			outcome TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create calls table: %w", err)
	}

	// Create indexes for performance
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_calls_pilot ON calls(pilot)`,
		`CREATE INDEX IF NOT EXISTS idx_calls_timestamp ON calls(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_calls_outcome ON calls(outcome)`,
	}

	for _, indexSQL := range indexes {
		_, err = s.db.Exec(indexSQL)
		if err != nil {
			return fmt.Errorf("failed to create call index: %w", err)
		}
	}

	return nil
}

// StoreCall stores a call record
func (s *CallStorage) StoreCall(record *CallRecord) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO calls
		(pilot, frequency, request_kind, transcript, reply_script, outcome, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Pilot,
		record.Frequency,
		record.RequestKind,
		record.Transcript,
		record.ReplyScript,
		record.Outcome,
		record.Timestamp.Format(time.RFC3339),
		record.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert call: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// GetRecentCalls returns recent calls across all pilots
func (s *CallStorage) GetRecentCalls(limit int) ([]*CallRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, pilot, frequency, request_kind, transcript, reply_script, outcome, timestamp, created_at
		FROM calls
		ORDER BY timestamp DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent calls: %w", err)
	}
	defer rows.Close()

	return s.scanCallRows(rows)
}

// GetCallsByPilot returns calls made by a specific pilot
func (s *CallStorage) GetCallsByPilot(pilot string, limit int) ([]*CallRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, pilot, frequency, request_kind, transcript, reply_script, outcome, timestamp, created_at
		FROM calls
		WHERE pilot = ?
		ORDER BY timestamp DESC
		LIMIT ?`,
		pilot, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query calls by pilot: %w", err)
	}
	defer rows.Close()

	return s.scanCallRows(rows)
}

// GetCallsByTimeRange returns calls within a time range
func (s *CallStorage) GetCallsByTimeRange(startTime, endTime time.Time) ([]*CallRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, pilot, frequency, request_kind, transcript, reply_script, outcome, timestamp, created_at
		FROM calls
		WHERE timestamp BETWEEN ? AND ?
		ORDER BY timestamp DESC`,
		startTime.Format(time.RFC3339), endTime.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query calls by time range: %w", err)
	}
	defer rows.Close()

	return s.scanCallRows(rows)
}

// scanCallRows scans database rows into CallRecord structs
func (s *CallStorage) scanCallRows(rows *sql.Rows) ([]*CallRecord, error) {
	var records []*CallRecord
	for rows.Next() {
		var record CallRecord
		var timestamp, createdAt string
		var transcript, replyScript sql.NullString

		if err := rows.Scan(
			&record.ID,
			&record.Pilot,
			&record.Frequency,
			&record.RequestKind,
			&transcript,
			&replyScript,
			&record.Outcome,
			&timestamp,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}

		var err error
		record.Timestamp, err = time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}

		record.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		if transcript.Valid {
			record.Transcript = transcript.String
		}
		if replyScript.Valid {
			record.ReplyScript = replyScript.String
		}

		records = append(records, &record)
	}

	return records, nil
}
