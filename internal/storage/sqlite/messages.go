package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/yegors/atcsim/internal/message"
	"github.com/yegors/atcsim/pkg/logger"
)

const defaultMessageLimit = 100

// MessageStorage persists controller messages for one simulation run
type MessageStorage struct {
	db     *sql.DB
	runID  string
	logger *logger.Logger
}

// NewMessageStorage creates a new SQLite message storage
func NewMessageStorage(db *sql.DB, runID string, log *logger.Logger) (*MessageStorage, error) {
	storage := &MessageStorage{
		db:     db,
		runID:  runID,
		logger: log.Named("sqlite-messages"),
	}

	if err := storage.initDB(); err != nil {
		storage.logger.Error("Failed to initialize message storage", logger.Error(err))
		return nil, err
	}

	return storage, nil
}

// initDB initializes the database tables
func (s *MessageStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			receiver TEXT NOT NULL,
			type TEXT NOT NULL,
			aircraft_id TEXT,
			content TEXT NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create messages table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_messages_run ON messages(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_aircraft ON messages(aircraft_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_type ON messages(type)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp_ms)`,
	}

	for _, indexSQL := range indexes {
		if _, err = s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create message index: %w", err)
		}
	}

	return nil
}

// RunID returns the run the storage writes under
func (s *MessageStorage) RunID() string { return s.runID }

// Write stores a message; it makes the storage a message.Sink
func (s *MessageStorage) Write(m message.Message) error {
	_, err := s.StoreMessage(m)
	return err
}

// StoreMessage stores a message and returns its row id
func (s *MessageStorage) StoreMessage(m message.Message) (int64, error) {
	var aircraftID sql.NullString
	if m.AircraftID != "" {
		aircraftID = sql.NullString{String: m.AircraftID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO messages
		(run_id, sender, receiver, type, aircraft_id, content, timestamp_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID,
		m.Sender,
		m.Receiver,
		string(m.Type),
		aircraftID,
		m.Content,
		m.Timestamp,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// QueryMessages returns the newest messages of this run matching filter
func (s *MessageStorage) QueryMessages(filter MessageFilter) ([]*MessageRecord, error) {
	where := []string{"run_id = ?"}
	args := []any{s.runID}
	if filter.Controller != "" {
		where = append(where, "(sender = ? OR receiver = ?)")
		args = append(args, filter.Controller, filter.Controller)
	}
	if filter.AircraftID != "" {
		where = append(where, "aircraft_id = ?")
		args = append(args, filter.AircraftID)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	if !filter.Since.IsZero() {
		where = append(where, "timestamp_ms >= ?")
		args = append(args, filter.Since.UnixMilli())
	}
	if !filter.Until.IsZero() {
		where = append(where, "timestamp_ms <= ?")
		args = append(args, filter.Until.UnixMilli())
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	args = append(args, limit)

	rows, err := s.db.Query(
		`SELECT id, run_id, sender, receiver, type, aircraft_id, content, timestamp_ms, created_at
		FROM messages
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY timestamp_ms DESC, id DESC
		LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	return s.scanMessageRows(rows)
}

// CountMessages counts this run's messages by type
func (s *MessageStorage) CountMessages() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT type, COUNT(*) FROM messages WHERE run_id = ? GROUP BY type`, s.runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("failed to scan message count: %w", err)
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}

// scanMessageRows scans database rows into MessageRecord structs
func (s *MessageStorage) scanMessageRows(rows *sql.Rows) ([]*MessageRecord, error) {
	var records []*MessageRecord
	for rows.Next() {
		var record MessageRecord
		var timestampMs int64
		var createdAt string
		var aircraftID sql.NullString

		if err := rows.Scan(
			&record.ID,
			&record.RunID,
			&record.Sender,
			&record.Receiver,
			&record.Type,
			&aircraftID,
			&record.Content,
			&timestampMs,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		record.Timestamp = time.UnixMilli(timestampMs).UTC()

		var err error
		record.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		if aircraftID.Valid {
			record.AircraftID = aircraftID.String
		}

		records = append(records, &record)
	}

	return records, rows.Err()
}
