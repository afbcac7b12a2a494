package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/readyup/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS readyups (
			session_id TEXT PRIMARY KEY,
			event_label TEXT,
			time_window_label TEXT,
			organizer_id TEXT,
			ready_threshold INTEGER NOT NULL,
			not_ready_threshold INTEGER NOT NULL,
			timeout_ms INTEGER NOT NULL,
			status TEXT NOT NULL,
			final_message TEXT,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readyups_started ON readyups(started_at)`,
		`CREATE TABLE IF NOT EXISTS readyup_responses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			participant_id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			action TEXT NOT NULL,
			token TEXT,
			origin_kind TEXT NOT NULL,
			interaction_id TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES readyups(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readyup_responses_session ON readyup_responses(session_id, id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateReadyUp records a newly opened session.
func (s *SQLiteStore) CreateReadyUp(ctx context.Context, r *domain.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO readyups (session_id, event_label, time_window_label, organizer_id, ready_threshold, not_ready_threshold, timeout_ms, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, nullString(r.EventLabel), nullString(r.TimeWindowLabel), nullString(r.OrganizerID),
		r.ReadyThreshold, r.NotReadyThreshold, r.TimeoutMs, r.Status, r.StartedAt)
	return err
}

// CompleteReadyUp stores the terminal status of a session. It returns false
// when the session was already completed or does not exist.
func (s *SQLiteStore) CompleteReadyUp(ctx context.Context, sessionID string, status domain.SessionStatus, finalMessage string, endedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE readyups SET status = ?, final_message = ?, ended_at = ? WHERE session_id = ? AND ended_at IS NULL`,
		status, nullString(finalMessage), endedAt, sessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetReadyUp returns a session with its responses, or nil when unknown.
func (s *SQLiteStore) GetReadyUp(ctx context.Context, sessionID string) (*domain.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, event_label, time_window_label, organizer_id, ready_threshold, not_ready_threshold, timeout_ms, status, final_message, started_at, ended_at
		 FROM readyups WHERE session_id = ?`, sessionID)

	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.Responses, err = s.ListResponses(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListReadyUps returns the most recently started sessions first.
func (s *SQLiteStore) ListReadyUps(ctx context.Context, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, event_label, time_window_label, organizer_id, ready_threshold, not_ready_threshold, timeout_ms, status, final_message, started_at, ended_at
		 FROM readyups ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// AppendResponse logs one participant response.
func (s *SQLiteStore) AppendResponse(ctx context.Context, r *domain.ResponseRecord) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO readyup_responses (session_id, participant_id, display_name, action, token, origin_kind, interaction_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.ParticipantID, r.DisplayName, r.Action, nullString(r.Token), r.OriginKind, nullString(r.InteractionID), r.CreatedAt)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		r.ID = id
	}
	return nil
}

// ListResponses returns the responses of a session in arrival order.
func (s *SQLiteStore) ListResponses(ctx context.Context, sessionID string) ([]domain.ResponseRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, participant_id, display_name, action, token, origin_kind, interaction_id, created_at
		 FROM readyup_responses WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []domain.ResponseRecord
	for rows.Next() {
		var r domain.ResponseRecord
		var token, interactionID sql.NullString
		if err := rows.Scan(&r.ID, &r.SessionID, &r.ParticipantID, &r.DisplayName, &r.Action, &token, &r.OriginKind, &interactionID, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Token = token.String
		r.InteractionID = interactionID.String
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*domain.Record, error) {
	var r domain.Record
	var eventLabel, windowLabel, organizerID, finalMessage sql.NullString
	var endedAt sql.NullTime
	if err := row.Scan(&r.SessionID, &eventLabel, &windowLabel, &organizerID, &r.ReadyThreshold, &r.NotReadyThreshold,
		&r.TimeoutMs, &r.Status, &finalMessage, &r.StartedAt, &endedAt); err != nil {
		return nil, err
	}
	r.EventLabel = eventLabel.String
	r.TimeWindowLabel = windowLabel.String
	r.OrganizerID = organizerID.String
	r.FinalMessage = finalMessage.String
	if endedAt.Valid {
		r.EndedAt = &endedAt.Time
	}
	return &r, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
