package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3" // SQLite driver
)

var (
	ErrEmailTaken = errors.New("email already registered")
	ErrNotFound   = errors.New("record not found")
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// One writer at a time; sqlite serialises writes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS profiles (
        user_id TEXT PRIMARY KEY,
        full_name TEXT NOT NULL DEFAULT '',
        subscription_valid_until TEXT,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS notes (
        id TEXT PRIMARY KEY, -- UUID
        owner TEXT NOT NULL,
        title TEXT NOT NULL,
        content TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_notes_owner ON notes (owner, created_at);

    CREATE TABLE IF NOT EXISTS analyses (
        id TEXT PRIMARY KEY, -- UUID
        owner TEXT NOT NULL,
        source_name TEXT NOT NULL,
        source_kind TEXT NOT NULL,
        simplified_summary TEXT NOT NULL,
        structured_breakdown TEXT NOT NULL,
        critical_questions TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_analyses_owner ON analyses (owner, created_at);
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

// CreateUserWithProfile inserts the account and its profile in one transaction.
func (s *SQLiteStore) CreateUserWithProfile(ctx context.Context, email, passwordHash, fullName, validUntil string) (*User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	user := &User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, "INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO profiles (user_id, full_name, subscription_valid_until) VALUES (?, ?, ?)",
		user.ID, fullName, nullIfEmpty(validUntil))
	if err != nil {
		return nil, fmt.Errorf("failed to insert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, "SELECT id, email, password_hash, created_at FROM users WHERE email = ?", normalizeEmail(email)).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// Profile methods

func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var profile Profile
	var validUntil sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT user_id, full_name, subscription_valid_until FROM profiles WHERE user_id = ?", userID).
		Scan(&profile.UserID, &profile.FullName, &validUntil)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if validUntil.Valid {
		profile.SubscriptionValidUntil = validUntil.String
	}
	return &profile, nil
}

func (s *SQLiteStore) UpdateSubscription(ctx context.Context, userID, validUntil string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE profiles SET subscription_valid_until = ? WHERE user_id = ?", nullIfEmpty(validUntil), userID)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Note methods

func (s *SQLiteStore) CreateNote(ctx context.Context, note *Note) error {
	note.ID = uuid.NewString()
	note.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, "INSERT INTO notes (id, owner, title, content, created_at) VALUES (?, ?, ?, ?, ?)",
		note.ID, note.Owner, note.Title, note.Content, note.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

// ListNotes returns the owner's notes, newest first.
func (s *SQLiteStore) ListNotes(ctx context.Context, owner string) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, owner, title, content, created_at FROM notes WHERE owner = ? ORDER BY created_at DESC, rowid DESC", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	notes := []Note{}
	for rows.Next() {
		var note Note
		if err := rows.Scan(&note.ID, &note.Owner, &note.Title, &note.Content, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (s *SQLiteStore) DeleteNote(ctx context.Context, id, owner string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM notes WHERE id = ? AND owner = ?", id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Analysis history methods

func (s *SQLiteStore) CreateAnalysisRecord(ctx context.Context, rec *AnalysisRecord) error {
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `INSERT INTO analyses
        (id, owner, source_name, source_kind, simplified_summary, structured_breakdown, critical_questions, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Owner, rec.SourceName, rec.SourceKind,
		rec.Result.SimplifiedSummary, rec.Result.StructuredBreakdown, rec.Result.CriticalQuestions, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert analysis record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListAnalysisRecords(ctx context.Context, owner string, limit int) ([]AnalysisRecord, error) {
	query := `
        SELECT id, owner, source_name, source_kind, simplified_summary, structured_breakdown, critical_questions, created_at
        FROM analyses
        WHERE owner = ?
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, query, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	records := []AnalysisRecord{}
	for rows.Next() {
		var rec AnalysisRecord
		if err := rows.Scan(&rec.ID, &rec.Owner, &rec.SourceName, &rec.SourceKind,
			&rec.Result.SimplifiedSummary, &rec.Result.StructuredBreakdown, &rec.Result.CriticalQuestions, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
