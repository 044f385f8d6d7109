package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	dbconfig "codecast/pkg/database"
	"codecast/pkg/interfaces"
	"codecast/pkg/types"
)

// Manager owns the SQLite handle. Reads run concurrently; all writes are
// funneled through a single goroutine to avoid SQLite write contention.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	log          *zap.Logger
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies pragmas, and starts the write loop.
func NewManager(config *dbconfig.Config, log *zap.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	if dir := filepath.Dir(config.DatabasePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite pragmas: %w", err)
	}

	m := &Manager{
		db:           db,
		config:       config,
		log:          log,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	m.wg.Add(1)
	go m.writeLoop()

	return m, nil
}

func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil && !isConstraintError(err) {
				m.log.Warn("database write failed, retrying in 5 seconds", zap.Error(err))
				time.Sleep(5 * time.Second)
				err = op.operation(m.db)
				if err != nil {
					m.log.Error("database write failed after retry", zap.Error(err))
				}
			}
			op.result <- err

		case <-m.shutdown:
			return
		}
	}
}

func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("database manager is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(m.config.OperationTimeout):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("database manager is shutting down")
	}
}

// CreateUser inserts a new account. Email uniqueness is enforced by schema.
func (m *Manager) CreateUser(ctx context.Context, user *types.User) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO users (id, name, email, password_hash, role, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return nil
	})
}

// GetUserByEmail looks up an account for login.
func (m *Manager) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, created_at
		FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// GetUser looks up an account by ID.
func (m *Manager) GetUser(ctx context.Context, id string) (*types.User, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, created_at
		FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUsersByIDs returns the users for the given IDs, preserving input order.
// Unknown IDs are skipped rather than erroring; a stale participant list must
// not break a roster broadcast.
func (m *Manager) GetUsersByIDs(ctx context.Context, ids []string) ([]*types.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, email, password_hash, role, created_at
		FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*types.User, len(ids))
	for rows.Next() {
		var user types.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		byID[user.ID] = &user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	users := make([]*types.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := byID[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

// CreateSession inserts a new classroom session.
func (m *Manager) CreateSession(ctx context.Context, session *types.Session) error {
	return m.executeWrite(func(db *sql.DB) error {
		participantsJSON, err := json.Marshal(session.Participants)
		if err != nil {
			return fmt.Errorf("failed to marshal participants: %w", err)
		}
		filesJSON, err := json.Marshal(session.Files)
		if err != nil {
			return fmt.Errorf("failed to marshal files: %w", err)
		}

		_, err = db.ExecContext(ctx, `
			INSERT INTO sessions (id, invite_code, instructor_id, active, participants, files, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			session.ID, session.InviteCode, session.InstructorID, session.Active,
			string(participantsJSON), string(filesJSON), session.CreatedAt, session.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		return nil
	})
}

// GetSession retrieves a session by ID.
func (m *Manager) GetSession(ctx context.Context, id string) (*types.Session, error) {
	row := m.db.QueryRowContext(ctx, sessionSelect+` WHERE id = ?`, id)
	return scanSession(row)
}

// GetSessionByInviteCode retrieves a session by its room key.
func (m *Manager) GetSessionByInviteCode(ctx context.Context, code string) (*types.Session, error) {
	row := m.db.QueryRowContext(ctx, sessionSelect+` WHERE invite_code = ?`, code)
	return scanSession(row)
}

// ListActiveSessions returns every active session, newest first.
func (m *Manager) ListActiveSessions(ctx context.Context) ([]*types.Session, error) {
	rows, err := m.db.QueryContext(ctx, sessionSelect+` WHERE active = 1 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*types.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}
	return sessions, nil
}

// UpdateSessionParticipants persists a changed participant list.
func (m *Manager) UpdateSessionParticipants(ctx context.Context, sessionID string, participants []string) error {
	return m.executeWrite(func(db *sql.DB) error {
		participantsJSON, err := json.Marshal(participants)
		if err != nil {
			return fmt.Errorf("failed to marshal participants: %w", err)
		}
		_, err = db.ExecContext(ctx, `
			UPDATE sessions SET participants = ?, updated_at = ? WHERE id = ?`,
			string(participantsJSON), time.Now().UTC(), sessionID,
		)
		if err != nil {
			return fmt.Errorf("failed to update session participants: %w", err)
		}
		return nil
	})
}

// DeactivateSession marks a session inactive. Coordination state for the
// session's room becomes garbage once this lands.
func (m *Manager) DeactivateSession(ctx context.Context, sessionID string) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			UPDATE sessions SET active = 0, updated_at = ? WHERE id = ?`,
			time.Now().UTC(), sessionID,
		)
		if err != nil {
			return fmt.Errorf("failed to deactivate session: %w", err)
		}
		return nil
	})
}

// CreatePrompt inserts a prompt.
func (m *Manager) CreatePrompt(ctx context.Context, prompt *types.Prompt) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO prompts (id, title, description, starter_code, instructor_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			prompt.ID, prompt.Title, prompt.Description, prompt.StarterCode,
			prompt.InstructorID, prompt.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert prompt: %w", err)
		}
		return nil
	})
}

// GetPrompt looks up a prompt by ID.
func (m *Manager) GetPrompt(ctx context.Context, id string) (*types.Prompt, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, title, description, starter_code, instructor_id, created_at
		FROM prompts WHERE id = ?`, id)

	var prompt types.Prompt
	err := row.Scan(&prompt.ID, &prompt.Title, &prompt.Description,
		&prompt.StarterCode, &prompt.InstructorID, &prompt.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrPromptNotFound
		}
		return nil, fmt.Errorf("failed to scan prompt: %w", err)
	}
	return &prompt, nil
}

// ListPromptsByInstructor returns an instructor's prompt library, newest first.
func (m *Manager) ListPromptsByInstructor(ctx context.Context, instructorID string) ([]*types.Prompt, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, title, description, starter_code, instructor_id, created_at
		FROM prompts WHERE instructor_id = ? ORDER BY created_at DESC`, instructorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query prompts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var prompts []*types.Prompt
	for rows.Next() {
		var prompt types.Prompt
		if err := rows.Scan(&prompt.ID, &prompt.Title, &prompt.Description,
			&prompt.StarterCode, &prompt.InstructorID, &prompt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prompt row: %w", err)
		}
		prompts = append(prompts, &prompt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prompt rows: %w", err)
	}
	return prompts, nil
}

// HealthCheck validates connectivity and a basic read.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var count int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// GetDB exposes the handle for migrations.
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close drains the write loop and closes the handle. Idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// isConstraintError reports whether err is a schema constraint violation,
// which no retry will fix.
func isConstraintError(err error) bool {
	return strings.Contains(err.Error(), "constraint")
}

const sessionSelect = `
	SELECT id, invite_code, instructor_id, active, participants, files, created_at, updated_at
	FROM sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*types.User, error) {
	var user types.User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

func scanSession(row rowScanner) (*types.Session, error) {
	var session types.Session
	var participantsJSON, filesJSON string

	err := row.Scan(&session.ID, &session.InviteCode, &session.InstructorID, &session.Active,
		&participantsJSON, &filesJSON, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if err := json.Unmarshal([]byte(participantsJSON), &session.Participants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
	}
	if err := json.Unmarshal([]byte(filesJSON), &session.Files); err != nil {
		return nil, fmt.Errorf("failed to unmarshal files: %w", err)
	}

	return &session, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}
	return nil
}
