// Package session manages classroom sessions and resolves invite codes for
// the real-time layer.
package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"codecast/internal/database"
	"codecast/pkg/interfaces"
	"codecast/pkg/types"
)

const inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const inviteCodeLength = 6

// Manager caches active sessions in memory and keeps an invite-code index so
// the per-event directory lookup never touches the database on the hot path.
type Manager struct {
	db  *database.Manager
	log *zap.Logger

	// dropRoom, when set, runs with a session's invite code after the
	// session is deactivated so real-time control state can be discarded.
	dropRoom func(room string)

	mu       sync.RWMutex
	byID     map[string]*types.Session
	byInvite map[string]string // invite code -> session ID
}

func NewManager(db *database.Manager, log *zap.Logger) *Manager {
	return &Manager{
		db:       db,
		log:      log,
		byID:     make(map[string]*types.Session),
		byInvite: make(map[string]string),
	}
}

// SetRoomCleanup registers fn as the post-deactivation hook. Call before the
// server starts handling requests.
func (m *Manager) SetRoomCleanup(fn func(room string)) {
	m.dropRoom = fn
}

// LoadActiveSessions warms the cache from the database at startup.
func (m *Manager) LoadActiveSessions(ctx context.Context) error {
	sessions, err := m.db.ListActiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range sessions {
		m.byID[session.ID] = session
		m.byInvite[session.InviteCode] = session.ID
	}

	m.log.Info("loaded active sessions", zap.Int("count", len(sessions)))
	return nil
}

// CreateSession starts a new classroom session owned by instructor, who also
// becomes its first participant. Only instructors may create sessions.
func (m *Manager) CreateSession(ctx context.Context, instructor *types.User) (*types.Session, error) {
	if instructor.Role != types.RoleInstructor {
		return nil, interfaces.ErrUnauthorized
	}

	code, err := generateInviteCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite code: %w", err)
	}

	now := time.Now().UTC()
	session := &types.Session{
		ID:           uuid.New().String(),
		InviteCode:   code,
		InstructorID: instructor.ID,
		Active:       true,
		Participants: []string{instructor.ID},
		Files:        types.DefaultFiles(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.db.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.mu.Lock()
	m.byID[session.ID] = session
	m.byInvite[session.InviteCode] = session.ID
	out := snapshot(session)
	m.mu.Unlock()

	m.log.Info("session created",
		zap.String("session", session.ID),
		zap.String("invite_code", session.InviteCode),
		zap.String("instructor", instructor.ID),
	)
	return out, nil
}

// JoinSession adds userID to the session behind an invite code. Joining a
// session you already belong to is a no-op returning the session.
func (m *Manager) JoinSession(ctx context.Context, inviteCode, userID string) (*types.Session, error) {
	if !types.IsValidInviteCode(inviteCode) {
		return nil, types.ErrInvalidInviteCode
	}

	session, err := m.getByInvite(ctx, inviteCode)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	joined := false
	for _, id := range session.Participants {
		if id == userID {
			joined = true
			break
		}
	}
	if !joined {
		session.Participants = append(session.Participants, userID)
	}
	out := snapshot(session)
	m.mu.Unlock()

	if joined {
		return out, nil
	}

	if err := m.db.UpdateSessionParticipants(ctx, session.ID, out.Participants); err != nil {
		return nil, fmt.Errorf("failed to persist participant: %w", err)
	}

	m.log.Info("participant joined session",
		zap.String("session", session.ID),
		zap.String("user", userID),
	)
	return out, nil
}

// GetSession retrieves a session by ID, cache first.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	m.mu.RLock()
	if session, ok := m.byID[sessionID]; ok {
		out := snapshot(session)
		m.mu.RUnlock()
		return out, nil
	}
	m.mu.RUnlock()

	return m.db.GetSession(ctx, sessionID)
}

// DeactivateSession ends a session. Only the owning instructor may do it.
func (m *Manager) DeactivateSession(ctx context.Context, sessionID, byUserID string) error {
	session, err := m.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.InstructorID != byUserID {
		return interfaces.ErrUnauthorized
	}

	if err := m.db.DeactivateSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}

	m.mu.Lock()
	delete(m.byID, sessionID)
	delete(m.byInvite, session.InviteCode)
	m.mu.Unlock()

	if m.dropRoom != nil {
		m.dropRoom(session.InviteCode)
	}

	m.log.Info("session deactivated", zap.String("session", sessionID))
	return nil
}

// ResolveInviteCode implements interfaces.SessionDirectory: the read-only
// lookup the event router makes on join-room and request-control. The roster
// carries display names and roles so the client renders it directly.
func (m *Manager) ResolveInviteCode(ctx context.Context, code string) (*types.RoomInfo, error) {
	session, err := m.getByInvite(ctx, code)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	participantIDs := make([]string, len(session.Participants))
	copy(participantIDs, session.Participants)
	m.mu.RUnlock()

	users, err := m.db.GetUsersByIDs(ctx, participantIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve participants: %w", err)
	}

	participants := make([]types.Participant, len(users))
	for i, user := range users {
		participants[i] = types.Participant{ID: user.ID, Name: user.Name, Role: user.Role}
	}

	return &types.RoomInfo{
		SessionID:    session.ID,
		InstructorID: session.InstructorID,
		Participants: participants,
	}, nil
}

// getByInvite returns the cached canonical record. Callers hand out snapshots
// only; the canonical record is mutated in place under m.mu.
func (m *Manager) getByInvite(ctx context.Context, code string) (*types.Session, error) {
	m.mu.RLock()
	if id, ok := m.byInvite[code]; ok {
		if session, ok := m.byID[id]; ok {
			m.mu.RUnlock()
			return session, nil
		}
	}
	m.mu.RUnlock()

	session, err := m.db.GetSessionByInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !session.Active {
		return nil, interfaces.ErrSessionNotFound
	}

	m.mu.Lock()
	m.byID[session.ID] = session
	m.byInvite[session.InviteCode] = session.ID
	m.mu.Unlock()

	return session, nil
}

// snapshot copies a session, including its slices, so callers can read and
// marshal it while the cached record keeps changing under m.mu.
func snapshot(s *types.Session) *types.Session {
	out := *s
	out.Participants = append([]string(nil), s.Participants...)
	out.Files = append([]types.File(nil), s.Files...)
	return &out
}

// generateInviteCode draws 6 characters from A-Z0-9, matching the code shape
// clients validate against.
func generateInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return string(buf), nil
}
