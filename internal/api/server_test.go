package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"codecast/internal/auth"
	"codecast/internal/database"
	"codecast/internal/metrics"
	"codecast/internal/prompt"
	"codecast/internal/session"
	dbconfig "codecast/pkg/database"
	"codecast/pkg/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	config := dbconfig.DefaultConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "test.db")

	db, err := database.NewManager(config, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator := dbconfig.NewMigrationManager(db.GetDB())
	require.NoError(t, migrator.ApplyMigrations())

	log := zap.NewNop()
	sessions := session.NewManager(db, log)
	prompts := prompt.NewManager(db, log)
	tokens := auth.NewManager([]byte("test-secret"), time.Hour)

	wsHandler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	}

	return NewServer(db, sessions, prompts, tokens, metrics.New(), wsHandler, log)
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, s *Server, name, email, role string) (string, *types.User) {
	t.Helper()

	rec := doJSON(t, s, http.MethodPost, "/api/auth/register", "", registerRequest{
		Name:     name,
		Email:    email,
		Password: "password123",
		Role:     role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp authResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token, resp.User
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	_, user := register(t, s, "Alice", "alice@example.com", types.RoleStudent)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Empty(t, user.PasswordHash)

	rec := doJSON(t, s, http.MethodPost, "/api/auth/login", "", loginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp authResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, user.ID, resp.User.ID)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	register(t, s, "Alice", "alice@example.com", types.RoleStudent)

	rec := doJSON(t, s, http.MethodPost, "/api/auth/register", "", registerRequest{
		Name:     "Imposter",
		Email:    "alice@example.com",
		Password: "password123",
		Role:     types.RoleStudent,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterRejectsBadRole(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/auth/register", "", registerRequest{
		Name:     "Eve",
		Email:    "eve@example.com",
		Password: "password123",
		Role:     "admin",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	s := newTestServer(t)
	register(t, s, "Alice", "alice@example.com", types.RoleStudent)

	rec := doJSON(t, s, http.MethodPost, "/api/auth/login", "", loginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)
	instructorToken, _ := register(t, s, "Prof", "prof@example.com", types.RoleInstructor)
	studentToken, _ := register(t, s, "Alice", "alice@example.com", types.RoleStudent)

	rec := doJSON(t, s, http.MethodPost, "/api/sessions", instructorToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created types.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.True(t, types.IsValidInviteCode(created.InviteCode))

	// Student joins by invite code.
	rec = doJSON(t, s, http.MethodPost, "/api/sessions/join", studentToken, joinSessionRequest{
		InviteCode: created.InviteCode,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var joined types.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&joined))
	assert.Len(t, joined.Participants, 2)

	// Fetch with roster.
	rec = doJSON(t, s, http.MethodGet, "/api/sessions/"+created.ID, studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got sessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Len(t, got.Participants, 2)

	// Only the instructor may end it.
	rec = doJSON(t, s, http.MethodDelete, "/api/sessions/"+created.ID, studentToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, "/api/sessions/"+created.ID, instructorToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateSessionRequiresInstructorRole(t *testing.T) {
	s := newTestServer(t)
	studentToken, _ := register(t, s, "Alice", "alice@example.com", types.RoleStudent)

	rec := doJSON(t, s, http.MethodPost, "/api/sessions", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestJoinSessionUnknownCode(t *testing.T) {
	s := newTestServer(t)
	token, _ := register(t, s, "Alice", "alice@example.com", types.RoleStudent)

	rec := doJSON(t, s, http.MethodPost, "/api/sessions/join", token, joinSessionRequest{
		InviteCode: "ZZZZZZ",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/sessions/join", token, joinSessionRequest{
		InviteCode: "bad",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPromptLibrary(t *testing.T) {
	s := newTestServer(t)
	instructorToken, _ := register(t, s, "Prof", "prof@example.com", types.RoleInstructor)

	rec := doJSON(t, s, http.MethodPost, "/api/prompts", instructorToken, createPromptRequest{
		Title:       "FizzBuzz",
		Description: "The classic",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created types.Prompt
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.NotEmpty(t, created.StarterCode)

	rec = doJSON(t, s, http.MethodGet, "/api/prompts", instructorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var prompts []*types.Prompt
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&prompts))
	require.Len(t, prompts, 1)
	assert.Equal(t, "FizzBuzz", prompts[0].Title)

	rec = doJSON(t, s, http.MethodGet, "/api/prompts/"+created.ID, instructorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got types.Prompt
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "FizzBuzz", got.Title)
}

func TestGetPromptNotFoundAndForeignOwner(t *testing.T) {
	s := newTestServer(t)
	ownerToken, _ := register(t, s, "Prof", "prof@example.com", types.RoleInstructor)
	otherToken, _ := register(t, s, "Other", "other@example.com", types.RoleInstructor)

	rec := doJSON(t, s, http.MethodPost, "/api/prompts", ownerToken, createPromptRequest{
		Title:       "FizzBuzz",
		Description: "The classic",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created types.Prompt
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	rec = doJSON(t, s, http.MethodGet, "/api/prompts/missing-id", ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Another instructor's prompt reads as missing, not forbidden.
	rec = doJSON(t, s, http.MethodGet, "/api/prompts/"+created.ID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPromptValidation(t *testing.T) {
	s := newTestServer(t)
	instructorToken, _ := register(t, s, "Prof", "prof@example.com", types.RoleInstructor)

	rec := doJSON(t, s, http.MethodPost, "/api/prompts", instructorToken, createPromptRequest{
		Description: "no title",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/sessions", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
