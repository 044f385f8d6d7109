// Package api exposes the HTTP surface: auth, session and prompt CRUD,
// health, and metrics. Real-time traffic never passes through here.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"codecast/internal/auth"
	"codecast/internal/database"
	"codecast/internal/metrics"
	"codecast/internal/prompt"
	"codecast/internal/session"
	"codecast/pkg/interfaces"
	"codecast/pkg/types"
)

type contextKey string

const claimsKey contextKey = "claims"

type Server struct {
	db       *database.Manager
	sessions *session.Manager
	prompts  *prompt.Manager
	tokens   *auth.Manager
	metrics  *metrics.Metrics
	log      *zap.Logger
	router   chi.Router
}

func NewServer(db *database.Manager, sessions *session.Manager, prompts *prompt.Manager,
	tokens *auth.Manager, m *metrics.Metrics, wsHandler http.HandlerFunc, log *zap.Logger) *Server {
	s := &Server{
		db:       db,
		sessions: sessions,
		prompts:  prompts,
		tokens:   tokens,
		metrics:  m,
		log:      log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	r.Post("/api/auth/register", s.register)
	r.Post("/api/auth/login", s.login)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/api/sessions/join", s.joinSession)
		r.Get("/api/sessions/{id}", s.getSession)

		r.Group(func(r chi.Router) {
			r.Use(s.instructorOnly)
			r.Post("/api/sessions", s.createSession)
			r.Delete("/api/sessions/{id}", s.deactivateSession)
			r.Post("/api/prompts", s.createPrompt)
			r.Get("/api/prompts", s.listPrompts)
			r.Get("/api/prompts/{id}", s.getPrompt)
		})
	})

	r.Get("/health", s.health)
	r.Handle("/metrics", m.Handler())
	r.Get("/ws", wsHandler)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Request/response bodies.

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *types.User `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type joinSessionRequest struct {
	InviteCode string `json:"inviteCode"`
}

type createPromptRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StarterCode string `json:"starterCode"`
}

type sessionResponse struct {
	Session      *types.Session      `json:"session"`
	Participants []types.Participant `json:"participants"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user := &types.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         req.Role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := user.Validate(); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.db.CreateUser(r.Context(), user); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			s.sendError(w, "email already registered", http.StatusConflict)
			return
		}
		s.log.Error("user creation failed", zap.Error(err))
		s.sendError(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		s.sendError(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	user, err := s.db.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		s.sendError(w, "invalid email or password", http.StatusUnauthorized)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		s.sendError(w, "invalid email or password", http.StatusUnauthorized)
		return
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		s.sendError(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	user, err := s.db.GetUser(r.Context(), claims.UserID)
	if err != nil {
		s.sendError(w, "unknown user", http.StatusUnauthorized)
		return
	}

	sess, err := s.sessions.CreateSession(r.Context(), user)
	if err != nil {
		if errors.Is(err, interfaces.ErrUnauthorized) {
			s.sendError(w, "only instructors can create sessions", http.StatusForbidden)
			return
		}
		s.log.Error("session creation failed", zap.Error(err))
		s.sendError(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) joinSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	var req joinSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	sess, err := s.sessions.JoinSession(r.Context(), strings.ToUpper(strings.TrimSpace(req.InviteCode)), claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrInvalidInviteCode):
			s.sendError(w, "invalid invite code", http.StatusBadRequest)
		case errors.Is(err, interfaces.ErrSessionNotFound):
			s.sendError(w, "session not found with this invite code", http.StatusNotFound)
		default:
			s.log.Error("session join failed", zap.Error(err))
			s.sendError(w, "failed to join session", http.StatusInternalServerError)
		}
		return
	}

	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	sess, err := s.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, interfaces.ErrSessionNotFound) {
			s.sendError(w, "session not found", http.StatusNotFound)
			return
		}
		s.sendError(w, "failed to get session", http.StatusInternalServerError)
		return
	}

	info, err := s.sessions.ResolveInviteCode(r.Context(), sess.InviteCode)
	if err != nil {
		// Inactive session: return it without a roster.
		s.writeJSON(w, http.StatusOK, sessionResponse{Session: sess})
		return
	}

	s.writeJSON(w, http.StatusOK, sessionResponse{Session: sess, Participants: info.Participants})
}

func (s *Server) deactivateSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	sessionID := chi.URLParam(r, "id")

	if err := s.sessions.DeactivateSession(r.Context(), sessionID, claims.UserID); err != nil {
		switch {
		case errors.Is(err, interfaces.ErrSessionNotFound):
			s.sendError(w, "session not found", http.StatusNotFound)
		case errors.Is(err, interfaces.ErrUnauthorized):
			s.sendError(w, "only the session's instructor can end it", http.StatusForbidden)
		default:
			s.sendError(w, "failed to end session", http.StatusInternalServerError)
		}
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "session ended"})
}

func (s *Server) createPrompt(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	var req createPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	p, err := s.prompts.Create(r.Context(), claims.UserID, req.Title, req.Description, req.StarterCode)
	if err != nil {
		if errors.Is(err, types.ErrInvalidPromptTitle) || errors.Is(err, types.ErrInvalidPromptDescription) {
			s.sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error("prompt creation failed", zap.Error(err))
		s.sendError(w, "failed to create prompt", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getPrompt(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	p, err := s.prompts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, interfaces.ErrPromptNotFound) {
			s.sendError(w, "prompt not found", http.StatusNotFound)
			return
		}
		s.sendError(w, "failed to get prompt", http.StatusInternalServerError)
		return
	}
	// Another instructor's prompt is indistinguishable from a missing one.
	if p.InstructorID != claims.UserID {
		s.sendError(w, "prompt not found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) listPrompts(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	prompts, err := s.prompts.ListByInstructor(r.Context(), claims.UserID)
	if err != nil {
		s.sendError(w, "failed to list prompts", http.StatusInternalServerError)
		return
	}
	if prompts == nil {
		prompts = []*types.Prompt{}
	}

	s.writeJSON(w, http.StatusOK, prompts)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	dbStatus := "healthy"
	if err := s.db.HealthCheck(ctx); err != nil {
		status = http.StatusServiceUnavailable
		dbStatus = err.Error()
	}

	s.writeJSON(w, status, map[string]any{
		"status":    http.StatusText(status),
		"database":  dbStatus,
		"timestamp": time.Now().UTC(),
	})
}

// authMiddleware verifies the bearer token and stashes claims in the context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			s.sendError(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		claims, err := s.tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			s.sendError(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func (s *Server) instructorOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims := claimsFrom(r.Context()); claims == nil || claims.Role != types.RoleInstructor {
			s.sendError(w, "instructor role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.writeJSON(w, code, errorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}
