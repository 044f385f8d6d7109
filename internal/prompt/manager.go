// Package prompt manages instructors' reusable exercise prompts.
package prompt

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"codecast/internal/database"
	"codecast/pkg/types"
)

const defaultStarterCode = "// Start coding here!"

// Manager is a thin persistence layer; broadcasting a prompt into a live
// room is the router's business and never touches storage.
type Manager struct {
	db  *database.Manager
	log *zap.Logger
}

func NewManager(db *database.Manager, log *zap.Logger) *Manager {
	return &Manager{db: db, log: log}
}

// Create stores a new prompt owned by instructorID.
func (m *Manager) Create(ctx context.Context, instructorID, title, description, starterCode string) (*types.Prompt, error) {
	if starterCode == "" {
		starterCode = defaultStarterCode
	}

	prompt := &types.Prompt{
		ID:           uuid.New().String(),
		Title:        title,
		Description:  description,
		StarterCode:  starterCode,
		InstructorID: instructorID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := prompt.Validate(); err != nil {
		return nil, err
	}

	if err := m.db.CreatePrompt(ctx, prompt); err != nil {
		return nil, fmt.Errorf("failed to create prompt: %w", err)
	}

	m.log.Info("prompt created",
		zap.String("prompt", prompt.ID),
		zap.String("instructor", instructorID),
	)
	return prompt, nil
}

// Get retrieves a single prompt by ID.
func (m *Manager) Get(ctx context.Context, promptID string) (*types.Prompt, error) {
	return m.db.GetPrompt(ctx, promptID)
}

// ListByInstructor returns the instructor's prompt library.
func (m *Manager) ListByInstructor(ctx context.Context, instructorID string) ([]*types.Prompt, error) {
	return m.db.ListPromptsByInstructor(ctx, instructorID)
}
