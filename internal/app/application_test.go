package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"codecast/internal/config"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	// Default config has no auth secret.
	_, err := New(config.DefaultConfig(), zap.NewNop())
	assert.Error(t, err)
}

func TestNewAndStop(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Auth.Secret = "test-secret"
	cfg.Database.Path = filepath.Join(t.TempDir(), "app.db")

	application, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, application.Stop(context.Background()))
}
