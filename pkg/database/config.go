package database

import (
	"errors"
	"time"
)

// Config holds database settings.
type Config struct {
	DatabasePath    string        `json:"database_path"`
	MaxConnections  int           `json:"max_connections"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`

	// OperationTimeout bounds how long a caller waits for the write loop to
	// accept and run one write.
	OperationTimeout time.Duration `json:"operation_timeout"`
}

// DefaultConfig returns settings tuned for classroom-scale concurrent access
// (tens of users per process).
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:     "./data/codecast.db",
		MaxConnections:   10,
		ConnMaxLifetime:  time.Hour,
		ConnMaxIdleTime:  10 * time.Minute,
		OperationTimeout: 30 * time.Second,
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.New("database path cannot be empty")
	}
	if c.MaxConnections <= 0 {
		return errors.New("max connections must be positive")
	}
	if c.ConnMaxLifetime <= 0 {
		return errors.New("connection max lifetime must be positive")
	}
	if c.OperationTimeout <= 0 {
		return errors.New("operation timeout must be positive")
	}
	return nil
}
