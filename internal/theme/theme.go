// Package theme stores the light/dark display preference next to the task list.
package theme

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-list/internal/storage"
)

var ErrInvalidTheme = errors.New("invalid theme")

type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

const DefaultKey = "theme"

// Parse accepts "light" or "dark" in any case.
func Parse(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case Light, Dark:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTheme, s)
	}
}

func (t Theme) Opposite() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

type Manager struct {
	storage storage.Storage
	logger  *zap.Logger
	key     string
	timeout time.Duration
}

func NewManager(st storage.Storage, logger *zap.Logger, key string, timeout time.Duration) *Manager {
	if key == "" {
		key = DefaultKey
	}
	return &Manager{
		storage: st,
		logger:  logger,
		key:     key,
		timeout: timeout,
	}
}

// Stored returns the saved preference, if there is a valid one.
func (m *Manager) Stored() (Theme, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	raw, err := m.storage.Get(ctx, m.key)
	if err != nil {
		if !errors.Is(err, storage.ErrorNotFound) {
			m.logger.Error("failed to read theme", zap.Error(err))
		}
		return "", false
	}
	t, err := Parse(raw)
	if err != nil {
		return "", false
	}
	return t, true
}

// Current is the stored preference, or system when nothing valid is stored.
// An unrecognised system value counts as light.
func (m *Manager) Current(system string) Theme {
	if t, ok := m.Stored(); ok {
		return t
	}
	if t, err := Parse(system); err == nil {
		return t
	}
	return Light
}

// Set stores t. Storage failures are logged, not returned.
func (m *Manager) Set(t Theme) error {
	if _, err := Parse(string(t)); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if err := m.storage.Set(ctx, m.key, string(t)); err != nil {
		m.logger.Error("failed to save theme", zap.String("theme", string(t)), zap.Error(err))
	}
	return nil
}

// Toggle flips the effective theme and stores the result.
func (m *Manager) Toggle(system string) Theme {
	next := m.Current(system).Opposite()
	_ = m.Set(next)
	return next
}
