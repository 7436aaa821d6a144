package alert

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StageSummary is the outcome of one pipeline stage as carried in a
// notification.
type StageSummary struct {
	Stage     string `json:"stage"`
	Processed int    `json:"processed"`
	Succeeded int    `json:"succeeded"`
	Skipped   int    `json:"skipped"`
	Error     string `json:"error,omitempty"`
}

// Notification is the data sent to alert destinations after a run.
type Notification struct {
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	RunID    string         `json:"run_id"`
	Failed   bool           `json:"failed"`
	Stages   []StageSummary `json:"stages"`
	Finished time.Time      `json:"finished_at"`
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return m != nil && len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers. Every notifier
// is attempted; their errors are joined.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
