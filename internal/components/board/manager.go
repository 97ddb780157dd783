package board

import (
	"context"
	"sync"
)

// Manager holds the console's single live board.
type Manager struct {
	newBoard func() *Board

	mu      sync.Mutex
	current *Board
}

// NewManager creates a Manager that builds boards with newBoard.
func NewManager(newBoard func() *Board) *Manager {
	return &Manager{newBoard: newBoard}
}

// Current returns the live board, opening one if needed.
func (m *Manager) Current(ctx context.Context) *Board {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		m.current = m.newBoard()
		m.current.Open(ctx)
	}
	return m.current
}

// Refresh closes the live board and opens a new one.
func (m *Manager) Refresh(ctx context.Context) *Board {
	m.mu.Lock()
	old := m.current
	m.current = m.newBoard()
	m.current.Open(ctx)
	b := m.current
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return b
}

// Close closes the live board, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	old := m.current
	m.current = nil
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

// StreamState reports the live board's stream state, or "" with no board.
func (m *Manager) StreamState() string {
	m.mu.Lock()
	b := m.current
	m.mu.Unlock()
	if b == nil {
		return ""
	}
	return string(b.State())
}
