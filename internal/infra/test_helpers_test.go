package infra

import (
	"sync"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// mockProcessManager reports a configurable set of PIDs as running.
type mockProcessManager struct {
	mu         sync.Mutex
	running    map[int]bool
	currentPID int
}

func newMockProcessManager(currentPID int) *mockProcessManager {
	return &mockProcessManager{
		running:    map[int]bool{currentPID: true},
		currentPID: currentPID,
	}
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return m.currentPID
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running[pid] = running
}

var _ domain.ProcessManager = (*mockProcessManager)(nil)
