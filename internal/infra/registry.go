package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

const instanceFileName = ".instances.json"

// FileInstanceRegistry implements domain.InstanceRegistry using a hidden
// JSON file in the data directory. Writes are serialized across processes
// with flock, since both agents share the file.
type FileInstanceRegistry struct {
	path           string
	processManager domain.ProcessManager
}

// NewFileInstanceRegistry creates a registry inside dataDir.
func NewFileInstanceRegistry(dataDir string, pm domain.ProcessManager) *FileInstanceRegistry {
	return NewFileInstanceRegistryWithPath(filepath.Join(dataDir, instanceFileName), pm)
}

// NewFileInstanceRegistryWithPath creates a registry at a specific path (for testing).
func NewFileInstanceRegistryWithPath(path string, pm domain.ProcessManager) *FileInstanceRegistry {
	return &FileInstanceRegistry{
		path:           path,
		processManager: pm,
	}
}

// Path returns the registry file path.
func (r *FileInstanceRegistry) Path() string {
	return r.path
}

// Register saves the instance's PID under its role.
func (r *FileInstanceRegistry) Register(instance domain.Instance) error {
	return r.withLock(func(entry *domain.InstanceEntry) bool {
		assign(entry, instance)
		return true
	})
}

// ClaimIfFree registers instance unless another live process holds its
// role. The check and the write happen under one lock, so two processes
// starting together cannot both win. A refused claim returns the holder's PID.
func (r *FileInstanceRegistry) ClaimIfFree(instance domain.Instance) (holder int, err error) {
	err = r.withLock(func(entry *domain.InstanceEntry) bool {
		if pid := entry.PID(instance.Role); pid != 0 && pid != instance.PID && r.processManager.IsRunning(pid) {
			holder = pid
			return false
		}
		assign(entry, instance)
		return true
	})
	return holder, err
}

func assign(entry *domain.InstanceEntry, instance domain.Instance) {
	switch instance.Role {
	case domain.RoleWatchdog:
		entry.WatchdogPID = instance.PID
		entry.WatchdogSince = instance.StartedAt.Unix()
	case domain.RoleOutreach:
		entry.OutreachPID = instance.PID
		entry.OutreachSince = instance.StartedAt.Unix()
	}
	if instance.AppVersion != "" {
		entry.AppVersion = instance.AppVersion
	}
}

// Unregister clears role's entry if it still belongs to pid.
func (r *FileInstanceRegistry) Unregister(role domain.Role, pid int) error {
	return r.withLock(func(entry *domain.InstanceEntry) bool {
		switch role {
		case domain.RoleWatchdog:
			if entry.WatchdogPID != pid {
				return false
			}
			entry.WatchdogPID, entry.WatchdogSince = 0, 0
		case domain.RoleOutreach:
			if entry.OutreachPID != pid {
				return false
			}
			entry.OutreachPID, entry.OutreachSince = 0, 0
		}
		return true
	})
}

// IsAlive checks whether the process registered for role is running.
func (r *FileInstanceRegistry) IsAlive(role domain.Role) (bool, error) {
	entry, err := r.GetAll()
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	pid := entry.PID(role)
	if pid == 0 {
		return false, nil
	}
	return r.processManager.IsRunning(pid), nil
}

// GetAll returns full registry state, or nil when nothing is registered yet.
func (r *FileInstanceRegistry) GetAll() (*domain.InstanceEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entry domain.InstanceEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// withLock runs mutate under an exclusive flock and writes the entry back
// when mutate reports a change.
func (r *FileInstanceRegistry) withLock(mutate func(*domain.InstanceEntry) bool) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	lockFile, err := os.OpenFile(r.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	entry, _ := r.GetAll() // corrupt or missing starts fresh
	if entry == nil {
		entry = &domain.InstanceEntry{Version: 1}
	}
	if !mutate(entry) {
		return nil
	}
	return r.atomicWrite(entry)
}

// atomicWrite writes the registry atomically (write + rename).
func (r *FileInstanceRegistry) atomicWrite(entry *domain.InstanceEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure FileInstanceRegistry implements domain.InstanceRegistry.
var _ domain.InstanceRegistry = (*FileInstanceRegistry)(nil)
