package daemon

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// ErrAlreadyRunning is returned by Claim when another live process holds
// the role.
var ErrAlreadyRunning = errors.New("agent already running")

// Claim registers the current process as the instance for role. Two
// processes of one role would share a session and answer every command
// twice, so a live holder is refused. The returned release unregisters.
func Claim(
	registry domain.InstanceRegistry,
	pm domain.ProcessManager,
	role domain.Role,
	version string,
	logger *zap.Logger,
) (release func(), err error) {
	self := pm.GetCurrentPID()

	if _, err := registry.GetAll(); err != nil {
		logger.Warn("instance registry unreadable, starting fresh", zap.Error(err))
	}

	holder, err := registry.ClaimIfFree(domain.Instance{
		PID:        self,
		Role:       role,
		StartedAt:  time.Now(),
		AppVersion: version,
	})
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", role, err)
	}
	if holder != 0 {
		return nil, fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, role, holder)
	}
	logger.Info("instance registered", zap.String("role", string(role)), zap.Int("pid", self))

	return func() {
		if err := registry.Unregister(role, self); err != nil {
			logger.Warn("failed to unregister instance", zap.String("role", string(role)), zap.Error(err))
		}
	}, nil
}
