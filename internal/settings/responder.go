package settings

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// ResponderKey is the KeyValueStore document of the responder policy.
const ResponderKey = "responder-config"

// Responder is the watchdog's persisted response policy.
type Responder = Document[domain.ResponderConfig]

// LoadResponder loads the responder policy, falling back to defaults.
func LoadResponder(store domain.KeyValueStore, logger *zap.Logger) *Responder {
	return load[domain.ResponderConfig](store, ResponderKey, domain.DefaultResponderConfig(), nil, logger.Named("responder_config"))
}
