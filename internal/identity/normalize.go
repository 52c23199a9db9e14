// Package identity holds the competitor registry and the identity helpers
// shared by both agents.
package identity

import (
	"strings"
	"unicode"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// Normalize reduces a platform member ID to its canonical identity.
// It drops whitespace, the protocol suffix ("@c.us", "@s.whatsapp.net", ...)
// and the device suffix (":12"). Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) domain.Identity {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)

	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return domain.Identity(s)
}

// NormalizeDigits is Normalize followed by dropping every non-digit.
// Used for bulk imports and command arguments ("+258 84-000-0001").
func NormalizeDigits(raw string) domain.Identity {
	s := string(Normalize(raw))
	return domain.Identity(strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s))
}

// ChatID returns the direct-chat address of an identity.
func ChatID(id domain.Identity) string {
	return string(id) + "@s.whatsapp.net"
}
