package identity

import (
	"sort"
	"strings"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// Format describes a well-formed identity: a country code followed by a
// fixed number of subscriber digits.
type Format struct {
	CountryCode      string
	SubscriberDigits int
}

// DefaultFormat matches Mozambican mobile numbers (258 + 9 digits).
var DefaultFormat = Format{CountryCode: "258", SubscriberDigits: 9}

// Valid reports whether id is digits only and matches the format.
func (f Format) Valid(id domain.Identity) bool {
	s := string(id)
	if len(s) != len(f.CountryCode)+f.SubscriberDigits {
		return false
	}
	if !strings.HasPrefix(s, f.CountryCode) {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Audit is the result of checking a raw registry document.
type Audit struct {
	Total      int
	Duplicates []domain.Identity
	Malformed  []string
	Clean      []domain.Identity // deduplicated, valid, sorted
}

// Check normalizes raws, reports duplicates and malformed entries, and
// returns the cleaned list. It never modifies its input.
func Check(raws []string, f Format) Audit {
	a := Audit{Total: len(raws)}
	seen := make(map[domain.Identity]bool, len(raws))
	dupSeen := make(map[domain.Identity]bool)

	for _, raw := range raws {
		id := NormalizeDigits(raw)
		if !f.Valid(id) {
			a.Malformed = append(a.Malformed, raw)
			continue
		}
		if seen[id] {
			if !dupSeen[id] {
				a.Duplicates = append(a.Duplicates, id)
				dupSeen[id] = true
			}
			continue
		}
		seen[id] = true
		a.Clean = append(a.Clean, id)
	}

	sort.Slice(a.Clean, func(i, j int) bool { return a.Clean[i] < a.Clean[j] })
	return a
}
