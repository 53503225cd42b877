package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// Scope describes one invalidation pass: key patterns with a user slot, the
// users they apply to, and a small set of unscoped global patterns. Scopes
// are ephemeral; they are produced and consumed within a single pass.
type Scope struct {
	// UserPatterns contain a single %s verb that is substituted with each
	// user id, e.g. "meetings:%s:*".
	UserPatterns []string

	// GlobalPatterns are resolved once per pass, e.g. "meetings:*".
	GlobalPatterns []string

	UserIDs []uuid.UUID
}

// MeetingScope returns the invalidation scope for meetings that just started.
// Covers the per-user list, status, and counts caches plus the unscoped
// fallbacks.
func MeetingScope(userIDs []uuid.UUID) Scope {
	return Scope{
		UserPatterns: []string{
			"meetings:%s:*",
			"meeting-status:%s:*",
			"meeting-counts:%s:*",
		},
		GlobalPatterns: []string{
			"meetings:*",
			"meeting-status:*",
			"meeting-counts:*",
		},
		UserIDs: userIDs,
	}
}

// Resolve expands the scope into the concrete key patterns to delete.
func (s Scope) Resolve() []string {
	patterns := make([]string, 0, len(s.UserPatterns)*len(s.UserIDs)+len(s.GlobalPatterns))
	for _, uid := range s.UserIDs {
		for _, p := range s.UserPatterns {
			patterns = append(patterns, fmt.Sprintf(p, uid))
		}
	}
	patterns = append(patterns, s.GlobalPatterns...)
	return patterns
}
