// Package draft contains the pure business logic for draft lifecycle and
// expiry. This is part of the Functional Core - no I/O, only pure functions.
// Callers pass the current time to enable testing.
package draft

import (
	"fmt"
	"time"
)

// Status represents the possible states of a draft.
type Status string

const (
	StatusActive    Status = "active"
	StatusRecovered Status = "recovered"
	StatusDiscarded Status = "discarded"
)

// CanTransition reports whether a draft may move from one status to
// another. Discarded is terminal; only active drafts can be recovered.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusActive:
		return to == StatusRecovered || to == StatusDiscarded
	case StatusRecovered:
		return to == StatusDiscarded
	default:
		return false
	}
}

// ExpiresAt derives the moment a draft stops being recoverable.
func ExpiresAt(createdAt time.Time, maxAge time.Duration) time.Time {
	return createdAt.Add(maxAge)
}

// IsExpired reports whether a draft is too old to be offered for recovery.
func IsExpired(createdAt time.Time, maxAge time.Duration, now time.Time) bool {
	return !now.Before(ExpiresAt(createdAt, maxAge))
}

// TimeUntilExpiry returns the remaining recoverable lifetime, clamped at
// zero for drafts already past their expiry.
func TimeUntilExpiry(createdAt time.Time, maxAge time.Duration, now time.Time) time.Duration {
	remaining := ExpiresAt(createdAt, maxAge).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExpiringSoon reports whether a still-recoverable draft is within the
// warning window of its expiry. Expired drafts are not "soon" - they are
// gone.
func IsExpiringSoon(createdAt time.Time, maxAge, warn time.Duration, now time.Time) bool {
	remaining := TimeUntilExpiry(createdAt, maxAge, now)
	return remaining > 0 && remaining <= warn
}

// RelativeAge formats a draft's age as a human-relative string for the
// recovery banner ("just now", "5 minutes ago", "3 hours ago", "2 days ago").
func RelativeAge(createdAt, now time.Time) string {
	age := now.Sub(createdAt)
	switch {
	case age < time.Minute:
		return "just now"
	case age < 2*time.Minute:
		return "1 minute ago"
	case age < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(age.Minutes()))
	case age < 2*time.Hour:
		return "1 hour ago"
	case age < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(age.Hours()))
	case age < 48*time.Hour:
		return "1 day ago"
	default:
		return fmt.Sprintf("%d days ago", int(age.Hours()/24))
	}
}

// InitialVersion is the version assigned by the first accepted write.
func InitialVersion() int {
	return 1
}

// CanAcceptWrite captures the optimistic-concurrency rule: a write is
// accepted only when the submitted version equals the store's current one.
func CanAcceptWrite(current, submitted int) bool {
	return current == submitted
}

// NextVersion returns the version an accepted write moves the draft to.
// Versions only increase, by exactly one per accepted write.
func NextVersion(current int) int {
	return current + 1
}
