package models

import (
	"strings"
	"time"
)

// Lockout tracks failed logins for one username and client address.
type Lockout struct {
	Key           string     `json:"key"`
	FailureCount  int        `json:"failure_count"`
	WindowStart   time.Time  `json:"window_start"`
	LastFailureAt time.Time  `json:"last_failure_at"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
}

// LockoutKey scopes failures to a username and client IP, so one noisy
// client cannot lock an operator out from every workstation.
func LockoutKey(username, clientIP string) string {
	return "login:" + strings.ToLower(strings.TrimSpace(username)) + "|" + clientIP
}

func (l *Lockout) IsLockedAt(now time.Time) bool {
	return l.LockedUntil != nil && now.Before(*l.LockedUntil)
}

// WindowExpiredAt reports whether the failure window has passed, after which
// the count starts over.
func (l *Lockout) WindowExpiredAt(now time.Time, window time.Duration) bool {
	return l.WindowStart.IsZero() || !now.Before(l.WindowStart.Add(window))
}

// RecordFailureAt counts one failure, restarting the window when it expired.
func (l *Lockout) RecordFailureAt(now time.Time, window time.Duration) {
	if l.WindowExpiredAt(now, window) && !l.IsLockedAt(now) {
		l.FailureCount = 0
		l.WindowStart = now
		l.LockedUntil = nil
	}
	l.FailureCount++
	l.LastFailureAt = now
}

// LockAt hard-locks the key for d starting at now.
func (l *Lockout) LockAt(now time.Time, d time.Duration) {
	until := now.Add(d)
	l.LockedUntil = &until
}

// Config holds the login lockout policy.
type Config struct {
	MaxFailures  int
	Window       time.Duration
	LockDuration time.Duration
}

// DefaultConfig allows five failures per fifteen minutes before a fifteen
// minute lock.
func DefaultConfig() Config {
	return Config{
		MaxFailures:  5,
		Window:       15 * time.Minute,
		LockDuration: 15 * time.Minute,
	}
}

// TTL is how long a record must be kept to enforce the policy.
func (c Config) TTL() time.Duration {
	return max(c.Window, c.LockDuration)
}
