package subscription

import (
	"log/slog"
	"time"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*service)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces the source of "now" used as a grant's start date.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRecoveryStore enables durable recovery records for purchases that were
// paid but could not be persisted, and enables RetryPending.
func WithRecoveryStore(rs RecoveryStore) ServiceOption {
	return func(s *service) {
		if rs != nil {
			s.recovery = rs
		}
	}
}

// WithSupportNotifier alerts support whenever a recovery record is created.
func WithSupportNotifier(n SupportNotifier) ServiceOption {
	return func(s *service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithPairLocker adds a cross-process lock around each (user, plan) write.
// The store's own pair lock still applies.
func WithPairLocker(l PairLocker) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.locker = l
		}
	}
}
