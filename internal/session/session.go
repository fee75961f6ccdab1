package session

import (
	"sync"

	"github.com/amine-CS96/seo-expert/internal/interfaces"
	"github.com/amine-CS96/seo-expert/internal/model"
)

// Status is the lifecycle state of one audit session. Exactly one status is
// active at a time.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Snapshot is an immutable view of the session, published to subscribers on
// every transition.
type Snapshot struct {
	Status       Status             `json:"status"`
	Generation   uint64             `json:"generation"`
	Report       *model.AuditReport `json:"report,omitempty"`
	Err          *model.AuditError  `json:"error,omitempty"`
	PendingURL   string             `json:"pendingUrl,omitempty"`
	PendingEmail string             `json:"pendingEmail,omitempty"`
}

// Session tracks one audit's request lifecycle. All mutation goes through
// the operation methods under a single mutex (single-writer discipline);
// rendering code only ever reads snapshots.
//
// Every Submit/Retry bumps the generation counter and resolutions must
// present the generation they belong to. A resolution carrying a superseded
// generation is ignored, which is what makes stale network responses and
// cancelled runs harmless.
type Session struct {
	mu sync.Mutex

	status       Status
	generation   uint64
	report       *model.AuditReport
	err          *model.AuditError
	pendingURL   string
	pendingEmail string

	subs   []chan Snapshot
	logger interfaces.Logger
}

// New creates an idle session.
func New(logger interfaces.Logger) *Session {
	return &Session{
		status: StatusIdle,
		logger: logger.With(interfaces.Field{Key: "component", Value: "session"}),
	}
}

// Submit transitions any state to Loading, clears prior results and records
// the pending request. It returns the generation tag the caller must present
// when resolving.
func (s *Session) Submit(url, email string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.status = StatusLoading
	s.report = nil
	s.err = nil
	s.pendingURL = url
	s.pendingEmail = email

	s.logger.Info("submitted",
		interfaces.Field{Key: "url", Value: url},
		interfaces.Field{Key: "generation", Value: s.generation})
	s.notifyLocked()
	return s.generation
}

// ResolveSuccess stores the report and moves Loading -> Success. It is a
// no-op (returning false) unless the session is Loading and gen is current.
func (s *Session) ResolveSuccess(gen uint64, report *model.AuditReport) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusLoading || gen != s.generation {
		s.logger.Debug("ignoring stale success",
			interfaces.Field{Key: "generation", Value: gen},
			interfaces.Field{Key: "current", Value: s.generation})
		return false
	}
	s.status = StatusSuccess
	s.report = report
	s.err = nil
	s.notifyLocked()
	return true
}

// ResolveError moves Loading -> Error. Same staleness rules as
// ResolveSuccess.
func (s *Session) ResolveError(gen uint64, auditErr *model.AuditError) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusLoading || gen != s.generation {
		s.logger.Debug("ignoring stale error",
			interfaces.Field{Key: "generation", Value: gen},
			interfaces.Field{Key: "current", Value: s.generation})
		return false
	}
	s.status = StatusError
	s.err = auditErr
	s.report = nil
	s.notifyLocked()
	return true
}

// Retry re-enters Loading with the previously submitted URL and email. It is
// valid only from Error; ok reports whether the transition happened.
func (s *Session) Retry() (gen uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusError {
		return 0, false
	}
	s.generation++
	s.status = StatusLoading
	s.report = nil
	s.err = nil
	s.logger.Info("retrying",
		interfaces.Field{Key: "url", Value: s.pendingURL},
		interfaces.Field{Key: "generation", Value: s.generation})
	s.notifyLocked()
	return s.generation, true
}

// Reset returns to Idle from any state and clears report and error. Pending
// values are kept for form redisplay.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// ResetIfCurrent resets only when gen is still the current generation, so a
// superseded run's cancellation cannot clobber a newer submission. ok
// reports whether the reset happened.
func (s *Session) ResetIfCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.Debug("ignoring stale reset",
			interfaces.Field{Key: "generation", Value: gen},
			interfaces.Field{Key: "current", Value: s.generation})
		return false
	}
	s.resetLocked()
	return true
}

func (s *Session) resetLocked() {
	s.status = StatusIdle
	s.report = nil
	s.err = nil
	s.notifyLocked()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Pending returns the last submitted URL and email.
func (s *Session) Pending() (url, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingURL, s.pendingEmail
}

// Subscribe registers a buffered channel that receives a Snapshot on every
// transition. Emission is non-blocking; a slow subscriber misses
// intermediate snapshots but can always call Snapshot() for the latest.
// The returned func removes the subscription; callers must invoke it when
// they stop reading or the subscriber list grows without bound.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Snapshot, 16)
	s.subs = append(s.subs, ch)

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub == ch {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
	return ch, unsubscribe
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Status:       s.status,
		Generation:   s.generation,
		Report:       s.report,
		Err:          s.err,
		PendingURL:   s.pendingURL,
		PendingEmail: s.pendingEmail,
	}
}

func (s *Session) notifyLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
