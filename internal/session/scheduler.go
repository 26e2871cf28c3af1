package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger defines the logging interface used by the Scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Timings holds the timeline delays. All fields are required.
type Timings struct {
	// WelcomeDelay is how long the welcome stage holds before the
	// voice prompt begins.
	WelcomeDelay time.Duration

	// VoiceFallback is how long to wait for a decision after voice
	// capture before forcing orchestration with whatever is known.
	VoiceFallback time.Duration

	// ResultFallback is how long the orchestrated stage holds before
	// the result stage is forced.
	ResultFallback time.Duration
}

// Scheduler drives one experience session through its timeline.
//
// At most one session is live at a time. Every pending timer is tagged
// with the session id that scheduled it, and the tag is re-checked
// under the lock at fire time, so a timer armed by a superseded
// session can never mutate the session that replaced it. Starting a
// new session additionally stops every pending timer outright.
//
// Transitions are announced to a single listener, invoked outside the
// scheduler lock.
type Scheduler struct {
	timings Timings

	mu        sync.Mutex
	sessionID string
	stage     Stage
	timers    map[string]*time.Timer
	closed    bool

	listener func(StageChange)
	logger   Logger
}

// NewScheduler creates a scheduler with no active session.
func NewScheduler(timings Timings) *Scheduler {
	return &Scheduler{
		timings: timings,
		timers:  make(map[string]*time.Timer),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// SetListener registers the transition listener. Must be called before
// the first session starts.
func (s *Scheduler) SetListener(fn func(StageChange)) {
	s.mu.Lock()
	s.listener = fn
	s.mu.Unlock()
}

// Current returns the live session id and stage. The id is empty when
// no session is active.
func (s *Scheduler) Current() (string, Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID, s.stage
}

// StartNewSession abandons any live session and begins a fresh one at
// the welcome stage. All timers belonging to the old session are
// stopped before the new id is assigned. Returns the new session id.
func (s *Scheduler) StartNewSession(cause string) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}

	id, change := s.startLocked(cause)
	listener := s.listener
	s.mu.Unlock()

	s.logger.Info("session started", "session_id", id, "cause", cause)
	if listener != nil {
		listener(change)
	}
	return id, nil
}

// startLocked begins a fresh session. Caller holds the lock.
func (s *Scheduler) startLocked(cause string) (string, StageChange) {
	s.cancelAllTimersLocked()
	s.sessionID = uuid.New().String()
	change := s.transitionLocked(StageWelcome, cause)
	id := s.sessionID

	s.scheduleLocked("welcome", s.timings.WelcomeDelay, func() {
		s.advance(id, StageVoiceStart, CauseWelcomeElapsed, nil)
	})
	return id, change
}

// UserJoined reports a user arriving. The first arrival into an empty
// room starts a session; later arrivals join the one in flight. The
// check and the start happen under one lock hold, so concurrent first
// joins agree on a single session.
// Returns the live session id and whether this call started it.
func (s *Scheduler) UserJoined() (string, bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", false, ErrClosed
	}
	if s.sessionID != "" {
		id := s.sessionID
		s.mu.Unlock()
		return id, false, nil
	}

	id, change := s.startLocked(CauseUserJoined)
	listener := s.listener
	s.mu.Unlock()

	s.logger.Info("session started", "session_id", id, "cause", CauseUserJoined)
	if listener != nil {
		listener(change)
	}
	return id, true, nil
}

// VoiceCaptured forces the voice-input stage. It is re-entrant: a
// second capture during voice input stays in the stage but re-arms the
// fallback timer, giving the speaker a fresh window.
func (s *Scheduler) VoiceCaptured() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.sessionID == "" {
		s.mu.Unlock()
		return ErrNoActiveSession
	}
	id := s.sessionID

	s.cancelTimerLocked("welcome")
	change := s.transitionLocked(StageVoiceInput, CauseVoiceCaptured)
	s.scheduleLocked("voice", s.timings.VoiceFallback, func() {
		s.advance(id, StageOrchestrated, CauseVoiceFallback, func() {
			s.scheduleResultFallbackLocked(id)
		})
	})
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener(change)
	}
	return nil
}

// DecisionRecorded forces the orchestrated stage after a decision was
// computed. The voice fallback is disarmed and the result fallback
// armed in its place.
func (s *Scheduler) DecisionRecorded() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.sessionID == "" {
		s.mu.Unlock()
		return ErrNoActiveSession
	}
	id := s.sessionID

	s.cancelTimerLocked("welcome")
	s.cancelTimerLocked("voice")
	change := s.transitionLocked(StageOrchestrated, CauseDecision)
	s.scheduleResultFallbackLocked(id)
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener(change)
	}
	return nil
}

// EndSession abandons the live session without starting another, used
// when the room empties. All pending timers are stopped.
func (s *Scheduler) EndSession(reason string) {
	s.mu.Lock()
	if s.sessionID == "" {
		s.mu.Unlock()
		return
	}
	id := s.sessionID
	s.cancelAllTimersLocked()
	s.sessionID = ""
	s.stage = ""
	s.mu.Unlock()

	s.logger.Info("session ended", "session_id", id, "reason", reason)
}

// Close stops the scheduler and every pending timer. Further calls
// return ErrClosed.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancelAllTimersLocked()
	s.sessionID = ""
}

// scheduleResultFallbackLocked arms the timer that forces the result
// stage. Caller holds the lock.
func (s *Scheduler) scheduleResultFallbackLocked(id string) {
	s.scheduleLocked("result", s.timings.ResultFallback, func() {
		s.advance(id, StageResult, CauseResultFallback, nil)
	})
}

// advance performs a timer-driven transition. The session id captured
// at schedule time is revalidated under the lock; a stale id means the
// session was superseded and the firing is dropped.
func (s *Scheduler) advance(id string, stage Stage, cause string, then func()) {
	s.mu.Lock()
	if s.closed || s.sessionID != id {
		s.mu.Unlock()
		s.logger.Debug("stale timer dropped", "session_id", id, "stage", string(stage))
		return
	}
	change := s.transitionLocked(stage, cause)
	if then != nil {
		then()
	}
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener(change)
	}
}

// transitionLocked records a stage change. Caller holds the lock.
func (s *Scheduler) transitionLocked(stage Stage, cause string) StageChange {
	s.stage = stage
	change := StageChange{
		SessionID: s.sessionID,
		Stage:     stage,
		Label:     stage.Label(),
		Cause:     cause,
		At:        time.Now(),
	}
	s.logger.Debug("stage transition", "session_id", s.sessionID, "stage", string(stage), "cause", cause)
	return change
}

// scheduleLocked arms a named timer, replacing any pending timer with
// the same name. Caller holds the lock.
func (s *Scheduler) scheduleLocked(name string, delay time.Duration, fn func()) {
	s.cancelTimerLocked(name)
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// A replacement timer may already occupy this slot; only
		// remove our own entry.
		if s.timers[name] == t {
			delete(s.timers, name)
		}
		s.mu.Unlock()
		fn()
	})
	s.timers[name] = t
}

// cancelTimerLocked stops one named timer. Caller holds the lock.
func (s *Scheduler) cancelTimerLocked(name string) {
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
}

// cancelAllTimersLocked stops every pending timer. Caller holds the lock.
func (s *Scheduler) cancelAllTimersLocked() {
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
}
