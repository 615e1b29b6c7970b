package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"componentlab/api/logger"
	"componentlab/api/models"
)

const submitTimeout = 10 * time.Second

type Tracker interface {
	TrackInteraction(ctx context.Context, req models.TrackRequest) (*models.InteractionEvent, error)
}

// Invalidator is told when the server has accepted a new interaction.
type Invalidator interface {
	Invalidate()
}

// LocalInteraction is the session's own record of a tracked interaction,
// kept whether or not the server accepted it.
type LocalInteraction struct {
	ComponentName string
	Action        string
	Timestamp     time.Time
	UserType      models.UserType
	UserRef       string
}

// Session counts interactions locally and submits each one to the server in
// its own goroutine. Submission failures are logged and otherwise ignored.
type Session struct {
	tracker Tracker
	stats   Invalidator
	log     *logger.Logger
	now     func() time.Time

	total atomic.Int64

	mu     sync.Mutex
	events []LocalInteraction
	userID string

	inflight sync.WaitGroup
}

// NewSession builds a session. stats may be nil.
func NewSession(tracker Tracker, stats Invalidator, log *logger.Logger) *Session {
	return &Session{
		tracker: tracker,
		stats:   stats,
		log:     log,
		now:     time.Now,
	}
}

// SetUser attributes subsequent interactions to a signed-in user.
func (s *Session) SetUser(id string) {
	s.mu.Lock()
	s.userID = id
	s.mu.Unlock()
}

func (s *Session) ClearUser() {
	s.SetUser("")
}

// TrackInteraction records the interaction locally before returning and then
// submits it in the background.
func (s *Session) TrackInteraction(componentName, action string) {
	s.mu.Lock()
	rec := LocalInteraction{
		ComponentName: componentName,
		Action:        action,
		Timestamp:     s.now(),
		UserType:      models.UserTypeAnonymous,
	}
	if s.userID != "" {
		rec.UserType = models.UserTypeRegistered
		rec.UserRef = s.userID
	}
	s.events = append(s.events, rec)
	s.mu.Unlock()
	s.total.Add(1)

	s.inflight.Add(1)
	go s.submit(rec)
}

func (s *Session) submit(rec LocalInteraction) {
	defer s.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	_, err := s.tracker.TrackInteraction(ctx, models.TrackRequest{
		ComponentName: rec.ComponentName,
		Action:        rec.Action,
		UserType:      rec.UserType,
		UserRef:       rec.UserRef,
	})
	if err != nil {
		s.log.Error("Error tracking interaction",
			zap.Error(err),
			zap.String("component", rec.ComponentName),
			zap.String("action", rec.Action))
		return
	}
	if s.stats != nil {
		s.stats.Invalidate()
	}
}

// Total is the number of interactions tracked in this session, including
// ones the server rejected.
func (s *Session) Total() int {
	return int(s.total.Load())
}

func (s *Session) Events() []LocalInteraction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LocalInteraction, len(s.events))
	copy(out, s.events)
	return out
}

// Wait blocks until every submission started so far has finished.
func (s *Session) Wait() {
	s.inflight.Wait()
}
