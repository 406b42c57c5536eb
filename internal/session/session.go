// Package session hosts playback controllers on the server. Each session
// owns an event loop, a wall clock dispatching onto that loop, a controller,
// and a hub that fans controller notifications out to subscribers.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/demoreel/internal/clock"
	"github.com/stwalsh4118/demoreel/internal/logger"
	"github.com/stwalsh4118/demoreel/internal/playback"
	"github.com/stwalsh4118/demoreel/internal/script"
)

const stopTimeout = 2 * time.Second

// Command is a playback command accepted by a session
type Command string

// Playback commands
const (
	CommandPlay     Command = "play"
	CommandPause    Command = "pause"
	CommandRestart  Command = "restart"
	CommandNext     Command = "next"
	CommandPrevious Command = "previous"
	CommandJump     Command = "jump"
)

// ParseCommand converts a command name, ignoring case
func ParseCommand(name string) (Command, error) {
	cmd := Command(strings.ToLower(name))
	switch cmd {
	case CommandPlay, CommandPause, CommandRestart, CommandNext, CommandPrevious, CommandJump:
		return cmd, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}

// Options configure a session
type Options struct {
	ProgressInterval time.Duration
	EventBuffer      int
	Autoplay         bool
}

// Info is a summary of a session for listings
type Info struct {
	ID           uuid.UUID      `json:"id"`
	ScriptID     string         `json:"script_id,omitempty"`
	ScriptName   string         `json:"script_name"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
	Subscribers  int            `json:"subscribers"`
	State        playback.State `json:"state"`
}

// Session is one live player
type Session struct {
	id         uuid.UUID
	scriptID   string
	scriptName string
	createdAt  time.Time

	loop  *clock.Loop
	clock clock.Clock
	ctrl  *playback.Controller
	hub   *Hub
	log   zerolog.Logger

	mu           sync.Mutex
	lastActivity time.Time
	stopOnce     sync.Once
}

// New creates a session playing timeline against the wall clock and starts
// its loop
func New(id uuid.UUID, scriptID, scriptName string, timeline *script.Timeline, opts Options) (*Session, error) {
	loop := clock.NewLoop()
	return newSession(id, scriptID, scriptName, timeline, loop, clock.NewReal(loop), opts)
}

func newSession(id uuid.UUID, scriptID, scriptName string, timeline *script.Timeline, loop *clock.Loop, c clock.Clock, opts Options) (*Session, error) {
	now := time.Now().UTC()
	s := &Session{
		id:           id,
		scriptID:     scriptID,
		scriptName:   scriptName,
		createdAt:    now,
		loop:         loop,
		clock:        c,
		hub:          NewHub(opts.EventBuffer),
		lastActivity: now,
		log:          logger.With("session").With().Str("session_id", id.String()).Logger(),
	}

	ctrl, err := playback.New(timeline, c, playback.Options{
		Listener:         s,
		ProgressInterval: opts.ProgressInterval,
	})
	if err != nil {
		return nil, err
	}
	s.ctrl = ctrl

	go loop.Run(context.Background())

	if opts.Autoplay {
		if _, err := s.Execute(context.Background(), CommandPlay, 0); err != nil {
			s.Stop()
			return nil, fmt.Errorf("failed to start playback: %w", err)
		}
	}

	s.log.Info().
		Str("script_name", scriptName).
		Str("timeline_id", timeline.ID()).
		Bool("autoplay", opts.Autoplay).
		Msg("Session created")

	return s, nil
}

// ID returns the session's identifier
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Execute runs a playback command on the session's loop and returns the
// resulting state. index is only read by CommandJump.
func (s *Session) Execute(ctx context.Context, cmd Command, index int) (playback.State, error) {
	s.touch()

	var state playback.State
	err := s.loop.Do(ctx, func() error {
		var err error
		switch cmd {
		case CommandPlay:
			err = s.ctrl.Play()
		case CommandPause:
			err = s.ctrl.Pause()
		case CommandRestart:
			err = s.ctrl.Restart()
		case CommandNext:
			err = s.ctrl.Next()
		case CommandPrevious:
			err = s.ctrl.Previous()
		case CommandJump:
			err = s.ctrl.JumpToSegment(index)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
		}
		state = s.ctrl.State()
		if err == nil {
			s.publishState(state)
		}
		return err
	})
	if errors.Is(err, clock.ErrLoopStopped) {
		return state, ErrSessionClosed
	}
	return state, err
}

// State returns a snapshot of the controller
func (s *Session) State(ctx context.Context) (playback.State, error) {
	var state playback.State
	err := s.loop.Do(ctx, func() error {
		state = s.ctrl.State()
		return nil
	})
	if errors.Is(err, clock.ErrLoopStopped) {
		return state, ErrSessionClosed
	}
	return state, err
}

// Stats returns the controller's activity counters
func (s *Session) Stats(ctx context.Context) (playback.Stats, error) {
	var stats playback.Stats
	err := s.loop.Do(ctx, func() error {
		stats = s.ctrl.Stats()
		return nil
	})
	if errors.Is(err, clock.ErrLoopStopped) {
		return stats, ErrSessionClosed
	}
	return stats, err
}

// Info returns a summary of the session
func (s *Session) Info(ctx context.Context) (Info, error) {
	state, err := s.State(ctx)
	if err != nil {
		return Info{}, err
	}
	return Info{
		ID:           s.id,
		ScriptID:     s.scriptID,
		ScriptName:   s.scriptName,
		CreatedAt:    s.createdAt,
		LastActivity: s.LastActivity(),
		Subscribers:  s.hub.Subscribers(),
		State:        state,
	}, nil
}

// Subscribe opens an event stream. The current state is delivered first.
func (s *Session) Subscribe(ctx context.Context) (*Subscription, error) {
	s.touch()

	var sub *Subscription
	err := s.loop.Do(ctx, func() error {
		var err error
		sub, err = s.hub.Subscribe()
		if err != nil {
			return err
		}
		// Published on the loop so nothing can slip in ahead of it
		s.publishState(s.ctrl.State())
		return nil
	})
	if errors.Is(err, clock.ErrLoopStopped) {
		return nil, ErrSessionClosed
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe closes sub and restarts the idle clock
func (s *Session) Unsubscribe(sub *Subscription) {
	sub.Close()
	s.touch()
}

// Subscribers returns the number of open event streams
func (s *Session) Subscribers() int {
	return s.hub.Subscribers()
}

// LastActivity returns when the session last saw a command or subscriber change
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// IdleFor reports how long the session has gone without commands while
// nobody is subscribed. A subscribed session is never idle.
func (s *Session) IdleFor(now time.Time) time.Duration {
	if s.hub.Subscribers() > 0 {
		return 0
	}
	idle := now.Sub(s.LastActivity())
	if idle < 0 {
		return 0
	}
	return idle
}

// Stop cancels playback, closes every subscription and stops the loop
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()

		if err := s.loop.Do(ctx, func() error {
			s.ctrl.Stop()
			return nil
		}); err != nil {
			s.log.Warn().Err(err).Msg("Failed to stop controller cleanly")
		}
		s.loop.Stop()
		s.hub.Close()

		s.log.Info().Msg("Session stopped")
	})
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now().UTC()
	s.mu.Unlock()
}

func (s *Session) publishState(state playback.State) {
	s.hub.Publish(Event{
		Type:         EventState,
		SegmentIndex: state.SegmentIndex,
		Fraction:     state.Fraction,
		State:        &state,
		At:           s.clock.Now(),
	})
}

// OnStep implements playback.Listener
func (s *Session) OnStep(segmentIndex int, step script.Step) {
	s.hub.Publish(Event{
		Type:         EventStep,
		SegmentIndex: segmentIndex,
		Step: &StepPayload{
			ID:           step.ID,
			Kind:         step.Kind.String(),
			OffsetMillis: step.Offset.Milliseconds(),
			Payload:      step.Payload,
		},
		At: s.clock.Now(),
	})
}

// OnProgress implements playback.Listener
func (s *Session) OnProgress(fraction float64, segmentIndex int) {
	s.hub.Publish(Event{
		Type:         EventProgress,
		SegmentIndex: segmentIndex,
		Fraction:     fraction,
		At:           s.clock.Now(),
	})
}

// OnSegmentChange implements playback.Listener
func (s *Session) OnSegmentChange(segmentIndex int) {
	state := s.ctrl.State()
	s.hub.Publish(Event{
		Type:         EventSegment,
		SegmentIndex: segmentIndex,
		State:        &state,
		At:           s.clock.Now(),
	})
}
