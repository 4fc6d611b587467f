// Package supervisor polls a launched session until it concludes.
//
// The state machine is Initializing -> AwaitingReady -> Running -> Finished.
// AwaitingReady may also go straight to Finished when the engine gives up
// before a session ID was ever assigned; that is a normal outcome, not an
// error. Polling never fails: an engine that cannot answer is simply "not
// finished yet".
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/vburojevic/dedicated/internal/domain"
	"github.com/vburojevic/dedicated/internal/engine"
)

// DefaultPollInterval is the pause between two polls.
const DefaultPollInterval = time.Second

// ErrCancelled is returned when the context ends supervision early. The
// session is not reported as finished in that case.
var ErrCancelled = errors.New("supervision cancelled")

// Outcome says how a supervised session reached Finished.
type Outcome int

const (
	// OutcomeCompleted: the session became ready and later finished.
	OutcomeCompleted Outcome = iota
	// OutcomeAbortedBeforeReady: the engine finished without ever becoming ready.
	OutcomeAbortedBeforeReady
	// OutcomeReadyTimeout: MaxReadyWait elapsed while still awaiting readiness.
	OutcomeReadyTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeAbortedBeforeReady:
		return "aborted_before_ready"
	case OutcomeReadyTimeout:
		return "ready_timeout"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// RunningInfo is published once when the session is first seen running.
type RunningInfo struct {
	SessionID  domain.SessionID
	ReplayName string
	MapName    string
	ModName    string
}

// Result summarizes a finished supervision.
type Result struct {
	Outcome   Outcome
	SessionID domain.SessionID
	Running   *RunningInfo // nil when the running announcement never fired
	Polls     int
	Elapsed   time.Duration
}

// Options configures a Supervisor.
type Options struct {
	PollInterval time.Duration
	// MaxReadyWait bounds AwaitingReady. 0 waits indefinitely.
	MaxReadyWait time.Duration
	Clock        clock.Clock
	Logger       *zap.Logger
	// OnRunning is called once, after the running announcement is logged.
	OnRunning func(RunningInfo)
}

// Supervisor drives the state machine for one session handle. It only
// queries the handle; releasing it is the caller's job.
type Supervisor struct {
	handle engine.Handle
	script domain.SessionScript
	opts   Options

	state   domain.SupervisorState
	started time.Time
	polls   int
	running *RunningInfo // set exactly once, on the first running poll
	result  Result
}

// New creates a supervisor in the Initializing state.
func New(h engine.Handle, script domain.SessionScript, opts Options) *Supervisor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Supervisor{
		handle: h,
		script: script,
		opts:   opts,
		state:  domain.StateInitializing,
	}
}

// State returns the current state.
func (s *Supervisor) State() domain.SupervisorState {
	return s.state
}

// Result is valid once State is Finished.
func (s *Supervisor) Result() Result {
	return s.result
}

// Step performs one poll and returns the resulting state. Calling Step on a
// finished supervisor does nothing.
func (s *Supervisor) Step() domain.SupervisorState {
	if s.state == domain.StateInitializing {
		s.started = s.opts.Clock.Now()
		s.transition(domain.StateAwaitingReady)
	}
	if s.state == domain.StateFinished {
		return s.state
	}

	// One snapshot per poll; every branch below uses it.
	status := s.handle.Status()
	s.polls++

	switch s.state {
	case domain.StateAwaitingReady:
		switch status {
		case domain.StatusReady:
			s.transition(domain.StateRunning)
			s.announceRunning()
		case domain.StatusFinished:
			// Readiness is never revoked, so a non-zero ID means the session
			// started and ended between two polls.
			if id := s.handle.SessionID(); !id.IsZero() {
				s.finish(OutcomeCompleted)
			} else {
				s.finish(OutcomeAbortedBeforeReady)
			}
		default:
			if s.opts.MaxReadyWait > 0 && s.opts.Clock.Since(s.started) >= s.opts.MaxReadyWait {
				s.finish(OutcomeReadyTimeout)
			}
		}
	case domain.StateRunning:
		if status == domain.StatusFinished {
			s.finish(OutcomeCompleted)
		} else {
			s.announceRunning()
		}
	}
	return s.state
}

// Run polls until Finished or until ctx is done, pausing PollInterval between polls.
func (s *Supervisor) Run(ctx context.Context) (Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, s.cancelled(err)
		}
		if s.Step() == domain.StateFinished {
			return s.result, nil
		}
		if err := s.wait(ctx); err != nil {
			return Result{}, s.cancelled(err)
		}
	}
}

func (s *Supervisor) wait(ctx context.Context) error {
	t := s.opts.Clock.Timer(s.opts.PollInterval)
	select {
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Supervisor) cancelled(err error) error {
	s.opts.Logger.Info("supervision cancelled", zap.Stringer("state", s.state), zap.Int("polls", s.polls))
	return fmt.Errorf("%w in state %s: %v", ErrCancelled, s.state, err)
}

// announceRunning fires the one-time running side effects.
func (s *Supervisor) announceRunning() {
	if s.running != nil {
		return
	}
	info := RunningInfo{
		SessionID:  s.handle.SessionID(),
		ReplayName: s.handle.ReplayArtifactName(),
		MapName:    s.script.MapName,
		ModName:    s.script.ModName,
	}
	s.running = &info

	s.opts.Logger.Info("recording replay", zap.String("replay", info.ReplayName))
	s.opts.Logger.Info("using mod", zap.String("mod", info.ModName))
	s.opts.Logger.Info("using map", zap.String("map", info.MapName))
	s.opts.Logger.Info("session running", zap.Stringer("session_id", info.SessionID))
	if s.opts.OnRunning != nil {
		s.opts.OnRunning(info)
	}
}

func (s *Supervisor) transition(next domain.SupervisorState) {
	s.opts.Logger.Debug("supervisor transition",
		zap.Stringer("from", s.state),
		zap.Stringer("to", next),
		zap.Int("polls", s.polls),
	)
	s.state = next
}

func (s *Supervisor) finish(outcome Outcome) {
	s.transition(domain.StateFinished)
	s.result = Result{
		Outcome:   outcome,
		SessionID: s.handle.SessionID(),
		Running:   s.running,
		Polls:     s.polls,
		Elapsed:   s.opts.Clock.Since(s.started),
	}
	s.opts.Logger.Info("session finished",
		zap.Stringer("outcome", outcome),
		zap.Int("polls", s.polls),
		zap.Duration("elapsed", s.result.Elapsed),
	)
}
