package session

import (
	"github.com/rs/zerolog"

	"github.com/getsentry/tickprof/internal/callgraph"
)

// Controller owns the live session, if any, and moves it through
// inactive -> armed -> active -> inactive.
type Controller struct {
	session *Session
	logger  zerolog.Logger
}

func NewController(logger zerolog.Logger) *Controller {
	return &Controller{logger: logger}
}

// Session returns the live session or nil.
func (c *Controller) Session() *Session {
	return c.session
}

// Load replaces the live session, typically with one restored from a Store.
func (c *Controller) Load(s *Session) {
	if s != nil && s.Graph == nil {
		s.Graph = callgraph.New()
	}
	c.session = s
}

func (c *Controller) State(tick int64) State {
	if c.session == nil {
		return StateInactive
	}
	return c.session.State(tick)
}

// Start discards any session and arms a new one requested at tick. Recording
// begins on the next slice. A duration of zero or less selects the mode's
// default.
func (c *Controller) Start(mode Mode, duration int64, filter string, tick int64) *Session {
	if duration <= 0 {
		duration = mode.DefaultDuration()
	}
	return c.arm(mode, duration, filter, tick)
}

// Restart re-arms the active session with the same mode, filter and total
// span. It does nothing unless a session is active at tick.
func (c *Controller) Restart(tick int64) bool {
	if c.State(tick) != StateActive {
		return false
	}
	s := c.session
	c.arm(s.Mode, s.Duration(), s.Filter, tick)
	return true
}

func (c *Controller) arm(mode Mode, duration int64, filter string, tick int64) *Session {
	if mode == ModeBackground {
		duration = NoEndTick
	}
	s := &Session{
		Mode:      mode,
		StartTick: tick + 1,
		Filter:    filter,
		Graph:     callgraph.New(),
	}
	if duration == NoEndTick {
		s.Unbounded = true
	} else {
		s.EndTick = tick + duration
	}
	c.session = s
	c.logger.Debug().
		Str("mode", string(mode)).
		Int64("start_tick", s.StartTick).
		Int64("end_tick", s.EndTick).
		Str("filter", filter).
		Msg("profiler session armed")
	return s
}

// Reset discards the session, whatever its state.
func (c *Controller) Reset() {
	if c.session != nil {
		c.logger.Debug().Str("mode", string(c.session.Mode)).Msg("profiler session reset")
	}
	c.session = nil
}

// Advance discards a session whose last slice is behind tick and returns the
// resulting state.
func (c *Controller) Advance(tick int64) State {
	state := c.State(tick)
	if c.session != nil && state == StateInactive {
		c.logger.Debug().
			Str("mode", string(c.session.Mode)).
			Int64("end_tick", c.session.EndTick).
			Msg("profiler session ended")
		c.session = nil
	}
	return state
}

// Recording reports whether invocations at tick are recorded and the name
// filter they are scoped to.
func (c *Controller) Recording(tick int64) (string, bool) {
	if c.State(tick) != StateActive {
		return "", false
	}
	return c.session.Filter, true
}

// Record adds an invocation to the live session's graph.
func (c *Controller) Record(name string, elapsed float64, successes, failures int64, caller string) {
	if c.session == nil {
		return
	}
	c.session.Graph.Record(name, elapsed, successes, failures, caller)
}

// EndSlice accumulates the slice totals into an active session and returns
// where the slice's report should go.
func (c *Controller) EndSlice(tick int64, used float64, successes, failures int64) Channel {
	if c.State(tick) != StateActive {
		return ChannelNone
	}
	s := c.session
	s.TotalTime += used
	s.TotalSuccesses += successes
	s.TotalFailures += failures
	return s.ReportChannel(tick)
}
