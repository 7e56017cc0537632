// Package session governs when the profiler records: which slices belong to
// the active profiling run, what gets reported and when the run ends.
package session

import (
	"context"
	"fmt"

	"github.com/getsentry/tickprof/internal/callgraph"
)

// NoEndTick is the duration of a session without an end: it keeps recording
// until it is reset.
const NoEndTick int64 = 0

type Mode string

const (
	// ModeStream reports on every active slice.
	ModeStream Mode = "stream"
	// ModeSnapshot reports once, on the final slice.
	ModeSnapshot Mode = "profile"
	// ModeEmail reports once, on the final slice, through the notification
	// channel.
	ModeEmail Mode = "email"
	// ModeBackground never reports on its own.
	ModeBackground Mode = "background"
)

// ParseMode accepts the mode names and "snapshot" as an alias of
// ModeSnapshot.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStream, ModeSnapshot, ModeEmail, ModeBackground:
		return Mode(s), nil
	case "snapshot":
		return ModeSnapshot, nil
	}
	return "", fmt.Errorf("session: unknown mode %q", s)
}

// DefaultDuration returns the number of slices a mode records for when no
// duration is given, or NoEndTick.
func (m Mode) DefaultDuration() int64 {
	switch m {
	case ModeStream:
		return 10
	case ModeSnapshot, ModeEmail:
		return 100
	default:
		return NoEndTick
	}
}

type State uint8

const (
	StateInactive State = iota
	StateArmed
	StateActive
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateActive:
		return "active"
	default:
		return "inactive"
	}
}

// Channel is where a slice's report goes.
type Channel uint8

const (
	ChannelNone Channel = iota
	ChannelLog
	ChannelNotify
)

type Session struct {
	Mode           Mode             `json:"type"`
	StartTick      int64            `json:"enabled_tick"`
	EndTick        int64            `json:"disable_tick,omitempty"`
	Unbounded      bool             `json:"unbounded,omitempty"`
	Filter         string           `json:"filter,omitempty"`
	TotalTime      float64          `json:"total_time"`
	TotalSuccesses int64            `json:"total_successes,omitempty"`
	TotalFailures  int64            `json:"total_failures,omitempty"`
	Graph          *callgraph.Graph `json:"map"`
}

// Bounded reports whether the session has an end tick. EndTick is only
// meaningful for bounded sessions.
func (s *Session) Bounded() bool {
	return !s.Unbounded
}

// State returns the state of the session at tick.
func (s *Session) State(tick int64) State {
	switch {
	case tick < s.StartTick:
		return StateArmed
	case s.Bounded() && tick > s.EndTick:
		return StateInactive
	default:
		return StateActive
	}
}

// Duration returns the total span of the session in slices, or NoEndTick.
func (s *Session) Duration() int64 {
	if !s.Bounded() {
		return NoEndTick
	}
	return s.EndTick - s.StartTick + 1
}

// ElapsedTicks returns how many slices of the session have started by tick.
func (s *Session) ElapsedTicks(tick int64) int64 {
	end := tick
	if s.Bounded() && s.EndTick < end {
		end = s.EndTick
	}
	elapsed := end - s.StartTick + 1
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// ReportChannel applies the reporting policy of the session's mode to the
// slice at tick.
func (s *Session) ReportChannel(tick int64) Channel {
	final := s.Bounded() && tick == s.EndTick
	switch {
	case s.Mode == ModeStream:
		return ChannelLog
	case s.Mode == ModeSnapshot && final:
		return ChannelLog
	case s.Mode == ModeEmail && final:
		return ChannelNotify
	default:
		return ChannelNone
	}
}

// Store persists the session between slices.
type Store interface {
	// Load returns errorutil.ErrNotFound when nothing was saved.
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context) error
}
