package session

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/getsentry/tickprof/internal/testutil"
)

func TestSnapshotLifecycle(t *testing.T) {
	c := NewController(zerolog.Nop())
	s := c.Start(ModeSnapshot, 3, "", 100)

	if s.StartTick != 101 || s.EndTick != 103 {
		t.Fatalf("expected ticks 101-103, got %d-%d", s.StartTick, s.EndTick)
	}
	if state := c.State(100); state != StateArmed {
		t.Fatalf("expected armed at tick 100, got %v", state)
	}
	if _, ok := c.Recording(100); ok {
		t.Fatal("recording must not begin in the requesting slice")
	}
	if ch := c.EndSlice(100, 5, 0, 0); ch != ChannelNone || s.TotalTime != 0 {
		t.Fatal("an armed session should not accumulate or report")
	}

	var channels []Channel
	for tick := int64(101); tick <= 104; tick++ {
		c.Advance(tick)
		channels = append(channels, c.EndSlice(tick, 2, 0, 0))
	}
	want := []Channel{ChannelNone, ChannelNone, ChannelLog, ChannelNone}
	if diff := testutil.Diff(channels, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
	if c.Session() != nil {
		t.Fatal("the session should be gone after its last slice")
	}
	if s.TotalTime != 6 {
		t.Fatalf("expected 3 slices of 2, got %v", s.TotalTime)
	}
}

func TestReportChannels(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		want []Channel
	}{
		{name: "stream", mode: ModeStream, want: []Channel{ChannelLog, ChannelLog}},
		{name: "snapshot", mode: ModeSnapshot, want: []Channel{ChannelNone, ChannelLog}},
		{name: "email", mode: ModeEmail, want: []Channel{ChannelNone, ChannelNotify}},
		{name: "background", mode: ModeBackground, want: []Channel{ChannelNone, ChannelNone}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(zerolog.Nop())
			c.Start(tt.mode, 2, "", 0)
			got := []Channel{c.EndSlice(1, 1, 0, 0), c.EndSlice(2, 1, 0, 0)}
			if diff := testutil.Diff(got, tt.want); diff != "" {
				t.Fatalf("Result mismatch: got - want +\n%s", diff)
			}
		})
	}
}

func TestDefaultDurations(t *testing.T) {
	tests := []struct {
		mode    Mode
		wantEnd int64
	}{
		{ModeStream, 10},
		{ModeSnapshot, 100},
		{ModeEmail, 100},
		{ModeBackground, NoEndTick},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			c := NewController(zerolog.Nop())
			s := c.Start(tt.mode, 0, "", 0)
			if s.EndTick != tt.wantEnd {
				t.Fatalf("expected end tick %d, got %d", tt.wantEnd, s.EndTick)
			}
		})
	}
}

func TestBackgroundNeverExpires(t *testing.T) {
	c := NewController(zerolog.Nop())
	c.Start(ModeBackground, 5, "Creep.move", 0)
	if c.Session().Bounded() {
		t.Fatal("background sessions are unbounded")
	}
	if state := c.Advance(1_000_000); state != StateActive {
		t.Fatalf("expected active, got %v", state)
	}
	filter, ok := c.Recording(1_000_000)
	if !ok || filter != "Creep.move" {
		t.Fatalf("expected to record with filter, got %q %v", filter, ok)
	}
}

func TestRestart(t *testing.T) {
	c := NewController(zerolog.Nop())
	c.Start(ModeStream, 3, "B", 100)

	if c.Restart(100) {
		t.Fatal("restart is only valid while active")
	}

	c.Record("B", 1, 0, 0, "(tick)")
	if !c.Restart(102) {
		t.Fatal("restart should succeed while active")
	}
	s := c.Session()
	want := &Session{Mode: ModeStream, StartTick: 103, EndTick: 105, Filter: "B"}
	if diff := testutil.Diff(s, want, ignoreGraph); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
	if s.Graph.Len() != 0 {
		t.Fatal("restart should start from an empty graph")
	}

	c.Reset()
	c.Start(ModeBackground, 0, "", 10)
	c.Restart(20)
	if c.Session().Bounded() || c.Session().StartTick != 21 {
		t.Fatalf("restarted background session should stay unbounded: %+v", c.Session())
	}
}

func TestReset(t *testing.T) {
	c := NewController(zerolog.Nop())
	c.Reset()
	c.Start(ModeEmail, 0, "", 1)
	c.Reset()
	if c.Session() != nil || c.State(2) != StateInactive {
		t.Fatal("reset should discard the session")
	}
	c.Record("A", 1, 0, 0, "")
}

func TestElapsedTicks(t *testing.T) {
	s := &Session{StartTick: 101, EndTick: 103}
	tests := []struct {
		tick int64
		want int64
	}{
		{100, 0},
		{101, 1},
		{103, 3},
		{110, 3},
	}
	for _, tt := range tests {
		if got := s.ElapsedTicks(tt.tick); got != tt.want {
			t.Errorf("tick %d: expected %d, got %d", tt.tick, tt.want, got)
		}
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"stream":     ModeStream,
		"profile":    ModeSnapshot,
		"snapshot":   ModeSnapshot,
		"email":      ModeEmail,
		"background": ModeBackground,
	} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("%s: expected %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := ParseMode("callgrind"); err == nil {
		t.Error("expected an error for an unknown mode")
	}
}

func TestLoadInitializesGraph(t *testing.T) {
	c := NewController(zerolog.Nop())
	c.Load(&Session{Mode: ModeStream, StartTick: 1, EndTick: 2})
	c.Record("A", 1, 0, 0, "")
	if c.Session().Graph.Len() != 1 {
		t.Fatal("loaded sessions without a graph should get one")
	}
}

func TestBoundedSessionEndingAtTickZero(t *testing.T) {
	c := NewController(zerolog.Nop())
	s := c.Start(ModeSnapshot, 1, "", -1)
	if !s.Bounded() || s.EndTick != 0 {
		t.Fatalf("expected a session bounded at tick 0, got %+v", s)
	}
	if got := c.EndSlice(0, 1, 0, 0); got != ChannelLog {
		t.Fatalf("expected the final slice to report, got %v", got)
	}
	if state := c.Advance(1); state != StateInactive {
		t.Fatalf("expected the session to end after tick 0, got %v", state)
	}
}
