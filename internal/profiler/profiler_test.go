package profiler

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gocloud.dev/blob/memblob"

	"github.com/getsentry/tickprof/internal/billing"
	"github.com/getsentry/tickprof/internal/callgraph"
	"github.com/getsentry/tickprof/internal/clock"
	"github.com/getsentry/tickprof/internal/errorutil"
	"github.com/getsentry/tickprof/internal/instrument"
	"github.com/getsentry/tickprof/internal/session"
	"github.com/getsentry/tickprof/internal/storageprovider"
	"github.com/getsentry/tickprof/internal/testutil"
)

// recorder collects the reports sent to it.
type recorder struct {
	reports []string
	err     error
}

func (r *recorder) Notify(_ context.Context, text string) error {
	r.reports = append(r.reports, text)
	return r.err
}

type workload struct {
	move *instrument.Wrapped
	a    *instrument.Wrapped
}

// newWorkload wraps A, which costs 1 and calls the billable Creep.move once,
// which costs 0.5 and succeeds.
func newWorkload(t *testing.T, p *Profiler, c *clock.Manual) workload {
	t.Helper()
	move, err := p.Wrap("Creep.move", instrument.Func(func(instrument.Invocation) (interface{}, error) {
		c.Spend(0.5)
		return billing.OK, nil
	}))
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	a, err := p.Wrap("A", instrument.Func(func(instrument.Invocation) (interface{}, error) {
		c.Spend(1)
		return move.Call(nil)
	}))
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	return workload{move: move, a: a}
}

// slice spends 0.25 outside of any wrapped function.
func (w workload) slice(c *clock.Manual) func(context.Context) error {
	return func(context.Context) error {
		c.Spend(0.25)
		_, err := w.a.Call(nil)
		return err
	}
}

func newTestProfiler(c *clock.Manual, opts ...Option) (*Profiler, *recorder) {
	out := &recorder{}
	opts = append([]Option{
		WithLogger(zerolog.Nop()),
		WithOutput(out),
		WithActions(billing.NewActions("Creep.move")),
	}, opts...)
	return New(c, opts...), out
}

func TestSnapshotSession(t *testing.T) {
	ctx := context.Background()
	c := clock.NewManual(100)
	p, out := newTestProfiler(c)
	w := newWorkload(t, p, c)
	p.Enable()

	s := p.StartSnapshot(3, "")
	if s.StartTick != 101 || s.EndTick != 103 {
		t.Fatalf("expected ticks 101-103, got %d-%d", s.StartTick, s.EndTick)
	}
	if p.State() != session.StateArmed {
		t.Fatalf("expected armed, got %v", p.State())
	}

	for tick := int64(100); tick <= 104; tick++ {
		c.SetTick(tick)
		if err := p.RunSlice(ctx, w.slice(c)); err != nil {
			t.Fatalf("error: %v", err)
		}
		switch {
		case tick == 100:
			if s.Graph.Len() != 0 {
				t.Fatal("the requesting slice must not be recorded")
			}
		case tick < 103:
			if len(out.reports) != 0 {
				t.Fatalf("unexpected report at tick %d", tick)
			}
		case tick == 103:
			if s.TotalSuccesses != 3 || s.TotalFailures != 0 {
				t.Fatalf("expected 3 successes, got %d/%d", s.TotalSuccesses, s.TotalFailures)
			}
		}
	}

	want := []string{strings.Join([]string{
		"calls\t\ttime\t\tavg\t\tfunction",
		"3\t\t4.5\t\t1.500\t\tA",
		"3\t\t1.5\t\t0.500\t\tCreep.move",
		"0\t\t0.0\t\t0.000\t\t(tick)",
		"Avg: 1.75\tTotal: 5.25\tTicks: 3",
	}, "\n")}
	if diff := testutil.Diff(out.reports, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
	if p.Session() != nil || p.State() != session.StateInactive {
		t.Fatal("the session should be gone after its last slice")
	}
	if got := p.RenderTable(0); got != errorutil.NotActive {
		t.Fatalf("expected %q, got %q", errorutil.NotActive, got)
	}
}

func TestReportingChannels(t *testing.T) {
	tests := []struct {
		name        string
		start       func(p *Profiler)
		notifier    bool
		wantOutput  int
		wantNotices int
	}{
		{
			name:       "stream reports every slice",
			start:      func(p *Profiler) { p.StartStream(3, "") },
			wantOutput: 3,
		},
		{
			name:        "email goes to the notifier",
			start:       func(p *Profiler) { p.StartEmail(2, "") },
			notifier:    true,
			wantNotices: 1,
		},
		{
			name:       "email falls back to the output",
			start:      func(p *Profiler) { p.StartEmail(2, "") },
			wantOutput: 1,
		},
		{
			name:  "background never reports",
			start: func(p *Profiler) { p.StartBackground("") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := clock.NewManual(10)
			notices := &recorder{}
			var opts []Option
			if tt.notifier {
				opts = append(opts, WithNotifier(notices))
			}
			p, out := newTestProfiler(c, opts...)
			w := newWorkload(t, p, c)
			p.Enable()
			tt.start(p)
			for i := 0; i < 6; i++ {
				c.Next()
				if err := p.RunSlice(context.Background(), w.slice(c)); err != nil {
					t.Fatalf("error: %v", err)
				}
			}
			if len(out.reports) != tt.wantOutput {
				t.Fatalf("expected %d output reports, got %d", tt.wantOutput, len(out.reports))
			}
			if len(notices.reports) != tt.wantNotices {
				t.Fatalf("expected %d notifications, got %d", tt.wantNotices, len(notices.reports))
			}
		})
	}
}

func TestDisabledProfilerIsTransparent(t *testing.T) {
	c := clock.NewManual(1)
	p, out := newTestProfiler(c)
	w := newWorkload(t, p, c)
	s := p.StartStream(5, "")

	for i := 0; i < 3; i++ {
		c.Next()
		if err := p.RunSlice(context.Background(), w.slice(c)); err != nil {
			t.Fatalf("error: %v", err)
		}
	}
	if s.Graph.Len() != 0 || s.TotalTime != 0 || len(out.reports) != 0 {
		t.Fatal("a disabled profiler should not record or report")
	}
	if r, err := w.move.Call(nil); err != nil || r != billing.OK {
		t.Fatalf("calls should pass through, got %v, %v", r, err)
	}

	p.Enable()
	c.Next()
	if err := p.RunSlice(context.Background(), w.slice(c)); err != nil {
		t.Fatalf("error: %v", err)
	}
	if n, ok := s.Graph.Node("A"); !ok || n.Calls != 1 {
		t.Fatal("recording should start once enabled")
	}
}

func TestRestart(t *testing.T) {
	c := clock.NewManual(100)
	p, _ := newTestProfiler(c)
	p.Enable()

	if p.Restart() {
		t.Fatal("restart needs an active session")
	}
	p.StartStream(5, "A")
	if p.Restart() {
		t.Fatal("restart needs an active session, not an armed one")
	}
	c.SetTick(102)
	if !p.Restart() {
		t.Fatal("expected the active session to restart")
	}
	s := p.Session()
	want := &session.Session{Mode: session.ModeStream, StartTick: 103, EndTick: 107, Filter: "A"}
	if diff := testutil.Diff(s, want, ignoreGraph); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}

	p.Reset()
	if p.Session() != nil || p.State() != session.StateInactive {
		t.Fatal("reset should discard the session")
	}
}

func TestFilterScopesRecording(t *testing.T) {
	c := clock.NewManual(1)
	p, _ := newTestProfiler(c)
	p.Enable()

	cfn, err := p.Wrap("C", instrument.Func(func(instrument.Invocation) (interface{}, error) {
		c.Spend(1)
		return nil, nil
	}))
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	b, err := p.Wrap("B", instrument.Func(func(instrument.Invocation) (interface{}, error) {
		return cfn.Call(nil)
	}))
	if err != nil {
		t.Fatalf("error: %v", err)
	}

	s := p.StartBackground("B")
	c.Next()
	err = p.RunSlice(context.Background(), func(context.Context) error {
		if _, err := cfn.Call(nil); err != nil {
			return err
		}
		_, err := b.Call(nil)
		return err
	})
	if err != nil {
		t.Fatalf("error: %v", err)
	}

	n, ok := s.Graph.Node("C")
	if !ok || n.Calls != 1 {
		t.Fatalf("expected only the call under B to be recorded, got %+v", n)
	}
	if b, _ := s.Graph.Node("B"); b == nil {
		t.Fatal("B should be recorded")
	} else if e, ok := b.Edge("C"); !ok || e.Calls != 1 {
		t.Fatal("C should be recorded with caller B")
	}
	if root, ok := s.Graph.Node(callgraph.SliceNode); ok {
		if _, ok := root.Edge("C"); ok {
			t.Fatal("C outside of B must not be recorded")
		}
	}
}

func TestFilteredCallgrindHasNoNegativeCost(t *testing.T) {
	c := clock.NewManual(100)
	p, _ := newTestProfiler(c)
	p.Enable()

	b, err := p.Wrap("B", instrument.Func(func(instrument.Invocation) (interface{}, error) {
		c.Spend(2)
		return nil, nil
	}))
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	a, err := p.Wrap("A", instrument.Func(func(instrument.Invocation) (interface{}, error) {
		c.Spend(1)
		return b.Call(nil)
	}))
	if err != nil {
		t.Fatalf("error: %v", err)
	}

	p.StartBackground("B")
	c.Next()
	if err := p.RunSlice(context.Background(), func(context.Context) error {
		_, err := a.Call(nil)
		return err
	}); err != nil {
		t.Fatalf("error: %v", err)
	}

	if n, ok := p.Session().Graph.Node("A"); !ok || n.ExclusiveTime() != 0 {
		t.Fatalf("expected A as a caller with no self time, got %+v", n)
	}
	got := p.RenderCallgrind()
	if !strings.Contains(got, "fn=A\n1 0 0 0 0\n") {
		t.Fatalf("expected A with no self cost:\n%s", got)
	}
	if strings.Contains(got, " -") {
		t.Fatalf("negative cost in:\n%s", got)
	}
}

func TestRunSliceErrors(t *testing.T) {
	var logs bytes.Buffer
	c := clock.NewManual(1)
	p, out := newTestProfiler(c,
		WithLogger(zerolog.New(&logs)),
		WithStore(failingStore{}),
	)
	out.err = errors.New("log sink closed")
	p.Enable()
	p.StartStream(2, "")
	c.Next()

	errBody := errors.New("out of cpu")
	if err := p.RunSlice(context.Background(), func(context.Context) error { return errBody }); !errors.Is(err, errBody) {
		t.Fatalf("expected the body error, got %v", err)
	}
	if len(out.reports) != 1 {
		t.Fatal("the report should be sent even when the body fails")
	}
	for _, msg := range []string{"couldn't deliver the report", "couldn't persist the session"} {
		if !strings.Contains(logs.String(), msg) {
			t.Fatalf("expected %q in the logs, got %s", msg, logs.String())
		}
	}
}

type failingStore struct{}

var errStore = errors.New("store unavailable")

func (failingStore) Load(context.Context) (*session.Session, error) { return nil, errStore }
func (failingStore) Save(context.Context, *session.Session) error  { return errStore }
func (failingStore) Delete(context.Context) error                  { return errStore }

type countingStore struct {
	saves, deletes int
}

func (s *countingStore) Load(context.Context) (*session.Session, error) {
	return nil, errorutil.ErrNotFound
}

func (s *countingStore) Save(context.Context, *session.Session) error {
	s.saves++
	return nil
}

func (s *countingStore) Delete(context.Context) error {
	s.deletes++
	return nil
}

func TestIdleSlicesDoNotTouchTheStore(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name        string
		restore     bool
		wantDeletes int
	}{
		{name: "restored empty store", restore: true, wantDeletes: 1},
		{name: "unknown store", restore: false, wantDeletes: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &countingStore{}
			c := clock.NewManual(1)
			p, _ := newTestProfiler(c, WithStore(store))
			p.Enable()
			if tt.restore {
				if err := p.Restore(ctx); err != nil {
					t.Fatalf("error: %v", err)
				}
			}
			body := func(context.Context) error { return nil }

			for i := 0; i < 3; i++ {
				c.Next()
				if err := p.RunSlice(ctx, body); err != nil {
					t.Fatalf("error: %v", err)
				}
			}

			p.StartStream(1, "")
			for i := 0; i < 4; i++ {
				c.Next()
				if err := p.RunSlice(ctx, body); err != nil {
					t.Fatalf("error: %v", err)
				}
			}

			if store.saves != 1 {
				t.Fatalf("expected 1 save, got %d", store.saves)
			}
			if store.deletes != tt.wantDeletes {
				t.Fatalf("expected %d deletes, got %d", tt.wantDeletes, store.deletes)
			}
		})
	}
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()
	store := storageprovider.NewBlob(bucket, "shard0")

	c := clock.NewManual(100)
	p, _ := newTestProfiler(c, WithStore(store))
	w := newWorkload(t, p, c)
	p.Enable()
	p.StartSnapshot(2, "")
	for tick := int64(100); tick <= 101; tick++ {
		c.SetTick(tick)
		if err := p.RunSlice(ctx, w.slice(c)); err != nil {
			t.Fatalf("error: %v", err)
		}
	}

	// a new process picks up where the previous one left off
	restored, out := newTestProfiler(c, WithStore(store))
	w = newWorkload(t, restored, c)
	restored.Enable()
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("error: %v", err)
	}
	if s := restored.Session(); s == nil || s.TotalTime != 1.75 || s.EndTick != 102 {
		t.Fatalf("unexpected restored session %+v", s)
	}
	for tick := int64(102); tick <= 103; tick++ {
		c.SetTick(tick)
		if err := restored.RunSlice(ctx, w.slice(c)); err != nil {
			t.Fatalf("error: %v", err)
		}
	}
	if len(out.reports) != 1 || !strings.HasSuffix(out.reports[0], "Avg: 1.75\tTotal: 3.50\tTicks: 2") {
		t.Fatalf("unexpected reports %q", out.reports)
	}
	if _, err := store.Load(ctx); !errors.Is(err, errorutil.ErrNotFound) {
		t.Fatalf("the ended session should be removed from the store, got %v", err)
	}
	if err := restored.Restore(ctx); err != nil || restored.Session() != nil {
		t.Fatalf("restoring nothing should leave no session: %v", err)
	}
}

func TestRestoreError(t *testing.T) {
	p, _ := newTestProfiler(clock.NewManual(1), WithStore(failingStore{}))
	if err := p.Restore(context.Background()); !errors.Is(err, errStore) {
		t.Fatalf("expected the store error, got %v", err)
	}
}

func TestReports(t *testing.T) {
	c := clock.NewManual(1)
	p, _ := newTestProfiler(c)
	w := newWorkload(t, p, c)
	p.Enable()

	if got := p.RenderCallgrind(); got != errorutil.NotActive {
		t.Fatalf("expected %q, got %q", errorutil.NotActive, got)
	}
	if _, err := p.RenderPprof(); !errors.Is(err, errorutil.ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
	if p.Metrics() != nil || p.Snapshot().Active {
		t.Fatal("no metrics without a session")
	}

	p.StartBackground("")
	c.Next()
	if err := p.RunSlice(context.Background(), w.slice(c)); err != nil {
		t.Fatalf("error: %v", err)
	}
	if got := p.RenderCallgrind(); !strings.Contains(got, "fn=A\n") {
		t.Fatalf("expected A in the callgrind dump:\n%s", got)
	}
	prof, err := p.RenderPprof()
	if err != nil || len(prof.Sample) == 0 {
		t.Fatalf("expected samples, got %v", err)
	}
	snap := p.Snapshot()
	if !snap.Active || snap.Ticks != 1 || snap.Successes != 1 || len(snap.Functions) != 3 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestRegistryRecordsThroughTheProfiler(t *testing.T) {
	c := clock.NewManual(1)
	p, _ := newTestProfiler(c)
	p.Enable()

	target := &instrument.Target{
		Label: "Creep",
		Methods: []instrument.Method{
			{Name: "move", Fn: instrument.Func(func(instrument.Invocation) (interface{}, error) {
				c.Spend(0.2)
				return -4, nil
			})},
		},
	}
	if err := p.Registry().RegisterTarget(target); err != nil {
		t.Fatalf("error: %v", err)
	}
	s := p.StartBackground("")
	c.Next()
	err := p.RunSlice(context.Background(), func(context.Context) error {
		_, err := target.Methods[0].Fn.Invoke(instrument.Invocation{})
		return err
	})
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	n, ok := s.Graph.Node("Creep.move")
	if !ok || n.Calls != 1 || n.Failures != 1 || s.TotalFailures != 1 {
		t.Fatalf("expected one failed Creep.move, got %+v", n)
	}

	p.Actions().Remove("Creep.move")
	c.Next()
	_ = p.RunSlice(context.Background(), func(context.Context) error {
		_, err := target.Methods[0].Fn.Invoke(instrument.Invocation{})
		return err
	})
	if n.Calls != 2 || n.Failures != 1 {
		t.Fatal("removed actions should no longer be classified")
	}
}
