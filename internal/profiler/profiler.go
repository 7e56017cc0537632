// Package profiler ties the instrumentation, the session state machine, the
// reports and the persistence together behind the surface a host uses.
//
// A Profiler is not safe for concurrent use. The host runs slices one at a
// time and must serialize any other call with them.
package profiler

import (
	"context"
	"errors"

	"github.com/google/pprof/profile"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/tickprof/internal/billing"
	"github.com/getsentry/tickprof/internal/clock"
	"github.com/getsentry/tickprof/internal/errorutil"
	"github.com/getsentry/tickprof/internal/instrument"
	"github.com/getsentry/tickprof/internal/metrics"
	"github.com/getsentry/tickprof/internal/notify"
	"github.com/getsentry/tickprof/internal/report"
	"github.com/getsentry/tickprof/internal/session"
)

type Profiler struct {
	clock    clock.Clock
	logger   zerolog.Logger
	store    session.Store
	output   notify.Notifier
	notifier notify.Notifier
	budget   int

	actions   *billing.Actions
	classify  billing.Classifier
	blacklist []string

	enabled    bool
	// stored is false once the store is known to hold no session.
	stored     bool
	controller *session.Controller
	tracker    *instrument.Tracker
	registry   *instrument.Registry
}

type Option func(*Profiler)

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Profiler) { p.logger = logger }
}

// WithStore persists the session between slices.
func WithStore(store session.Store) Option {
	return func(p *Profiler) { p.store = store }
}

// WithOutput sets where stream and snapshot reports go. The default is the
// logger.
func WithOutput(n notify.Notifier) Option {
	return func(p *Profiler) { p.output = n }
}

// WithNotifier sets where email reports go. Without one they go to the
// output.
func WithNotifier(n notify.Notifier) Option {
	return func(p *Profiler) { p.notifier = n }
}

// WithActions replaces the default set of billable actions.
func WithActions(a *billing.Actions) Option {
	return func(p *Profiler) { p.actions = a }
}

func WithClassifier(c billing.Classifier) Option {
	return func(p *Profiler) { p.classify = c }
}

// WithBlacklist replaces the member names the registry never wraps.
func WithBlacklist(names ...string) Option {
	return func(p *Profiler) { p.blacklist = names }
}

// WithBudget sets the size of automatic table reports.
func WithBudget(maxChars int) Option {
	return func(p *Profiler) { p.budget = maxChars }
}

// New returns a disabled profiler measuring with c.
func New(c clock.Clock, opts ...Option) *Profiler {
	p := &Profiler{
		clock:    c,
		logger:   log.Logger,
		budget:   report.DefaultBudget,
		classify: billing.DefaultClassifier,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.actions == nil {
		p.actions = billing.Default()
	}
	if p.output == nil {
		p.output = notify.NewLogger(p.logger)
	}
	p.stored = true
	p.controller = session.NewController(p.logger)
	p.tracker = instrument.NewTracker(c, p, p.actions, p.classify)
	p.registry = instrument.NewRegistry(p.tracker, p.logger, p.blacklist...)
	return p
}

// Wrap returns a callable measuring fn under name.
func (p *Profiler) Wrap(name string, fn instrument.Callable) (*instrument.Wrapped, error) {
	return p.tracker.Wrap(name, fn)
}

func (p *Profiler) Registry() *instrument.Registry {
	return p.registry
}

// Actions returns the live set of billable actions, which can be edited
// between slices.
func (p *Profiler) Actions() *billing.Actions {
	return p.actions
}

func (p *Profiler) Enable() {
	p.enabled = true
}

// Disable stops all recording. The session, if any, is kept.
func (p *Profiler) Disable() {
	p.enabled = false
}

func (p *Profiler) Enabled() bool {
	return p.enabled
}

// Recording implements instrument.Sink.
func (p *Profiler) Recording() (string, bool) {
	if !p.enabled {
		return "", false
	}
	return p.controller.Recording(p.clock.Tick())
}

// Record implements instrument.Sink.
func (p *Profiler) Record(name string, elapsed float64, successes, failures int64, caller string) {
	p.controller.Record(name, elapsed, successes, failures, caller)
}

// StartStream records the next duration slices and reports each of them.
// A duration of 0 selects the default.
func (p *Profiler) StartStream(duration int64, filter string) *session.Session {
	return p.start(session.ModeStream, duration, filter)
}

// StartSnapshot records the next duration slices and reports once at the
// end.
func (p *Profiler) StartSnapshot(duration int64, filter string) *session.Session {
	return p.start(session.ModeSnapshot, duration, filter)
}

// StartEmail is StartSnapshot with the report sent to the notifier.
func (p *Profiler) StartEmail(duration int64, filter string) *session.Session {
	return p.start(session.ModeEmail, duration, filter)
}

// StartBackground records until Reset without reporting.
func (p *Profiler) StartBackground(filter string) *session.Session {
	return p.start(session.ModeBackground, session.NoEndTick, filter)
}

// Start dispatches on mode, for hosts taking the mode as input.
func (p *Profiler) Start(mode session.Mode, duration int64, filter string) *session.Session {
	return p.start(mode, duration, filter)
}

func (p *Profiler) start(mode session.Mode, duration int64, filter string) *session.Session {
	return p.controller.Start(mode, duration, filter, p.clock.Tick())
}

// Restart re-arms the active session. It reports false when nothing is
// active.
func (p *Profiler) Restart() bool {
	return p.controller.Restart(p.clock.Tick())
}

func (p *Profiler) Reset() {
	p.controller.Reset()
}

// Session returns the live session or nil.
func (p *Profiler) Session() *session.Session {
	return p.controller.Session()
}

// Tick returns the clock's current slice.
func (p *Profiler) Tick() int64 {
	return p.clock.Tick()
}

func (p *Profiler) State() session.State {
	return p.controller.State(p.clock.Tick())
}

// RenderTable renders the live session as a table of at most maxChars
// characters, or report.DefaultBudget when maxChars is 0.
func (p *Profiler) RenderTable(maxChars int) string {
	return report.Table(p.controller.Session(), p.clock.Tick(), maxChars)
}

func (p *Profiler) RenderCallgrind() string {
	return report.Callgrind(p.controller.Session(), p.clock.Tick())
}

func (p *Profiler) RenderPprof() (*profile.Profile, error) {
	return report.Pprof(p.controller.Session(), p.clock.Tick())
}

// Metrics returns one row per function of the live session.
func (p *Profiler) Metrics() []metrics.FunctionMetrics {
	s := p.controller.Session()
	if s == nil {
		return nil
	}
	return metrics.FromGraph(s.Graph)
}

// Snapshot summarizes the live session for metrics.Collector.
func (p *Profiler) Snapshot() metrics.Snapshot {
	tick := p.clock.Tick()
	s := p.controller.Session()
	if s == nil {
		return metrics.Snapshot{}
	}
	return metrics.Snapshot{
		Active:    p.enabled && s.State(tick) == session.StateActive,
		Ticks:     s.ElapsedTicks(tick),
		TotalTime: s.TotalTime,
		Successes: s.TotalSuccesses,
		Failures:  s.TotalFailures,
		Functions: metrics.FromGraph(s.Graph),
	}
}

// Restore loads the persisted session, if any. It is meant to run once
// before the first slice.
func (p *Profiler) Restore(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	s, err := p.store.Load(ctx)
	if err != nil {
		if errors.Is(err, errorutil.ErrNotFound) {
			p.controller.Load(nil)
			p.stored = false
			return nil
		}
		return err
	}
	p.controller.Load(s)
	p.stored = true
	p.logger.Debug().
		Str("mode", string(s.Mode)).
		Int64("start_tick", s.StartTick).
		Int64("end_tick", s.EndTick).
		Msg("profiler session restored")
	return nil
}

// Flush persists the live session, or removes the persisted one when there
// is none. Once the store is known to be empty, flushing without a session
// does not touch it.
func (p *Profiler) Flush(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	s := p.controller.Session()
	if s == nil {
		if !p.stored {
			return nil
		}
		if err := p.store.Delete(ctx); err != nil {
			return err
		}
		p.stored = false
		return nil
	}
	// A failed save may still have left an object behind.
	p.stored = true
	return p.store.Save(ctx, s)
}
