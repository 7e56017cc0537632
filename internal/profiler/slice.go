package profiler

import (
	"context"

	"github.com/getsentry/tickprof/internal/notify"
	"github.com/getsentry/tickprof/internal/report"
	"github.com/getsentry/tickprof/internal/session"
)

// RunSlice runs body as the slice at the clock's current tick.
//
// The session moves to its state for the tick before body runs. Once body
// returns, the CPU used by the whole slice and the action outcomes are added
// to an active session, the mode's report is sent and the session is
// persisted. Persistence and notification failures are logged, not returned:
// the error is body's.
func (p *Profiler) RunSlice(ctx context.Context, body func(context.Context) error) error {
	tick := p.clock.Tick()
	p.tracker.Reset()
	p.controller.Advance(tick)

	if !p.enabled {
		return body(ctx)
	}

	err := body(ctx)

	successes, failures := p.tracker.Outcomes()
	channel := p.controller.EndSlice(tick, p.clock.Used(), successes, failures)
	p.report(notify.WithTick(ctx, tick), channel, tick)

	if ferr := p.Flush(ctx); ferr != nil {
		p.logger.Error().Err(ferr).Int64("tick", tick).Msg("profiler: couldn't persist the session")
	}
	return err
}

func (p *Profiler) report(ctx context.Context, channel session.Channel, tick int64) {
	var n notify.Notifier
	switch channel {
	case session.ChannelLog:
		n = p.output
	case session.ChannelNotify:
		n = p.notifier
		if n == nil {
			p.logger.Warn().Msg("profiler: no notifier configured, sending the report to the output")
			n = p.output
		}
	default:
		return
	}
	text := report.Table(p.controller.Session(), tick, p.budget)
	if err := n.Notify(ctx, text); err != nil {
		p.logger.Error().Err(err).Int64("tick", tick).Msg("profiler: couldn't deliver the report")
	}
}
