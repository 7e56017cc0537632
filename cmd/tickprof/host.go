package main

import (
	"context"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/tickprof/internal/clock"
	"github.com/getsentry/tickprof/internal/logutil"
	"github.com/getsentry/tickprof/internal/metrics"
	"github.com/getsentry/tickprof/internal/profiler"
)

// host runs the slices. Every access to the profiler goes through mu so
// console commands land between slices, never inside one.
type host struct {
	mu       sync.Mutex
	slices   *clock.Slices
	profiler *profiler.Profiler
	world    *world
	logger   zerolog.Logger
}

func newHost(slices *clock.Slices, p *profiler.Profiler, w *world) *host {
	return &host{
		slices:   slices,
		profiler: p,
		world:    w,
		logger:   log.Logger.Sample(&logutil.LevelSampler{Level: zerolog.InfoLevel, Every: 60}),
	}
}

// do runs fn with exclusive access to the profiler.
func (h *host) do(fn func(p *profiler.Profiler)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.profiler)
}

func (h *host) runSlice(ctx context.Context) error {
	var err error
	h.do(func(p *profiler.Profiler) {
		tick := h.slices.Begin()
		start := time.Now()
		err = p.RunSlice(ctx, h.world.run)
		h.logger.Debug().
			Int64("tick", tick).
			Float64("cpu_used", h.slices.Used()).
			Dur("duration", time.Since(start)).
			Str("profiler_state", p.State().String()).
			Msg("slice done")
	})
	return err
}

// run executes a slice on every interval until ctx is done.
func (h *host) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.runSlice(ctx); err != nil {
				sentry.CaptureException(err)
				log.Err(err).Int64("tick", h.slices.Tick()).Msg("slice failed")
			}
		}
	}
}

func (h *host) snapshot() metrics.Snapshot {
	var s metrics.Snapshot
	h.do(func(p *profiler.Profiler) {
		s = p.Snapshot()
	})
	return s
}

// startTick derives the first tick from the wall clock so the tick sequence
// keeps increasing across restarts and a persisted session stays valid.
func startTick(now time.Time, interval time.Duration) int64 {
	if interval <= 0 {
		return 0
	}
	return now.UnixNano() / int64(interval)
}
