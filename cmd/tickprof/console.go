package main

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/CAFxX/httpcompression"
	"github.com/getsentry/sentry-go"
	jsoniter "github.com/json-iterator/go"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/getsentry/tickprof/internal/errorutil"
	"github.com/getsentry/tickprof/internal/httputil"
	"github.com/getsentry/tickprof/internal/metrics"
	"github.com/getsentry/tickprof/internal/profiler"
	"github.com/getsentry/tickprof/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	// StartRequest is the optional body of a start command. Query parameters
	// take precedence.
	StartRequest struct {
		Duration int64  `json:"duration"`
		Filter   string `json:"filter"`
	}

	SessionStatus struct {
		Mode           session.Mode `json:"mode"`
		StartTick      int64        `json:"start_tick"`
		EndTick        int64        `json:"end_tick,omitempty"`
		Filter         string       `json:"filter,omitempty"`
		TotalTime      float64      `json:"total_time"`
		TotalSuccesses int64        `json:"total_successes"`
		TotalFailures  int64        `json:"total_failures"`
		Functions      int          `json:"functions"`
	}

	Status struct {
		Enabled bool           `json:"enabled"`
		State   string         `json:"state"`
		Tick    int64          `json:"tick"`
		Session *SessionStatus `json:"session,omitempty"`
	}
)

func (h *host) newRouter() (*httprouter.Router, error) {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	if err := registry.Register(metrics.NewCollector(h.snapshot)); err != nil {
		return nil, err
	}

	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodPost, "/profiler/stream", h.postStart(session.ModeStream)},
		{http.MethodPost, "/profiler/snapshot", h.postStart(session.ModeSnapshot)},
		{http.MethodPost, "/profiler/email", h.postStart(session.ModeEmail)},
		{http.MethodPost, "/profiler/background", h.postStart(session.ModeBackground)},
		{http.MethodPost, "/profiler/restart", h.postRestart},
		{http.MethodPost, "/profiler/reset", h.postReset},
		{http.MethodPost, "/profiler/enable", h.postEnable},
		{http.MethodPost, "/profiler/disable", h.postDisable},
		{http.MethodGet, "/profiler/table", h.getTable},
		{http.MethodGet, "/profiler/callgrind", h.getCallgrind},
		{http.MethodGet, "/profiler/pprof", h.getPprof},
		{http.MethodGet, "/profiler/status", h.getStatus},
		{http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP},
		{http.MethodGet, "/health", h.getHealth},
	}

	router := httprouter.New()

	for _, route := range routes {
		handlerFunc := httputil.NameTransaction(route.path, route.handler)
		handlerFunc = httputil.DecompressPayload(handlerFunc)
		handler := compress(handlerFunc)

		router.Handler(route.method, route.path, handler)
	}

	return router, nil
}

func (h *host) getHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *host) postStart(mode session.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		logger := httputil.RequestLogger(r, "duration", "filter")

		var req StartRequest
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				http.Error(w, "invalid start request", http.StatusBadRequest)
				return
			}
			if req.Duration < 0 {
				http.Error(w, "expected duration to be a non-negative integer", http.StatusBadRequest)
				return
			}
		}
		duration, ok := httputil.GetIntQueryParameter(w, r, "duration", req.Duration)
		if !ok {
			return
		}
		filter := req.Filter
		if f := r.URL.Query().Get("filter"); f != "" {
			filter = f
		}

		var status Status
		h.do(func(p *profiler.Profiler) {
			p.Start(mode, duration, filter)
			status = newStatus(p)
		})
		if hub != nil {
			hub.Scope().SetTag("mode", string(mode))
		}
		logger.Info().Str("mode", string(mode)).Int64("start_tick", status.Session.StartTick).Msg("profiler session requested")
		writeJSON(w, http.StatusAccepted, status)
	}
}

func (h *host) postRestart(w http.ResponseWriter, r *http.Request) {
	var restarted bool
	var status Status
	h.do(func(p *profiler.Profiler) {
		restarted = p.Restart()
		status = newStatus(p)
	})
	if !restarted {
		http.Error(w, "no active profiling session", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusAccepted, status)
}

func (h *host) postReset(w http.ResponseWriter, r *http.Request) {
	h.command(w, func(p *profiler.Profiler) { p.Reset() })
}

func (h *host) postEnable(w http.ResponseWriter, r *http.Request) {
	h.command(w, func(p *profiler.Profiler) { p.Enable() })
}

func (h *host) postDisable(w http.ResponseWriter, r *http.Request) {
	h.command(w, func(p *profiler.Profiler) { p.Disable() })
}

func (h *host) command(w http.ResponseWriter, fn func(p *profiler.Profiler)) {
	var status Status
	h.do(func(p *profiler.Profiler) {
		fn(p)
		status = newStatus(p)
	})
	writeJSON(w, http.StatusOK, status)
}

func (h *host) getTable(w http.ResponseWriter, r *http.Request) {
	maxChars, ok := httputil.GetIntQueryParameter(w, r, "max_chars", 0)
	if !ok {
		return
	}
	var text string
	h.do(func(p *profiler.Profiler) {
		text = p.RenderTable(int(maxChars))
	})
	writeText(w, text)
}

func (h *host) getCallgrind(w http.ResponseWriter, r *http.Request) {
	var text string
	h.do(func(p *profiler.Profiler) {
		text = p.RenderCallgrind()
	})
	if text != errorutil.NotActive {
		w.Header().Set("Content-Disposition", `attachment; filename="callgrind.out.tickprof"`)
	}
	writeText(w, text)
}

func (h *host) getPprof(w http.ResponseWriter, r *http.Request) {
	hub := sentry.GetHubFromContext(r.Context())
	var b []byte
	var err error
	h.do(func(p *profiler.Profiler) {
		prof, perr := p.RenderPprof()
		if perr != nil {
			err = perr
			return
		}
		var buf bytes.Buffer
		err = prof.Write(&buf)
		b = buf.Bytes()
	})
	if errors.Is(err, errorutil.ErrNotActive) {
		http.Error(w, errorutil.NotActive, http.StatusNotFound)
		return
	}
	if err != nil {
		if hub != nil {
			hub.CaptureException(err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="profile"`)
	_, _ = w.Write(b)
}

func (h *host) getStatus(w http.ResponseWriter, r *http.Request) {
	var status Status
	h.do(func(p *profiler.Profiler) {
		status = newStatus(p)
	})
	writeJSON(w, http.StatusOK, status)
}

func newStatus(p *profiler.Profiler) Status {
	status := Status{
		Enabled: p.Enabled(),
		State:   p.State().String(),
		Tick:    p.Tick(),
	}
	if s := p.Session(); s != nil {
		status.Session = &SessionStatus{
			Mode:           s.Mode,
			StartTick:      s.StartTick,
			EndTick:        s.EndTick,
			Filter:         s.Filter,
			TotalTime:      s.TotalTime,
			TotalSuccesses: s.TotalSuccesses,
			TotalFailures:  s.TotalFailures,
			Functions:      s.Graph.Len(),
		}
	}
	return status
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, text)
}
