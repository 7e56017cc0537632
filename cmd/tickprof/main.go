package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/getsentry/tickprof/internal/clock"
	"github.com/getsentry/tickprof/internal/httputil"
	"github.com/getsentry/tickprof/internal/logutil"
	"github.com/getsentry/tickprof/internal/notify"
	"github.com/getsentry/tickprof/internal/profiler"
	"github.com/getsentry/tickprof/internal/session"
	"github.com/getsentry/tickprof/internal/storageprovider"
)

type environment struct {
	config ServiceConfig

	host    *host
	store   session.Store
	closers []io.Closer
}

var release string

func newEnvironment(ctx context.Context, cfg ServiceConfig) (*environment, error) {
	e := environment{config: cfg}
	if e.config.StateKey == "" {
		e.config.StateKey = uuid.New().String()
	}

	meter, err := newMeter(cfg.Clock)
	if err != nil {
		return nil, err
	}
	slices := clock.NewSlices(meter, startTick(time.Now(), cfg.SliceInterval))

	e.store, err = e.openStore(ctx)
	if err != nil {
		return nil, err
	}
	notifier, err := e.newNotifier()
	if err != nil {
		return nil, err
	}

	p := profiler.New(slices,
		profiler.WithLogger(log.Logger),
		profiler.WithStore(e.store),
		profiler.WithNotifier(notifier),
		profiler.WithBudget(cfg.TableBudget),
	)

	w := newWorld(cfg.Creeps, cfg.Seed)
	if err := w.register(p.Registry()); err != nil {
		return nil, err
	}

	if err := p.Restore(ctx); err != nil {
		return nil, fmt.Errorf("couldn't restore the profiler session: %w", err)
	}
	p.Enable()
	if cfg.StartMode != "" && p.Session() == nil {
		mode, err := session.ParseMode(cfg.StartMode)
		if err != nil {
			return nil, err
		}
		p.Start(mode, cfg.StartDuration, cfg.StartFilter)
	}

	e.host = newHost(slices, p, w)
	return &e, nil
}

func newMeter(name string) (clock.Meter, error) {
	switch name {
	case "sim", "":
		return clock.NewWall(), nil
	case "process":
		return clock.NewProcess()
	default:
		return nil, fmt.Errorf("unknown clock %q", name)
	}
}

func (e *environment) openStore(ctx context.Context) (session.Store, error) {
	url := e.config.StateURL
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		store, err := storageprovider.NewRedisFromURL(url, e.config.StateKey)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, store)
		return store, nil
	}
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, bucket)
	return storageprovider.NewBlob(bucket, e.config.StateKey), nil
}

// newNotifier returns the channel email reports are sent to.
func (e *environment) newNotifier() (notify.Notifier, error) {
	switch e.config.Notifier {
	case "log", "":
		return notify.NewLogger(log.With().Str("channel", "notify").Logger()), nil
	case "kafka":
		w := notify.NewKafkaWriter(e.config.KafkaBrokers, e.config.KafkaTopic)
		e.closers = append(e.closers, w)
		return notify.NewKafka(w, e.config.StateKey), nil
	case "webhook":
		return notify.NewWebhook(e.config.WebhookURL, e.config.StateKey)
	default:
		return nil, fmt.Errorf("unknown notifier %q", e.config.Notifier)
	}
}

func (e *environment) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var err error
	e.host.do(func(p *profiler.Profiler) {
		err = p.Flush(ctx)
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Err(err).Msg("couldn't persist the profiler session")
	}
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			sentry.CaptureException(err)
		}
	}
	sentry.Flush(5 * time.Second)
}

func main() {
	logutil.ConfigureLogger()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error reading the configuration")
	}
	logutil.SetLevel(cfg.LogLevel)

	err = sentry.Init(sentry.ClientOptions{
		Dsn:                   cfg.SentryDSN,
		EnableTracing:         true,
		Environment:           cfg.Environment,
		Release:               release,
		TracesSampleRate:      1.0,
		BeforeSendTransaction: httputil.SetHTTPStatusCodeTag,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("can't initialize sentry")
	}

	ctx, stop := context.WithCancel(context.Background())
	env, err := newEnvironment(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("error setting up environment")
	}

	router, err := env.host.newRouter()
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("error setting up the router")
	}

	server := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: sentryhttp.New(sentryhttp.Options{}).Handle(router),
	}

	loopDone := make(chan struct{})
	go func() {
		env.host.run(ctx, cfg.SliceInterval)
		close(loopDone)
	}()

	waitForShutdown := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(cctx); err != nil {
			sentry.CaptureException(err)
			log.Err(err).Msg("error shutting down server")
		}

		close(waitForShutdown)
	}()

	log.Info().
		Str("port", cfg.Port).
		Str("state_key", env.config.StateKey).
		Dur("slice_interval", cfg.SliceInterval).
		Msg("tickprof host started")

	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		sentry.CaptureException(err)
		log.Err(err).Msg("server failed")
	}

	<-waitForShutdown
	stop()
	<-loopDone

	// Shutdown the rest of the environment after the slice loop stopped
	env.shutdown()
}
