// Package notify delivers profiler reports outside of the process.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notifier sends a report somewhere a human will read it.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Message is the payload sent by the kafka and webhook channels.
type Message struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Tick      int64     `json:"tick,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func newMessage(source, text string) Message {
	return Message{
		ID:        uuid.New().String(),
		Source:    source,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

type tickKey struct{}

// WithTick attaches the slice a report was produced in to ctx.
func WithTick(ctx context.Context, tick int64) context.Context {
	return context.WithValue(ctx, tickKey{}, tick)
}

func tickFrom(ctx context.Context) int64 {
	tick, _ := ctx.Value(tickKey{}).(int64)
	return tick
}

// Logger writes reports to a zerolog logger at info level.
type Logger struct {
	logger zerolog.Logger
}

func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) Notify(ctx context.Context, text string) error {
	l.logger.Info().Int64("tick", tickFrom(ctx)).Msg(text)
	return nil
}

// Writer writes each report followed by a newline.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Notify(_ context.Context, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintln(w.w, text)
	return err
}

// Multi sends a report to every notifier and returns the first error.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, text string) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, text); err != nil && first == nil {
			first = err
		}
	}
	return first
}
