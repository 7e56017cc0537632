package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
)

// Webhook posts reports as JSON to a URL, retrying failed attempts.
type Webhook struct {
	url    string
	source string
	http   *httpclient.Client
}

type WebhookOption func(*webhookOptions)

type webhookOptions struct {
	timeout time.Duration
	retries int
	backoff time.Duration
}

func WithTimeout(d time.Duration) WebhookOption {
	return func(o *webhookOptions) { o.timeout = d }
}

// WithRetries sets how many times a failed request is retried and the
// constant delay between attempts.
func WithRetries(n int, backoff time.Duration) WebhookOption {
	return func(o *webhookOptions) {
		o.retries = n
		o.backoff = backoff
	}
}

func NewWebhook(url, source string, opts ...WebhookOption) (*Webhook, error) {
	if url == "" {
		return nil, fmt.Errorf("notify: webhook url must be set")
	}
	o := webhookOptions{
		timeout: 10 * time.Second,
		retries: 3,
		backoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	retrier := heimdall.NewRetrier(heimdall.NewConstantBackoff(o.backoff, o.backoff/10+1))
	return &Webhook{
		url:    url,
		source: source,
		http: httpclient.NewClient(
			httpclient.WithHTTPTimeout(o.timeout),
			httpclient.WithRetryCount(o.retries),
			httpclient.WithRetrier(retrier),
		),
	}, nil
}

func (w *Webhook) Notify(ctx context.Context, text string) error {
	m := newMessage(w.source, text)
	m.Tick = tickFrom(ctx)
	b, err := gojson.Marshal(m)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notify: webhook returned %s", resp.Status)
	}
	return nil
}
