// Package notify delivers record-created notifications to the side-channel
// webhook, either directly or buffered through a Kafka topic.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jmehdipour/mail-relay/internal/model"
	"github.com/jmehdipour/mail-relay/internal/util"
)

type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Noop is used when no webhook is configured.
type Noop struct{}

func (Noop) Notify(context.Context, model.Notification) error { return nil }

type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{url: url, client: &http.Client{Timeout: timeout}}
}

// Notify posts n once. Non-2xx responses are returned as errors and not retried.
func (w *Webhook) Notify(ctx context.Context, n model.Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification webhook: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return fmt.Errorf("notification webhook: status=%d", res.StatusCode)
	}
	return nil
}

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// Outbox hands notifications to a topic; the notifier worker delivers them.
type Outbox struct {
	pub Publisher
}

func NewOutbox(pub Publisher) *Outbox { return &Outbox{pub: pub} }

func (o *Outbox) Notify(ctx context.Context, n model.Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := o.pub.Publish(ctx, []byte(util.New()), b); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
