package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/mail-relay/internal/kafka"
	"github.com/jmehdipour/mail-relay/internal/metrics"
	"github.com/jmehdipour/mail-relay/internal/model"
	"github.com/jmehdipour/mail-relay/internal/notify"
)

// Source is satisfied by kafka.Consumer.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// NotifierKafka drains the notification topic into the webhook.
type NotifierKafka struct {
	Source  Source
	Sink    notify.Notifier
	Log     *zap.Logger
	Workers int
}

func NewNotifierKafka(src Source, sink notify.Notifier, log *zap.Logger) *NotifierKafka {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotifierKafka{Source: src, Sink: sink, Log: log, Workers: 4}
}

// Run blocks until ctx is cancelled and all processors have returned.
func (w *NotifierKafka) Run(ctx context.Context) error {
	if w.Workers <= 0 {
		w.Workers = 4
	}

	msgCh := make(chan kafka.Message, w.Workers*2)

	go func() {
		defer close(msgCh)
		for {
			m, err := w.Source.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.Log.Warn("kafka fetch failed", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(200 * time.Millisecond):
				}
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < w.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range msgCh {
				w.processOne(ctx, m)
			}
		}()
	}
	wg.Wait()
	return nil
}

func (w *NotifierKafka) processOne(ctx context.Context, m kafka.Message) {
	var n model.Notification
	if err := json.Unmarshal(m.Value, &n); err != nil {
		// poison message: skip it
		w.Log.Error("bad notification json", zap.Error(err), zap.ByteString("key", m.Key))
		w.commit(ctx, m)
		return
	}

	// Delivery is attempted once; failures are logged, never redelivered.
	if err := w.Sink.Notify(ctx, n); err != nil {
		metrics.SideEffectFailures.WithLabelValues("notification").Inc()
		w.Log.Error("notification delivery failed",
			zap.Error(err), zap.String("type", n.Type), zap.String("title", n.Title))
	}
	w.commit(ctx, m)
}

func (w *NotifierKafka) commit(ctx context.Context, m kafka.Message) {
	if err := w.Source.Commit(ctx, m); err != nil && ctx.Err() == nil {
		w.Log.Warn("kafka commit failed", zap.Error(err), zap.Int64("offset", m.Offset))
	}
}
