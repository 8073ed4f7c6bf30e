package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/mail-relay/internal/config"
	"github.com/jmehdipour/mail-relay/internal/kafka"
	"github.com/jmehdipour/mail-relay/internal/logger"
	"github.com/jmehdipour/mail-relay/internal/metrics"
	"github.com/jmehdipour/mail-relay/internal/notify"
	"github.com/jmehdipour/mail-relay/internal/worker"
)

var notifierCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Deliver buffered notifications from Kafka to the webhook",
	RunE:  runNotifier,
}

func runNotifier(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.Init(cfg.Log.Level, cfg.Log.Encoding)
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is empty")
	}
	if cfg.Notify.WebhookURL == "" {
		return errors.New("notify.webhook_url is empty")
	}

	consumer := kafka.NewConsumer(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.Topic,
		GroupID:        cfg.Kafka.GroupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: cfg.Kafka.CommitInterval,
	})
	defer consumer.Close()

	w := worker.NewNotifierKafka(consumer, notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Timeout), log)
	if cfg.Kafka.Workers > 0 {
		w.Workers = cfg.Kafka.Workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("notifier started",
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", cfg.Kafka.GroupID),
		zap.Int("workers", w.Workers))

	return w.Run(ctx)
}
