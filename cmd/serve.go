package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/mail-relay/internal/config"
	"github.com/jmehdipour/mail-relay/internal/db"
	"github.com/jmehdipour/mail-relay/internal/dedup"
	"github.com/jmehdipour/mail-relay/internal/dispatcher"
	"github.com/jmehdipour/mail-relay/internal/extract"
	httpSrv "github.com/jmehdipour/mail-relay/internal/http"
	"github.com/jmehdipour/mail-relay/internal/inbound"
	"github.com/jmehdipour/mail-relay/internal/kafka"
	"github.com/jmehdipour/mail-relay/internal/logger"
	"github.com/jmehdipour/mail-relay/internal/notify"
	"github.com/jmehdipour/mail-relay/internal/notion"
	"github.com/jmehdipour/mail-relay/internal/pipeline"
	"github.com/jmehdipour/mail-relay/internal/router"
	"github.com/jmehdipour/mail-relay/internal/schedule"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the inbound webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log := logger.Init(cfg.Log.Level, cfg.Log.Encoding)
		defer func() { _ = log.Sync() }()

		rules, err := cfg.RouterRules()
		if err != nil {
			return err
		}
		rt, err := router.New(rules)
		if err != nil {
			return fmt.Errorf("routing rules: %w", err)
		}

		redisClient, err := db.NewRedisClient(cmd.Context(), db.RedisOpts{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		var rds redis.Cmdable
		if redisClient != nil {
			rds = redisClient
			defer func() { _ = redisClient.Close() }()
		} else {
			log.Warn("redis not configured: dedup and rate limiting disabled")
		}

		var dedupRedis redis.Cmdable
		if cfg.Dedup.Enabled {
			dedupRedis = rds
		}
		claims := dedup.New(dedupRedis, dedup.Config{
			KeyPrefix:   cfg.Dedup.KeyPrefix,
			TTL:         cfg.Dedup.TTL,
			InFlightTTL: cfg.Dedup.InFlightTTL,
		})

		llm := extract.NewClient(cfg.Anthropic.APIKey,
			extract.WithBaseURL(cfg.Anthropic.BaseURL),
			extract.WithVersion(cfg.Anthropic.Version),
			extract.WithHTTPClient(&http.Client{Timeout: cfg.Anthropic.Timeout}),
		)
		extractor, err := extract.NewExtractor(llm, extract.Options{
			Model:        cfg.Anthropic.Model,
			MaxTokens:    cfg.Anthropic.MaxTokens,
			MaxBodyChars: cfg.Anthropic.MaxBodyChars,
		})
		if err != nil {
			return fmt.Errorf("extractor: %w", err)
		}

		notionClient := notion.NewClient(notion.Options{
			BaseURL:    cfg.Notion.BaseURL,
			Token:      cfg.Notion.Token,
			HTTPClient: &http.Client{Timeout: cfg.Notion.Timeout},
			MaxRetries: cfg.Notion.MaxRetries,
			UserAgent:  "mail-relay",
		})
		records := notion.NewRecords(notionClient, notion.Databases{
			Events:     cfg.Notion.Databases.Events,
			Newsletter: cfg.Notion.Databases.Newsletter,
			Inbox:      cfg.Notion.Databases.Inbox,
			Weeks:      cfg.Notion.Databases.Weeks,
		})
		if cfg.Notion.WeekRelProp != "" {
			records.WeekProperty = cfg.Notion.WeekRelProp
		}
		var finder schedule.ContainerFinder
		if cfg.Notion.Databases.Weeks != "" {
			finder = records.Weeks()
		}

		notifier, closeNotifier := buildNotifier(cfg, log)
		defer closeNotifier()

		orch := pipeline.New(pipeline.Deps{
			Router:    rt,
			Extractor: extractor,
			Store:     records,
			Weeks:     schedule.NewWeekLinker(finder, cfg.Notion.WeekTitle),
			Mailer:    buildMailer(cfg, log),
			Notifier:  notifier,
			Log:       log,
		}, pipeline.Options{MailFrom: cfg.Mail.From})

		server := httpSrv.NewServer(httpSrv.Options{
			BodyLimit:    cfg.HTTP.BodyLimit,
			RateLimitRPS: cfg.RateLimit.RPS,
			RateLimitKey: cfg.RateLimit.KeyPrefix,
			Configured:   cfg.Presence(),
		}, httpSrv.Deps{
			Normalizer: inbound.NewNormalizer(),
			Processor:  orch,
			Dedup:      claims,
			Redis:      rds,
			Log:        log,
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				log.Error("http server exited", zap.Error(err))
			}
		}

		timeout := cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}

// buildMailer returns nil when no provider is usable, which turns confirmation
// and error emails off.
func buildMailer(cfg config.Config, log *zap.Logger) pipeline.Mailer {
	if cfg.Mail.From == "" {
		log.Warn("mail.from not set: confirmation emails disabled")
		return nil
	}
	var provs []dispatcher.Provider
	for _, pc := range cfg.Mail.Providers {
		if !pc.Enabled || pc.BaseURL == "" || pc.APIKey == "" {
			continue
		}
		provs = append(provs, dispatcher.NewHTTPProvider(dispatcher.HTTPProviderConfig{
			Name:          pc.Name,
			BaseURL:       pc.BaseURL,
			Path:          pc.Path,
			APIKey:        pc.APIKey,
			Timeout:       pc.Timeout,
			FailThreshold: pc.Breaker.FailThreshold,
			CoolDown:      pc.Breaker.OpenFor,
		}))
	}
	if len(provs) == 0 {
		log.Warn("no email provider configured: confirmation emails disabled")
		return nil
	}
	return dispatcher.NewDispatcher(provs, cfg.Mail.MaxAttempts)
}

// buildNotifier prefers the Kafka outbox, then a direct webhook.
func buildNotifier(cfg config.Config, log *zap.Logger) (notify.Notifier, func()) {
	switch {
	case cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0:
		producer := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		log.Info("notifications buffered through kafka", zap.String("topic", cfg.Kafka.Topic))
		return notify.NewOutbox(producer), func() { _ = producer.Close() }
	case cfg.Notify.WebhookURL != "":
		return notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Timeout), func() {}
	default:
		log.Warn("notify.webhook_url not set: notifications disabled")
		return notify.Noop{}, func() {}
	}
}
