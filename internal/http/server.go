package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jmehdipour/mail-relay/internal/http/middleware"
	"github.com/jmehdipour/mail-relay/internal/inbound"
	"github.com/jmehdipour/mail-relay/internal/metrics"
	"github.com/jmehdipour/mail-relay/internal/util"
)

type Options struct {
	BodyLimit    string
	RateLimitRPS int
	RateLimitKey string
	// Configured is reported by /healthz.
	Configured map[string]bool
}

type Deps struct {
	Normalizer *inbound.Normalizer
	Processor  Processor
	Dedup      Claimer
	Redis      redis.Cmdable
	Log        *zap.Logger
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(opts Options, deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Normalizer == nil {
		deps.Normalizer = inbound.NewNormalizer()
	}
	if opts.BodyLimit == "" {
		opts.BodyLimit = "2M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.WARN)

	e.Use(
		echoMid.Recover(),
		echoMid.RequestIDWithConfig(echoMid.RequestIDConfig{Generator: util.New}),
		echoMid.RequestLoggerWithConfig(accessLog(deps.Log)),
	)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", healthHandler(opts.Configured))

	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          deps.Redis,
		RPS:            opts.RateLimitRPS,
		KeyPrefix:      opts.RateLimitKey,
		Window:         time.Second,
		RetryAfterHint: true,
		Log:            deps.Log,
	})

	h := &inboundHandler{
		normalizer: deps.Normalizer,
		processor:  deps.Processor,
		dedup:      deps.Dedup,
		log:        deps.Log,
	}
	webhook := e.Group("/webhook", echoMid.BodyLimit(opts.BodyLimit), rlMW)
	webhook.POST("", h.handle)
	webhook.POST("/inbound", h.handle)

	return &Server{e: e, log: deps.Log}
}

func accessLog(l *zap.Logger) echoMid.RequestLoggerConfig {
	return echoMid.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/healthz"
		},
		LogValuesFunc: func(c echo.Context, v echoMid.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				l.Error("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			l.Info("request", fields...)
			return nil
		},
	}
}

func healthHandler(configured map[string]bool) echo.HandlerFunc {
	if configured == nil {
		configured = map[string]bool{}
	}
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"status": "ok", "configured": configured})
	}
}

func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
