package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/mail-relay/internal/dedup"
	"github.com/jmehdipour/mail-relay/internal/inbound"
	"github.com/jmehdipour/mail-relay/internal/metrics"
	"github.com/jmehdipour/mail-relay/internal/model"
	"github.com/jmehdipour/mail-relay/internal/pipeline"
)

// Processor is satisfied by pipeline.Orchestrator.
type Processor interface {
	Route(env model.Envelope) model.PipelineKind
	Process(ctx context.Context, env model.Envelope) (pipeline.Result, error)
}

// Claimer is satisfied by dedup.Store.
type Claimer interface {
	Claim(ctx context.Context, env model.Envelope) (string, dedup.State, error)
	Complete(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

type inboundHandler struct {
	normalizer *inbound.Normalizer
	processor  Processor
	dedup      Claimer
	log        *zap.Logger
}

func (h *inboundHandler) handle(c echo.Context) error {
	ctx := c.Request().Context()
	log := h.log.With(zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))

	var payload inbound.Payload
	if err := json.NewDecoder(c.Request().Body).Decode(&payload); err != nil || payload == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "request body must be a JSON object"})
	}

	env, err := h.normalizer.Normalize(payload, c.Request().Header)
	if err != nil {
		log.Warn("normalize failed", zap.Error(err))
		if errors.Is(err, inbound.ErrNoBodyFound) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
	}
	metrics.InboundTotal.WithLabelValues(env.Provider).Inc()

	var claimKey string
	if h.dedup != nil {
		key, state, err := h.dedup.Claim(ctx, env)
		switch {
		case err != nil:
			log.Warn("dedup claim failed, processing anyway", zap.Error(err))
		case state == dedup.Done:
			kind := h.processor.Route(env)
			metrics.PipelineTotal.WithLabelValues(kind.String(), "duplicate").Inc()
			log.Info("duplicate delivery ignored", zap.String("key", key), zap.String("pipeline", kind.String()))
			return c.JSON(http.StatusOK, map[string]any{"success": true, "duplicate": true, "type": kind.String()})
		case state == dedup.InFlight:
			// non-2xx so the provider retries once the first attempt settles
			log.Info("delivery already in progress", zap.String("key", key))
			return c.JSON(http.StatusConflict, map[string]any{"success": false, "error": "delivery already in progress"})
		default:
			claimKey = key
		}
	}

	res, err := h.processor.Process(ctx, env)
	if err != nil {
		if claimKey != "" {
			// let the provider's retry through
			if rerr := h.dedup.Release(context.WithoutCancel(ctx), claimKey); rerr != nil {
				log.Warn("dedup release failed", zap.Error(rerr))
			}
		}
		return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
	}
	if claimKey != "" {
		if cerr := h.dedup.Complete(context.WithoutCancel(ctx), claimKey); cerr != nil {
			log.Warn("dedup complete failed", zap.Error(cerr))
		}
	}
	return c.JSON(http.StatusOK, res)
}
