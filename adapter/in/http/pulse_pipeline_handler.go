// Package http exposes the operator API: pipeline triggers, dispatch, digest
// lookups, and service stats.
package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"feedpulse/core/domain"
	"feedpulse/core/service/digest"
	"feedpulse/core/service/dispatch"
	"feedpulse/core/service/pipeline"
	"feedpulse/pkg/response"
)

// PipelineHandler exposes pipeline operations.
type PipelineHandler struct {
	pipeline   *pipeline.Pipeline
	dispatcher *dispatch.Dispatcher
	digests    domain.DigestRepository
	builder    *digest.Builder
}

// NewPipelineHandler creates the handler. dispatcher, digests and builder may
// be nil when the corresponding subsystem is disabled.
func NewPipelineHandler(p *pipeline.Pipeline, dispatcher *dispatch.Dispatcher,
	digests domain.DigestRepository, builder *digest.Builder) *PipelineHandler {
	return &PipelineHandler{
		pipeline:   p,
		dispatcher: dispatcher,
		digests:    digests,
		builder:    builder,
	}
}

// Register mounts the handler routes.
func (h *PipelineHandler) Register(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Post("/messages/:id/process", h.ProcessMessage)
	api.Post("/pipeline/run", h.RunBatch)
	api.Get("/pipeline/stats", h.Stats)

	api.Post("/notifications/dispatch", h.DispatchPending)

	api.Get("/digests", h.ListDigests)
	api.Get("/digests/:date", h.GetDigest)
	api.Post("/digests/build", h.BuildDigest)
}

// ProcessMessage runs one message through the pipeline.
func (h *PipelineHandler) ProcessMessage(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "invalid message id")
	}

	result, err := h.pipeline.ProcessMessage(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return response.NotFound(c, "message not found")
		}
		return response.InternalError(c, err.Error())
	}
	return response.OK(c, result)
}

// RunBatch triggers a batch run. Returns 409 when a batch is already in
// flight, so operators can tell a trigger from a no-op.
func (h *PipelineHandler) RunBatch(c *fiber.Ctx) error {
	result, err := h.pipeline.ProcessBatch(c.Context())
	if err != nil {
		return response.InternalError(c, err.Error())
	}
	if !result.Ran {
		return response.Error(c, fiber.StatusConflict, "BATCH_RUNNING", "a batch run is already in progress")
	}
	return response.OK(c, result)
}

// Stats returns cumulative pipeline counters.
func (h *PipelineHandler) Stats(c *fiber.Ctx) error {
	return response.OK(c, h.pipeline.GetStats())
}

// DispatchPending delivers queued notification records.
func (h *PipelineHandler) DispatchPending(c *fiber.Ctx) error {
	if h.dispatcher == nil {
		return response.Error(c, fiber.StatusServiceUnavailable, "DISPATCH_DISABLED", "dispatcher is not configured")
	}

	limit := c.QueryInt("limit", 100)
	result, err := h.dispatcher.DispatchPending(c.Context(), limit)
	if err != nil {
		return response.InternalError(c, err.Error())
	}
	return response.OK(c, result)
}

// ListDigests returns recent digests, newest first.
func (h *PipelineHandler) ListDigests(c *fiber.Ctx) error {
	if h.digests == nil {
		return response.Error(c, fiber.StatusServiceUnavailable, "DIGEST_DISABLED", "digest store is not configured")
	}

	limit := c.QueryInt("limit", 30)
	digests, err := h.digests.ListRecent(c.Context(), limit)
	if err != nil {
		return response.InternalError(c, err.Error())
	}
	return response.OK(c, digests)
}

// GetDigest returns the digest for one YYYY-MM-DD date.
func (h *PipelineHandler) GetDigest(c *fiber.Ctx) error {
	if h.digests == nil {
		return response.Error(c, fiber.StatusServiceUnavailable, "DIGEST_DISABLED", "digest store is not configured")
	}

	date, err := time.Parse("2006-01-02", c.Params("date"))
	if err != nil {
		return response.BadRequest(c, "invalid date, expected YYYY-MM-DD")
	}

	d, err := h.digests.GetByDate(c.Context(), date)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return response.NotFound(c, "no digest for that date")
		}
		return response.InternalError(c, err.Error())
	}
	return response.OK(c, d)
}

// BuildDigest builds (or rebuilds) the digest for a date, defaulting to
// yesterday UTC.
func (h *PipelineHandler) BuildDigest(c *fiber.Ctx) error {
	if h.builder == nil {
		return response.Error(c, fiber.StatusServiceUnavailable, "DIGEST_DISABLED", "digest builder is not configured")
	}

	date := time.Now().UTC().AddDate(0, 0, -1)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return response.BadRequest(c, "invalid date, expected YYYY-MM-DD")
		}
		date = parsed
	}

	d, err := h.builder.BuildFor(c.Context(), date)
	if err != nil {
		return response.InternalError(c, err.Error())
	}
	return response.Created(c, d)
}
