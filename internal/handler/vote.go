package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/chiefnavajo/aimoviez-sub005/internal/identity"
	"github.com/chiefnavajo/aimoviez-sub005/internal/middleware"
	"github.com/chiefnavajo/aimoviez-sub005/internal/model"
	"github.com/chiefnavajo/aimoviez-sub005/internal/service"
)

type VoteHandler struct {
	svc      *service.VoteService
	resolver *identity.Resolver
}

func NewVoteHandler(svc *service.VoteService, resolver *identity.Resolver) *VoteHandler {
	return &VoteHandler{svc: svc, resolver: resolver}
}

// resolveIdentity maps the raw request to a voter identity. Never fails.
func (h *VoteHandler) resolveIdentity(c fiber.Ctx) identity.Identity {
	return h.resolver.Resolve(identity.Request{
		UserID:         c.Get("X-User-ID"),
		IP:             c.IP(),
		UserAgent:      c.Get("User-Agent"),
		AcceptLanguage: c.Get("Accept-Language"),
		ForwardedFor:   c.Get("X-Forwarded-For"),
	})
}

// voteError writes the pipeline's typed rejection as the API envelope.
func voteError(c fiber.Ctx, err error) error {
	var verr *service.VoteError
	if errors.As(err, &verr) {
		countVote(verr.Code)
		return middleware.ErrorResponse(c, verr.Status, verr.Code, verr.Message)
	}
	countVote(service.CodeDBError)
	return middleware.ErrorResponse(c, fiber.StatusInternalServerError, service.CodeDBError, "Internal error")
}

func countVote(code string) {
	if Metrics.VotesTotal != nil {
		Metrics.VotesTotal.WithLabelValues(code).Inc()
	}
}

// Feed handles GET /api/vote — a batch of eligible clips for the current
// slot plus per-voter progress. Contains per-voter state, so the response
// is never cacheable by intermediaries.
func (h *VoteHandler) Feed(c fiber.Ctx) error {
	c.Set("Cache-Control", "private, no-store")

	limit := middleware.ClampFeedLimit(fiber.Query[int](c, "limit", 10))
	genre, errMsg := middleware.ValidateGenre(fiber.Query[string](c, "genre"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	exclude, errMsg := middleware.ParseExcludeIDs(fiber.Query[string](c, "excludeIds"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	forceNew := fiber.Query[bool](c, "forceNew", false)

	id := h.resolveIdentity(c)
	resp, err := h.svc.Feed(c.Context(), id, service.FeedQuery{
		Limit:      limit,
		Genre:      genre,
		ExcludeIDs: exclude,
		ForceNew:   forceNew,
	})
	if err != nil {
		return voteError(c, err)
	}
	return c.JSON(resp)
}

// Submit handles POST /api/vote.
func (h *VoteHandler) Submit(c fiber.Ctx) error {
	var req model.VoteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}

	clipID, errMsg := middleware.ValidateClipID(req.ClipID)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	req.ClipID = clipID
	if len(req.CaptchaToken) > middleware.MaxCaptchaToken {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", "captchaToken too long")
	}

	id := h.resolveIdentity(c)
	resp, err := h.svc.Cast(c.Context(), id, req)
	if err != nil {
		return voteError(c, err)
	}
	countVote("OK")
	return c.JSON(resp)
}

// Delete handles DELETE /api/vote — revocation, the exact inverse of
// casting.
func (h *VoteHandler) Delete(c fiber.Ctx) error {
	var req model.VoteDeleteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}

	clipID, errMsg := middleware.ValidateClipID(req.ClipID)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	id := h.resolveIdentity(c)
	resp, err := h.svc.Revoke(c.Context(), id, clipID)
	if err != nil {
		return voteError(c, err)
	}
	return c.JSON(resp)
}
