package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/chiefnavajo/aimoviez-sub005/internal/middleware"
	"github.com/chiefnavajo/aimoviez-sub005/internal/model"
	"github.com/chiefnavajo/aimoviez-sub005/internal/repository"
	"github.com/chiefnavajo/aimoviez-sub005/internal/service"
)

type AdminHandler struct {
	seasons *service.SeasonService
	bulk    *service.BulkService
}

func NewAdminHandler(seasons *service.SeasonService, bulk *service.BulkService) *AdminHandler {
	return &AdminHandler{seasons: seasons, bulk: bulk}
}

// AssignWinner handles POST /api/admin/slots/:slotId/winner. Locking a
// slot, recording the winner, resolving losers and optionally opening the
// next slot are one transaction in the repository, so a failure leaves the
// bracket untouched.
func (h *AdminHandler) AssignWinner(c fiber.Ctx) error {
	slotID, errMsg := middleware.ValidateSlotID(c.Params("slotId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	var req model.WinnerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	clipID, errMsg := middleware.ValidateClipID(req.ClipID)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	out, err := h.seasons.AssignWinner(c.Context(), slotID, clipID, req.AdvanceSlot)
	switch {
	case errors.Is(err, repository.ErrSlotNotVoting):
		return middleware.ErrorResponse(c, fiber.StatusConflict, "SLOT_NOT_VOTING", err.Error())
	case errors.Is(err, repository.ErrInvalidWinner):
		return middleware.ErrorResponse(c, fiber.StatusUnprocessableEntity, "INVALID_WINNER", err.Error())
	case service.IsNotFound(err):
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Slot not found")
	case err != nil:
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, service.CodeDBError, "Winner assignment failed")
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"winnerId":       clipID,
		"slotPosition":   out.SlotPosition,
		"eliminated":     out.LoserIDs,
		"seasonFinished": out.SeasonFinished,
		"nextSlot":       out.NextPosition,
	})
}

// ReopenSlot handles POST /api/admin/slots/:slotId/reopen. Operator-only
// escape hatch that moves a locked slot back to voting.
func (h *AdminHandler) ReopenSlot(c fiber.Ctx) error {
	slotID, errMsg := middleware.ValidateSlotID(c.Params("slotId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	status, err := h.seasons.ReopenSlot(c.Context(), slotID)
	switch {
	case errors.Is(err, repository.ErrSlotNotLocked):
		return middleware.ErrorResponse(c, fiber.StatusConflict, "SLOT_NOT_LOCKED", err.Error())
	case service.IsNotFound(err):
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Slot not found")
	case err != nil:
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, service.CodeDBError, "Reopen failed")
	}

	return c.JSON(fiber.Map{"success": true, "slotId": slotID, "status": status})
}

// BulkClips handles POST /api/admin/clips/bulk.
func (h *AdminHandler) BulkClips(c fiber.Ctx) error {
	var req model.BulkRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}

	switch req.Action {
	case repository.BulkApprove, repository.BulkReject, repository.BulkDelete, repository.BulkReset:
	default:
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", "action must be approve, reject, delete or reset")
	}

	res, err := h.bulk.Apply(c.Context(), req.Action, req.ClipIDs)
	switch {
	case errors.Is(err, service.ErrEmptyBatch), errors.Is(err, service.ErrBatchTooLarge):
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BATCH", err.Error())
	case err != nil:
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, service.CodeDBError, "Bulk operation failed")
	}

	return c.JSON(fiber.Map{"success": true, "result": res})
}
