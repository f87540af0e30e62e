package service

import "github.com/gofiber/fiber/v3"

// Vote error codes. Returned verbatim to the caller; infrastructure
// failures are collapsed to CodeDBError with a generic message so internal
// error text never leaks.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidClipStatus = "INVALID_CLIP_STATUS"
	CodeNoActiveSlot      = "NO_ACTIVE_SLOT"
	CodeWaitingForClips   = "WAITING_FOR_CLIPS"
	CodeVotingExpired     = "VOTING_EXPIRED"
	CodeWrongSlot         = "WRONG_SLOT"
	CodeVotingFrozen      = "VOTING_FROZEN"
	CodeDailyLimit        = "DAILY_LIMIT"
	CodeAlreadyVoted      = "ALREADY_VOTED"
	CodeRiskBlocked       = "RISK_BLOCKED"
	CodeCaptchaRequired   = "CAPTCHA_REQUIRED"
	CodeCaptchaFailed     = "CAPTCHA_FAILED"
	CodeNotVoted          = "NOT_VOTED"
	CodeDBError           = "DB_ERROR"
)

// VoteError is a typed rejection from the vote pipeline. Validation
// failures carry their code and message to the caller; the Status maps the
// code to an HTTP status at the transport boundary.
type VoteError struct {
	Code    string
	Status  int
	Message string
}

func (e *VoteError) Error() string { return e.Code + ": " + e.Message }

func newVoteError(code string, status int, msg string) *VoteError {
	return &VoteError{Code: code, Status: status, Message: msg}
}

// Pre-built rejections for the fixed parts of the taxonomy.
var (
	ErrClipNotFound    = newVoteError(CodeNotFound, fiber.StatusNotFound, "Clip not found")
	ErrClipNotActive   = newVoteError(CodeInvalidClipStatus, fiber.StatusBadRequest, "Clip is not open for voting")
	ErrNoActiveSlot    = newVoteError(CodeNoActiveSlot, fiber.StatusBadRequest, "No slot is currently accepting votes")
	ErrWaitingClips    = newVoteError(CodeWaitingForClips, fiber.StatusBadRequest, "Voting is paused until clips are assigned")
	ErrVotingExpired   = newVoteError(CodeVotingExpired, fiber.StatusBadRequest, "Voting for this slot has ended")
	ErrWrongSlot       = newVoteError(CodeWrongSlot, fiber.StatusBadRequest, "Clip does not belong to the current slot")
	ErrVotingFrozen    = newVoteError(CodeVotingFrozen, fiber.StatusBadRequest, "Voting is frozen for the final tally")
	ErrDailyLimit      = newVoteError(CodeDailyLimit, fiber.StatusTooManyRequests, "Daily vote limit reached")
	ErrAlreadyVoted    = newVoteError(CodeAlreadyVoted, fiber.StatusConflict, "You already voted on this clip")
	ErrRiskBlocked     = newVoteError(CodeRiskBlocked, fiber.StatusTooManyRequests, "Vote rejected")
	ErrCaptchaRequired = newVoteError(CodeCaptchaRequired, fiber.StatusBadRequest, "Captcha required")
	ErrCaptchaFailed   = newVoteError(CodeCaptchaFailed, fiber.StatusBadRequest, "Captcha verification failed")
	ErrNotVoted        = newVoteError(CodeNotVoted, fiber.StatusNotFound, "No vote to remove")
	ErrStorage         = newVoteError(CodeDBError, fiber.StatusServiceUnavailable, "Vote could not be processed")
)
