package middleware

import (
	"crypto/subtle"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// Field limits matching schema constraints and the API contract.
const (
	MaxClipIDLen    = 64
	MaxSlotIDLen    = 64
	MaxGenreLen     = 32
	MaxExcludeIDs   = 200
	MaxFeedLimit    = 20
	MaxCaptchaToken = 2048
)

var (
	// idRe matches clip/slot ids: uuid-style or short alphanumeric keys.
	idRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	// genreRe matches genre track names.
	genreRe = regexp.MustCompile(`^[a-z0-9_-]+$`)
)

// ErrorResponse is a helper that returns a standard API error envelope.
func ErrorResponse(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// ValidateClipID checks that a clip id is well-formed. Returns the cleaned
// id, or an error message.
func ValidateClipID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "clipId is required"
	}
	if len(id) > MaxClipIDLen {
		return "", "clipId must be at most 64 characters"
	}
	if !idRe.MatchString(id) {
		return "", "clipId contains invalid characters"
	}
	return id, ""
}

// ValidateSlotID checks that a slot id is well-formed.
func ValidateSlotID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "slotId is required"
	}
	if len(id) > MaxSlotIDLen {
		return "", "slotId must be at most 64 characters"
	}
	if !idRe.MatchString(id) {
		return "", "slotId contains invalid characters"
	}
	return id, ""
}

// ValidateGenre checks an optional genre track name.
func ValidateGenre(genre string) (string, string) {
	genre = strings.TrimSpace(strings.ToLower(genre))
	if genre == "" {
		return "", ""
	}
	if len(genre) > MaxGenreLen {
		return "", "genre must be at most 32 characters"
	}
	if !genreRe.MatchString(genre) {
		return "", "genre contains invalid characters"
	}
	return genre, ""
}

// ParseExcludeIDs splits and validates the comma-separated excludeIds
// query parameter (client-side forward-looking dedup). Malformed entries
// are dropped; more than the cap is an error.
func ParseExcludeIDs(raw string) ([]string, string) {
	if strings.TrimSpace(raw) == "" {
		return nil, ""
	}
	parts := strings.Split(raw, ",")
	if len(parts) > MaxExcludeIDs {
		return nil, "excludeIds accepts at most 200 ids"
	}
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || len(p) > MaxClipIDLen || !idRe.MatchString(p) {
			continue
		}
		ids = append(ids, p)
	}
	return ids, ""
}

// ClampFeedLimit normalizes the feed limit into [1, MaxFeedLimit].
func ClampFeedLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > MaxFeedLimit {
		return MaxFeedLimit
	}
	return limit
}

// NewAdminGuard returns a middleware requiring the shared admin secret in
// X-Admin-Key. With no key configured, all admin routes refuse service
// rather than fail open.
func NewAdminGuard(adminKey string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if adminKey == "" {
			return ErrorResponse(c, fiber.StatusForbidden, "ADMIN_DISABLED", "Admin API is not configured")
		}
		got := c.Get("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(adminKey)) != 1 {
			return ErrorResponse(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Invalid admin key")
		}
		return c.Next()
	}
}
