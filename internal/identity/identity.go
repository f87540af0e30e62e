// Package identity turns a raw request into a stable voter key plus risk
// signals. Resolution is a pure derivation over request data: it has no
// side effects and never fails — internal problems degrade to a fallback
// anonymous key with a risk flag instead of an error.
package identity

import (
	"regexp"
	"strings"

	"github.com/chiefnavajo/aimoviez-sub005/pkg/hash"
)

// Risk thresholds applied by the vote executor.
const (
	RiskHardBlock = 90 // reject the vote outright
	RiskFlag      = 70 // allow but flag the vote for audit
)

// Request carries the signals the resolver reads. Extracted from the
// transport layer so resolution stays testable without an HTTP stack.
type Request struct {
	UserID         string // from the session collaborator, empty if anonymous
	IP             string
	UserAgent      string
	AcceptLanguage string
	ForwardedFor   string // full X-Forwarded-For chain as received
}

// Identity is the resolver output: a stable voter key and a 0-100 risk
// score derived from device/network signals.
type Identity struct {
	VoterKey string
	UserID   *string
	Risk     int
	Fallback bool // key was derived from degraded signals
}

// Flagged reports whether the vote should be recorded with an audit flag.
func (id Identity) Flagged() bool {
	return id.Risk >= RiskFlag && id.Risk < RiskHardBlock
}

// Blocked reports whether the vote must be rejected on risk grounds.
func (id Identity) Blocked() bool {
	return id.Risk >= RiskHardBlock
}

var userIDRe = regexp.MustCompile(`^[0-9a-f]{16,64}$`)

// headless markers seen in scripted traffic; each adds risk.
var botMarkers = []string{"headless", "phantomjs", "selenium", "puppeteer", "playwright", "python-requests", "curl/", "wget/"}

type Resolver struct {
	salt string
}

func NewResolver(salt string) *Resolver {
	return &Resolver{salt: salt}
}

// Resolve derives the voter key and risk score for a request. Keyed
// `user_<id>` for authenticated sessions, `device_<fingerprint>` for
// anonymous ones. Deterministic for the same device/session.
func (r *Resolver) Resolve(req Request) Identity {
	risk := r.score(req)

	if uid := strings.TrimSpace(strings.ToLower(req.UserID)); uid != "" {
		if userIDRe.MatchString(uid) {
			return Identity{
				VoterKey: "user_" + uid,
				UserID:   &uid,
				Risk:     risk,
			}
		}
		// Malformed session id: treat as anonymous and raise risk.
		risk += 20
	}

	ip := strings.TrimSpace(req.IP)
	ua := strings.TrimSpace(req.UserAgent)
	fallback := false
	if ip == "" && ua == "" {
		// Nothing usable to fingerprint. Still never fail: a shared
		// fallback key with elevated risk funnels these into the
		// daily-limit and risk gates.
		fallback = true
		risk += 30
	}

	fp := hash.DeviceFingerprint(r.salt, ip, ua, strings.TrimSpace(req.AcceptLanguage))
	return Identity{
		VoterKey: "device_" + fp,
		Risk:     clampRisk(risk),
		Fallback: fallback,
	}
}

// score computes the additive 0-100 risk score from request signals.
func (r *Resolver) score(req Request) int {
	risk := 0

	ua := strings.ToLower(req.UserAgent)
	switch {
	case ua == "":
		risk += 40
	case len(ua) < 20:
		risk += 25
	}
	for _, marker := range botMarkers {
		if strings.Contains(ua, marker) {
			risk += 60
			break
		}
	}

	// Long proxy chains correlate with rotating-exit abuse.
	if hops := strings.Count(req.ForwardedFor, ","); hops >= 3 {
		risk += 30
	} else if hops == 2 {
		risk += 10
	}

	if req.IP == "" {
		risk += 15
	}

	return clampRisk(risk)
}

func clampRisk(risk int) int {
	if risk < 0 {
		return 0
	}
	if risk > 100 {
		return 100
	}
	return risk
}
