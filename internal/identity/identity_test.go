package identity

import (
	"strings"
	"testing"
)

const testSalt = "test-salt"

func browserRequest() Request {
	return Request{
		IP:             "203.0.113.9",
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		AcceptLanguage: "en-US,en;q=0.9",
	}
}

func TestResolve_AuthenticatedUser(t *testing.T) {
	r := NewResolver(testSalt)
	req := browserRequest()
	req.UserID = "a1b2c3d4e5f60718a1b2c3d4e5f60718"

	id := r.Resolve(req)

	if id.VoterKey != "user_a1b2c3d4e5f60718a1b2c3d4e5f60718" {
		t.Errorf("voter key = %s, want user_<id>", id.VoterKey)
	}
	if id.UserID == nil || *id.UserID != "a1b2c3d4e5f60718a1b2c3d4e5f60718" {
		t.Error("UserID should be set for authenticated requests")
	}
	if id.Risk != 0 {
		t.Errorf("clean browser request risk = %d, want 0", id.Risk)
	}
}

func TestResolve_AnonymousDeterministic(t *testing.T) {
	r := NewResolver(testSalt)

	a := r.Resolve(browserRequest())
	b := r.Resolve(browserRequest())

	if a.VoterKey != b.VoterKey {
		t.Error("same device should resolve to the same voter key")
	}
	if !strings.HasPrefix(a.VoterKey, "device_") {
		t.Errorf("anonymous key = %s, want device_ prefix", a.VoterKey)
	}
	if a.UserID != nil {
		t.Error("anonymous identity should not carry a user id")
	}
}

func TestResolve_DifferentDevicesDifferentKeys(t *testing.T) {
	r := NewResolver(testSalt)

	a := r.Resolve(browserRequest())
	other := browserRequest()
	other.IP = "203.0.113.77"
	b := r.Resolve(other)

	if a.VoterKey == b.VoterKey {
		t.Error("different devices should resolve to different voter keys")
	}
}

func TestResolve_MalformedSessionFallsBackToDevice(t *testing.T) {
	r := NewResolver(testSalt)
	req := browserRequest()
	req.UserID = "DROP TABLE users"

	id := r.Resolve(req)

	if !strings.HasPrefix(id.VoterKey, "device_") {
		t.Errorf("malformed session should fall back to device key, got %s", id.VoterKey)
	}
	if id.Risk == 0 {
		t.Error("malformed session id should raise risk")
	}
}

func TestResolve_NoSignalsNeverFails(t *testing.T) {
	r := NewResolver(testSalt)

	id := r.Resolve(Request{})

	if id.VoterKey == "" {
		t.Fatal("resolver must always produce a key")
	}
	if !id.Fallback {
		t.Error("empty request should be marked as fallback")
	}
	if id.Risk < RiskFlag {
		t.Errorf("empty request risk = %d, want at least flag threshold %d", id.Risk, RiskFlag)
	}
}

func TestResolve_BotUserAgentBlocked(t *testing.T) {
	r := NewResolver(testSalt)
	req := Request{
		IP:           "203.0.113.9",
		UserAgent:    "python-requests/2.31",
		ForwardedFor: "10.0.0.1, 10.0.0.2, 10.0.0.3, 10.0.0.4",
	}

	id := r.Resolve(req)

	if !id.Blocked() {
		t.Errorf("scripted client through a proxy chain: risk = %d, want >= %d", id.Risk, RiskHardBlock)
	}
}

func TestResolve_FlaggedBand(t *testing.T) {
	r := NewResolver(testSalt)
	// Short UA (25) + missing IP (15) + 2-hop chain (10) + malformed
	// session (20) lands in the flagged band without reaching the hard
	// block.
	req := Request{
		UserID:         "not-a-session-hash",
		UserAgent:      "tiny-ua 1.0",
		AcceptLanguage: "en",
		ForwardedFor:   "10.0.0.1, 10.0.0.2, 10.0.0.3",
	}

	id := r.Resolve(req)

	if !id.Flagged() {
		t.Errorf("risk = %d, want flagged band [%d,%d)", id.Risk, RiskFlag, RiskHardBlock)
	}
	if id.Blocked() {
		t.Errorf("risk = %d, should not be blocked", id.Risk)
	}
}

func TestRiskClamp(t *testing.T) {
	r := NewResolver(testSalt)
	// Every signal at once must still clamp to 100.
	req := Request{
		UserAgent:    "curl/8.0",
		ForwardedFor: "1,2,3,4,5,6",
	}

	id := r.Resolve(req)

	if id.Risk > 100 {
		t.Errorf("risk = %d, must clamp to 100", id.Risk)
	}
}
