package middleware

import (
	"strings"
	"testing"
)

func TestValidateClipID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantID  string
		wantErr bool
	}{
		{"valid uuid", "550e8400-e29b-41d4-a716-446655440000", "550e8400-e29b-41d4-a716-446655440000", false},
		{"valid short key", "clip_123", "clip_123", false},
		{"trims whitespace", "  clip1  ", "clip1", false},
		{"empty", "", "", true},
		{"too long", strings.Repeat("a", 65), "", true},
		{"exactly 64", strings.Repeat("a", 64), strings.Repeat("a", 64), false},
		{"invalid chars", "clip 1", "", true},
		{"sql injection", "a'; DROP--", "", true},
		{"unicode", "clipé", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errMsg := ValidateClipID(tt.input)
			if tt.wantErr && errMsg == "" {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && errMsg != "" {
				t.Errorf("unexpected error: %s", errMsg)
			}
			if got != tt.wantID {
				t.Errorf("got %q, want %q", got, tt.wantID)
			}
		})
	}
}

func TestValidateGenre(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"valid", "horror", "horror", false},
		{"lowercased", "Horror", "horror", false},
		{"empty is fine", "", "", false},
		{"whitespace only is fine", "   ", "", false},
		{"too long", strings.Repeat("x", 33), "", true},
		{"invalid chars", "sci fi!", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errMsg := ValidateGenre(tt.input)
			if tt.wantErr && errMsg == "" {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && errMsg != "" {
				t.Errorf("unexpected error: %s", errMsg)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseExcludeIDs(t *testing.T) {
	ids, errMsg := ParseExcludeIDs("a,b,c")
	if errMsg != "" {
		t.Fatalf("unexpected error: %s", errMsg)
	}
	if len(ids) != 3 {
		t.Errorf("got %d ids, want 3", len(ids))
	}

	// Malformed entries dropped, not fatal
	ids, errMsg = ParseExcludeIDs("a, ,b;c,d")
	if errMsg != "" {
		t.Fatalf("unexpected error: %s", errMsg)
	}
	if len(ids) != 2 {
		t.Errorf("got %v, want a and d only", ids)
	}

	// Empty input is no filter
	if ids, _ := ParseExcludeIDs(""); ids != nil {
		t.Errorf("empty input should yield nil, got %v", ids)
	}

	// Over the cap is an error
	raw := strings.TrimSuffix(strings.Repeat("x,", MaxExcludeIDs+1), ",")
	if _, errMsg := ParseExcludeIDs(raw); errMsg == "" {
		t.Error("expected error for oversized excludeIds")
	}
}

func TestClampFeedLimit(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 10},
		{-5, 10},
		{1, 1},
		{20, 20},
		{21, 20},
		{1000, 20},
	}
	for _, tt := range tests {
		if got := ClampFeedLimit(tt.in); got != tt.want {
			t.Errorf("ClampFeedLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
