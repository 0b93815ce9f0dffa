package limiter

import (
	"errors"
	"testing"
	"time"
)

func TestWindowKey_StableWithinWindow(t *testing.T) {
	window := time.Second
	base := time.UnixMilli(1_700_000_000_000)

	k1, err := windowKey("ratelimit:", "client-abc", base, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	k2, err := windowKey("ratelimit:", "client-abc", base.Add(999*time.Millisecond), window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k1 != k2 {
		t.Errorf("same window produced different keys: %q vs %q", k1, k2)
	}

	k3, _ := windowKey("ratelimit:", "client-abc", base.Add(time.Second), window)
	if k1 == k3 {
		t.Errorf("different windows produced the same key: %q", k1)
	}
}

func TestWindowKey_DistinctClients(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	k1, _ := windowKey("ratelimit:", "client-a1", now, time.Second)
	k2, _ := windowKey("ratelimit:", "client-b2", now, time.Second)
	if k1 == k2 {
		t.Errorf("different clients share a key: %q", k1)
	}
}

func TestWindowKey_Prefix(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	key, err := windowKey("gw:", "client-abc", now, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "gw:client-abc:28333333"
	if key != want {
		t.Errorf("expected key %q, got %q", want, key)
	}
}

func TestWindowKey_TrimsClientID(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	trimmed, err := windowKey("ratelimit:", "client-abc", now, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	padded, err := windowKey("ratelimit:", "  client-abc\t", now, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if padded != trimmed {
		t.Errorf("padded id produced a different key: %q vs %q", padded, trimmed)
	}
}

func TestWindowKey_RejectsBadClientIDs(t *testing.T) {
	cases := []struct {
		name     string
		clientID string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"too short", "ab"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := windowKey("ratelimit:", tc.clientID, time.Now(), time.Second)
			if !errors.Is(err, ErrInvalidClientID) {
				t.Errorf("expected ErrInvalidClientID, got %v", err)
			}
		})
	}
}
