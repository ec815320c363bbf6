package cache

import (
	"strings"
	"testing"
)

func TestHashString(t *testing.T) {
	h1 := hashString("test")
	h2 := hashString("test")
	if h1 != h2 {
		t.Errorf("hashString not deterministic: %q != %q", h1, h2)
	}

	h3 := hashString("other")
	if h1 == h3 {
		t.Error("different inputs should produce different hashes")
	}

	if h1 == "" {
		t.Error("hash should not be empty")
	}

	h4 := hashString("")
	if h4 == "" {
		t.Error("hash of empty string should not be empty")
	}
}

func TestSearchKey_Deterministic(t *testing.T) {
	k1 := searchKey("iphone 15 pro max")
	k2 := searchKey("iphone 15 pro max")
	if k1 != k2 {
		t.Errorf("searchKey not deterministic: %q != %q", k1, k2)
	}
	if !strings.HasPrefix(k1, "sr:v1:") {
		t.Errorf("expected 'sr:v1:' prefix, got %q", k1)
	}
}

func TestSearchKey_DifferentQueriesProduceDifferentKeys(t *testing.T) {
	k1 := searchKey("iphone 15")
	k2 := searchKey("samsung a51")
	if k1 == k2 {
		t.Error("different queries should produce different keys")
	}
}

func TestStaleKey_HasStalePrefix(t *testing.T) {
	key := staleKey("iphone 15")
	if !strings.HasPrefix(key, "sr:stale:v1:") {
		t.Errorf("expected 'sr:stale:v1:' prefix, got %q", key)
	}
}

func TestStaleKey_DifferentFromSearchKey(t *testing.T) {
	if searchKey("iphone 15") == staleKey("iphone 15") {
		t.Error("fresh and stale keys should differ for the same query")
	}
}

func TestStaleKey_SurvivesFreshInvalidation(t *testing.T) {
	// Invalidation deletes sr:v1:*; stale keys live in a sibling namespace
	// so they outlive it and remain available during outages.
	stale := staleKey("dien thoai gaming")
	if strings.HasPrefix(stale, "sr:v1:") {
		t.Errorf("stale key must not match the fresh invalidation pattern: %q", stale)
	}
}
