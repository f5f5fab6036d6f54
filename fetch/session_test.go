package fetch

import (
	"errors"
	"testing"
	"time"

	"github.com/go-rod/rod"
)

func TestSessionRegistryGetCreatesThenReuses(t *testing.T) {
	var factoryCalls int
	factory := func() (*rod.Browser, *rod.Page, error) {
		factoryCalls++
		return nil, nil, nil
	}
	r := NewSessionRegistry(factory, 0, 0)

	s1, err := r.Get("abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	s2, err := r.Get("abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if s1 != s2 {
		t.Error("Get() with the same session_id returned different sessions")
	}
	if factoryCalls != 1 {
		t.Errorf("factory called %d times, want 1 (second Get should reuse)", factoryCalls)
	}
}

func TestSessionRegistryGetDistinctIDsCreateDistinctSessions(t *testing.T) {
	factory := func() (*rod.Browser, *rod.Page, error) { return nil, nil, nil }
	r := NewSessionRegistry(factory, 0, 0)

	s1, _ := r.Get("a")
	s2, _ := r.Get("b")
	if s1 == s2 {
		t.Error("Get() with distinct session_ids returned the same session")
	}
}

func TestSessionRegistryGetPropagatesFactoryError(t *testing.T) {
	wantErr := errors.New("factory boom")
	factory := func() (*rod.Browser, *rod.Page, error) { return nil, nil, wantErr }
	r := NewSessionRegistry(factory, 0, 0)

	_, err := r.Get("abc")
	if err != wantErr {
		t.Errorf("Get() error = %v, want %v", err, wantErr)
	}
}

func TestSessionTouchUpdatesLastUsedAt(t *testing.T) {
	s := &Session{ID: "abc", LastUsedAt: time.Now().Add(-time.Hour)}
	before := s.LastUsedAt
	s.touch()
	if !s.LastUsedAt.After(before) {
		t.Error("touch() did not advance LastUsedAt")
	}
}
