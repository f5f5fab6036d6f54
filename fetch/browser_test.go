package fetch

import (
	"errors"
	"testing"
)

func TestRefererBuildsGoogleSearchURL(t *testing.T) {
	got, ok := referer("https://example.com/path")
	if !ok {
		t.Fatal("referer() ok = false, want true")
	}
	want := "https://www.google.com/search?q=example.com"
	if got != want {
		t.Errorf("referer() = %q, want %q", got, want)
	}
}

func TestRefererInvalidURL(t *testing.T) {
	_, ok := referer("://bad")
	if ok {
		t.Error("referer() ok = true for a malformed URL, want false")
	}
}

func TestToHeadersMapConvertsAllEntries(t *testing.T) {
	m := toHeadersMap(map[string]string{"Accept": "text/html", "X-Foo": "bar"})
	if len(m) != 2 {
		t.Fatalf("len(m) = %d, want 2", len(m))
	}
	if m["Accept"].Str() != "text/html" {
		t.Errorf("m[Accept] = %q, want %q", m["Accept"].Str(), "text/html")
	}
	if m["X-Foo"].Str() != "bar" {
		t.Errorf("m[X-Foo] = %q, want %q", m["X-Foo"].Str(), "bar")
	}
}

func TestToHeadersMapEmpty(t *testing.T) {
	m := toHeadersMap(nil)
	if len(m) != 0 {
		t.Errorf("len(m) = %d, want 0", len(m))
	}
}

func TestCallIfSetNilHooksIsNoop(t *testing.T) {
	err := callIfSet(nil, func(h *BrowserHooks) error {
		t.Fatal("fn should not be called when hooks is nil")
		return nil
	})
	if err != nil {
		t.Errorf("callIfSet(nil, ...) = %v, want nil", err)
	}
}

func TestCallIfSetInvokesFnWithHooks(t *testing.T) {
	hooks := &BrowserHooks{}
	var received *BrowserHooks
	wantErr := errors.New("hook failed")
	err := callIfSet(hooks, func(h *BrowserHooks) error {
		received = h
		return wantErr
	})
	if received != hooks {
		t.Error("callIfSet did not pass the hooks pointer through to fn")
	}
	if err != wantErr {
		t.Errorf("callIfSet() error = %v, want %v", err, wantErr)
	}
}
