package model

import "testing"

func TestCacheModeReadsWrites(t *testing.T) {
	tests := []struct {
		mode       CacheMode
		wantReads  bool
		wantWrites bool
	}{
		{CacheEnabled, true, true},
		{CacheBypass, false, true},
		{CacheDisabled, false, false},
		{CacheReadOnly, true, false},
		{CacheWriteOnly, false, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			if got := tt.mode.CacheReads(); got != tt.wantReads {
				t.Errorf("CacheReads() = %v, want %v", got, tt.wantReads)
			}
			if got := tt.mode.CacheWrites(); got != tt.wantWrites {
				t.Errorf("CacheWrites() = %v, want %v", got, tt.wantWrites)
			}
		})
	}
}

func TestURLMatcherGlob(t *testing.T) {
	m := URLMatcher{Glob: "https://example.com/blog/*"}
	if !m.Matches("https://example.com/blog/post-1") {
		t.Error("expected glob to match a path under /blog/")
	}
	if m.Matches("https://example.com/docs/post-1") {
		t.Error("expected glob not to match a path outside /blog/")
	}
}

func TestURLMatcherZeroValueMatchesEverything(t *testing.T) {
	var m URLMatcher
	if !m.Matches("https://anything.example/") {
		t.Error("expected zero-value URLMatcher to be a catch-all")
	}
}

func TestURLMatcherPredicate(t *testing.T) {
	m := URLMatcher{Predicate: func(url string) bool { return len(url) > 10 }}
	if !m.Matches("https://example.com") {
		t.Error("expected predicate to match a long url")
	}
	if m.Matches("short") {
		t.Error("expected predicate to reject a short url")
	}
}

func TestURLMatcherListAND(t *testing.T) {
	m := URLMatcher{
		Mode: MatchAND,
		List: []URLMatcher{
			{Glob: "https://example.com/*"},
			{Glob: "*/blog/*"},
		},
	}
	if !m.Matches("https://example.com/blog/post") {
		t.Error("expected AND match when both globs match")
	}
	if m.Matches("https://example.com/docs/post") {
		t.Error("expected AND match to fail when only one glob matches")
	}
}

func TestURLMatcherListOR(t *testing.T) {
	m := URLMatcher{
		List: []URLMatcher{
			{Glob: "*/blog/*"},
			{Glob: "*/docs/*"},
		},
	}
	if !m.Matches("https://example.com/docs/post") {
		t.Error("expected OR match when any glob matches")
	}
	if m.Matches("https://example.com/other/post") {
		t.Error("expected OR match to fail when no glob matches")
	}
}

func TestRunConfigRequiresBrowser(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(*RunConfig)
		want bool
	}{
		{"plain default", func(c *RunConfig) {}, false},
		{"js_code", func(c *RunConfig) { c.JSCode = []string{"console.log(1)"} }, true},
		{"wait_for", func(c *RunConfig) { c.WaitFor = "css:.loaded" }, true},
		{"screenshot", func(c *RunConfig) { c.Screenshot = true }, true},
		{"pdf", func(c *RunConfig) { c.PDF = true }, true},
		{"mhtml", func(c *RunConfig) { c.CaptureMHTML = true }, true},
		{"session_id", func(c *RunConfig) { c.SessionID = "abc" }, true},
		{"virtual_scroll", func(c *RunConfig) { c.VirtualScrollConfig = &VirtualScrollConfig{} }, true},
		{"scan_full_page", func(c *RunConfig) { c.ScanFullPage = true }, true},
		{"js_only", func(c *RunConfig) { c.JSOnly = true }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults().Clone(tt.cfg)
			if got := cfg.RequiresBrowser(); got != tt.want {
				t.Errorf("RequiresBrowser() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunConfigCloneExpandsMagic(t *testing.T) {
	cfg := Defaults().Clone(func(c *RunConfig) { c.Magic = true })
	if !cfg.RemoveOverlayElements || !cfg.SimulateUser || !cfg.OverrideNavigator {
		t.Errorf("expected magic=true to expand into its three flags, got %+v", cfg)
	}
}

func TestRunConfigCloneDoesNotMutateReceiver(t *testing.T) {
	base := Defaults()
	base.JSCode = []string{"a"}
	clone := base.Clone(func(c *RunConfig) { c.JSCode = append(c.JSCode, "b") })

	if len(base.JSCode) != 1 {
		t.Fatalf("expected base.JSCode to be unaffected by clone mutation, got %v", base.JSCode)
	}
	if len(clone.JSCode) != 2 {
		t.Fatalf("expected clone.JSCode to have both entries, got %v", clone.JSCode)
	}
}
