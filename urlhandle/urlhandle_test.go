package urlhandle

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		scheme Scheme
		html   string
		path   string
	}{
		{"http", "http://example.com", SchemeHTTP, "", ""},
		{"https", "https://example.com/a", SchemeHTTP, "", ""},
		{"raw", "raw:<html>hi</html>", SchemeRaw, "<html>hi</html>", ""},
		{"file", "file:///tmp/page.html", SchemeFile, "", "/tmp/page.html"},
		{"ws", "ws://localhost:9222/devtools/browser/abc", SchemeWS, "", ""},
		{"wss", "wss://localhost:9222/devtools/browser/abc", SchemeWS, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.input, err)
			}
			if h.Scheme != tt.scheme {
				t.Errorf("Scheme = %q, want %q", h.Scheme, tt.scheme)
			}
			if h.HTML != tt.html {
				t.Errorf("HTML = %q, want %q", h.HTML, tt.html)
			}
			if h.Path != tt.path {
				t.Errorf("Path = %q, want %q", h.Path, tt.path)
			}
		})
	}
}

func TestParseRejectsUnrecognizedScheme(t *testing.T) {
	if _, err := Parse("ftp://example.com"); err == nil {
		t.Fatal("expected an error for an unrecognized scheme")
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases scheme and host", "HTTP://Example.COM/path", "http://example.com/path"},
		{"strips default http port", "http://example.com:80/path", "http://example.com/path"},
		{"strips default https port", "https://example.com:443/path", "https://example.com/path"},
		{"keeps non-default port", "http://example.com:8080/path", "http://example.com:8080/path"},
		{"removes fragment", "http://example.com/path#section", "http://example.com/path"},
		{"sorts query keys", "http://example.com/?b=2&a=1", "http://example.com/?a=1&b=2"},
		{"non-http scheme unchanged", "ws://example.com/socket", "ws://example.com/socket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Canonicalize(tt.input)
			if got != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCanonicalizeIsIdempotentAcrossEquivalentURLs(t *testing.T) {
	a := Canonicalize("http://EXAMPLE.com:80/x?b=2&a=1#frag")
	b := Canonicalize("http://example.com/x?a=1&b=2")
	if a != b {
		t.Errorf("expected equivalent URLs to canonicalize to the same string, got %q and %q", a, b)
	}
}

func TestBaseDomain(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"www.example.com", "example.com"},
		{"example.com", "example.com"},
		{"sub.example.com", "example.com"},
		{"blog.example.co.uk", "example.co.uk"},
		{"example.co.uk", "example.co.uk"},
		{"localhost", "localhost"},
		{"example.com:8080", "example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := BaseDomain(tt.host); got != tt.want {
				t.Errorf("BaseDomain(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestSameBaseDomain(t *testing.T) {
	if !SameBaseDomain("www.example.com", "blog.example.com") {
		t.Error("expected subdomains of the same domain to match")
	}
	if SameBaseDomain("example.com", "other.com") {
		t.Error("expected different domains not to match")
	}
}

func TestFormatPort(t *testing.T) {
	tests := []struct {
		scheme string
		port   int
		want   string
	}{
		{"http", 0, ""},
		{"http", 80, ""},
		{"https", 443, ""},
		{"http", 8080, ":8080"},
		{"https", 8443, ":8443"},
	}
	for _, tt := range tests {
		if got := FormatPort(tt.scheme, tt.port); got != tt.want {
			t.Errorf("FormatPort(%q, %d) = %q, want %q", tt.scheme, tt.port, got, tt.want)
		}
	}
}
