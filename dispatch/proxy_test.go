package dispatch

import (
	"testing"
	"time"

	"github.com/use-agent/crawl4go/model"
)

func testProxies() []model.ProxyConfig {
	return []model.ProxyConfig{
		{Server: "p1"},
		{Server: "p2"},
		{Server: "p3"},
	}
}

func TestProxyPoolRoundRobin(t *testing.T) {
	p := NewProxyPool(testProxies(), model.ProxyRoundRobin)
	var got []string
	for i := 0; i < 6; i++ {
		proxy, ok := p.Next()
		if !ok {
			t.Fatalf("Next() returned ok=false")
		}
		got = append(got, proxy.Server)
	}
	want := []string{"p1", "p2", "p3", "p1", "p2", "p3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestProxyPoolEmpty(t *testing.T) {
	p := NewProxyPool(nil, model.ProxyRoundRobin)
	if _, ok := p.Next(); ok {
		t.Fatal("Next() on empty pool should return ok=false")
	}
}

func TestProxyPoolLeastUsed(t *testing.T) {
	p := NewProxyPool(testProxies(), model.ProxyLeastUsed)
	// Drive p1 and p2 up, p3 should then win.
	p.Next() // p1 used=1
	p.Next() // p2 used=1 (p1 had 1 already, tie -> first with min index wins: p1 is idx0, used=1; p2 idx1 used=0 -> chosen)
	// After two calls: p1 used=1, p2 used=1, p3 used=0
	proxy, _ := p.Next()
	if proxy.Server != "p3" {
		t.Errorf("expected p3 (least used), got %s", proxy.Server)
	}
}

func TestProxyPoolFailureAwareMarksUnhealthy(t *testing.T) {
	p := NewProxyPool(testProxies(), model.ProxyFailureAware)
	p.FailureThreshold = 1
	p.RecoveryTime = time.Hour
	frozen := time.Now()
	p.now = func() time.Time { return frozen }

	// Fail p1 twice, exceeding the threshold of 1.
	p.ReportFailure(model.ProxyConfig{Server: "p1"})
	p.ReportFailure(model.ProxyConfig{Server: "p1"})

	for i := 0; i < 10; i++ {
		proxy, ok := p.Next()
		if !ok {
			t.Fatal("Next() returned ok=false")
		}
		if proxy.Server == "p1" {
			t.Fatalf("p1 should be skipped while unhealthy, got picked")
		}
	}
}

func TestProxyPoolFailureAwareRecovers(t *testing.T) {
	p := NewProxyPool(testProxies(), model.ProxyFailureAware)
	p.FailureThreshold = 1
	p.RecoveryTime = time.Minute
	now := time.Now()
	p.now = func() time.Time { return now }

	p.ReportFailure(model.ProxyConfig{Server: "p1"})
	p.ReportFailure(model.ProxyConfig{Server: "p1"})

	if proxy, _ := p.Next(); proxy.Server == "p1" {
		t.Fatal("p1 should be unhealthy immediately after exceeding threshold")
	}

	// Advance past the recovery window.
	now = now.Add(2 * time.Minute)
	sawP1 := false
	for i := 0; i < 20; i++ {
		proxy, _ := p.Next()
		if proxy.Server == "p1" {
			sawP1 = true
		}
	}
	if !sawP1 {
		t.Fatal("p1 should be eligible again once RecoveryTime has elapsed")
	}
}

func TestProxyPoolAllUnhealthyDegradesGracefully(t *testing.T) {
	p := NewProxyPool(testProxies(), model.ProxyFailureAware)
	p.FailureThreshold = 0
	p.RecoveryTime = time.Hour
	for _, proxy := range testProxies() {
		p.ReportFailure(proxy)
	}
	// Every proxy is unhealthy; Next must still return something rather
	// than refusing to serve a proxy at all.
	if _, ok := p.Next(); !ok {
		t.Fatal("Next() should still serve a proxy when every one is unhealthy")
	}
}

func TestProxyPoolReportFailureUnknownServerIsNoop(t *testing.T) {
	p := NewProxyPool(testProxies(), model.ProxyFailureAware)
	p.ReportFailure(model.ProxyConfig{Server: "unknown"})
	if _, ok := p.Next(); !ok {
		t.Fatal("pool should remain usable after reporting an unknown proxy")
	}
}
