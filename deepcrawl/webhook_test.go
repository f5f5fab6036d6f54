package deepcrawl

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/crawl4go/model"
)

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition not met before timeout")
	}
}

func TestWebhookNotifierDeliversSignedPayload(t *testing.T) {
	var (
		mu        sync.Mutex
		gotBody   []byte
		gotSig    string
		delivered bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotBody = body
		gotSig = r.Header.Get("X-Crawl4go-Signature")
		delivered = true
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "sekret", "job-1")
	n.RetryStep = []time.Duration{0}
	n.deliverAsync(model.DeepCrawlSnapshot{Stats: model.DeepCrawlStats{PagesCrawled: 3}})

	waitForCondition(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered
	})

	mu.Lock()
	defer mu.Unlock()
	var event webhookEvent
	if err := json.Unmarshal(gotBody, &event); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if event.JobID != "job-1" || event.Type != "deepcrawl.state_change" {
		t.Errorf("event = %+v, want job_id=job-1 type=deepcrawl.state_change", event)
	}
	if event.Snapshot.Stats.PagesCrawled != 3 {
		t.Errorf("Snapshot.Stats.PagesCrawled = %d, want 3", event.Snapshot.Stats.PagesCrawled)
	}
	if gotSig == "" {
		t.Error("signature header missing despite a non-empty secret")
	}
	if _, err := hex.DecodeString(gotSig[len("sha256="):]); err != nil {
		t.Errorf("signature is not valid hex: %v", err)
	}
}

func TestWebhookNotifierNoSecretOmitsSignature(t *testing.T) {
	var mu sync.Mutex
	var gotSig string
	var delivered bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotSig = r.Header.Get("X-Crawl4go-Signature")
		delivered = true
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "", "job-2")
	n.RetryStep = []time.Duration{0}
	n.deliverAsync(model.DeepCrawlSnapshot{})

	waitForCondition(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered
	})

	mu.Lock()
	defer mu.Unlock()
	if gotSig != "" {
		t.Errorf("signature header = %q, want empty when no secret is configured", gotSig)
	}
}

func TestWebhookNotifierRetriesOnFailureThenSucceeds(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "", "job-3")
	n.RetryStep = []time.Duration{0, 10 * time.Millisecond}
	n.deliverAsync(model.DeepCrawlSnapshot{})

	waitForCondition(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 2
	})
}

func TestWebhookNotifierStateChangeFuncWiresSnapshot(t *testing.T) {
	var mu sync.Mutex
	var gotPagesCrawled int
	delivered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event webhookEvent
		json.NewDecoder(r.Body).Decode(&event)
		mu.Lock()
		gotPagesCrawled = event.Snapshot.Stats.PagesCrawled
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		close(delivered)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "", "job-4")
	n.RetryStep = []time.Duration{0}
	fn := n.StateChangeFunc()
	fn(model.DeepCrawlSnapshot{Stats: model.DeepCrawlStats{PagesCrawled: 7}})

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("webhook was not delivered in time")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotPagesCrawled != 7 {
		t.Errorf("PagesCrawled = %d, want 7", gotPagesCrawled)
	}
}
