package deepcrawl

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/crawl4go/model"
)

// webhookEvent is the payload delivered to a WebhookNotifier's endpoint.
type webhookEvent struct {
	Type      string                  `json:"type"` // always "deepcrawl.state_change"
	JobID     string                  `json:"job_id"`
	Timestamp int64                   `json:"timestamp"`
	Snapshot  model.DeepCrawlSnapshot `json:"snapshot"`
}

// WebhookNotifier adapts the teacher's HMAC-signed async webhook delivery
// into a model.DeepCrawlStateChangeFunc, so callers who already have a
// webhook receiver for job completion can reuse it for deep-crawl
// checkpoints instead of writing their own StateChangeFunc.
type WebhookNotifier struct {
	URL       string
	Secret    string
	JobID     string
	Client    *http.Client
	RetryStep []time.Duration // delivery retry backoff; defaults to {0, 1s, 5s, 30s}
	Now       func() time.Time
}

// NewWebhookNotifier builds a WebhookNotifier posting to url, signed with
// secret when non-empty (an empty secret disables the X-Crawl4go-Signature
// header rather than sending an unsigned-but-present header).
func NewWebhookNotifier(url, secret, jobID string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:    url,
		Secret: secret,
		JobID:  jobID,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

// StateChangeFunc returns a model.DeepCrawlStateChangeFunc that delivers
// each snapshot asynchronously, retrying on failure. Suitable for direct
// assignment to DeepCrawlStrategyConfig.OnStateChange.
func (n *WebhookNotifier) StateChangeFunc() model.DeepCrawlStateChangeFunc {
	return func(snapshot model.DeepCrawlSnapshot) {
		n.deliverAsync(snapshot)
	}
}

func (n *WebhookNotifier) deliverAsync(snapshot model.DeepCrawlSnapshot) {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	event := &webhookEvent{
		Type:      "deepcrawl.state_change",
		JobID:     n.JobID,
		Timestamp: now().Unix(),
		Snapshot:  snapshot,
	}

	delays := n.RetryStep
	if delays == nil {
		delays = []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}
	}

	go func() {
		for attempt, delay := range delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := n.deliver(ctx, event)
			cancel()
			if err == nil {
				slog.Info("deepcrawl webhook delivered", "url", n.URL, "job_id", n.JobID, "attempt", attempt+1, "pages_crawled", snapshot.Stats.PagesCrawled)
				return
			}
			slog.Warn("deepcrawl webhook delivery failed", "url", n.URL, "job_id", n.JobID, "attempt", attempt+1, "error", err)
		}
		slog.Error("deepcrawl webhook delivery exhausted all retries", "url", n.URL, "job_id", n.JobID)
	}()
}

func (n *WebhookNotifier) deliver(ctx context.Context, event *webhookEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("deepcrawl webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("deepcrawl webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "crawl4go-webhook/1.0")

	if n.Secret != "" {
		mac := hmac.New(sha256.New, []byte(n.Secret))
		mac.Write(body)
		req.Header.Set("X-Crawl4go-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("deepcrawl webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("deepcrawl webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
