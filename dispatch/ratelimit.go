package dispatch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/use-agent/crawl4go/model"
)

// hostLimiter pairs a per-host token bucket with a manual backoff deadline
// driven by observed 429 responses, and the jitter window applied to every
// wait per §4.4's mean_delay_s/max_range_s.
type hostLimiter struct {
	mu           sync.Mutex
	limiter      *rate.Limiter
	backoffUntil time.Time
	lastSeen     time.Time
}

// RateLimiter enforces a per-host request cadence: a token bucket plus
// randomized jitter in [meanDelayS-maxRangeS, meanDelayS+maxRangeS], and a
// manual cooldown window triggered by BackOff on a 429 response. Modeled on
// the per-identity token-bucket limiter pattern, generalized to per-host and
// extended with jitter and explicit backoff since arun_many has no HTTP
// middleware layer to hang a limiter off of.
type RateLimiter struct {
	mu         sync.Mutex
	hosts      map[string]*hostLimiter
	meanDelayS float64
	maxRangeS  float64
	stop       chan struct{}
}

// NewRateLimiter builds a RateLimiter. meanDelayS/maxRangeS come from
// RunConfig.MeanDelayS/MaxRangeS; both zero disables jitter, leaving only
// the token bucket's own pacing.
func NewRateLimiter(meanDelayS, maxRangeS float64) *RateLimiter {
	rl := &RateLimiter{
		hosts:      make(map[string]*hostLimiter),
		meanDelayS: meanDelayS,
		maxRangeS:  maxRangeS,
		stop:       make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Close stops the background eviction goroutine.
func (rl *RateLimiter) Close() { close(rl.stop) }

func (rl *RateLimiter) get(host string) *hostLimiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	h, ok := rl.hosts[host]
	if !ok {
		// One request per mean delay (or effectively unthrottled when
		// meanDelayS is 0), burst of 1 so jitter still spaces requests out.
		limit := rate.Inf
		if rl.meanDelayS > 0 {
			limit = rate.Every(time.Duration(rl.meanDelayS * float64(time.Second)))
		}
		h = &hostLimiter{limiter: rate.NewLimiter(limit, 1)}
		rl.hosts[host] = h
	}
	h.lastSeen = time.Now()
	return h
}

// Wait blocks until host's token bucket admits a request, any active
// backoff window has elapsed, and a random jitter delay has passed.
func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	h := rl.get(host)

	h.mu.Lock()
	backoff := h.backoffUntil
	h.mu.Unlock()
	if wait := time.Until(backoff); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := h.limiter.Wait(ctx); err != nil {
		return model.NewCrawlError(model.KindRateLimited, "rate limiter wait failed for "+host, err)
	}

	if jitter := rl.jitter(); jitter > 0 {
		select {
		case <-time.After(jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (rl *RateLimiter) jitter() time.Duration {
	if rl.maxRangeS <= 0 {
		return 0
	}
	delta := (rand.Float64()*2 - 1) * rl.maxRangeS
	d := rl.meanDelayS + delta
	if d < 0 {
		d = 0
	}
	return time.Duration(d * float64(time.Second))
}

// BackOff records a cooldown window for host after a 429 response, per
// §4.4's rate-limited-response handling.
func (rl *RateLimiter) BackOff(host string, cooldown time.Duration) {
	h := rl.get(host)
	h.mu.Lock()
	h.backoffUntil = time.Now().Add(cooldown)
	h.mu.Unlock()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-1 * time.Hour)
			rl.mu.Lock()
			for host, h := range rl.hosts {
				if h.lastSeen.Before(cutoff) {
					delete(rl.hosts, host)
				}
			}
			rl.mu.Unlock()
		}
	}
}
