package dispatch

import (
	"math/rand"
	"sync"
	"time"

	"github.com/use-agent/crawl4go/model"
)

// ProxyPool selects one of a configured set of proxies per §4.4's rotation
// strategies, tracking per-proxy use counts and failure counts so
// least_used and failure_aware can make an informed pick. failure_aware
// additionally marks a proxy unhealthy (skipped) for RecoveryTime once its
// failure count exceeds FailureThreshold, per §4.4.
type ProxyPool struct {
	mu        sync.Mutex
	proxies   []model.ProxyConfig
	strategy  model.ProxyRotationStrategy
	nextIndex int
	uses      []int
	failures  []int
	unhealthy []time.Time // zero value means healthy

	// FailureThreshold and RecoveryTime configure failure_aware. NewProxyPool
	// seeds sane defaults (3 failures, 30s); a zero FailureThreshold set
	// afterward means any single failure marks a proxy unhealthy.
	FailureThreshold int
	RecoveryTime     time.Duration

	now func() time.Time
}

// NewProxyPool builds a ProxyPool. An empty proxies list makes every Next
// call return (nil, false).
func NewProxyPool(proxies []model.ProxyConfig, strategy model.ProxyRotationStrategy) *ProxyPool {
	return &ProxyPool{
		proxies:          proxies,
		strategy:         strategy,
		uses:             make([]int, len(proxies)),
		failures:         make([]int, len(proxies)),
		unhealthy:        make([]time.Time, len(proxies)),
		FailureThreshold: 3,
		RecoveryTime:     30 * time.Second,
		now:              time.Now,
	}
}

// Next selects the next proxy per the configured strategy, skipping any
// proxy currently marked unhealthy by failure_aware unless every proxy is
// unhealthy (in which case the pool degrades to serving the least-bad one
// rather than failing every task outright).
func (p *ProxyPool) Next() (*model.ProxyConfig, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.proxies) == 0 {
		return nil, false
	}

	healthy := p.healthyIndices()

	var idx int
	switch p.strategy {
	case model.ProxyRandom:
		idx = healthy[rand.Intn(len(healthy))]
	case model.ProxyLeastUsed:
		idx = minIndex(p.uses, healthy)
	case model.ProxyFailureAware:
		idx = p.leastFailureProne(healthy)
	default: // round_robin
		idx = p.nextRoundRobin(healthy)
	}

	p.uses[idx]++
	proxy := p.proxies[idx]
	return &proxy, true
}

// healthyIndices returns indices not currently in their recovery window,
// falling back to all indices if every proxy is unhealthy. A proxy whose
// recovery window has elapsed is marked healthy again with its failure
// count cleared.
func (p *ProxyPool) healthyIndices() []int {
	now := p.now()
	var healthy []int
	for i, until := range p.unhealthy {
		if !until.IsZero() && now.After(until) {
			p.unhealthy[i] = time.Time{}
			p.failures[i] = 0
		}
		if p.unhealthy[i].IsZero() {
			healthy = append(healthy, i)
		}
	}
	if len(healthy) == 0 {
		healthy = make([]int, len(p.proxies))
		for i := range healthy {
			healthy[i] = i
		}
	}
	return healthy
}

func (p *ProxyPool) nextRoundRobin(healthy []int) int {
	for i := 0; i < len(p.proxies); i++ {
		cand := p.nextIndex
		p.nextIndex = (p.nextIndex + 1) % len(p.proxies)
		if containsInt(healthy, cand) {
			return cand
		}
	}
	return healthy[0]
}

// ReportFailure marks proxy as having just failed, so failure_aware
// deprioritizes it on subsequent picks, marking it unhealthy for
// RecoveryTime once FailureThreshold is exceeded.
func (p *ProxyPool) ReportFailure(proxy model.ProxyConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, cand := range p.proxies {
		if cand.Server == proxy.Server {
			p.failures[i]++
			if p.failures[i] > p.FailureThreshold {
				p.unhealthy[i] = p.now().Add(p.RecoveryTime)
			}
			return
		}
	}
}

func (p *ProxyPool) leastFailureProne(healthy []int) int {
	best := healthy[0]
	for _, i := range healthy[1:] {
		if p.failures[i] < p.failures[best] ||
			(p.failures[i] == p.failures[best] && p.uses[i] < p.uses[best]) {
			best = i
		}
	}
	return best
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func minIndex(counts []int, candidates []int) int {
	best := candidates[0]
	for _, i := range candidates[1:] {
		if counts[i] < counts[best] {
			best = i
		}
	}
	return best
}
