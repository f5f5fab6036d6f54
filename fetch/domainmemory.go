package fetch

import (
	"sync"
	"time"
)

// domainMemoryEntry stores the strategy that last succeeded for a domain.
type domainMemoryEntry struct {
	strategyName string
	expiresAt    time.Time
}

// DomainMemory remembers which fetch strategy (http or browser) last
// succeeded for a domain, so the orchestrator can try that strategy first
// when both are eligible. It never overrides §4.1's HTTP-eligibility rule,
// only the order strategies are attempted in when more than one applies.
type DomainMemory struct {
	store sync.Map // domain (string) -> *domainMemoryEntry
	ttl   time.Duration
	done  chan struct{}
}

// NewDomainMemory creates a DomainMemory with the given TTL (one hour when
// ttl <= 0) and starts a background goroutine that prunes expired entries
// every hour.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	if ttl <= 0 {
		ttl = time.Hour
	}
	dm := &DomainMemory{
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go dm.cleanupLoop()
	return dm
}

// Get returns the remembered strategy name for a domain, or "" if not
// found or expired.
func (dm *DomainMemory) Get(domain string) string {
	val, ok := dm.store.Load(domain)
	if !ok {
		return ""
	}
	entry := val.(*domainMemoryEntry)
	if time.Now().After(entry.expiresAt) {
		dm.store.Delete(domain)
		return ""
	}
	return entry.strategyName
}

// Set records which strategy succeeded for a domain.
func (dm *DomainMemory) Set(domain, strategyName string) {
	dm.store.Store(domain, &domainMemoryEntry{
		strategyName: strategyName,
		expiresAt:    time.Now().Add(dm.ttl),
	})
}

// Delete removes the memory for a domain, e.g. after the remembered
// strategy fails.
func (dm *DomainMemory) Delete(domain string) {
	dm.store.Delete(domain)
}

// Stop terminates the background cleanup goroutine.
func (dm *DomainMemory) Stop() {
	close(dm.done)
}

func (dm *DomainMemory) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-dm.done:
			return
		case <-ticker.C:
			now := time.Now()
			dm.store.Range(func(key, value any) bool {
				entry := value.(*domainMemoryEntry)
				if now.After(entry.expiresAt) {
					dm.store.Delete(key)
				}
				return true
			})
		}
	}
}
