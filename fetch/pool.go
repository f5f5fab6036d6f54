package fetch

import (
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
)

// PageHandle wraps a pooled *rod.Page with health-tracking metadata driving
// retirement decisions, adapted from the generic adaptive pool entry to
// hold the page directly rather than an opaque ID.
type PageHandle struct {
	ID      int64
	Page    *rod.Page
	errScore float64
	useCount int
	created  time.Time
	mu       sync.Mutex
}

func newPageHandle(id int64, page *rod.Page) *PageHandle {
	return &PageHandle{ID: id, Page: page, created: time.Now()}
}

// RecordSuccess decreases the error score, floored at 0.
func (h *PageHandle) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore = math.Max(0, h.errScore-0.5)
}

// RecordFailure increases the error score.
func (h *PageHandle) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore += 1.0
}

// ShouldRetire reports whether the page has accumulated enough errors, uses,
// or age to warrant replacement.
func (h *PageHandle) ShouldRetire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.errScore >= 3.0 {
		return true
	}
	if h.useCount >= 50 {
		return true
	}
	if time.Since(h.created) >= 50*time.Minute {
		return true
	}
	return false
}

// PagePoolConfig holds the adaptive page pool's sizing and scaling knobs,
// backing BrowserConfig.UsePersistentContext session-less crawling.
type PagePoolConfig struct {
	MinPages     int
	HardMax      int
	MemThreshold float64 // 0.0-1.0, fraction of heap-in-use/heap-sys
	ScaleStep    float64 // 0.0-1.0, fraction of pool size to grow/shrink by
}

// PageFactory opens a new browser page.
type PageFactory func() (*rod.Page, error)

// PageDestroyer closes a page.
type PageDestroyer func(page *rod.Page)

// PagePool manages a pool of browser pages with automatic scaling based on
// memory pressure and utilization. Pages pinned to a session (session_id
// set on the RunConfig) bypass the pool entirely per §4.6 and are owned
// directly by the SessionRegistry instead.
type PagePool struct {
	cfg       PagePoolConfig
	factory   PageFactory
	destroyer PageDestroyer

	idle    chan *PageHandle
	mu      sync.Mutex
	all     map[int64]*PageHandle
	nextID  atomic.Int64
	active  atomic.Int32
	stopped chan struct{}
}

// NewPagePool creates and starts an adaptive pool, pre-creating MinPages
// pages via factory.
func NewPagePool(cfg PagePoolConfig, factory PageFactory, destroyer PageDestroyer) *PagePool {
	if cfg.MinPages < 1 {
		cfg.MinPages = 1
	}
	if cfg.HardMax < cfg.MinPages {
		cfg.HardMax = cfg.MinPages
	}
	if cfg.MemThreshold <= 0 {
		cfg.MemThreshold = 0.9
	}
	if cfg.ScaleStep <= 0 {
		cfg.ScaleStep = 0.05
	}

	pp := &PagePool{
		cfg:       cfg,
		factory:   factory,
		destroyer: destroyer,
		idle:      make(chan *PageHandle, cfg.HardMax),
		all:       make(map[int64]*PageHandle),
		stopped:   make(chan struct{}),
	}

	for i := 0; i < cfg.MinPages; i++ {
		h, err := pp.createHandle()
		if err != nil {
			slog.Warn("page pool: failed to pre-create page", "error", err)
			continue
		}
		pp.idle <- h
	}

	go pp.scalingLoop()
	return pp
}

// Get acquires a page handle, blocking until one is available if the pool
// is already at HardMax and none are idle.
func (pp *PagePool) Get() (*PageHandle, error) {
	select {
	case h := <-pp.idle:
		pp.active.Add(1)
		return h, nil
	default:
	}

	pp.mu.Lock()
	if len(pp.all) < pp.cfg.HardMax {
		h, err := pp.createHandleLocked()
		pp.mu.Unlock()
		if err == nil {
			pp.active.Add(1)
			return h, nil
		}
	} else {
		pp.mu.Unlock()
	}

	h := <-pp.idle
	pp.active.Add(1)
	return h, nil
}

// Put returns a page handle to the pool. A handle past its retirement
// threshold is destroyed and replaced if the pool is at or below MinPages.
func (pp *PagePool) Put(h *PageHandle, success bool) {
	pp.active.Add(-1)

	if success {
		h.RecordSuccess()
	} else {
		h.RecordFailure()
	}

	if h.ShouldRetire() {
		slog.Debug("page pool: retiring page", "id", h.ID, "errScore", h.errScore, "useCount", h.useCount)
		pp.destroyHandle(h)

		pp.mu.Lock()
		if len(pp.all) < pp.cfg.MinPages {
			if newH, err := pp.createHandleLocked(); err == nil {
				pp.mu.Unlock()
				pp.idle <- newH
				return
			}
		}
		pp.mu.Unlock()
		return
	}

	pp.idle <- h
}

// Size returns the total number of live handles.
func (pp *PagePool) Size() int {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return len(pp.all)
}

// ActiveCount returns the number of currently checked-out handles.
func (pp *PagePool) ActiveCount() int {
	return int(pp.active.Load())
}

// Stop shuts down the scaling goroutine and destroys all pages.
func (pp *PagePool) Stop() {
	close(pp.stopped)

drainLoop:
	for {
		select {
		case h := <-pp.idle:
			pp.destroyHandle(h)
		default:
			break drainLoop
		}
	}

	pp.mu.Lock()
	for id, h := range pp.all {
		pp.destroyer(h.Page)
		delete(pp.all, id)
	}
	pp.mu.Unlock()
}

func (pp *PagePool) createHandle() (*PageHandle, error) {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return pp.createHandleLocked()
}

func (pp *PagePool) createHandleLocked() (*PageHandle, error) {
	page, err := pp.factory()
	if err != nil {
		return nil, err
	}
	id := pp.nextID.Add(1)
	h := newPageHandle(id, page)
	pp.all[id] = h
	return h, nil
}

func (pp *PagePool) destroyHandle(h *PageHandle) {
	pp.mu.Lock()
	delete(pp.all, h.ID)
	pp.mu.Unlock()
	pp.destroyer(h.Page)
}

func (pp *PagePool) scalingLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-pp.stopped:
			return
		case <-ticker.C:
			pp.scaleCheck()
		}
	}
}

func (pp *PagePool) scaleCheck() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var memPressure float64
	if m.HeapSys > 0 {
		memPressure = float64(m.HeapInuse) / float64(m.HeapSys)
	}

	pp.mu.Lock()
	totalSize := len(pp.all)
	pp.mu.Unlock()

	active := int(pp.active.Load())
	var activeRate float64
	if totalSize > 0 {
		activeRate = float64(active) / float64(totalSize)
	}

	if memPressure > pp.cfg.MemThreshold {
		shrinkCount := int(math.Ceil(float64(totalSize) * pp.cfg.ScaleStep))
		for i := 0; i < shrinkCount; i++ {
			pp.mu.Lock()
			if len(pp.all) <= pp.cfg.MinPages {
				pp.mu.Unlock()
				break
			}
			pp.mu.Unlock()

			select {
			case h := <-pp.idle:
				slog.Debug("page pool: shrinking, retiring page", "id", h.ID)
				pp.destroyHandle(h)
			default:
				return
			}
		}
	} else if activeRate > 0.8 {
		growCount := int(math.Ceil(float64(totalSize) * pp.cfg.ScaleStep))
		for i := 0; i < growCount; i++ {
			pp.mu.Lock()
			if len(pp.all) >= pp.cfg.HardMax {
				pp.mu.Unlock()
				break
			}
			h, err := pp.createHandleLocked()
			pp.mu.Unlock()
			if err != nil {
				slog.Warn("page pool: failed to grow", "error", err)
				break
			}
			slog.Debug("page pool: grew pool", "id", h.ID)
			pp.idle <- h
		}
	}
}
