package dispatch

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// MemoryMonitor samples this process's RSS periodically and reports whether
// the dispatcher should admit more concurrent tasks, implementing §4.4's
// memory-adaptive throttling. No library in the example pack reads
// process-level memory directly; gopsutil is the ecosystem's standard
// choice and is already a teacher dependency.
type MemoryMonitor struct {
	proc        *process.Process
	thresholdMB float64
	currentMB   atomic.Uint64 // megabytes, truncated; sub-MB precision isn't needed for admission decisions
	stop        chan struct{}
}

// NewMemoryMonitor starts sampling this process's memory every interval.
// Admission is refused once usage exceeds thresholdMB; thresholdMB <= 0
// disables throttling.
func NewMemoryMonitor(thresholdMB float64, interval time.Duration) (*MemoryMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	m := &MemoryMonitor{proc: proc, thresholdMB: thresholdMB, stop: make(chan struct{})}
	m.sample()
	if interval > 0 {
		go m.sampleLoop(interval)
	}
	return m, nil
}

// Close stops the background sampling goroutine.
func (m *MemoryMonitor) Close() { close(m.stop) }

func (m *MemoryMonitor) sample() {
	info, err := m.proc.MemoryInfo()
	if err != nil || info == nil {
		return
	}
	mb := float64(info.RSS) / (1024 * 1024)
	m.currentMB.Store(uint64(mb))
}

func (m *MemoryMonitor) sampleLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

// CurrentMB returns the most recently sampled RSS, in megabytes.
func (m *MemoryMonitor) CurrentMB() float64 {
	return float64(m.currentMB.Load())
}

// Allow reports whether the dispatcher may admit another task. Always true
// when thresholdMB is disabled.
func (m *MemoryMonitor) Allow() bool {
	if m.thresholdMB <= 0 {
		return true
	}
	return m.CurrentMB() < m.thresholdMB
}
