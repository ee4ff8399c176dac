package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

// Collector is an interface for metrics collectors.
type Collector interface {
	// Collect collects metrics.
	Collect()
	// Start starts the collector.
	Start(ctx context.Context)
	// Stop stops the collector.
	Stop()
}

// StateSource reports the bank state sampled by BankCollector.
type StateSource interface {
	Slot() types.Slot
	AccountsCount() uint64
}

// BankCollector periodically samples bank state into gauges.
type BankCollector struct {
	metrics  *Metrics
	source   StateSource
	interval time.Duration
	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewBankCollector creates a new bank collector.
func NewBankCollector(m *Metrics, source StateSource, interval time.Duration) *BankCollector {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &BankCollector{
		metrics:  m,
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Collect samples the slot, account count and uptime.
func (bc *BankCollector) Collect() {
	if bc.metrics == nil {
		return
	}
	bc.metrics.Uptime.Set(time.Since(bc.metrics.startTime).Seconds())
	if bc.source == nil {
		return
	}
	bc.metrics.CurrentSlot.Set(float64(bc.source.Slot()))
	bc.metrics.AccountsCount.Set(float64(bc.source.AccountsCount()))
}

// Start starts periodic collection.
func (bc *BankCollector) Start(ctx context.Context) {
	if bc.running.Swap(true) {
		return // Already running
	}

	go func() {
		ticker := time.NewTicker(bc.interval)
		defer ticker.Stop()

		// Collect immediately
		bc.Collect()

		for {
			select {
			case <-ctx.Done():
				bc.running.Store(false)
				return
			case <-bc.stopCh:
				bc.running.Store(false)
				return
			case <-ticker.C:
				bc.Collect()
			}
		}
	}()
}

// Stop stops the collector.
func (bc *BankCollector) Stop() {
	bc.stopOnce.Do(func() { close(bc.stopCh) })
}

// CollectorManager manages multiple collectors.
type CollectorManager struct {
	mu         sync.RWMutex
	collectors []Collector
	ctx        context.Context
	cancel     context.CancelFunc
	running    bool
}

// NewCollectorManager creates a new collector manager.
func NewCollectorManager() *CollectorManager {
	return &CollectorManager{
		collectors: make([]Collector, 0),
	}
}

// Add adds a collector to the manager.
func (cm *CollectorManager) Add(c Collector) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.collectors = append(cm.collectors, c)
}

// Start starts all collectors.
func (cm *CollectorManager) Start() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.running {
		return
	}

	cm.ctx, cm.cancel = context.WithCancel(context.Background())
	cm.running = true

	for _, c := range cm.collectors {
		c.Start(cm.ctx)
	}
}

// Stop stops all collectors.
func (cm *CollectorManager) Stop() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.running {
		return
	}

	cm.cancel()
	cm.running = false

	for _, c := range cm.collectors {
		c.Stop()
	}
}

// CollectAll triggers collection on all collectors.
func (cm *CollectorManager) CollectAll() {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for _, c := range cm.collectors {
		c.Collect()
	}
}
