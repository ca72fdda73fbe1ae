package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Manager layers the memory and disk tiers. It satisfies synth.Cache.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache
	cfg    Config
	log    *log.Logger

	stop chan struct{}
	wg   sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	promotions  int64
	cleanupRuns int64
}

// New opens the cache in cfg.Dir and drops expired entries.
func New(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}

	disk, err := NewDiskCache(cfg.Dir, cfg.DiskBytes, cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to open disk cache: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	m := &Manager{
		memory: NewMemoryCache(cfg.MemoryBytes),
		disk:   disk,
		cfg:    cfg,
		log:    logger.WithPrefix("cache"),
		stop:   make(chan struct{}),
	}

	m.cleanup()
	if cfg.CleanupInterval > 0 && cfg.TTL > 0 {
		m.wg.Add(1)
		go m.cleanupLoop()
	}
	return m, nil
}

// Get checks memory, then disk. Disk hits are promoted to memory.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.memory.Get(key); ok {
		return data, true
	}
	data, ok := m.disk.Get(key)
	if !ok {
		return nil, false
	}

	_ = m.memory.Put(key, data)
	m.mu.Lock()
	m.promotions++
	m.mu.Unlock()
	return data, true
}

// Put stores value in both tiers. Values too large for memory still go to
// disk.
func (m *Manager) Put(key string, value []byte) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if err := m.memory.Put(key, value); err != nil && err != ErrItemTooLarge {
		return fmt.Errorf("memory tier: %w", err)
	}
	if err := m.disk.Put(key, value); err != nil {
		return fmt.Errorf("disk tier: %w", err)
	}
	return nil
}

// Delete removes key from both tiers.
func (m *Manager) Delete(key string) {
	m.memory.Delete(key)
	m.disk.Delete(key)
}

// Stats returns the per-tier counters.
func (m *Manager) Stats() map[Level]Stats {
	return map[Level]Stats{
		LevelMemory: m.memory.Stats(),
		LevelDisk:   m.disk.Stats(),
	}
}

// Close stops background cleanup and saves the disk index.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stop)
	m.wg.Wait()

	stats := m.Stats()
	m.mu.Lock()
	promotions, runs := m.promotions, m.cleanupRuns
	m.mu.Unlock()
	m.log.Debug("Closing cache",
		"memory_hit_rate", stats[LevelMemory].HitRate(),
		"disk_hit_rate", stats[LevelDisk].HitRate(),
		"promotions", promotions,
		"cleanup_runs", runs)

	if err := m.disk.Close(); err != nil {
		return fmt.Errorf("failed to close disk cache: %w", err)
	}
	return nil
}

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) cleanup() {
	if m.cfg.TTL <= 0 {
		return
	}
	m.mu.Lock()
	m.cleanupRuns++
	m.mu.Unlock()

	removed := m.disk.RemoveOlderThan(time.Now().Add(-m.cfg.TTL))
	pruned := m.memory.Prune(m.cfg.TTL)
	if removed+pruned > 0 {
		m.log.Debug("Expired cached segments", "disk", removed, "memory", pruned)
	}
}
