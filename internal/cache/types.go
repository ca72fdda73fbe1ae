package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// ErrItemTooLarge is returned when a value exceeds a tier's capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrClosed is returned by Put after Close.
	ErrClosed = errors.New("cache is closed")
)

// Level identifies a cache tier.
type Level int

const (
	LevelMemory Level = iota
	LevelDisk
)

func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats holds the counters of one tier.
type Stats struct {
	Capacity  int64
	Size      int64
	Items     int
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Config holds the cache settings.
type Config struct {
	// Dir holds the disk tier. Required.
	Dir string

	MemoryBytes int64
	DiskBytes   int64

	// CompressionLevel is the zstd level (1-22); 0 stores raw bytes.
	CompressionLevel int

	// TTL expires entries by age. Zero keeps entries until evicted.
	TTL time.Duration

	// CleanupInterval runs TTL cleanup in the background. Zero disables it;
	// expired entries are still dropped when the cache is opened.
	CleanupInterval time.Duration

	Logger *log.Logger
}

// DefaultConfig returns a 64MB memory tier and a 512MB disk tier with a
// week-long TTL.
func DefaultConfig() Config {
	return Config{
		MemoryBytes:      64 << 20,
		DiskBytes:        512 << 20,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Validate checks the config ranges.
func (c Config) Validate() error {
	if c.Dir == "" {
		return errors.New("cache directory is required")
	}
	if c.MemoryBytes < 0 || c.DiskBytes <= 0 {
		return fmt.Errorf("cache capacities must be positive (memory %d, disk %d)", c.MemoryBytes, c.DiskBytes)
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 22 {
		return fmt.Errorf("compression level must be between 0 and 22, got %d", c.CompressionLevel)
	}
	if c.TTL < 0 || c.CleanupInterval < 0 {
		return errors.New("cache durations cannot be negative")
	}
	return nil
}
