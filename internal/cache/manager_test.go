package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testConfig(dir string) Config {
	cfg := DefaultConfig()
	cfg.Dir = dir
	cfg.MemoryBytes = 1 << 16
	cfg.DiskBytes = 1 << 20
	cfg.CleanupInterval = 0
	return cfg
}

func TestManager_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	value := bytes.Repeat([]byte{0, 1, 2, 3}, 2048) // compressible

	m, err := New(testConfig(dir))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := m.Put("seg", value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := New(testConfig(dir))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer reopened.Close()

	got, ok := reopened.Get("seg")
	if !ok || !bytes.Equal(got, value) {
		t.Fatalf("value did not survive reopen (ok=%v, %d bytes)", ok, len(got))
	}

	stats := reopened.Stats()
	if stats[LevelDisk].Hits != 1 {
		t.Errorf("disk hits = %d, want 1", stats[LevelDisk].Hits)
	}
	if stats[LevelDisk].Size >= int64(len(value)) {
		t.Errorf("disk entry was not compressed: %d bytes", stats[LevelDisk].Size)
	}

	// Promoted to memory, so the second lookup stays off disk.
	reopened.Get("seg")
	if reopened.Stats()[LevelDisk].Hits != 1 {
		t.Error("second lookup went to disk")
	}
}

func TestManager_TTLExpiresOnOpen(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	m.Put("old", []byte("segment"))
	m.Close()

	time.Sleep(20 * time.Millisecond)
	cfg.TTL = 10 * time.Millisecond
	m, err = New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer m.Close()

	if _, ok := m.Get("old"); ok {
		t.Error("expired entry was returned")
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*.seg"))
	if len(files) != 0 {
		t.Errorf("expired files left on disk: %v", files)
	}
}

func TestManager_MissingFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	m, err := New(testConfig(dir))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer m.Close()

	m.Put("seg", []byte("data"))
	m.memory.Delete("seg")
	files, _ := filepath.Glob(filepath.Join(dir, "*.seg"))
	for _, f := range files {
		os.Remove(f)
	}

	if _, ok := m.Get("seg"); ok {
		t.Error("Get succeeded with the file gone")
	}
	if m.Stats()[LevelDisk].Items != 0 {
		t.Error("stale index entry kept")
	}
}

func TestManager_PutAfterClose(t *testing.T) {
	m, err := New(testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	m.Close()
	if err := m.Put("k", []byte("v")); err != ErrClosed {
		t.Errorf("Put after Close = %v, want ErrClosed", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"no dir", func(c *Config) { c.Dir = "" }, false},
		{"zero disk", func(c *Config) { c.DiskBytes = 0 }, false},
		{"bad level", func(c *Config) { c.CompressionLevel = 23 }, false},
		{"negative ttl", func(c *Config) { c.TTL = -time.Second }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("/tmp/x")
			tt.modify(&cfg)
			if err := cfg.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
