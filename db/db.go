package db

import (
	"fmt"

	"minirel/buffer"
	"minirel/catalog"
	"minirel/common"
	"minirel/disk"
)

// Replacement policies for the buffer pool.
const (
	PolicyLRU   = "lru"
	PolicyClock = "clock"
)

// Config holds configuration for opening a database
type Config struct {
	Path     string
	PoolSize int    // frames in the buffer pool
	Policy   string // PolicyLRU or PolicyClock
	DirectIO bool
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig(path string) Config {
	return Config{
		Path:     path,
		PoolSize: 1024, // 4MB of page cache
		Policy:   PolicyLRU,
	}
}

// Database wires the storage core together: disk manager, buffer pool,
// and catalog.
type Database struct {
	DiskMgr *disk.Manager
	Pool    *buffer.Pool
	Catalog *catalog.Manager
	closed  bool
}

// Open creates or reopens the database at cfg.Path. A fresh file gets
// its well-known catalog pages bootstrapped; an existing one has its
// catalog reloaded.
func Open(cfg Config) (*Database, error) {
	diskMgr, err := disk.NewManager(disk.Config{Path: cfg.Path, DirectIO: cfg.DirectIO})
	if err != nil {
		return nil, err
	}
	database, err := open(diskMgr, cfg)
	if err != nil {
		diskMgr.Close()
		return nil, err
	}
	return database, nil
}

// OpenWithDisk builds a database over an existing disk manager. Tests
// use this with a memory-backed virtual disk.
func OpenWithDisk(diskMgr *disk.Manager, cfg Config) (*Database, error) {
	return open(diskMgr, cfg)
}

func open(diskMgr *disk.Manager, cfg Config) (*Database, error) {
	if cfg.PoolSize == 0 {
		cfg.PoolSize = DefaultConfig(cfg.Path).PoolSize
	}
	var replacer buffer.Replacer
	switch cfg.Policy {
	case PolicyClock:
		replacer = buffer.NewCLOCKReplacer(cfg.PoolSize)
	case PolicyLRU, "":
		replacer = buffer.NewLRUReplacer(cfg.PoolSize)
	default:
		return nil, fmt.Errorf("unknown replacement policy %q: %w", cfg.Policy, common.ErrFailed)
	}
	pool := buffer.NewPool(cfg.PoolSize, diskMgr, replacer)

	init := diskMgr.NumAllocatedPages() == 0
	cat, err := catalog.NewManager(pool, init)
	if err != nil {
		return nil, err
	}
	return &Database{DiskMgr: diskMgr, Pool: pool, Catalog: cat}, nil
}

// Close flushes every resident page and closes the file.
func (d *Database) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.Pool.Close()
	return d.DiskMgr.Close()
}
