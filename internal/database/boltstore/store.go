// Package boltstore provides crash-safe persistent snapshots using BoltDB
// (bbolt). Each logical antiflood table lives in its own bucket; writes are
// whole-table replacements inside a single atomic transaction.
package boltstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names for the four antiflood tables
var (
	// BucketDailyLimits maps UserId -> {date, count}
	BucketDailyLimits = []byte("daily_limits")

	// BucketHourlyWindows maps UserId -> ordered timestamps (60m window)
	BucketHourlyWindows = []byte("hourly_windows")

	// BucketShortWindows maps UserId -> ordered timestamps (short window)
	BucketShortWindows = []byte("short_windows")

	// BucketMutes maps UserId -> mute expiry timestamp
	BucketMutes = []byte("mutes")
)

// Store wraps a BoltDB database and provides access to specialized stores.
type Store struct {
	db *bolt.DB
}

// Options configures the BoltDB store.
type Options struct {
	// Path to the database file. Parent directories will be created if needed.
	Path string

	// Timeout for obtaining the advisory file lock on the database.
	// If zero, a default of 3 seconds is used.
	Timeout time.Duration

	// FileMode for creating the database file.
	// If zero, 0600 is used.
	FileMode os.FileMode
}

// DefaultOptions returns sensible defaults for development.
func DefaultOptions() Options {
	return Options{
		Path:     "modguard.db",
		Timeout:  3 * time.Second,
		FileMode: 0600,
	}
}

// Open creates or opens a BoltDB database at the specified path.
// It creates all necessary buckets if they don't exist. A concurrent
// process instance holding the file lock causes Open to fail after the
// configured timeout rather than corrupting the snapshot.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		opts.Path = "modguard.db"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0600
	}

	// Ensure parent directory exists
	dir := filepath.Dir(opts.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := bolt.Open(opts.Path, opts.FileMode, &bolt.Options{
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			BucketDailyLimits,
			BucketHourlyWindows,
			BucketShortWindows,
			BucketMutes,
		}

		for _, bucket := range buckets {
			_, err := tx.CreateBucketIfNotExists(bucket)
			if err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying BoltDB instance for advanced operations.
func (s *Store) DB() *bolt.DB {
	return s.db
}

// AntifloodStore returns an antiflood snapshot store backed by this database.
func (s *Store) AntifloodStore() *AntifloodStore {
	return &AntifloodStore{db: s.db}
}

// Stats returns database statistics.
func (s *Store) Stats() bolt.Stats {
	return s.db.Stats()
}
