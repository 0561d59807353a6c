package boltstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"modguard/internal/antiflood"

	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

// AntifloodStore persists the engine's four tables. Every save is a
// whole-table replacement in one transaction: either the new snapshot is
// fully on disk or the old one is untouched. Loads skip malformed per-user
// entries individually instead of aborting the table.
type AntifloodStore struct {
	db *bolt.DB
}

// replaceTable rewrites a bucket from scratch inside a single transaction.
func (s *AntifloodStore) replaceTable(name []byte, fill func(bucket *bolt.Bucket) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(name) != nil {
			if err := tx.DeleteBucket(name); err != nil {
				return fmt.Errorf("failed to reset bucket %s: %w", name, err)
			}
		}
		bucket, err := tx.CreateBucket(name)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", name, err)
		}
		return fill(bucket)
	})
}

func userKey(user int64) []byte {
	return []byte(strconv.FormatInt(user, 10))
}

func parseUserKey(k []byte) (int64, error) {
	return strconv.ParseInt(string(k), 10, 64)
}

// SaveShortTerm replaces the short-term window table.
func (s *AntifloodStore) SaveShortTerm(entries map[int64][]time.Time) error {
	return s.saveWindow(BucketShortWindows, entries)
}

// SaveHourly replaces the hourly window table.
func (s *AntifloodStore) SaveHourly(entries map[int64][]time.Time) error {
	return s.saveWindow(BucketHourlyWindows, entries)
}

func (s *AntifloodStore) saveWindow(name []byte, entries map[int64][]time.Time) error {
	return s.replaceTable(name, func(bucket *bolt.Bucket) error {
		for user, stamps := range entries {
			data, err := json.Marshal(stamps)
			if err != nil {
				return fmt.Errorf("failed to marshal window for %d: %w", user, err)
			}
			if err := bucket.Put(userKey(user), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadShortTerm reads the short-term window table.
func (s *AntifloodStore) LoadShortTerm() (map[int64][]time.Time, error) {
	return s.loadWindow(BucketShortWindows)
}

// LoadHourly reads the hourly window table.
func (s *AntifloodStore) LoadHourly() (map[int64][]time.Time, error) {
	return s.loadWindow(BucketHourlyWindows)
}

func (s *AntifloodStore) loadWindow(name []byte) (map[int64][]time.Time, error) {
	entries := make(map[int64][]time.Time)

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(name)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			user, err := parseUserKey(k)
			if err != nil {
				log.Warn().Str("key", string(k)).Str("bucket", string(name)).Msg("boltstore: skipping malformed user key")
				return nil
			}

			var stamps []time.Time
			if err := json.Unmarshal(v, &stamps); err != nil {
				log.Warn().Err(err).Int64("user_id", user).Str("bucket", string(name)).Msg("boltstore: skipping malformed window entry")
				return nil
			}

			entries[user] = stamps
			return nil
		})
	})

	return entries, err
}

// dailyRecord is the on-disk form of a daily counter entry.
type dailyRecord struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// SaveDaily replaces the daily counter table.
func (s *AntifloodStore) SaveDaily(entries map[int64]antiflood.DailyEntry) error {
	return s.replaceTable(BucketDailyLimits, func(bucket *bolt.Bucket) error {
		for user, entry := range entries {
			data, err := json.Marshal(dailyRecord{Date: entry.Date, Count: entry.Count})
			if err != nil {
				return fmt.Errorf("failed to marshal daily entry for %d: %w", user, err)
			}
			if err := bucket.Put(userKey(user), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadDaily reads the daily counter table.
func (s *AntifloodStore) LoadDaily() (map[int64]antiflood.DailyEntry, error) {
	entries := make(map[int64]antiflood.DailyEntry)

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketDailyLimits)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			user, err := parseUserKey(k)
			if err != nil {
				log.Warn().Str("key", string(k)).Msg("boltstore: skipping malformed daily key")
				return nil
			}

			var record dailyRecord
			if err := json.Unmarshal(v, &record); err != nil {
				log.Warn().Err(err).Int64("user_id", user).Msg("boltstore: skipping malformed daily entry")
				return nil
			}

			entries[user] = antiflood.DailyEntry{Date: record.Date, Count: record.Count}
			return nil
		})
	})

	return entries, err
}

// SaveMutes replaces the mute table.
func (s *AntifloodStore) SaveMutes(entries map[int64]time.Time) error {
	return s.replaceTable(BucketMutes, func(bucket *bolt.Bucket) error {
		for user, until := range entries {
			data, err := json.Marshal(until)
			if err != nil {
				return fmt.Errorf("failed to marshal mute for %d: %w", user, err)
			}
			if err := bucket.Put(userKey(user), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadMutes reads the mute table. Entries already expired at load time are
// silently dropped; the engine never needs to observe them.
func (s *AntifloodStore) LoadMutes() (map[int64]time.Time, error) {
	entries := make(map[int64]time.Time)
	now := time.Now().UTC()

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketMutes)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			user, err := parseUserKey(k)
			if err != nil {
				log.Warn().Str("key", string(k)).Msg("boltstore: skipping malformed mute key")
				return nil
			}

			var until time.Time
			if err := json.Unmarshal(v, &until); err != nil {
				log.Warn().Err(err).Int64("user_id", user).Msg("boltstore: skipping malformed mute entry")
				return nil
			}

			if until.After(now) {
				entries[user] = until
			}
			return nil
		})
	})

	return entries, err
}
