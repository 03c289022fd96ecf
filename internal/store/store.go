// Package store keeps the bot's small durable state in a BoltDB file:
// processed message ids, per-source cursors, recent-message hashes used for
// dedup, and a bounded audit trail of command invocations.
package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketCursor    = []byte("cursors")
	bucketProcessed = []byte("processed")
	bucketMessages  = []byte("messages")
	bucketAudit     = []byte("audit")
)

// auditMaxEntries bounds the audit bucket; oldest entries are dropped first.
var auditMaxEntries = 1000

// ErrEmptyID is returned when a message id is required but blank.
var ErrEmptyID = errors.New("store: empty message id")

// AuditEntry records one command invocation.
type AuditEntry struct {
	Time       time.Time `json:"time"`
	Transport  string    `json:"transport"`
	Sender     string    `json:"sender"`
	Identifier string    `json:"identifier"`
	Outcome    string    `json:"outcome"`
	DurationMS int64     `json:"duration_ms"`
}

// Store wraps a BoltDB instance for small, durable state.
type Store struct {
	db *bolt.DB
}

// New opens (or creates) the database at the given path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketCursor, bucketProcessed, bucketMessages, bucketAudit} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LastCursor returns the last timestamp recorded for key, or the zero time.
func (s *Store) LastCursor(key string) (time.Time, error) {
	var ts time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCursor).Get([]byte(key))
		if v == nil {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, string(v))
		if err != nil {
			return err
		}
		ts = parsed
		return nil
	})
	return ts, err
}

// SaveCursor persists the last timestamp for key.
func (s *Store) SaveCursor(key string, t time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCursor).Put([]byte(key), []byte(t.UTC().Format(time.RFC3339Nano)))
	})
}

// AlreadyProcessed reports whether id was handled before and marks it
// processed if not.
func (s *Store) AlreadyProcessed(id string) (bool, error) {
	if id == "" {
		return false, ErrEmptyID
	}
	var existed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProcessed)
		if v := b.Get([]byte(id)); v != nil {
			existed = true
			return nil
		}
		return b.Put([]byte(id), []byte{1})
	})
	return existed, err
}

// MarkProcessed records id without checking it.
func (s *Store) MarkProcessed(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProcessed).Put([]byte(id), []byte{1})
	})
}

func messageKey(sender, text string) []byte {
	sender = strings.ToLower(strings.TrimSpace(sender))
	h := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return []byte(sender + ":" + hex.EncodeToString(h[:]))
}

// RecentMessageSeen returns true if the same sender/text was seen within the
// window. It also records the current occurrence.
func (s *Store) RecentMessageSeen(sender, text string, window time.Duration) (bool, error) {
	if window <= 0 {
		window = 30 * time.Second
	}
	key := messageKey(sender, text)
	now := time.Now().UTC()

	var seen bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		if v := b.Get(key); v != nil {
			if ts, err := time.Parse(time.RFC3339Nano, string(v)); err == nil && now.Sub(ts) < window {
				seen = true
			}
		}
		return b.Put(key, []byte(now.Format(time.RFC3339Nano)))
	})
	return seen, err
}

// PruneMessages drops message hashes older than maxAge and returns how many
// were removed.
func (s *Store) PruneMessages(maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			ts, err := time.Parse(time.RFC3339Nano, string(v))
			if err != nil || ts.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

// AppendAudit stores e, trimming the oldest entries past the cap.
func (s *Store) AppendAudit(e AuditEntry) error {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAudit)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		if err := b.Put(key, data); err != nil {
			return err
		}
		c := b.Cursor()
		count := 0
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			count++
		}
		excess := count - auditMaxEntries
		if excess <= 0 {
			return nil
		}
		var old [][]byte
		for k, _ := c.First(); k != nil && len(old) < excess; k, _ = c.Next() {
			old = append(old, append([]byte(nil), k...))
		}
		for _, k := range old {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Audit returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) Audit(limit int) ([]AuditEntry, error) {
	var out []AuditEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAudit).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var e AuditEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}
