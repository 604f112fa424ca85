package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/mirrorctl/pkg/events"
	"github.com/cuemby/mirrorctl/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketStatus  = []byte("status")
	bucketHistory = []byte("history")

	keyCurrent = []byte("current")
)

const (
	// DBFile is the status database file name inside the state directory
	DBFile = "mirrorctl.db"

	// DefaultHistoryLimit bounds the number of retained transitions
	DefaultHistoryLimit = 200
)

// Options configures how the store is opened
type Options struct {
	// ReadOnly skips creating the database, for readers such as
	// `mirrorctl status`
	ReadOnly bool

	// Timeout bounds each wait for the database file lock. Zero waits
	// indefinitely.
	Timeout time.Duration

	// HistoryLimit is the number of transitions kept (default: DefaultHistoryLimit)
	HistoryLimit int
}

// BoltStore implements Store using BoltDB. The database file is opened for
// each operation only, so readers are never shut out for longer than one
// transition takes to write.
type BoltStore struct {
	path         string
	opts         Options
	historyLimit int
}

// NewBoltStore prepares the status database in dataDir
func NewBoltStore(dataDir string, opts Options) (*BoltStore, error) {
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s := &BoltStore{
		path:         filepath.Join(dataDir, DBFile),
		opts:         opts,
		historyLimit: limit,
	}

	if opts.ReadOnly {
		if _, err := os.Stat(s.path); os.IsNotExist(err) {
			return nil, ErrNoStatus
		}
		return s, nil
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	err := s.update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketStatus, bucketHistory} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *BoltStore) open(readOnly bool) (*bolt.DB, error) {
	db, err := bolt.Open(s.path, 0600, &bolt.Options{
		Timeout:  s.opts.Timeout,
		ReadOnly: readOnly,
	})
	if errors.Is(err, bolt.ErrTimeout) {
		return nil, ErrLocked
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func (s *BoltStore) update(fn func(tx *bolt.Tx) error) error {
	if s.opts.ReadOnly {
		return fmt.Errorf("status store opened read-only")
	}
	db, err := s.open(false)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Update(fn)
}

func (s *BoltStore) view(fn func(tx *bolt.Tx) error) error {
	db, err := s.open(true)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.View(fn)
}

// ReportStatus overwrites the current status and appends to the history
func (s *BoltStore) ReportStatus(ctx context.Context, evt *events.Event, status types.Status) error {
	record := &types.StatusRecord{
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
	if evt != nil {
		record.Event = evt.Kind
		record.EventID = evt.ID
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	return s.update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketStatus).Put(keyCurrent, data); err != nil {
			return err
		}

		history := tx.Bucket(bucketHistory)
		seq, err := history.NextSequence()
		if err != nil {
			return err
		}
		if err := history.Put(itob(seq), data); err != nil {
			return err
		}

		return s.trimHistory(history)
	})
}

// trimHistory drops the oldest transitions beyond the limit
func (s *BoltStore) trimHistory(history *bolt.Bucket) error {
	c := history.Cursor()

	var keys [][]byte
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}

	excess := len(keys) - s.historyLimit
	for i := 0; i < excess; i++ {
		if err := history.Delete(keys[i]); err != nil {
			return err
		}
	}
	return nil
}

// Current returns the last recorded transition
func (s *BoltStore) Current() (*types.StatusRecord, error) {
	var record types.StatusRecord
	err := s.view(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStatus)
		if b == nil {
			return ErrNoStatus
		}
		data := b.Get(keyCurrent)
		if data == nil {
			return ErrNoStatus
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// History returns up to limit transitions, newest first. A limit <= 0
// returns everything retained.
func (s *BoltStore) History(limit int) ([]*types.StatusRecord, error) {
	var records []*types.StatusRecord
	err := s.view(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHistory)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var record types.StatusRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
		}
		return nil
	})
	return records, err
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
