// internal/storage/boltstore.go - BoltDB implementation
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
)

var (
	IncidentsBucket   = []byte("incidents")
	IncidentIdxBucket = []byte("incidents_idx")
	FetchRunsBucket   = []byte("fetchruns")
	MetaBucket        = []byte("meta")
)

var checkpointKey = []byte("checkpoint")

type BoltStore struct {
	mu   sync.RWMutex // guards db against the Compact handle swap
	db   *bbolt.DB
	path string
}

func NewBoltStore(path string) (Store, error) {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}

	store := &BoltStore{db: db, path: path}

	if err := store.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return store, nil
}

func (s *BoltStore) initBuckets() error {
	return s.update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{IncidentsBucket, IncidentIdxBucket, FetchRunsBucket, MetaBucket}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
}

// view runs a read transaction while holding the handle against a concurrent
// Compact swap.
func (s *BoltStore) view(fn func(tx *bbolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.View(fn)
}

// update runs a write transaction under the same handle guard.
func (s *BoltStore) update(fn func(tx *bbolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.Update(fn)
}

// timeKey builds an index key whose byte order matches time order, so cursor
// range scans walk records chronologically.
func timeKey(unix int64, id string) []byte {
	return []byte(fmt.Sprintf("%012d:%s", unix, id))
}

// timeKeyUnix extracts the timestamp back out of an index key.
func timeKeyUnix(key []byte) (int64, bool) {
	parts := strings.SplitN(string(key), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	unix, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return unix, true
}

func (s *BoltStore) SaveIncidents(ctx context.Context, incidents []*Incident) error {
	if len(incidents) == 0 {
		return nil
	}

	now := time.Now()

	return s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(IncidentsBucket)
		idx := tx.Bucket(IncidentIdxBucket)

		for _, incident := range incidents {
			if incident.ID == "" {
				incident.ID = uuid.New().String()
			}
			if incident.IngestedAt.IsZero() {
				incident.IngestedAt = now
			}

			data, err := json.Marshal(incident)
			if err != nil {
				return fmt.Errorf("failed to marshal incident: %w", err)
			}

			if err := b.Put([]byte(incident.ID), data); err != nil {
				return err
			}
			if err := idx.Put(timeKey(incident.Created, incident.ID), []byte(incident.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) GetIncident(ctx context.Context, id string) (*Incident, error) {
	var incident Incident

	err := s.view(func(tx *bbolt.Tx) error {
		b := tx.Bucket(IncidentsBucket)
		v := b.Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &incident)
	})

	if err != nil {
		return nil, err
	}
	return &incident, nil
}

// GetIncidents walks the created-time index newest-first and resolves each
// entry against the incidents bucket.
func (s *BoltStore) GetIncidents(ctx context.Context, filters IncidentFilters) ([]Incident, error) {
	var incidents []Incident

	err := s.view(func(tx *bbolt.Tx) error {
		b := tx.Bucket(IncidentsBucket)
		idx := tx.Bucket(IncidentIdxBucket)
		c := idx.Cursor()

		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			if created, ok := timeKeyUnix(k); ok && filters.Since != nil && created < filters.Since.Unix() {
				// Index keys are time-ordered; everything before this one is older
				break
			}

			v := b.Get(id)
			if v == nil {
				continue
			}
			var incident Incident
			if err := json.Unmarshal(v, &incident); err != nil {
				continue // Skip malformed entries
			}

			if filters.MinSeverity > 0 && incident.Severity < filters.MinSeverity {
				continue
			}

			incidents = append(incidents, incident)

			if filters.Limit > 0 && len(incidents) >= filters.Limit {
				return nil
			}
		}
		return nil
	})

	return incidents, err
}

func (s *BoltStore) MarkForwarded(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	return s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(IncidentsBucket)

		for _, id := range ids {
			v := b.Get([]byte(id))
			if v == nil {
				continue
			}
			var incident Incident
			if err := json.Unmarshal(v, &incident); err != nil {
				continue
			}
			incident.Forwarded = true

			data, err := json.Marshal(&incident)
			if err != nil {
				return fmt.Errorf("failed to marshal incident: %w", err)
			}
			if err := b.Put([]byte(id), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// PurgeIncidentsBefore removes incidents ingested before cutoff, along with
// their index entries, and returns how many were deleted.
func (s *BoltStore) PurgeIncidentsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0

	err := s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(IncidentsBucket)
		idx := tx.Bucket(IncidentIdxBucket)

		var keysToDelete [][]byte
		var idxToDelete [][]byte

		err := b.ForEach(func(k, v []byte) error {
			var incident Incident
			if err := json.Unmarshal(v, &incident); err != nil {
				return nil
			}
			if incident.IngestedAt.Before(cutoff) {
				keysToDelete = append(keysToDelete, copyBytes(k))
				idxToDelete = append(idxToDelete, timeKey(incident.Created, incident.ID))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, key := range keysToDelete {
			if err := b.Delete(key); err != nil {
				return err
			}
			deleted++
		}
		for _, key := range idxToDelete {
			if err := idx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to purge incidents: %w", err)
	}

	if deleted > 0 {
		logrus.WithFields(logrus.Fields{
			"deleted": deleted,
			"cutoff":  cutoff,
		}).Info("Purged old incidents")
	}

	return deleted, nil
}

func (s *BoltStore) SaveFetchRun(ctx context.Context, run *FetchRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	return s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(FetchRunsBucket)

		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("failed to marshal fetch run: %w", err)
		}

		return b.Put(timeKey(run.StartedAt.Unix(), run.ID), data)
	})
}

// GetFetchRuns returns the most recent poll cycles, newest first.
func (s *BoltStore) GetFetchRuns(ctx context.Context, limit int) ([]FetchRun, error) {
	var runs []FetchRun

	err := s.view(func(tx *bbolt.Tx) error {
		b := tx.Bucket(FetchRunsBucket)
		c := b.Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var run FetchRun
			if err := json.Unmarshal(v, &run); err != nil {
				continue
			}
			runs = append(runs, run)

			if limit > 0 && len(runs) >= limit {
				return nil
			}
		}
		return nil
	})

	return runs, err
}

func (s *BoltStore) GetCheckpoint(ctx context.Context) (int64, error) {
	var ts int64

	err := s.view(func(tx *bbolt.Tx) error {
		v := tx.Bucket(MetaBucket).Get(checkpointKey)
		if v == nil {
			return nil
		}
		parsed, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return fmt.Errorf("corrupt checkpoint value %q: %w", v, err)
		}
		ts = parsed
		return nil
	})

	return ts, err
}

func (s *BoltStore) SetCheckpoint(ctx context.Context, ts int64) error {
	return s.update(func(tx *bbolt.Tx) error {
		return tx.Bucket(MetaBucket).Put(checkpointKey, []byte(strconv.FormatInt(ts, 10)))
	})
}

// Stats returns information about database size and content.
func (s *BoltStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{Path: s.path}

	err := s.view(func(tx *bbolt.Tx) error {
		stats.Incidents = tx.Bucket(IncidentsBucket).Stats().KeyN
		stats.FetchRuns = tx.Bucket(FetchRunsBucket).Stats().KeyN

		// Oldest and newest vendor created times come straight off the index
		c := tx.Bucket(IncidentIdxBucket).Cursor()
		if k, _ := c.First(); k != nil {
			if unix, ok := timeKeyUnix(k); ok {
				t := time.Unix(unix, 0).UTC()
				stats.OldestIncident = &t
			}
		}
		if k, _ := c.Last(); k != nil {
			if unix, ok := timeKeyUnix(k); ok {
				t := time.Unix(unix, 0).UTC()
				stats.NewestIncident = &t
			}
		}

		if v := tx.Bucket(MetaBucket).Get(checkpointKey); v != nil {
			if parsed, err := strconv.ParseInt(string(v), 10, 64); err == nil {
				stats.Checkpoint = parsed
			}
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get database stats: %w", err)
	}

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.SizeBytes = fileInfo.Size()
	}

	return stats, nil
}

// Compact rewrites the database into a fresh file and swaps it in, reclaiming
// space left behind by purged incidents.
func (s *BoltStore) Compact(ctx context.Context) error {
	// Store traffic pauses for the duration of the rewrite; overlapping
	// compactions serialize here instead of racing the rename.
	s.mu.Lock()
	defer s.mu.Unlock()

	logrus.Info("Starting database compaction")

	tmpPath := s.path + ".compact.tmp"

	newDB, err := bbolt.Open(tmpPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	cleanup := func() {
		newDB.Close()
		os.Remove(tmpPath)
	}

	buckets := [][]byte{IncidentsBucket, IncidentIdxBucket, FetchRunsBucket, MetaBucket}

	err = newDB.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range buckets {
			if _, err := tx.CreateBucket(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		cleanup()
		return fmt.Errorf("failed to initialize compact database: %w", err)
	}

	err = s.db.View(func(oldTx *bbolt.Tx) error {
		return newDB.Update(func(newTx *bbolt.Tx) error {
			for _, bucketName := range buckets {
				oldBucket := oldTx.Bucket(bucketName)
				newBucket := newTx.Bucket(bucketName)

				c := oldBucket.Cursor()
				for k, v := c.First(); k != nil; k, v = c.Next() {
					if err := newBucket.Put(copyBytes(k), copyBytes(v)); err != nil {
						return fmt.Errorf("failed to copy data: %w", err)
					}
				}
			}
			return nil
		})
	})
	if err != nil {
		cleanup()
		return fmt.Errorf("failed to copy data to compact database: %w", err)
	}

	newDB.Close()
	s.db.Close()

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace database: %w", err)
	}

	s.db, err = bbolt.Open(s.path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to reopen compacted database: %w", err)
	}

	logrus.Info("Database compaction completed")
	return nil
}

func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// copyBytes creates a copy of a byte slice
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	copied := make([]byte, len(b))
	copy(copied, b)
	return copied
}
