package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/review-scraper/pkg/log"
	"github.com/Sriram-PR/review-scraper/pkg/models"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

const (
	pageKeyPrefix    = "page:"
	airlineKeyPrefix = "airline:"
	stateDBDir       = "crawl_state"
)

// BadgerStore implements CrawlStateStore on BadgerDB
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64
}

// NewBadgerStore opens (or creates) the state database for sourceName under stateDir.
// Without resume any previous state for the source is removed first.
func NewBadgerStore(stateDir, sourceName string, resume bool, logger *logrus.Entry) (*BadgerStore, error) {
	dbPath := filepath.Join(stateDir, utils.SanitizeFilename(sourceName)+"_"+stateDBDir)
	store := &BadgerStore{log: logger.WithField("state_db", dbPath)}

	if !resume {
		store.log.Warn("Resume disabled, removing previous crawl state")
		if err := os.RemoveAll(dbPath); err != nil {
			store.log.Errorf("Failed to remove existing state directory: %v", err)
		}
	}
	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogrusAdapter(store.log)).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}
	store.db = db

	if resume {
		count, err := store.countKeys()
		if err != nil {
			store.log.Warnf("Failed to count existing keys on resume: %v", err)
		} else {
			store.keyCount.Store(int64(count))
			store.log.Infof("Loaded %d existing state keys", count)
		}
	}
	return store, nil
}

func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate retries db.Update on transaction conflicts between concurrent workers.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// setIfAbsent writes value under key unless the key exists. Reports whether it wrote.
func (s *BadgerStore) setIfAbsent(key, value []byte) (bool, error) {
	added := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		added = false
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.SetEntry(badger.NewEntry(key, value)); err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: set key '%s': %w", utils.ErrDatabase, key, err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return added, nil
}

// MarkPageVisited implements PageStore
func (s *BadgerStore) MarkPageVisited(normalizedPageURL string, item models.WorkItem) (bool, error) {
	val, err := json.Marshal(&models.PageDBEntry{
		Status:      models.PageStatusPending,
		LastAttempt: time.Now(),
		Kind:        item.Kind,
		Airline:     item.Airline,
		Page:        item.Page,
	})
	if err != nil {
		return false, fmt.Errorf("%w: JSON encode page entry: %w", utils.ErrParsing, err)
	}
	return s.setIfAbsent([]byte(pageKeyPrefix+normalizedPageURL), val)
}

// MarkAirlineEmitted implements AirlineStore
func (s *BadgerStore) MarkAirlineEmitted(name string) (bool, error) {
	return s.setIfAbsent([]byte(airlineKeyPrefix+name), []byte(time.Now().UTC().Format(time.RFC3339)))
}

// ForgetAirline implements AirlineStore
func (s *BadgerStore) ForgetAirline(name string) error {
	key := []byte(airlineKeyPrefix + name)
	existed := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			existed = false
			return nil
		}
		if err != nil {
			return err
		}
		existed = true
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("%w: delete key '%s': %w", utils.ErrDatabase, key, err)
	}
	if existed {
		s.keyCount.Add(-1)
	}
	return nil
}

// CheckPageStatus implements PageStore
func (s *BadgerStore) CheckPageStatus(normalizedPageURL string) (models.PageStatus, *models.PageDBEntry, error) {
	key := []byte(pageKeyPrefix + normalizedPageURL)
	status := models.PageStatusNotFound
	var entry *models.PageDBEntry

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decoded models.PageDBEntry
			if len(val) == 0 || json.Unmarshal(val, &decoded) != nil {
				status = models.PageStatusPending
				return nil
			}
			entry = &decoded
			status = decoded.Status
			return nil
		})
	})
	if err != nil {
		return models.PageStatusDBError, nil, fmt.Errorf("%w: get page key '%s': %w", utils.ErrDatabase, key, err)
	}
	return status, entry, nil
}

// UpdatePageStatus implements PageStore
func (s *BadgerStore) UpdatePageStatus(normalizedPageURL string, entry *models.PageDBEntry) error {
	key := []byte(pageKeyPrefix + normalizedPageURL)
	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: JSON encode page entry for '%s': %w", utils.ErrParsing, key, err)
	}

	isNew := false
	err = s.dbUpdate(func(txn *badger.Txn) error {
		_, getErr := txn.Get(key)
		isNew = errors.Is(getErr, badger.ErrKeyNotFound)
		return txn.SetEntry(badger.NewEntry(key, val))
	})
	if err != nil {
		return fmt.Errorf("%w: set page status for '%s': %w", utils.ErrDatabase, key, err)
	}
	if isNew {
		s.keyCount.Add(1)
	}
	s.log.Debugf("Updated page status for '%s' to '%s'", normalizedPageURL, entry.Status)
	return nil
}

// GetVisitedCount implements StoreAdmin
func (s *BadgerStore) GetVisitedCount() (int, error) {
	return int(s.keyCount.Load()), nil
}

// RunGC implements StoreAdmin
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db.IsClosed() {
				continue
			}
			var err error
			for err == nil {
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB GC: %v", ctx.Err())
			return
		}
	}
}

// scanPages calls fn for each page key with its decoded entry (nil if undecodable)
func (s *BadgerStore) scanPages(ctx context.Context, fn func(url string, entry *models.PageDBEntry) error) error {
	prefix := []byte(pageKeyPrefix)
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			url := string(item.Key()[len(prefix):])
			var entry *models.PageDBEntry
			if err := item.Value(func(val []byte) error {
				var decoded models.PageDBEntry
				if len(val) > 0 && json.Unmarshal(val, &decoded) == nil {
					entry = &decoded
				}
				return nil
			}); err != nil {
				return err
			}
			if err := fn(url, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// RequeueIncomplete implements StoreAdmin
func (s *BadgerStore) RequeueIncomplete(ctx context.Context, yield func(models.WorkItem) error) (int, int, error) {
	requeued, scanErrors := 0, 0
	start := time.Now()

	err := s.scanPages(ctx, func(url string, entry *models.PageDBEntry) error {
		if entry == nil {
			s.log.Warnf("Resume scan: undecodable entry for '%s', skipping", url)
			scanErrors++
			return nil
		}
		if !entry.Status.NeedsRequeue() {
			return nil
		}
		if err := yield(entry.WorkItem(url)); err != nil {
			return err
		}
		requeued++
		return nil
	})

	s.log.WithFields(logrus.Fields{"requeued": requeued, "scan_errors": scanErrors, "duration": time.Since(start)}).
		Info("Resume scan complete")
	return requeued, scanErrors, err
}

// WriteVisitedLog implements StoreAdmin
func (s *BadgerStore) WriteVisitedLog(ctx context.Context, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("%w: create visited log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	written := 0
	scanErr := s.scanPages(ctx, func(url string, entry *models.PageDBEntry) error {
		status := models.PageStatusUnset
		if entry != nil {
			status = entry.Status
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", status, url); err != nil {
			return err
		}
		written++
		return nil
	})
	if err := w.Flush(); err != nil && scanErr == nil {
		scanErr = err
	}
	if err := file.Sync(); err != nil && scanErr == nil {
		scanErr = err
	}
	if scanErr != nil {
		return fmt.Errorf("write visited log '%s': %w", filePath, scanErr)
	}
	s.log.Infof("Wrote %d URLs to visited log %s", written, filePath)
	return nil
}

// Close implements StoreAdmin
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close state db: %w", utils.ErrDatabase, err)
	}
	return nil
}
