// Package localcache is the client's durable copy of its state, kept in an
// embedded badger key-value store. Every value is JSON.
package localcache

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/erazemk/custody/internal/model"
	"github.com/erazemk/custody/internal/session"
)

// Keys.
const (
	KeyRole        = "custody_role"
	KeyUser        = "custody_user"
	KeyTab         = "custody_tab"
	KeyDepartments = "custody_departments"
	KeyWorkers     = "custody_workers"
	KeyItems       = "custody_items"
	KeyLogs        = "custody_logs"
)

// Data is what Load found. A nil collection means its key was absent.
type Data struct {
	Session  session.State
	Snapshot model.Snapshot
}

// Cache is a badger-backed store for the client snapshot and session.
type Cache struct {
	db *badger.DB
}

// Open opens the cache in dir. An empty dir keeps everything in memory.
func Open(dir string, log *zap.Logger) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{log.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening local cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Load reads the session and every collection present.
func (c *Cache) Load() (*Data, error) {
	var d Data
	err := c.db.View(func(txn *badger.Txn) error {
		targets := []struct {
			key  string
			dest any
		}{
			{KeyRole, &d.Session.Role},
			{KeyUser, &d.Session.User},
			{KeyTab, &d.Session.Tab},
			{KeyDepartments, &d.Snapshot.Departments},
			{KeyWorkers, &d.Snapshot.Workers},
			{KeyItems, &d.Snapshot.Items},
			{KeyLogs, &d.Snapshot.Logs},
		}
		for _, t := range targets {
			if err := get(txn, t.key, t.dest); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading local cache: %w", err)
	}
	return &d, nil
}

func get(txn *badger.Txn, key string, dest any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, dest); err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}
		return nil
	})
}

// Save overwrites every key in one transaction. A logged-out session removes
// the session keys.
func (c *Cache) Save(st session.State, snap *model.Snapshot) error {
	values := map[string]any{
		KeyDepartments: nonNil(snap.Departments),
		KeyWorkers:     nonNil(snap.Workers),
		KeyItems:       nonNil(snap.Items),
		KeyLogs:        nonNil(snap.Logs),
	}
	var drop []string
	if st.LoggedIn() {
		values[KeyRole] = st.Role
		values[KeyTab] = st.Tab
		if st.User != nil {
			values[KeyUser] = st.User
		} else {
			drop = append(drop, KeyUser)
		}
	} else {
		drop = append(drop, KeyRole, KeyUser, KeyTab)
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		for key, v := range values {
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encoding %s: %w", key, err)
			}
			if err := txn.Set([]byte(key), data); err != nil {
				return fmt.Errorf("writing %s: %w", key, err)
			}
		}
		for _, key := range drop {
			if err := txn.Delete([]byte(key)); err != nil {
				return fmt.Errorf("deleting %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving local cache: %w", err)
	}
	return nil
}

// Clear removes everything.
func (c *Cache) Clear() error {
	if err := c.db.DropAll(); err != nil {
		return fmt.Errorf("clearing local cache: %w", err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// badgerLogger routes badger's logging through zap.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(f string, args ...any)   { l.s.Errorf(f, args...) }
func (l badgerLogger) Warningf(f string, args ...any) { l.s.Warnf(f, args...) }
func (l badgerLogger) Infof(f string, args ...any)    { l.s.Debugf(f, args...) }
func (l badgerLogger) Debugf(f string, args ...any)   { l.s.Debugf(f, args...) }
