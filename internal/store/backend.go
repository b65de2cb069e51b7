package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Backend is a byte-oriented key-value engine.
type Backend interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
	// WatchPath is the file whose changes signal a change to key.
	WatchPath(key string) string
	Close() error
}

const (
	BackendFile = "file"
	BackendBolt = "bolt"
)

// Open returns the backend named kind rooted at path. For the file backend path is a
// directory, for bolt it is the database file.
func Open(kind, path string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", BackendFile:
		return NewFileBackend(path)
	case BackendBolt:
		return NewBoltBackend(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}

// FileBackend keeps one JSON document per key: "local:userTools" lives at
// <dir>/local/userTools.json.
type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) KeyPath(key string) string {
	area, name, ok := strings.Cut(key, ":")
	if !ok {
		area, name = "local", key
	}
	return filepath.Join(b.dir, area, name+".json")
}

func (b *FileBackend) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(b.KeyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (b *FileBackend) Put(key string, value []byte) error {
	path := b.KeyPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (b *FileBackend) Delete(key string) error {
	if err := os.Remove(b.KeyPath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (b *FileBackend) WatchPath(key string) string {
	return b.KeyPath(key)
}

func (b *FileBackend) Close() error { return nil }

const storageBucketName = "storage"

// BoltBackend stores keys in a single bbolt bucket. The database is opened for each
// operation so other processes can use it in between.
type BoltBackend struct {
	path string
}

func NewBoltBackend(path string) (*BoltBackend, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("store database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}
	return &BoltBackend{path: trimmed}, nil
}

func (b *BoltBackend) Get(key string) ([]byte, bool, error) {
	if _, err := os.Stat(b.path); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var (
		value []byte
		found bool
	)
	err := b.with(true, func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(storageBucketName))
		if bucket == nil {
			return nil
		}
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}
		value = append([]byte(nil), raw...)
		found = true
		return nil
	})
	return value, found, err
}

func (b *BoltBackend) Put(key string, value []byte) error {
	return b.with(false, func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(storageBucketName))
		if err != nil {
			return fmt.Errorf("create storage bucket: %w", err)
		}
		return bucket.Put([]byte(key), value)
	})
}

func (b *BoltBackend) Delete(key string) error {
	if _, err := os.Stat(b.path); os.IsNotExist(err) {
		return nil
	}
	return b.with(false, func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(storageBucketName))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
}

func (b *BoltBackend) WatchPath(string) string {
	return b.path
}

func (b *BoltBackend) Close() error { return nil }

func (b *BoltBackend) with(readOnly bool, fn func(*bolt.Tx) error) error {
	db, err := bolt.Open(b.path, 0o600, &bolt.Options{Timeout: time.Second, ReadOnly: readOnly})
	if err != nil {
		return fmt.Errorf("open store db: %w", err)
	}
	defer db.Close()
	if readOnly {
		return db.View(fn)
	}
	return db.Update(fn)
}
