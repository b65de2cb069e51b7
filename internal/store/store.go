package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/unextension/unext/internal/catalog"
)

const (
	UserToolsKey  = "local:userTools"
	SchemaVersion = 1
)

var (
	ErrEmptyName          = errors.New("tool name is required")
	ErrEmptyURL           = errors.New("tool url is required")
	ErrUnsupportedVersion = errors.New("unsupported user tools version")
	ErrStoreClosed        = errors.New("user tool store is closed")
)

type UserTool struct {
	Name     string `json:"name" yaml:"name" toml:"name"`
	URL      string `json:"url" yaml:"url" toml:"url"`
	Category string `json:"category" yaml:"category,omitempty" toml:"category,omitempty"`
}

func (u UserTool) Tool() catalog.Tool {
	return catalog.Tool{Name: u.Name, URL: u.URL, Category: u.Category, Source: catalog.SourceUser}
}

func Tools(users []UserTool) []catalog.Tool {
	out := make([]catalog.Tool, 0, len(users))
	for _, user := range users {
		out = append(out, user.Tool())
	}
	return out
}

// Repository is the persisted user tool collection.
type Repository interface {
	Load(ctx context.Context) ([]UserTool, error)
	Save(ctx context.Context, tools []UserTool) error
	Subscribe(fn func([]UserTool)) (unsubscribe func())
}

type envelope struct {
	Version int        `json:"version"`
	Value   []UserTool `json:"value"`
}

type Options struct {
	Logger *zap.Logger
}

// Store is the Repository for user tools on top of a Backend. Callbacks given to
// Subscribe must not call Save or Append synchronously.
type Store struct {
	backend Backend
	key     string
	logger  *zap.Logger

	mu        sync.Mutex
	subs      map[int]func([]UserTool)
	nextID    int
	lastHash  string
	hashKnown bool
	stopWatch context.CancelFunc
	closed    bool

	deliverMu sync.Mutex
}

func New(backend Backend, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		key:     UserToolsKey,
		logger:  logger,
		subs:    map[int]func([]UserTool){},
	}
}

// Load returns the persisted collection, or an empty one if nothing was written yet.
func (s *Store) Load(ctx context.Context) ([]UserTool, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	data, _, err := s.backend.Get(s.key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}
	return decode(data)
}

// Save replaces the whole collection.
func (s *Store) Save(ctx context.Context, tools []UserTool) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	if tools == nil {
		tools = []UserTool{}
	}
	data, err := json.MarshalIndent(envelope{Version: SchemaVersion, Value: tools}, "", "  ")
	if err != nil {
		return err
	}
	if err := s.backend.Put(s.key, data); err != nil {
		return fmt.Errorf("write %s: %w", s.key, err)
	}
	s.remember(data)
	s.deliver(append([]UserTool(nil), tools...))
	return nil
}

// Append reads the collection, adds tool at the end and writes it back. Concurrent
// writers race; the last write wins.
func (s *Store) Append(ctx context.Context, tool UserTool) ([]UserTool, error) {
	tool.Name = strings.TrimSpace(tool.Name)
	tool.URL = strings.TrimSpace(tool.URL)
	if tool.Name == "" {
		return nil, ErrEmptyName
	}
	if tool.URL == "" {
		return nil, ErrEmptyURL
	}
	current, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	next := append(current, tool)
	if err := s.Save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Clear removes the collection so the next Load returns the empty fallback.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	if err := s.backend.Delete(s.key); err != nil {
		return fmt.Errorf("delete %s: %w", s.key, err)
	}
	s.remember(nil)
	s.deliver([]UserTool{})
	return nil
}

// Subscribe registers fn for every change of the collection, including writes made by
// other processes. The returned func deregisters it and may be called more than once.
func (s *Store) Subscribe(fn func([]UserTool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || fn == nil {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	if s.stopWatch == nil {
		s.startWatchLocked()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			if len(s.subs) == 0 && s.stopWatch != nil {
				s.stopWatch()
				s.stopWatch = nil
			}
		})
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
	s.subs = map[int]func([]UserTool){}
	s.mu.Unlock()
	return s.backend.Close()
}

func (s *Store) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// remember records the last content seen so watcher events for it are ignored.
// It reports whether the content differs from the previous one.
func (s *Store) remember(data []byte) bool {
	hash := hashBytes(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := !s.hashKnown || s.lastHash != hash
	s.lastHash = hash
	s.hashKnown = true
	return changed
}

func (s *Store) deliver(tools []UserTool) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	subs := make([]func([]UserTool), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(append([]UserTool(nil), tools...))
	}
}

func decode(data []byte) ([]UserTool, error) {
	if len(data) == 0 {
		return []UserTool{}, nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode user tools: %w", err)
	}
	if env.Version > SchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
	if env.Value == nil {
		return []UserTool{}, nil
	}
	return env.Value, nil
}

func hashBytes(input []byte) string {
	hash := sha256.Sum256(input)
	return hex.EncodeToString(hash[:])
}
