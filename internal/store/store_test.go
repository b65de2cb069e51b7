package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newFileStore(t *testing.T, dir string) *Store {
	t.Helper()
	backend, err := Open(BackendFile, dir)
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	s := New(backend, Options{})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoadFallback(t *testing.T) {
	for _, kind := range []string{BackendFile, BackendBolt} {
		path := t.TempDir()
		if kind == BackendBolt {
			path = filepath.Join(path, "unext.db")
		}
		backend, err := Open(kind, path)
		if err != nil {
			t.Fatalf("open %s backend: %v", kind, err)
		}
		tools, err := New(backend, Options{}).Load(context.Background())
		if err != nil {
			t.Fatalf("%s load: %v", kind, err)
		}
		if tools == nil || len(tools) != 0 {
			t.Fatalf("%s: expected empty non-nil fallback, got %#v", kind, tools)
		}
	}
}

func TestAppendRoundTrip(t *testing.T) {
	for _, kind := range []string{BackendFile, BackendBolt} {
		path := t.TempDir()
		if kind == BackendBolt {
			path = filepath.Join(path, "unext.db")
		}
		backend, err := Open(kind, path)
		if err != nil {
			t.Fatalf("open %s backend: %v", kind, err)
		}
		s := New(backend, Options{})
		ctx := context.Background()

		existing := []UserTool{
			{Name: "A", URL: "https://a.dev", Category: "Dev"},
			{Name: "B", URL: "https://b.dev"},
		}
		if err := s.Save(ctx, existing); err != nil {
			t.Fatalf("%s save: %v", kind, err)
		}
		if _, err := s.Append(ctx, UserTool{Name: "My Tool", URL: "https://example.com"}); err != nil {
			t.Fatalf("%s append: %v", kind, err)
		}

		got, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("%s load: %v", kind, err)
		}
		want := append(append([]UserTool{}, existing...), UserTool{Name: "My Tool", URL: "https://example.com", Category: ""})
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("%s round trip mismatch (-want +got):\n%s", kind, diff)
		}
	}
}

func TestAppendValidation(t *testing.T) {
	s := newFileStore(t, t.TempDir())
	ctx := context.Background()
	if _, err := s.Append(ctx, UserTool{Name: "  ", URL: "https://x.dev"}); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := s.Append(ctx, UserTool{Name: "x"}); !errors.Is(err, ErrEmptyURL) {
		t.Fatalf("expected ErrEmptyURL, got %v", err)
	}
	tools, err := s.Append(ctx, UserTool{Name: " dup ", URL: "https://x.dev"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	tools, err = s.Append(ctx, UserTool{Name: "dup", URL: "https://x.dev"})
	if err != nil {
		t.Fatalf("append duplicate: %v", err)
	}
	if len(tools) != 2 || tools[0].Name != "dup" {
		t.Fatalf("expected duplicates to be kept with trimmed names, got %+v", tools)
	}
}

func TestPersistedSchema(t *testing.T) {
	dir := t.TempDir()
	s := newFileStore(t, dir)
	if err := s.Save(context.Background(), []UserTool{{Name: "My Tool", URL: "https://example.com"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "local", "userTools.json"))
	if err != nil {
		t.Fatalf("read persisted file: %v", err)
	}
	want := `{
  "version": 1,
  "value": [
    {
      "name": "My Tool",
      "url": "https://example.com",
      "category": ""
    }
  ]
}`
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Fatalf("persisted document mismatch (-want +got):\n%s", diff)
	}
}

func TestUnsupportedVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local", "userTools.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(`{"version":2,"value":[]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := newFileStore(t, dir)
	if _, err := s.Load(context.Background()); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestClear(t *testing.T) {
	s := newFileStore(t, t.TempDir())
	ctx := context.Background()
	if _, err := s.Append(ctx, UserTool{Name: "x", URL: "https://x.dev"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear twice: %v", err)
	}
	tools, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tools) != 0 {
		t.Fatalf("expected empty collection, got %+v", tools)
	}
}

func TestSubscribeInProcess(t *testing.T) {
	s := newFileStore(t, t.TempDir())
	ctx := context.Background()

	var got [][]UserTool
	unsubscribe := s.Subscribe(func(tools []UserTool) {
		got = append(got, tools)
	})
	if _, err := s.Append(ctx, UserTool{Name: "x", URL: "https://x.dev"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	unsubscribe()
	unsubscribe()
	if _, err := s.Append(ctx, UserTool{Name: "y", URL: "https://y.dev"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(got) != 1 || len(got[0]) != 1 || got[0][0].Name != "x" {
		t.Fatalf("expected exactly one notification, got %+v", got)
	}
}

func TestSubscribeSeesOtherInstances(t *testing.T) {
	dir := t.TempDir()
	watching := newFileStore(t, dir)
	writer := newFileStore(t, dir)

	changes := make(chan []UserTool, 4)
	unsubscribe := watching.Subscribe(func(tools []UserTool) {
		changes <- tools
	})
	defer unsubscribe()

	if _, err := writer.Append(context.Background(), UserTool{Name: "remote", URL: "https://remote.dev"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	select {
	case tools := <-changes:
		if len(tools) != 1 || tools[0].Name != "remote" {
			t.Fatalf("unexpected change %+v", tools)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for external change")
	}
}

func TestClosedStore(t *testing.T) {
	s := newFileStore(t, t.TempDir())
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := s.Load(context.Background()); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("redis", t.TempDir()); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestToolsConversion(t *testing.T) {
	tools := Tools([]UserTool{{Name: "x", URL: "https://x.dev", Category: "Dev"}})
	if len(tools) != 1 || tools[0].Category != "Dev" || tools[0].Source != "user" {
		t.Fatalf("unexpected conversion %+v", tools)
	}
}
