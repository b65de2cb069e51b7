package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/unextension/unext/internal/catalog"
	"github.com/unextension/unext/internal/store"
)

const FileName = "unext.toml"

type Config struct {
	Store   StoreConfig   `toml:"store"`
	View    ViewConfig    `toml:"view"`
	Site    SiteConfig    `toml:"site"`
	Catalog CatalogConfig `toml:"catalog"`
}

type StoreConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

type ViewConfig struct {
	Grouping string `toml:"grouping"`
}

type SiteConfig struct {
	URL      string `toml:"url"`
	DevTools string `toml:"devtools"`
}

type CatalogConfig struct {
	Extra string `toml:"extra"`
}

// DefaultPath returns $UNEXT_CONFIG, or unext.toml in the user config directory.
func DefaultPath() string {
	if env := strings.TrimSpace(os.Getenv("UNEXT_CONFIG")); env != "" {
		return env
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "unext", FileName)
}

// Load parses the config at path. A missing file at the default location is not an
// error; a missing file that was asked for explicitly is.
func Load(path string, explicit bool) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Config{}, nil
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Config{}, nil
		}
		return Config{}, err
	}
	var cfg Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := resolveRelative(&cfg, filepath.Dir(path)); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveRelative(cfg *Config, dir string) error {
	for _, p := range []*string{&cfg.Store.Path, &cfg.Catalog.Extra} {
		value := strings.TrimSpace(*p)
		if value == "" {
			continue
		}
		if strings.HasPrefix(value, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			value = filepath.Join(home, value[2:])
		} else if !filepath.IsAbs(value) {
			value = filepath.Join(dir, value)
		}
		*p = value
	}
	return nil
}

// Merge overlays non-empty values from override onto base.
func Merge(base, override Config) Config {
	out := base
	if strings.TrimSpace(override.Store.Backend) != "" {
		out.Store.Backend = override.Store.Backend
	}
	if strings.TrimSpace(override.Store.Path) != "" {
		out.Store.Path = override.Store.Path
	}
	if strings.TrimSpace(override.View.Grouping) != "" {
		out.View.Grouping = override.View.Grouping
	}
	if strings.TrimSpace(override.Site.URL) != "" {
		out.Site.URL = override.Site.URL
	}
	if strings.TrimSpace(override.Site.DevTools) != "" {
		out.Site.DevTools = override.Site.DevTools
	}
	if strings.TrimSpace(override.Catalog.Extra) != "" {
		out.Catalog.Extra = override.Catalog.Extra
	}
	return out
}

func ApplyDefaults(cfg Config) (Config, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if backend == "" {
		backend = store.BackendFile
	}
	cfg.Store.Backend = backend

	if strings.TrimSpace(cfg.Store.Path) == "" {
		dir, err := dataDir()
		if err != nil {
			return Config{}, err
		}
		switch backend {
		case store.BackendBolt:
			cfg.Store.Path = filepath.Join(dir, "unext.db")
		default:
			cfg.Store.Path = filepath.Join(dir, "storage")
		}
	}

	if strings.TrimSpace(cfg.View.Grouping) == "" {
		cfg.View.Grouping = string(catalog.GroupByCategory)
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	switch cfg.Store.Backend {
	case store.BackendFile, store.BackendBolt:
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", store.BackendFile, store.BackendBolt, cfg.Store.Backend)
	}
	if strings.TrimSpace(cfg.Store.Path) == "" {
		return errors.New("store.path is required")
	}
	if _, err := catalog.ParseGrouping(cfg.View.Grouping); err != nil {
		return fmt.Errorf("view.grouping: %w", err)
	}
	return nil
}

// Resolve loads the config file, overlays flags and fills defaults.
func Resolve(path string, explicit bool, flags Config) (Config, error) {
	fileCfg, err := Load(path, explicit)
	if err != nil {
		return Config{}, err
	}
	cfg, err := ApplyDefaults(Merge(fileCfg, flags))
	if err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func dataDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, "unext"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve data dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "unext"), nil
}
