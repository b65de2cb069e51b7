package site

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Tab struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

var ErrNoActiveTab = errors.New("no active tab")

// TabQuerier reports the active tab of the current browser window.
type TabQuerier interface {
	ActiveTab(ctx context.Context) (Tab, error)
}

type StaticQuerier struct {
	URL string
}

func (q StaticQuerier) ActiveTab(context.Context) (Tab, error) {
	if strings.TrimSpace(q.URL) == "" {
		return Tab{}, ErrNoActiveTab
	}
	return Tab{URL: strings.TrimSpace(q.URL), Type: "page"}, nil
}

const defaultDevToolsTimeout = 2 * time.Second

// DevToolsQuerier asks a browser started with --remote-debugging-port for its
// targets. The first page target in /json/list is the most recently focused tab.
type DevToolsQuerier struct {
	Endpoint string
	Client   *http.Client
}

func (q DevToolsQuerier) ActiveTab(ctx context.Context) (Tab, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(q.Endpoint), "/")
	if endpoint == "" {
		return Tab{}, ErrNoActiveTab
	}
	client := q.Client
	if client == nil {
		client = &http.Client{Timeout: defaultDevToolsTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/json/list", nil)
	if err != nil {
		return Tab{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Tab{}, fmt.Errorf("query devtools: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Tab{}, fmt.Errorf("query devtools: unexpected status %s", resp.Status)
	}

	var targets []Tab
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return Tab{}, fmt.Errorf("decode targets: %w", err)
	}
	for _, target := range targets {
		if target.Type == "page" && strings.TrimSpace(target.URL) != "" {
			return target, nil
		}
	}
	return Tab{}, ErrNoActiveTab
}

// ChainQuerier returns the first tab with a URL from its queriers.
type ChainQuerier []TabQuerier

func (c ChainQuerier) ActiveTab(ctx context.Context) (Tab, error) {
	var errs []error
	for _, q := range c {
		if q == nil {
			continue
		}
		tab, err := q.ActiveTab(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if tab.URL != "" {
			return tab, nil
		}
	}
	if len(errs) > 0 {
		return Tab{}, errors.Join(errs...)
	}
	return Tab{}, ErrNoActiveTab
}

type Resolver struct {
	Querier TabQuerier
	Logger  *zap.Logger
}

// Resolve queries the active tab once and returns its normalized URL.
// Any failure yields "".
func (r Resolver) Resolve(ctx context.Context) string {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if r.Querier == nil {
		return ""
	}
	tab, err := r.Querier.ActiveTab(ctx)
	if err != nil {
		logger.Debug("active tab unavailable", zap.Error(err))
		return ""
	}
	current := Normalize(tab.URL)
	logger.Debug("active tab resolved", zap.String("url", current))
	return current
}

// Normalize strips exactly one trailing slash.
func Normalize(rawURL string) string {
	return strings.TrimSuffix(rawURL, "/")
}
