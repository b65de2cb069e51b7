package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/browser"
	"go.uber.org/zap"

	"github.com/unextension/unext/internal/catalog"
	"github.com/unextension/unext/internal/site"
	"github.com/unextension/unext/internal/store"
)

const (
	SuggestURL = "https://github.com/mefengl/unextension/issues/new"
	AuthorURL  = "https://x.com/mefengl"
	IconsURL   = "https://github.com/Mage-Icons/mage-icons"
	LicenseURL = "https://www.apache.org/licenses/LICENSE-2.0"
)

var ErrNoActiveSite = errors.New("no active site: pass --url or configure site.devtools")

// App wires the catalog, the user tool store and the active site resolver.
type App struct {
	Static   []catalog.Tool
	Store    *store.Store
	Resolver site.Resolver
	Grouping catalog.Grouping
	Reporter Reporter
	Logger   *zap.Logger
	Out      io.Writer
	// OpenURL opens a link in the system browser.
	OpenURL func(url string) error
}

func (a *App) reporter() Reporter {
	return ensureReporter(a.Reporter)
}

func (a *App) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *App) out() io.Writer {
	if a.Out == nil {
		return os.Stdout
	}
	return a.Out
}

func (a *App) open(url string) error {
	if a.OpenURL != nil {
		return a.OpenURL(url)
	}
	return browser.OpenURL(url)
}

type ListOptions struct {
	Search string
	JSON   bool
}

type listOutput struct {
	CurrentSite string       `json:"currentSite"`
	View        catalog.View `json:"view"`
}

func (a *App) List(ctx context.Context, opts ListOptions) error {
	currentSite := a.Resolver.Resolve(ctx)
	users, err := a.Store.Load(ctx)
	if err != nil {
		return err
	}
	view := catalog.ComputeView(a.Static, store.Tools(users), opts.Search, currentSite, a.Grouping)
	if opts.JSON {
		enc := json.NewEncoder(a.out())
		enc.SetIndent("", "  ")
		return enc.Encode(listOutput{CurrentSite: currentSite, View: view})
	}
	a.reporter().View(view, currentSite)
	return nil
}

type AddOptions struct {
	Name     string
	Category string
	URL      string
}

// Add saves the active site (or opts.URL) as a user tool.
func (a *App) Add(ctx context.Context, opts AddOptions) error {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		url = a.Resolver.Resolve(ctx)
	}
	if url == "" {
		return ErrNoActiveSite
	}
	tool := store.UserTool{Name: opts.Name, URL: url, Category: strings.TrimSpace(opts.Category)}
	tools, err := a.Store.Append(ctx, tool)
	if err != nil {
		return err
	}
	a.reporter().Added(tools[len(tools)-1], len(tools))
	return nil
}

func (a *App) Open(ctx context.Context, name string) error {
	users, err := a.Store.Load(ctx)
	if err != nil {
		return err
	}
	for _, tool := range catalog.Merge(a.Static, store.Tools(users)) {
		if strings.EqualFold(strings.TrimSpace(tool.Name), strings.TrimSpace(name)) {
			a.reporter().Info("opening " + tool.URL)
			return a.open(tool.URL)
		}
	}
	return fmt.Errorf("no tool named %q", name)
}

func (a *App) Suggest() error {
	a.reporter().Info("opening " + SuggestURL)
	return a.open(SuggestURL)
}

func AboutLines() []string {
	return []string{
		"Made by Alan (" + AuthorURL + ")",
		"Credits: logo based on mage:inbox-star-fill from Mage Icons (" + IconsURL + "),",
		"licensed under the Apache 2.0 license (" + LicenseURL + ").",
	}
}

func (a *App) About() {
	for _, line := range AboutLines() {
		a.reporter().Info(line)
	}
}

// Watch reports every change to the user tools until ctx is done.
func (a *App) Watch(ctx context.Context) error {
	reporter := a.reporter()
	unsubscribe := a.Store.Subscribe(func(tools []store.UserTool) {
		reporter.Changed(tools)
	})
	defer unsubscribe()

	tools, err := a.Store.Load(ctx)
	if err != nil {
		return err
	}
	reporter.Changed(tools)
	<-ctx.Done()
	return nil
}

type ClearOptions struct {
	Yes bool
}

func (a *App) Clear(ctx context.Context, opts ClearOptions) error {
	if !opts.Yes {
		return errors.New("refusing to clear user tools without --yes")
	}
	if err := a.Store.Clear(ctx); err != nil {
		return err
	}
	a.reporter().Cleared()
	return nil
}
