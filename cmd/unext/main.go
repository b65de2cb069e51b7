package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/unextension/unext/internal/app"
	"github.com/unextension/unext/internal/catalog"
	"github.com/unextension/unext/internal/config"
	"github.com/unextension/unext/internal/site"
	"github.com/unextension/unext/internal/store"
	"github.com/unextension/unext/internal/ui"
)

type CLI struct {
	NoColor  bool   `help:"Disable color output."`
	Debug    bool   `help:"Log debug output to stderr."`
	Config   string `help:"Path to unext.toml." type:"path"`
	URL      string `help:"Active site URL." env:"UNEXT_ACTIVE_URL"`
	DevTools string `name:"devtools" help:"Browser remote debugging endpoint used to find the active tab." env:"UNEXT_DEVTOOLS_URL"`
	Store    string `help:"Store location (directory for file, database for bolt)." type:"path"`
	Backend  string `help:"Store backend: file or bolt."`
	Grouping string `help:"Grouping: category or binary."`

	Popup   PopupCmd   `cmd:"" default:"1" help:"Browse tools interactively."`
	List    ListCmd    `cmd:"" help:"Print tools grouped for the active site."`
	Add     AddCmd     `cmd:"" help:"Save the active site as a tool."`
	Open    OpenCmd    `cmd:"" help:"Open a tool by name."`
	Import  ImportCmd  `cmd:"" help:"Import user tools from YAML, TOML or JSON files."`
	Export  ExportCmd  `cmd:"" help:"Export user tools."`
	Watch   WatchCmd   `cmd:"" help:"Print user tools whenever they change."`
	Clear   ClearCmd   `cmd:"" help:"Remove all user tools."`
	Suggest SuggestCmd `cmd:"" help:"Suggest a tool for the builtin catalog."`
	About   AboutCmd   `cmd:"" help:"Show credits."`
}

type PopupCmd struct{}

type ListCmd struct {
	Search string `arg:"" optional:"" help:"Search term."`
	JSON   bool   `help:"Print JSON."`
}

type AddCmd struct {
	Name     string `arg:"" help:"Tool name."`
	Category string `help:"Tool category."`
}

type OpenCmd struct {
	Name string `arg:"" help:"Tool name."`
}

type ImportCmd struct {
	Patterns []string `arg:"" help:"Files or globs (doublestar syntax)."`
}

type ExportCmd struct {
	Format string `help:"Output format: yaml, toml or json (default from --output extension, else yaml)."`
	Output string `short:"o" help:"Write to file instead of stdout." type:"path"`
}

type WatchCmd struct{}

type ClearCmd struct {
	Yes bool `help:"Confirm removal."`
}

type SuggestCmd struct{}

type AboutCmd struct{}

type Context struct {
	context.Context
	App *app.App
}

func (c *PopupCmd) Run(ctx *Context) error {
	return ctx.App.Popup(ctx)
}

func (c *ListCmd) Run(ctx *Context) error {
	return ctx.App.List(ctx, app.ListOptions{Search: c.Search, JSON: c.JSON})
}

func (c *AddCmd) Run(ctx *Context) error {
	return ctx.App.Add(ctx, app.AddOptions{Name: c.Name, Category: c.Category})
}

func (c *OpenCmd) Run(ctx *Context) error {
	return ctx.App.Open(ctx, c.Name)
}

func (c *ImportCmd) Run(ctx *Context) error {
	return ctx.App.Import(ctx, app.ImportOptions{Patterns: c.Patterns})
}

func (c *ExportCmd) Run(ctx *Context) error {
	return ctx.App.Export(ctx, app.ExportOptions{Format: c.Format, Output: c.Output})
}

func (c *WatchCmd) Run(ctx *Context) error {
	return ctx.App.Watch(ctx)
}

func (c *ClearCmd) Run(ctx *Context) error {
	return ctx.App.Clear(ctx, app.ClearOptions{Yes: c.Yes})
}

func (c *SuggestCmd) Run(ctx *Context) error {
	return ctx.App.Suggest()
}

func (c *AboutCmd) Run(ctx *Context) error {
	ctx.App.About()
	return nil
}

func main() {
	var cli CLI
	parser := kong.Must(&cli,
		kong.Name("unext"),
		kong.Description("Handy web tools for the site you are on."),
		kong.UsageOnError(),
	)
	kctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := zap.NewNop()
	if cli.Debug {
		logger, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, closeStore, err := build(cli, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	runErr := kctx.Run(&Context{Context: ctx, App: a})
	closeStore()
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

func build(cli CLI, logger *zap.Logger) (*app.App, func(), error) {
	configPath := cli.Config
	explicit := strings.TrimSpace(configPath) != ""
	if !explicit {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Resolve(configPath, explicit, config.Config{
		Store: config.StoreConfig{Backend: cli.Backend, Path: cli.Store},
		View:  config.ViewConfig{Grouping: cli.Grouping},
		Site:  config.SiteConfig{URL: cli.URL, DevTools: cli.DevTools},
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("config resolved",
		zap.String("backend", cfg.Store.Backend),
		zap.String("store", cfg.Store.Path),
		zap.String("grouping", cfg.View.Grouping),
	)

	static := catalog.Builtin()
	extra, err := catalog.LoadFile(cfg.Catalog.Extra)
	if err != nil {
		return nil, nil, err
	}
	static = append(static, extra...)

	grouping, err := catalog.ParseGrouping(cfg.View.Grouping)
	if err != nil {
		return nil, nil, err
	}

	backend, err := store.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	userTools := store.New(backend, store.Options{Logger: logger})

	var queriers site.ChainQuerier
	if strings.TrimSpace(cfg.Site.URL) != "" {
		queriers = append(queriers, site.StaticQuerier{URL: cfg.Site.URL})
	}
	if strings.TrimSpace(cfg.Site.DevTools) != "" {
		queriers = append(queriers, site.DevToolsQuerier{Endpoint: cfg.Site.DevTools})
	}

	reporter := ui.NewRenderer(ui.Options{
		NoColor: cli.NoColor || os.Getenv("NO_COLOR") != "",
		Out:     os.Stdout,
	})

	a := &app.App{
		Static:   static,
		Store:    userTools,
		Resolver: site.Resolver{Querier: queriers, Logger: logger},
		Grouping: grouping,
		Reporter: reporter,
		Logger:   logger,
		Out:      os.Stdout,
	}
	return a, func() { _ = userTools.Close() }, nil
}
