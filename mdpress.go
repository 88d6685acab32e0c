// Package mdpress is a minimal static-site generator built with Go, Echo, and
// html/template. It serves Markdown posts with YAML frontmatter, compiles an
// SCSS theme on request, and writes the same site to a static output tree.
//
// Users own the look of the site through the views directory inside their
// content directory; mdpress handles resolving content, rendering, routing,
// and the static build.
package mdpress

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eringen/mdpress/markdown"
	"github.com/eringen/mdpress/styles"
	"github.com/eringen/mdpress/templates"
)

// App is the central mdpress application. It owns the template renderer,
// stylesheet compiler, build history store, and metrics registry, and wires
// them into the Echo server and the static Builder.
type App struct {
	Config   SiteConfig
	Echo     *echo.Echo
	Renderer *templates.Renderer
	Markdown *markdown.Renderer
	Store    *Store
	Registry *prometheus.Registry

	metrics      *metrics
	styles       styles.Compiler
	log          *log.Logger
	customRoutes []func(*App)
}

// New creates an App for cfg. The views directory is parsed immediately so a
// broken template fails here rather than on the first request.
func New(cfg SiteConfig, opts ...Option) (*App, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Echo:     echo.New(),
		Markdown: markdown.New(),
		Registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.log == nil {
		a.log = log.New("mdpress")
		a.log.SetLevel(log.INFO)
	}
	if a.styles == nil {
		a.styles = styles.NewDartSass(cfg.SassBinary)
	}
	a.metrics = newMetrics(a.Registry)

	r, err := templates.New(cfg.viewsDir(),
		templates.WithLogger(a.log),
		templates.WithMarkdown(a.Markdown),
	)
	if err != nil {
		return nil, fmt.Errorf("mdpress: load views: %w", err)
	}
	a.Renderer = r

	a.Echo.HideBanner = true
	a.Echo.Logger = a.log
	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return a, nil
}

// OpenStore opens the build history database if it is not open yet.
func (a *App) OpenStore() error {
	if a.Store != nil {
		return nil
	}
	store, err := NewStore(a.Config.BuildDBPath)
	if err != nil {
		return fmt.Errorf("mdpress: init store: %w", err)
	}
	a.Store = store
	return nil
}

// Start opens the store, starts the template watcher when enabled, and serves
// until ctx is cancelled or the process receives SIGINT or SIGTERM.
func (a *App) Start(ctx context.Context) error {
	if err := a.OpenStore(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.Config.WatchTemplates {
		if err := a.Renderer.Watch(ctx); err != nil {
			a.log.Warnf("template watcher disabled: %v", err)
		}
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Infof("serving %s on %s", a.Config.ContentDir, a.Config.Addr)
		errc <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("mdpress: shutdown: %w", err)
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/static/media", a.Config.mediaDir())
	e.Static("/static/fonts", a.Config.fontsDir())
	e.GET("/static/styles/theme.css", a.handleStylesheet)

	e.GET("/", a.handleIndex)
	e.GET("/posts/*", a.handlePost)
	e.GET("/sitemap", a.handleSitemap)
	e.GET("/sitemap.xml", a.handleSitemapXML)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/builds", a.handleBuilds)
	e.GET("/metrics", a.metricsHandler())
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	var errs []error
	if a.Renderer != nil {
		errs = append(errs, a.Renderer.Close())
	}
	if c, ok := a.styles.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
