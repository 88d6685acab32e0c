package mdpress

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"

	"github.com/eringen/mdpress/styles"
)

// SiteConfig holds all configuration for an mdpress site.
type SiteConfig struct {
	Name        string // Site name (default "mdpress")
	URL         string // Canonical URL used in sitemap.xml and feed.xml
	Description string // Site description for the feed and index page

	ContentDir string `validate:"required"` // CONTENT_DIR (default ".")
	OutputDir  string `validate:"required"` // OUTPUT_DIR (default "./out")
	Addr       string `validate:"required"` // Dev server listen address (default ":12345")

	BuildDBPath      string `validate:"required"` // Build history SQLite path (default "data/builds.db")
	BuildConcurrency int    `validate:"min=1"`    // Posts rendered in parallel by build (default 4)
	WatchTemplates   bool   // Reload views when they change (default true via LoadConfig)

	SassBinary string // Dart Sass executable; empty uses "sass" from PATH
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "mdpress"
	}
	if c.Addr == "" {
		c.Addr = ":12345"
	}
	if c.URL == "" {
		c.URL = defaultURL(c.Addr)
	}
	c.URL = strings.TrimSuffix(c.URL, "/")
	if c.ContentDir == "" {
		c.ContentDir = "."
	}
	if c.OutputDir == "" {
		c.OutputDir = "./out"
	}
	if c.BuildDBPath == "" {
		c.BuildDBPath = "data/builds.db"
	}
	if c.BuildConcurrency == 0 {
		c.BuildConcurrency = 4
	}
}

// ErrUnsafeOutput is returned when a build would remove the content it reads.
var ErrUnsafeOutput = errors.New("mdpress: output dir would remove content")

// Validate reports missing or out-of-range settings.
func (c *SiteConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("mdpress: invalid config: %w", err)
	}
	return nil
}

// LoadConfig reads the site configuration from the environment. Variables in
// a .env file in the working directory are loaded first without overriding
// ones already set.
func LoadConfig() SiteConfig {
	_ = godotenv.Load()

	cfg := SiteConfig{
		Name:           EnvOr("SITE_NAME", "mdpress"),
		Description:    EnvOr("SITE_DESCRIPTION", ""),
		ContentDir:     EnvOr("CONTENT_DIR", "."),
		OutputDir:      EnvOr("OUTPUT_DIR", "./out"),
		Addr:           EnvOr("ADDR", ":12345"),
		BuildDBPath:    EnvOr("BUILD_DB_PATH", "data/builds.db"),
		WatchTemplates: envBool("WATCH_TEMPLATES", true),
		SassBinary:     EnvOr("SASS_BINARY", ""),
	}
	cfg.URL = EnvOr("SITE_URL", defaultURL(cfg.Addr))
	if n, err := strconv.Atoi(EnvOr("BUILD_CONCURRENCY", "4")); err == nil {
		cfg.BuildConcurrency = n
	}
	cfg.setDefaults()
	return cfg
}

// defaultURL derives the site URL from a listen address. Wildcard and empty
// hosts map to localhost.
func defaultURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://localhost"
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func envBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(EnvOr(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return b
}

// checkOutputDir refuses an output directory that is the content directory or
// one of its ancestors, since the build removes it first.
func (c SiteConfig) checkOutputDir() error {
	out, err := absPath(c.OutputDir)
	if err != nil {
		return fmt.Errorf("mdpress: output dir: %w", err)
	}
	content, err := absPath(c.ContentDir)
	if err != nil {
		return fmt.Errorf("mdpress: content dir: %w", err)
	}
	rel, err := filepath.Rel(out, content)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s contains %s", ErrUnsafeOutput, c.OutputDir, c.ContentDir)
	}
	return nil
}

// absPath resolves p to an absolute path, following symlinks when p exists.
func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// Paths inside the content directory.
func (c SiteConfig) postsDir() string { return filepath.Join(c.ContentDir, "posts") }
func (c SiteConfig) viewsDir() string { return filepath.Join(c.ContentDir, "views") }
func (c SiteConfig) mediaDir() string { return filepath.Join(c.ContentDir, "media") }
func (c SiteConfig) fontsDir() string { return filepath.Join(c.ContentDir, "fonts") }
func (c SiteConfig) stylesheetPath() string { return filepath.Join(c.ContentDir, "scss", "main.scss") }

// Option configures additional App behavior.
type Option func(*App)

// WithStyleCompiler replaces the Dart Sass compiler.
func WithStyleCompiler(sc styles.Compiler) Option {
	return func(a *App) {
		a.styles = sc
	}
}

// WithLogger sets the logger shared by the server, templates and builds.
func WithLogger(l *log.Logger) Option {
	return func(a *App) {
		a.log = l
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}
