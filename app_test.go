package mdpress

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/mdpress/styles"
)

const helloPost = `---
title: Hello World
date: 2024-01-15
summary: First post
tags: [go, web]
---
Intro text.

## Section One

Body.
`

func writeContent(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

func fakeCompiler(css string, err error) styles.Compiler {
	return styles.CompilerFunc(func(path string) (string, error) {
		if err != nil {
			return "", err
		}
		return css, nil
	})
}

func quietLogger() *log.Logger {
	l := log.New("test")
	l.SetOutput(io.Discard)
	return l
}

// newTestApp creates an App over a temporary content directory holding files.
func newTestApp(t *testing.T, files map[string]string, opts ...Option) *App {
	t.Helper()
	root := t.TempDir()
	writeContent(t, root, files)
	cfg := SiteConfig{
		Name:        "Test Site",
		URL:         "https://example.com",
		Description: "A test site",
		ContentDir:  root,
		OutputDir:   filepath.Join(t.TempDir(), "out"),
		BuildDBPath: filepath.Join(t.TempDir(), "builds.db"),
	}
	opts = append([]Option{
		WithLogger(quietLogger()),
		WithStyleCompiler(fakeCompiler("body{color:red}", nil)),
	}, opts...)
	a, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func doGet(a *App, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(SiteConfig{BuildConcurrency: -1}, WithLogger(quietLogger()))
	require.Error(t, err)
}

func TestNewFailsOnBrokenView(t *testing.T) {
	root := t.TempDir()
	writeContent(t, root, map[string]string{"views/broken.html": "{{if}}"})
	_, err := New(SiteConfig{ContentDir: root}, WithLogger(quietLogger()))
	require.Error(t, err)
}

func TestWithCustomRoutes(t *testing.T) {
	a := newTestApp(t, nil, WithCustomRoutes(func(a *App) {
		a.Echo.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	}))
	rec := doGet(a, "/ping")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "pong", rec.Body.String())
}

func TestEnvOr(t *testing.T) {
	t.Setenv("MDPRESS_TEST_VAR", "set")
	require.Equal(t, "set", EnvOr("MDPRESS_TEST_VAR", "fallback"))
	require.Equal(t, "fallback", EnvOr("MDPRESS_TEST_UNSET", "fallback"))
}

func TestLoadConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONTENT_DIR", "site")
	t.Setenv("ADDR", ":8080")
	t.Setenv("BUILD_CONCURRENCY", "8")
	t.Setenv("WATCH_TEMPLATES", "false")
	t.Setenv("SITE_URL", "")
	t.Setenv("SITE_NAME", "")
	t.Setenv("OUTPUT_DIR", "")

	cfg := LoadConfig()
	require.Equal(t, "site", cfg.ContentDir)
	require.Equal(t, "./out", cfg.OutputDir)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, "http://localhost:8080", cfg.URL)
	require.Equal(t, 8, cfg.BuildConcurrency)
	require.False(t, cfg.WatchTemplates)
	require.Equal(t, "mdpress", cfg.Name)
	require.NoError(t, cfg.Validate())
}

func TestDefaultURL(t *testing.T) {
	tests := map[string]string{
		":12345":           "http://localhost:12345",
		"127.0.0.1:8080":   "http://127.0.0.1:8080",
		"0.0.0.0:80":       "http://localhost:80",
		"[::1]:9000":       "http://[::1]:9000",
		"example.org:8443": "http://example.org:8443",
	}
	for addr, want := range tests {
		assert.Equal(t, want, defaultURL(addr), addr)
	}

	cfg := SiteConfig{Addr: "127.0.0.1:8080"}
	cfg.setDefaults()
	assert.Equal(t, "http://127.0.0.1:8080", cfg.URL)
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SITE_NAME=From Dotenv\n"), 0o644))
	t.Setenv("SITE_NAME", "")
	os.Unsetenv("SITE_NAME")

	cfg := LoadConfig()
	require.Equal(t, "From Dotenv", cfg.Name)
}

func TestCloseStopsStyleCompiler(t *testing.T) {
	closed := false
	a := newTestApp(t, nil, WithStyleCompiler(closingCompiler{closed: &closed}))
	require.NoError(t, a.Close())
	require.True(t, closed)
}

type closingCompiler struct{ closed *bool }

func (closingCompiler) Compile(string) (string, error) { return "", errors.New("unused") }
func (c closingCompiler) Close() error {
	*c.closed = true
	return nil
}

func TestErrorPageIsHTML(t *testing.T) {
	a := newTestApp(t, nil, WithStyleCompiler(fakeCompiler("", errors.New("bad scss"))))
	rec := doGet(a, "/static/styles/theme.css")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	require.Contains(t, rec.Body.String(), "Internal Server Error")
}
