// Package templates owns the html/template set used to render pages. Templates
// are loaded from a views directory on top of a few embedded defaults, and can
// be reloaded automatically when the directory changes.
package templates

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/a-h/templ"

	"github.com/eringen/mdpress/markdown"
)

// Ext is the file extension of template files inside the views directory.
const Ext = ".html"

// Names of the built-in templates.
const (
	MarkdownPage = "markdown.html"
	IndexPage    = "pages/index.html"
)

// ErrNoTemplate is returned when a named template is not defined.
var ErrNoTemplate = errors.New("templates: no such template")

//go:embed defaults
var defaults embed.FS

// Logger is the subset of the Echo logger the renderer reports to.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{}) {}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used for reload events.
func WithLogger(l Logger) Option {
	return func(r *Renderer) { r.log = l }
}

// WithMarkdown sets the Markdown renderer behind the "markdown" template function.
func WithMarkdown(md *markdown.Renderer) Option {
	return func(r *Renderer) { r.md = md }
}

// Renderer holds a parsed template set. It is safe for concurrent use; Reload
// swaps the whole set atomically.
type Renderer struct {
	dir string
	md  *markdown.Renderer
	log Logger

	mu  sync.RWMutex
	set *template.Template

	watchMu sync.Mutex
	stop    func() error
}

// New parses the embedded defaults and every template under dir. A missing dir
// is not an error: only the defaults are available then.
func New(dir string, opts ...Option) (*Renderer, error) {
	r := &Renderer{dir: dir, log: nopLogger{}}
	for _, opt := range opts {
		opt(r)
	}
	if r.md == nil {
		r.md = markdown.New()
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"markdown": func(src string) (template.HTML, error) {
			out, err := r.md.Render(src)
			return template.HTML(out), err
		},
		"safe": func(s string) template.HTML { return template.HTML(s) },
	}
}

// Reload reparses the template set. On failure the previous set stays active.
func (r *Renderer) Reload() error {
	set, err := r.parse()
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.set = set
	r.mu.Unlock()
	return nil
}

func (r *Renderer) parse() (*template.Template, error) {
	set := template.New("").Funcs(r.funcs())

	err := fs.WalkDir(defaults, "defaults", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		src, err := defaults.ReadFile(p)
		if err != nil {
			return err
		}
		name := strings.TrimPrefix(p, "defaults/")
		if _, err := set.New(name).Parse(string(src)); err != nil {
			return fmt.Errorf("templates: parse default %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return set, nil
		}
		return nil, fmt.Errorf("templates: stat %s: %w", r.dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("templates: %s is not a directory", r.dir)
	}

	err = filepath.WalkDir(r.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), Ext) || shouldIgnore(p) {
			return nil
		}
		rel, err := filepath.Rel(r.dir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		src, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("templates: read %s: %w", name, err)
		}
		if _, err := set.New(name).Parse(string(src)); err != nil {
			return fmt.Errorf("templates: parse %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

func (r *Renderer) current() *template.Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set
}

// Has reports whether name is defined.
func (r *Renderer) Has(name string) bool {
	return r.current().Lookup(name) != nil
}

// Names lists the defined templates in sorted order.
func (r *Renderer) Names() []string {
	var names []string
	for _, t := range r.current().Templates() {
		if t.Name() != "" {
			names = append(names, t.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Execute renders the named template with data into w. Output is buffered so
// nothing is written when execution fails.
func (r *Renderer) Execute(w io.Writer, name string, data any) error {
	t := r.current().Lookup(name)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrNoTemplate, name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("templates: execute %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Page returns a templ.Component that executes the named template.
func (r *Renderer) Page(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return r.Execute(w, name, data)
	})
}
