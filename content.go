package mdpress

import (
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/eringen/mdpress/frontmatter"
	"github.com/eringen/mdpress/markdown"
)

// ErrNotFound is returned when no Markdown file matches a URL path.
var ErrNotFound = errors.New("mdpress: content not found")

// ContentExt is the extension of content files.
const ContentExt = ".md"

// Page is one resolved content file.
type Page struct {
	Path    string // file on disk
	Context frontmatter.Context
	Body    string // raw markdown after the frontmatter
	HTML    string // rendered body
}

// ResolveContent maps urlPath onto contentRoot/<urlPath>.md and renders it
// with the default Markdown renderer.
func ResolveContent(urlPath, contentRoot string) (*Page, error) {
	return resolveContent(markdown.New(), urlPath, contentRoot)
}

func resolveContent(md *markdown.Renderer, urlPath, contentRoot string) (*Page, error) {
	rel := strings.Trim(urlPath, "/")
	if rel == "" {
		return nil, ErrNotFound
	}
	path, err := securejoin.SecureJoin(contentRoot, rel+ContentExt)
	if err != nil {
		return nil, fmt.Errorf("mdpress: resolve %s: %w", urlPath, err)
	}
	return loadPage(md, path)
}

func loadPage(md *markdown.Renderer, path string) (*Page, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mdpress: stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return nil, ErrNotFound
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mdpress: read %s: %w", path, err)
	}
	ctx, body, err := frontmatter.Read(string(raw))
	if err != nil {
		return nil, fmt.Errorf("mdpress: %s: %w", path, err)
	}
	html, err := md.Render(body)
	if err != nil {
		return nil, fmt.Errorf("mdpress: render %s: %w", path, err)
	}
	return &Page{Path: path, Context: ctx, Body: body, HTML: html}, nil
}

// TemplateData merges the frontmatter with the rendered body under the
// "markdown" key, which wins over a frontmatter key of the same name.
func (p *Page) TemplateData() map[string]any {
	data := p.Context.Data()
	data["markdown"] = template.HTML(p.HTML)
	return data
}

// Title returns the frontmatter title, or a title-cased form of the file name.
func (p *Page) Title() string {
	if t := p.Context.String("title"); t != "" {
		return t
	}
	return titleFromName(p.Path)
}
