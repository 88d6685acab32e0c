// Package markdown renders Markdown to HTML with GitHub-flavoured extensions
// and a linkable anchor in front of every heading.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"strings"
	"unicode"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var accentFolder = strings.NewReplacer("å", "a", "ä", "a", "ö", "o")

// HeadingID derives the anchor id for a heading: lower-cased, with å/ä folded
// to a and ö to o, and every run of whitespace replaced by a single hyphen.
// Identical headings get identical ids.
func HeadingID(text string) string {
	s := accentFolder.Replace(cases.Lower(language.Und).String(text))
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('-')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// Renderer converts Markdown to HTML. It holds no per-call state and can be
// shared between goroutines.
type Renderer struct {
	md goldmark.Markdown
}

// New builds a Renderer with GFM enabled and raw HTML passed through.
func New() *Renderer {
	return &Renderer{md: goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			gmhtml.WithUnsafe(),
			renderer.WithNodeRenderers(util.Prioritized(&headingRenderer{}, 100)),
		),
	)}
}

// RenderTo writes the HTML for src to w.
func (r *Renderer) RenderTo(w io.Writer, src string) error {
	if err := r.md.Convert([]byte(src), w); err != nil {
		return fmt.Errorf("markdown: %w", err)
	}
	return nil
}

// Render returns the HTML for src.
func (r *Renderer) Render(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderTo(&buf, src); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Component returns a templ.Component that renders src as HTML.
func (r *Renderer) Component(src string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return r.RenderTo(w, src)
	})
}

var defaultRenderer = New()

// Render converts src with the default Renderer.
func Render(src string) (string, error) {
	return defaultRenderer.Render(src)
}

// RenderMarkdown writes the HTML representation of md to buf.
func RenderMarkdown(buf *bytes.Buffer, md string) error {
	return defaultRenderer.RenderTo(buf, md)
}

// Markdown returns a templ.Component that renders md as HTML.
func Markdown(md string) templ.Component {
	return defaultRenderer.Component(md)
}

type headingRenderer struct{}

func (r *headingRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindHeading, r.renderHeading)
}

func (r *headingRenderer) renderHeading(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Heading)
	if !entering {
		_, _ = fmt.Fprintf(w, "</h%d>\n", n.Level)
		return ast.WalkContinue, nil
	}
	text := PlainText(n, source)
	id := html.EscapeString(HeadingID(text))
	_, _ = fmt.Fprintf(w, `<h%d><a id="%s" data-orig-text="%s" href="#%s"><span class="header-anchor-link"></span></a>`,
		n.Level, id, html.EscapeString(text), id)
	return ast.WalkContinue, nil
}

// PlainText collects the visible text below n, dropping inline markup.
func PlainText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.Label(source))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
