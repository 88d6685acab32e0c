package mdpress

import (
	"html/template"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/mdpress/frontmatter"
)

func TestResolveContent(t *testing.T) {
	root := t.TempDir()
	writeContent(t, root, map[string]string{"posts/hello.md": helloPost})

	page, err := ResolveContent("/posts/hello", root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "posts", "hello.md"), page.Path)
	assert.Equal(t, "Hello World", page.Context.String("title"))
	assert.Contains(t, page.Body, "## Section One")
	assert.Contains(t, page.HTML, `<a id="section-one" data-orig-text="Section One" href="#section-one">`)
}

func TestResolveContentNotFound(t *testing.T) {
	root := t.TempDir()
	writeContent(t, root, map[string]string{
		"posts/dir.md/x": "",
		"outside.md":     "x",
	})
	for _, p := range []string{"", "/", "missing", "dir", "../outside", "../../outside"} {
		_, err := ResolveContent(p, filepath.Join(root, "posts"))
		assert.ErrorIs(t, err, ErrNotFound, p)
	}
}

func TestResolveContentBodyKeepsDelimiters(t *testing.T) {
	root := t.TempDir()
	writeContent(t, root, map[string]string{"a.md": "---\nA: 1\n---\nfoo\n---\nbar"})

	page, err := ResolveContent("a", root)
	require.NoError(t, err)
	assert.Equal(t, "foo\n---\nbar", page.Body)
	n, ok := page.Context["A"].Int()
	assert.True(t, ok)
	assert.Equal(t, int64(1), n)
}

func TestTemplateData(t *testing.T) {
	p := &Page{
		Context: frontmatter.Context{
			"title":    frontmatter.String("T"),
			"markdown": frontmatter.String("shadowed"),
			"n":        frontmatter.Int(2),
		},
		HTML: "<p>x</p>",
	}
	data := p.TemplateData()
	assert.Equal(t, "T", data["title"])
	assert.Equal(t, int64(2), data["n"])
	assert.Equal(t, template.HTML("<p>x</p>"), data["markdown"])
}

func TestPageTitle(t *testing.T) {
	assert.Equal(t, "Given", (&Page{Context: frontmatter.Context{"title": frontmatter.String("Given")}}).Title())
	assert.Equal(t, "My First Post", (&Page{Path: "posts/my-first_post.md"}).Title())
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base string
		segs []string
		want string
	}{
		{"https://example.com", nil, "https://example.com"},
		{"https://example.com", []string{"/posts/hello"}, "https://example.com/posts/hello/"},
		{"https://example.com/blog", []string{"posts", "a"}, "https://example.com/blog/posts/a/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BuildURL(tt.base, tt.segs...))
	}
}

func TestPostURL(t *testing.T) {
	assert.Equal(t, "/posts/2024/note", postURL("2024/note.md"))
	assert.Equal(t, "/posts/hello", postURL("hello"))
}
