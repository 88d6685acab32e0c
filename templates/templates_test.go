package templates

import (
	"bytes"
	"context"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeView(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func render(t *testing.T, r *Renderer, name string, data any) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, r.Execute(&buf, name, data))
	return buf.String()
}

func TestDefaultsWithoutViewsDir(t *testing.T) {
	r, err := New(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)

	assert.True(t, r.Has(MarkdownPage))
	assert.True(t, r.Has(IndexPage))

	out := render(t, r, MarkdownPage, map[string]any{
		"title":    "Hello <world>",
		"markdown": template.HTML("<p>body</p>"),
	})
	assert.Contains(t, out, `<h1 class="post-title">Hello &lt;world&gt;</h1>`)
	assert.Contains(t, out, "<p>body</p>")
}

func TestUserViewsAndOverride(t *testing.T) {
	dir := t.TempDir()
	writeView(t, dir, "layouts/base.html", `{{define "base"}}<html>{{template "content" .}}</html>{{end}}`)
	writeView(t, dir, "pages/index.html", `{{define "content"}}index {{.name}}{{end}}{{template "base" .}}`)
	writeView(t, dir, "markdown.html", `custom:{{.markdown}}`)
	writeView(t, dir, "notes.txt", `ignored`)
	writeView(t, dir, ".hidden.html", `ignored`)

	r, err := New(dir)
	require.NoError(t, err)

	assert.Equal(t, "<html>index ada</html>", render(t, r, IndexPage, map[string]any{"name": "ada"}))
	assert.Equal(t, "custom:<b>x</b>", render(t, r, MarkdownPage, map[string]any{"markdown": template.HTML("<b>x</b>")}))
	assert.NotContains(t, r.Names(), "notes.txt")
	assert.NotContains(t, r.Names(), ".hidden.html")
	assert.Contains(t, r.Names(), "layouts/base.html")
}

func TestAutoescapeAndFuncs(t *testing.T) {
	dir := t.TempDir()
	writeView(t, dir, "page.html", `{{.raw}}|{{safe .raw}}|{{markdown .md}}`)
	r, err := New(dir)
	require.NoError(t, err)

	out := render(t, r, "page.html", map[string]any{"raw": "<i>x</i>", "md": "# Hi"})
	parts := strings.SplitN(out, "|", 3)
	require.Len(t, parts, 3)
	assert.Equal(t, "&lt;i&gt;x&lt;/i&gt;", parts[0])
	assert.Equal(t, "<i>x</i>", parts[1])
	assert.Contains(t, parts[2], `<h1><a id="hi"`)
}

func TestExecuteUnknownTemplate(t *testing.T) {
	r, err := New(t.TempDir())
	require.NoError(t, err)
	err = r.Execute(&bytes.Buffer{}, "nope.html", nil)
	require.ErrorIs(t, err, ErrNoTemplate)
}

func TestExecuteFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	writeView(t, dir, "bad.html", `start {{template "missing" .}}`)
	r, err := New(dir)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.Error(t, r.Execute(&buf, "bad.html", nil))
	assert.Empty(t, buf.String())
}

func TestParseErrorFailsNew(t *testing.T) {
	dir := t.TempDir()
	writeView(t, dir, "broken.html", `{{if}}`)
	_, err := New(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.html")
}

func TestReloadKeepsPreviousSetOnError(t *testing.T) {
	dir := t.TempDir()
	writeView(t, dir, "page.html", `v1`)
	r, err := New(dir)
	require.NoError(t, err)

	writeView(t, dir, "page.html", `{{if}}`)
	require.Error(t, r.Reload())
	assert.Equal(t, "v1", render(t, r, "page.html", nil))

	writeView(t, dir, "page.html", `v2`)
	require.NoError(t, r.Reload())
	assert.Equal(t, "v2", render(t, r, "page.html", nil))
}

func TestPageComponent(t *testing.T) {
	dir := t.TempDir()
	writeView(t, dir, "page.html", `hi {{.}}`)
	r, err := New(dir)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Page("page.html", "there").Render(context.Background(), &buf))
	assert.Equal(t, "hi there", buf.String())
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeView(t, dir, "page.html", `before`)
	r, err := New(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Watch(ctx))
	defer r.Close()

	writeView(t, dir, "page.html", `after`)
	assert.Eventually(t, func() bool {
		var buf bytes.Buffer
		return r.Execute(&buf, "page.html", nil) == nil && buf.String() == "after"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatchMissingDirIsNoop(t *testing.T) {
	r, err := New(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	require.NoError(t, r.Watch(context.Background()))
	require.NoError(t, r.Close())
}

func TestShouldIgnore(t *testing.T) {
	for _, p := range []string{"a/.page.html", "page.html~", "x.swp", "#page.html#"} {
		assert.True(t, shouldIgnore(p), p)
	}
	assert.False(t, shouldIgnore("views/page.html"))
}

func TestWatchTwiceThenCloseStopsReloading(t *testing.T) {
	dir := t.TempDir()
	writeView(t, dir, "page.html", `one`)
	r, err := New(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, r.Watch(ctx))
	require.NoError(t, r.Watch(ctx))

	writeView(t, dir, "page.html", `two`)
	assert.Eventually(t, func() bool {
		var buf bytes.Buffer
		return r.Execute(&buf, "page.html", nil) == nil && buf.String() == "two"
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, r.Close())

	writeView(t, dir, "page.html", `three`)
	time.Sleep(4 * reloadDelay)
	assert.Equal(t, "two", render(t, r, "page.html", nil))

	// A closed renderer can watch again.
	require.NoError(t, r.Watch(ctx))
	require.NoError(t, r.Close())
}
