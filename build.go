package mdpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eringen/mdpress/contenttree"
	"github.com/eringen/mdpress/templates"
)

// Builder writes the whole site to the output directory.
type Builder struct {
	app *App
	out string

	pages  atomic.Int64
	assets atomic.Int64
}

// NewBuilder returns a Builder writing to a.Config.OutputDir.
func NewBuilder(a *App) *Builder {
	return &Builder{app: a, out: a.Config.OutputDir}
}

// Build runs a static build and records it in the build history.
func (a *App) Build(ctx context.Context) (BuildRecord, error) {
	if err := a.OpenStore(); err != nil {
		return BuildRecord{}, err
	}
	return NewBuilder(a).Run(ctx)
}

// Run cleans the output directory and writes every page and asset. The
// outcome is saved to the App's Store when one is open.
func (b *Builder) Run(ctx context.Context) (BuildRecord, error) {
	rec := NewBuildRecord(b.out)
	log := b.app.log
	log.Infof("build %s: writing %s", rec.ID, b.out)

	err := b.run(ctx)

	rec.FinishedAt = time.Now().UTC()
	rec.Pages = int(b.pages.Load())
	rec.Assets = int(b.assets.Load())
	rec.Status = BuildOK
	if err != nil {
		rec.Status = BuildFailed
		rec.Error = err.Error()
		log.Errorf("build %s failed: %v", rec.ID, err)
	} else {
		log.Infof("build %s: %d pages, %d assets in %s", rec.ID, rec.Pages, rec.Assets, rec.FinishedAt.Sub(rec.StartedAt))
	}
	b.app.metrics.buildsTotal.WithLabelValues(rec.Status).Inc()

	if s := b.app.Store; s != nil {
		if serr := s.SaveBuild(context.WithoutCancel(ctx), rec); serr != nil {
			return rec, errors.Join(err, serr)
		}
	}
	return rec, err
}

func (b *Builder) run(ctx context.Context) error {
	cfg := b.app.Config
	cfg.OutputDir = b.out
	if err := cfg.checkOutputDir(); err != nil {
		return err
	}
	if err := os.RemoveAll(b.out); err != nil {
		return fmt.Errorf("mdpress: clean %s: %w", b.out, err)
	}
	if err := os.MkdirAll(b.out, 0o755); err != nil {
		return fmt.Errorf("mdpress: create %s: %w", b.out, err)
	}

	if err := b.writeIndex(); err != nil {
		return err
	}
	entries, err := b.writePosts(ctx)
	if err != nil {
		return err
	}
	if err := b.writeStylesheet(); err != nil {
		return err
	}
	for src, dst := range map[string]string{
		b.app.Config.mediaDir(): "static/media",
		b.app.Config.fontsDir(): "static/fonts",
	} {
		if err := b.copyTree(src, dst); err != nil {
			return err
		}
	}
	return b.writeSitemaps(entries)
}

func (b *Builder) writeIndex() error {
	data, err := b.app.indexData()
	if err != nil {
		return err
	}
	if err := b.render("index.html", templates.IndexPage, data); err != nil {
		return err
	}
	b.pages.Add(1)
	return nil
}

// writePosts renders every Markdown leaf under the posts directory and copies
// the other files next to them. It returns the flattened posts tree.
func (b *Builder) writePosts(ctx context.Context) (contenttree.Entries, error) {
	dir := b.app.Config.postsDir()
	tree, err := contenttree.BuildTree(dir)
	if errors.Is(err, contenttree.ErrNotFound) {
		return contenttree.Entries{}, nil
	}
	if err != nil {
		return nil, err
	}
	entries := contenttree.Flatten(tree)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.app.Config.BuildConcurrency)
	for _, e := range entries.Leaves() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src := filepath.Join(dir, filepath.FromSlash(e.Path))
			if !isMarkdown(e.Path) {
				return b.copyFile(src, path.Join("posts", e.Path))
			}
			return b.writePost(src, e.Path)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (b *Builder) writePost(src, rel string) error {
	page, err := loadPage(b.app.Markdown, src)
	if err != nil {
		return err
	}
	dst := path.Join(strings.TrimPrefix(postURL(rel), "/"), "index.html")
	if err := b.render(dst, templates.MarkdownPage, b.app.pageData(page)); err != nil {
		return err
	}
	b.app.metrics.pagesRendered.WithLabelValues("post").Inc()
	b.pages.Add(1)
	return nil
}

func (b *Builder) writeStylesheet() error {
	if _, err := os.Stat(b.app.Config.stylesheetPath()); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	css, err := b.app.compileStylesheet()
	if err != nil {
		return err
	}
	if err := b.writeFile("static/styles/theme.css", []byte(css)); err != nil {
		return err
	}
	b.assets.Add(1)
	return nil
}

func (b *Builder) writeSitemaps(entries contenttree.Entries) error {
	js, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	if err := b.writeFile("sitemap.json", js); err != nil {
		return err
	}

	posts, err := listPosts(b.app.Config.postsDir())
	if err != nil {
		return err
	}
	for name, v := range map[string]any{
		"sitemap.xml": b.app.sitemap(posts),
		"feed.xml":    b.app.feed(posts),
	} {
		var buf bytes.Buffer
		if err := encodeXML(&buf, v); err != nil {
			return fmt.Errorf("mdpress: encode %s: %w", name, err)
		}
		if err := b.writeFile(name, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) render(rel, name string, data any) error {
	var buf bytes.Buffer
	if err := b.app.Renderer.Execute(&buf, name, data); err != nil {
		return fmt.Errorf("mdpress: render %s: %w", rel, err)
	}
	return b.writeFile(rel, buf.Bytes())
}

func (b *Builder) writeFile(rel string, data []byte) error {
	dst := filepath.Join(b.out, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mdpress: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("mdpress: write %s: %w", rel, err)
	}
	return nil
}

// copyTree copies the files under src to rel inside the output directory. A
// missing src is skipped.
func (b *Builder) copyTree(src, rel string) error {
	tree, err := contenttree.BuildTree(src)
	if errors.Is(err, contenttree.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range contenttree.Flatten(tree).Leaves() {
		if err := b.copyFile(filepath.Join(src, filepath.FromSlash(e.Path)), path.Join(rel, e.Path)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) copyFile(src, rel string) error {
	dst := filepath.Join(b.out, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mdpress: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("mdpress: copy %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("mdpress: copy %s: %w", src, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("mdpress: copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("mdpress: copy %s: %w", src, err)
	}
	b.assets.Add(1)
	return nil
}
