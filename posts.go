package mdpress

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eringen/mdpress/contenttree"
	"github.com/eringen/mdpress/frontmatter"
)

// PostLink describes one post for the index page and the feeds.
type PostLink struct {
	Path    string // slash path under the posts directory, with extension
	URL     string // site-relative URL
	Title   string
	Date    string
	Summary string
	Depth   int
}

// listPosts returns every Markdown post under dir in sitemap order. A missing
// posts directory yields no posts.
func listPosts(dir string) ([]PostLink, error) {
	tree, err := contenttree.BuildTree(dir)
	if errors.Is(err, contenttree.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var posts []PostLink
	for _, e := range contenttree.Flatten(tree).Leaves() {
		if !isMarkdown(e.Path) {
			continue
		}
		p, err := readPostLink(dir, e)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func readPostLink(dir string, e contenttree.Entry) (PostLink, error) {
	raw, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(e.Path)))
	if err != nil {
		return PostLink{}, fmt.Errorf("mdpress: read %s: %w", e.Path, err)
	}
	fm, _ := frontmatter.Split(string(raw))
	ctx, err := frontmatter.Parse(fm)
	if err != nil {
		return PostLink{}, fmt.Errorf("mdpress: %s: %w", e.Path, err)
	}
	p := PostLink{
		Path:    e.Path,
		URL:     postURL(e.Path),
		Title:   ctx.String("title"),
		Date:    ctx["date"].String(),
		Summary: ctx.String("summary"),
		Depth:   e.Depth,
	}
	if p.Title == "" {
		p.Title = titleFromName(e.Name)
	}
	return p, nil
}

// isMarkdown matches the extension exactly, as ResolveContent does.
func isMarkdown(name string) bool {
	return filepath.Ext(name) == ContentExt
}
