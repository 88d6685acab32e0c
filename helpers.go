package mdpress

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// postURL returns the site-relative URL of the post at rel, a slash path
// under the posts directory with or without its .md extension.
func postURL(rel string) string {
	return "/posts/" + strings.TrimSuffix(rel, ContentExt)
}

// titleFromName turns "posts/hello-world.md" into "Hello World".
func titleFromName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	return cases.Title(language.Und).String(base)
}
