package mdpress

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/mdpress/contenttree"
	"github.com/eringen/mdpress/templates"
	"github.com/eringen/mdpress/views"
)

const notFoundText = "Sorry no exists!"

func (a *App) indexData() (map[string]any, error) {
	posts, err := listPosts(a.Config.postsDir())
	if err != nil {
		return nil, err
	}
	return map[string]any{"site": a.Config, "posts": posts}, nil
}

func (a *App) handleIndex(c echo.Context) error {
	data, err := a.indexData()
	if err != nil {
		return err
	}
	a.metrics.pagesRendered.WithLabelValues("index").Inc()
	return Render(c, a.Renderer.Page(templates.IndexPage, data))
}

func (a *App) handlePost(c echo.Context) error {
	rel := c.Param("*")
	if c.Request().URL.RawPath != "" {
		// Echo routed on the escaped path.
		var err error
		if rel, err = url.PathUnescape(rel); err != nil {
			return c.String(http.StatusNotFound, notFoundText)
		}
	}
	page, err := resolveContent(a.Markdown, rel, a.Config.postsDir())
	if errors.Is(err, ErrNotFound) {
		return c.String(http.StatusNotFound, notFoundText)
	}
	if err != nil {
		return err
	}
	a.metrics.pagesRendered.WithLabelValues("post").Inc()
	return Render(c, a.Renderer.Page(templates.MarkdownPage, a.pageData(page)))
}

func (a *App) pageData(p *Page) map[string]any {
	data := p.TemplateData()
	if _, ok := data["site"]; !ok {
		data["site"] = a.Config
	}
	return data
}

func (a *App) handleStylesheet(c echo.Context) error {
	css, err := a.compileStylesheet()
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "text/css; charset=utf-8", []byte(css))
}

func (a *App) compileStylesheet() (string, error) {
	start := time.Now()
	css, err := a.styles.Compile(a.Config.stylesheetPath())
	a.metrics.stylesheetSeconds.Observe(time.Since(start).Seconds())
	return css, err
}

func (a *App) handleSitemap(c echo.Context) error {
	tree, err := contenttree.BuildTree(a.Config.postsDir())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, contenttree.Flatten(tree))
}

func (a *App) handleSitemapXML(c echo.Context) error {
	posts, err := listPosts(a.Config.postsDir())
	if err != nil {
		return err
	}
	return writeXML(c, "application/xml; charset=utf-8", a.sitemap(posts))
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := listPosts(a.Config.postsDir())
	if err != nil {
		return err
	}
	return writeXML(c, "application/rss+xml; charset=utf-8", a.feed(posts))
}

func (a *App) handleBuilds(c echo.Context) error {
	if a.Store == nil {
		return c.JSON(http.StatusOK, []BuildRecord{})
	}
	builds, err := a.Store.ListBuilds(c.Request().Context(), 20)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, builds)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code < 500 {
		a.Echo.DefaultHTTPErrorHandler(err, c)
		return
	}
	code := http.StatusInternalServerError
	if he != nil {
		code = he.Code
	}
	c.Logger().Errorf("server error: %v", err)
	_ = RenderStatus(c, code, views.ServerError(code))
}
