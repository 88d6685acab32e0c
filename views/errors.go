// Package views holds the built-in pages mdpress renders itself rather than
// through the user's templates.
package views

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
)

// ServerError is the page shown when a request fails with a 5xx status.
func ServerError(code int) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>%d %s</title></head>
<body><main class="error"><h1>%d</h1><p>%s</p></main></body>
</html>
`, code, templ.EscapeString(http.StatusText(code)), code, templ.EscapeString(http.StatusText(code)))
		return err
	})
}
