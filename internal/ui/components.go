// Package ui contains the HTML components for the bucket browser pages.
package ui

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
)

// Dir is a subdirectory (common prefix) within a listing.
type Dir struct {
	Name   string
	Prefix string
}

// Object is a single downloadable object within a listing.
type Object struct {
	Key          string
	Name         string
	Size         int64
	LastModified string
}

// Download is a single entry on the activity page.
type Download struct {
	Key        string
	Mode       string
	RemoteAddr string
	Time       string
}

// Layout renders a full HTML page with a title and body component.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<!DOCTYPE html><html lang=\"en\">")
		if err != nil {
			return err
		}

		// Head
		_, err = io.WriteString(w, "<head><meta charset=\"utf-8\">")
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, "<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">")
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, "<title>")
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, html.EscapeString(title))
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, "</title>")
		if err != nil {
			return err
		}
		// Minimal modern CSS framework (Pico.css) via CDN.
		_, err = io.WriteString(w, "<link rel=\"stylesheet\" href=\"https://unpkg.com/@picocss/pico@2/css/pico.min.css\">")
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, "</head>")
		if err != nil {
			return err
		}

		_, err = io.WriteString(w, "<body><main class=\"container\">")
		if err != nil {
			return err
		}

		if err := body.Render(ctx, w); err != nil {
			return err
		}

		_, err = io.WriteString(w, "</main></body></html>")
		return err
	})
}

// browseURL builds a link to the browse page for the given prefix.
func browseURL(prefix string) string {
	return "/browse/" + prefix
}

// downloadURL builds a link to the download handler for the given key.
func downloadURL(key string) string {
	return "/download?key=" + url.QueryEscape(key)
}

// breadcrumbs renders a navigation trail from the bucket root down to the
// current prefix, one link per path segment.
func breadcrumbs(w io.Writer, bucket, prefix string) error {
	_, err := io.WriteString(w, "<nav aria-label=\"breadcrumb\"><ul>")
	if err != nil {
		return err
	}

	item := fmt.Sprintf("<li><a href=\"%s\">%s</a></li>", browseURL(""), html.EscapeString(bucket))
	_, err = io.WriteString(w, item)
	if err != nil {
		return err
	}

	var walked strings.Builder
	for _, seg := range strings.Split(strings.TrimSuffix(prefix, "/"), "/") {
		if seg == "" {
			continue
		}
		walked.WriteString(seg)
		walked.WriteString("/")
		item := fmt.Sprintf("<li><a href=\"%s\">%s</a></li>", browseURL(walked.String()), html.EscapeString(seg))
		_, err = io.WriteString(w, item)
		if err != nil {
			return err
		}
	}

	_, err = io.WriteString(w, "</ul></nav>")
	return err
}

// BrowsePage renders the directory listing for a single prefix:
// subdirectories first, then objects with download links.
func BrowsePage(bucket, prefix string, dirs []Dir, objects []Object) templ.Component {
	title := bucket
	if prefix != "" {
		title = bucket + "/" + prefix
	}

	return Layout("Ledge - "+title, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<section><header>")
		if err != nil {
			return err
		}

		if err := breadcrumbs(w, bucket, prefix); err != nil {
			return err
		}

		_, err = io.WriteString(w, "<p><a href=\"/activity\">Recent downloads</a></p></header>")
		if err != nil {
			return err
		}

		if len(dirs) == 0 && len(objects) == 0 {
			_, err = io.WriteString(w, "<p>Nothing under this prefix.</p></section>")
			return err
		}

		_, err = io.WriteString(w, "<table><thead><tr><th>Name</th><th>Size (bytes)</th><th>Last Modified</th></tr></thead><tbody>")
		if err != nil {
			return err
		}

		for _, d := range dirs {
			row := fmt.Sprintf("<tr><td><a href=\"%s\">%s/</a></td><td>&mdash;</td><td>&mdash;</td></tr>",
				html.EscapeString(browseURL(d.Prefix)), html.EscapeString(d.Name))
			_, err = io.WriteString(w, row)
			if err != nil {
				return err
			}
		}

		for _, o := range objects {
			row := fmt.Sprintf("<tr><td><a href=\"%s\">%s</a></td><td>%d</td><td>%s</td></tr>",
				html.EscapeString(downloadURL(o.Key)), html.EscapeString(o.Name), o.Size, html.EscapeString(o.LastModified))
			_, err = io.WriteString(w, row)
			if err != nil {
				return err
			}
		}

		_, err = io.WriteString(w, "</tbody></table></section>")
		return err
	}))
}

// ActivityPage renders the recent download log.
func ActivityPage(bucket string, downloads []Download) templ.Component {
	return Layout("Ledge - Activity", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<section><header><h1>Recent downloads</h1>")
		if err != nil {
			return err
		}

		back := fmt.Sprintf("<p><a href=\"%s\">&larr; Back to %s</a></p></header>", browseURL(""), html.EscapeString(bucket))
		_, err = io.WriteString(w, back)
		if err != nil {
			return err
		}

		if len(downloads) == 0 {
			_, err = io.WriteString(w, "<p>No downloads recorded.</p></section>")
			return err
		}

		_, err = io.WriteString(w, "<table><thead><tr><th>Key</th><th>Mode</th><th>Client</th><th>Time</th></tr></thead><tbody>")
		if err != nil {
			return err
		}

		for _, d := range downloads {
			row := fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
				html.EscapeString(d.Key), html.EscapeString(d.Mode), html.EscapeString(d.RemoteAddr), html.EscapeString(d.Time))
			_, err = io.WriteString(w, row)
			if err != nil {
				return err
			}
		}

		_, err = io.WriteString(w, "</tbody></table></section>")
		return err
	}))
}
