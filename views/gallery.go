package views

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const stylesheet = "/assets/gallery.css"

// layout wraps body in the shared page shell.
func layout(title, siteName string, body func(w io.Writer) error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!doctype html><html lang=\"en\"><head><meta charset=\"utf-8\">")
		b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">")
		b.WriteString("<title>" + templ.EscapeString(pageTitle(title, siteName)) + "</title>")
		b.WriteString("<link rel=\"stylesheet\" href=\"" + stylesheet + "\">")
		b.WriteString("<link rel=\"alternate\" type=\"application/rss+xml\" href=\"/feed.xml\" title=\"" + templ.EscapeString(siteName) + "\">")
		b.WriteString("</head><body>")
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if err := body(w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

// Gallery renders the public page of one photo event.
func Gallery(p GalleryPage) templ.Component {
	return layout(p.Title, p.SiteName, func(w io.Writer) error {
		var b strings.Builder
		b.WriteString("<header class=\"gallery-head\">")
		b.WriteString("<h1>" + templ.EscapeString(p.Title) + "</h1>")
		b.WriteString("<p class=\"meta\">" + templ.EscapeString(metaLine(p.EventType, p.Date, PhotoCount(len(p.Images)))) + "</p>")
		b.WriteString("</header>")

		if len(p.Images) == 0 {
			b.WriteString("<p class=\"empty\">No photos have been added to this gallery yet.</p>")
		} else {
			b.WriteString("<main class=\"grid\">")
			for i, img := range p.Images {
				b.WriteString("<figure>")
				b.WriteString("<img loading=\"lazy\" src=\"" + templ.EscapeString(string(templ.URL(img.URL))) + "\" alt=\"" + templ.EscapeString(imageAlt(img, p.Title, i)) + "\">")
				if img.Caption != "" {
					b.WriteString("<figcaption>" + templ.EscapeString(img.Caption) + "</figcaption>")
				}
				b.WriteString("</figure>")
			}
			b.WriteString("</main>")
		}

		if p.QRCode != "" {
			b.WriteString("<aside class=\"share\">")
			b.WriteString("<img src=\"" + templ.EscapeString(p.QRCode) + "\" alt=\"QR code for this gallery\" width=\"160\" height=\"160\">")
			b.WriteString("<a href=\"" + templ.EscapeString(string(templ.URL(p.URL))) + "\">" + templ.EscapeString(p.URL) + "</a>")
			b.WriteString("</aside>")
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// NotFound renders the page shown for unknown gallery permalinks.
func NotFound(siteName string) templ.Component {
	return layout("Gallery not found", siteName, func(w io.Writer) error {
		_, err := io.WriteString(w, "<main class=\"not-found\"><h1>Gallery not found</h1><p>The gallery you are looking for does not exist or has been removed.</p></main>")
		return err
	})
}

// ServerError renders the page shown when a gallery cannot be loaded.
func ServerError(siteName string) templ.Component {
	return layout("Something went wrong", siteName, func(w io.Writer) error {
		_, err := io.WriteString(w, "<main class=\"not-found\"><h1>Something went wrong</h1><p>Please try again in a moment.</p></main>")
		return err
	})
}
