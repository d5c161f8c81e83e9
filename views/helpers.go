package views

import (
	"fmt"
	"strings"
)

// pageTitle builds the <title> text, "Page | Site" or just the site name.
func pageTitle(title, siteName string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return siteName
	}
	return title + " | " + siteName
}

// metaLine joins the non-empty parts shown under the gallery heading.
func metaLine(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " · ")
}

// imageAlt falls back to a numbered description for uncaptioned images.
func imageAlt(img GalleryImage, title string, i int) string {
	if c := strings.TrimSpace(img.Caption); c != "" {
		return c
	}
	return fmt.Sprintf("%s, photo %d", title, i+1)
}

// PhotoCount renders "1 photo" or "n photos".
func PhotoCount(n int) string {
	if n == 1 {
		return "1 photo"
	}
	return fmt.Sprintf("%d photos", n)
}
