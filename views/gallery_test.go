package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func render(t *testing.T, p GalleryPage) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Gallery(p).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return buf.String()
}

func TestGalleryEscapesContent(t *testing.T) {
	html := render(t, GalleryPage{
		SiteName: "Site",
		Title:    `<script>alert("x")</script>`,
		Images:   []GalleryImage{{URL: "/uploads/photos/a.png", Caption: "Tom & Jerry"}},
	})
	if strings.Contains(html, "<script>") {
		t.Error("title was not escaped")
	}
	if !strings.Contains(html, "Tom &amp; Jerry") {
		t.Error("caption was not escaped")
	}
	if !strings.Contains(html, `src="/uploads/photos/a.png"`) {
		t.Error("image src missing")
	}
}

func TestGalleryUnsafeImageURL(t *testing.T) {
	html := render(t, GalleryPage{
		Title:  "t",
		Images: []GalleryImage{{URL: "javascript:alert(1)"}},
	})
	if strings.Contains(html, "javascript:") {
		t.Error("unsafe image URL was rendered")
	}
}

func TestGalleryEmptyAndQR(t *testing.T) {
	html := render(t, GalleryPage{Title: "Empty", SiteName: "Site"})
	if !strings.Contains(html, "No photos have been added") {
		t.Error("empty gallery message missing")
	}
	if strings.Contains(html, `class="share"`) {
		t.Error("share block rendered without a QR code")
	}

	html = render(t, GalleryPage{Title: "Shared", QRCode: "data:image/png;base64,AAAA", URL: "https://x.example/photoGallery/shared"})
	if !strings.Contains(html, `src="data:image/png;base64,AAAA"`) {
		t.Error("QR code image missing")
	}
	if !strings.Contains(html, `href="https://x.example/photoGallery/shared"`) {
		t.Error("gallery link missing")
	}
}

func TestPageTitle(t *testing.T) {
	if got := pageTitle("  ", "Site"); got != "Site" {
		t.Errorf("pageTitle = %q, want %q", got, "Site")
	}
	if got := pageTitle("Show", "Site"); got != "Show | Site" {
		t.Errorf("pageTitle = %q, want %q", got, "Show | Site")
	}
}

func TestMetaLineAndCount(t *testing.T) {
	if got := metaLine("Concert", "", PhotoCount(1)); got != "Concert · 1 photo" {
		t.Errorf("metaLine = %q, want %q", got, "Concert · 1 photo")
	}
	if got := PhotoCount(3); got != "3 photos" {
		t.Errorf("PhotoCount = %q, want %q", got, "3 photos")
	}
}

func TestNotFoundAndServerError(t *testing.T) {
	var buf bytes.Buffer
	if err := NotFound("Site").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Gallery not found") {
		t.Error("not found heading missing")
	}
	buf.Reset()
	if err := ServerError("Site").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Something went wrong") {
		t.Error("server error heading missing")
	}
}
