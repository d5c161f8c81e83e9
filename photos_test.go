package cmsengine

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/eringen/cmsengine/upload"
)

type photoResponse struct {
	Message        string `json:"message"`
	Photo          Photo  `json:"photo"`
	QRCodeLocation string `json:"qr_code_location"`
}

func photoFields(title string) []formField {
	return []formField{
		{"title", title},
		{"eventType", "Concert"},
		{"date", "2024-05-10"},
	}
}

func createTestPhoto(t *testing.T, a *App, fields []formField, files []formFile) Photo {
	t.Helper()
	body, ctype := multipartBody(t, fields, files)
	rec := a.api(http.MethodPost, "/photos", body, ctype)
	expectStatus(t, rec, http.StatusCreated)
	return decode[photoResponse](t, rec).Photo
}

// qrDarkPixels decodes a PNG data URI and counts its black pixels.
func qrDarkPixels(t *testing.T, uri string) int {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	if err != nil {
		t.Fatalf("DecodeString failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode failed: %v", err)
	}
	dark := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y < 128 {
				dark++
			}
		}
	}
	return dark
}

func captionsOf(images []upload.Image) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		out = append(out, img.Caption)
	}
	return out
}

func TestCreatePhoto(t *testing.T) {
	a := newTestApp(t)
	body, ctype := multipartBody(t, photoFields("Summer Night Live!"), pngFiles("images", 2))
	rec := a.api(http.MethodPost, "/photos", body, ctype)
	expectStatus(t, rec, http.StatusCreated)
	resp := decode[photoResponse](t, rec)

	if resp.Message != "Photo event created successfully" {
		t.Errorf("Message = %q, want %q", resp.Message, "Photo event created successfully")
	}
	if resp.QRCodeLocation == "" {
		t.Error("qr_code_location should be set")
	}
	p := resp.Photo
	if p.Permalink != "summer-night-live" {
		t.Errorf("Permalink = %q, want %q", p.Permalink, "summer-night-live")
	}
	if !strings.HasPrefix(p.QRCode, "data:image/png;base64,") {
		t.Errorf("QRCode = %.40q, want a PNG data URI", p.QRCode)
	}
	if n := qrDarkPixels(t, p.QRCode); n == 0 {
		t.Error("QR code image has no dark modules")
	}
	if len(p.Images) != 2 {
		t.Fatalf("len(Images) = %d, want 2", len(p.Images))
	}
	for _, img := range p.Images {
		if !strings.HasPrefix(img.URL, "/uploads/photos/images-") {
			t.Errorf("URL = %q, want /uploads/photos/images-*", img.URL)
		}
		if _, err := os.Stat(diskPath(a, img.URL)); err != nil {
			t.Errorf("image not on disk: %v", err)
		}
	}
}

func TestCreatePhotoSingleCaption(t *testing.T) {
	a := newTestApp(t)
	fields := append(photoFields("Team Day"), formField{"captions", "Team Photo"})
	p := createTestPhoto(t, a, fields, pngFiles("images", 3))

	if want := []string{"Team Photo", "Team Photo", "Team Photo"}; !reflect.DeepEqual(captionsOf(p.Images), want) {
		t.Errorf("captions = %q, want %q", captionsOf(p.Images), want)
	}
}

func TestCreatePhotoCaptionList(t *testing.T) {
	a := newTestApp(t)
	fields := append(photoFields("Lists"), formField{"captions", "a"}, formField{"captions", "b"})
	p := createTestPhoto(t, a, fields, pngFiles("images", 3))

	if want := []string{"a", "b", ""}; !reflect.DeepEqual(captionsOf(p.Images), want) {
		t.Errorf("captions = %q, want %q", captionsOf(p.Images), want)
	}
}

func TestCreatePhotoBracketCaptions(t *testing.T) {
	a := newTestApp(t)
	// A single "captions[]" value is still a list: it captions only the first file.
	fields := append(photoFields("Brackets"), formField{"captions[]", "only first"})
	p := createTestPhoto(t, a, fields, pngFiles("images", 2))

	if want := []string{"only first", ""}; !reflect.DeepEqual(captionsOf(p.Images), want) {
		t.Errorf("captions = %q, want %q", captionsOf(p.Images), want)
	}
}

func TestCreatePhotoTooManyImages(t *testing.T) {
	a := newTestApp(t)
	body, ctype := multipartBody(t, photoFields("Too Many"), pngFiles("images", MaxImages+1))
	rec := a.api(http.MethodPost, "/photos", body, ctype)
	expectStatus(t, rec, http.StatusBadRequest)
	if got := decode[map[string]any](t, rec)["message"]; got != tooManyImagesMsg {
		t.Errorf("message = %v, want %q", got, tooManyImagesMsg)
	}

	list := decode[[]Photo](t, a.api(http.MethodGet, "/photos", nil, ""))
	if len(list) != 0 {
		t.Errorf("len(photos) = %d, want 0", len(list))
	}
	if files := storedFiles(t, a, "photos"); len(files) != 0 {
		t.Errorf("stored %d files, want none", len(files))
	}
}

func TestCreatePhotoDuplicatePermalink(t *testing.T) {
	a := newTestApp(t)
	createTestPhoto(t, a, photoFields("Same Title"), pngFiles("images", 1))

	body, ctype := multipartBody(t, photoFields("Same Title"), pngFiles("images", 1))
	rec := a.api(http.MethodPost, "/photos", body, ctype)
	expectStatus(t, rec, http.StatusConflict)

	if files := storedFiles(t, a, "photos"); len(files) != 1 {
		t.Errorf("stored files = %v, want only the first gallery's", files)
	}
	list := decode[[]Photo](t, a.api(http.MethodGet, "/photos", nil, ""))
	if len(list) != 1 {
		t.Errorf("len(photos) = %d, want 1", len(list))
	}
}

func TestCreatePhotoWithoutSlug(t *testing.T) {
	a := newTestApp(t)
	body, ctype := multipartBody(t, photoFields("!!!"), nil)
	rec := a.api(http.MethodPost, "/photos", body, ctype)
	expectStatus(t, rec, http.StatusBadRequest)
	fields := decode[struct {
		Fields map[string]string `json:"fields"`
	}](t, rec).Fields
	if fields["permalink"] == "" {
		t.Errorf("fields = %v, want a permalink entry", fields)
	}
}

func TestUpdatePhotoImages(t *testing.T) {
	a := newTestApp(t)
	created := createTestPhoto(t, a, photoFields("Merge"), pngFiles("images", 2))
	id := created.ID.Hex()

	// No images and no existing list: the gallery keeps its images.
	body, ctype := multipartBody(t, []formField{{"eventType", "Festival"}}, nil)
	rec := a.api(http.MethodPut, "/photos/"+id, body, ctype)
	expectStatus(t, rec, http.StatusOK)
	got := decode[photoResponse](t, rec).Photo
	if got.EventType != "Festival" || len(got.Images) != 2 {
		t.Fatalf("got eventType %q with %d images, want Festival with 2", got.EventType, len(got.Images))
	}
	if got.QRCode != created.QRCode {
		t.Error("QR code should not change while the permalink stays")
	}

	// Existing list plus uploads: the kept image comes first.
	kept, _ := json.Marshal(created.Images[1])
	fields := []formField{{"existingImages", string(kept)}, {"captions", "new"}}
	body, ctype = multipartBody(t, fields, pngFiles("images", 1))
	rec = a.api(http.MethodPut, "/photos/"+id, body, ctype)
	expectStatus(t, rec, http.StatusOK)
	got = decode[photoResponse](t, rec).Photo
	if len(got.Images) != 2 {
		t.Fatalf("len(Images) = %d, want 2", len(got.Images))
	}
	if got.Images[0].URL != created.Images[1].URL {
		t.Errorf("Images[0] = %q, want kept %q", got.Images[0].URL, created.Images[1].URL)
	}
	if got.Images[1].Caption != "new" {
		t.Errorf("Images[1].Caption = %q, want %q", got.Images[1].Caption, "new")
	}

	// Uploads without an existing list replace the images.
	body, ctype = multipartBody(t, nil, pngFiles("images", 1))
	rec = a.api(http.MethodPut, "/photos/"+id, body, ctype)
	expectStatus(t, rec, http.StatusOK)
	if n := len(decode[photoResponse](t, rec).Photo.Images); n != 1 {
		t.Errorf("len(Images) = %d, want 1", n)
	}
}

func TestUpdatePhotoTooManyImages(t *testing.T) {
	a := newTestApp(t)
	created := createTestPhoto(t, a, photoFields("Full"), pngFiles("images", 1))
	kept, _ := json.Marshal(created.Images)

	body, ctype := multipartBody(t, []formField{{"existingImages", string(kept)}}, pngFiles("images", MaxImages))
	rec := a.api(http.MethodPut, "/photos/"+created.ID.Hex(), body, ctype)
	expectStatus(t, rec, http.StatusBadRequest)
	if files := storedFiles(t, a, "photos"); len(files) != 1 {
		t.Errorf("stored %d files, want 1", len(files))
	}
}

func TestUpdatePhotoPermalink(t *testing.T) {
	a := newTestApp(t)
	created := createTestPhoto(t, a, photoFields("First Name"), nil)
	other := createTestPhoto(t, a, photoFields("Taken"), nil)
	id := created.ID.Hex()

	rec := a.apiJSON(t, http.MethodPut, "/photos/"+id, map[string]any{"title": "Second Name", "permalink": ""})
	expectStatus(t, rec, http.StatusOK)
	got := decode[photoResponse](t, rec).Photo
	if got.Permalink != "second-name" {
		t.Errorf("Permalink = %q, want %q", got.Permalink, "second-name")
	}
	if got.QRCode == created.QRCode {
		t.Error("QR code should change with the permalink")
	}

	rec = a.apiJSON(t, http.MethodPut, "/photos/"+id, map[string]any{"permalink": other.Permalink})
	expectStatus(t, rec, http.StatusConflict)
}

func TestDeletePhotoRemovesFiles(t *testing.T) {
	a := newTestApp(t)
	p := createTestPhoto(t, a, photoFields("Bye"), pngFiles("images", 3))

	rec := a.api(http.MethodDelete, "/photos/"+p.ID.Hex(), nil, "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[map[string]string](t, rec)["message"]; got != "Photo event deleted successfully" {
		t.Errorf("message = %q, want %q", got, "Photo event deleted successfully")
	}
	if files := storedFiles(t, a, "photos"); len(files) != 0 {
		t.Errorf("stored files = %v, want none", files)
	}
	expectStatus(t, a.api(http.MethodGet, "/photos/"+p.ID.Hex(), nil, ""), http.StatusNotFound)
}

func TestGalleryPage(t *testing.T) {
	a := newTestApp(t)
	fields := append(photoFields("Open <Air>"), formField{"captions", "Crowd & stage"})
	p := createTestPhoto(t, a, fields, pngFiles("images", 1))

	rec := a.serve(http.MethodGet, "/photoGallery/"+p.Permalink, nil, "")
	expectStatus(t, rec, http.StatusOK)
	html := rec.Body.String()
	for _, want := range []string{"Open &lt;Air&gt;", "Crowd &amp; stage", "May 10, 2024", p.Images[0].URL, "https://photos.example.com/photoGallery/open-air"} {
		if !strings.Contains(html, want) {
			t.Errorf("page does not contain %q", want)
		}
	}

	rec = a.serve(http.MethodGet, "/photoGallery/nope", nil, "")
	expectStatus(t, rec, http.StatusNotFound)
	if !strings.Contains(rec.Body.String(), "Gallery not found") {
		t.Error("missing gallery should render the not-found page")
	}
}

func TestFeedAndSitemap(t *testing.T) {
	a := newTestApp(t)
	createTestPhoto(t, a, photoFields("Winter Ball"), nil)

	for _, target := range []string{"/feed.xml", "/sitemap.xml"} {
		rec := a.serve(http.MethodGet, target, nil, "")
		expectStatus(t, rec, http.StatusOK)
		if !strings.Contains(rec.Body.String(), "https://photos.example.com/photoGallery/winter-ball") {
			t.Errorf("%s does not link the gallery: %s", target, rec.Body.String())
		}
	}
}

func TestUploadedFilesAreServed(t *testing.T) {
	a := newTestApp(t)
	p := createTestPhoto(t, a, photoFields("Served"), pngFiles("images", 1))

	rec := a.serve(http.MethodGet, p.Images[0].URL, nil, "")
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != string(pngBytes) {
		t.Error("served file differs from the upload")
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "immutable") {
		t.Errorf("Cache-Control = %q, want immutable", cc)
	}
}

func TestUpdatePhotoBlankExistingImagesKeepsGallery(t *testing.T) {
	a := newTestApp(t)
	created := createTestPhoto(t, a, photoFields("Blank Field"), pngFiles("images", 2))

	body, ctype := multipartBody(t, []formField{{"existingImages", ""}, {"eventType", "Gala"}}, nil)
	rec := a.api(http.MethodPut, "/photos/"+created.ID.Hex(), body, ctype)
	expectStatus(t, rec, http.StatusOK)
	got := decode[photoResponse](t, rec).Photo
	if len(got.Images) != 2 {
		t.Errorf("len(Images) = %d, want 2 kept", len(got.Images))
	}

	// An explicit empty list still clears the gallery.
	rec = a.apiJSON(t, http.MethodPut, "/photos/"+created.ID.Hex(), map[string]any{"existingImages": []string{}})
	expectStatus(t, rec, http.StatusOK)
	if n := len(decode[photoResponse](t, rec).Photo.Images); n != 0 {
		t.Errorf("len(Images) = %d, want 0", n)
	}
}
