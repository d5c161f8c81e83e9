package cmsengine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/cmsengine/store"
	"github.com/eringen/cmsengine/upload"
)

const qrCodeLocation = "Returned in response as qr_code property. Client can display or share as needed."

var photoSort = []store.SortField{{Field: "date", Desc: true}, {Field: "createdAt", Desc: true}}

// applyPhotoFields copies the text fields the caller sent onto p. An empty
// permalink is derived from the title.
func applyPhotoFields(in *input, p *Photo) error {
	if v, ok := in.text("title"); ok {
		p.Title = v
	}
	if v, ok := in.text("eventType"); ok {
		p.EventType = v
	}
	if v, ok := in.text("date"); ok {
		if v == "" {
			p.Date = time.Time{}
		} else {
			d, err := parseDate("date", v)
			if err != nil {
				return err
			}
			p.Date = d
		}
	}
	if v, ok := in.text("permalink"); ok {
		p.Permalink = v
	}
	if p.Permalink == "" {
		p.Permalink = Slugify(p.Title)
	}
	return nil
}

// planPhotoImages checks the gallery size the request would produce, then
// plans the uploaded "images" files with their captions. keep is the number
// of images that stay next to the new ones.
func (a *App) planPhotoImages(in *input, keep int) ([]*upload.File, []upload.Image, error) {
	fhs := in.fileList("images")
	if err := checkImageCount(keep + len(fhs)); err != nil {
		return nil, nil, err
	}
	files, err := a.Uploads.PlanAll(upload.BucketPhotos, "images", fhs)
	if err != nil {
		return nil, nil, planError(err)
	}
	return files, upload.BindImages(files, in.list("captions").Captions()), nil
}

// stampQRCode points p's QR code at its public gallery page. Photos without
// a permalink get none and fail validation.
func (a *App) stampQRCode(p *Photo) error {
	if p.Permalink == "" {
		p.QRCode = ""
		return nil
	}
	uri, err := a.qr.DataURI(a.galleryURL(p.Permalink))
	if err != nil {
		return fmt.Errorf("generate qr code: %w", err)
	}
	p.QRCode = uri
	return nil
}

func (a *App) createPhoto(c echo.Context) error {
	const failMsg = "Failed to create photo event"
	in, err := readInput(c, int64(a.Config.MaxUploadSize))
	if err != nil {
		return a.fail(c, failMsg, err)
	}

	p := Photo{Images: []upload.Image{}}
	if err := applyPhotoFields(in, &p); err != nil {
		return a.fail(c, failMsg, err)
	}
	files, images, err := a.planPhotoImages(in, 0)
	if err != nil {
		return a.fail(c, failMsg, err)
	}
	p.Images = images
	if err := a.stampQRCode(&p); err != nil {
		return a.fail(c, failMsg, err)
	}
	if err := validateRecord("photo event", &p); err != nil {
		return a.fail(c, failMsg, err)
	}

	ctx := c.Request().Context()
	if err := a.save(upload.BucketPhotos, files, func() error { return a.Photos.Insert(ctx, &p) }); err != nil {
		return a.fail(c, failMsg, err)
	}
	a.photoCache.Invalidate()
	return c.JSON(http.StatusCreated, map[string]any{
		"message":          "Photo event created successfully",
		"photo":            p,
		"qr_code_location": qrCodeLocation,
	})
}

// cachedPhotos returns every gallery, newest event first.
func (a *App) cachedPhotos(ctx context.Context) ([]Photo, error) {
	return a.photoCache.Get(ctx, "", func(ctx context.Context) ([]Photo, error) {
		return a.Photos.Find(ctx, store.FindOptions{Sort: photoSort})
	})
}

func (a *App) listPhotos(c echo.Context) error {
	photos, err := a.cachedPhotos(c.Request().Context())
	if err != nil {
		return a.fail(c, "Failed to fetch photo events", err)
	}
	return c.JSON(http.StatusOK, photos)
}

func (a *App) getPhoto(c echo.Context) error {
	p, err := a.Photos.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "Photo event not found")
		}
		return a.fail(c, "Failed to fetch photo event", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (a *App) updatePhoto(c echo.Context) error {
	const failMsg = "Failed to update photo event"
	ctx := c.Request().Context()
	id := c.Param("id")

	p, err := a.Photos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "Photo event not found")
		}
		return a.fail(c, failMsg, err)
	}
	in, err := readInput(c, int64(a.Config.MaxUploadSize))
	if err != nil {
		return a.fail(c, failMsg, err)
	}

	oldPermalink := p.Permalink
	if in.has("permalink") {
		// Cleared permalinks are derived again from the (possibly new) title.
		p.Permalink = ""
	}
	if err := applyPhotoFields(in, p); err != nil {
		return a.fail(c, failMsg, err)
	}

	// A lone blank value is what an empty form field sends; it keeps the
	// stored images like an absent field does.
	keptList := in.list("existingImages")
	sentExisting := keptList.IsList() || (keptList.Present() && strings.TrimSpace(keptList.First()) != "")
	existing, err := imageRefs("existingImages", keptList)
	if err != nil {
		return a.fail(c, failMsg, err)
	}
	keep := 0
	if sentExisting {
		keep = len(existing)
	}
	files, added, err := a.planPhotoImages(in, keep)
	if err != nil {
		return a.fail(c, failMsg, err)
	}
	p.Images = upload.MergeImages(p.Images, existing, sentExisting, added)

	if p.Permalink != oldPermalink || p.QRCode == "" {
		if err := a.stampQRCode(p); err != nil {
			return a.fail(c, failMsg, err)
		}
	}
	if err := validateRecord("photo event", p); err != nil {
		return a.fail(c, failMsg, err)
	}

	err = a.save(upload.BucketPhotos, files, func() error { return a.Photos.Replace(ctx, id, p) })
	if errors.Is(err, store.ErrNotFound) {
		return notFound(c, "Photo event not found")
	}
	if err != nil {
		return a.fail(c, failMsg, err)
	}
	a.photoCache.Invalidate()
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Photo event updated successfully",
		"photo":   p,
	})
}

func (a *App) deletePhoto(c echo.Context) error {
	p, err := a.Photos.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "Photo event not found")
		}
		return a.fail(c, "Failed to delete photo event", err)
	}
	a.photoCache.Invalidate()
	a.removeFiles(c, upload.WebPaths(p.Images)...)
	return c.JSON(http.StatusOK, map[string]string{"message": "Photo event deleted successfully"})
}
