package cmsengine

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/cmsengine/store"
	"github.com/eringen/cmsengine/upload"
	"github.com/eringen/cmsengine/views"
)

// fail writes the JSON error response for err. msg describes the failed
// operation and is used for store and server errors.
func (a *App) fail(c echo.Context, msg string, err error) error {
	var ve *ValidationError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, map[string]any{
			"message": ve.Message,
			"error":   ve.Error(),
			"fields":  ve.Fields,
		})
	case errors.Is(err, store.ErrDuplicate):
		return c.JSON(http.StatusConflict, map[string]string{
			"message": msg,
			"error":   err.Error(),
		})
	case errors.As(err, &he):
		return he
	default:
		c.Logger().Errorf("%s: %v", msg, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"message": msg,
			"error":   err.Error(),
		})
	}
}

func notFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, map[string]string{"message": msg})
}

// save writes planned files, runs persist, and discards the files again if
// persist fails.
func (a *App) save(bucket upload.Bucket, files []*upload.File, persist func() error) error {
	if err := a.Uploads.Write(files...); err != nil {
		return err
	}
	if err := persist(); err != nil {
		a.Uploads.Discard(files...)
		return err
	}
	if len(files) > 0 {
		a.uploaded.WithLabelValues(string(bucket)).Add(float64(len(files)))
	}
	return nil
}

// removeFiles deletes stored files after their record is gone. Failures are
// only logged.
func (a *App) removeFiles(c echo.Context, webPaths ...string) {
	for _, p := range webPaths {
		if p == "" {
			continue
		}
		if err := a.Uploads.Remove(p); err != nil {
			c.Logger().Debugf("remove %s: %v", p, err)
		}
	}
}

func (a *App) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := a.DB.Ping(ctx); err != nil {
		c.Logger().Errorf("health check: %v", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleGallery(c echo.Context) error {
	photo, err := a.Photos.FindOne(c.Request().Context(), store.Filter{"permalink": c.Param("permalink")})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, views.NotFound(a.Config.SiteName))
		}
		return err
	}
	return Render(c, views.Gallery(a.galleryPage(*photo)))
}

func (a *App) galleryPage(p Photo) views.GalleryPage {
	images := make([]views.GalleryImage, 0, len(p.Images))
	for _, img := range p.Images {
		images = append(images, views.GalleryImage{URL: img.URL, Caption: img.Caption})
	}
	return views.GalleryPage{
		SiteName:  a.Config.SiteName,
		Title:     p.Title,
		EventType: p.EventType,
		Date:      FormatLongDate(p.Date),
		URL:       a.galleryURL(p.Permalink),
		QRCode:    p.QRCode,
		Images:    images,
	}
}

func (a *App) galleryURL(permalink string) string {
	return BuildURL(a.Config.GalleryBaseURL, "photoGallery", permalink)
}

func (a *App) handleSitemap(c echo.Context) error {
	photos, err := a.cachedPhotos(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, photos)
}

func (a *App) handleFeed(c echo.Context) error {
	photos, err := a.cachedPhotos(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderRSS(c, photos)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if strings.HasPrefix(c.Request().URL.Path, "/photoGallery/") {
		if code == http.StatusNotFound {
			_ = RenderStatus(c, code, views.NotFound(a.Config.SiteName))
			return
		}
		if code >= 500 {
			c.Logger().Errorf("server error: %v", err)
			_ = RenderStatus(c, code, views.ServerError(a.Config.SiteName))
			return
		}
	}

	body := map[string]any{"message": http.StatusText(code)}
	if ok {
		if m, isStr := he.Message.(string); isStr {
			body["message"] = m
		}
		if he.Internal != nil && code < 500 {
			body["error"] = he.Internal.Error()
		}
	} else {
		body["error"] = err.Error()
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, body)
}
