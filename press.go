package cmsengine

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/cmsengine/store"
	"github.com/eringen/cmsengine/upload"
)

var pressSort = []store.SortField{{Field: "date", Desc: true}, {Field: "createdAt", Desc: true}}

// pressTags normalises the tags field: a single value is split on commas,
// a list is trimmed entry by entry.
func pressTags(l TextList) []string {
	if l.IsList() {
		return FilterEmpty(l.Values())
	}
	return SplitTags(l.Values())
}

// applyPressFields copies the text fields the caller sent onto p. An empty
// link is derived from the title.
func applyPressFields(in *input, p *Press) error {
	if v, ok := in.text("title"); ok {
		p.Title = v
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
	if v, ok := in.text("content"); ok {
		p.Content = v
	}
	if v, ok := in.text("source"); ok {
		p.Source = v
	}
	if v, ok := in.text("author"); ok {
		p.Author = v
	}
	if in.has("tags") {
		p.Tags = pressTags(in.list("tags"))
	}
	if v, ok := in.text("link"); ok {
		p.Link = v
	}
	if p.Link == "" {
		p.Link = Slugify(p.Title)
	}
	if v, ok := in.text("isActive"); ok && v != "" {
		b, err := parseBool("isActive", v)
		if err != nil {
			return err
		}
		p.IsActive = b
	}
	return nil
}

// planPressThumbnail prefers an uploaded "thumbnail" file over a thumbnail
// URL sent as text.
func (a *App) planPressThumbnail(in *input, p *Press) ([]*upload.File, error) {
	if fh := in.file("thumbnail"); fh != nil {
		f, err := a.Uploads.Plan(upload.BucketPress, "thumbnail", fh)
		if err != nil {
			return nil, planError(err)
		}
		p.Thumbnail = f.WebPath
		return []*upload.File{f}, nil
	}
	if v, ok := in.text("thumbnail"); ok && v != "" {
		p.Thumbnail = v
	}
	return nil, nil
}

func (a *App) createPress(c echo.Context) error {
	const failMsg = "Failed to create press release"
	in, err := readInput(c, int64(a.Config.MaxUploadSize))
	if err != nil {
		return a.fail(c, failMsg, err)
	}

	p := Press{IsActive: true, Tags: []string{}}
	if err := applyPressFields(in, &p); err != nil {
		return a.fail(c, failMsg, err)
	}
	files, err := a.planPressThumbnail(in, &p)
	if err != nil {
		return a.fail(c, failMsg, err)
	}
	if err := validateRecord("press release", &p); err != nil {
		return a.fail(c, failMsg, err)
	}

	ctx := c.Request().Context()
	if err := a.save(upload.BucketPress, files, func() error { return a.Press.Insert(ctx, &p) }); err != nil {
		return a.fail(c, failMsg, err)
	}
	a.pressCache.Invalidate()
	return c.JSON(http.StatusCreated, map[string]any{
		"message": "Press release created successfully",
		"press":   newPressView(p),
	})
}

func (a *App) listPress(c echo.Context) error {
	var (
		filter store.Filter
		key    string
	)
	if v, ok := c.QueryParams()["isActive"]; ok {
		active := len(v) > 0 && v[0] == "true"
		filter = store.Filter{"isActive": active}
		if active {
			key = "active"
		} else {
			key = "inactive"
		}
	}
	list, err := a.pressCache.Get(c.Request().Context(), key, func(ctx context.Context) ([]Press, error) {
		return a.Press.Find(ctx, store.FindOptions{Filter: filter, Sort: pressSort})
	})
	if err != nil {
		return a.fail(c, "Failed to fetch press releases", err)
	}
	return c.JSON(http.StatusOK, pressViews(list))
}

func (a *App) getPress(c echo.Context) error {
	p, err := a.Press.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "Press release not found")
		}
		return a.fail(c, "Failed to fetch press release", err)
	}
	return c.JSON(http.StatusOK, newPressView(*p))
}

func (a *App) updatePress(c echo.Context) error {
	const failMsg = "Failed to update press release"
	ctx := c.Request().Context()
	id := c.Param("id")

	p, err := a.Press.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "Press release not found")
		}
		return a.fail(c, failMsg, err)
	}
	in, err := readInput(c, int64(a.Config.MaxUploadSize))
	if err != nil {
		return a.fail(c, failMsg, err)
	}
	if err := applyPressFields(in, p); err != nil {
		return a.fail(c, failMsg, err)
	}
	files, err := a.planPressThumbnail(in, p)
	if err != nil {
		return a.fail(c, failMsg, err)
	}
	if err := validateRecord("press release", p); err != nil {
		return a.fail(c, failMsg, err)
	}

	err = a.save(upload.BucketPress, files, func() error { return a.Press.Replace(ctx, id, p) })
	if errors.Is(err, store.ErrNotFound) {
		return notFound(c, "Press release not found")
	}
	if err != nil {
		return a.fail(c, failMsg, err)
	}
	a.pressCache.Invalidate()
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Press release updated successfully",
		"press":   newPressView(*p),
	})
}

func (a *App) deletePress(c echo.Context) error {
	p, err := a.Press.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "Press release not found")
		}
		return a.fail(c, "Failed to delete press release", err)
	}
	a.pressCache.Invalidate()
	// Thumbnails given as external URLs resolve outside the upload root and
	// are left alone.
	a.removeFiles(c, p.Thumbnail)
	return c.JSON(http.StatusOK, map[string]string{"message": "Press release deleted successfully"})
}
