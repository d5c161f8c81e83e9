package cmsengine

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/cmsengine/store"
	"github.com/eringen/cmsengine/upload"
)

var sliderSort = []store.SortField{{Field: "order"}, {Field: "createdAt", Desc: true}}

// applySliderFields copies the text fields the caller sent onto s.
func applySliderFields(in *input, s *Slider) error {
	if v, ok := in.text("title"); ok {
		s.Title = v
	}
	if v, ok := in.text("subtitle"); ok {
		s.Subtitle = v
	}
	if v, ok := in.text("link"); ok {
		s.Link = v
	}
	if v, ok := in.text("order"); ok && v != "" {
		n, err := parseNumber("order", v)
		if err != nil {
			return err
		}
		s.Order = n
	}
	if v, ok := in.text("isActive"); ok && v != "" {
		b, err := parseBool("isActive", v)
		if err != nil {
			return err
		}
		s.IsActive = b
	}
	return nil
}

// planSliderImage plans the optional "image" upload and points s at it.
func (a *App) planSliderImage(in *input, s *Slider) ([]*upload.File, error) {
	fh := in.file("image")
	if fh == nil {
		return nil, nil
	}
	f, err := a.Uploads.Plan(upload.BucketSlider, "image", fh)
	if err != nil {
		return nil, planError(err)
	}
	s.ImageURL = f.WebPath
	return []*upload.File{f}, nil
}

func (a *App) createSlider(c echo.Context) error {
	const failMsg = "Failed to create slider"
	in, err := readInput(c, int64(a.Config.MaxUploadSize))
	if err != nil {
		return a.fail(c, failMsg, err)
	}

	s := Slider{IsActive: true}
	if err := applySliderFields(in, &s); err != nil {
		return a.fail(c, failMsg, err)
	}
	files, err := a.planSliderImage(in, &s)
	if err != nil {
		return a.fail(c, failMsg, err)
	}
	if err := validateRecord("slider", &s); err != nil {
		return a.fail(c, failMsg, err)
	}

	ctx := c.Request().Context()
	if err := a.save(upload.BucketSlider, files, func() error { return a.Sliders.Insert(ctx, &s) }); err != nil {
		return a.fail(c, failMsg, err)
	}
	a.sliderCache.Invalidate()
	return c.JSON(http.StatusCreated, map[string]any{
		"message": "Slider created successfully",
		"slider":  s,
	})
}

func (a *App) listSliders(c echo.Context) error {
	sliders, err := a.sliderCache.Get(c.Request().Context(), "", func(ctx context.Context) ([]Slider, error) {
		return a.Sliders.Find(ctx, store.FindOptions{Sort: sliderSort})
	})
	if err != nil {
		return a.fail(c, "Failed to fetch sliders", err)
	}
	return c.JSON(http.StatusOK, sliders)
}

func (a *App) getSlider(c echo.Context) error {
	s, err := a.Sliders.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "Slider not found")
		}
		return a.fail(c, "Failed to fetch slider", err)
	}
	return c.JSON(http.StatusOK, s)
}

func (a *App) updateSlider(c echo.Context) error {
	const failMsg = "Failed to update slider"
	ctx := c.Request().Context()
	id := c.Param("id")

	s, err := a.Sliders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "Slider not found")
		}
		return a.fail(c, failMsg, err)
	}
	in, err := readInput(c, int64(a.Config.MaxUploadSize))
	if err != nil {
		return a.fail(c, failMsg, err)
	}
	if err := applySliderFields(in, s); err != nil {
		return a.fail(c, failMsg, err)
	}
	files, err := a.planSliderImage(in, s)
	if err != nil {
		return a.fail(c, failMsg, err)
	}
	if err := validateRecord("slider", s); err != nil {
		return a.fail(c, failMsg, err)
	}

	err = a.save(upload.BucketSlider, files, func() error { return a.Sliders.Replace(ctx, id, s) })
	if errors.Is(err, store.ErrNotFound) {
		return notFound(c, "Slider not found")
	}
	if err != nil {
		return a.fail(c, failMsg, err)
	}
	a.sliderCache.Invalidate()
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Slider updated successfully",
		"slider":  s,
	})
}

func (a *App) deleteSlider(c echo.Context) error {
	s, err := a.Sliders.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "Slider not found")
		}
		return a.fail(c, "Failed to delete slider", err)
	}
	a.sliderCache.Invalidate()
	a.removeFiles(c, s.ImageURL)
	return c.JSON(http.StatusOK, map[string]string{"message": "Slider deleted successfully"})
}
