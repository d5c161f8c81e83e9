package cmsengine

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/eringen/cmsengine/upload"
)

// ValidationError reports input that cannot be stored. Fields maps each
// offending field to its problem.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Message: msg, Fields: map[string]string{field: msg}}
}

const tooManyImagesMsg = "You can upload up to 100 images per photo title."

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRecord checks a record against its struct tags.
func validateRecord(kind string, rec any) error {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: map[string]string{}}
	for _, fe := range verrs {
		field := fieldPath(fe)
		out.Fields[field] = fieldMessage(field, fe)
	}
	if len(verrs) == 1 {
		out.Message = out.Fields[fieldPath(verrs[0])]
	} else {
		out.Message = fmt.Sprintf("%s validation failed", kind)
	}
	return out
}

// fieldPath drops the top-level struct name and embedded struct names.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		if field == "images" {
			return tooManyImagesMsg
		}
		return fmt.Sprintf("%s must have at most %s entries", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// checkImageCount rejects a gallery that would exceed MaxImages.
func checkImageCount(n int) error {
	if n > MaxImages {
		return invalid("images", tooManyImagesMsg)
	}
	return nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006/01/02",
}

// parseDate accepts ISO dates and times and the long form used in responses.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, invalid(field, fmt.Sprintf("%s is not a valid date: %q", field, s))
}

func parseBool(field, s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, invalid(field, fmt.Sprintf("%s is not a valid boolean: %q", field, s))
}

func parseNumber(field, s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, invalid(field, fmt.Sprintf("%s is not a valid number: %q", field, s))
	}
	return f, nil
}

// planError turns a rejected upload into a validation error.
func planError(err error) error {
	var fe *upload.FileError
	if !errors.As(err, &fe) {
		return err
	}
	switch {
	case errors.Is(err, upload.ErrFileTooLarge):
		return invalid(fe.Field, fmt.Sprintf("%s %q is too large", fe.Field, fe.Filename))
	default:
		return invalid(fe.Field, fmt.Sprintf("%s %q is not a supported image (jpeg, png, gif, webp)", fe.Field, fe.Filename))
	}
}
