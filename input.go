package cmsengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/cmsengine/upload"
)

type textKind int

const (
	textAbsent textKind = iota
	textSingle
	textList
)

// TextList is a field that callers may send as nothing, one value or a list.
type TextList struct {
	kind   textKind
	values []string
}

// SingleText is a one-value TextList.
func SingleText(s string) TextList { return TextList{kind: textSingle, values: []string{s}} }

// ListText is a list-valued TextList.
func ListText(vals []string) TextList { return TextList{kind: textList, values: vals} }

// Present reports whether the field was sent at all.
func (l TextList) Present() bool { return l.kind != textAbsent }

// IsList reports whether the field was sent in list form.
func (l TextList) IsList() bool { return l.kind == textList }

// Values returns every value sent, in order.
func (l TextList) Values() []string { return l.values }

// First returns the single value, or the first list entry.
func (l TextList) First() string {
	if len(l.values) == 0 {
		return ""
	}
	return l.values[0]
}

// Captions converts the field to an upload caption input.
func (l TextList) Captions() upload.Captions {
	switch l.kind {
	case textSingle:
		return upload.SingleCaption(l.First())
	case textList:
		return upload.CaptionList(l.values)
	default:
		return upload.NoCaptions()
	}
}

// input is a decoded request body: text fields plus any uploaded files.
type input struct {
	fields map[string]TextList
	files  map[string][]*multipart.FileHeader
}

// readInput decodes a JSON, urlencoded or multipart body. Keys written as
// "name[]" are stored under "name" in list form.
func readInput(c echo.Context, maxMemory int64) (*input, error) {
	in := &input{fields: map[string]TextList{}, files: map[string][]*multipart.FileHeader{}}
	req := c.Request()
	ctype := req.Header.Get(echo.HeaderContentType)
	switch {
	case strings.HasPrefix(ctype, echo.MIMEApplicationJSON):
		if err := in.readJSON(req.Body); err != nil {
			return nil, err
		}
	case strings.HasPrefix(ctype, echo.MIMEMultipartForm):
		if err := req.ParseMultipartForm(maxMemory); err != nil {
			return nil, badRequest("malformed multipart body", err)
		}
		in.addValues(req.MultipartForm.Value)
		for key, fhs := range req.MultipartForm.File {
			in.files[strings.TrimSuffix(key, "[]")] = append(in.files[strings.TrimSuffix(key, "[]")], fhs...)
		}
	case strings.HasPrefix(ctype, echo.MIMEApplicationForm):
		if err := req.ParseForm(); err != nil {
			return nil, badRequest("malformed form body", err)
		}
		in.addValues(req.PostForm)
	}
	return in, nil
}

// addValues merges form values in key order, so "name" lands before "name[]".
func (in *input) addValues(values map[string][]string) {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		vals := values[key]
		if strings.HasSuffix(key, "[]") {
			name := strings.TrimSuffix(key, "[]")
			in.fields[name] = ListText(append(in.fields[name].Values(), vals...))
			continue
		}
		switch {
		case len(vals) == 1 && !in.fields[key].Present():
			in.fields[key] = SingleText(vals[0])
		case len(vals) > 0:
			in.fields[key] = ListText(append(in.fields[key].Values(), vals...))
		}
	}
}

func (in *input) readJSON(body io.Reader) error {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil
		}
		return badRequest("malformed JSON body", err)
	}
	for key, msg := range raw {
		name := strings.TrimSuffix(key, "[]")
		msg = bytes.TrimSpace(msg)
		switch {
		case len(msg) == 0 || bytes.Equal(msg, []byte("null")):
			continue
		case msg[0] == '[':
			var items []json.RawMessage
			if err := json.Unmarshal(msg, &items); err != nil {
				return badRequest("malformed JSON body", err)
			}
			vals := make([]string, 0, len(items))
			for _, item := range items {
				vals = append(vals, jsonText(item))
			}
			in.fields[name] = ListText(vals)
		default:
			in.fields[name] = SingleText(jsonText(msg))
		}
	}
	return nil
}

// jsonText unquotes JSON strings and keeps any other value as written.
func jsonText(msg json.RawMessage) string {
	msg = bytes.TrimSpace(msg)
	if len(msg) > 0 && msg[0] == '"' {
		var s string
		if err := json.Unmarshal(msg, &s); err == nil {
			return s
		}
	}
	if bytes.Equal(msg, []byte("null")) {
		return ""
	}
	return string(msg)
}

// has reports whether key was sent.
func (in *input) has(key string) bool { return in.fields[key].Present() }

// text returns the trimmed value of key and whether it was sent.
func (in *input) text(key string) (string, bool) {
	l, ok := in.fields[key]
	if !ok || !l.Present() {
		return "", false
	}
	return strings.TrimSpace(l.First()), true
}

// list returns the TextList sent for key.
func (in *input) list(key string) TextList { return in.fields[key] }

// file returns the first file sent under key.
func (in *input) file(key string) *multipart.FileHeader {
	if fhs := in.files[key]; len(fhs) > 0 {
		return fhs[0]
	}
	return nil
}

// fileList returns every file sent under key.
func (in *input) fileList(key string) []*multipart.FileHeader { return in.files[key] }

// imageRefs decodes existing image entries: JSON objects, JSON arrays of
// objects, or bare URLs.
func imageRefs(field string, l TextList) ([]upload.Image, error) {
	images := []upload.Image{}
	for _, v := range l.Values() {
		v = strings.TrimSpace(v)
		switch {
		case v == "":
			continue
		case strings.HasPrefix(v, "{"):
			var img upload.Image
			if err := json.Unmarshal([]byte(v), &img); err != nil {
				return nil, invalid(field, fmt.Sprintf("%s entry is not valid JSON", field))
			}
			images = append(images, img)
		case strings.HasPrefix(v, "["):
			var list []upload.Image
			if err := json.Unmarshal([]byte(v), &list); err != nil {
				return nil, invalid(field, fmt.Sprintf("%s entry is not valid JSON", field))
			}
			images = append(images, list...)
		default:
			images = append(images, upload.Image{URL: v})
		}
	}
	return images, nil
}

func badRequest(msg string, err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg).SetInternal(err)
}
