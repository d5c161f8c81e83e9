package qrcode

import (
	"bytes"
	"encoding/base64"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/boombuler/barcode/qr"
)

func TestDataURI(t *testing.T) {
	uri, err := Encoder{}.DataURI("https://example.com/photoGallery/summer-party")
	if err != nil {
		t.Fatalf("DataURI failed: %v", err)
	}
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(uri, prefix) {
		t.Fatalf("DataURI = %q..., want %q prefix", uri[:min(len(uri), 40)], prefix)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	if err != nil {
		t.Fatalf("payload is not base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("payload is not a PNG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != DefaultSize || b.Dy() != DefaultSize {
		t.Errorf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), DefaultSize, DefaultSize)
	}

	gray := func(x, y int) uint8 { return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y }
	if gray(0, 0) != 255 || gray(b.Dx()-1, b.Dy()-1) != 255 {
		t.Error("quiet zone corners should be white")
	}
	dark := 0
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if gray(x, y) == 0 {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Error("image has no dark modules")
	}
}

func TestDataURIDeterministic(t *testing.T) {
	enc := Encoder{Size: 120}
	a, err := enc.DataURI("gallery")
	if err != nil {
		t.Fatalf("DataURI failed: %v", err)
	}
	b, err := enc.DataURI("gallery")
	if err != nil {
		t.Fatalf("DataURI failed: %v", err)
	}
	if a != b {
		t.Error("same content produced different images")
	}
	c, _ := enc.DataURI("other-gallery")
	if a == c {
		t.Error("different content produced identical images")
	}
}

func TestSmallSizeGrowsToFit(t *testing.T) {
	data, err := Encoder{Size: 5}.PNG("https://example.com/photoGallery/x")
	if err != nil {
		t.Fatalf("PNG failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds().Dx() < 21 {
		t.Errorf("width = %d, want at least one pixel per module", img.Bounds().Dx())
	}
}

func TestEmptyContent(t *testing.T) {
	if _, err := (Encoder{}).DataURI(""); err == nil {
		t.Error("DataURI(\"\") should fail")
	}
}

func TestModulesMatchMatrix(t *testing.T) {
	const content = "https://example.com/photoGallery/x"
	data, err := Encoder{}.PNG(content)
	if err != nil {
		t.Fatalf("PNG failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	modules := code.Bounds().Dx()
	scale := DefaultSize / (modules + 2*quietModules)
	offset := (DefaultSize - modules*scale) / 2
	for my := 0; my < modules; my++ {
		for mx := 0; mx < modules; mx++ {
			want := color.GrayModel.Convert(code.At(mx, my)).(color.Gray).Y < 128
			px := offset + mx*scale + scale/2
			py := offset + my*scale + scale/2
			got := color.GrayModel.Convert(img.At(px, py)).(color.Gray).Y < 128
			if got != want {
				t.Fatalf("module (%d,%d) dark = %v, want %v", mx, my, got, want)
			}
		}
	}
}
