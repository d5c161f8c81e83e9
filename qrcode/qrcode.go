// Package qrcode renders QR codes as PNG data URIs.
package qrcode

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/boombuler/barcode/qr"
	"golang.org/x/image/draw"
)

// DefaultSize is the edge length in pixels of generated images.
const DefaultSize = 200

const quietModules = 4

// Encoder produces square PNG QR codes.
type Encoder struct {
	// Size is the image edge length in pixels. Zero means DefaultSize.
	Size int
}

// DataURI encodes content and returns it as a data:image/png;base64 URI.
func (e Encoder) DataURI(content string) (string, error) {
	data, err := e.PNG(content)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// PNG encodes content and returns the PNG bytes.
func (e Encoder) PNG(content string) ([]byte, error) {
	if content == "" {
		return nil, errors.New("qrcode: empty content")
	}
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("qrcode: encode: %w", err)
	}

	size := e.Size
	if size <= 0 {
		size = DefaultSize
	}
	modules := code.Bounds().Dx()
	total := modules + 2*quietModules
	if size < total {
		size = total
	}
	// Whole pixels per module keep edges crisp; the remainder widens the margin.
	scale := size / total
	offset := (size - modules*scale) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	target := image.Rect(offset, offset, offset+modules*scale, offset+modules*scale)
	draw.NearestNeighbor.Scale(canvas, target, code, code.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("qrcode: png: %w", err)
	}
	return buf.Bytes(), nil
}
