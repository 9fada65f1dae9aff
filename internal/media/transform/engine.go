package transform

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/akuzmenko/blogpix/internal/media/biz"
)

// Engine performs the pixel-level derivation: decode, flatten
// transparency onto white, center-crop to the target aspect ratio,
// Lanczos resample, encode. Pure computation; callers are responsible
// for keeping it off request goroutines.
type Engine struct {
	jpegQuality int
}

func NewEngine(jpegQuality int) *Engine {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 85
	}
	return &Engine{jpegQuality: jpegQuality}
}

// Derive produces the derivative bytes for the given source. The output
// is exactly width x height pixels. JPEG sources encode as JPEG at the
// configured quality, PNG stays PNG (lossless), GIF uses its default
// encoder. No derivative ever carries transparency.
func (e *Engine) Derive(src []byte, format biz.Format, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target dimensions %dx%d", width, height)
	}

	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}

	img = flatten(img)
	img = cropCenter(img, width, height)
	img = imaging.Resize(img, width, height, imaging.Lanczos)

	var buf bytes.Buffer
	switch format {
	case biz.FormatJPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(e.jpegQuality))
	case biz.FormatPNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	case biz.FormatGIF:
		err = imaging.Encode(&buf, img, imaging.GIF)
	default:
		return nil, fmt.Errorf("unsupported encode format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode derivative: %w", err)
	}

	return buf.Bytes(), nil
}

// flatten composites a non-opaque image onto an opaque white background
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}

	bounds := img.Bounds()
	bg := imaging.New(bounds.Dx(), bounds.Dy(), color.NRGBA{255, 255, 255, 255})
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// cropCenter crops the largest centered region matching the target
// aspect ratio width:height. Margins are split evenly between the two
// trimmed edges; integer math rounds the crop size down so it never
// exceeds the source.
func cropCenter(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	// srcW/srcH > width/height, compared without floats
	if srcW*height > width*srcH {
		// source wider than target ratio: trim left and right
		cropW := srcH * width / height
		left := (srcW - cropW) / 2
		return imaging.Crop(img, image.Rect(left, 0, left+cropW, srcH))
	}

	// source taller (or equal): trim top and bottom
	cropH := srcW * height / width
	top := (srcH - cropH) / 2
	return imaging.Crop(img, image.Rect(0, top, srcW, top+cropH))
}
