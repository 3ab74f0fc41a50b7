package types

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
)

// Image is a decoded source image. It is never mutated after decoding.
type Image struct {
	Pixels image.Image
	Width  int
	Height int
	// ID identifies the source bytes; equal IDs mean equal pixels.
	ID     string
	Format string
}

// Dims returns the image dimensions.
func (i *Image) Dims() Dimensions {
	return Dimensions{Width: i.Width, Height: i.Height}
}

// Dimensions holds a width and height in pixels
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FaceBox is a detected face in source pixel coordinates
type FaceBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
	// Q is the detector confidence, zero when unknown
	Q float64 `json:"q,omitempty"`
}

// Area returns the box area
func (f FaceBox) Area() int {
	return f.W * f.H
}

// Rect converts the box to an image.Rectangle
func (f FaceBox) Rect() image.Rectangle {
	return image.Rect(f.X, f.Y, f.X+f.W, f.Y+f.H)
}

// Validate checks that the box is non-empty and lies within the image.
func (f FaceBox) Validate(dims Dimensions) error {
	if f.W <= 0 || f.H <= 0 {
		return Errorf(KindInvalidParameter, "facebox.validate", "face box must have positive size, got %dx%d", f.W, f.H)
	}
	if f.X < 0 || f.Y < 0 || f.X+f.W > dims.Width || f.Y+f.H > dims.Height {
		return Errorf(KindInvalidParameter, "facebox.validate", "face box %v outside image %dx%d", f.Rect(), dims.Width, dims.Height)
	}
	return nil
}

// CropRect is the rectangle selected from the source image
type CropRect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Dx returns the crop width
func (c CropRect) Dx() int { return c.Right - c.Left }

// Dy returns the crop height
func (c CropRect) Dy() int { return c.Bottom - c.Top }

// Rect converts the crop to an image.Rectangle
func (c CropRect) Rect() image.Rectangle {
	return image.Rect(c.Left, c.Top, c.Right, c.Bottom)
}

// Within reports whether the crop is non-empty and inside dims.
func (c CropRect) Within(dims Dimensions) bool {
	return c.Left >= 0 && c.Left < c.Right && c.Right <= dims.Width &&
		c.Top >= 0 && c.Top < c.Bottom && c.Bottom <= dims.Height
}

func (c CropRect) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", c.Left, c.Top, c.Right, c.Bottom)
}

// Format is an output encoding
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// ParseFormat normalizes a format name or file extension. Unknown names are
// returned lowercased so the renderer can reject them.
func ParseFormat(s string) Format {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	switch s {
	case "jpg", "jpeg":
		return FormatJPEG
	case "tif", "tiff":
		return FormatTIFF
	}
	return Format(s)
}

// Lossy reports whether quality applies to the format
func (f Format) Lossy() bool {
	return f == FormatJPEG || f == FormatWebP
}

// MIME returns the content type for the format
func (f Format) MIME() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	}
	return "application/octet-stream"
}

// Extension returns the file extension including the dot
func (f Format) Extension() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return "." + string(f)
}

// Color is an opaque-or-not RGBA border color
type Color struct {
	R, G, B, A uint8
}

// NRGBA converts to the standard library color type
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// Hex returns the canonical #rrggbb or #rrggbbaa form
func (c Color) Hex() string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

func (c Color) String() string { return c.Hex() }

var namedColors = map[string]Color{
	"black": {0, 0, 0, 0xff},
	"white": {0xff, 0xff, 0xff, 0xff},
	"gray":  {0x80, 0x80, 0x80, 0xff},
	"grey":  {0x80, 0x80, 0x80, 0xff},
	"red":   {0xff, 0, 0, 0xff},
	"green": {0, 0x80, 0, 0xff},
	"blue":  {0, 0, 0xff, 0xff},
}

// ParseColor accepts #rgb, #rrggbb, #rrggbbaa or a small set of names.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") {
		return Color{}, Errorf(KindInvalidParameter, "color.parse", "invalid color %q", s)
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 && len(hex) != 8 {
		return Color{}, Errorf(KindInvalidParameter, "color.parse", "invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, Wrap(err, KindInvalidParameter, "color.parse", fmt.Sprintf("invalid color %q", s))
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	c := Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
	return c, nil
}

// MustParseColor is ParseColor for constants; it panics on bad input.
func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Variant tags a render as preview or export
type Variant string

const (
	VariantPreview Variant = "preview"
	VariantExport  Variant = "export"
)

// RenderResult is an encoded output image of exactly the target size.
type RenderResult struct {
	Data      []byte
	Format    Format
	MIME      string
	Width     int
	Height    int
	Variant   Variant
	Annotated bool
	Crop      CropRect
	// Face is the box the crop was derived from, nil for fallback geometry
	Face     *FaceBox
	Warnings []string
}

// AnalysisResult is what a vision model reports about faces in an image
type AnalysisResult struct {
	Faces       []Box  `json:"faces"`
	Description string `json:"description"`
}

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
	// Confidence reported by the model, 0..1
	Confidence float64 `json:"confidence"`
}
