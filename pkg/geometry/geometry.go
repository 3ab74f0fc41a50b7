// Package geometry derives the source-image crop rectangle for a headshot.
//
// ComputeCropBox is pure: identical inputs always produce the identical
// rectangle, which the render cache relies on.
package geometry

import (
	"math"

	"github.com/menta2k/headshot/pkg/types"
)

// Padding holds the pixel margins derived from a face box and padding ratios
type Padding struct {
	Top    int
	Bottom int
	Side   int
}

// PaddingFor computes the integer paddings for a face box.
func PaddingFor(face types.FaceBox, p types.Params) Padding {
	return Padding{
		Top:    int(math.Floor(float64(face.H) * p.PaddingTop)),
		Bottom: int(math.Floor(float64(face.H) * p.PaddingBottom)),
		Side:   int(math.Floor(float64(face.W) * p.PaddingSide)),
	}
}

// ComputeCropBox returns the crop rectangle for face (nil selects the
// centered fallback) under params within an image of dims.
func ComputeCropBox(face *types.FaceBox, p types.Params, dims types.Dimensions) (types.CropRect, error) {
	const op = "geometry.crop"

	if p.TargetWidth <= 0 || p.TargetHeight <= 0 {
		return types.CropRect{}, types.Errorf(types.KindInvalidParameter, op,
			"invalid target dimensions: %dx%d", p.TargetWidth, p.TargetHeight)
	}
	if dims.Width <= 0 || dims.Height <= 0 {
		return types.CropRect{}, types.Errorf(types.KindInvalidParameter, op,
			"degenerate image dimensions: %dx%d", dims.Width, dims.Height)
	}
	tw, th := p.TargetWidth, p.TargetHeight

	if face == nil {
		return FallbackCrop(tw, th, dims), nil
	}
	if err := face.Validate(dims); err != nil {
		return types.CropRect{}, err
	}
	if math.IsNaN(p.ZoomOut) || p.ZoomOut <= 0 {
		return types.CropRect{}, types.Errorf(types.KindInvalidParameter, op, "invalid zoom factor %v", p.ZoomOut)
	}

	pad := PaddingFor(*face, p)

	cropW := int(math.Floor(float64(face.W+2*pad.Side) * p.ZoomOut))
	cropH := int(math.Floor(float64(face.H+pad.Top+pad.Bottom) * p.ZoomOut))
	cropW = maxInt(cropW, 1)
	cropH = maxInt(cropH, 1)

	cx := face.X + face.W/2 + p.ShiftX
	cy := face.Y + face.H/2 + p.ShiftY

	rect := types.CropRect{Left: cx - cropW/2, Top: cy - cropH/2}
	rect.Right = rect.Left + cropW
	rect.Bottom = rect.Top + cropH

	rect = Clamp(rect, dims)
	return CorrectAspect(rect, tw, th, dims), nil
}

// FallbackCrop is the largest rectangle with ratio tw:th centered in the image.
func FallbackCrop(tw, th int, dims types.Dimensions) types.CropRect {
	w, h := dims.Width, dims.Height
	if w*th > h*tw {
		w = clampInt(h*tw/th, 1, dims.Width)
	} else {
		h = clampInt(w*th/tw, 1, dims.Height)
	}
	left := (dims.Width - w) / 2
	top := (dims.Height - h) / 2
	return types.CropRect{Left: left, Top: top, Right: left + w, Bottom: top + h}
}

// Clamp moves the rectangle back inside the image, preserving its size where
// the image allows. Sides are handled in order: left, top, right, bottom.
// A rectangle larger than the image is finally cut to the image bounds.
func Clamp(r types.CropRect, dims types.Dimensions) types.CropRect {
	if r.Left < 0 {
		r.Right -= r.Left
		r.Left = 0
	}
	if r.Top < 0 {
		r.Bottom -= r.Top
		r.Top = 0
	}
	if r.Right > dims.Width {
		r.Left -= r.Right - dims.Width
		r.Right = dims.Width
	}
	if r.Bottom > dims.Height {
		r.Top -= r.Bottom - dims.Height
		r.Bottom = dims.Height
	}

	r.Left = clampInt(r.Left, 0, dims.Width-1)
	r.Top = clampInt(r.Top, 0, dims.Height-1)
	r.Right = clampInt(r.Right, r.Left+1, dims.Width)
	r.Bottom = clampInt(r.Bottom, r.Top+1, dims.Height)
	return r
}

// CorrectAspect grows the short dimension of r, symmetrically about its
// center, until r matches the ratio tw:th. When the grown dimension cannot
// fit in the image the other dimension is shrunk instead, so the result
// always matches the ratio to within one pixel. Integer arithmetic keeps
// exact ratios exact.
func CorrectAspect(r types.CropRect, tw, th int, dims types.Dimensions) types.CropRect {
	w, h := r.Dx(), r.Dy()

	switch {
	case w*th > h*tw:
		// too wide: grow height
		newH := w * th / tw
		if newH <= dims.Height {
			r.Top -= (newH - h) / 2
			r.Bottom = r.Top + newH
			break
		}
		newH = dims.Height
		newW := clampInt(newH*tw/th, 1, w)
		r.Left += (w - newW) / 2
		r.Right = r.Left + newW
		r.Top, r.Bottom = 0, newH
	case w*th < h*tw:
		// too tall: grow width
		newW := h * tw / th
		if newW <= dims.Width {
			r.Left -= (newW - w) / 2
			r.Right = r.Left + newW
			break
		}
		newW = dims.Width
		newH := clampInt(newW*th/tw, 1, h)
		r.Top += (h - newH) / 2
		r.Bottom = r.Top + newH
		r.Left, r.Right = 0, newW
	}

	return Clamp(r, dims)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
