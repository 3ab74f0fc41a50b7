package config

import (
	"github.com/menta2k/headshot/pkg/types"
)

// SliderBounds limits the values a user may pick for each parameter. They
// are narrower than the ranges the core accepts.
type SliderBounds struct {
	TargetWidthMin   int     `toml:"target_width_min"`
	TargetWidthMax   int     `toml:"target_width_max"`
	TargetHeightMin  int     `toml:"target_height_min"`
	TargetHeightMax  int     `toml:"target_height_max"`
	PaddingMin       float64 `toml:"padding_min"`
	PaddingTopMax    float64 `toml:"padding_top_max"`
	PaddingBottomMax float64 `toml:"padding_bottom_max"`
	PaddingSideMax   float64 `toml:"padding_side_max"`
	ShiftMin         int     `toml:"shift_min"`
	ShiftMax         int     `toml:"shift_max"`
	ZoomOutMin       float64 `toml:"zoom_out_min"`
	ZoomOutMax       float64 `toml:"zoom_out_max"`
}

// DefaultSliderBounds returns the stock [slider] table
func DefaultSliderBounds() SliderBounds {
	return SliderBounds{
		TargetWidthMin:   200,
		TargetWidthMax:   1000,
		TargetHeightMin:  200,
		TargetHeightMax:  1000,
		PaddingMin:       0,
		PaddingTopMax:    0.5,
		PaddingBottomMax: 1.0,
		PaddingSideMax:   0.5,
		ShiftMin:         -100,
		ShiftMax:         100,
		ZoomOutMin:       0.9,
		ZoomOutMax:       2.0,
	}
}

// Check fails with KindInvalidParameter when p lies outside the bounds.
func (s SliderBounds) Check(p types.Params) error {
	const op = "config.slider"

	ints := []struct {
		name     string
		v        int
		min, max int
	}{
		{"target_width", p.TargetWidth, s.TargetWidthMin, s.TargetWidthMax},
		{"target_height", p.TargetHeight, s.TargetHeightMin, s.TargetHeightMax},
		{"shift_x", p.ShiftX, s.ShiftMin, s.ShiftMax},
		{"shift_y", p.ShiftY, s.ShiftMin, s.ShiftMax},
	}
	for _, b := range ints {
		if b.v < b.min || b.v > b.max {
			return types.Errorf(types.KindInvalidParameter, op, "%s must be between %d and %d, got %d", b.name, b.min, b.max, b.v)
		}
	}

	floats := []struct {
		name     string
		v        float64
		min, max float64
	}{
		{"padding_top", p.PaddingTop, s.PaddingMin, s.PaddingTopMax},
		{"padding_bottom", p.PaddingBottom, s.PaddingMin, s.PaddingBottomMax},
		{"padding_side", p.PaddingSide, s.PaddingMin, s.PaddingSideMax},
		{"zoom_out_factor", p.ZoomOut, s.ZoomOutMin, s.ZoomOutMax},
	}
	for _, b := range floats {
		if b.v < b.min || b.v > b.max {
			return types.Errorf(types.KindInvalidParameter, op, "%s must be between %g and %g, got %g", b.name, b.min, b.max, b.v)
		}
	}
	return nil
}

// Clamp moves every bounded field of p into range
func (s SliderBounds) Clamp(p types.Params) types.Params {
	p.TargetWidth = min(max(p.TargetWidth, s.TargetWidthMin), s.TargetWidthMax)
	p.TargetHeight = min(max(p.TargetHeight, s.TargetHeightMin), s.TargetHeightMax)
	p.ShiftX = min(max(p.ShiftX, s.ShiftMin), s.ShiftMax)
	p.ShiftY = min(max(p.ShiftY, s.ShiftMin), s.ShiftMax)
	p.PaddingTop = min(max(p.PaddingTop, s.PaddingMin), s.PaddingTopMax)
	p.PaddingBottom = min(max(p.PaddingBottom, s.PaddingMin), s.PaddingBottomMax)
	p.PaddingSide = min(max(p.PaddingSide, s.PaddingMin), s.PaddingSideMax)
	p.ZoomOut = min(max(p.ZoomOut, s.ZoomOutMin), s.ZoomOutMax)
	return p
}
