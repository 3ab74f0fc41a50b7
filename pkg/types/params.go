package types

import (
	"encoding/json"
	"math"
	"strconv"
)

// Parameter ranges accepted by the core. Profiles may narrow them further.
const (
	MinPadding = 0.0
	MaxPadding = 2.0
	MinZoom    = 0.5
	MaxZoom    = 3.0
	MinQuality = 1
	MaxQuality = 100
	MaxTarget  = 10000
)

// Params is the complete parameter set for one render request. It is a
// comparable value; two Params are the same request iff they are ==.
type Params struct {
	TargetWidth   int     `json:"target_width" toml:"target_width"`
	TargetHeight  int     `json:"target_height" toml:"target_height"`
	PaddingTop    float64 `json:"padding_top" toml:"padding_top"`
	PaddingBottom float64 `json:"padding_bottom" toml:"padding_bottom"`
	PaddingSide   float64 `json:"padding_side" toml:"padding_side"`
	ShiftX        int     `json:"shift_x" toml:"shift_x"`
	ShiftY        int     `json:"shift_y" toml:"shift_y"`
	ZoomOut       float64 `json:"zoom_out_factor" toml:"zoom_out_factor"`
	Border        Color   `json:"border_color" toml:"-"`
	Format        Format  `json:"format" toml:"format"`
	Quality       int     `json:"quality" toml:"quality"`
	Lossless      bool    `json:"lossless" toml:"lossless"`
	Grayscale     bool    `json:"grayscale" toml:"grayscale"`
}

// DefaultParams mirrors the stock "default" profile.
func DefaultParams() Params {
	return Params{
		TargetWidth:   400,
		TargetHeight:  500,
		PaddingTop:    0.2,
		PaddingBottom: 0.5,
		PaddingSide:   0.1,
		ZoomOut:       1.1,
		Border:        Color{0, 0, 0, 0xff},
		Format:        FormatJPEG,
		Quality:       95,
	}
}

// Ratio returns the target aspect ratio width/height
func (p Params) Ratio() float64 {
	return float64(p.TargetWidth) / float64(p.TargetHeight)
}

// Validate fails with KindInvalidParameter on out-of-range values.
// The output format is checked by the renderer.
func (p Params) Validate() error {
	const op = "params.validate"
	if p.TargetWidth <= 0 || p.TargetHeight <= 0 || p.TargetWidth > MaxTarget || p.TargetHeight > MaxTarget {
		return Errorf(KindInvalidParameter, op, "invalid target dimensions: %dx%d", p.TargetWidth, p.TargetHeight)
	}
	paddings := []struct {
		name string
		v    float64
	}{
		{"padding_top", p.PaddingTop},
		{"padding_bottom", p.PaddingBottom},
		{"padding_side", p.PaddingSide},
	}
	for _, pad := range paddings {
		name, v := pad.name, pad.v
		if math.IsNaN(v) || v < MinPadding || v > MaxPadding {
			return Errorf(KindInvalidParameter, op, "%s must be between %.1f and %.1f, got %v", name, MinPadding, MaxPadding, v)
		}
	}
	if math.IsNaN(p.ZoomOut) || p.ZoomOut < MinZoom || p.ZoomOut > MaxZoom {
		return Errorf(KindInvalidParameter, op, "zoom_out_factor must be between %.1f and %.1f, got %v", MinZoom, MaxZoom, p.ZoomOut)
	}
	lossless := p.Format == FormatWebP && p.Lossless
	if p.Format.Lossy() && !lossless && (p.Quality < MinQuality || p.Quality > MaxQuality) {
		return Errorf(KindInvalidParameter, op, "quality must be between %d and %d, got %d", MinQuality, MaxQuality, p.Quality)
	}
	return nil
}

// Normalized returns p with fields that do not affect the output zeroed, so
// that equivalent requests compare and hash equal.
func (p Params) Normalized() Params {
	p.Format = ParseFormat(string(p.Format))
	if !p.Format.Lossy() {
		p.Quality = 0
	}
	if p.Format != FormatWebP {
		p.Lossless = false
	}
	if p.Format == FormatWebP && p.Lossless {
		p.Quality = 0
	}
	return p
}

// Canonical renders the normalized parameter set in a fixed field order with
// shortest round-trip float formatting. It is the input to cache keys.
func (p Params) Canonical() string {
	p = p.Normalized()
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	fields := [][2]string{
		{"target_width", strconv.Itoa(p.TargetWidth)},
		{"target_height", strconv.Itoa(p.TargetHeight)},
		{"padding_top", f(p.PaddingTop)},
		{"padding_bottom", f(p.PaddingBottom)},
		{"padding_side", f(p.PaddingSide)},
		{"shift_x", strconv.Itoa(p.ShiftX)},
		{"shift_y", strconv.Itoa(p.ShiftY)},
		{"zoom_out_factor", f(p.ZoomOut)},
		{"border_color", p.Border.Hex()},
		{"format", string(p.Format)},
		{"quality", strconv.Itoa(p.Quality)},
		{"lossless", strconv.FormatBool(p.Lossless)},
		{"grayscale", strconv.FormatBool(p.Grayscale)},
	}
	buf := make([]byte, 0, 256)
	for i, kv := range fields {
		if i > 0 {
			buf = append(buf, ';')
		}
		buf = append(buf, kv[0]...)
		buf = append(buf, '=')
		buf = append(buf, kv[1]...)
	}
	return string(buf)
}

// MarshalJSON writes the border color in hex form
func (p Params) MarshalJSON() ([]byte, error) {
	type plain Params
	return json.Marshal(struct {
		plain
		Border string `json:"border_color"`
	}{plain(p), p.Border.Hex()})
}

// UnmarshalJSON accepts the border color in any ParseColor form
func (p *Params) UnmarshalJSON(data []byte) error {
	type plain Params
	aux := struct {
		*plain
		Border string `json:"border_color"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Border == "" {
		return nil
	}
	c, err := ParseColor(aux.Border)
	if err != nil {
		return err
	}
	p.Border = c
	return nil
}
