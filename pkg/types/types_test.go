package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"black", Color{0, 0, 0, 0xff}, false},
		{"  White ", Color{0xff, 0xff, 0xff, 0xff}, false},
		{"#fff", Color{0xff, 0xff, 0xff, 0xff}, false},
		{"#1a2B3c", Color{0x1a, 0x2b, 0x3c, 0xff}, false},
		{"#1a2b3c80", Color{0x1a, 0x2b, 0x3c, 0x80}, false},
		{"1a2b3c", Color{}, true},
		{"#12345", Color{}, true},
		{"#gg0000", Color{}, true},
		{"purple-ish", Color{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsKind(err, KindInvalidParameter))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColorHex(t *testing.T) {
	assert.Equal(t, "#000000", Color{0, 0, 0, 0xff}.Hex())
	assert.Equal(t, "#ff000080", Color{0xff, 0, 0, 0x80}.Hex())

	c := MustParseColor("#336699")
	back, err := ParseColor(c.Hex())
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJPEG, ParseFormat("JPG"))
	assert.Equal(t, FormatJPEG, ParseFormat(".jpeg"))
	assert.Equal(t, FormatTIFF, ParseFormat("tif"))
	assert.Equal(t, FormatWebP, ParseFormat("webp"))
	assert.Equal(t, Format("heic"), ParseFormat("HEIC"))

	assert.Equal(t, ".jpg", FormatJPEG.Extension())
	assert.Equal(t, ".png", FormatPNG.Extension())
	assert.Equal(t, "image/webp", FormatWebP.MIME())
	assert.Equal(t, "application/octet-stream", Format("heic").MIME())
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"zero width", func(p *Params) { p.TargetWidth = 0 }},
		{"negative height", func(p *Params) { p.TargetHeight = -1 }},
		{"width too large", func(p *Params) { p.TargetWidth = MaxTarget + 1 }},
		{"height overflow", func(p *Params) { p.TargetHeight = 1 << 62 }},
		{"padding too large", func(p *Params) { p.PaddingBottom = 2.5 }},
		{"negative padding", func(p *Params) { p.PaddingSide = -0.1 }},
		{"zoom too small", func(p *Params) { p.ZoomOut = 0.4 }},
		{"zoom too large", func(p *Params) { p.ZoomOut = 3.1 }},
		{"jpeg quality zero", func(p *Params) { p.Quality = 0 }},
		{"webp quality high", func(p *Params) { p.Format = FormatWebP; p.Quality = 101 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.Equal(t, KindInvalidParameter, KindOf(err))
		})
	}

	t.Run("png ignores quality", func(t *testing.T) {
		p := DefaultParams()
		p.Format = FormatPNG
		p.Quality = 0
		assert.NoError(t, p.Validate())
	})
}

func TestParamsCanonical(t *testing.T) {
	a := DefaultParams()
	b := Params{
		Grayscale:     false,
		Quality:       95,
		Format:        "JPG",
		Border:        MustParseColor("#000"),
		ZoomOut:       1.1,
		ShiftY:        0,
		ShiftX:        0,
		PaddingSide:   0.1,
		PaddingBottom: 0.5,
		PaddingTop:    0.2,
		TargetHeight:  500,
		TargetWidth:   400,
	}
	assert.Equal(t, a.Canonical(), b.Canonical())

	png1, png2 := a, a
	png1.Format, png1.Quality = FormatPNG, 10
	png2.Format, png2.Quality = FormatPNG, 90
	assert.Equal(t, png1.Canonical(), png2.Canonical(), "quality must not matter for png")

	c := a
	c.ZoomOut = 1.2
	assert.NotEqual(t, a.Canonical(), c.Canonical())

	g := a
	g.Grayscale = true
	assert.NotEqual(t, a.Canonical(), g.Canonical())
}

func TestParamsJSON(t *testing.T) {
	p := DefaultParams()
	p.Border = MustParseColor("#ffcc00")

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"border_color":"#ffcc00"`)

	var back Params
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p, back)

	err = json.Unmarshal([]byte(`{"border_color":"nope"}`), &back)
	assert.Error(t, err)
}

func TestFaceBoxValidate(t *testing.T) {
	dims := Dimensions{Width: 100, Height: 80}
	assert.NoError(t, FaceBox{X: 0, Y: 0, W: 100, H: 80}.Validate(dims))
	assert.Error(t, FaceBox{X: 10, Y: 10, W: 0, H: 5}.Validate(dims))
	assert.Error(t, FaceBox{X: -1, Y: 0, W: 10, H: 10}.Validate(dims))
	assert.Error(t, FaceBox{X: 95, Y: 0, W: 10, H: 10}.Validate(dims))
	assert.Equal(t, 200, FaceBox{W: 10, H: 20}.Area())
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(base, KindDecodeError, "imageio.decode", "cannot decode image")

	assert.Equal(t, "imageio.decode: cannot decode image: boom", err.Error())
	assert.ErrorIs(t, err, base)

	wrapped := fmt.Errorf("load: %w", err)
	assert.Equal(t, KindDecodeError, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindDecodeError))
	assert.False(t, IsKind(wrapped, KindInvalidParameter))

	assert.Equal(t, KindInternal, KindOf(base))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.False(t, IsKind(nil, KindInternal))

	plain := Errorf(KindInvalidParameter, "", "bad %s", "value")
	assert.Equal(t, "bad value", plain.Error())
}
