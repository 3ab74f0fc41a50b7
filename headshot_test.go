package headshot

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/headshot/pkg/detection"
	"github.com/menta2k/headshot/pkg/types"
)

// createTestImage encodes a gradient portrait as PNG
func createTestImage(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.NotNil(t, g.decoder)
	assert.NotNil(t, g.renderer)
	assert.IsType(t, detection.Noop{}, g.Detector())
}

func TestNewSession_Independent(t *testing.T) {
	g := NewWithConfig(Config{
		Decoder:  DefaultConfig().Decoder,
		Detector: detection.Static{{X: 400, Y: 300, W: 200, H: 250}},
	})
	ctx := context.Background()
	data := createTestImage(t, 1000, 1000)

	a, b := g.NewSession(), g.NewSession()
	assert.NotEqual(t, a.ID(), b.ID())
	require.NoError(t, a.Load(ctx, data))
	require.NoError(t, b.Load(ctx, data))

	for i := 0; i < 3; i++ {
		p := types.DefaultParams()
		p.ShiftX = i * 5
		_, err := a.Apply(ctx, p)
		require.NoError(t, err)
	}
	_, err := b.Apply(ctx, types.DefaultParams())
	require.NoError(t, err)

	assert.Len(t, a.History(), 2)
	assert.Empty(t, b.History())
}

func TestProcess(t *testing.T) {
	g := NewWithConfig(Config{
		Decoder:  DefaultConfig().Decoder,
		Detector: detection.Static{{X: 400, Y: 300, W: 200, H: 250}},
	})

	res, err := g.Process(context.Background(), createTestImage(t, 1000, 1000), types.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, types.VariantExport, res.Variant)
	assert.Equal(t, types.CropRect{Left: 314, Top: 192, Right: 687, Bottom: 659}, res.Crop)

	img, err := imaging.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(400, 500), img.Bounds().Size())
}

func TestProcess_Errors(t *testing.T) {
	g := New()
	ctx := context.Background()

	_, err := g.Process(ctx, []byte("nope"), types.DefaultParams())
	assert.True(t, types.IsKind(err, types.KindDecodeError), "got %v", err)

	bad := types.DefaultParams()
	bad.TargetWidth = 0
	_, err = g.Process(ctx, createTestImage(t, 300, 300), bad)
	assert.True(t, types.IsKind(err, types.KindInvalidParameter), "got %v", err)
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
