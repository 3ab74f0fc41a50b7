package main

import (
	"context"
	"image"
	"image/color"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/headshot/internal/config"
	"github.com/menta2k/headshot/pkg/detection"
	"github.com/menta2k/headshot/pkg/pipeline"
	"github.com/menta2k/headshot/pkg/types"
)

func TestSetParam(t *testing.T) {
	p := types.DefaultParams()

	tests := []struct {
		key, value string
		check      func(t *testing.T, p types.Params)
	}{
		{"zoom", "1.3", func(t *testing.T, p types.Params) { assert.Equal(t, 1.3, p.ZoomOut) }},
		{"shift_x", "-20", func(t *testing.T, p types.Params) { assert.Equal(t, -20, p.ShiftX) }},
		{"width", "600", func(t *testing.T, p types.Params) { assert.Equal(t, 600, p.TargetWidth) }},
		{"padding_top", "0.35", func(t *testing.T, p types.Params) { assert.Equal(t, 0.35, p.PaddingTop) }},
		{"grayscale", "true", func(t *testing.T, p types.Params) { assert.True(t, p.Grayscale) }},
		{"border", "#ffffff", func(t *testing.T, p types.Params) { assert.Equal(t, "#ffffff", p.Border.Hex()) }},
		{"format", "PNG", func(t *testing.T, p types.Params) { assert.Equal(t, types.FormatPNG, p.Format) }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := setParam(p, tt.key, tt.value)
			require.NoError(t, err)
			tt.check(t, got)
		})
	}

	_, err := setParam(p, "zoom", "lots")
	assert.True(t, types.IsKind(err, types.KindInvalidParameter))
	_, err = setParam(p, "sharpness", "1")
	assert.True(t, types.IsKind(err, types.KindInvalidParameter))
}

func TestRunEdits(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 600, 600))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})

	session := pipeline.New(pipeline.Options{Detector: detection.Static{{X: 240, Y: 180, W: 120, H: 150}}})
	ctx := context.Background()
	require.NoError(t, session.LoadImage(ctx, &types.Image{Pixels: img, Width: 600, Height: 600, ID: "edits"}))

	quiet := slog.New(slog.DiscardHandler)
	pass := func(p types.Params) (types.Params, error) { return p, nil }
	defaults := types.DefaultParams()
	_, err := session.Apply(ctx, defaults)
	require.NoError(t, err)

	require.NoError(t, runEdits(ctx, session, defaults, "zoom=1.3, shift_x=20,undo", pass, quiet))
	active, _ := session.Active()
	assert.Equal(t, 1.3, active.ZoomOut)
	assert.Equal(t, 0, active.ShiftX)
	assert.Len(t, session.History(), 1)

	require.NoError(t, runEdits(ctx, session, defaults, "reset,undo", pass, quiet))
	active, _ = session.Active()
	assert.Equal(t, defaults, active)
	assert.Empty(t, session.History())

	err = runEdits(ctx, session, defaults, "zoom", pass, quiet)
	assert.True(t, types.IsKind(err, types.KindInvalidParameter))

	err = runEdits(ctx, session, defaults, "zoom=9", pass, quiet)
	assert.True(t, types.IsKind(err, types.KindInvalidParameter))
	assert.Equal(t, defaults, func() types.Params { p, _ := session.Active(); return p }())
}

func newEditSession(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 600, 600))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	session := pipeline.New(pipeline.Options{Detector: detection.Static{{X: 240, Y: 180, W: 120, H: 150}}})
	require.NoError(t, session.LoadImage(context.Background(), &types.Image{Pixels: img, Width: 600, Height: 600}))
	_, err := session.Apply(context.Background(), types.DefaultParams())
	require.NoError(t, err)
	return session
}

func TestRunEdits_SliderGate(t *testing.T) {
	quiet := slog.New(slog.DiscardHandler)
	profile := config.Profile{Name: "default", Params: types.DefaultParams(), Slider: config.DefaultSliderBounds()}
	ctx := context.Background()

	t.Run("strict rejects", func(t *testing.T) {
		session := newEditSession(t)
		err := runEdits(ctx, session, profile.Params, "zoom=2.5", sliderGate(profile, true, quiet), quiet)
		assert.True(t, types.IsKind(err, types.KindInvalidParameter))
		active, _ := session.Active()
		assert.Equal(t, 1.1, active.ZoomOut)
	})

	t.Run("default clamps", func(t *testing.T) {
		session := newEditSession(t)
		require.NoError(t, runEdits(ctx, session, profile.Params, "zoom=2.5,shift_x=-400", sliderGate(profile, false, quiet), quiet))
		active, _ := session.Active()
		assert.Equal(t, profile.Slider.ZoomOutMax, active.ZoomOut)
		assert.Equal(t, profile.Slider.ShiftMin, active.ShiftX)
	})
}

type recordingExporter struct{ names []string }

func (r *recordingExporter) Export(ctx context.Context, name string, res *types.RenderResult) (string, error) {
	r.names = append(r.names, name)
	return "mem://" + name, nil
}

func TestExportAll_UsesProfileName(t *testing.T) {
	session := newEditSession(t)
	file := config.Default()
	active, _ := session.Active()
	rec := &recordingExporter{}

	require.NoError(t, exportAll(context.Background(), session, file, "linkedin", active, rec, slog.New(slog.DiscardHandler)))
	require.Len(t, rec.names, len(file.Formats()))
	for _, name := range rec.names {
		assert.True(t, strings.HasPrefix(name, "headshot_linkedin"), name)
	}
}
