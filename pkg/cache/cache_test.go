package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/headshot/pkg/types"
)

func result(tag string) *types.RenderResult {
	return &types.RenderResult{Data: []byte(tag), Width: 400, Height: 500}
}

func TestNewKey(t *testing.T) {
	p := types.DefaultParams()
	q := types.Params{
		Grayscale: p.Grayscale, Lossless: p.Lossless, Quality: p.Quality, Format: "jpg",
		Border: p.Border, ZoomOut: p.ZoomOut, ShiftY: p.ShiftY, ShiftX: p.ShiftX,
		PaddingSide: p.PaddingSide, PaddingBottom: p.PaddingBottom, PaddingTop: p.PaddingTop,
		TargetHeight: p.TargetHeight, TargetWidth: p.TargetWidth,
	}

	base := NewKey("img-a", p, types.VariantPreview, false)
	assert.Equal(t, base, NewKey("img-a", q, types.VariantPreview, false))
	assert.NotEqual(t, base, NewKey("img-b", p, types.VariantPreview, false))
	assert.NotEqual(t, base, NewKey("img-a", p, types.VariantExport, false))
	assert.NotEqual(t, base, NewKey("img-a", p, types.VariantPreview, true))

	// annotations never reach export keys
	assert.Equal(t, NewKey("img-a", p, types.VariantExport, false), NewKey("img-a", p, types.VariantExport, true))

	z := p
	z.ZoomOut = 1.2
	assert.NotEqual(t, base, NewKey("img-a", z, types.VariantPreview, false))
}

func TestGetOrCompute_HitSkipsCompute(t *testing.T) {
	c := New(nil)
	ctx := context.Background()
	key := NewKey("img", types.DefaultParams(), types.VariantPreview, false)

	var calls int
	compute := func(context.Context) (*types.RenderResult, error) {
		calls++
		return result("one"), nil
	}

	first, hit, err := c.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := c.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Len())
}

func TestGetOrCompute_FailuresNotStored(t *testing.T) {
	c := New(nil)
	ctx := context.Background()
	key := Key("k")
	boom := errors.New("render failed")

	_, _, err := c.GetOrCompute(ctx, key, func(context.Context) (*types.RenderResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	res, hit, err := c.GetOrCompute(ctx, key, func(context.Context) (*types.RenderResult, error) {
		return result("ok"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []byte("ok"), res.Data)
}

func TestGetOrCompute_ConcurrentSingleComputation(t *testing.T) {
	c := New(nil)
	key := Key("shared")
	release := make(chan struct{})
	var calls atomic.Int32

	compute := func(context.Context) (*types.RenderResult, error) {
		calls.Add(1)
		<-release
		return result("shared"), nil
	}

	var wg sync.WaitGroup
	results := make([]*types.RenderResult, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, _, err := c.GetOrCompute(context.Background(), key, compute)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestEviction(t *testing.T) {
	c := NewWithConfig(Config{MaxEntries: 3}, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		tag := fmt.Sprintf("r%d", i)
		_, _, err := c.GetOrCompute(ctx, Key(tag), func(context.Context) (*types.RenderResult, error) {
			return result(tag), nil
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, c.Len())
	_, ok := c.Get("r0")
	assert.False(t, ok)
	_, ok = c.Get("r1")
	assert.False(t, ok)
	_, ok = c.Get("r4")
	assert.True(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
