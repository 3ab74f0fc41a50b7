// Package detection finds faces in decoded source images.
//
// Every detector here is read-only after construction and tolerates
// concurrent use from many sessions.
package detection

import (
	"context"

	"github.com/menta2k/headshot/pkg/types"
)

// FaceDetector returns zero or more faces in source pixel coordinates.
// An empty result is not an error.
type FaceDetector interface {
	DetectFaces(ctx context.Context, img *types.Image) ([]types.FaceBox, error)
}

// Largest returns the face with the largest area, preferring the higher
// confidence and then the earlier entry on ties. It returns nil for no faces.
func Largest(faces []types.FaceBox) *types.FaceBox {
	var best *types.FaceBox
	for i := range faces {
		f := &faces[i]
		if f.W <= 0 || f.H <= 0 {
			continue
		}
		if best == nil || f.Area() > best.Area() || (f.Area() == best.Area() && f.Q > best.Q) {
			best = f
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// Noop never finds a face; every crop uses the centered fallback.
type Noop struct{}

func (Noop) DetectFaces(ctx context.Context, img *types.Image) ([]types.FaceBox, error) {
	return nil, nil
}

// Static returns a fixed set of faces, clipped to the image. It serves
// callers that already know where the face is.
type Static []types.FaceBox

func (s Static) DetectFaces(ctx context.Context, img *types.Image) ([]types.FaceBox, error) {
	out := make([]types.FaceBox, 0, len(s))
	for _, f := range s {
		if c, ok := clip(f, img.Width, img.Height); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// clip intersects f with the image, reporting false when nothing remains.
func clip(f types.FaceBox, w, h int) (types.FaceBox, bool) {
	r := f.Rect().Intersect(types.CropRect{Right: w, Bottom: h}.Rect())
	if r.Empty() {
		return types.FaceBox{}, false
	}
	return types.FaceBox{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy(), Q: f.Q}, true
}
