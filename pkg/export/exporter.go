// Package export delivers rendered headshots to a destination: a local
// directory or an S3-compatible bucket.
package export

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/menta2k/headshot/pkg/types"
)

var (
	// ErrInvalidName is returned for empty names or names that escape the
	// destination (e.g. "../x.jpg").
	ErrInvalidName = errors.New("invalid export name")

	// ErrEmptyResult is returned when there are no bytes to export.
	ErrEmptyResult = errors.New("empty render result")

	// ErrAccessDenied is returned when the destination rejects the write.
	ErrAccessDenied = errors.New("access denied")
)

// Exporter writes a render result under name and returns its location.
type Exporter interface {
	Export(ctx context.Context, name string, res *types.RenderResult) (string, error)
}

// Error wraps export failures with the operation and name involved.
type Error struct {
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export %s %q: %v", e.Op, e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// cleanName normalizes name to a relative slash path inside the destination.
func cleanName(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrInvalidName
	}
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if clean == "." || strings.HasPrefix(clean, "/") || strings.Contains(clean, "..") {
		return "", ErrInvalidName
	}
	return clean, nil
}

func checkResult(res *types.RenderResult) error {
	if res == nil || len(res.Data) == 0 {
		return ErrEmptyResult
	}
	return nil
}
