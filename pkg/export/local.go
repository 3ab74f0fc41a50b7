package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/headshot/internal/logging"
	"github.com/menta2k/headshot/internal/metrics"
	"github.com/menta2k/headshot/internal/utils"
	"github.com/menta2k/headshot/pkg/types"
)

// LocalExporter writes results below a base directory.
type LocalExporter struct {
	basePath string
	logger   *slog.Logger
}

// NewLocalExporter creates the base directory if needed.
func NewLocalExporter(dir string, logger *slog.Logger) (*LocalExporter, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve export directory: %w", err)
	}
	if err := utils.EnsureDir(absPath); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return &LocalExporter{basePath: absPath, logger: logging.Or(logger)}, nil
}

// Export writes res to <dir>/<name>, replacing any existing file.
func (e *LocalExporter) Export(ctx context.Context, name string, res *types.RenderResult) (string, error) {
	loc, err := e.export(ctx, name, res)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ExportsTotal.WithLabelValues("local", status).Inc()
	return loc, err
}

func (e *LocalExporter) export(ctx context.Context, name string, res *types.RenderResult) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err := checkResult(res); err != nil {
		return "", &Error{Op: "local", Name: name, Err: err}
	}

	filePath, err := e.resolvePath(name)
	if err != nil {
		return "", &Error{Op: "local", Name: name, Err: err}
	}
	if err := utils.EnsureDir(filepath.Dir(filePath)); err != nil {
		return "", &Error{Op: "local", Name: name, Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	// written to a temp file and renamed into place
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".headshot-*")
	if err != nil {
		return "", &Error{Op: "local", Name: name, Err: fmt.Errorf("failed to create file: %w", err)}
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", &Error{Op: "local", Name: name, Err: fmt.Errorf("failed to set permissions: %w", err)}
	}
	if _, err := tmp.Write(res.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", &Error{Op: "local", Name: name, Err: fmt.Errorf("failed to write file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", &Error{Op: "local", Name: name, Err: fmt.Errorf("failed to close file: %w", err)}
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		os.Remove(tmp.Name())
		return "", &Error{Op: "local", Name: name, Err: fmt.Errorf("failed to move file into place: %w", err)}
	}

	e.logger.Debug("exported headshot",
		"path", filePath,
		"size", len(res.Data),
		"content_type", res.MIME,
	)
	return filePath, nil
}

func (e *LocalExporter) resolvePath(name string) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	absPath := filepath.Join(e.basePath, filepath.FromSlash(clean))
	if !strings.HasPrefix(absPath, e.basePath+string(filepath.Separator)) {
		return "", ErrInvalidName
	}
	return absPath, nil
}
