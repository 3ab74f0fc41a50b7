package export

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/headshot/pkg/types"
)

func testResult() *types.RenderResult {
	return &types.RenderResult{
		Data:    []byte("\xff\xd8\xff fake jpeg bytes"),
		Format:  types.FormatJPEG,
		MIME:    "image/jpeg",
		Width:   400,
		Height:  500,
		Variant: types.VariantExport,
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"headshot.jpg", "headshot.jpg", false},
		{"team/alice.png", "team/alice.png", false},
		{"team\\bob.png", "team/bob.png", false},
		{"./a/../b.jpg", "b.jpg", false},
		{"", "", true},
		{"   ", "", true},
		{"../escape.jpg", "", true},
		{"/etc/passwd", "", true},
		{".", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cleanName(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalExporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	e, err := NewLocalExporter(dir, nil)
	require.NoError(t, err)

	res := testResult()
	loc, err := e.Export(context.Background(), "team/headshot_default.jpg", res)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(e.basePath, "team", "headshot_default.jpg"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, res.Data, data)

	// overwrite
	res.Data = []byte("second")
	_, err = e.Export(context.Background(), "team/headshot_default.jpg", res)
	require.NoError(t, err)
	data, err = os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Join(e.basePath, "team"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLocalExporter_Errors(t *testing.T) {
	e, err := NewLocalExporter(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = e.Export(ctx, "../x.jpg", testResult())
	assert.ErrorIs(t, err, ErrInvalidName)

	var exportErr *Error
	require.True(t, errors.As(err, &exportErr))
	assert.Equal(t, "../x.jpg", exportErr.Name)

	_, err = e.Export(ctx, "x.jpg", nil)
	assert.ErrorIs(t, err, ErrEmptyResult)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Export(canceled, "x.jpg", testResult())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestS3Exporter(t *testing.T) {
	res := testResult()
	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/headshots/exports/headshot_default.jpg", r.URL.Path)
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		assert.Contains(t, r.Header.Get("Authorization"), "AKIDTEST")

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, res.Data, body)

		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e, err := NewS3Exporter(S3Config{
		Bucket:          "headshots",
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		AccessKeyID:     "AKIDTEST",
		SecretAccessKey: "secret",
		Prefix:          "/exports/",
	}, nil)
	require.NoError(t, err)

	loc, err := e.Export(context.Background(), "headshot_default.jpg", res)
	require.NoError(t, err)
	assert.Equal(t, "s3://headshots/exports/headshot_default.jpg", loc)
	assert.Equal(t, 1, calls)
}

func TestS3Exporter_AccessDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>AccessDenied</Code><Message>Access Denied</Message><RequestId>1</RequestId></Error>`)
	}))
	defer srv.Close()

	e, err := NewS3Exporter(S3Config{
		Bucket:          "headshots",
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		AccessKeyID:     "AKIDTEST",
		SecretAccessKey: "secret",
	}, nil)
	require.NoError(t, err)

	_, err = e.Export(context.Background(), "a.jpg", testResult())
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = e.Export(context.Background(), "../a.jpg", testResult())
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestNewS3Exporter_Validation(t *testing.T) {
	_, err := NewS3Exporter(S3Config{AccessKeyID: "a", SecretAccessKey: "b"}, nil)
	assert.Error(t, err)

	_, err = NewS3Exporter(S3Config{Bucket: "b"}, nil)
	assert.Error(t, err)
}
