package intake

import (
	"archive/zip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/farxc/carbon_footprint/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, members map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, body := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestUnzip(t *testing.T) {
	zipPath := writeZip(t, map[string]string{
		"jan/operations.csv": "product_id,units_sold,record_date\n",
		"README.txt":         "ignore me",
	})
	dest := t.TempDir()

	files, err := Unzip(zipPath, dest, logger.NewNop())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dest, "jan", "operations.csv"), files[0])

	body, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "product_id,units_sold,record_date\n", string(body))
}

func TestUnzip_RejectsZipSlip(t *testing.T) {
	zipPath := writeZip(t, map[string]string{"../../evil.csv": "x"})

	_, err := Unzip(zipPath, t.TempDir(), logger.NewNop())
	assert.Error(t, err)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/exports/ops.csv":
			w.Write([]byte("product_id,units_sold,record_date\nP1,1,2026-01-01\n"))
		case "/busy.csv":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dest := t.TempDir()
	path, err := Fetch(context.Background(), srv.Client(), srv.URL+"/exports/ops.csv", dest, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "ops.csv"), path)

	_, err = Fetch(context.Background(), srv.Client(), srv.URL+"/busy.csv", dest, logger.NewNop())
	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.True(t, statusErr.Temporary())

	_, err = Fetch(context.Background(), srv.Client(), srv.URL+"/missing.csv", dest, logger.NewNop())
	require.True(t, errors.As(err, &statusErr))
	assert.False(t, statusErr.Temporary())
}
