package intake

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/farxc/carbon_footprint/internal/logger"
)

// Fetch downloads rawURL into destDir, keeping the last path segment as
// the file name, and returns the local path.
func Fetch(ctx context.Context, client *http.Client, rawURL, destDir string, appLogger *logger.Logger) (string, error) {
	const component = "Downloader"

	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	if destDir == "" {
		destDir = "tmp/downloads"
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "download.csv"
	}

	appLogger.Debug(component, "Starting download: url=%s", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		appLogger.Warn(component, "Non-OK HTTP response: url=%s status=%s", rawURL, resp.Status)
		return "", &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(destDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", destDir, err)
	}

	outputPath := filepath.Join(destDir, name)
	out, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file %s: %w", outputPath, err)
	}
	defer out.Close()

	bytesWritten, err := io.Copy(out, resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	appLogger.Info(component, "Download completed: path=%s size=%d bytes", outputPath, bytesWritten)
	return outputPath, nil
}

type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Temporary reports whether retrying the request may succeed.
func (e *HTTPStatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
