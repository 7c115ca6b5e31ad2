package ingestion

import (
	"archive/zip"
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/farxc/carbon_footprint/internal/emissions"
	"github.com/farxc/carbon_footprint/internal/logger"
	"github.com/farxc/carbon_footprint/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedIngester struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string][]error
}

func (s *scriptedIngester) Ingest(_ context.Context, fileName string, category emissions.Category, r io.Reader) (*Result, error) {
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	attempt := s.calls[fileName]
	s.calls[fileName]++

	if errs := s.failures[fileName]; attempt < len(errs) {
		return &Result{FileName: fileName, Status: emissions.UploadFailed}, errs[attempt]
	}
	return &Result{UploadID: fmt.Sprintf("id_%s", fileName), FileName: fileName, Category: category, Status: emissions.UploadSuccess}, nil
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newTestOrchestrator(t *testing.T, ing Ingester, opts ...OrchestratorOption) *Orchestrator {
	opts = append([]OrchestratorOption{WithRetry(2, time.Millisecond), WithWorkDir(t.TempDir())}, opts...)
	return NewOrchestrator(ing, logger.NewNop(), 3, opts...)
}

func TestOrchestrator_RetriesTransientFailures(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "x")
	b := writeFile(t, dir, "b.csv", "x")
	c := writeFile(t, dir, "c.csv", "x")
	d := writeFile(t, dir, "d.csv", "x")
	beginFailed := fmt.Errorf("%w: %w", ErrPersist, store.ErrBeginTx)

	ing := &scriptedIngester{failures: map[string][]error{
		"a.csv": {fmt.Errorf("%w: %w", ErrPersist, store.ErrBeginTx)},
		"b.csv": {fmt.Errorf("%w: bad header", ErrUnreadable)},
		"c.csv": {beginFailed, beginFailed, beginFailed},
		"d.csv": {fmt.Errorf("%w: commit transaction: connection reset", ErrPersist)},
	}}

	results := newTestOrchestrator(t, ing).Run(context.Background(), []IngestionJob{
		{Source: a, Category: emissions.CategoryOperations},
		{Source: b, Category: emissions.CategoryOperations},
		{Source: c, Category: emissions.CategoryOperations},
		{Source: d, Category: emissions.CategoryOperations},
	})

	byFile := map[string]IngestionResult{}
	for _, r := range results {
		byFile[filepath.Base(r.Job.Source)] = r
	}
	require.Len(t, byFile, 4)

	assert.NoError(t, byFile["a.csv"].Error)
	assert.Equal(t, 1, byFile["a.csv"].Job.Attempt)
	assert.Equal(t, 2, ing.calls["a.csv"])

	assert.True(t, errors.Is(byFile["b.csv"].Error, ErrUnreadable))
	assert.Equal(t, 1, ing.calls["b.csv"])

	assert.True(t, errors.Is(byFile["c.csv"].Error, ErrPersist))
	assert.Equal(t, 3, ing.calls["c.csv"])

	assert.True(t, errors.Is(byFile["d.csv"].Error, ErrPersist))
	assert.Equal(t, 1, ing.calls["d.csv"])
}

func TestOrchestrator_ExpandsArchives(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "batch.zip")
	zf, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(zf)
	for _, name := range []string{"jan.csv", "feb.csv", "notes.txt"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("product_id,units_sold,record_date\n"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, zf.Close())

	ing := &scriptedIngester{}
	results := newTestOrchestrator(t, ing).Run(context.Background(), []IngestionJob{
		{Source: zipPath, Category: emissions.CategoryOperations},
	})

	var names []string
	for _, r := range results {
		require.NoError(t, r.Error)
		names = append(names, r.Result.FileName)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"feb.csv", "jan.csv"}, names)
}

func TestOrchestrator_FetchesURLs(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		first := hits == 1
		mu.Unlock()
		if first {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("month,region,bill_type,units\n2026-01,india,electricity,900\n"))
	}))
	defer srv.Close()

	ing := &scriptedIngester{}
	results := newTestOrchestrator(t, ing, WithHTTPClient(srv.Client())).Run(context.Background(), []IngestionJob{
		{Source: srv.URL + "/bills.csv", Category: emissions.CategoryUtility},
	})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Error)
	assert.Equal(t, "bills.csv", results[0].Result.FileName)
	assert.Equal(t, 1, results[0].Job.Attempt)
}

func TestOrchestrator_MissingFileIsNotRetried(t *testing.T) {
	ing := &scriptedIngester{}
	results := newTestOrchestrator(t, ing).Run(context.Background(), []IngestionJob{
		{Source: filepath.Join(t.TempDir(), "nope.csv"), Category: emissions.CategoryOperations},
	})

	require.Len(t, results, 1)
	assert.True(t, errors.Is(results[0].Error, os.ErrNotExist))
	assert.Equal(t, 0, results[0].Job.Attempt)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(fmt.Errorf("%w: %w", ErrPersist, store.ErrBeginTx)))
	assert.True(t, isTransient(fmt.Errorf("%w: %w", ErrPersist, driver.ErrBadConn)))
	assert.False(t, isTransient(fmt.Errorf("%w: commit transaction: x", ErrPersist)))
	assert.False(t, isTransient(fmt.Errorf("%w: x", ErrUnreadable)))
	assert.False(t, isTransient(context.Canceled))
	assert.False(t, isTransient(errors.New("boom")))
}
