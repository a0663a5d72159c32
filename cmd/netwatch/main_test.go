package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestImportLegacyCSVImportsRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "threats.csv")
	data := "Timestamp,Threat Type,Source IP,Destination IP,Ports\n" +
		"2026-01-01T00:00:00Z,ddos,1.2.3.4,10.0.0.1,80\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	importLegacyCSV(ctx, s, path)

	maxID, err := s.MaxThreatID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), maxID)
}

func TestImportLegacyCSVSkipsMissingFile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	importLegacyCSV(ctx, s, filepath.Join(t.TempDir(), "does-not-exist.csv"))

	maxID, err := s.MaxThreatID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), maxID)
}

func TestImportLegacyCSVSkipsEmptyPath(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	importLegacyCSV(ctx, s, "")

	maxID, err := s.MaxThreatID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), maxID)
}
