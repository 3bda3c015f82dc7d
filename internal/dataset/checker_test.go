// File: internal/dataset/checker_test.go
package dataset

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/dvnlab/divan/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testCheckFileConfig(root string) config.CheckFileConfig {
	return config.CheckFileConfig{
		BlockName: "check_file",
		OSDir: map[string]string{
			config.PlatformPosix: "Linux",
			config.PlatformNT:    "Windows",
		},
		DownloadCommand: map[string][]string{
			config.PlatformPosix: {"wget", "rm"},
			config.PlatformNT:    {"curl", "del"},
		},
		DatasetURL:  "https://example.com/files/images.zip",
		DatasetRoot: root,
		Splits:      []string{"train", "val", "test"},
	}
}

// buildZip creates an archive holding one file per split directory.
func buildZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range []string{"train/0.png", "val/0.png", "test/0.png"} {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte("pixels"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// archiveFakeRunner simulates the download tool by writing a prepared
// archive, and records every command it was asked to run.
type archiveFakeRunner struct {
	t       *testing.T
	archive []byte
	calls   [][]string
}

func (f *archiveFakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	if name == "wget" || name == "curl" {
		// The destination follows the -O/-o flag.
		dest := args[len(args)-1]
		require.NoError(f.t, os.WriteFile(dest, f.archive, 0o644))
	}
	return nil
}

func makeDataset(t *testing.T, root, name string, splits ...string) {
	t.Helper()
	for _, split := range splits {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name, split), 0o755))
	}
}

func TestCheckExistingDataset(t *testing.T) {
	root := t.TempDir()
	makeDataset(t, root, "images", "train", "val", "test")
	checker := NewChecker(testCheckFileConfig(root), zap.NewNop(), nil)

	ok, err := checker.Check(context.Background(), "images")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckMissingDataset(t *testing.T) {
	checker := NewChecker(testCheckFileConfig(t.TempDir()), zap.NewNop(), nil)

	ok, err := checker.Check(context.Background(), "images")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckIncompleteDataset(t *testing.T) {
	root := t.TempDir()
	makeDataset(t, root, "images", "train") // val and test are missing
	checker := NewChecker(testCheckFileConfig(root), zap.NewNop(), nil)

	ok, err := checker.Check(context.Background(), "images")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetchDownloadsExtractsAndCleansUp(t *testing.T) {
	root := t.TempDir()
	runner := &archiveFakeRunner{t: t, archive: buildZip(t)}
	checker := NewChecker(testCheckFileConfig(root), zap.NewNop(), runner)

	require.NoError(t, checker.Fetch(context.Background(), "images"))

	for _, split := range []string{"train", "val", "test"} {
		data, err := os.ReadFile(filepath.Join(root, "images", split, "0.png"))
		require.NoError(t, err)
		assert.Equal(t, "pixels", string(data))
	}

	require.Len(t, runner.calls, 2, "expected one download and one removal")
	assert.Equal(t, "wget", runner.calls[0][0])
	assert.Equal(t, "rm", runner.calls[1][0])
	assert.Equal(t, filepath.Join(root, "images.zip"), runner.calls[1][1])
}

func TestEnsureSkipsFetchWhenPresent(t *testing.T) {
	root := t.TempDir()
	makeDataset(t, root, "images", "train", "val", "test")
	runner := &archiveFakeRunner{t: t}
	checker := NewChecker(testCheckFileConfig(root), zap.NewNop(), runner)

	require.NoError(t, checker.Ensure(context.Background(), "images"))
	assert.Empty(t, runner.calls)
}

func TestEnsureFetchesWhenMissing(t *testing.T) {
	root := t.TempDir()
	runner := &archiveFakeRunner{t: t, archive: buildZip(t)}
	checker := NewChecker(testCheckFileConfig(root), zap.NewNop(), runner)

	require.NoError(t, checker.Ensure(context.Background(), "images"))

	ok, err := checker.Check(context.Background(), "images")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFetchMissingCommandTable(t *testing.T) {
	cfg := testCheckFileConfig(t.TempDir())
	cfg.DownloadCommand = map[string][]string{}
	checker := NewChecker(cfg, zap.NewNop(), &archiveFakeRunner{t: t})

	err := checker.Fetch(context.Background(), "images")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no download command configured")
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("../evil.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("nope"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	dir := t.TempDir()
	archive := filepath.Join(dir, "bad.zip")
	require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0o644))

	err = extract(archive, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes the destination")
}
