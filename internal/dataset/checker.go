// File: internal/dataset/checker.go

// Package dataset verifies that a named dataset is present under the
// configured dataset root and fetches it with the per-OS download
// command table when it is not.
package dataset

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dvnlab/divan/internal/config"
)

// CommandRunner executes an external command. Tests substitute a fake
// that fabricates the downloaded archive.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s: %w", name, err)
	}
	return nil
}

// Checker checks for and fetches datasets.
type Checker struct {
	cfg    config.CheckFileConfig
	logger *zap.Logger
	runner CommandRunner
}

// NewChecker creates a Checker. A nil runner means real command
// execution.
func NewChecker(cfg config.CheckFileConfig, logger *zap.Logger, runner CommandRunner) *Checker {
	if runner == nil {
		runner = execRunner{}
	}
	return &Checker{
		cfg:    cfg,
		logger: logger.Named("dataset"),
		runner: runner,
	}
}

// platformKey maps the running OS onto the settings table keys.
func platformKey() string {
	if runtime.GOOS == "windows" {
		return config.PlatformNT
	}
	return config.PlatformPosix
}

// Check reports whether the named dataset exists with all of its
// expected split directories. The splits are verified concurrently.
func (c *Checker) Check(ctx context.Context, name string) (bool, error) {
	c.logger.Info(fmt.Sprintf("OS: %s", c.cfg.OSDir[platformKey()]))
	c.logger.Info(fmt.Sprintf("%s: Dataset name - %s", c.cfg.BlockName, name))

	root := filepath.Join(c.cfg.DatasetRoot, name)
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking dataset %s: %w", name, err)
	}

	g, _ := errgroup.WithContext(ctx)
	for _, split := range c.cfg.Splits {
		split := split
		g.Go(func() error {
			if _, err := os.Stat(filepath.Join(root, split)); err != nil {
				return fmt.Errorf("split %s: %w", split, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn(fmt.Sprintf("%s: Dataset incomplete - %v", c.cfg.BlockName, err))
			return false, nil
		}
		return false, fmt.Errorf("checking dataset %s: %w", name, err)
	}
	return true, nil
}

// Ensure checks for the dataset and fetches it when missing.
func (c *Checker) Ensure(ctx context.Context, name string) error {
	ok, err := c.Check(ctx, name)
	if err != nil {
		return err
	}
	if ok {
		c.logger.Info(fmt.Sprintf("%s: Dataset exist", c.cfg.BlockName))
		return nil
	}
	c.logger.Warn(fmt.Sprintf("%s: Dataset not exist", c.cfg.BlockName))
	return c.Fetch(ctx, name)
}

// Fetch downloads the configured archive with the per-OS fetch tool,
// extracts it under the dataset root, and removes the archive with the
// per-OS removal tool.
func (c *Checker) Fetch(ctx context.Context, name string) error {
	key := platformKey()
	tools, ok := c.cfg.DownloadCommand[key]
	if !ok || len(tools) < 2 {
		return fmt.Errorf("no download command configured for platform %q", key)
	}
	fetchTool, removeTool := tools[0], tools[1]

	c.logger.Info(fmt.Sprintf("%s : Download http - %s", c.cfg.BlockName, c.cfg.DatasetURL))

	if err := os.MkdirAll(c.cfg.DatasetRoot, 0o755); err != nil {
		return fmt.Errorf("creating dataset root: %w", err)
	}
	archive := filepath.Join(c.cfg.DatasetRoot, path.Base(c.cfg.DatasetURL))

	if key == config.PlatformPosix {
		if err := c.runner.Run(ctx, fetchTool, c.cfg.DatasetURL, "-O", archive); err != nil {
			return fmt.Errorf("downloading %s: %w", c.cfg.DatasetURL, err)
		}
	} else {
		if err := c.runner.Run(ctx, fetchTool, c.cfg.DatasetURL, "-o", archive); err != nil {
			return fmt.Errorf("downloading %s: %w", c.cfg.DatasetURL, err)
		}
	}

	if err := extract(archive, filepath.Join(c.cfg.DatasetRoot, name)); err != nil {
		return fmt.Errorf("extracting %s: %w", archive, err)
	}

	if key == config.PlatformPosix {
		if err := c.runner.Run(ctx, removeTool, archive); err != nil {
			return fmt.Errorf("removing archive: %w", err)
		}
	} else {
		if err := c.runner.Run(ctx, "cmd", "/c", removeTool, archive); err != nil {
			return fmt.Errorf("removing archive: %w", err)
		}
	}

	c.logger.Info(fmt.Sprintf("%s: Download done", c.cfg.BlockName))
	return nil
}

// extract unpacks a zip archive into dest, rejecting entries that would
// escape it.
func extract(archive, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		// The reader is still usable on ErrInsecurePath; the per-entry
		// guard below rejects the offending names.
		if !errors.Is(err, zip.ErrInsecurePath) {
			return err
		}
	}
	defer r.Close()

	for _, f := range r.File {
		target := filepath.Join(dest, filepath.Clean(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes the destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, f.Mode()); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := writeEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	return nil
}
