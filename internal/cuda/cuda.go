// File: internal/cuda/cuda.go

// Package cuda picks the CUDA device with the most free memory by
// running the GPU memory query command from the tool settings.
package cuda

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/dvnlab/divan/internal/config"
)

// Runner executes an external command and returns its stdout. Tests
// inject canned nvidia-smi output through this interface.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("running %s: %w", name, err)
	}
	return string(out), nil
}

// Manager resolves device names for the orchestration layer.
type Manager struct {
	cfg    config.CUDAConfig
	logger *zap.Logger
	runner Runner
}

// NewManager creates a Manager. A nil runner means real command
// execution.
func NewManager(cfg config.CUDAConfig, logger *zap.Logger, runner Runner) *Manager {
	if runner == nil {
		runner = execRunner{}
	}
	return &Manager{
		cfg:    cfg,
		logger: logger.Named("cuda"),
		runner: runner,
	}
}

// Pick resolves a device name. "cuda" is expanded to the indexed device
// with the most free memory as reported by the configured memory query
// command; any other name passes through unchanged.
func (m *Manager) Pick(ctx context.Context, device string) (string, error) {
	if device != "cuda" {
		return device, nil
	}

	fields := strings.Fields(m.cfg.MemoryUtilizationCommand)
	if len(fields) == 0 {
		return "", fmt.Errorf("memory utilization command is not configured")
	}

	out, err := m.runner.Run(ctx, fields[0], fields[1:]...)
	if err != nil {
		return "", fmt.Errorf("querying GPU memory: %w", err)
	}

	free, err := parseFreeMemory(out)
	if err != nil {
		return "", err
	}

	best := 0
	for i, mib := range free {
		if mib > free[best] {
			best = i
		}
	}
	picked := fmt.Sprintf("cuda:%d", best)
	m.logger.Debug(fmt.Sprintf("%s: Auto choose - %s", m.cfg.BlockName, picked),
		zap.Ints("free_mib", free))
	return picked, nil
}

// parseFreeMemory reads nvidia-smi CSV output: a header line followed by
// one "<n> MiB" row per GPU.
func parseFreeMemory(out string) ([]int, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("no GPUs reported by memory query")
	}

	free := make([]int, 0, len(lines)-1)
	for _, line := range lines[1:] {
		cell := strings.NewReplacer("MiB", "", "%", "").Replace(line)
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		mib, err := strconv.Atoi(cell)
		if err != nil {
			return nil, fmt.Errorf("unexpected memory query row %q: %w", line, err)
		}
		free = append(free, mib)
	}
	if len(free) == 0 {
		return nil, fmt.Errorf("no GPUs reported by memory query")
	}
	return free, nil
}
