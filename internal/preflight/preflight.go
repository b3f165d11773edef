package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"loom/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Workspace directory", cfg.Paths.WorkspaceDir))
	results = append(results, CheckDirectoryAccess("Runs directory", cfg.Paths.RunsDir))

	if cfg.Preflight.MinFreeMiB > 0 {
		results = append(results, CheckFreeSpace("Workspace free space", cfg.Paths.WorkspaceDir, cfg.Preflight.MinFreeMiB))
	}

	return results
}

// Failed returns the first failing result, or nil when everything passed.
func Failed(results []Result) *Result {
	for i := range results {
		if !results[i].Passed {
			return &results[i]
		}
	}
	return nil
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least minFreeMiB
// available to unprivileged writers.
func CheckFreeSpace(name, path string, minFreeMiB int64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	freeMiB := int64(stat.Bavail) * stat.Bsize / (1 << 20)
	if freeMiB < minFreeMiB {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%d MiB free, need %d MiB)", path, freeMiB, minFreeMiB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d MiB free)", path, freeMiB)}
}
