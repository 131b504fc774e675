package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "UICOV_HOME"

// stateDirName is the per-project state directory.
const stateDirName = ".ui-coverage"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the ui-coverage state directory.
//
// Resolution order:
//  1. $UICOV_HOME environment variable
//  2. The nearest ancestor of the working directory that already has a
//     .ui-coverage directory
//  3. .ui-coverage under the working directory
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetCacheDir returns <home>/cache.
func GetCacheDir() string {
	return filepath.Join(GetHome(), "cache")
}

// GetDriverDir returns <home>/cache/<name>, where browser drivers are kept.
func GetDriverDir(name string) string {
	return filepath.Join(GetCacheDir(), name)
}

func resolveHome() string {
	// 1. Environment variable
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	cwd, err := os.Getwd()
	if err != nil {
		return stateDirName
	}

	// 2. Existing state directory in an ancestor
	for dir := cwd; ; {
		candidate := filepath.Join(dir, stateDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	// 3. Working directory
	return filepath.Join(cwd, stateDirName)
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
