package config

import (
	"os"
	"path/filepath"
	"strings"
)

// resolveDir makes a relative directory absolute against the working directory.
func resolveDir(raw string) string {
	dir := strings.TrimSpace(raw)
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	if wd, err := os.Getwd(); err == nil && wd != "" {
		return filepath.Join(wd, dir)
	}
	return filepath.Clean(dir)
}
