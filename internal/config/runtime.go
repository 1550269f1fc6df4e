package config

import (
	"os"
	"path/filepath"
)

// GetRuntimePath is used before the .env file is loaded, so it reads the raw variable.
func GetRuntimePath() string {
	return resolveHome(os.Getenv("RELAY_RUNTIME_PATH"))
}

func resolveHome(path string) string {
	if path == "" {
		path = ".tuskrelay"
	}
	if !filepath.IsAbs(path) {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path)
	}
	return path
}
