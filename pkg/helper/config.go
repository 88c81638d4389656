package helper

import (
	"os"
	"path/filepath"
)

// ConfigDirEnv names a directory searched before the working directory
const ConfigDirEnv = "GABEDA_CONFIG_DIR"

// SystemConfigDir is the last directory consulted
const SystemConfigDir = "/etc/gabeda"

// GetCfgPath resolves a configuration file name to a path.
// Absolute names are returned as is. Otherwise $GABEDA_CONFIG_DIR, the working
// directory and ./configs are searched in that order, and the first existing
// file wins. When none exists the path under SystemConfigDir is returned.
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("filename cannot be empty")
	}
	if filepath.IsAbs(filename) {
		return filename
	}

	for _, dir := range searchDirs() {
		candidate := filepath.Join(dir, filename)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			if abs, err := filepath.Abs(candidate); err == nil {
				return abs
			}
		}
	}
	return filepath.Join(SystemConfigDir, filename)
}

func searchDirs() []string {
	var dirs []string
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		dirs = append(dirs, dir)
	}
	if wd, err := os.Getwd(); err == nil && wd != "" {
		dirs = append(dirs, wd, filepath.Join(wd, "configs"))
	}
	return dirs
}
