package util

import (
	"os"
	"path/filepath"
)

// GetDataDir returns the data directory path
func GetDataDir() string {
	if envDir := os.Getenv("GATTDISC_DIR"); envDir != "" {
		return envDir
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	return filepath.Join(home, ".gattdisc")
}

// GetConfigPath returns the default configuration file
func GetConfigPath() string {
	return filepath.Join(GetDataDir(), "config.yaml")
}

// GetReportDir returns the directory where discovery reports and packet
// traces are written
func GetReportDir() string {
	reportDir := filepath.Join(GetDataDir(), "reports")
	// Ensure the directory exists
	if err := os.MkdirAll(reportDir, 0755); err != nil {
		panic(err)
	}
	return reportDir
}
