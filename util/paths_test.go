package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDataDirFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GATTDISC_DIR", dir)

	if got := GetDataDir(); got != dir {
		t.Errorf("GetDataDir() = %q, want %q", got, dir)
	}
	if got := GetConfigPath(); got != filepath.Join(dir, "config.yaml") {
		t.Errorf("GetConfigPath() = %q", got)
	}

	reports := GetReportDir()
	if info, err := os.Stat(reports); err != nil || !info.IsDir() {
		t.Errorf("report dir %q not created: %v", reports, err)
	}
}
